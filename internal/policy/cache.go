package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Cache maps policy source strings to compiled CEL programs with
// compile-once semantics. It is unbounded and append-only for the
// process lifetime; compile failures are never cached, so a retried
// bad source recompiles and fails again.
type Cache struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCache builds the shared CEL environment. Programs see two
// variables: request_headers and jwt_claims, both dynamically typed.
func NewCache() (*Cache, error) {
	env, err := cel.NewEnv(
		cel.Variable("request_headers", cel.DynType),
		cel.Variable("jwt_claims", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("building CEL environment: %w", err)
	}
	return &Cache{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// GetOrCompile returns the compiled program for src, compiling it on
// first use. Compilation is pure and deterministic, so it runs outside
// any lock; the write lock is held only for the insert, after
// re-checking for a program a concurrent caller may have raced in.
func (c *Cache) GetOrCompile(src string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[src]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	compiled, err := c.compile(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.programs[src]; ok {
		return existing, nil
	}
	c.programs[src] = compiled
	return compiled, nil
}

func (c *Cache) compile(src string) (cel.Program, error) {
	ast, iss := c.env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compiling policy: %w", iss.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("planning policy: %w", err)
	}
	return prg, nil
}
