package keys

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MaxJWKSValidity is the fallback maximum validity window, used when
// the JWKS response carries no freshness or expiry headers. It is a
// hard ceiling for StillValid regardless of the refresh-interval
// multiplier; only ShouldRefresh scales by it.
const MaxJWKSValidity = 5 * time.Minute

// VerifyOptions carries the per-request claim allow-lists. An empty
// list accepts any value for that claim.
type VerifyOptions struct {
	AllowedIssuers   []string
	AllowedAudiences []string
}

// Store owns the current signing-key set and answers the two freshness
// questions the pipeline and the background refresher ask. The set is
// replaced wholesale under the write lock; it is never mutated in
// place, so readers either see the old snapshot or the new one.
type Store struct {
	mu      sync.RWMutex
	set     *KeySet // nil until the first successful refresh
	client  *http.Client
	jwksURL string

	now func() time.Time
}

// NewStore creates an empty Store; no keys are held until the first
// successful Refresh.
func NewStore(jwksURL string, client *http.Client) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{
		client:  client,
		jwksURL: jwksURL,
		now:     time.Now,
	}
}

// ShouldRefresh reports whether a refresh attempt is due. Always true
// before the first load. Prefers the Cache-Control derived window;
// otherwise falls back to MaxJWKSValidity scaled by the set's
// refresh-interval multiplier.
func (s *Store) ShouldRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.set == nil {
		// refresh for the first time
		return true
	}

	now := s.now()
	if staleAt, ok := s.set.StaleAt(); ok {
		return now.After(staleAt)
	}

	// no header detected, refresh if too old
	window := time.Duration(float64(MaxJWKSValidity) * s.set.RefreshInterval())
	return now.After(s.set.LoadedAt().Add(window))
}

// StillValid reports whether the held keys may still be used to grant
// access. False before the first load. Prefers the explicit expiry
// signal; the fallback ignores the refresh-interval multiplier on
// purpose: MaxJWKSValidity is a safety ceiling, not a tunable cadence.
func (s *Store) StillValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.set == nil {
		// nothing loaded yet
		return false
	}

	now := s.now()
	if expiresAt, ok := s.set.ExpiresAt(); ok {
		return !now.After(expiresAt)
	}

	return !now.After(s.set.LoadedAt().Add(MaxJWKSValidity))
}

// Refresh fetches a new key set and swaps it in. The network fetch
// happens outside the lock; only the pointer swap is exclusive.
// Callers serialize refresh attempts themselves (see Refresher).
func (s *Store) Refresh(ctx context.Context) error {
	set, err := FetchKeySet(ctx, s.client, s.jwksURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	return nil
}

// Verify checks the token signature against the currently held keys
// and validates standard claims, then applies the issuer and audience
// allow-lists. Callers must check StillValid first: an expired key set
// must not grant access even when the signature checks out.
func (s *Store) Verify(tokenStr string, opts VerifyOptions) (jwt.MapClaims, error) {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	if set == nil {
		return nil, errors.New("no signing keys loaded")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}
		key, ok := set.Key(kid)
		if !ok {
			return nil, fmt.Errorf("key not found for kid: %s", kid)
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claim type")
	}

	if err := checkIssuer(claims, opts.AllowedIssuers); err != nil {
		return nil, err
	}
	if err := checkAudience(claims, opts.AllowedAudiences); err != nil {
		return nil, err
	}

	return claims, nil
}

func checkIssuer(claims jwt.MapClaims, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	iss, ok := claims["iss"].(string)
	if !ok {
		return errors.New("iss claim missing")
	}
	for _, a := range allowed {
		if iss == a {
			return nil
		}
	}
	return fmt.Errorf("issuer %q is not allowed", iss)
}

func checkAudience(claims jwt.MapClaims, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	audRaw, exists := claims["aud"]
	if !exists {
		return errors.New("aud claim missing")
	}

	want := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		want[a] = struct{}{}
	}

	switch v := audRaw.(type) {
	case string:
		if _, ok := want[v]; ok {
			return nil
		}
		return fmt.Errorf("aud %q is not allowed", v)
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok {
				if _, ok := want[s]; ok {
					return nil
				}
			}
		}
		return fmt.Errorf("audience %v includes no allowed value", v)
	default:
		return errors.New("aud claim has unexpected type")
	}
}
