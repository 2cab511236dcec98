package authz

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/celgate/celgate/internal/keys"
	logger "github.com/celgate/celgate/internal/logging"
	"github.com/celgate/celgate/internal/policy"
	"github.com/celgate/celgate/internal/util"
)

// KeySource is the slice of the key store the pipeline consumes.
type KeySource interface {
	StillValid() bool
	Verify(token string, opts keys.VerifyOptions) (jwt.MapClaims, error)
}

// Pipeline is the end-to-end per-request decision algorithm: bearer
// extraction, key validity, token verification, policy lookup and
// evaluation. Every failure is handled here and mapped to a Result;
// nothing propagates to the transport layer.
type Pipeline struct {
	Keys     KeySource
	Policies *policy.Cache
}

// Evaluate runs the decision pipeline for one request. The request
// context it builds (request_headers, jwt_claims) is scoped to this
// call and never shared.
func (p *Pipeline) Evaluate(r *http.Request) Result {
	token, err := util.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		logger.Debug("no bearer auth found: %v", err)
		return Deny(ReasonMissingCredential)
	}

	// The background task refreshes well before expiry; if the keys
	// expired anyway, that is an operational fault, not a caller
	// fault, so deny everything with a server error.
	if !p.Keys.StillValid() {
		logger.Warn("keys expired before we could refresh them")
		return SystemError(ReasonKeysExpired)
	}

	q := r.URL.Query()
	claims, err := p.Keys.Verify(token, keys.VerifyOptions{
		AllowedIssuers:   setParam(q["allowed_issuers"]),
		AllowedAudiences: setParam(q["allowed_audiences"]),
	})
	if err != nil {
		logger.Debug("invalid token: %v", err)
		return Deny(ReasonInvalidToken)
	}

	src := q.Get("cel_str")
	if src == "" {
		logger.Warn("no policy program specified, rejecting request")
		return Deny(ReasonNoPolicy)
	}

	prg, err := p.Policies.GetOrCompile(src)
	if err != nil {
		logger.Warn("failed to compile policy program: %v", err)
		return SystemError(ReasonBadPolicy)
	}

	out, _, err := prg.Eval(map[string]any{
		"request_headers": policy.MapHeaders(r.Header),
		"jwt_claims":      map[string]any(claims),
	})
	if err != nil {
		logger.Warn("failed to evaluate policy program: %v", err)
		return SystemError(ReasonPolicyFailed)
	}

	granted, ok := out.Value().(bool)
	if !ok {
		logger.Warn("policy program didn't return a boolean, bailing out")
		return SystemError(ReasonNonBoolean)
	}
	if !granted {
		return Deny(ReasonPolicyDenied)
	}
	return Allow()
}

// setParam flattens a repeated query parameter into a string set,
// additionally splitting each occurrence on commas.
func setParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
