package util

import (
	"errors"
	"strings"
)

// ExtractBearerToken pulls the bearer token out of an Authorization
// header value. The token itself is never included in error messages.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.New("authorization header is not a bearer credential")
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenStr == "" {
		return "", errors.New("empty bearer token")
	}

	return tokenStr, nil
}
