package keys

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// fixedSet builds a KeySet snapshot directly so freshness logic can be
// exercised without a network fetch.
func fixedSet(loadedAt time.Time, mutate func(*KeySet)) *KeySet {
	set := &KeySet{
		keys:            map[string]*rsa.PublicKey{},
		loadedAt:        loadedAt,
		refreshInterval: DefaultRefreshInterval,
	}
	if mutate != nil {
		mutate(set)
	}
	return set
}

func storeAt(set *KeySet, now time.Time) *Store {
	s := NewStore("http://unused.invalid/jwks.json", nil)
	s.set = set
	s.now = func() time.Time { return now }
	return s
}

func TestShouldRefresh(t *testing.T) {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		set      *KeySet
		now      time.Time
		expected bool
	}{
		{
			name:     "never loaded",
			set:      nil,
			now:      base,
			expected: true,
		},
		{
			name: "directive still fresh",
			set: fixedSet(base, func(ks *KeySet) {
				ks.maxAge = 10 * time.Minute
				ks.hasMaxAge = true
			}),
			now:      base.Add(9 * time.Minute),
			expected: false,
		},
		{
			name: "directive elapsed",
			set: fixedSet(base, func(ks *KeySet) {
				ks.maxAge = 10 * time.Minute
				ks.hasMaxAge = true
			}),
			now:      base.Add(11 * time.Minute),
			expected: true,
		},
		{
			name: "zero remaining freshness",
			set: fixedSet(base, func(ks *KeySet) {
				ks.hasMaxAge = true
			}),
			now:      base.Add(time.Second),
			expected: true,
		},
		{
			name:     "fallback window not reached",
			set:      fixedSet(base, nil),
			now:      base.Add(4 * time.Minute),
			expected: false,
		},
		{
			name:     "fallback window exceeded",
			set:      fixedSet(base, nil),
			now:      base.Add(6 * time.Minute),
			expected: true,
		},
		{
			name: "multiplier stretches the fallback window",
			set: fixedSet(base, func(ks *KeySet) {
				ks.refreshInterval = 2.0
			}),
			now:      base.Add(8 * time.Minute),
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := storeAt(tc.set, tc.now)
			if got := s.ShouldRefresh(); got != tc.expected {
				t.Errorf("ShouldRefresh() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestStillValid(t *testing.T) {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		set      *KeySet
		now      time.Time
		expected bool
	}{
		{
			name:     "never loaded",
			set:      nil,
			now:      base,
			expected: false,
		},
		{
			name:     "within fallback ceiling",
			set:      fixedSet(base, nil),
			now:      base.Add(4 * time.Minute),
			expected: true,
		},
		{
			name:     "past fallback ceiling",
			set:      fixedSet(base, nil),
			now:      base.Add(6 * time.Minute),
			expected: false,
		},
		{
			// the multiplier stretches ShouldRefresh but never the
			// validity ceiling
			name: "multiplier does not extend the ceiling",
			set: fixedSet(base, func(ks *KeySet) {
				ks.refreshInterval = 10.0
			}),
			now:      base.Add(6 * time.Minute),
			expected: false,
		},
		{
			name: "explicit expiry in the future",
			set: fixedSet(base, func(ks *KeySet) {
				ks.expiresAt = base.Add(time.Hour)
				ks.hasExpiresAt = true
			}),
			now:      base.Add(30 * time.Minute),
			expected: true,
		},
		{
			name: "explicit expiry passed",
			set: fixedSet(base, func(ks *KeySet) {
				ks.expiresAt = base.Add(time.Minute)
				ks.hasExpiresAt = true
			}),
			now:      base.Add(2 * time.Minute),
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := storeAt(tc.set, tc.now)
			if got := s.StillValid(); got != tc.expected {
				t.Errorf("StillValid() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestRefreshReplacesSet(t *testing.T) {
	key := testRSAKey(t)
	server := newJWKSServer(t, key, nil)
	defer server.Close()

	s := NewStore(server.URL, server.Client())

	if s.StillValid() {
		t.Fatal("StillValid must be false before any load")
	}
	if !s.ShouldRefresh() {
		t.Fatal("ShouldRefresh must be true before any load")
	}

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if !s.StillValid() {
		t.Error("Expected StillValid after a successful refresh")
	}
	if s.ShouldRefresh() {
		t.Error("Expected no refresh due right after a load")
	}
}

func TestRefreshFailureKeepsOldSet(t *testing.T) {
	base := time.Now()
	s := storeAt(fixedSet(base, nil), base)
	s.jwksURL = "http://127.0.0.1:0/jwks.json"

	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh against an unreachable endpoint to fail")
	}
	if s.set == nil || !s.set.LoadedAt().Equal(base) {
		t.Error("A failed refresh must leave the previous set in place")
	}
}

func signedToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenStr
}

func TestVerify(t *testing.T) {
	key := testRSAKey(t)
	server := newJWKSServer(t, key, nil)
	defer server.Close()

	s := NewStore(server.URL, server.Client())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	otherKey := testRSAKey(t)

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "test-subject",
			"iss": "https://issuer.example",
			"aud": "gateway",
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name        string
		token       string
		opts        VerifyOptions
		expectError bool
	}{
		{
			name:  "valid token",
			token: signedToken(t, key, "test-key-id", baseClaims()),
		},
		{
			name:        "wrong signing key",
			token:       signedToken(t, otherKey, "test-key-id", baseClaims()),
			expectError: true,
		},
		{
			name:        "unknown kid",
			token:       signedToken(t, key, "other-kid", baseClaims()),
			expectError: true,
		},
		{
			name: "expired token",
			token: signedToken(t, key, "test-key-id", jwt.MapClaims{
				"sub": "test-subject",
				"iat": time.Now().Add(-2 * time.Hour).Unix(),
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			expectError: true,
		},
		{
			name:        "garbage token",
			token:       "not.a.jwt",
			expectError: true,
		},
		{
			name:  "allowed issuer",
			token: signedToken(t, key, "test-key-id", baseClaims()),
			opts:  VerifyOptions{AllowedIssuers: []string{"https://issuer.example"}},
		},
		{
			name:        "issuer not on allow-list",
			token:       signedToken(t, key, "test-key-id", baseClaims()),
			opts:        VerifyOptions{AllowedIssuers: []string{"https://other.example"}},
			expectError: true,
		},
		{
			name:  "allowed audience",
			token: signedToken(t, key, "test-key-id", baseClaims()),
			opts:  VerifyOptions{AllowedAudiences: []string{"gateway", "something-else"}},
		},
		{
			name:        "audience not on allow-list",
			token:       signedToken(t, key, "test-key-id", baseClaims()),
			opts:        VerifyOptions{AllowedAudiences: []string{"something-else"}},
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := s.Verify(tc.token, tc.opts)
			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if claims["sub"] != "test-subject" {
				t.Errorf("Expected sub claim to round-trip, got %v", claims["sub"])
			}
		})
	}
}

func TestVerifyAudienceList(t *testing.T) {
	key := testRSAKey(t)
	server := newJWKSServer(t, key, nil)
	defer server.Close()

	s := NewStore(server.URL, server.Client())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	token := signedToken(t, key, "test-key-id", jwt.MapClaims{
		"sub": "test-subject",
		"aud": []string{"first", "second"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := s.Verify(token, VerifyOptions{AllowedAudiences: []string{"second"}}); err != nil {
		t.Errorf("Expected list-valued aud to match, got: %v", err)
	}
	if _, err := s.Verify(token, VerifyOptions{AllowedAudiences: []string{"third"}}); err == nil {
		t.Errorf("Expected list-valued aud mismatch to fail")
	}
}
