package keys

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	logger "github.com/celgate/celgate/internal/logging"
)

// DefaultRefreshInterval is the multiplier applied to the fallback
// validity window when the JWKS response carries no freshness
// directive of its own.
const DefaultRefreshInterval = 1.0

// KeySet is one immutable snapshot of the published signing keys plus
// the fetch metadata the freshness tracker consumes. A refresh never
// mutates an existing KeySet; it produces a new one.
type KeySet struct {
	keys     map[string]*rsa.PublicKey
	loadedAt time.Time

	// maxAge is the Cache-Control derived freshness window; only
	// meaningful when hasMaxAge is set. A zero maxAge with hasMaxAge
	// set means the response demanded no caching at all.
	maxAge    time.Duration
	hasMaxAge bool

	// expiresAt is the Expires header, when present.
	expiresAt    time.Time
	hasExpiresAt bool

	refreshInterval float64
}

// Key looks up a verification key by its kid.
func (ks *KeySet) Key(kid string) (*rsa.PublicKey, bool) {
	k, ok := ks.keys[kid]
	return k, ok
}

// Len returns the number of usable keys in the set.
func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// LoadedAt returns the time this set was fetched.
func (ks *KeySet) LoadedAt() time.Time {
	return ks.loadedAt
}

// StaleAt returns the directive-derived point in time after which the
// set should be refreshed, if the source advertised one.
func (ks *KeySet) StaleAt() (time.Time, bool) {
	if !ks.hasMaxAge {
		return time.Time{}, false
	}
	return ks.loadedAt.Add(ks.maxAge), true
}

// ExpiresAt returns the explicit expiry signal, if the source
// advertised one.
func (ks *KeySet) ExpiresAt() (time.Time, bool) {
	return ks.expiresAt, ks.hasExpiresAt
}

// RefreshInterval returns the multiplier applied to the fallback
// refresh window.
func (ks *KeySet) RefreshInterval() float64 {
	return ks.refreshInterval
}

type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// FetchKeySet downloads the JWKS document and parses it into a KeySet.
// Non-RSA and malformed entries are skipped; a token signed by such a
// key simply fails kid lookup later.
func FetchKeySet(ctx context.Context, client *http.Client, jwksURL string) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding JWKS document: %w", err)
	}

	set := &KeySet{
		keys:            make(map[string]*rsa.PublicKey, len(doc.Keys)),
		loadedAt:        time.Now(),
		refreshInterval: DefaultRefreshInterval,
	}

	for _, keyData := range doc.Keys {
		var parsed struct {
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
			Kty string `json:"kty"`
		}
		if err := json.Unmarshal(keyData, &parsed); err != nil {
			continue
		}
		if parsed.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(parsed.N, parsed.E)
		if err == nil {
			set.keys[parsed.Kid] = pubKey
		}
	}

	if maxAge, ok := parseMaxAge(resp.Header.Get("Cache-Control")); ok {
		set.maxAge = maxAge
		set.hasMaxAge = true
	}
	if expires := resp.Header.Get("Expires"); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			set.expiresAt = t
			set.hasExpiresAt = true
		}
	}

	logger.Info("Loaded %d public keys.", len(set.keys))
	return set, nil
}

// parseMaxAge extracts a freshness window from a Cache-Control header.
// no-store/no-cache count as zero remaining freshness.
func parseMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(strings.ToLower(directive))
		if directive == "no-store" || directive == "no-cache" {
			return 0, true
		}
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			secs, err := strconv.Atoi(v)
			if err != nil || secs < 0 {
				continue
			}
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, false
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := jwt.DecodeSegment(nStr)
	if err != nil {
		return nil, err
	}
	eBytes, err := jwt.DecodeSegment(eStr)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
