package authn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"warden/pkg/logging"
)

// staleGrace bounds how long an expired key set may keep serving requests
// when the endpoint cannot be reached.
const staleGrace = 24 * time.Hour

// JWKSCache caches the key set from a single JWKS endpoint. Entries are
// reused until the TTL passes; when a refetch fails, the stale set keeps
// serving within the grace window so issuer outages do not take warden down
// with them.
type JWKSCache struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu              sync.RWMutex
	set             jwk.Set
	expiry          time.Time
	allowStaleUntil time.Time
}

// NewJWKSCache creates a cache for the given endpoint. ttl falls back to one
// hour when zero or negative.
func NewJWKSCache(url string, ttl time.Duration) *JWKSCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWKSCache{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get returns the cached key set, fetching or refreshing as needed.
func (c *JWKSCache) Get(ctx context.Context) (jwk.Set, error) {
	if set := c.getFresh(); set != nil {
		return set, nil
	}
	return c.fetch(ctx)
}

// Invalidate drops the cached set so the next Get refetches. Used when a
// token names a kid the cached set does not have.
func (c *JWKSCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = nil
	c.expiry = time.Time{}
	c.allowStaleUntil = time.Time{}
}

func (c *JWKSCache) getFresh() jwk.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.set != nil && time.Now().Before(c.expiry) {
		return c.set
	}
	return nil
}

func (c *JWKSCache) fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if set := c.getStale(); set != nil {
			logging.Warn("Authn", "JWKS refresh from %s failed, serving stale keys: %v", c.url, err)
			return set, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if set := c.getStale(); set != nil {
			logging.Warn("Authn", "JWKS endpoint %s returned %d, serving stale keys", c.url, resp.StatusCode)
			return set, nil
		}
		return nil, errors.New("jwks fetch: unexpected status " + strconv.Itoa(resp.StatusCode))
	}

	// Size guard
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("jwks parse: %w", err)
	}

	now := time.Now()
	c.mu.Lock()
	c.set = set
	c.expiry = now.Add(c.ttl)
	c.allowStaleUntil = now.Add(c.ttl).Add(staleGrace)
	c.mu.Unlock()

	return set, nil
}

func (c *JWKSCache) getStale() jwk.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.set != nil && time.Now().Before(c.allowStaleUntil) {
		return c.set
	}
	return nil
}

// JWKSVerifier verifies asymmetrically signed tokens against a remote key
// set. Keys are matched by kid; when the key publishes an alg it must match
// the token's as well.
type JWKSVerifier struct {
	cache    *JWKSCache
	issuer   string
	audience string
}

var _ Verifier = (*JWKSVerifier)(nil)

func NewJWKSVerifier(jwksURL string, cacheTTL time.Duration, issuer, audience string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks verifier requires an endpoint URL")
	}
	return &JWKSVerifier{
		cache:    NewJWKSCache(jwksURL, cacheTTL),
		issuer:   issuer,
		audience: audience,
	}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}

		key, err := v.lookupKey(ctx, kid)
		if err != nil {
			return nil, err
		}

		if alg := key.Algorithm(); alg != nil && alg.String() != "" && alg.String() != token.Method.Alg() {
			return nil, fmt.Errorf("key %s is for %s, token uses %s", kid, alg.String(), token.Method.Alg())
		}

		var pubKey interface{}
		if err := key.Raw(&pubKey); err != nil {
			return nil, fmt.Errorf("materialize key %s: %w", kid, err)
		}
		return pubKey, nil
	}, parserOptions([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}, v.issuer, v.audience)...)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return identityFromClaims(claims)
}

// lookupKey finds kid in the cached set, refetching once on a miss since an
// unknown kid usually means the issuer rotated keys under us.
func (v *JWKSVerifier) lookupKey(ctx context.Context, kid string) (jwk.Key, error) {
	set, err := v.cache.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	if key, ok := set.LookupKeyID(kid); ok {
		return key, nil
	}

	v.cache.Invalidate()
	set, err = v.cache.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("refetch jwks: %w", err)
	}
	if key, ok := set.LookupKeyID(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("no key %s in jwks", kid)
}
