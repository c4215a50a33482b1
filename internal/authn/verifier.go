package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every verification failure that is not a plain
	// expiry: bad signature, wrong algorithm, malformed token, issuer or
	// audience mismatch, unknown signing key. Callers must not surface the
	// distinction to clients.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken means the token verified but its exp has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Verifier checks a raw bearer token and returns the caller identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// tokenClaims is the claim set warden issues and accepts. ClientID takes
// precedence over the registered sub as the credential-store key.
type tokenClaims struct {
	ClientID string   `json:"client_id,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) subject() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return c.Subject
}

// identityFromClaims validates the non-cryptographic requirements shared by
// both verifier modes.
func identityFromClaims(claims *tokenClaims) (*Identity, error) {
	subject := claims.subject()
	if subject == "" {
		return nil, fmt.Errorf("%w: no client_id or sub claim", ErrInvalidToken)
	}
	return &Identity{
		Subject:    subject,
		Scopes:     claims.Scopes,
		Issuer:     claims.Issuer,
		Provenance: ProvenanceToken,
	}, nil
}

// mapJWTError folds the jwt library's error set into the two cases callers
// distinguish. Expiry is separated only for logging and metrics; both map to
// the same generic 401 at the HTTP boundary.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %s", ErrExpiredToken, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidToken, err)
}

// HS256Verifier verifies tokens signed with a shared symmetric secret.
type HS256Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

var _ Verifier = (*HS256Verifier)(nil)

// NewHS256Verifier builds a shared-secret verifier. Empty issuer or audience
// disables the respective claim check.
func NewHS256Verifier(secret, issuer, audience string) (*HS256Verifier, error) {
	if secret == "" {
		return nil, errors.New("hs256 verifier requires a non-empty secret")
	}
	return &HS256Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}, nil
}

func (v *HS256Verifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, parserOptions([]string{"HS256"}, v.issuer, v.audience)...)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return identityFromClaims(claims)
}

func parserOptions(methods []string, issuer, audience string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return opts
}
