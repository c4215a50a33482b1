package authn

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-shared-secret"
	testIssuer   = "bernerspace-ecosystem"
	testAudience = "mcp-gateway"
)

func baseClaims() *tokenClaims {
	return &tokenClaims{
		ClientID: "user@example.com",
		Scopes:   []string{"read", "write"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func mintHS256(t *testing.T, secret string, mutate func(*tokenClaims)) string {
	t.Helper()
	claims := baseClaims()
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newHS256(t *testing.T) *HS256Verifier {
	t.Helper()
	v, err := NewHS256Verifier(testSecret, testIssuer, testAudience)
	require.NoError(t, err)
	return v
}

func TestNewHS256Verifier_EmptySecret(t *testing.T) {
	_, err := NewHS256Verifier("", testIssuer, testAudience)
	assert.Error(t, err)
}

func TestHS256Verifier_Valid(t *testing.T) {
	v := newHS256(t)

	id, err := v.Verify(context.Background(), mintHS256(t, testSecret, nil))
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", id.Subject)
	assert.Equal(t, []string{"read", "write"}, id.Scopes)
	assert.Equal(t, testIssuer, id.Issuer)
	assert.Equal(t, ProvenanceToken, id.Provenance)
	assert.True(t, id.HasScope("read"))
	assert.False(t, id.HasScope("admin"))
}

func TestHS256Verifier_SubFallback(t *testing.T) {
	v := newHS256(t)

	token := mintHS256(t, testSecret, func(c *tokenClaims) {
		c.ClientID = ""
		c.Subject = "sub-user@example.com"
	})
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "sub-user@example.com", id.Subject)
}

func TestHS256Verifier_ClientIDWinsOverSub(t *testing.T) {
	v := newHS256(t)

	token := mintHS256(t, testSecret, func(c *tokenClaims) {
		c.ClientID = "client@example.com"
		c.Subject = "other@example.com"
	})
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "client@example.com", id.Subject)
}

func TestHS256Verifier_Rejections(t *testing.T) {
	v := newHS256(t)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "garbage token",
			token:   "not-a-jwt",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			token:   mintHS256(t, "other-secret", nil),
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired",
			token: mintHS256(t, testSecret, func(c *tokenClaims) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			}),
			wantErr: ErrExpiredToken,
		},
		{
			name: "no expiry claim",
			token: mintHS256(t, testSecret, func(c *tokenClaims) {
				c.ExpiresAt = nil
			}),
			wantErr: ErrInvalidToken,
		},
		{
			name: "issuer mismatch",
			token: mintHS256(t, testSecret, func(c *tokenClaims) {
				c.Issuer = "someone-else"
			}),
			wantErr: ErrInvalidToken,
		},
		{
			name: "audience mismatch",
			token: mintHS256(t, testSecret, func(c *tokenClaims) {
				c.Audience = jwt.ClaimStrings{"another-service"}
			}),
			wantErr: ErrInvalidToken,
		},
		{
			name: "no subject at all",
			token: mintHS256(t, testSecret, func(c *tokenClaims) {
				c.ClientID = ""
				c.Subject = ""
			}),
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHS256Verifier_RejectsNoneAlgorithm(t *testing.T) {
	v := newHS256(t)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, baseClaims()).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHS256Verifier_RejectsAsymmetricAlgorithm(t *testing.T) {
	v := newHS256(t)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims()).SignedString(priv)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHS256Verifier_OptionalIssuerAndAudience(t *testing.T) {
	v, err := NewHS256Verifier(testSecret, "", "")
	require.NoError(t, err)

	// Any issuer and audience pass when the checks are disabled.
	token := mintHS256(t, testSecret, func(c *tokenClaims) {
		c.Issuer = "whatever"
		c.Audience = jwt.ClaimStrings{"anything"}
	})
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", id.Subject)
}
