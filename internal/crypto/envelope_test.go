package crypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestNewEnvelope_InvalidKeys(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{name: "not base64", keys: []string{"!!not-base64!!"}},
		{name: "wrong length", keys: []string{base64.StdEncoding.EncodeToString([]byte("short"))}},
		{name: "duplicate key", keys: []string{testKeyStatic, testKeyStatic}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnvelope(tt.keys)
			assert.Error(t, err)
		})
	}
}

// testKeyStatic is a fixed 32-byte key for tests that need determinism.
var testKeyStatic = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestNewEnvelope_URLSafeKeys(t *testing.T) {
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	e, err := NewEnvelope([]string{base64.URLEncoding.EncodeToString(raw)})
	require.NoError(t, err)
	assert.True(t, e.Enabled())
}

func TestEnvelope_RoundTrip(t *testing.T) {
	ctx := context.Background()
	e, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)
	require.True(t, e.Enabled())

	sealed, err := e.Encrypt(ctx, `{"access_token":"xoxb-secret"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "enc:v1:"), "sealed value carries the envelope prefix")
	assert.NotContains(t, sealed, "xoxb-secret")

	plaintext, wasEncrypted, err := e.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.True(t, wasEncrypted)
	assert.Equal(t, `{"access_token":"xoxb-secret"}`, plaintext)
}

func TestEnvelope_PlaintextPassThrough(t *testing.T) {
	ctx := context.Background()
	e, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)

	plaintext, wasEncrypted, err := e.Decrypt(ctx, `{"access_token":"legacy"}`)
	require.NoError(t, err)
	assert.False(t, wasEncrypted, "unprefixed values are legacy plaintext")
	assert.Equal(t, `{"access_token":"legacy"}`, plaintext)
}

func TestEnvelope_EmptyRing(t *testing.T) {
	ctx := context.Background()
	e, err := NewEnvelope(nil)
	require.NoError(t, err)
	assert.False(t, e.Enabled())

	// Encrypt is a no-op.
	out, err := e.Encrypt(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "value", out)

	// Plaintext still passes through.
	plaintext, wasEncrypted, err := e.Decrypt(ctx, "value")
	require.NoError(t, err)
	assert.False(t, wasEncrypted)
	assert.Equal(t, "value", plaintext)

	// A sealed value cannot be opened without keys.
	sealer, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)
	sealed, err := sealer.Encrypt(ctx, "value")
	require.NoError(t, err)

	_, wasEncrypted, err = e.Decrypt(ctx, sealed)
	assert.True(t, wasEncrypted)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestEnvelope_Rotation(t *testing.T) {
	ctx := context.Background()
	oldKey := testKey(t)
	newKey := testKey(t)

	oldRing, err := NewEnvelope([]string{oldKey})
	require.NoError(t, err)
	sealed, err := oldRing.Encrypt(ctx, "pre-rotation")
	require.NoError(t, err)

	// After rotation the old key rides along at the back of the ring.
	rotated, err := NewEnvelope([]string{newKey, oldKey})
	require.NoError(t, err)
	require.Len(t, rotated.KeyIds(), 2)

	plaintext, wasEncrypted, err := rotated.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.True(t, wasEncrypted)
	assert.Equal(t, "pre-rotation", plaintext)

	// New writes use the newest key.
	resealed, err := rotated.Encrypt(ctx, "post-rotation")
	require.NoError(t, err)
	assert.Contains(t, resealed, rotated.KeyIds()[0])

	plaintext, _, err = rotated.Decrypt(ctx, resealed)
	require.NoError(t, err)
	assert.Equal(t, "post-rotation", plaintext)
}

func TestEnvelope_UnknownKey(t *testing.T) {
	ctx := context.Background()
	a, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)
	b, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)

	sealed, err := a.Encrypt(ctx, "value")
	require.NoError(t, err)

	_, wasEncrypted, err := b.Decrypt(ctx, sealed)
	assert.True(t, wasEncrypted)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestEnvelope_TamperedPayload(t *testing.T) {
	ctx := context.Background()
	e, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)

	sealed, err := e.Encrypt(ctx, "value")
	require.NoError(t, err)

	// Flip a character near the end of the base64 payload.
	tampered := []byte(sealed)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, wasEncrypted, err := e.Decrypt(ctx, string(tampered))
	assert.True(t, wasEncrypted)
	assert.Error(t, err)
}

func TestEnvelope_MalformedEnvelope(t *testing.T) {
	ctx := context.Background()
	e, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		stored string
	}{
		{name: "prefix only", stored: "enc:v1:"},
		{name: "missing payload", stored: "enc:v1:abcd1234"},
		{name: "empty key id", stored: "enc:v1::cGF5bG9hZA"},
		{name: "payload not base64", stored: "enc:v1:abcd1234:@@@@"},
		{name: "payload too short", stored: "enc:v1:abcd1234:cGF5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, wasEncrypted, err := e.Decrypt(ctx, tt.stored)
			assert.True(t, wasEncrypted)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestEnvelope_EmptyPlaintext(t *testing.T) {
	ctx := context.Background()
	e, err := NewEnvelope([]string{testKey(t)})
	require.NoError(t, err)

	sealed, err := e.Encrypt(ctx, "")
	require.NoError(t, err)

	plaintext, wasEncrypted, err := e.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.True(t, wasEncrypted)
	assert.Equal(t, "", plaintext)
}

func TestKeyIdStability(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	assert.Equal(t, keyId(raw), keyId(raw))
	assert.Len(t, keyId(raw), 8)
}
