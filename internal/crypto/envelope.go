// Package crypto seals token payloads at rest. Values are wrapped in a
// versioned envelope that names the key used, so the key ring can rotate
// without re-encrypting stored rows: the newest key encrypts, every key
// still on the ring decrypts.
package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	"github.com/hashicorp/go-kms-wrapping/v2/aead"
	"github.com/hashicorp/go-kms-wrapping/v2/extras/multi"
)

// envelopePrefix marks a sealed value. Stored values without it are treated
// as plaintext from before encryption was enabled and returned unchanged.
const envelopePrefix = "enc:v1:"

var (
	// ErrMalformedEnvelope means the value carried the envelope prefix but
	// could not be parsed into key id and payload.
	ErrMalformedEnvelope = errors.New("malformed encryption envelope")

	// ErrUnknownKey means the envelope names a key id that is not on the
	// ring. The row needs a key that was rotated out, or the ring is empty.
	ErrUnknownKey = errors.New("envelope key not in ring")
)

// Envelope seals and opens token payloads with an AES-256-GCM key ring.
// A nil ring (no configured keys) passes values through unchanged.
type Envelope struct {
	pool   *multi.PooledWrapper
	keyIds []string
}

// NewEnvelope builds an envelope from base64-encoded 32-byte keys, newest
// first. An empty slice yields a pass-through envelope that never encrypts.
func NewEnvelope(keys []string) (*Envelope, error) {
	if len(keys) == 0 {
		return &Envelope{}, nil
	}

	ctx := context.Background()
	e := &Envelope{}
	for i, encoded := range keys {
		raw, err := decodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("encryption key %d: %w", i, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("encryption key %d: need 32 bytes for AES-256, got %d", i, len(raw))
		}

		w := aead.NewWrapper()
		id := keyId(raw)
		if _, err := w.SetConfig(ctx, wrapping.WithKeyId(id)); err != nil {
			return nil, fmt.Errorf("encryption key %d: %w", i, err)
		}
		if err := w.SetAesGcmKeyBytes(raw); err != nil {
			return nil, fmt.Errorf("encryption key %d: %w", i, err)
		}

		if e.pool == nil {
			// First key is the newest; it becomes the encrypting wrapper.
			pool, err := multi.NewPooledWrapper(ctx, w)
			if err != nil {
				return nil, fmt.Errorf("encryption key %d: %w", i, err)
			}
			e.pool = pool
		} else {
			added, err := e.pool.AddWrapper(ctx, w)
			if err != nil {
				return nil, fmt.Errorf("encryption key %d: %w", i, err)
			}
			if !added {
				return nil, fmt.Errorf("encryption key %d: duplicate key id %s", i, id)
			}
		}
		e.keyIds = append(e.keyIds, id)
	}

	return e, nil
}

// Enabled reports whether the ring holds at least one key.
func (e *Envelope) Enabled() bool {
	return e.pool != nil
}

// KeyIds returns the ids on the ring, newest first. Safe to log.
func (e *Envelope) KeyIds() []string {
	return append([]string(nil), e.keyIds...)
}

// Encrypt seals plaintext under the newest key and returns the envelope
// string. With an empty ring the plaintext is returned unchanged.
func (e *Envelope) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if e.pool == nil {
		return plaintext, nil
	}

	blob, err := e.pool.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	// The aead wrapper packs iv||ciphertext into Ciphertext.
	payload := base64.RawURLEncoding.EncodeToString(blob.Ciphertext)
	return envelopePrefix + blob.KeyInfo.KeyId + ":" + payload, nil
}

// Decrypt opens a stored value. The second return reports whether the value
// was enveloped: plaintext rows from before encryption was enabled come back
// as (value, false, nil). A prefixed value that cannot be opened returns an
// error; callers treat that as the credential being unavailable.
func (e *Envelope) Decrypt(ctx context.Context, stored string) (string, bool, error) {
	rest, ok := strings.CutPrefix(stored, envelopePrefix)
	if !ok {
		return stored, false, nil
	}

	id, payload, ok := strings.Cut(rest, ":")
	if !ok || id == "" || payload == "" {
		return "", true, ErrMalformedEnvelope
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", true, fmt.Errorf("%w: %s", ErrMalformedEnvelope, err)
	}
	if len(raw) <= 12 {
		// Too short to hold a nonce and any ciphertext.
		return "", true, ErrMalformedEnvelope
	}

	if e.pool == nil {
		return "", true, fmt.Errorf("%w: ring is empty, value sealed with key %s", ErrUnknownKey, id)
	}

	plaintext, err := e.pool.Decrypt(ctx, &wrapping.BlobInfo{
		Ciphertext: raw,
		KeyInfo:    &wrapping.KeyInfo{KeyId: id},
	})
	if err != nil {
		if errors.Is(err, multi.ErrKeyNotFound) {
			return "", true, fmt.Errorf("%w: %s", ErrUnknownKey, id)
		}
		return "", true, fmt.Errorf("decrypt with key %s: %w", id, err)
	}

	return string(plaintext), true, nil
}

// keyId derives a stable, loggable identifier from key material.
func keyId(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:4])
}

func decodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return raw, nil
	}
	// Fernet-style keys use the URL-safe alphabet.
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	return raw, nil
}
