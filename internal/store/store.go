// Package store persists one token record per (client_id, integration_type)
// pair. It is deliberately cache-free: every read hits the database so that
// concurrent brokers and manual row surgery are always visible.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no record exists for the pair.
var ErrNotFound = errors.New("token record not found")

// TokenRecord is one stored credential. TokenJSON holds the provider token
// payload as canonical JSON, possibly sealed in an encryption envelope; the
// store treats it as opaque text.
type TokenRecord struct {
	ClientID        string
	IntegrationType string
	TokenJSON       string
	StoredAt        time.Time
}

// Store is the credential persistence boundary.
type Store interface {
	// Upsert inserts the record or replaces the existing row for the same
	// (client_id, integration_type) pair, token payload and timestamp both.
	Upsert(ctx context.Context, rec TokenRecord) error

	// Get returns the record for the pair, or ErrNotFound.
	Get(ctx context.Context, clientID, integrationType string) (*TokenRecord, error)

	Close() error
}
