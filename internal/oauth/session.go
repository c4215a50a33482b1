package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/crypto"
	"warden/internal/store"
	"warden/pkg/logging"
)

// Session resolves credentials for one provider. Resolve is the single entry
// point tools go through: it either produces a usable access token or the
// consent URL that will eventually produce one. Anything wrong with the
// stored credential, from a missing row to a failed refresh, funnels into
// AuthorizationRequired rather than an error; errors are reserved for the
// broker's own infrastructure failing.
type Session struct {
	provider  *Provider
	store     store.Store
	envelope  *crypto.Envelope
	exchanger *ExchangeClient

	now func() time.Time
}

// NewSession wires a session from its dependencies.
func NewSession(provider *Provider, st store.Store, envelope *crypto.Envelope, exchanger *ExchangeClient) *Session {
	return &Session{
		provider:  provider,
		store:     st,
		envelope:  envelope,
		exchanger: exchanger,
		now:       time.Now,
	}
}

// Provider returns the session's provider descriptor.
func (s *Session) Provider() *Provider {
	return s.provider
}

// ConsentURL builds the authorization URL for the given identity.
func (s *Session) ConsentURL(identity string) string {
	return s.provider.ConsentURL(identity)
}

// Resolve loads the stored credential for identity and turns it into a
// Result. Expired tokens are refreshed in place when a refresh token exists;
// the refreshed payload is merged over the stored one and persisted before
// the token is handed out. Concurrent resolves for the same identity may
// both refresh; the last write wins and both callers get working tokens.
func (s *Session) Resolve(ctx context.Context, identity string) (Result, error) {
	rec, err := s.store.Get(ctx, identity, s.provider.Name)
	if errors.Is(err, store.ErrNotFound) {
		logging.Debug("OAuth", "No %s credential for %s", s.provider.Name, logging.TruncateID(identity))
		return s.authRequired(identity), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s credential: %w", s.provider.Name, err)
	}

	plaintext, wasEncrypted, err := s.envelope.Decrypt(ctx, rec.TokenJSON)
	if err != nil {
		logging.Warn("OAuth", "Stored %s credential for %s cannot be opened, forcing re-authorization: %v",
			s.provider.Name, logging.TruncateID(identity), err)
		return s.authRequired(identity), nil
	}
	if !wasEncrypted && s.envelope.Enabled() {
		logging.Debug("OAuth", "Plaintext %s credential for %s predates encryption; it will be sealed on next write",
			s.provider.Name, logging.TruncateID(identity))
	}

	payload, err := ParsePayload([]byte(plaintext))
	if err != nil {
		logging.Warn("OAuth", "Stored %s credential for %s is corrupt, forcing re-authorization: %v",
			s.provider.Name, logging.TruncateID(identity), err)
		return s.authRequired(identity), nil
	}

	token := payload.AccessToken()
	if token.IsEmpty() {
		logging.Warn("OAuth", "Stored %s credential for %s has no access token, forcing re-authorization",
			s.provider.Name, logging.TruncateID(identity))
		return s.authRequired(identity), nil
	}

	if !s.expired(rec.StoredAt, payload) {
		return Authorized{Token: token, Payload: payload}, nil
	}

	refresh := payload.RefreshToken()
	if refresh.IsEmpty() {
		logging.Debug("OAuth", "Expired %s credential for %s has no refresh token",
			s.provider.Name, logging.TruncateID(identity))
		return s.authRequired(identity), nil
	}

	refreshed, err := s.exchanger.Refresh(ctx, s.provider, refresh.Value())
	if err != nil {
		logging.Warn("OAuth", "Refreshing %s credential for %s failed: %v",
			s.provider.Name, logging.TruncateID(identity), err)
		return s.authRequired(identity), nil
	}

	merged := payload.Merge(refreshed)
	if err := s.StoreToken(ctx, identity, merged); err != nil {
		return nil, err
	}

	logging.Info("OAuth", "Refreshed %s credential for %s", s.provider.Name, logging.TruncateID(identity))
	return Authorized{Token: merged.AccessToken(), Payload: merged}, nil
}

// ExchangeCode trades an authorization code for a token payload. The caller
// still has to persist it with StoreToken.
func (s *Session) ExchangeCode(ctx context.Context, code string) (TokenPayload, error) {
	return s.exchanger.Exchange(ctx, s.provider, code)
}

// EnrichPayload applies the provider's enrichment hook, if any.
func (s *Session) EnrichPayload(payload TokenPayload, identity string) TokenPayload {
	if s.provider.Enrich == nil {
		return payload
	}
	return s.provider.Enrich(payload, identity, s.now())
}

// StoreToken canonicalizes, seals and upserts the payload for identity,
// stamping stored_at with the current time.
func (s *Session) StoreToken(ctx context.Context, identity string, payload TokenPayload) error {
	canonical, err := payload.Canonical()
	if err != nil {
		return fmt.Errorf("encode %s token payload: %w", s.provider.Name, err)
	}
	sealed, err := s.envelope.Encrypt(ctx, canonical)
	if err != nil {
		return fmt.Errorf("seal %s token payload: %w", s.provider.Name, err)
	}
	if err := s.store.Upsert(ctx, store.TokenRecord{
		ClientID:        identity,
		IntegrationType: s.provider.Name,
		TokenJSON:       sealed,
		StoredAt:        s.now(),
	}); err != nil {
		return fmt.Errorf("persist %s credential: %w", s.provider.Name, err)
	}
	logging.Debug("OAuth", "Stored %s credential for %s", s.provider.Name, logging.TruncateID(identity))
	return nil
}

// expired judges the stored payload against stored_at. With no expires_in
// the provider's default applies; with no default either, a payload that
// cannot be refreshed is treated as non-expiring and one that can is given
// an hour.
func (s *Session) expired(storedAt time.Time, payload TokenPayload) bool {
	expiresIn, ok := payload.ExpiresIn()
	if !ok {
		switch {
		case s.provider.DefaultExpiresIn > 0:
			expiresIn = s.provider.DefaultExpiresIn
		case payload.RefreshToken().IsEmpty():
			return false
		default:
			expiresIn = time.Hour
		}
	}
	return s.now().After(storedAt.Add(expiresIn))
}

func (s *Session) authRequired(identity string) AuthorizationRequired {
	return AuthorizationRequired{AuthorizationURL: s.provider.ConsentURL(identity)}
}
