// Package google integrates Google Workspace with the gateway: the OAuth
// descriptor for the consent flow, thin Gmail and Calendar REST clients, and
// the tool provider the MCP surface is built from.
package google

import (
	"time"

	"warden/internal/config"
	"warden/internal/oauth"
)

const (
	// Integration is the integration_type Google credentials are stored
	// under and the callback route's path segment.
	Integration = "google"

	AuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL = "https://oauth2.googleapis.com/token"
)

// NewProvider builds the Google OAuth descriptor. access_type=offline and
// prompt=consent make Google hand out refresh tokens on every consent, and
// access tokens default to an hour when the payload carries no expires_in.
func NewProvider(cfg config.IntegrationConfig, redirectURI string) *oauth.Provider {
	return &oauth.Provider{
		Name:         Integration,
		AuthURL:      AuthURL,
		TokenURL:     TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  redirectURI,
		Scopes:       cfg.Scopes,
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
		DefaultExpiresIn: time.Hour,
		Enrich:           enrichPayload,
	}
}

func enrichPayload(payload oauth.TokenPayload, _ string, now time.Time) oauth.TokenPayload {
	return payload.Merge(oauth.TokenPayload{
		"created_at": now.UTC().Format(time.RFC3339),
	})
}
