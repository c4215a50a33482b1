package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, MCPTransportStreamableHTTP, cfg.Server.Transport)
	assert.Equal(t, AuthModeHS256, cfg.Auth.Mode)
	assert.False(t, cfg.Auth.HeaderAuth.Enabled, "header auth must be off by default")
	assert.Equal(t, "X-Forwarded-User", cfg.Auth.HeaderAuth.Header)
	assert.Empty(t, cfg.Encryption.Keys, "no encryption keys by default")
	assert.False(t, cfg.Integrations.Slack.Enabled)
	assert.False(t, cfg.Integrations.Google.Enabled)
	assert.NotEmpty(t, cfg.Integrations.Slack.Scopes)
	assert.NotEmpty(t, cfg.Integrations.Google.Scopes)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Auth.Secret = "test-secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid hs256 config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid jwks config",
			mutate: func(c *Config) {
				c.Auth.Mode = AuthModeJWKS
				c.Auth.Secret = ""
				c.Auth.JWKSURL = "https://issuer.example.com/.well-known/jwks.json"
			},
		},
		{
			name: "hs256 without secret",
			mutate: func(c *Config) {
				c.Auth.Secret = ""
			},
			wantErr: "auth.secret",
		},
		{
			name: "hs256 without secret but header auth enabled",
			mutate: func(c *Config) {
				c.Auth.Secret = ""
				c.Auth.HeaderAuth.Enabled = true
			},
		},
		{
			name: "jwks without url",
			mutate: func(c *Config) {
				c.Auth.Mode = AuthModeJWKS
			},
			wantErr: "auth.jwksURL",
		},
		{
			name: "unknown auth mode",
			mutate: func(c *Config) {
				c.Auth.Mode = "oauth2"
			},
			wantErr: "auth.mode",
		},
		{
			name: "invalid port",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: "server.port",
		},
		{
			name: "unknown transport",
			mutate: func(c *Config) {
				c.Server.Transport = "stdio"
			},
			wantErr: "server.transport",
		},
		{
			name: "empty database url",
			mutate: func(c *Config) {
				c.Database.URL = ""
			},
			wantErr: "database.url",
		},
		{
			name: "enabled integration without client id",
			mutate: func(c *Config) {
				c.Integrations.Slack.Enabled = true
				c.Integrations.Slack.ClientSecret = "shh"
			},
			wantErr: "integrations.slack.clientID",
		},
		{
			name: "enabled integration without client secret",
			mutate: func(c *Config) {
				c.Integrations.Google.Enabled = true
				c.Integrations.Google.ClientID = "gid"
			},
			wantErr: "integrations.google.clientSecret",
		},
		{
			name: "enabled integration without scopes",
			mutate: func(c *Config) {
				c.Integrations.Slack.Enabled = true
				c.Integrations.Slack.ClientID = "sid"
				c.Integrations.Slack.ClientSecret = "shh"
				c.Integrations.Slack.Scopes = nil
			},
			wantErr: "integrations.slack.scopes",
		},
		{
			name: "disabled integration may be incomplete",
			mutate: func(c *Config) {
				c.Integrations.Slack.Enabled = false
				c.Integrations.Slack.ClientID = ""
				c.Integrations.Slack.ClientSecret = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReturnsConfigurationError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Secret = ""

	err := cfg.Validate()
	var cerr ConfigurationError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, "auth.secret", cerr.Field)
	assert.Equal(t, "set JWT_SECRET", cerr.Suggestion)
	assert.Contains(t, cerr.DetailedError(), "Suggestion: set JWT_SECRET")
}

func TestConfig_RedirectURIFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.BaseURL = "https://warden.example.com/"

	assert.Equal(t, "https://warden.example.com/oauth/slack/callback", cfg.RedirectURIFor(IntegrationSlack))
	assert.Equal(t, "https://warden.example.com/oauth/google/callback", cfg.RedirectURIFor(IntegrationGoogle))

	cfg.Integrations.Slack.RedirectURI = "https://edge.example.com/cb"
	assert.Equal(t, "https://edge.example.com/cb", cfg.RedirectURIFor(IntegrationSlack),
		"explicit redirect URI wins over the derived one")
}
