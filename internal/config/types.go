package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MCPTransportStreamableHTTP is the streamable HTTP transport.
	MCPTransportStreamableHTTP = "streamable-http"
	// MCPTransportSSE is the Server-Sent Events transport.
	MCPTransportSSE = "sse"
)

const (
	// AuthModeHS256 verifies bearer tokens with a shared symmetric secret.
	AuthModeHS256 = "hs256"
	// AuthModeJWKS verifies bearer tokens against a remote JWKS endpoint.
	AuthModeJWKS = "jwks"
)

// Integration type identifiers, used as the integration_type column value
// and as the callback route segment.
const (
	IntegrationSlack  = "slack"
	IntegrationGoogle = "google"
)

// Config is the top-level configuration structure for warden.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Encryption   EncryptionConfig   `yaml:"encryption"`
	Database     DatabaseConfig     `yaml:"database"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	LogLevel     string             `yaml:"logLevel,omitempty"` // debug, info, warn, error (default: info)
}

// ServerConfig defines the HTTP/MCP serving surface.
type ServerConfig struct {
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Port      int    `yaml:"port,omitempty"`      // Port for the gateway endpoint (default: 8080)
	Transport string `yaml:"transport,omitempty"` // MCP transport (default: streamable-http)
	BaseURL   string `yaml:"baseURL,omitempty"`   // Public base URL, used to derive callback redirect URIs
}

// AuthConfig defines how inbound bearer tokens are verified.
type AuthConfig struct {
	Mode     string `yaml:"mode,omitempty"`     // hs256 or jwks (default: hs256)
	Secret   string `yaml:"secret,omitempty"`   // shared secret for hs256 (env: JWT_SECRET)
	JWKSURL  string `yaml:"jwksURL,omitempty"`  // key set endpoint for jwks mode (env: JWKS_URL)
	Issuer   string `yaml:"issuer,omitempty"`   // expected iss claim; empty disables the check
	Audience string `yaml:"audience,omitempty"` // expected aud claim; empty disables the check

	// JWKSCacheTTL bounds how long a fetched key set is reused before a
	// refetch is attempted (default: 1h).
	JWKSCacheTTL time.Duration `yaml:"jwksCacheTTL,omitempty"`

	// HeaderAuth trusts a request header instead of verifying a token.
	// Perimeter-trust only; off unless explicitly enabled.
	HeaderAuth HeaderAuthConfig `yaml:"headerAuth,omitempty"`
}

// HeaderAuthConfig is the opt-in trusted-header escape hatch. Enabling it
// reduces the security guarantee to whatever sits in front of the gateway.
type HeaderAuthConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Header  string `yaml:"header,omitempty"` // default: X-Forwarded-User
}

// EncryptionConfig holds the token-at-rest key ring, newest key first.
// Keys are base64-encoded 32-byte AES keys (env: TOKEN_ENCRYPTION_KEYS,
// comma-separated). An empty ring stores token payloads as plaintext.
type EncryptionConfig struct {
	Keys []string `yaml:"keys,omitempty"`
}

// DatabaseConfig selects the credential store backend by DSN scheme:
// postgres:// uses pgx, anything else is treated as a sqlite path/DSN.
type DatabaseConfig struct {
	URL string `yaml:"url,omitempty"` // env: DATABASE_URL (default: file:warden.db)
}

// IntegrationsConfig enables and configures the external providers.
type IntegrationsConfig struct {
	Slack  IntegrationConfig `yaml:"slack,omitempty"`
	Google IntegrationConfig `yaml:"google,omitempty"`
}

// IntegrationConfig is the per-provider OAuth application registration.
type IntegrationConfig struct {
	Enabled      bool     `yaml:"enabled,omitempty"`
	ClientID     string   `yaml:"clientID,omitempty"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	RedirectURI  string   `yaml:"redirectURI,omitempty"` // derived from server.baseURL when empty
	Scopes       []string `yaml:"scopes,omitempty"`
}

// DefaultConfig returns the default configuration for warden.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8080,
			Transport: MCPTransportStreamableHTTP,
			BaseURL:   "http://localhost:8080",
		},
		Auth: AuthConfig{
			Mode:         AuthModeHS256,
			JWKSCacheTTL: time.Hour,
			HeaderAuth: HeaderAuthConfig{
				Header: "X-Forwarded-User",
			},
		},
		Database: DatabaseConfig{
			URL: "file:warden.db",
		},
		Integrations: IntegrationsConfig{
			Slack: IntegrationConfig{
				Scopes: []string{"chat:write", "channels:read", "groups:read", "im:read", "mpim:read"},
			},
			Google: IntegrationConfig{
				Scopes: []string{
					"https://www.googleapis.com/auth/gmail.readonly",
					"https://www.googleapis.com/auth/gmail.send",
					"https://www.googleapis.com/auth/calendar.events",
				},
			},
		},
		LogLevel: "info",
	}
}

// RedirectURIFor returns the configured redirect URI for an integration,
// falling back to <baseURL>/oauth/<integration>/callback.
func (c Config) RedirectURIFor(integration string) string {
	var ic IntegrationConfig
	switch integration {
	case IntegrationSlack:
		ic = c.Integrations.Slack
	case IntegrationGoogle:
		ic = c.Integrations.Google
	}
	if ic.RedirectURI != "" {
		return ic.RedirectURI
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/oauth/" + integration + "/callback"
}

// Validate checks the configuration for operator errors. It is called once
// at startup; failures are ConfigurationError values so the CLI can report
// them with their fix and a distinct exit code.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigurationError("server.port",
			fmt.Sprintf("must be in range 1-65535, got %d", c.Server.Port))
	}
	switch c.Server.Transport {
	case MCPTransportStreamableHTTP, MCPTransportSSE:
	default:
		return NewConfigurationError("server.transport",
			fmt.Sprintf("must be %q or %q, got %q", MCPTransportStreamableHTTP, MCPTransportSSE, c.Server.Transport))
	}

	switch c.Auth.Mode {
	case AuthModeHS256:
		if c.Auth.Secret == "" && !c.Auth.HeaderAuth.Enabled {
			return NewConfigurationErrorWithSuggestion("auth.secret",
				fmt.Sprintf("required for %s mode", AuthModeHS256), "set JWT_SECRET")
		}
	case AuthModeJWKS:
		if c.Auth.JWKSURL == "" {
			return NewConfigurationErrorWithSuggestion("auth.jwksURL",
				fmt.Sprintf("required for %s mode", AuthModeJWKS), "set JWKS_URL")
		}
	default:
		return NewConfigurationError("auth.mode",
			fmt.Sprintf("must be %q or %q, got %q", AuthModeHS256, AuthModeJWKS, c.Auth.Mode))
	}

	if c.Auth.HeaderAuth.Enabled && c.Auth.HeaderAuth.Header == "" {
		return NewConfigurationError("auth.headerAuth.header", "required when header auth is enabled")
	}

	if c.Database.URL == "" {
		return NewConfigurationErrorWithSuggestion("database.url", "required", "set DATABASE_URL")
	}

	for _, it := range []struct {
		name string
		cfg  IntegrationConfig
	}{
		{IntegrationSlack, c.Integrations.Slack},
		{IntegrationGoogle, c.Integrations.Google},
	} {
		if !it.cfg.Enabled {
			continue
		}
		if it.cfg.ClientID == "" {
			return NewConfigurationErrorWithSuggestion("integrations."+it.name+".clientID",
				"required when enabled", "set "+strings.ToUpper(it.name)+"_CLIENT_ID")
		}
		if it.cfg.ClientSecret == "" {
			return NewConfigurationErrorWithSuggestion("integrations."+it.name+".clientSecret",
				"required when enabled", "set "+strings.ToUpper(it.name)+"_CLIENT_SECRET")
		}
		if len(it.cfg.Scopes) == 0 {
			return NewConfigurationError("integrations."+it.name+".scopes", "must not be empty")
		}
	}

	return nil
}
