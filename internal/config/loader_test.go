package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile places a config.yaml with the given content into dir.
func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644)
	require.NoError(t, err)
}

func clearWardenEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_BASE_URL", "PORT", "LOG_LEVEL",
		"DATABASE_URL", "JWT_SECRET", "JWKS_URL", "TOKEN_ENCRYPTION_KEYS",
		"SLACK_CLIENT_ID", "SLACK_CLIENT_SECRET", "SLACK_REDIRECT_URI",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	clearWardenEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	clearWardenEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  port: 9090
  transport: sse
auth:
  mode: jwks
  jwksURL: https://issuer.example.com/jwks.json
integrations:
  slack:
    enabled: true
    clientID: slack-app
    clientSecret: slack-secret
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, MCPTransportSSE, cfg.Server.Transport)
	assert.Equal(t, AuthModeJWKS, cfg.Auth.Mode)
	assert.Equal(t, "https://issuer.example.com/jwks.json", cfg.Auth.JWKSURL)
	assert.True(t, cfg.Integrations.Slack.Enabled)
	assert.Equal(t, "slack-app", cfg.Integrations.Slack.ClientID)
	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "file:warden.db", cfg.Database.URL)
	assert.NotEmpty(t, cfg.Integrations.Slack.Scopes, "scopes default survives a partial override")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearWardenEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
database:
  url: file:from-file.db
auth:
  secret: from-file
`)

	t.Setenv("DATABASE_URL", "postgres://warden:pw@db.internal:5432/warden")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("TOKEN_ENCRYPTION_KEYS", " newkey , oldkey ,")
	t.Setenv("SLACK_CLIENT_ID", "env-slack-id")
	t.Setenv("SLACK_CLIENT_SECRET", "env-slack-secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "https://env.example.com/oauth/google/callback")
	t.Setenv("PORT", "7070")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://warden:pw@db.internal:5432/warden", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, []string{"newkey", "oldkey"}, cfg.Encryption.Keys,
		"keys are trimmed and empty entries dropped")
	assert.Equal(t, "env-slack-id", cfg.Integrations.Slack.ClientID)
	assert.Equal(t, "env-slack-secret", cfg.Integrations.Slack.ClientSecret)
	assert.Equal(t, "https://env.example.com/oauth/google/callback", cfg.Integrations.Google.RedirectURI)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfig_IgnoresBadPortEnv(t *testing.T) {
	clearWardenEnv(t)
	t.Setenv("PORT", "not-a-port")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	clearWardenEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, "server: [this is not a mapping")

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_NormalizesCase(t *testing.T) {
	clearWardenEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  transport: SSE
auth:
  mode: HS256
  secret: s
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, MCPTransportSSE, cfg.Server.Transport)
	assert.Equal(t, AuthModeHS256, cfg.Auth.Mode)
	assert.NoError(t, cfg.Validate())
}
