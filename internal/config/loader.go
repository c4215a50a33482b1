package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"warden/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/warden"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from config.yaml in the specified directory,
// starting from defaults. A missing file is not an error; the defaults plus
// environment overrides must then carry the full configuration. Environment
// variables always win over file values so secrets never need to live on disk.
func LoadConfig(configPath string) (Config, error) {
	// A .env in the working directory feeds the overrides below. Already
	// exported variables are never overwritten.
	_ = godotenv.Load()

	configFilePath := filepath.Join(configPath, configFileName)
	cfg := DefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
			return Config{}, err
		}
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			// config malformed
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	applyEnvOverrides(&cfg)

	cfg.Server.Transport = strings.ToLower(cfg.Server.Transport)
	cfg.Auth.Mode = strings.ToLower(cfg.Auth.Mode)

	return cfg, nil
}

// applyEnvOverrides layers process environment values over the loaded
// configuration. The variable names match the deployment convention:
// DATABASE_URL, JWT_SECRET, TOKEN_ENCRYPTION_KEYS and the per-provider
// OAuth application credentials.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			logging.Warn("ConfigLoader", "Ignoring non-numeric PORT value %q", v)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("JWKS_URL"); v != "" {
		cfg.Auth.JWKSURL = v
	}

	// Comma-separated, newest key first. Whitespace around entries is
	// tolerated and empty entries are dropped.
	if v := os.Getenv("TOKEN_ENCRYPTION_KEYS"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		cfg.Encryption.Keys = keys
	}

	applyIntegrationEnv(&cfg.Integrations.Slack, "SLACK")
	applyIntegrationEnv(&cfg.Integrations.Google, "GOOGLE")
}

func applyIntegrationEnv(ic *IntegrationConfig, prefix string) {
	if v := os.Getenv(prefix + "_CLIENT_ID"); v != "" {
		ic.ClientID = v
	}
	if v := os.Getenv(prefix + "_CLIENT_SECRET"); v != "" {
		ic.ClientSecret = v
	}
	if v := os.Getenv(prefix + "_REDIRECT_URI"); v != "" {
		ic.RedirectURI = v
	}
}
