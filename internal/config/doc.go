// Package config provides configuration management for warden.
//
// This package implements a simple configuration system that loads
// configuration from a single directory. The default configuration directory
// is ~/.config/warden, but users can specify a custom directory using the
// --config-path flag in commands.
//
// # Loading Order
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. Built-in defaults (DefaultConfig)
//  2. config.yaml in the configuration directory
//  3. Process environment variables
//
// Secrets (the JWT secret, encryption keys, OAuth client secrets) are
// expected to arrive via the environment, never via config.yaml.
//
// # Configuration Structure
//
// The configuration file uses YAML format with the following main sections:
//
//	server:
//	  host: "localhost"              # Host to bind to (default: localhost)
//	  port: 8080                     # Gateway port (default: 8080)
//	  transport: "streamable-http"   # streamable-http or sse
//	  baseURL: "http://localhost:8080"
//	auth:
//	  mode: "hs256"                  # hs256 or jwks
//	  issuer: "bernerspace-ecosystem"
//	  audience: "mcp-gateway"
//	database:
//	  url: "file:warden.db"          # sqlite path or postgres:// DSN
//	integrations:
//	  slack:
//	    enabled: true
//	  google:
//	    enabled: false
//	logLevel: "info"
//
// # Environment Variables
//
//   - DATABASE_URL: credential store DSN
//   - JWT_SECRET: shared secret for hs256 verification
//   - JWKS_URL: key set endpoint for jwks verification
//   - TOKEN_ENCRYPTION_KEYS: comma-separated base64 AES keys, newest first
//   - SLACK_CLIENT_ID, SLACK_CLIENT_SECRET, SLACK_REDIRECT_URI
//   - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URI
//   - APP_BASE_URL, PORT, LOG_LEVEL
package config
