// Package logging provides the structured logging system for warden.
//
// It is a thin layer over Go's standard slog package that gives every log
// entry a subsystem tag ("Authn", "OAuth", "Store", ...) and printf-style
// message formatting, so call sites stay short and grep-friendly.
//
// # Usage
//
//	import "warden/pkg/logging"
//
//	// Initialize once at startup with the configured level.
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	// Log messages from anywhere.
//	logging.Info("Bootstrap", "Gateway starting up")
//	logging.Debug("Config", "Loaded configuration from %s", configPath)
//	logging.Error("Store", err, "Failed to connect to database")
//
// Credential material (tokens, secrets) must never be passed to these
// functions unredacted; see the redaction helpers in internal/oauth.
package logging
