package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is a structured error for operator mistakes found while
// validating the loaded configuration. It carries the offending field and,
// where one exists, an actionable suggestion such as the environment variable
// that supplies the value.
type ConfigurationError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", ce.Field, ce.Message)
}

// DetailedError returns the error with its suggestion for CLI output.
func (ce ConfigurationError) DetailedError() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Configuration error in %s", ce.Field))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))
	if ce.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("  Suggestion: %s", ce.Suggestion))
	}
	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a configuration error without a suggestion.
func NewConfigurationError(field, message string) ConfigurationError {
	return ConfigurationError{Field: field, Message: message}
}

// NewConfigurationErrorWithSuggestion creates a configuration error with an
// actionable fix.
func NewConfigurationErrorWithSuggestion(field, message, suggestion string) ConfigurationError {
	return ConfigurationError{Field: field, Message: message, Suggestion: suggestion}
}
