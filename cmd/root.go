package cmd

import (
	"errors"
	"fmt"
	"os"

	"warden/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
// These follow common conventions so wrappers and init systems can react.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates the configuration failed validation.
	ExitCodeConfig = 2
)

// rootCmd represents the base command for the warden application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Multi-tenant OAuth token broker and MCP gateway",
	Long: `warden brokers OAuth tokens for third-party integrations (Slack,
Google) on behalf of authenticated users and exposes the integrations'
actions as MCP tools behind a single authenticated gateway endpoint.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles subcommands and flags.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "warden version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		exitCode := getExitCode(err)
		if exitCode == ExitCodeConfig {
			var cerr config.ConfigurationError
			if errors.As(err, &cerr) {
				fmt.Fprintln(os.Stderr, cerr.DetailedError())
			}
		}
		os.Exit(exitCode)
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var cerr config.ConfigurationError
	if errors.As(err, &cerr) {
		return ExitCodeConfig
	}
	return ExitCodeError
}

// init is a special Go function that is executed when the package is initialized.
// It is used here to add subcommands to the root command.
func init() {
	rootCmd.AddCommand(newVersionCmd())
}
