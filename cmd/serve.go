package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"warden/internal/config"
	"warden/internal/server"
	"warden/pkg/logging"

	"github.com/spf13/cobra"
)

// serveConfigPath specifies a custom configuration directory path.
// When set, config.yaml is loaded from this directory instead of the
// user config directory.
var serveConfigPath string

// serveDebug forces debug logging regardless of the configured level.
var serveDebug bool

// serveCmd defines the serve command structure.
// This is the main command of warden: it starts the token broker with its
// OAuth callback routes and the authenticated MCP gateway in one process.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the warden token broker and MCP gateway",
	Long: `Starts the warden server. It serves, on a single listener:

  - /oauth/<integration>/callback  completes OAuth flows for enabled
    integrations and stores the encrypted tokens
  - /mcp (or /sse and /message)    the MCP gateway, gated by bearer-token
    or trusted-header authentication
  - /health and /metrics           operational endpoints

Configuration:
  warden loads config.yaml from --config-path (or the user config
  directory) and layers environment variables on top: DATABASE_URL,
  JWT_SECRET, TOKEN_ENCRYPTION_KEYS, SLACK_CLIENT_ID and friends.
  A .env file in the working directory is honored.

The process runs until it receives SIGINT or SIGTERM, then drains
connections and closes the credential store.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	configPath := serveConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveDebug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), os.Stdout)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return srv.Run(ctx)
}

// init registers the serve command and its flags with the root command.
// This is called automatically when the package is imported.
func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}
