package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// Token claims issued and expected by the gateway. The issuer and audience
// pin tokens to this deployment so a leaked secret elsewhere in the
// ecosystem cannot mint gateway credentials.
const (
	defaultTokenIssuer   = "bernerspace-ecosystem"
	defaultTokenAudience = "mcp-gateway"
)

var (
	tokenSubject  string
	tokenSecret   string
	tokenTTL      time.Duration
	tokenScopes   string
	tokenIssuer   string
	tokenAudience string
)

// tokenCmd represents the token command group
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint and inspect gateway bearer tokens",
	Long: `Utilities for the HS256 bearer tokens the gateway accepts.

Examples:
  warden token generate --subject user@example.com          # 24h token
  warden token generate --subject ci-bot --ttl 15m
  warden token inspect eyJhbGciOiJIUzI1NiIs...              # decode claims`,
}

// tokenGenerateCmd mints an HS256 token for a user identity.
var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a signed bearer token",
	Long: `Generate an HS256-signed bearer token for the given subject.

The signing secret comes from --secret or the JWT_SECRET environment
variable and must match the secret the server verifies with. The subject
becomes the identity that tokens and tool calls are keyed on.`,
	Args: cobra.NoArgs,
	RunE: runTokenGenerate,
}

// tokenInspectCmd decodes a token without verifying it.
var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Decode a bearer token without verifying it",
	Long: `Decode the claims of a bearer token and print them as JSON.

The signature is NOT checked; this is a debugging aid, not a validity
check. Use the server's /mcp endpoint to test whether a token is
actually accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenInspect,
}

// runTokenGenerate is the entry point for the token generate command
func runTokenGenerate(cmd *cobra.Command, args []string) error {
	if tokenSubject == "" {
		return fmt.Errorf("--subject is required")
	}
	secret := tokenSecret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return fmt.Errorf("signing secret required: pass --secret or set JWT_SECRET")
	}

	var scopes []string
	for _, s := range strings.Split(tokenScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"client_id": tokenSubject,
		"scopes":    scopes,
		"iss":       tokenIssuer,
		"aud":       tokenAudience,
		"iat":       now.Unix(),
		"exp":       now.Add(tokenTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), signed)
	fmt.Fprintf(cmd.ErrOrStderr(), "subject=%s scopes=%s expires=%s\n",
		tokenSubject, strings.Join(scopes, ","), now.Add(tokenTTL).UTC().Format(time.RFC3339))
	return nil
}

// runTokenInspect is the entry point for the token inspect command
func runTokenInspect(cmd *cobra.Command, args []string) error {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(args[0], claims)
	if err != nil {
		return fmt.Errorf("failed to decode token: %w", err)
	}

	out, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render claims: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if exp, ok := claims["exp"].(float64); ok {
		expiry := time.Unix(int64(exp), 0).UTC()
		if time.Now().After(expiry) {
			fmt.Fprintf(cmd.ErrOrStderr(), "token expired at %s\n", expiry.Format(time.RFC3339))
		}
	}
	return nil
}

// init registers the token command group with the root command.
func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenGenerateCmd)
	tokenCmd.AddCommand(tokenInspectCmd)

	tokenGenerateCmd.Flags().StringVar(&tokenSubject, "subject", "", "Identity the token is issued for (required)")
	tokenGenerateCmd.Flags().StringVar(&tokenSecret, "secret", "", "HS256 signing secret (defaults to JWT_SECRET)")
	tokenGenerateCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenGenerateCmd.Flags().StringVar(&tokenScopes, "scopes", "read,write", "Comma-separated token scopes")
	tokenGenerateCmd.Flags().StringVar(&tokenIssuer, "issuer", defaultTokenIssuer, "Issuer (iss) claim")
	tokenGenerateCmd.Flags().StringVar(&tokenAudience, "audience", defaultTokenAudience, "Audience (aud) claim")
}
