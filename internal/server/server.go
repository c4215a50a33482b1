package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"warden/internal/authn"
	"warden/internal/config"
	"warden/internal/crypto"
	"warden/internal/gateway"
	"warden/internal/integration/google"
	"warden/internal/integration/slack"
	"warden/internal/oauth"
	"warden/internal/store"
	"warden/pkg/logging"
)

// Server is the assembled warden process: credential store, per-integration
// OAuth sessions, the MCP gateway and the HTTP listener in front of them.
type Server struct {
	cfg        config.Config
	store      store.Store
	metrics    *authn.Metrics
	gateway    *gateway.Server
	httpServer *http.Server
}

// New wires the full stack from config. The store connection is opened
// here and owned by the server until Shutdown.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	st, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	envelope, err := crypto.NewEnvelope(cfg.Encryption.Keys)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build crypto envelope: %w", err)
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build token verifier: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		metrics: &authn.Metrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)

	exchange := oauth.NewExchangeClient(nil)
	var providers []gateway.ToolProvider

	if cfg.Integrations.Slack.Enabled {
		session := oauth.NewSession(
			slack.NewProvider(cfg.Integrations.Slack, cfg.RedirectURIFor(config.IntegrationSlack)),
			st, envelope, exchange,
		)
		mux.Handle(callbackPath(config.IntegrationSlack), oauth.NewCallbackHandler(session))
		providers = append(providers, slack.NewToolProvider(session))
		logging.Info("Server", "Enabled slack integration")
	}

	if cfg.Integrations.Google.Enabled {
		session := oauth.NewSession(
			google.NewProvider(cfg.Integrations.Google, cfg.RedirectURIFor(config.IntegrationGoogle)),
			st, envelope, exchange,
		)
		mux.Handle(callbackPath(config.IntegrationGoogle), oauth.NewCallbackHandler(session))
		providers = append(providers, google.NewToolProvider(session))
		logging.Info("Server", "Enabled google integration")
	}

	s.gateway = gateway.NewServer(cfg.Server, providers...)

	authenticate := authn.Middleware(authn.MiddlewareConfig{
		Verifier:      verifier,
		TrustedHeader: trustedHeader(cfg.Auth),
		Metrics:       s.metrics,
	})
	for _, endpoint := range s.gateway.Endpoints() {
		mux.Handle(endpoint, authenticate(s.gateway.Handler()))
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           requestID(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the assembled HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks serving requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) ListenAndServe() error {
	logging.Info("Server", "Serving on %s (transport %s)", s.httpServer.Addr, s.cfg.Server.Transport)
	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is cancelled, then shuts down gracefully. This is
// the blocking entry point the CLI uses.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown drains the listener, closes MCP sessions and releases the
// credential store.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Server", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.gateway.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server", err, "Error shutting down MCP transport")
	}

	err := s.httpServer.Shutdown(shutdownCtx)

	if closeErr := s.store.Close(); closeErr != nil {
		logging.Error("Server", closeErr, "Error closing credential store")
		if err == nil {
			err = closeErr
		}
	}
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"auth": s.metrics.Snapshot(),
	})
}

// newVerifier picks the verifier for the configured auth mode. In hs256
// mode without a secret (valid only alongside header auth) every bearer
// token is rejected, which the middleware handles with a nil verifier.
func newVerifier(cfg config.AuthConfig) (authn.Verifier, error) {
	switch cfg.Mode {
	case config.AuthModeJWKS:
		return authn.NewJWKSVerifier(cfg.JWKSURL, cfg.JWKSCacheTTL, cfg.Issuer, cfg.Audience)
	default:
		if cfg.Secret == "" {
			return nil, nil
		}
		return authn.NewHS256Verifier(cfg.Secret, cfg.Issuer, cfg.Audience)
	}
}

func trustedHeader(cfg config.AuthConfig) string {
	if !cfg.HeaderAuth.Enabled {
		return ""
	}
	return cfg.HeaderAuth.Header
}

func callbackPath(integration string) string {
	return "/oauth/" + integration + "/callback"
}
