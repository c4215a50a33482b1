package authn

import (
	"errors"
	"net/http"
	"strings"

	"warden/pkg/logging"
)

// MiddlewareConfig wires the authentication middleware. TrustedHeader, when
// non-empty, names a request header whose value is accepted as the caller
// identity without token verification; only set it when an authenticating
// proxy owns the perimeter.
type MiddlewareConfig struct {
	Verifier      Verifier
	TrustedHeader string
	Metrics       *Metrics
}

// Middleware returns an http.Handler wrapper that authenticates every
// request. Failures get a generic 401 so callers cannot probe whether a
// token was malformed, mis-signed or merely expired; the distinction lands
// in the logs.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TrustedHeader != "" {
				if subject := r.Header.Get(cfg.TrustedHeader); subject != "" {
					logging.Debug("Authn", "Trusted header identity: %s", subject)
					cfg.Metrics.recordAuthorized()
					ctx := ContextWithIdentity(r.Context(), &Identity{Subject: subject, Provenance: ProvenanceHeader})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			rawToken := extractBearer(r)
			if rawToken == "" {
				cfg.Metrics.recordRejected()
				writeUnauthorized(w)
				return
			}

			if cfg.Verifier == nil {
				logging.Error("Authn", errors.New("no verifier configured"), "Rejecting bearer token")
				cfg.Metrics.recordRejected()
				writeUnauthorized(w)
				return
			}

			identity, err := cfg.Verifier.Verify(r.Context(), rawToken)
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					logging.Debug("Authn", "Rejected expired token: %v", err)
				} else {
					logging.Warn("Authn", "Rejected token: %v", err)
				}
				cfg.Metrics.recordRejected()
				writeUnauthorized(w)
				return
			}

			logging.Debug("Authn", "Authenticated %s", identity.Subject)
			cfg.Metrics.recordAuthorized()
			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
