package oauth

import (
	"encoding/json"
	"errors"
	"net/http"

	"warden/pkg/logging"
)

// CallbackHandler receives the provider redirect after a user grants or
// denies consent. The state parameter carries the identity the flow was
// started for; on success the exchanged token payload is stored under it.
//
// Response contract, checked in order:
//   - provider sent error        -> 400, provider's wording relayed
//   - code parameter missing     -> 400 "missing code parameter"
//   - state parameter missing    -> 400 "missing state parameter"
//   - exchange rejected upstream -> 400, provider's wording relayed
//   - exchange unreachable       -> 502
//   - persistence failed         -> 500, no detail
//   - success                    -> 200 with identity and integration only
type CallbackHandler struct {
	session *Session
}

func NewCallbackHandler(session *Session) *CallbackHandler {
	return &CallbackHandler{session: session}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeCallbackError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	provider := h.session.Provider().Name
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		msg := errParam
		if desc := query.Get("error_description"); desc != "" {
			msg = errParam + ": " + desc
		}
		logging.Info("OAuth", "%s authorization denied: %s", provider, msg)
		writeCallbackError(w, http.StatusBadRequest, msg)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeCallbackError(w, http.StatusBadRequest, "missing code parameter")
		return
	}

	identity := query.Get("state")
	if identity == "" {
		writeCallbackError(w, http.StatusBadRequest, "missing state parameter")
		return
	}

	payload, err := h.session.ExchangeCode(r.Context(), code)
	if err != nil {
		var pErr *ProviderError
		if errors.As(err, &pErr) {
			logging.Warn("OAuth", "%s code exchange rejected for %s: %s",
				provider, logging.TruncateID(identity), pErr.Message)
			writeCallbackError(w, http.StatusBadRequest, pErr.Message)
			return
		}
		logging.Error("OAuth", err, "%s code exchange failed for %s",
			provider, logging.TruncateID(identity))
		writeCallbackError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	payload = h.session.EnrichPayload(payload, identity)

	if err := h.session.StoreToken(r.Context(), identity, payload); err != nil {
		logging.Error("OAuth", err, "Storing %s credential for %s failed",
			provider, logging.TruncateID(identity))
		writeCallbackError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	logging.Info("OAuth", "Connected %s for %s", provider, logging.TruncateID(identity))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":      "success",
		"integration": provider,
		"client_id":   identity,
	})
}

func writeCallbackError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
