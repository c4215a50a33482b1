// Package oauth implements the per-integration OAuth authorization-code flow
// and the token lifecycle behind the gateway tools.
//
// This package is provider-agnostic: each integration (Slack, Google, ...)
// contributes a Provider descriptor with its endpoints, client credentials and
// quirks, and the rest of the flow is shared.
//
// # Flow
//
// The broker follows a standard three-legged authorization-code flow, driven
// by tool calls rather than by browser sessions:
//
//  1. A client calls a tool that needs a provider token.
//  2. Resolve finds no usable credential and returns AuthorizationRequired
//     with a consent URL carrying the caller identity as the state parameter.
//  3. The user authorizes in a browser; the provider redirects to the
//     /oauth/<integration>/callback endpoint with an authorization code.
//  4. CallbackHandler exchanges the code, seals the token payload and stores
//     it under (client_id, integration).
//  5. The client retries the tool call, which now resolves the stored token.
//
// # Components
//
//   - Provider: per-integration endpoint and credential descriptor
//   - ExchangeClient: code exchange and refresh against the token endpoint
//   - Session: credential resolution, expiry checks and refresh-with-merge
//   - CallbackHandler: HTTP handler for the provider redirect
//
// # Token handling
//
// Token payloads are stored as the provider returned them (canonical JSON),
// sealed by internal/crypto before they reach the database. Refresh responses
// are merged over the stored payload so fields the provider omits on refresh,
// most importantly the refresh_token, survive rotation.
//
// Accessors hand out AccessToken/RefreshToken as RedactedToken values, so a
// token that ends up in a log line or an error message prints as [REDACTED].
// Only the integration API clients unwrap the real value, immediately before
// setting the Authorization header. Caller identities are truncated in log
// output via logging.TruncateID.
//
// Expiry is computed from stored_at plus the payload's expires_in. Providers
// that omit expires_in fall back to the descriptor's DefaultExpiresIn; a
// payload with neither hint nor refresh token is treated as non-expiring,
// which matches Slack bot tokens with rotation disabled.
//
// # Failure semantics
//
// A credential problem (missing, expired without refresh, rejected refresh,
// undecryptable or corrupt payload) is not an error: Resolve returns
// AuthorizationRequired and the user goes through consent again. Only
// infrastructure failures, storage and seal errors, surface as errors.
// Provider rejections during exchange keep the provider's own wording via
// ProviderError so the callback response says what the provider said.
package oauth
