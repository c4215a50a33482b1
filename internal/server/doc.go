// Package server assembles warden's HTTP surface and owns its lifecycle.
//
// One listener serves four kinds of routes:
//
//   - /health and /metrics, unauthenticated. Health returns a fixed
//     {"status":"ok"} for probes; metrics returns the authentication
//     counters as JSON.
//   - /oauth/<integration>/callback, unauthenticated. Browsers land here
//     from provider consent screens; the handlers come from
//     internal/oauth and are only mounted for enabled integrations.
//   - The MCP endpoints (/mcp, or /sse and /message for the SSE
//     transport), behind the bearer-token middleware from internal/authn.
//     Tool handlers read the verified identity from the request context.
//
// Every request is tagged with an X-Request-Id header before routing.
//
// New builds the whole stack from config: credential store, crypto
// envelope, verifier, one OAuth session per enabled integration, and the
// MCP gateway over the integrations' tool providers. Shutdown closes the
// gateway sessions, the listener and the store.
package server
