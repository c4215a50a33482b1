// Package gateway exposes the integration tool sets over MCP. Providers
// hand in tool metadata and an execute function; the gateway turns them
// into mcp-go server tools and serves them over the configured transport.
// The HTTP server in internal/server mounts Handler at Endpoints behind
// authentication, so every tool call runs with a verified identity in its
// context.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"warden/internal/config"
	"warden/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

// Transport endpoint paths.
const (
	EndpointMCP     = "/mcp"
	EndpointSSE     = "/sse"
	EndpointMessage = "/message"
)

// Server is the MCP tool surface. Tools are fixed at construction from
// the given providers; there is no runtime registry.
type Server struct {
	mcp       *server.MCPServer
	handler   http.Handler
	endpoints []string
	shutdown  func(context.Context) error
}

// NewServer builds the MCP server for the enabled providers and wires the
// transport named in cfg. SSE serves the /sse stream plus the /message
// post endpoint; streamable-http serves /mcp alone.
func NewServer(cfg config.ServerConfig, providers ...ToolProvider) *Server {
	mcpServer := server.NewMCPServer(
		"warden-gateway",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	tools := CreateTools(providers...)
	if len(tools) > 0 {
		mcpServer.AddTools(tools...)
	}
	logging.Debug("Gateway", "Registered %d MCP tools from %d providers", len(tools), len(providers))

	s := &Server{mcp: mcpServer}

	switch cfg.Transport {
	case config.MCPTransportSSE:
		sseServer := server.NewSSEServer(
			mcpServer,
			server.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
			server.WithSSEEndpoint(EndpointSSE),
			server.WithMessageEndpoint(EndpointMessage),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
		)
		s.handler = sseServer
		s.endpoints = []string{EndpointSSE, EndpointMessage}
		s.shutdown = sseServer.Shutdown
	default:
		streamableServer := server.NewStreamableHTTPServer(
			mcpServer,
			server.WithEndpointPath(EndpointMCP),
		)
		s.handler = streamableServer
		s.endpoints = []string{EndpointMCP}
		s.shutdown = streamableServer.Shutdown
	}

	return s
}

// Handler returns the transport's HTTP handler. SSE routes its two
// endpoints internally, so the same handler serves every path in
// Endpoints.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Endpoints returns the paths the transport must be mounted at.
func (s *Server) Endpoints() []string {
	return s.endpoints
}

// Shutdown closes the transport's open sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdown == nil {
		return nil
	}
	return s.shutdown(ctx)
}
