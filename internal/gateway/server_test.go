package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/config"
)

func TestNewServer_StreamableHTTP(t *testing.T) {
	cfg := config.ServerConfig{
		Transport: config.MCPTransportStreamableHTTP,
		BaseURL:   "http://localhost:8080",
	}
	s := NewServer(cfg, &fakeProvider{tools: []ToolMetadata{{Name: "slack_get_oauth_url", Description: "url"}}})

	assert.Equal(t, []string{"/mcp"}, s.Endpoints())
	require.NotNil(t, s.Handler())
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestNewServer_SSE(t *testing.T) {
	cfg := config.ServerConfig{
		Transport: config.MCPTransportSSE,
		BaseURL:   "http://localhost:8080/",
	}
	s := NewServer(cfg)

	assert.Equal(t, []string{"/sse", "/message"}, s.Endpoints())
	require.NotNil(t, s.Handler())
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestNewServer_UnknownTransportFallsBack(t *testing.T) {
	// Config validation rejects unknown transports before this point;
	// the constructor itself defaults rather than panicking.
	s := NewServer(config.ServerConfig{Transport: "carrier-pigeon"})
	assert.Equal(t, []string{"/mcp"}, s.Endpoints())
}

func TestServer_StreamableRejectsGarbage(t *testing.T) {
	cfg := config.ServerConfig{Transport: config.MCPTransportStreamableHTTP}
	s := NewServer(cfg, &fakeProvider{tools: []ToolMetadata{{Name: "slack_get_oauth_url", Description: "url"}}})

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	assert.GreaterOrEqual(t, rec.Code, 400, "malformed MCP payload must not be accepted")
}
