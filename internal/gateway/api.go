package gateway

import "context"

// CallToolResult is the provider-side result of a tool execution. Content
// entries that are strings pass through as text; anything else is JSON
// encoded before it reaches the MCP client.
type CallToolResult struct {
	Content []interface{} `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolMetadata describes a tool a provider exposes.
type ToolMetadata struct {
	Name        string // e.g. "slack_send_message"
	Description string
	Args        []ArgMetadata
}

// ArgMetadata describes one tool argument.
type ArgMetadata struct {
	Name        string
	Type        string // "string", "number", "boolean", "object"
	Required    bool
	Description string
	Default     interface{}

	// Schema overrides Type with a full JSON Schema fragment for nested
	// or constrained arguments.
	Schema map[string]interface{}
}

// ToolProvider is implemented by each integration package. Providers are
// handed to the gateway at construction; there is no registry to mutate at
// runtime.
type ToolProvider interface {
	// GetTools returns all tools this provider offers.
	GetTools() []ToolMetadata

	// ExecuteTool runs one of them. Tool-level failures (bad arguments,
	// provider API errors, missing authorization) are reported inside the
	// result with IsError set; the error return is for execution machinery
	// breaking down.
	ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error)
}
