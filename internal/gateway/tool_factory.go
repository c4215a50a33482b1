package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"warden/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// CreateTools turns the providers' tool metadata into MCP server tools.
// Tool names are exposed as-is: providers already namespace them with
// their integration prefix (slack_, google_).
func CreateTools(providers ...ToolProvider) []mcpserver.ServerTool {
	var tools []mcpserver.ServerTool

	for _, provider := range providers {
		for _, meta := range provider.GetTools() {
			tools = append(tools, mcpserver.ServerTool{
				Tool: mcp.Tool{
					Name:        meta.Name,
					Description: meta.Description,
					InputSchema: convertToMCPSchema(meta.Args),
				},
				Handler: createToolHandler(provider, meta.Name),
			})
		}
	}

	return tools
}

// createToolHandler wraps a provider's ExecuteTool in an MCP handler.
// Provider errors are infrastructure failures (store, crypto, token
// endpoint); they are logged and surfaced as MCP error results so the
// protocol stream stays alive.
func createToolHandler(provider ToolProvider, toolName string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		result, err := provider.ExecuteTool(ctx, toolName, args)
		if err != nil {
			logging.Error("GatewayToolHandler", err, "Tool execution failed for %s", toolName)
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
		}

		return convertToMCPResult(result), nil
	}
}

// convertToMCPSchema converts arg metadata to the JSON Schema MCP clients
// validate against. A detailed Schema map takes precedence over the basic
// Type field; the arg's description and default are folded in either way.
func convertToMCPSchema(args []ArgMetadata) mcp.ToolInputSchema {
	properties := make(map[string]interface{})
	required := []string{}

	for _, arg := range args {
		var propSchema map[string]interface{}

		if len(arg.Schema) > 0 {
			propSchema = make(map[string]interface{})
			for key, value := range arg.Schema {
				propSchema[key] = value
			}
			if arg.Description != "" {
				propSchema["description"] = arg.Description
			}
		} else {
			propSchema = map[string]interface{}{
				"type":        arg.Type,
				"description": arg.Description,
			}
		}

		if arg.Default != nil {
			propSchema["default"] = arg.Default
		}

		properties[arg.Name] = propSchema

		if arg.Required {
			required = append(required, arg.Name)
		}
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// convertToMCPResult converts a provider result to MCP format. String
// content passes through as text; anything else is marshaled to JSON so
// the dict-shaped payloads the tools return reach the client intact.
func convertToMCPResult(result *CallToolResult) *mcp.CallToolResult {
	mcpContent := make([]mcp.Content, len(result.Content))

	for i, content := range result.Content {
		if text, ok := content.(string); ok {
			mcpContent[i] = mcp.NewTextContent(text)
		} else {
			jsonBytes, _ := json.Marshal(content)
			mcpContent[i] = mcp.NewTextContent(string(jsonBytes))
		}
	}

	return &mcp.CallToolResult{
		Content: mcpContent,
		IsError: result.IsError,
	}
}
