package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"warden/internal/authn"
	"warden/internal/gateway"
	"warden/internal/oauth"
	"warden/pkg/logging"
)

// ToolProvider exposes the Slack tool set. Tools that talk to the Web API
// resolve the caller's credential first and return the authorize-URL payload
// as a normal result when none exists; the caller completes consent in a
// browser and retries.
type ToolProvider struct {
	session *oauth.Session

	apiBaseURL string
}

// NewToolProvider builds the provider over a Slack token session.
func NewToolProvider(session *oauth.Session) *ToolProvider {
	return &ToolProvider{
		session:    session,
		apiBaseURL: DefaultAPIBaseURL,
	}
}

// GetTools returns metadata for the Slack tools.
func (p *ToolProvider) GetTools() []gateway.ToolMetadata {
	return []gateway.ToolMetadata{
		{
			Name:        "slack_get_oauth_url",
			Description: "Get the OAuth URL for Slack authorization",
		},
		{
			Name:        "slack_check_oauth_status",
			Description: "Check whether the current caller has completed Slack OAuth",
		},
		{
			Name:        "slack_send_message",
			Description: "Send a message to a Slack channel",
			Args: []gateway.ArgMetadata{
				{
					Name:        "channel",
					Type:        "string",
					Required:    true,
					Description: "Channel ID or name (e.g. '#general' or 'C1234567890')",
				},
				{
					Name:        "text",
					Type:        "string",
					Required:    true,
					Description: "Message text to send",
				},
				{
					Name:        "thread_ts",
					Type:        "string",
					Description: "Reply in thread to this message timestamp",
				},
			},
		},
		{
			Name:        "slack_list_channels",
			Description: "List channels in the connected Slack workspace",
			Args: []gateway.ArgMetadata{
				{
					Name:        "types",
					Type:        "string",
					Description: "Channel types to include",
					Default:     defaultChannelTypes,
				},
				{
					Name:        "exclude_archived",
					Type:        "boolean",
					Description: "Exclude archived channels",
					Default:     true,
				},
				{
					Name:        "limit",
					Type:        "number",
					Description: "Number of channels to return (max 100)",
					Default:     defaultPageLimit,
				},
				{
					Name:        "cursor",
					Type:        "string",
					Description: "Pagination cursor",
				},
			},
		},
		{
			Name:        "slack_get_channel_history",
			Description: "Get message history from a Slack channel",
			Args: []gateway.ArgMetadata{
				{
					Name:        "channel",
					Type:        "string",
					Required:    true,
					Description: "Channel ID to get history from",
				},
				{
					Name:        "limit",
					Type:        "number",
					Description: "Number of messages to return (max 100)",
					Default:     defaultPageLimit,
				},
				{
					Name:        "cursor",
					Type:        "string",
					Description: "Pagination cursor",
				},
				{
					Name:        "latest",
					Type:        "string",
					Description: "Latest message timestamp to include",
				},
				{
					Name:        "oldest",
					Type:        "string",
					Description: "Oldest message timestamp to include",
				},
			},
		},
	}
}

const (
	defaultChannelTypes = "public_channel,private_channel"
	defaultPageLimit    = 100
)

// ExecuteTool executes a Slack tool by name.
func (p *ToolProvider) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	ident, ok := authn.IdentityFromContext(ctx)
	if !ok || ident.Subject == "" {
		return errorResult("no authenticated identity in request context"), nil
	}

	switch toolName {
	case "slack_get_oauth_url":
		return p.handleGetOAuthURL(ident.Subject), nil
	case "slack_check_oauth_status":
		return p.handleCheckOAuthStatus(ctx, ident.Subject)
	case "slack_send_message":
		return p.handleSendMessage(ctx, ident.Subject, args)
	case "slack_list_channels":
		return p.handleListChannels(ctx, ident.Subject, args)
	case "slack_get_channel_history":
		return p.handleChannelHistory(ctx, ident.Subject, args)
	default:
		return nil, fmt.Errorf("unknown slack tool: %s", toolName)
	}
}

func (p *ToolProvider) handleGetOAuthURL(identity string) *gateway.CallToolResult {
	provider := p.session.Provider()
	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"oauth_url":    p.session.ConsentURL(identity),
			"instructions": "Visit this URL to authorize the application with your Slack workspace",
			"callback_url": provider.RedirectURI,
			"scopes":       provider.Scopes,
			"state":        identity,
		}},
	}
}

func (p *ToolProvider) handleCheckOAuthStatus(ctx context.Context, identity string) (*gateway.CallToolResult, error) {
	res, err := p.session.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	switch r := res.(type) {
	case oauth.AuthorizationRequired:
		return &gateway.CallToolResult{
			Content: []interface{}{map[string]interface{}{
				"authorized": false,
				"client_id":  identity,
				"message":    "No OAuth token found. Please complete the OAuth flow.",
				"oauth_url":  r.AuthorizationURL,
			}},
		}, nil
	case oauth.Authorized:
		status := map[string]interface{}{
			"authorized": true,
			"client_id":  identity,
		}
		for _, key := range []string{"team_id", "team_name", "slack_user_id", "bot_user_id", "created_at"} {
			if v, ok := r.Payload[key]; ok {
				status[key] = v
			}
		}
		if scope, ok := r.Payload["scope"].(string); ok && scope != "" {
			status["scopes"] = strings.Split(scope, ",")
		}
		return &gateway.CallToolResult{Content: []interface{}{status}}, nil
	default:
		return nil, fmt.Errorf("unexpected session result %T", res)
	}
}

func (p *ToolProvider) handleSendMessage(ctx context.Context, identity string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	channel, ok := stringArg(args, "channel")
	if !ok {
		return errorResult("'channel' argument is required and must be a string"), nil
	}
	text, ok := stringArg(args, "text")
	if !ok {
		return errorResult("'text' argument is required and must be a string"), nil
	}
	threadTS, _ := args["thread_ts"].(string)

	token, authResult, err := p.resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if authResult != nil {
		return authResult, nil
	}

	posted, err := p.client(token).PostMessage(ctx, PostMessageRequest{
		Channel:  channel,
		Text:     text,
		ThreadTS: threadTS,
	})
	if err != nil {
		return apiErrorResult(err), nil
	}

	logging.Info("SlackTools", "Sent message to %s for %s", posted.Channel, logging.TruncateID(identity))
	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"success":   true,
			"channel":   posted.Channel,
			"timestamp": posted.TS,
			"message":   "Message sent successfully",
		}},
	}, nil
}

func (p *ToolProvider) handleListChannels(ctx context.Context, identity string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	types, _ := args["types"].(string)
	if types == "" {
		types = defaultChannelTypes
	}
	excludeArchived, ok := boolArg(args, "exclude_archived", true)
	if !ok {
		return errorResult("'exclude_archived' must be a boolean"), nil
	}
	limit, ok := intArg(args, "limit", defaultPageLimit)
	if !ok {
		return errorResult("'limit' must be a number"), nil
	}
	cursor, _ := args["cursor"].(string)

	token, authResult, err := p.resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if authResult != nil {
		return authResult, nil
	}

	page, err := p.client(token).ListChannels(ctx, ListChannelsRequest{
		Types:           types,
		ExcludeArchived: excludeArchived,
		Limit:           limit,
		Cursor:          cursor,
	})
	if err != nil {
		return apiErrorResult(err), nil
	}

	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"success":     true,
			"channels":    page.Channels,
			"total_count": len(page.Channels),
			"cursor":      page.NextCursor,
		}},
	}, nil
}

func (p *ToolProvider) handleChannelHistory(ctx context.Context, identity string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	channel, ok := stringArg(args, "channel")
	if !ok {
		return errorResult("'channel' argument is required and must be a string"), nil
	}
	limit, ok := intArg(args, "limit", defaultPageLimit)
	if !ok {
		return errorResult("'limit' must be a number"), nil
	}
	cursor, _ := args["cursor"].(string)
	latest, _ := args["latest"].(string)
	oldest, _ := args["oldest"].(string)

	token, authResult, err := p.resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if authResult != nil {
		return authResult, nil
	}

	page, err := p.client(token).ChannelHistory(ctx, HistoryRequest{
		Channel: channel,
		Limit:   limit,
		Cursor:  cursor,
		Latest:  latest,
		Oldest:  oldest,
	})
	if err != nil {
		return apiErrorResult(err), nil
	}

	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"success":     true,
			"messages":    page.Messages,
			"total_count": len(page.Messages),
			"cursor":      page.NextCursor,
			"has_more":    page.HasMore,
		}},
	}, nil
}

// resolve produces either a usable bot token or the requires-auth result to
// hand straight back to the caller.
func (p *ToolProvider) resolve(ctx context.Context, identity string) (oauth.RedactedToken, *gateway.CallToolResult, error) {
	res, err := p.session.Resolve(ctx, identity)
	if err != nil {
		return oauth.RedactedToken{}, nil, err
	}
	switch r := res.(type) {
	case oauth.Authorized:
		return r.Token, nil, nil
	case oauth.AuthorizationRequired:
		return oauth.RedactedToken{}, &gateway.CallToolResult{
			Content: []interface{}{map[string]interface{}{
				"requires_auth": true,
				"oauth_url":     r.AuthorizationURL,
				"message":       "No valid Slack OAuth token found. Complete the OAuth flow and retry.",
			}},
		}, nil
	default:
		return oauth.RedactedToken{}, nil, fmt.Errorf("unexpected session result %T", res)
	}
}

// client binds a Web API client to a resolved token. This is the one place
// the redacted value is unwrapped.
func (p *ToolProvider) client(token oauth.RedactedToken) *Client {
	c := NewClient(token.Value())
	c.baseURL = p.apiBaseURL
	return c
}

// apiErrorResult turns a client failure into a tool result. Slack's own
// error codes keep the success:false shape callers already parse; transport
// failures surface as plain messages.
func apiErrorResult(err error) *gateway.CallToolResult {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &gateway.CallToolResult{
			Content: []interface{}{map[string]interface{}{
				"success": false,
				"error":   apiErr.Code,
			}},
			IsError: true,
		}
	}
	return errorResult("%v", err)
}

func errorResult(format string, a ...interface{}) *gateway.CallToolResult {
	return &gateway.CallToolResult{
		Content: []interface{}{fmt.Sprintf(format, a...)},
		IsError: true,
	}
}

func stringArg(args map[string]interface{}, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok && s != ""
}

// intArg coerces args[key] to int, returning def when absent. JSON numbers
// arrive as float64.
func intArg(args map[string]interface{}, key string, def int) (int, bool) {
	v, ok := args[key]
	if !ok {
		return def, true
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func boolArg(args map[string]interface{}, key string, def bool) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return def, true
	}
	b, ok := v.(bool)
	return b, ok
}
