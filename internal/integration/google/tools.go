package google

import (
	"context"
	"errors"
	"fmt"

	"warden/internal/authn"
	"warden/internal/gateway"
	"warden/internal/oauth"
	"warden/pkg/logging"
)

// ToolProvider exposes the Gmail and Calendar tool set. Tools that reach
// the APIs resolve the caller's credential first and return the
// authorize-URL payload as a normal result when none exists; the caller
// completes consent in a browser and retries.
type ToolProvider struct {
	session *oauth.Session

	gmailBaseURL    string
	calendarBaseURL string
}

// NewToolProvider builds the provider over a Google token session.
func NewToolProvider(session *oauth.Session) *ToolProvider {
	return &ToolProvider{
		session:         session,
		gmailBaseURL:    DefaultGmailBaseURL,
		calendarBaseURL: DefaultCalendarBaseURL,
	}
}

// GetTools returns metadata for the Google tools.
func (p *ToolProvider) GetTools() []gateway.ToolMetadata {
	return []gateway.ToolMetadata{
		{
			Name:        "google_get_oauth_url",
			Description: "Get the OAuth URL for Google authorization",
		},
		{
			Name:        "google_check_oauth_status",
			Description: "Check whether the current caller has completed Google OAuth",
		},
		{
			Name:        "google_gmail_send",
			Description: "Send an email via Gmail",
			Args: []gateway.ArgMetadata{
				{
					Name:        "to",
					Type:        "string",
					Required:    true,
					Description: "Recipient email addresses, comma separated",
				},
				{
					Name:        "subject",
					Type:        "string",
					Required:    true,
					Description: "Email subject",
				},
				{
					Name:        "body",
					Type:        "string",
					Required:    true,
					Description: "Plain-text email body",
				},
				{
					Name:        "cc",
					Type:        "string",
					Description: "CC email addresses, comma separated",
				},
				{
					Name:        "bcc",
					Type:        "string",
					Description: "BCC email addresses, comma separated",
				},
				{
					Name:        "thread_id",
					Type:        "string",
					Description: "Gmail thread ID to reply within",
				},
			},
		},
		{
			Name:        "google_gmail_list_messages",
			Description: "List Gmail messages matching a search query",
			Args: []gateway.ArgMetadata{
				{
					Name:        "query",
					Type:        "string",
					Description: "Gmail search query (e.g. 'is:unread from:alice@example.com')",
				},
				{
					Name:        "max_results",
					Type:        "number",
					Description: "Maximum number of messages to return",
					Default:     defaultListLimit,
				},
			},
		},
		{
			Name:        "google_calendar_list_events",
			Description: "List events from a Google Calendar",
			Args: []gateway.ArgMetadata{
				{
					Name:        "calendar_id",
					Type:        "string",
					Required:    true,
					Description: "Calendar ID ('primary' for the main calendar)",
				},
				{
					Name:        "time_min",
					Type:        "string",
					Description: "Earliest event time, RFC3339",
				},
				{
					Name:        "time_max",
					Type:        "string",
					Description: "Latest event time, RFC3339",
				},
				{
					Name:        "max_results",
					Type:        "number",
					Description: "Maximum number of events to return",
					Default:     defaultListLimit,
				},
				{
					Name:        "single_events",
					Type:        "boolean",
					Description: "Expand recurring events into instances",
					Default:     true,
				},
				{
					Name:        "order_by",
					Type:        "string",
					Description: "Sort order: 'startTime' or 'updated'",
					Default:     defaultOrderBy,
				},
			},
		},
	}
}

const (
	defaultListLimit = 10
	defaultOrderBy   = "startTime"
)

// ExecuteTool executes a Google tool by name.
func (p *ToolProvider) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	ident, ok := authn.IdentityFromContext(ctx)
	if !ok || ident.Subject == "" {
		return errorResult("no authenticated identity in request context"), nil
	}

	switch toolName {
	case "google_get_oauth_url":
		return p.handleGetOAuthURL(ident.Subject), nil
	case "google_check_oauth_status":
		return p.handleCheckOAuthStatus(ctx, ident.Subject)
	case "google_gmail_send":
		return p.handleGmailSend(ctx, ident.Subject, args)
	case "google_gmail_list_messages":
		return p.handleGmailList(ctx, ident.Subject, args)
	case "google_calendar_list_events":
		return p.handleCalendarList(ctx, ident.Subject, args)
	default:
		return nil, fmt.Errorf("unknown google tool: %s", toolName)
	}
}

func (p *ToolProvider) handleGetOAuthURL(identity string) *gateway.CallToolResult {
	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"oauth_url": p.session.ConsentURL(identity),
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
				"message":    "No Google OAuth token found or expired. Please complete the OAuth flow.",
				"oauth_url":  r.AuthorizationURL,
			}},
		}, nil
	case oauth.Authorized:
		status := map[string]interface{}{
			"authorized": true,
			"client_id":  identity,
			"message":    "Google OAuth completed successfully.",
		}
		if created, ok := r.Payload["created_at"]; ok {
			status["created_at"] = created
		}
		return &gateway.CallToolResult{Content: []interface{}{status}}, nil
	default:
		return nil, fmt.Errorf("unexpected session result %T", res)
	}
}

func (p *ToolProvider) handleGmailSend(ctx context.Context, identity string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	to, ok := stringArg(args, "to")
	if !ok {
		return errorResult("'to' argument is required and must be a string"), nil
	}
	subject, ok := stringArg(args, "subject")
	if !ok {
		return errorResult("'subject' argument is required and must be a string"), nil
	}
	body, ok := stringArg(args, "body")
	if !ok {
		return errorResult("'body' argument is required and must be a string"), nil
	}
	cc, _ := args["cc"].(string)
	bcc, _ := args["bcc"].(string)
	threadID, _ := args["thread_id"].(string)

	token, authResult, err := p.resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if authResult != nil {
		return authResult, nil
	}

	sent, err := p.client(token).SendGmail(ctx, SendMessageRequest{
		To:       to,
		CC:       cc,
		BCC:      bcc,
		Subject:  subject,
		Body:     body,
		ThreadID: threadID,
	})
	if err != nil {
		return apiErrorResult(err), nil
	}

	logging.Info("GoogleTools", "Sent mail %s for %s", sent.ID, logging.TruncateID(identity))
	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"status":     "success",
			"message_id": sent.ID,
		}},
	}, nil
}

func (p *ToolProvider) handleGmailList(ctx context.Context, identity string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	query, _ := args["query"].(string)
	maxResults, ok := intArg(args, "max_results", defaultListLimit)
	if !ok {
		return errorResult("'max_results' must be a number"), nil
	}

	token, authResult, err := p.resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if authResult != nil {
		return authResult, nil
	}

	page, err := p.client(token).ListGmailMessages(ctx, ListMessagesRequest{
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return apiErrorResult(err), nil
	}

	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"messages":        page.Messages,
			"next_page_token": page.NextPageToken,
		}},
	}, nil
}

func (p *ToolProvider) handleCalendarList(ctx context.Context, identity string, args map[string]interface{}) (*gateway.CallToolResult, error) {
	calendarID, ok := stringArg(args, "calendar_id")
	if !ok {
		return errorResult("'calendar_id' argument is required and must be a string"), nil
	}
	timeMin, _ := args["time_min"].(string)
	timeMax, _ := args["time_max"].(string)
	maxResults, ok := intArg(args, "max_results", defaultListLimit)
	if !ok {
		return errorResult("'max_results' must be a number"), nil
	}
	singleEvents, ok := boolArg(args, "single_events", true)
	if !ok {
		return errorResult("'single_events' must be a boolean"), nil
	}
	orderBy, _ := args["order_by"].(string)
	if orderBy == "" {
		orderBy = defaultOrderBy
	}

	token, authResult, err := p.resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if authResult != nil {
		return authResult, nil
	}

	page, err := p.client(token).ListCalendarEvents(ctx, ListEventsRequest{
		CalendarID:   calendarID,
		TimeMin:      timeMin,
		TimeMax:      timeMax,
		MaxResults:   maxResults,
		SingleEvents: singleEvents,
		OrderBy:      orderBy,
	})
	if err != nil {
		return apiErrorResult(err), nil
	}

	return &gateway.CallToolResult{
		Content: []interface{}{map[string]interface{}{
			"events":          page.Events,
			"next_page_token": page.NextPageToken,
		}},
	}, nil
}

// resolve produces either a usable access token or the requires-auth result
// to hand straight back to the caller.
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
				"message":       "Google OAuth token not found or expired. Please complete the OAuth flow.",
			}},
		}, nil
	default:
		return oauth.RedactedToken{}, nil, fmt.Errorf("unexpected session result %T", res)
	}
}

// client binds the API clients to a resolved token. This is the one place
// the redacted value is unwrapped.
func (p *ToolProvider) client(token oauth.RedactedToken) *Client {
	c := NewClient(token.Value())
	c.gmailBaseURL = p.gmailBaseURL
	c.calendarBaseURL = p.calendarBaseURL
	return c
}

// apiErrorResult turns a client failure into a tool result. Google API
// failures keep the status:error shape callers already parse; transport
// failures surface as plain messages.
func apiErrorResult(err error) *gateway.CallToolResult {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &gateway.CallToolResult{
			Content: []interface{}{map[string]interface{}{
				"status":  "error",
				"message": apiErr.Error(),
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
