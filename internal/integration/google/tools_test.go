package google

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/authn"
	"warden/internal/config"
	"warden/internal/crypto"
	"warden/internal/gateway"
	"warden/internal/oauth"
	"warden/internal/store"
)

type toolsFixture struct {
	provider *ToolProvider
	session  *oauth.Session
	api      *apiStub
}

func newToolsFixture(t *testing.T) *toolsFixture {
	t.Helper()

	st, err := store.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	envelope, err := crypto.NewEnvelope(nil)
	require.NoError(t, err)

	cfg := config.IntegrationConfig{
		Enabled:      true,
		ClientID:     "google-client",
		ClientSecret: "google-secret",
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
	}
	session := oauth.NewSession(
		NewProvider(cfg, "https://broker.example.com/oauth/google/callback"),
		st, envelope, oauth.NewExchangeClient(nil),
	)

	stub := newAPIStub(t)
	p := NewToolProvider(session)
	p.gmailBaseURL = stub.srv.URL
	p.calendarBaseURL = stub.srv.URL

	return &toolsFixture{provider: p, session: session, api: stub}
}

func (fx *toolsFixture) connect(t *testing.T, identity string, payload oauth.TokenPayload) {
	t.Helper()
	require.NoError(t, fx.session.StoreToken(context.Background(), identity, payload))
}

func identityCtx(subject string) context.Context {
	return authn.ContextWithIdentity(context.Background(), &authn.Identity{Subject: subject})
}

func resultMap(t *testing.T, res *gateway.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	m, ok := res.Content[0].(map[string]interface{})
	require.True(t, ok, "content is %T", res.Content[0])
	return m
}

func TestToolProvider_GetTools(t *testing.T) {
	fx := newToolsFixture(t)

	tools := fx.provider.GetTools()
	require.Len(t, tools, 5)

	names := make(map[string][]gateway.ArgMetadata, len(tools))
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description, "tool %s has no description", tool.Name)
		names[tool.Name] = tool.Args
	}

	require.Contains(t, names, "google_gmail_send")
	var required []string
	for _, arg := range names["google_gmail_send"] {
		if arg.Required {
			required = append(required, arg.Name)
		}
	}
	assert.ElementsMatch(t, []string{"to", "subject", "body"}, required)

	assert.Contains(t, names, "google_get_oauth_url")
	assert.Contains(t, names, "google_check_oauth_status")
	assert.Contains(t, names, "google_gmail_list_messages")
	assert.Contains(t, names, "google_calendar_list_events")
}

func TestToolProvider_UnknownTool(t *testing.T) {
	fx := newToolsFixture(t)

	_, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_drive_upload", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown google tool")
}

func TestToolProvider_MissingIdentity(t *testing.T) {
	fx := newToolsFixture(t)

	res, err := fx.provider.ExecuteTool(context.Background(), "google_get_oauth_url", nil)
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, res.Content[0], "no authenticated identity")
}

func TestToolProvider_GetOAuthURL(t *testing.T) {
	fx := newToolsFixture(t)

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_get_oauth_url", nil)
	require.NoError(t, err)
	require.False(t, res.IsError)

	m := resultMap(t, res)
	// The payload is the consent URL alone.
	assert.Len(t, m, 1)
	assert.Contains(t, m["oauth_url"], "accounts.google.com/o/oauth2/v2/auth")
	assert.Contains(t, m["oauth_url"], "state=alice")
	assert.Contains(t, m["oauth_url"], "access_type=offline")
	assert.Contains(t, m["oauth_url"], "prompt=consent")
}

func TestToolProvider_CheckOAuthStatusUnauthorized(t *testing.T) {
	fx := newToolsFixture(t)

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_check_oauth_status", nil)
	require.NoError(t, err)
	require.False(t, res.IsError)

	m := resultMap(t, res)
	assert.Equal(t, false, m["authorized"])
	assert.Equal(t, "alice", m["client_id"])
	assert.Equal(t, "No Google OAuth token found or expired. Please complete the OAuth flow.", m["message"])
	assert.Contains(t, m["oauth_url"], "accounts.google.com/o/oauth2/v2/auth")
}

func TestToolProvider_CheckOAuthStatusAuthorized(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{
		"access_token": "ya29.stored",
		"created_at":   "2025-06-01T12:00:00Z",
	})

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_check_oauth_status", nil)
	require.NoError(t, err)

	m := resultMap(t, res)
	assert.Equal(t, true, m["authorized"])
	assert.Equal(t, "alice", m["client_id"])
	assert.Equal(t, "Google OAuth completed successfully.", m["message"])
	assert.Equal(t, "2025-06-01T12:00:00Z", m["created_at"])
}

func TestToolProvider_CheckOAuthStatusExpired(t *testing.T) {
	fx := newToolsFixture(t)
	// Expired access token and nothing to refresh with: back to consent.
	fx.connect(t, "alice", oauth.TokenPayload{
		"access_token": "ya29.stale",
		"expires_in":   float64(-10),
	})

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_check_oauth_status", nil)
	require.NoError(t, err)

	m := resultMap(t, res)
	assert.Equal(t, false, m["authorized"])
	assert.Contains(t, m["oauth_url"], "accounts.google.com/o/oauth2/v2/auth")
}

func TestToolProvider_GmailSend(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{"access_token": "ya29.stored"})
	fx.api.responses["/users/me/messages/send"] = `{"id":"msg-1","threadId":"th-1"}`

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_gmail_send", map[string]interface{}{
		"to":      "bob@example.com",
		"subject": "Greetings",
		"body":    "hello from the gateway",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	assert.Equal(t, "Bearer ya29.stored", fx.api.lastAuth)
	assert.NotEmpty(t, fx.api.lastJSON["raw"])

	m := resultMap(t, res)
	assert.Equal(t, "success", m["status"])
	assert.Equal(t, "msg-1", m["message_id"])
}

func TestToolProvider_GmailSendMissingArgs(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{"access_token": "ya29.stored"})

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_gmail_send", map[string]interface{}{
		"to":      "bob@example.com",
		"subject": "Greetings",
	})
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, res.Content[0], "'body' argument is required")
}

func TestToolProvider_GmailSendRequiresAuth(t *testing.T) {
	fx := newToolsFixture(t)

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_gmail_send", map[string]interface{}{
		"to":      "bob@example.com",
		"subject": "hi",
		"body":    "hi",
	})
	require.NoError(t, err)
	require.False(t, res.IsError, "missing authorization is a normal outcome, not a tool error")

	m := resultMap(t, res)
	assert.Equal(t, true, m["requires_auth"])
	assert.Equal(t, "Google OAuth token not found or expired. Please complete the OAuth flow.", m["message"])
	assert.Contains(t, m["oauth_url"], "accounts.google.com/o/oauth2/v2/auth")
	assert.Contains(t, m["oauth_url"], "state=alice")
}

func TestToolProvider_GmailSendAPIError(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{"access_token": "ya29.stored"})
	// No registered response: the stub answers 404 with a Google error
	// envelope, which must come back in the status:error shape.

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_gmail_send", map[string]interface{}{
		"to":      "bob@example.com",
		"subject": "hi",
		"body":    "hi",
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	m := resultMap(t, res)
	assert.Equal(t, "error", m["status"])
	assert.Contains(t, m["message"], "status 404")
}

func TestToolProvider_GmailList(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{"access_token": "ya29.stored"})
	fx.api.responses["/users/me/messages"] = `{
		"messages": [{"id":"m1","threadId":"t1"}],
		"nextPageToken": "page-2"
	}`

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_gmail_list_messages", map[string]interface{}{
		"query": "is:unread",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	// Default max_results applied, query forwarded.
	assert.Equal(t, "is:unread", fx.api.lastQuery.Get("q"))
	assert.Equal(t, "10", fx.api.lastQuery.Get("maxResults"))

	m := resultMap(t, res)
	messages, ok := m["messages"].([]MessageRef)
	require.True(t, ok, "messages is %T", m["messages"])
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "page-2", m["next_page_token"])
}

func TestToolProvider_GmailListBadMaxResults(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{"access_token": "ya29.stored"})

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_gmail_list_messages", map[string]interface{}{
		"max_results": "plenty",
	})
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, res.Content[0], "'max_results' must be a number")
}

func TestToolProvider_CalendarList(t *testing.T) {
	fx := newToolsFixture(t)
	fx.connect(t, "alice", oauth.TokenPayload{"access_token": "ya29.stored"})
	fx.api.responses["/calendars/primary/events"] = `{
		"items": [{"id":"ev1","summary":"Standup","start":{"dateTime":"2025-06-02T09:00:00Z"},"end":{"dateTime":"2025-06-02T09:15:00Z"}}]
	}`

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_calendar_list_events", map[string]interface{}{
		"calendar_id": "primary",
		"time_min":    "2025-06-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	// Defaults applied alongside the caller's bounds.
	assert.Equal(t, "2025-06-01T00:00:00Z", fx.api.lastQuery.Get("timeMin"))
	assert.Equal(t, "10", fx.api.lastQuery.Get("maxResults"))
	assert.Equal(t, "true", fx.api.lastQuery.Get("singleEvents"))
	assert.Equal(t, "startTime", fx.api.lastQuery.Get("orderBy"))

	m := resultMap(t, res)
	events, ok := m["events"].([]Event)
	require.True(t, ok, "events is %T", m["events"])
	assert.Equal(t, "Standup", events[0].Summary)
}

func TestToolProvider_CalendarListMissingCalendar(t *testing.T) {
	fx := newToolsFixture(t)

	res, err := fx.provider.ExecuteTool(identityCtx("alice"), "google_calendar_list_events", nil)
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, res.Content[0], "'calendar_id' argument is required")
}
