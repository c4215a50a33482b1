package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultAPIBaseURL is the Slack Web API root.
const DefaultAPIBaseURL = "https://slack.com/api"

const maxResponseBytes = 1 << 20

// APIError is a Slack-reported failure: ok:false with an error code inside
// an otherwise successful HTTP response.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// Client is a minimal Slack Web API client covering the calls the gateway
// tools need. It is bound to a single bot token; callers construct one per
// resolved credential.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient returns a client authenticating with the given bot token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultAPIBaseURL,
		token:      token,
	}
}

// AuthInfo is the subset of auth.test the status tool reports.
type AuthInfo struct {
	URL    string `json:"url"`
	Team   string `json:"team"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id,omitempty"`
}

// Channel is a conversation as conversations.list reports it.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
	IsMember   bool   `json:"is_member"`
	NumMembers int    `json:"num_members,omitempty"`
}

// Message is a single channel message.
type Message struct {
	Type     string `json:"type"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// PostMessageRequest carries the chat.postMessage arguments the send tool
// exposes.
type PostMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// PostMessageResponse reports where the message landed.
type PostMessageResponse struct {
	Channel string
	TS      string
}

// ListChannelsRequest carries conversations.list arguments. Zero values fall
// back to Slack's defaults except Types, which the caller always sets.
type ListChannelsRequest struct {
	Types           string
	ExcludeArchived bool
	Limit           int
	Cursor          string
}

// ListChannelsResponse is one page of conversations.
type ListChannelsResponse struct {
	Channels   []Channel
	NextCursor string
}

// HistoryRequest carries conversations.history arguments.
type HistoryRequest struct {
	Channel string
	Limit   int
	Cursor  string
	Latest  string
	Oldest  string
}

// HistoryResponse is one page of channel messages.
type HistoryResponse struct {
	Messages   []Message
	HasMore    bool
	NextCursor string
}

// AuthTest verifies the token and reports the workspace it belongs to.
func (c *Client) AuthTest(ctx context.Context) (*AuthInfo, error) {
	var resp struct {
		apiEnvelope
		AuthInfo
	}
	if err := c.postJSON(ctx, "auth.test", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp.AuthInfo, nil
}

// PostMessage sends a message via chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, req PostMessageRequest) (*PostMessageResponse, error) {
	var resp struct {
		apiEnvelope
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}
	if err := c.postJSON(ctx, "chat.postMessage", req, &resp); err != nil {
		return nil, err
	}
	return &PostMessageResponse{Channel: resp.Channel, TS: resp.TS}, nil
}

// ListChannels fetches one page of conversations.list.
func (c *Client) ListChannels(ctx context.Context, req ListChannelsRequest) (*ListChannelsResponse, error) {
	params := url.Values{}
	if req.Types != "" {
		params.Set("types", req.Types)
	}
	if req.ExcludeArchived {
		params.Set("exclude_archived", "true")
	}
	if req.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Cursor != "" {
		params.Set("cursor", req.Cursor)
	}

	var resp struct {
		apiEnvelope
		Channels         []Channel        `json:"channels"`
		ResponseMetadata responseMetadata `json:"response_metadata"`
	}
	if err := c.getQuery(ctx, "conversations.list", params, &resp); err != nil {
		return nil, err
	}
	return &ListChannelsResponse{
		Channels:   resp.Channels,
		NextCursor: resp.ResponseMetadata.NextCursor,
	}, nil
}

// ChannelHistory fetches one page of conversations.history.
func (c *Client) ChannelHistory(ctx context.Context, req HistoryRequest) (*HistoryResponse, error) {
	params := url.Values{}
	params.Set("channel", req.Channel)
	if req.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Cursor != "" {
		params.Set("cursor", req.Cursor)
	}
	if req.Latest != "" {
		params.Set("latest", req.Latest)
	}
	if req.Oldest != "" {
		params.Set("oldest", req.Oldest)
	}

	var resp struct {
		apiEnvelope
		Messages         []Message        `json:"messages"`
		HasMore          bool             `json:"has_more"`
		ResponseMetadata responseMetadata `json:"response_metadata"`
	}
	if err := c.getQuery(ctx, "conversations.history", params, &resp); err != nil {
		return nil, err
	}
	return &HistoryResponse{
		Messages:   resp.Messages,
		HasMore:    resp.HasMore,
		NextCursor: resp.ResponseMetadata.NextCursor,
	}, nil
}

// apiEnvelope holds the fields every Web API response carries. Response
// structs embed it so the transport helpers can surface ok:false uniformly.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e apiEnvelope) apiError(method string) error {
	if e.OK {
		return nil
	}
	code := e.Error
	if code == "" {
		code = "unknown_error"
	}
	return &APIError{Method: method, Code: code}
}

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type apiResult interface {
	apiError(method string) error
}

func (c *Client) postJSON(ctx context.Context, method string, payload interface{}, out apiResult) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack %s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.do(req, method, out)
}

func (c *Client) getQuery(ctx context.Context, method string, params url.Values, out apiResult) error {
	u := c.baseURL + "/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("slack %s: build request: %w", method, err)
	}
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out apiResult) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("slack %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("slack %s: decode response: %w", method, err)
	}
	return out.apiError(method)
}
