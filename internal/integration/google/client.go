package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGmailBaseURL    = "https://gmail.googleapis.com/gmail/v1"
	DefaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"

	maxResponseBytes = 1 << 20
)

// APIError is a failed Google API call. Unlike Slack, Google signals
// failure through the HTTP status code and carries the detail in an
// error object in the body.
type APIError struct {
	StatusCode int
	Status     string // symbolic status such as PERMISSION_DENIED, may be empty
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("google api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("google api: status %d", e.StatusCode)
}

// Client calls the Gmail and Calendar REST APIs with a user's access
// token. Methods map one-to-one onto API calls and return *APIError for
// failures Google reports.
type Client struct {
	httpClient      *http.Client
	gmailBaseURL    string
	calendarBaseURL string
	token           string
}

// NewClient returns a client authenticating as the given access token.
func NewClient(token string) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		gmailBaseURL:    DefaultGmailBaseURL,
		calendarBaseURL: DefaultCalendarBaseURL,
		token:           token,
	}
}

// MessageRef identifies a Gmail message in list results. Gmail's list
// endpoint returns only identifiers; fetching content is a separate call.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// SendMessageRequest describes an outgoing plain-text mail. To, CC and
// BCC take comma-separated address lists as they appear in mail headers.
type SendMessageRequest struct {
	To       string
	CC       string
	BCC      string
	Subject  string
	Body     string
	ThreadID string
}

type SendMessageResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type ListMessagesRequest struct {
	Query      string
	MaxResults int
}

type ListMessagesResponse struct {
	Messages           []MessageRef `json:"messages"`
	NextPageToken      string       `json:"nextPageToken"`
	ResultSizeEstimate int          `json:"resultSizeEstimate"`
}

// EventTime is a Calendar event boundary. All-day events carry Date,
// timed events carry DateTime.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type Event struct {
	ID          string    `json:"id"`
	Status      string    `json:"status,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

type ListEventsRequest struct {
	CalendarID   string
	TimeMin      string
	TimeMax      string
	MaxResults   int
	SingleEvents bool
	OrderBy      string
}

type ListEventsResponse struct {
	Events        []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
}

// SendGmail sends a plain-text mail as the token's user. Gmail takes the
// full RFC 2822 message base64url-encoded in the raw field; passing a
// thread id makes the mail a reply within that thread.
func (c *Client) SendGmail(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	body := map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(buildMIMEMessage(req))),
	}
	if req.ThreadID != "" {
		body["threadId"] = req.ThreadID
	}
	var out SendMessageResponse
	if err := c.postJSON(ctx, c.gmailBaseURL+"/users/me/messages/send", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGmailMessages lists message ids matching a Gmail search query, most
// recent first.
func (c *Client) ListGmailMessages(ctx context.Context, req ListMessagesRequest) (*ListMessagesResponse, error) {
	params := url.Values{}
	if req.Query != "" {
		params.Set("q", req.Query)
	}
	if req.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(req.MaxResults))
	}
	var out ListMessagesResponse
	if err := c.getQuery(ctx, c.gmailBaseURL+"/users/me/messages", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCalendarEvents lists events from one calendar. SingleEvents expands
// recurring events into instances, which Google requires for startTime
// ordering.
func (c *Client) ListCalendarEvents(ctx context.Context, req ListEventsRequest) (*ListEventsResponse, error) {
	params := url.Values{}
	if req.TimeMin != "" {
		params.Set("timeMin", req.TimeMin)
	}
	if req.TimeMax != "" {
		params.Set("timeMax", req.TimeMax)
	}
	if req.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(req.MaxResults))
	}
	if req.SingleEvents {
		params.Set("singleEvents", "true")
	}
	if req.OrderBy != "" {
		params.Set("orderBy", req.OrderBy)
	}
	endpoint := c.calendarBaseURL + "/calendars/" + url.PathEscape(req.CalendarID) + "/events"
	var out ListEventsResponse
	if err := c.getQuery(ctx, endpoint, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// buildMIMEMessage assembles the RFC 2822 text Gmail expects inside the
// raw field of a send request.
func buildMIMEMessage(req SendMessageRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", req.To)
	if req.CC != "" {
		fmt.Fprintf(&b, "Cc: %s\r\n", req.CC)
	}
	if req.BCC != "" {
		fmt.Fprintf(&b, "Bcc: %s\r\n", req.BCC)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", req.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(req.Body)
	return b.String()
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.do(req, out)
}

func (c *Client) getQuery(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromBody(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiErrorFromBody builds an APIError from a non-2xx response. The error
// envelope is best effort: quota and proxy failures sometimes come back
// as HTML, which leaves only the status code.
func apiErrorFromBody(statusCode int, data []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(data, &envelope); err == nil {
		apiErr.Status = envelope.Error.Status
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
