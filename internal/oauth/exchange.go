package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ExchangeClient performs the outbound token-endpoint calls: exchanging an
// authorization code and refreshing an expired token. Responses are kept as
// raw payloads; provider-reported failures surface as *ProviderError with
// the provider's wording intact.
type ExchangeClient struct {
	httpClient *http.Client
}

// NewExchangeClient constructs a client. A nil httpClient gets a default
// with a 10 second timeout; token endpoints that hang must not stall tool
// calls indefinitely.
func NewExchangeClient(httpClient *http.Client) *ExchangeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ExchangeClient{httpClient: httpClient}
}

// Exchange trades an authorization code for a token payload.
func (c *ExchangeClient) Exchange(ctx context.Context, p *Provider, code string) (TokenPayload, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.RedirectURI)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	return c.post(ctx, p, form)
}

// Refresh trades a refresh token for a new token payload.
func (c *ExchangeClient) Refresh(ctx context.Context, p *Provider, refreshToken string) (TokenPayload, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	return c.post(ctx, p, form)
}

func (c *ExchangeClient) post(ctx context.Context, p *Provider, form url.Values) (TokenPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   p.Name,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(body, resp.StatusCode),
		}
	}

	var payload TokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	if p.CheckTokenResponse != nil {
		if err := p.CheckTokenResponse(payload); err != nil {
			return nil, &ProviderError{
				Provider:   p.Name,
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
			}
		}
	}

	return payload, nil
}

// providerMessage extracts the most useful error text from a failed token
// response: the standard error/error_description fields when the body is
// JSON, otherwise the body itself.
func providerMessage(body []byte, status int) string {
	var parsed struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		if parsed.Description != "" {
			return parsed.Error + ": " + parsed.Description
		}
		return parsed.Error
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
