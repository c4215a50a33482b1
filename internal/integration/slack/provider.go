// Package slack integrates Slack workspaces with the gateway: the OAuth v2
// descriptor for the consent flow, a minimal Web API client, and the tool
// provider the MCP surface is built from.
package slack

import (
	"fmt"
	"time"

	"warden/internal/config"
	"warden/internal/oauth"
)

const (
	// Integration is the integration_type Slack credentials are stored
	// under and the callback route's path segment.
	Integration = "slack"

	// AuthURL and TokenURL are Slack's OAuth v2 endpoints. Token exchange
	// goes through the Web API rather than a dedicated OAuth host, and
	// failures come back inside a 200 body.
	AuthURL  = "https://slack.com/oauth/v2/authorize"
	TokenURL = "https://slack.com/api/oauth.v2.access"
)

// NewProvider builds the Slack OAuth descriptor. Bot tokens issued without
// rotation do not expire and the response carries no expires_in, so no
// default lifetime is set; CheckTokenResponse catches Slack's in-band
// ok:false errors and Enrich flattens workspace metadata into the payload
// before it is stored.
func NewProvider(cfg config.IntegrationConfig, redirectURI string) *oauth.Provider {
	return &oauth.Provider{
		Name:               Integration,
		AuthURL:            AuthURL,
		TokenURL:           TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		RedirectURI:        redirectURI,
		Scopes:             cfg.Scopes,
		CheckTokenResponse: checkTokenResponse,
		Enrich:             enrichPayload,
	}
}

func checkTokenResponse(payload oauth.TokenPayload) error {
	if ok, _ := payload["ok"].(bool); !ok {
		code, _ := payload["error"].(string)
		if code == "" {
			code = "unknown_error"
		}
		return fmt.Errorf("%s", code)
	}
	return nil
}

// enrichPayload lifts the workspace and user identifiers out of Slack's
// nested response objects so status lookups do not have to dig, and records
// which caller the credential belongs to and when it was connected.
func enrichPayload(payload oauth.TokenPayload, identity string, now time.Time) oauth.TokenPayload {
	enriched := payload.Merge(oauth.TokenPayload{
		"jwt_client_id": identity,
		"created_at":    now.UTC().Format(time.RFC3339),
	})
	if team, ok := payload["team"].(map[string]interface{}); ok {
		if id, ok := team["id"].(string); ok {
			enriched["team_id"] = id
		}
		if name, ok := team["name"].(string); ok {
			enriched["team_name"] = name
		}
	}
	if authed, ok := payload["authed_user"].(map[string]interface{}); ok {
		if id, ok := authed["id"].(string); ok {
			enriched["slack_user_id"] = id
		}
	}
	return enriched
}
