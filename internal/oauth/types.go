package oauth

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Provider describes one OAuth integration end to end: where users grant
// consent, where codes are exchanged, and how token lifetimes are judged
// when the provider's payload does not say.
type Provider struct {
	// Name is the integration_type value in the credential store and the
	// path segment of the callback route.
	Name string

	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// ExtraAuthParams are appended to the consent URL. Google needs
	// access_type=offline and prompt=consent to be handed refresh tokens.
	ExtraAuthParams map[string]string

	// DefaultExpiresIn is assumed when a stored payload has no expires_in.
	// Zero means payloads without expires_in and without a refresh token
	// never expire, which is how Slack bot tokens behave with rotation off.
	DefaultExpiresIn time.Duration

	// CheckTokenResponse inspects a 2xx token-endpoint payload for
	// provider-level failure. Slack reports errors inside a 200 body.
	CheckTokenResponse func(TokenPayload) error

	// Enrich folds provider metadata into the payload before its first
	// store, such as Slack's team and workspace identifiers. It runs on
	// code exchange only, never on refresh; refreshed payloads keep the
	// enriched fields through the merge. Nil stores the payload as the
	// provider returned it.
	Enrich func(payload TokenPayload, identity string, now time.Time) TokenPayload
}

// ConsentURL builds the authorization URL a user must visit to connect this
// provider. The state parameter carries the caller identity so the callback
// can attribute the returning code.
func (p *Provider) ConsentURL(identity string) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(p.ExtraAuthParams))
	for k, v := range p.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return p.oauth2Config().AuthCodeURL(identity, opts...)
}

func (p *Provider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURI,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
	}
}

// Result is the outcome of resolving an integration session. It is a closed
// set: Authorized when a usable access token exists, AuthorizationRequired
// when the user must (re)grant consent. There is no third state.
type Result interface {
	sealedResult()
}

// Authorized carries a ready-to-use access token.
type Authorized struct {
	Token   RedactedToken
	Payload TokenPayload
}

func (Authorized) sealedResult() {}

// AuthorizationRequired carries the consent URL the user must visit.
type AuthorizationRequired struct {
	AuthorizationURL string
}

func (AuthorizationRequired) sealedResult() {}

// ProviderError is a failure reported by the provider's token endpoint,
// either a non-2xx response or an in-band error like Slack's ok:false.
// Message holds the provider's own wording; the callback handler relays it
// verbatim so users see what the provider objected to.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s token endpoint: %s", e.Provider, e.Message)
}
