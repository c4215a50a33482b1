package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TokenPayload is a provider token response, kept as the provider sent it.
// Slack packs team and bot metadata beside the token; Google adds scope and
// id_token. Everything is persisted so nothing the provider said is lost.
type TokenPayload map[string]any

// ParsePayload decodes a stored or freshly received token payload.
func ParsePayload(data []byte) (TokenPayload, error) {
	var p TokenPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("decode token payload: null payload")
	}
	return p, nil
}

// AccessToken returns the access_token field, redacted for safe handling.
func (p TokenPayload) AccessToken() RedactedToken {
	return NewRedactedToken(stringValue(p["access_token"]))
}

// RefreshToken returns the refresh_token field, redacted for safe handling.
func (p TokenPayload) RefreshToken() RedactedToken {
	return NewRedactedToken(stringValue(p["refresh_token"]))
}

// ExpiresIn reads the expires_in field, tolerating the numeric and string
// encodings seen across providers. ok is false when the field is absent or
// unreadable.
func (p TokenPayload) ExpiresIn() (time.Duration, bool) {
	v, present := p["expires_in"]
	if !present {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return time.Duration(n) * time.Second, true
	case int:
		return time.Duration(n) * time.Second, true
	case int64:
		return time.Duration(n) * time.Second, true
	case json.Number:
		secs, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	case string:
		secs, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	default:
		return 0, false
	}
}

// Merge overlays update onto a copy of p, field by field. Fields the update
// does not mention survive, which is what keeps the refresh token across
// refresh responses that omit it.
func (p TokenPayload) Merge(update TokenPayload) TokenPayload {
	merged := make(TokenPayload, len(p)+len(update))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// Canonical encodes the payload as JSON with stable key order, the form the
// credential store holds.
func (p TokenPayload) Canonical() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}
	return string(data), nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
