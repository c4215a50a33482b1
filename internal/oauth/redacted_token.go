package oauth

// RedactedToken wraps a provider credential so it cannot leak through
// logging or serialization by accident. Session results and payload
// accessors hand out tokens in this form; only the integration API clients
// unwrap them, right before setting an Authorization header.
//
//	token := payload.AccessToken()
//	fmt.Println(token)            // prints: [REDACTED]
//	req.Header.Set("Authorization", "Bearer "+token.Value())
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps the given credential value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the actual credential. Use it only to authenticate an
// outbound request; never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer, returning "[REDACTED]" so %s and %v
// formatting stay safe.
func (t RedactedToken) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{[REDACTED]}"
}

// IsEmpty reports whether no credential is present.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// MarshalText keeps the credential out of text serializations.
func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON keeps the credential out of JSON serializations.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
