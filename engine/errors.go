package engine

import (
	"net/url"

	oauth "github.com/giantswarm/oauth2-engine"
)

// AuthorizationError is a failed authorization request. Redirectable errors
// occurred after the redirect URI was verified against the client's
// registration and may be delivered to it per RFC 6749 Section 4.1.2.1;
// non-redirectable errors (unknown client, untrusted redirect URI) must be
// rendered directly using Status.
type AuthorizationError struct {
	// OAuthError carries the error code, description, and HTTP-ish status
	*oauth.OAuthError

	// RedirectURI is the verified redirect URI, empty when not redirectable
	RedirectURI string

	// ResponseType selects query (code) or fragment (token) error delivery
	ResponseType string

	// State is echoed back verbatim when present
	State string
}

// Redirectable reports whether the error may be delivered to the client's
// redirect URI.
func (e *AuthorizationError) Redirectable() bool {
	return e.RedirectURI != ""
}

// RedirectURL builds the error redirect per RFC 6749: error and
// error_description as query parameters for response_type=code, in the
// fragment for response_type=token. Returns "" when not redirectable.
func (e *AuthorizationError) RedirectURL() string {
	if !e.Redirectable() {
		return ""
	}

	params := url.Values{}
	params.Set("error", e.Code)
	if e.Description != "" {
		params.Set("error_description", e.Description)
	}
	if e.State != "" {
		params.Set("state", e.State)
	}

	if e.ResponseType == oauth.ResponseTypeToken {
		return e.RedirectURI + "#" + params.Encode()
	}
	return appendQuery(e.RedirectURI, params)
}

// Unwrap exposes the underlying OAuth error for errors.As.
func (e *AuthorizationError) Unwrap() error {
	return e.OAuthError
}

// appendQuery attaches params to uri, respecting an existing query string.
func appendQuery(uri string, params url.Values) string {
	sep := "?"
	if parsed, err := url.Parse(uri); err == nil && parsed.RawQuery != "" {
		sep = "&"
	}
	return uri + sep + params.Encode()
}

// nonRedirectable wraps an OAuth error before a trusted redirect URI exists.
func nonRedirectable(oerr *oauth.OAuthError) *AuthorizationError {
	return &AuthorizationError{OAuthError: oerr}
}

// redirectable wraps an OAuth error for delivery to a verified redirect URI.
func redirectable(oerr *oauth.OAuthError, redirectURI, responseType, state string) *AuthorizationError {
	return &AuthorizationError{
		OAuthError:   oerr,
		RedirectURI:  redirectURI,
		ResponseType: responseType,
		State:        state,
	}
}
