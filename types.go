package oauth

// TokenResponse represents a successful OAuth 2.0 token response (RFC 6749 Section 5.1)
type TokenResponse struct {
	// AccessToken is the access token issued by the authorization server
	AccessToken string `json:"access_token"`

	// TokenType is the type of the token issued (always "Bearer")
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime of the access token in seconds
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is the refresh token, when one was issued
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-separated scope of the access token
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`

	// ErrorURI points to error documentation
	ErrorURI string `json:"error_uri,omitempty"`
}

// ClientRegistration describes a client to register with the engine.
// Fields map to RFC 7591 client metadata where applicable.
type ClientRegistration struct {
	// Name is the human-readable name of the client
	Name string

	// RedirectURIs is the array of redirection URIs for redirect-based flows
	RedirectURIs []string

	// ClientType indicates if this is a "public" or "confidential" client.
	// Public clients (mobile, SPA) receive no secret.
	// Confidential clients (server-side) receive a generated secret.
	ClientType string

	// Scopes lists the scopes the client may request. Empty means the
	// registry defaults apply.
	Scopes []string

	// GrantTypes lists the grant types the client may use. Empty means
	// authorization_code plus refresh_token.
	GrantTypes []string

	// SkipAuthorization marks first-party clients whose authorization
	// requests never require user approval
	SkipAuthorization bool
}
