package oauth

import (
	"fmt"
	"net/http"
)

// OAuth 2.0 error codes (RFC 6749 section 5.2, plus registration and
// revocation codes).
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeUnsupportedTokenType    = "unsupported_token_type"
	ErrorCodeServerError             = "server_error"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeInvalidRedirectURI      = "invalid_redirect_uri"
	ErrorCodeRateLimitExceeded       = "rate_limit_exceeded"
)

// OAuthError is a protocol-level error carrying the wire error code and
// the HTTP status the transport should answer with.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates an error with an explicit code and status, for
// codes without a dedicated constructor below.
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status}
}

// ErrInvalidRequest is for malformed requests and missing parameters.
func ErrInvalidRequest(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
}

// ErrInvalidGrant is for invalid, expired, or replayed codes and
// refresh tokens.
func ErrInvalidGrant(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
}

// ErrInvalidClient is for failed client authentication.
func ErrInvalidClient(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
}

// ErrInvalidScope is for unknown scopes or scopes beyond what the
// client may request.
func ErrInvalidScope(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
}

// ErrInvalidToken is for invalid or expired access tokens.
func ErrInvalidToken(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidToken, desc, http.StatusUnauthorized)
}

// ErrUnauthorizedClient is for clients not registered for the requested
// grant type or response type.
func ErrUnauthorizedClient(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeUnauthorizedClient, desc, http.StatusBadRequest)
}

// ErrUnsupportedGrantType is for grant types the engine does not
// implement.
func ErrUnsupportedGrantType(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
}

// ErrUnsupportedResponseType is for response types the engine does not
// implement.
func ErrUnsupportedResponseType(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeUnsupportedResponseType, desc, http.StatusBadRequest)
}

// ErrServerError is for storage and other internal failures.
func ErrServerError(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeServerError, desc, http.StatusInternalServerError)
}

// ErrAccessDenied is for requests refused by the resource owner.
func ErrAccessDenied(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeAccessDenied, desc, http.StatusForbidden)
}

// ErrInvalidRedirectURI is for redirect URIs that are unregistered or
// fail the registration rules.
func ErrInvalidRedirectURI(desc string) *OAuthError {
	return NewOAuthError(ErrorCodeInvalidRedirectURI, desc, http.StatusBadRequest)
}
