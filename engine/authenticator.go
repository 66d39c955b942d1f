package engine

import (
	"context"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/storage"
)

// UserAuthenticator verifies resource-owner credentials for the password
// grant. Implementations return the stable user ID on success and an error
// on failure; the error detail is logged, never sent to the client.
type UserAuthenticator interface {
	AuthenticateUser(ctx context.Context, username, password string) (userID string, err error)
}

// UserAuthenticatorFunc adapts a function to the UserAuthenticator interface.
type UserAuthenticatorFunc func(ctx context.Context, username, password string) (string, error)

// AuthenticateUser calls fn.
func (fn UserAuthenticatorFunc) AuthenticateUser(ctx context.Context, username, password string) (string, error) {
	return fn(ctx, username, password)
}

// TokenIssuedEvent describes a successful token issuance, delivered to the
// OnTokenIssued callback after the tokens are persisted.
type TokenIssuedEvent struct {
	// GrantType is the grant that produced the tokens
	GrantType string

	// Request is the token request as received, verbatim
	Request TokenRequest

	// AccessToken is the persisted access token record
	AccessToken *storage.AccessToken

	// RefreshToken is the persisted refresh token record, nil if none was issued
	RefreshToken *storage.RefreshToken

	// Response is the payload returned to the client
	Response *oauth.TokenResponse
}

// TokenIssuedFunc receives token issuance notifications. Errors are logged
// and do not fail the issuance; the tokens are already persisted.
type TokenIssuedFunc func(ctx context.Context, event TokenIssuedEvent) error
