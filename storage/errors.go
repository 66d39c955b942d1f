package storage

import "errors"

// Sentinel errors returned by storage implementations. Callers match these
// with errors.Is to distinguish not-found, expired, and reuse conditions.
var (
	// ErrClientNotFound indicates the client ID is not registered
	ErrClientNotFound = errors.New("client not found")

	// ErrGrantNotFound indicates the authorization code does not exist
	ErrGrantNotFound = errors.New("authorization grant not found")

	// ErrGrantExpired indicates the authorization code has expired
	ErrGrantExpired = errors.New("authorization grant expired")

	// ErrGrantConsumed indicates the authorization code was already used.
	// This signals a replay attempt and triggers token revocation.
	ErrGrantConsumed = errors.New("authorization grant already used")

	// ErrTokenNotFound indicates the token does not exist
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired indicates the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked indicates the token was revoked or already rotated.
	// For refresh tokens this signals a replay attempt.
	ErrTokenRevoked = errors.New("token revoked")
)
