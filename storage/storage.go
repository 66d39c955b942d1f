// Package storage defines interfaces for persisting OAuth clients, authorization
// grants, and tokens. It supports various backend implementations including
// in-memory and Valkey/Redis-compatible stores.
package storage

import (
	"context"
	"time"
)

// ClientStore defines the interface for managing OAuth client registrations.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret validates a client's secret
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// ListClients lists all registered clients (for admin purposes)
	ListClients(ctx context.Context) ([]*Client, error)

	// DeleteClient removes a client registration
	DeleteClient(ctx context.Context, clientID string) error
}

// GrantStore defines the interface for managing authorization grants
// (authorization codes). All methods accept context.Context for tracing
// and cancellation.
type GrantStore interface {
	// SaveGrant saves an issued authorization grant
	SaveGrant(ctx context.Context, grant *Grant) error

	// GetGrant retrieves a grant by code without consuming it
	GetGrant(ctx context.Context, code string) (*Grant, error)

	// ConsumeGrant atomically checks that a grant is unused and marks it as used.
	// Exactly one concurrent caller succeeds. Returns:
	// - (grant, nil) on success
	// - (nil, ErrGrantNotFound) when the code does not exist
	// - (nil, ErrGrantExpired) when the code has expired
	// - (grant, ErrGrantConsumed) when the code was already used; the grant is
	//   returned so the caller can revoke the tokens it produced
	// SECURITY: This operation MUST be atomic to prevent concurrent code exchange attacks.
	ConsumeGrant(ctx context.Context, code string) (*Grant, error)

	// DeleteGrant removes a grant
	DeleteGrant(ctx context.Context, code string) error
}

// TokenStore defines the interface for managing access and refresh tokens.
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// SaveAccessToken saves an issued access token
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken retrieves an access token by its value
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// RevokeAccessToken marks an access token as revoked.
	// Revoking an unknown token returns ErrTokenNotFound.
	RevokeAccessToken(ctx context.Context, token string) error

	// SaveRefreshToken saves an issued refresh token
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a refresh token by its value
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// ConsumeRefreshToken atomically retrieves a refresh token and marks it
	// as rotated. Exactly one concurrent caller succeeds. Returns:
	// - (token, nil) on success
	// - (nil, ErrTokenNotFound) when the token does not exist
	// - (nil, ErrTokenExpired) when the token has expired
	// - (token, ErrTokenRevoked) when the token was already rotated or revoked;
	//   the record is returned so the caller can revoke the token family
	// SECURITY: This operation MUST be atomic to prevent concurrent refresh attacks.
	ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// RevokeRefreshToken marks a refresh token as revoked.
	// Revoking an unknown token returns ErrTokenNotFound.
	RevokeRefreshToken(ctx context.Context, token string) error

	// RevokeAllTokensForUserClient revokes all tokens (access + refresh) for a
	// specific user+client combination. This is called when grant or refresh
	// token reuse is detected (OAuth 2.1 requirement).
	// Returns the number of tokens revoked and any error encountered.
	RevokeAllTokensForUserClient(ctx context.Context, userID, clientID string) (int, error)

	// ActiveAccessTokens retrieves the unexpired, unrevoked access tokens for a
	// user+client combination. Used to decide whether a returning user can skip
	// the approval prompt.
	ActiveAccessTokens(ctx context.Context, userID, clientID string) ([]*AccessToken, error)
}

// Store combines all storage interfaces. Backends that persist clients,
// grants, and tokens in one place implement this.
type Store interface {
	ClientStore
	GrantStore
	TokenStore
}

// Client represents a registered OAuth client
type Client struct {
	ClientID          string
	ClientSecretHash  string // bcrypt hash, empty for public clients
	ClientType        string // "public" or "confidential"
	Name              string
	RedirectURIs      []string
	GrantTypes        []string
	Scopes            []string
	SkipAuthorization bool // first-party clients skip the approval prompt
	CreatedAt         time.Time
}

// Grant represents an issued authorization code and the approval it captures
type Grant struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Used                bool
}

// AccessToken represents an issued access token
type AccessToken struct {
	Token        string
	ClientID     string
	UserID       string // empty for client_credentials tokens
	Scopes       []string
	GrantType    string // grant type that produced this token
	RefreshToken string // paired refresh token value, empty if none
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Revoked      bool
}

// RefreshToken represents an issued refresh token
type RefreshToken struct {
	Token       string
	ClientID    string
	UserID      string
	Scopes      []string
	AccessToken string // paired access token value
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Rotated     bool // consumed by rotation, successor was issued
	Revoked     bool
}

// Expired reports whether the grant's expiry has passed.
func (g *Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// Expired reports whether the token's expiry has passed.
func (t *AccessToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Expired reports whether the token's expiry has passed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
