// Package oauth provides the wire-level types, constants, and error codes
// shared by the OAuth 2.0 authorization server engine and its callers.
package oauth

// Grant type values accepted at the token endpoint (RFC 6749 Section 4)
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypePassword          = "password"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"

	// GrantTypeImplicit gates the response_type=token flow in client
	// registrations; it never appears at the token endpoint
	GrantTypeImplicit = "implicit"
)

// Response type values accepted at the authorization endpoint
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// Client types (RFC 6749 Section 2.1)
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Token type hints for revocation requests (RFC 7009 Section 2.1)
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// TokenTypeBearer is the token_type value in successful token responses
const TokenTypeBearer = "Bearer"

// PKCE constants (RFC 7636)
const (
	// MinCodeVerifierLength is the minimum code_verifier length per RFC 7636
	MinCodeVerifierLength = 43

	// MaxCodeVerifierLength is the maximum code_verifier length per RFC 7636
	MaxCodeVerifierLength = 128

	// PKCEMethodS256 is the SHA-256 code challenge method (recommended)
	PKCEMethodS256 = "S256"

	// PKCEMethodPlain is the plaintext code challenge method (deprecated)
	PKCEMethodPlain = "plain"
)
