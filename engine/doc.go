// Package engine implements the core OAuth 2.0 authorization-server logic.
//
// The Engine is transport-agnostic: it validates authorization requests,
// issues authorization codes and tokens, exchanges grants at the token
// endpoint, and processes revocations, while the caller owns the HTTP
// surface, session handling, and the consent UI. Durable state lives behind
// the storage interfaces; the engine itself is stateless between calls and
// safe for concurrent use.
//
// The authorization flow is split at the consent boundary:
//   - ValidateAuthorizationRequest checks the request against the client
//     and scope registries and returns an immutable PendingAuthorization
//   - the caller renders consent (or skips it per ShouldSkipApproval)
//   - CreateAuthorizationResponse turns the decision into a redirect
//
// Key features:
//   - Authorization code flow with mandatory PKCE for public clients
//   - Password, client_credentials, and refresh_token grants (RFC 6749)
//   - Refresh token rotation with reuse detection (OAuth 2.1)
//   - Authorization code replay detection with token revocation cascade
//   - Token revocation with access/refresh cascading (RFC 7009)
//   - Dynamic client registration with redirect URI hardening (RFC 8252)
//
// Example usage:
//
//	store := memory.New()
//	registry, _ := scopes.NewRegistry(
//	    scopes.Scope{Name: "read", Description: "Read access", Default: true},
//	    scopes.Scope{Name: "write", Description: "Write access"},
//	)
//
//	eng, err := engine.New(store, store, store, registry, engine.Config{}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pending, err := eng.ValidateAuthorizationRequest(ctx, params)
//	// ... render consent, then:
//	redirect, err := eng.CreateAuthorizationResponse(ctx, userID, pending, true)
package engine
