package engine

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/scopes"
	"github.com/giantswarm/oauth2-engine/storage"
)

// TokenRequest is a token endpoint request as received (RFC 6749 Section 3.2),
// before validation. The caller decodes the form body and client
// authentication into this struct; unused fields stay empty.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string

	// authorization_code grant
	Code         string
	RedirectURI  string
	CodeVerifier string

	// password grant
	Username string
	Password string

	// refresh_token grant
	RefreshToken string

	// scope is honored by the password, client_credentials, and
	// refresh_token grants; the authorization_code grant uses the scope
	// bound at authorization time
	Scope string
}

// CreateTokenResponse handles a token endpoint request, dispatching on
// grant_type (RFC 6749 Section 4). It returns the response payload and the
// HTTP status to serve it with; failures return a nil payload, the error
// status, and an *oauth.OAuthError whose code and description form the RFC
// 6749 Section 5.2 error body.
func (e *Engine) CreateTokenResponse(ctx context.Context, req TokenRequest) (*oauth.TokenResponse, int, error) {
	ctx, span := e.tracer.Start(ctx, "oauth.token_request")
	defer span.End()
	instrumentation.SetSpanAttributes(span,
		instrumentation.AttrClientID.String(req.ClientID),
		instrumentation.AttrGrantType.String(req.GrantType),
	)

	resp, err := e.createTokenResponse(ctx, req)
	if err != nil {
		var oerr *oauth.OAuthError
		if !errors.As(err, &oerr) {
			e.Logger.Error("Token request failed with internal error",
				"client_id", req.ClientID, "grant_type", req.GrantType, "error", err)
			oerr = oauth.ErrServerError("internal error")
		}
		instrumentation.RecordError(span, oerr)
		return nil, oerr.Status, oerr
	}

	instrumentation.SetSpanSuccess(span)
	if m := e.metrics(); m != nil {
		m.RecordTokenIssued(ctx, req.GrantType)
	}
	return resp, http.StatusOK, nil
}

func (e *Engine) createTokenResponse(ctx context.Context, req TokenRequest) (*oauth.TokenResponse, error) {
	if e.RateLimiter != nil && req.ClientID != "" && !e.RateLimiter.Allow(req.ClientID) {
		if e.Auditor != nil {
			e.Auditor.LogRateLimitExceeded(req.ClientID)
		}
		if m := e.metrics(); m != nil {
			m.RecordRateLimitExceeded(ctx, "client")
		}
		return nil, oauth.NewOAuthError(oauth.ErrorCodeRateLimitExceeded,
			"too many requests", http.StatusTooManyRequests)
	}

	switch req.GrantType {
	case oauth.GrantTypeAuthorizationCode, oauth.GrantTypePassword,
		oauth.GrantTypeClientCredentials, oauth.GrantTypeRefreshToken:
	default:
		return nil, oauth.ErrUnsupportedGrantType(fmt.Sprintf("unsupported grant_type: %q", req.GrantType))
	}

	client, err := e.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !clientAllowsGrant(client, req.GrantType) {
		e.auditAuthFailure("", client.ClientID, "grant_type_not_allowed")
		return nil, oauth.ErrUnauthorizedClient(
			fmt.Sprintf("client is not authorized for grant type %q", req.GrantType))
	}

	switch req.GrantType {
	case oauth.GrantTypeAuthorizationCode:
		return e.exchangeAuthorizationCode(ctx, client, req)
	case oauth.GrantTypePassword:
		return e.exchangePassword(ctx, client, req)
	case oauth.GrantTypeClientCredentials:
		return e.exchangeClientCredentials(ctx, client, req)
	default:
		return e.exchangeRefreshToken(ctx, client, req)
	}
}

// authenticateClient resolves and authenticates the requesting client.
// Confidential clients must present their secret; public clients present no
// secret and are bound by PKCE instead. Secret comparison is constant-time
// down in the store.
func (e *Engine) authenticateClient(ctx context.Context, clientID, clientSecret string) (*storage.Client, error) {
	if clientID == "" {
		return nil, oauth.ErrInvalidClient("client_id is required")
	}
	client, err := e.clientStore.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			e.auditAuthFailure("", clientID, "unknown_client")
			return nil, oauth.ErrInvalidClient("client authentication failed")
		}
		e.Logger.Error("Client lookup failed", "client_id", clientID, "error", err)
		return nil, oauth.ErrServerError("client lookup failed")
	}

	switch client.ClientType {
	case oauth.ClientTypeConfidential:
		if err := e.clientStore.ValidateClientSecret(ctx, clientID, clientSecret); err != nil {
			e.auditAuthFailure("", clientID, "invalid_client_secret")
			return nil, oauth.ErrInvalidClient("client authentication failed")
		}
	case oauth.ClientTypePublic:
		if clientSecret != "" {
			e.auditAuthFailure("", clientID, "unexpected_secret_for_public_client")
			return nil, oauth.ErrInvalidClient("client authentication failed")
		}
	default:
		return nil, oauth.ErrServerError(fmt.Sprintf("unknown client type: %q", client.ClientType))
	}
	return client, nil
}

func (e *Engine) exchangeAuthorizationCode(ctx context.Context, client *storage.Client, req TokenRequest) (*oauth.TokenResponse, error) {
	ctx, span := e.tracer.Start(ctx, "oauth.exchange_code")
	defer span.End()

	if req.Code == "" {
		return nil, oauth.ErrInvalidRequest("code is required")
	}

	grant, err := e.grantStore.ConsumeGrant(ctx, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrGrantConsumed):
			// Replay. The consumed record identifies the victim; revoke
			// every live token for that user and client (OAuth 2.1
			// Section 4.1.2, stolen-code mitigation).
			e.handleCodeReplay(ctx, grant)
			return nil, oauth.ErrInvalidGrant("invalid authorization code")
		case errors.Is(err, storage.ErrGrantNotFound), errors.Is(err, storage.ErrGrantExpired):
			e.Logger.Debug("Authorization code rejected",
				"client_id", client.ClientID,
				"code_prefix", util.TokenPrefix(req.Code),
				"reason", err)
			return nil, oauth.ErrInvalidGrant("invalid authorization code")
		default:
			e.Logger.Error("Grant consume failed", "client_id", client.ClientID, "error", err)
			return nil, oauth.ErrServerError("failed to redeem authorization code")
		}
	}

	// The code is single-use and now burned; every failure from here on is
	// final for this grant.
	if grant.ClientID != client.ClientID {
		e.auditAuthFailure("", client.ClientID, "code_client_mismatch")
		return nil, oauth.ErrInvalidGrant("invalid authorization code")
	}
	// RFC 6749 Section 4.1.3: redirect_uri is required here only if it was
	// sent in the authorization request. An omitted parameter is acceptable
	// when the grant carries the client's single registered URI, the one
	// case where the authorization request could omit it too.
	if grant.RedirectURI != req.RedirectURI {
		omittedInBoth := req.RedirectURI == "" &&
			len(client.RedirectURIs) == 1 &&
			client.RedirectURIs[0] == grant.RedirectURI
		if !omittedInBoth {
			e.auditAuthFailure(grant.UserID, client.ClientID, "redirect_uri_mismatch")
			return nil, oauth.ErrInvalidGrant("redirect_uri does not match the authorization request")
		}
	}
	if err := e.verifyPKCE(ctx, grant, req.CodeVerifier); err != nil {
		return nil, err
	}
	instrumentation.AddPKCEAttributes(span, grant.CodeChallengeMethod)

	return e.issueTokenPair(ctx, issueParams{
		grantType:   oauth.GrantTypeAuthorizationCode,
		client:      client,
		userID:      grant.UserID,
		scopes:      grant.Scopes,
		withRefresh: clientAllowsGrant(client, oauth.GrantTypeRefreshToken),
		request:     req,
	})
}

// handleCodeReplay revokes all live tokens for the user and client named by
// a replayed authorization code. A nil grant means the store could not
// return the consumed record; nothing can be revoked.
func (e *Engine) handleCodeReplay(ctx context.Context, grant *storage.Grant) {
	if m := e.metrics(); m != nil {
		m.RecordCodeReuseDetected(ctx)
	}
	if grant == nil {
		return
	}

	e.Logger.Warn("Authorization code replay detected",
		"client_id", grant.ClientID,
		"code_prefix", util.TokenPrefix(grant.Code))
	if e.Auditor != nil {
		e.Auditor.LogCodeReplayDetected(grant.UserID, grant.ClientID)
	}

	count, err := e.tokenStore.RevokeAllTokensForUserClient(ctx, grant.UserID, grant.ClientID)
	if err != nil {
		e.Logger.Error("Failed to revoke tokens after code replay",
			"client_id", grant.ClientID, "error", err)
		return
	}
	if e.Auditor != nil {
		e.Auditor.LogAllTokensRevoked(grant.UserID, grant.ClientID, "authorization_code_replay", count)
	}
}

// verifyPKCE checks the code_verifier against the challenge bound at
// authorization time (RFC 7636 Section 4.6). Comparisons are constant-time.
func (e *Engine) verifyPKCE(ctx context.Context, grant *storage.Grant, verifier string) error {
	if grant.CodeChallenge == "" {
		if verifier != "" {
			return oauth.ErrInvalidRequest("code_verifier provided but no challenge was bound to the code")
		}
		return nil
	}

	fail := func(reason string) error {
		e.auditPKCEFailure(grant.UserID, grant.ClientID, reason)
		if m := e.metrics(); m != nil {
			m.RecordPKCEValidationFailed(ctx, grant.CodeChallengeMethod)
		}
		return oauth.ErrInvalidGrant("PKCE verification failed")
	}

	if verifier == "" {
		return fail("missing_verifier")
	}
	if len(verifier) < oauth.MinCodeVerifierLength || len(verifier) > oauth.MaxCodeVerifierLength {
		return fail("invalid_verifier_length")
	}

	switch grant.CodeChallengeMethod {
	case oauth.PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(grant.CodeChallenge)) != 1 {
			return fail("challenge_mismatch")
		}
	case oauth.PKCEMethodPlain:
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(grant.CodeChallenge)) != 1 {
			return fail("challenge_mismatch")
		}
	default:
		return fail("unsupported_method")
	}
	return nil
}

func (e *Engine) exchangePassword(ctx context.Context, client *storage.Client, req TokenRequest) (*oauth.TokenResponse, error) {
	if client.ClientType != oauth.ClientTypeConfidential {
		e.auditAuthFailure("", client.ClientID, "password_grant_public_client")
		return nil, oauth.ErrUnauthorizedClient("password grant is restricted to confidential clients")
	}
	if e.authenticator == nil {
		return nil, oauth.ErrUnsupportedGrantType("password grant is not enabled")
	}
	if req.Username == "" || req.Password == "" {
		return nil, oauth.ErrInvalidRequest("username and password are required")
	}

	userID, err := e.authenticator.AuthenticateUser(ctx, req.Username, req.Password)
	if err != nil {
		e.auditAuthFailure("", client.ClientID, "invalid_user_credentials")
		e.Logger.Debug("Password grant authentication failed",
			"client_id", client.ClientID, "error", err)
		return nil, oauth.ErrInvalidGrant("invalid user credentials")
	}

	granted, err := e.resolveRequestedScopes(client, req.Scope)
	if err != nil {
		return nil, err
	}

	return e.issueTokenPair(ctx, issueParams{
		grantType:   oauth.GrantTypePassword,
		client:      client,
		userID:      userID,
		scopes:      granted,
		withRefresh: clientAllowsGrant(client, oauth.GrantTypeRefreshToken),
		request:     req,
	})
}

func (e *Engine) exchangeClientCredentials(ctx context.Context, client *storage.Client, req TokenRequest) (*oauth.TokenResponse, error) {
	if client.ClientType != oauth.ClientTypeConfidential {
		e.auditAuthFailure("", client.ClientID, "client_credentials_public_client")
		return nil, oauth.ErrUnauthorizedClient("client_credentials grant is restricted to confidential clients")
	}

	granted, err := e.resolveRequestedScopes(client, req.Scope)
	if err != nil {
		return nil, err
	}

	// User-less token, no refresh token (RFC 6749 Section 4.4.3).
	return e.issueTokenPair(ctx, issueParams{
		grantType:   oauth.GrantTypeClientCredentials,
		client:      client,
		userID:      "",
		scopes:      granted,
		withRefresh: false,
		request:     req,
	})
}

func (e *Engine) exchangeRefreshToken(ctx context.Context, client *storage.Client, req TokenRequest) (*oauth.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oauth.ErrInvalidRequest("refresh_token is required")
	}

	if !e.Config.RotateRefreshTokens {
		return e.refreshWithoutRotation(ctx, client, req)
	}

	old, err := e.tokenStore.ConsumeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenRevoked):
			// Reuse of a rotated or revoked refresh token. The presenter
			// may be an attacker holding a stolen token; kill the whole
			// family (OAuth 2.1 Section 4.3.1).
			e.handleRefreshTokenReuse(ctx, old)
			return nil, oauth.ErrInvalidGrant("invalid refresh token")
		case errors.Is(err, storage.ErrTokenNotFound), errors.Is(err, storage.ErrTokenExpired):
			e.Logger.Debug("Refresh token rejected",
				"client_id", client.ClientID,
				"token_prefix", util.TokenPrefix(req.RefreshToken),
				"reason", err)
			return nil, oauth.ErrInvalidGrant("invalid refresh token")
		default:
			e.Logger.Error("Refresh token consume failed", "client_id", client.ClientID, "error", err)
			return nil, oauth.ErrServerError("failed to redeem refresh token")
		}
	}

	// RFC 6749 Section 6: the refresh token is bound to the client it was
	// issued to.
	if old.ClientID != client.ClientID {
		e.auditAuthFailure(old.UserID, client.ClientID, "refresh_token_client_mismatch")
		return nil, oauth.ErrInvalidGrant("invalid refresh token")
	}

	granted, err := e.checkRefreshScope(client, old, req.Scope)
	if err != nil {
		return nil, err
	}

	// Rotation: the old access token dies with the old refresh token.
	if old.AccessToken != "" {
		if err := e.tokenStore.RevokeAccessToken(ctx, old.AccessToken); err != nil &&
			!errors.Is(err, storage.ErrTokenNotFound) {
			e.Logger.Warn("Failed to revoke rotated access token",
				"client_id", client.ClientID, "error", err)
		}
	}

	resp, err := e.issueTokenPair(ctx, issueParams{
		grantType:   oauth.GrantTypeRefreshToken,
		client:      client,
		userID:      old.UserID,
		scopes:      granted,
		withRefresh: true,
		request:     req,
	})
	if err != nil {
		return nil, err
	}

	if e.Auditor != nil {
		e.Auditor.LogTokenRefreshed(old.UserID, client.ClientID, true)
	}
	if m := e.metrics(); m != nil {
		m.RecordTokenRefresh(ctx, client.ClientID, true)
	}
	return resp, nil
}

// refreshWithoutRotation serves the refresh grant when rotation is disabled:
// the presented refresh token survives and is re-linked to the new access
// token.
func (e *Engine) refreshWithoutRotation(ctx context.Context, client *storage.Client, req TokenRequest) (*oauth.TokenResponse, error) {
	old, err := e.tokenStore.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) || errors.Is(err, storage.ErrTokenExpired) {
			return nil, oauth.ErrInvalidGrant("invalid refresh token")
		}
		e.Logger.Error("Refresh token lookup failed", "client_id", client.ClientID, "error", err)
		return nil, oauth.ErrServerError("failed to look up refresh token")
	}
	if old.Revoked || old.Rotated {
		e.handleRefreshTokenReuse(ctx, old)
		return nil, oauth.ErrInvalidGrant("invalid refresh token")
	}
	if old.ClientID != client.ClientID {
		e.auditAuthFailure(old.UserID, client.ClientID, "refresh_token_client_mismatch")
		return nil, oauth.ErrInvalidGrant("invalid refresh token")
	}

	granted, err := e.checkRefreshScope(client, old, req.Scope)
	if err != nil {
		return nil, err
	}

	if old.AccessToken != "" {
		if err := e.tokenStore.RevokeAccessToken(ctx, old.AccessToken); err != nil &&
			!errors.Is(err, storage.ErrTokenNotFound) {
			e.Logger.Warn("Failed to revoke refreshed access token",
				"client_id", client.ClientID, "error", err)
		}
	}

	now := time.Now()
	access := &storage.AccessToken{
		Token:        generateToken(),
		ClientID:     client.ClientID,
		UserID:       old.UserID,
		Scopes:       granted,
		GrantType:    oauth.GrantTypeRefreshToken,
		RefreshToken: old.Token,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(e.Config.AccessTokenTTL) * time.Second),
	}
	if err := e.tokenStore.SaveAccessToken(ctx, access); err != nil {
		e.Logger.Error("Failed to persist access token", "client_id", client.ClientID, "error", err)
		return nil, oauth.ErrServerError("failed to persist access token")
	}

	// Re-link the surviving refresh token to the new access token.
	old.AccessToken = access.Token
	if err := e.tokenStore.SaveRefreshToken(ctx, old); err != nil {
		e.Logger.Error("Failed to update refresh token link", "client_id", client.ClientID, "error", err)
		return nil, oauth.ErrServerError("failed to persist refresh token")
	}

	resp := &oauth.TokenResponse{
		AccessToken:  access.Token,
		TokenType:    oauth.TokenTypeBearer,
		ExpiresIn:    e.Config.AccessTokenTTL,
		RefreshToken: old.Token,
		Scope:        scopes.Join(granted),
	}
	e.notifyTokenIssued(ctx, TokenIssuedEvent{
		GrantType:    oauth.GrantTypeRefreshToken,
		Request:      req,
		AccessToken:  access,
		RefreshToken: old,
		Response:     resp,
	})

	if e.Auditor != nil {
		e.Auditor.LogTokenRefreshed(old.UserID, client.ClientID, false)
	}
	if m := e.metrics(); m != nil {
		m.RecordTokenRefresh(ctx, client.ClientID, false)
	}
	return resp, nil
}

// handleRefreshTokenReuse revokes all live tokens for the user and client
// named by a reused refresh token.
func (e *Engine) handleRefreshTokenReuse(ctx context.Context, token *storage.RefreshToken) {
	if m := e.metrics(); m != nil {
		m.RecordTokenReuseDetected(ctx)
	}
	if token == nil {
		return
	}

	e.Logger.Warn("Refresh token reuse detected",
		"client_id", token.ClientID,
		"token_prefix", util.TokenPrefix(token.Token))
	if e.Auditor != nil {
		e.Auditor.LogRefreshTokenReuseDetected(token.UserID, token.ClientID)
	}

	count, err := e.tokenStore.RevokeAllTokensForUserClient(ctx, token.UserID, token.ClientID)
	if err != nil {
		e.Logger.Error("Failed to revoke tokens after refresh token reuse",
			"client_id", token.ClientID, "error", err)
		return
	}
	if e.Auditor != nil {
		e.Auditor.LogAllTokensRevoked(token.UserID, token.ClientID, "refresh_token_reuse", count)
	}
}

// checkRefreshScope enforces scope narrowing on refresh (RFC 6749 Section
// 6): the new scope must be a subset of the originally granted scope.
func (e *Engine) checkRefreshScope(client *storage.Client, old *storage.RefreshToken, rawScope string) ([]string, error) {
	requested := scopes.Parse(rawScope)
	if len(requested) == 0 {
		return old.Scopes, nil
	}
	if !scopes.Subset(requested, old.Scopes) {
		e.auditScopeEscalation(old.UserID, client.ClientID, requested)
		return nil, oauth.ErrInvalidScope("requested scope exceeds the originally granted scope")
	}
	return requested, nil
}

// resolveRequestedScopes validates a raw scope parameter against the
// registry and the client's allowed set, applying defaults when empty.
func (e *Engine) resolveRequestedScopes(client *storage.Client, rawScope string) ([]string, error) {
	requested := scopes.Parse(rawScope)
	if len(requested) == 0 {
		requested = defaultScopes(client, e.registry)
	}
	if err := e.registry.Validate(requested); err != nil {
		return nil, oauth.ErrInvalidScope(err.Error())
	}
	if disallowed := scopesOutsideClient(client, requested); len(disallowed) > 0 {
		e.auditScopeEscalation("", client.ClientID, requested)
		return nil, oauth.ErrInvalidScope(fmt.Sprintf("scope not allowed for client: %s", scopes.Join(disallowed)))
	}
	return requested, nil
}

// issueParams collects everything issueTokenPair needs to mint and persist
// an access token and, optionally, its paired refresh token.
type issueParams struct {
	grantType   string
	client      *storage.Client
	userID      string
	scopes      []string
	withRefresh bool
	request     TokenRequest
}

// issueTokenPair mints, persists, and reports a new token pair. The refresh
// token is saved first so a crash between the two writes never leaves a
// refresh token pointing at a missing access token that a later refresh
// could not clean up.
func (e *Engine) issueTokenPair(ctx context.Context, p issueParams) (*oauth.TokenResponse, error) {
	ctx, span := e.tracer.Start(ctx, "oauth.issue_tokens")
	defer span.End()
	instrumentation.AddGrantAttributes(span, p.grantType, p.client.ClientType)

	now := time.Now()
	access := &storage.AccessToken{
		Token:     generateToken(),
		ClientID:  p.client.ClientID,
		UserID:    p.userID,
		Scopes:    p.scopes,
		GrantType: p.grantType,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(e.Config.AccessTokenTTL) * time.Second),
	}

	var refresh *storage.RefreshToken
	if p.withRefresh {
		refresh = &storage.RefreshToken{
			Token:       generateToken(),
			ClientID:    p.client.ClientID,
			UserID:      p.userID,
			Scopes:      p.scopes,
			AccessToken: access.Token,
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Duration(e.Config.RefreshTokenTTL) * time.Second),
		}
		access.RefreshToken = refresh.Token

		if err := e.tokenStore.SaveRefreshToken(ctx, refresh); err != nil {
			e.Logger.Error("Failed to persist refresh token",
				"client_id", p.client.ClientID, "error", err)
			instrumentation.RecordError(span, err)
			return nil, oauth.ErrServerError("failed to persist refresh token")
		}
	}

	if err := e.tokenStore.SaveAccessToken(ctx, access); err != nil {
		e.Logger.Error("Failed to persist access token",
			"client_id", p.client.ClientID, "error", err)
		instrumentation.RecordError(span, err)
		return nil, oauth.ErrServerError("failed to persist access token")
	}

	resp := &oauth.TokenResponse{
		AccessToken: access.Token,
		TokenType:   oauth.TokenTypeBearer,
		ExpiresIn:   e.Config.AccessTokenTTL,
		Scope:       scopes.Join(p.scopes),
	}
	if refresh != nil {
		resp.RefreshToken = refresh.Token
	}

	if e.Auditor != nil {
		e.Auditor.LogTokenIssued(p.userID, p.client.ClientID, p.grantType, p.scopes)
	}
	e.Logger.Debug("Token pair issued",
		"client_id", p.client.ClientID,
		"grant_type", p.grantType,
		"token_prefix", util.TokenPrefix(access.Token),
		"with_refresh", refresh != nil)

	e.notifyTokenIssued(ctx, TokenIssuedEvent{
		GrantType:    p.grantType,
		Request:      p.request,
		AccessToken:  access,
		RefreshToken: refresh,
		Response:     resp,
	})

	instrumentation.SetSpanSuccess(span)
	return resp, nil
}

// notifyTokenIssued delivers the issuance event to the registered callback.
// Callback errors are logged; the tokens are already persisted and issued.
func (e *Engine) notifyTokenIssued(ctx context.Context, event TokenIssuedEvent) {
	if e.onTokenIssued == nil {
		return
	}
	if err := e.onTokenIssued(ctx, event); err != nil {
		e.Logger.Warn("Token issued callback failed",
			"client_id", event.AccessToken.ClientID,
			"grant_type", event.GrantType,
			"error", err)
	}
}
