package engine

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/scopes"
	"github.com/giantswarm/oauth2-engine/storage"
)

// RedirectTarget is the outcome of the authorization step: a URL the caller
// sends the user agent to.
type RedirectTarget struct {
	// URL is the fully assembled redirect location
	URL string

	// Granted lists the scopes actually bound to the issued code or token
	Granted []string
}

// CreateAuthorizationResponse completes the authorization step after the
// consent decision (RFC 6749 Section 4.1.2 / 4.2.2). A denial produces an
// access_denied redirect. On approval, response_type=code persists a Grant
// and redirects with code and state in the query; response_type=token mints
// an access token directly and delivers it in the URI fragment, keeping it
// out of server logs on the redirect target.
func (e *Engine) CreateAuthorizationResponse(ctx context.Context, userID string, pending *PendingAuthorization, allow bool) (*RedirectTarget, error) {
	ctx, span := e.tracer.Start(ctx, "oauth.create_authorization_response")
	defer span.End()
	instrumentation.AddOAuthFlowAttributes(span, pending.ClientID, userID, scopes.Join(pending.Scopes))

	if !allow {
		if e.Auditor != nil {
			e.Auditor.LogAuthorizationDenied(userID, pending.ClientID)
		}
		instrumentation.SetSpanError(span, "access_denied")
		denied := redirectable(oauth.ErrAccessDenied("the resource owner denied the request"),
			pending.RedirectURI, pending.ResponseType, pending.State)
		return &RedirectTarget{URL: denied.RedirectURL()}, nil
	}

	if userID == "" {
		return nil, oauth.ErrServerError("user ID is required to authorize")
	}

	switch pending.ResponseType {
	case oauth.ResponseTypeCode:
		return e.issueAuthorizationCode(ctx, userID, pending)
	case oauth.ResponseTypeToken:
		return e.issueImplicitToken(ctx, userID, pending)
	default:
		return nil, oauth.ErrUnsupportedResponseType(fmt.Sprintf("unsupported response_type: %q", pending.ResponseType))
	}
}

func (e *Engine) issueAuthorizationCode(ctx context.Context, userID string, pending *PendingAuthorization) (*RedirectTarget, error) {
	now := time.Now()
	grant := &storage.Grant{
		Code:                generateToken(),
		ClientID:            pending.ClientID,
		UserID:              userID,
		RedirectURI:         pending.RedirectURI,
		Scopes:              pending.Scopes,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(e.Config.AuthorizationCodeTTL) * time.Second),
	}

	if err := e.grantStore.SaveGrant(ctx, grant); err != nil {
		e.Logger.Error("Failed to persist authorization grant",
			"client_id", pending.ClientID, "error", err)
		return nil, oauth.ErrServerError("failed to persist authorization grant")
	}

	if e.Auditor != nil {
		e.Auditor.LogAuthorizationGranted(userID, pending.ClientID, pending.Scopes)
	}
	if m := e.metrics(); m != nil {
		m.RecordGrantIssued(ctx, pending.ClientID, pending.CodeChallengeMethod)
	}
	e.Logger.Debug("Authorization code issued",
		"client_id", pending.ClientID,
		"code_prefix", util.TokenPrefix(grant.Code),
		"scopes", scopes.Join(pending.Scopes))

	params := url.Values{}
	params.Set("code", grant.Code)
	if pending.State != "" {
		params.Set("state", pending.State)
	}
	return &RedirectTarget{
		URL:     appendQuery(pending.RedirectURI, params),
		Granted: pending.Scopes,
	}, nil
}

func (e *Engine) issueImplicitToken(ctx context.Context, userID string, pending *PendingAuthorization) (*RedirectTarget, error) {
	now := time.Now()
	token := &storage.AccessToken{
		Token:     generateToken(),
		ClientID:  pending.ClientID,
		UserID:    userID,
		Scopes:    pending.Scopes,
		GrantType: oauth.GrantTypeImplicit,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(e.Config.AccessTokenTTL) * time.Second),
	}

	if err := e.tokenStore.SaveAccessToken(ctx, token); err != nil {
		e.Logger.Error("Failed to persist implicit access token",
			"client_id", pending.ClientID, "error", err)
		return nil, oauth.ErrServerError("failed to persist access token")
	}

	if e.Auditor != nil {
		e.Auditor.LogTokenIssued(userID, pending.ClientID, oauth.GrantTypeImplicit, pending.Scopes)
	}
	if m := e.metrics(); m != nil {
		m.RecordTokenIssued(ctx, oauth.GrantTypeImplicit)
	}

	// Token parameters go in the fragment, never the query string.
	params := url.Values{}
	params.Set("access_token", token.Token)
	params.Set("token_type", oauth.TokenTypeBearer)
	params.Set("expires_in", strconv.FormatInt(e.Config.AccessTokenTTL, 10))
	params.Set("scope", scopes.Join(pending.Scopes))
	if pending.State != "" {
		params.Set("state", pending.State)
	}
	return &RedirectTarget{
		URL:     pending.RedirectURI + "#" + params.Encode(),
		Granted: pending.Scopes,
	}, nil
}

// ShouldSkipApproval reports whether the consent prompt may be skipped for
// this request: always for clients marked SkipAuthorization, and under the
// "auto" approval policy when an active prior token for the same user and
// client already covers every requested scope. Revoked and expired tokens
// never match.
func (e *Engine) ShouldSkipApproval(ctx context.Context, userID string, pending *PendingAuthorization) (bool, error) {
	client, err := e.clientStore.GetClient(ctx, pending.ClientID)
	if err != nil {
		return false, err
	}
	if client.SkipAuthorization {
		return true, nil
	}
	if e.Config.ApprovalPrompt != ApprovalPromptAuto || userID == "" {
		return false, nil
	}

	active, err := e.tokenStore.ActiveAccessTokens(ctx, userID, pending.ClientID)
	if err != nil {
		return false, err
	}
	for _, token := range active {
		if scopes.Subset(pending.Scopes, token.Scopes) {
			return true, nil
		}
	}
	return false, nil
}
