package engine

import (
	"context"
	"errors"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/storage"
)

// RevocationRequest is a token revocation request (RFC 7009 Section 2.1).
type RevocationRequest struct {
	Token         string
	TokenTypeHint string // "access_token", "refresh_token", or empty
	ClientID      string
	ClientSecret  string
}

// CreateRevocationResponse handles a revocation request per RFC 7009. The
// hint orders the lookup but never restricts it; a refresh token revocation
// cascades to its linked access token and vice versa. Unknown, foreign, and
// already-revoked tokens all return 200: revocation is idempotent and must
// not confirm token existence. Only client authentication failures produce
// an error status.
func (e *Engine) CreateRevocationResponse(ctx context.Context, req RevocationRequest) (int, error) {
	ctx, span := e.tracer.Start(ctx, "oauth.revoke_token")
	defer span.End()
	instrumentation.SetSpanAttributes(span,
		instrumentation.AttrClientID.String(req.ClientID),
		instrumentation.AttrTokenTypeHint.String(req.TokenTypeHint),
	)

	client, err := e.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		var oerr *oauth.OAuthError
		if errors.As(err, &oerr) {
			instrumentation.RecordError(span, oerr)
			return oerr.Status, oerr
		}
		instrumentation.RecordError(span, err)
		return http.StatusInternalServerError, err
	}

	if req.Token == "" {
		oerr := oauth.ErrInvalidRequest("token is required")
		instrumentation.RecordError(span, oerr)
		return oerr.Status, oerr
	}

	if req.TokenTypeHint == oauth.TokenTypeHintRefreshToken {
		if done := e.revokeAsRefreshToken(ctx, client, req.Token); !done {
			e.revokeAsAccessToken(ctx, client, req.Token)
		}
	} else {
		if done := e.revokeAsAccessToken(ctx, client, req.Token); !done {
			e.revokeAsRefreshToken(ctx, client, req.Token)
		}
	}

	instrumentation.SetSpanSuccess(span)
	return http.StatusOK, nil
}

// revokeAsAccessToken revokes the token as an access token, cascading to
// its linked refresh token. Returns true when the token was found as an
// access token, regardless of revocation outcome.
func (e *Engine) revokeAsAccessToken(ctx context.Context, client *storage.Client, token string) bool {
	record, err := e.tokenStore.GetAccessToken(ctx, token)
	if err != nil {
		if !errors.Is(err, storage.ErrTokenNotFound) && !errors.Is(err, storage.ErrTokenExpired) {
			e.Logger.Warn("Access token lookup failed during revocation",
				"client_id", client.ClientID, "error", err)
		}
		return false
	}
	if record.ClientID != client.ClientID {
		// Foreign token. Still 200 per RFC 7009; nothing is revoked.
		e.auditAuthFailure(record.UserID, client.ClientID, "revocation_ownership_mismatch")
		return true
	}

	if err := e.tokenStore.RevokeAccessToken(ctx, token); err != nil &&
		!errors.Is(err, storage.ErrTokenNotFound) {
		e.Logger.Warn("Failed to revoke access token",
			"client_id", client.ClientID, "error", err)
		return true
	}
	if record.RefreshToken != "" {
		if err := e.tokenStore.RevokeRefreshToken(ctx, record.RefreshToken); err != nil &&
			!errors.Is(err, storage.ErrTokenNotFound) {
			e.Logger.Warn("Failed to revoke linked refresh token",
				"client_id", client.ClientID, "error", err)
		}
	}

	if e.Auditor != nil {
		e.Auditor.LogTokenRevoked(record.UserID, client.ClientID, oauth.TokenTypeHintAccessToken)
	}
	if m := e.metrics(); m != nil {
		m.RecordTokenRevocation(ctx, oauth.TokenTypeHintAccessToken)
	}
	e.Logger.Debug("Access token revoked",
		"client_id", client.ClientID,
		"token_prefix", util.TokenPrefix(token))
	return true
}

// revokeAsRefreshToken revokes the token as a refresh token, cascading to
// its linked access token.
func (e *Engine) revokeAsRefreshToken(ctx context.Context, client *storage.Client, token string) bool {
	record, err := e.tokenStore.GetRefreshToken(ctx, token)
	if err != nil {
		if !errors.Is(err, storage.ErrTokenNotFound) && !errors.Is(err, storage.ErrTokenExpired) {
			e.Logger.Warn("Refresh token lookup failed during revocation",
				"client_id", client.ClientID, "error", err)
		}
		return false
	}
	if record.ClientID != client.ClientID {
		e.auditAuthFailure(record.UserID, client.ClientID, "revocation_ownership_mismatch")
		return true
	}

	if err := e.tokenStore.RevokeRefreshToken(ctx, token); err != nil &&
		!errors.Is(err, storage.ErrTokenNotFound) {
		e.Logger.Warn("Failed to revoke refresh token",
			"client_id", client.ClientID, "error", err)
		return true
	}
	if record.AccessToken != "" {
		if err := e.tokenStore.RevokeAccessToken(ctx, record.AccessToken); err != nil &&
			!errors.Is(err, storage.ErrTokenNotFound) {
			e.Logger.Warn("Failed to revoke linked access token",
				"client_id", client.ClientID, "error", err)
		}
	}

	if e.Auditor != nil {
		e.Auditor.LogTokenRevoked(record.UserID, client.ClientID, oauth.TokenTypeHintRefreshToken)
	}
	if m := e.metrics(); m != nil {
		m.RecordTokenRevocation(ctx, oauth.TokenTypeHintRefreshToken)
	}
	e.Logger.Debug("Refresh token revoked",
		"client_id", client.ClientID,
		"token_prefix", util.TokenPrefix(token))
	return true
}
