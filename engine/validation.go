package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/scopes"
	"github.com/giantswarm/oauth2-engine/storage"
)

// AuthorizationParams is an authorization request as received at the
// authorization endpoint (RFC 6749 Section 4.1.1), before validation.
type AuthorizationParams struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string // space-separated, raw
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// PendingAuthorization is a validated authorization request, ready for the
// consent step. It is immutable: the caller threads it through unchanged and
// hands it back to CreateAuthorizationResponse with the user's decision.
type PendingAuthorization struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Scopes              []string // normalized, validated against registry and client
}

// ValidateAuthorizationRequest validates an incoming authorization request
// against the client registry and scope registry per RFC 6749 Section 4.1.1
// and RFC 7636. On failure it returns an *AuthorizationError; redirectable
// errors carry the verified redirect URI so the caller can deliver them,
// non-redirectable errors must be rendered directly.
func (e *Engine) ValidateAuthorizationRequest(ctx context.Context, params AuthorizationParams) (*PendingAuthorization, error) {
	ctx, span := e.tracer.Start(ctx, "oauth.validate_authorization")
	defer span.End()
	instrumentation.SetSpanAttributes(span,
		instrumentation.AttrClientID.String(params.ClientID),
		instrumentation.AttrResponseType.String(params.ResponseType),
	)

	pending, err := e.validateAuthorizationRequest(ctx, params)
	if err != nil {
		instrumentation.RecordError(span, err)
		if m := e.metrics(); m != nil {
			m.RecordAuthorizationRequest(ctx, params.ResponseType, "error")
		}
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	if m := e.metrics(); m != nil {
		m.RecordAuthorizationRequest(ctx, params.ResponseType, "success")
	}
	return pending, nil
}

func (e *Engine) validateAuthorizationRequest(ctx context.Context, params AuthorizationParams) (*PendingAuthorization, error) {
	// Step 1: resolve the client. No trusted redirect URI exists yet, so
	// failures here must never redirect.
	if params.ClientID == "" {
		return nil, nonRedirectable(oauth.ErrInvalidRequest("client_id is required"))
	}
	client, err := e.clientStore.GetClient(ctx, params.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			e.auditAuthFailure("", params.ClientID, "unknown_client")
			return nil, nonRedirectable(oauth.ErrInvalidClient("unknown client"))
		}
		e.Logger.Error("Client lookup failed", "client_id", params.ClientID, "error", err)
		return nil, nonRedirectable(oauth.ErrServerError("client lookup failed"))
	}

	// Step 2: establish the redirect URI. Exact string match only; a
	// mismatched URI is untrusted and the error renders directly.
	redirectURI, err := resolveRedirectURI(client, params.RedirectURI)
	if err != nil {
		e.auditAuthFailure("", client.ClientID, "invalid_redirect_uri")
		return nil, nonRedirectable(oauth.ErrInvalidRedirectURI(err.Error()))
	}

	// The redirect URI is trusted from here on; remaining errors redirect.
	fail := func(oerr *oauth.OAuthError) error {
		return redirectable(oerr, redirectURI, params.ResponseType, params.State)
	}

	// Step 3: response_type against the client's allowed grant types.
	switch params.ResponseType {
	case oauth.ResponseTypeCode:
		if !clientAllowsGrant(client, oauth.GrantTypeAuthorizationCode) {
			e.auditAuthFailure("", client.ClientID, "response_type_not_allowed")
			return nil, fail(oauth.ErrUnauthorizedClient("client is not authorized for the authorization code flow"))
		}
	case oauth.ResponseTypeToken:
		if !clientAllowsGrant(client, oauth.GrantTypeImplicit) {
			e.auditAuthFailure("", client.ClientID, "response_type_not_allowed")
			return nil, fail(oauth.ErrUnauthorizedClient("client is not authorized for the implicit flow"))
		}
	default:
		return nil, fail(oauth.ErrUnsupportedResponseType(fmt.Sprintf("unsupported response_type: %q", params.ResponseType)))
	}

	// Step 4: scopes. Empty request falls back to the client's scope set,
	// then the registry defaults.
	requested := scopes.Parse(params.Scope)
	if len(requested) == 0 {
		requested = defaultScopes(client, e.registry)
	}
	if err := e.registry.Validate(requested); err != nil {
		return nil, fail(oauth.ErrInvalidScope(err.Error()))
	}
	if disallowed := scopesOutsideClient(client, requested); len(disallowed) > 0 {
		e.auditScopeEscalation("", client.ClientID, requested)
		return nil, fail(oauth.ErrInvalidScope(fmt.Sprintf("scope not allowed for client: %s", scopes.Join(disallowed))))
	}

	// Step 5: PKCE (RFC 7636). The challenge is stored verbatim and
	// verified at redemption time.
	method := params.CodeChallengeMethod
	if params.CodeChallenge != "" {
		if method == "" {
			method = oauth.PKCEMethodPlain
		}
		switch method {
		case oauth.PKCEMethodS256:
		case oauth.PKCEMethodPlain:
			if !e.Config.AllowPlainPKCE {
				e.auditPKCEFailure("", client.ClientID, "plain_method_not_allowed")
				return nil, fail(oauth.ErrInvalidRequest("'plain' code_challenge_method is not allowed, use S256"))
			}
		default:
			e.auditPKCEFailure("", client.ClientID, "unsupported_method")
			return nil, fail(oauth.ErrInvalidRequest(fmt.Sprintf("unsupported code_challenge_method: %q", method)))
		}
		if len(params.CodeChallenge) < oauth.MinCodeVerifierLength || len(params.CodeChallenge) > oauth.MaxCodeVerifierLength {
			e.auditPKCEFailure("", client.ClientID, "invalid_challenge_length")
			return nil, fail(oauth.ErrInvalidRequest(fmt.Sprintf(
				"code_challenge length must be between %d and %d characters",
				oauth.MinCodeVerifierLength, oauth.MaxCodeVerifierLength)))
		}
	} else {
		method = ""
		if e.Config.RequirePKCE && client.ClientType == oauth.ClientTypePublic {
			e.auditPKCEFailure("", client.ClientID, "challenge_required_for_public_client")
			return nil, fail(oauth.ErrInvalidRequest("code_challenge is required for public clients"))
		}
	}

	// Step 6: state is opaque and passes through untouched.
	return &PendingAuthorization{
		ClientID:            client.ClientID,
		RedirectURI:         redirectURI,
		ResponseType:        params.ResponseType,
		State:               params.State,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: method,
		Scopes:              requested,
	}, nil
}

// resolveRedirectURI returns the redirect URI to use for this request. A
// missing parameter is acceptable only when the client registered exactly
// one URI; a present parameter must match a registered URI byte for byte.
func resolveRedirectURI(client *storage.Client, requested string) (string, error) {
	if requested == "" {
		if len(client.RedirectURIs) == 1 {
			return client.RedirectURIs[0], nil
		}
		return "", fmt.Errorf("redirect_uri is required when multiple URIs are registered")
	}
	if slices.Contains(client.RedirectURIs, requested) {
		return requested, nil
	}
	return "", fmt.Errorf("redirect_uri does not match any registered URI")
}

// clientAllowsGrant reports whether the client may use the given grant type.
func clientAllowsGrant(client *storage.Client, grantType string) bool {
	return slices.Contains(client.GrantTypes, grantType)
}

// defaultScopes returns the scope set applied when the request omits scope.
func defaultScopes(client *storage.Client, registry *scopes.Registry) []string {
	if len(client.Scopes) > 0 {
		return slices.Clone(client.Scopes)
	}
	return registry.Defaults()
}

// scopesOutsideClient returns the requested scopes the client may not use.
// A client with no registered scope restriction may use any registry scope.
func scopesOutsideClient(client *storage.Client, requested []string) []string {
	if len(client.Scopes) == 0 {
		return nil
	}
	var out []string
	for _, s := range requested {
		if !slices.Contains(client.Scopes, s) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) auditAuthFailure(userID, clientID, reason string) {
	if e.Auditor != nil {
		e.Auditor.LogAuthFailure(userID, clientID, reason)
	}
}

func (e *Engine) auditPKCEFailure(userID, clientID, reason string) {
	if e.Auditor != nil {
		e.Auditor.LogPKCEFailure(userID, clientID, reason)
	}
}

func (e *Engine) auditScopeEscalation(userID, clientID string, requested []string) {
	if e.Auditor != nil {
		e.Auditor.LogScopeEscalationAttempt(userID, clientID, requested)
	}
}
