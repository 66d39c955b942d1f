package engine

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/helpers"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// RegisterClient registers a new OAuth client. Confidential clients receive
// a generated secret, returned in plaintext exactly once; only the bcrypt
// hash is stored. Public clients receive no secret and authenticate with
// PKCE.
func (e *Engine) RegisterClient(ctx context.Context, reg oauth.ClientRegistration) (*storage.Client, string, error) {
	clientType := reg.ClientType
	if clientType == "" {
		clientType = oauth.ClientTypeConfidential
	}
	if clientType != oauth.ClientTypePublic && clientType != oauth.ClientTypeConfidential {
		return nil, "", oauth.ErrInvalidRequest(fmt.Sprintf("unknown client type: %q", clientType))
	}

	if len(reg.RedirectURIs) == 0 {
		return nil, "", oauth.ErrInvalidRedirectURI("at least one redirect URI is required")
	}
	for _, uri := range reg.RedirectURIs {
		if err := validateRegistrationRedirectURI(uri); err != nil {
			if e.Auditor != nil {
				e.Auditor.LogEvent(security.Event{
					Type: security.EventClientRegistrationRejected,
					Details: map[string]any{
						"client_name": reg.Name,
						"reason":      err.Error(),
					},
				})
			}
			return nil, "", oauth.ErrInvalidRedirectURI(err.Error())
		}
	}

	grantTypes := reg.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken}
	}
	for _, gt := range grantTypes {
		switch gt {
		case oauth.GrantTypeAuthorizationCode, oauth.GrantTypePassword,
			oauth.GrantTypeClientCredentials, oauth.GrantTypeRefreshToken,
			oauth.GrantTypeImplicit:
		default:
			return nil, "", oauth.ErrInvalidRequest(fmt.Sprintf("unknown grant type: %q", gt))
		}
	}

	if len(reg.Scopes) > 0 {
		if err := e.registry.Validate(reg.Scopes); err != nil {
			return nil, "", oauth.ErrInvalidScope(err.Error())
		}
	}

	var secret, secretHash string
	if clientType == oauth.ClientTypeConfidential {
		secret = generateToken()
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			e.Logger.Error("Failed to hash client secret", "error", err)
			return nil, "", oauth.ErrServerError("failed to generate client credentials")
		}
		secretHash = string(hash)
	}

	client := &storage.Client{
		ClientID:          uuid.NewString(),
		ClientSecretHash:  secretHash,
		ClientType:        clientType,
		Name:              reg.Name,
		RedirectURIs:      reg.RedirectURIs,
		GrantTypes:        grantTypes,
		Scopes:            reg.Scopes,
		SkipAuthorization: reg.SkipAuthorization,
		CreatedAt:         time.Now(),
	}

	if err := e.clientStore.SaveClient(ctx, client); err != nil {
		e.Logger.Error("Failed to persist client", "client_name", reg.Name, "error", err)
		return nil, "", oauth.ErrServerError("failed to persist client")
	}

	if e.Auditor != nil {
		e.Auditor.LogClientRegistered(client.ClientID, clientType)
	}
	if m := e.metrics(); m != nil {
		m.RecordClientRegistration(ctx, clientType)
	}
	e.Logger.Info("Client registered",
		"client_id", client.ClientID,
		"client_type", clientType,
		"redirect_uris", len(client.RedirectURIs))

	return client, secret, nil
}

// validateRegistrationRedirectURI enforces the registration-time rules for
// redirect URIs: absolute, no fragment, HTTPS for web clients, plain HTTP
// only on loopback hosts (RFC 8252 Section 7.3 native apps), and no
// unspecified, link-local, or private IP literals (SSRF hardening).
func validateRegistrationRedirectURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect_uri is not a valid URI: %s", uri)
	}
	if !parsed.IsAbs() {
		return fmt.Errorf("redirect_uri must be absolute: %s", uri)
	}
	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain a fragment: %s", uri)
	}

	scheme := strings.ToLower(parsed.Scheme)
	hostname := parsed.Hostname()

	switch scheme {
	case "https":
	case "http":
		if !helpers.IsLoopbackHostname(hostname) {
			return fmt.Errorf("http redirect URIs are only allowed for loopback hosts: %s", uri)
		}
	case "javascript", "data", "vbscript", "file", "about", "blob":
		return fmt.Errorf("redirect_uri scheme %q is not allowed", scheme)
	default:
		// Custom schemes for native apps (RFC 8252 Section 7.1); must
		// contain a dot per the reverse-domain recommendation.
		if !strings.Contains(scheme, ".") {
			return fmt.Errorf("custom redirect_uri schemes must use reverse domain notation: %s", uri)
		}
		return nil
	}

	if ip := net.ParseIP(hostname); ip != nil {
		switch helpers.ClassifyIP(ip) {
		case helpers.IPClassificationUnspecified:
			return fmt.Errorf("redirect_uri host %s is an unspecified address", hostname)
		case helpers.IPClassificationLinkLocal:
			return fmt.Errorf("redirect_uri host %s is link-local", hostname)
		}
	}
	return nil
}
