package engine

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/storage"
)

func TestCreateAuthorizationResponse_Denied(t *testing.T) {
	eng, _ := setupTestEngine(t, Config{})
	ctx := context.Background()

	pending, err := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}

	target, err := eng.CreateAuthorizationResponse(ctx, testUserID, pending, false)
	if err != nil {
		t.Fatalf("CreateAuthorizationResponse() error = %v", err)
	}

	if !strings.Contains(target.URL, "error=access_denied") {
		t.Errorf("URL = %q, want error=access_denied", target.URL)
	}
	if !strings.Contains(target.URL, "state=xyz-state") {
		t.Errorf("URL = %q, want state echoed", target.URL)
	}
	if strings.Contains(target.URL, "code=") {
		t.Errorf("URL = %q, must not carry a code", target.URL)
	}
}

func TestCreateAuthorizationResponse_Code(t *testing.T) {
	eng, store := setupTestEngine(t, Config{})
	ctx := context.Background()

	pending, err := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}

	target, err := eng.CreateAuthorizationResponse(ctx, testUserID, pending, true)
	if err != nil {
		t.Fatalf("CreateAuthorizationResponse() error = %v", err)
	}

	parsed, err := url.Parse(target.URL)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", target.URL, err)
	}
	code := parsed.Query().Get("code")
	if code == "" {
		t.Fatal("redirect URL carries no code")
	}
	if got := parsed.Query().Get("state"); got != "xyz-state" {
		t.Errorf("state = %q, want xyz-state", got)
	}
	if parsed.Fragment != "" {
		t.Errorf("code responses must not use the fragment, got %q", parsed.Fragment)
	}

	grant, err := store.GetGrant(ctx, code)
	if err != nil {
		t.Fatalf("GetGrant() error = %v", err)
	}
	if grant.UserID != testUserID {
		t.Errorf("grant.UserID = %q, want %q", grant.UserID, testUserID)
	}
	if grant.RedirectURI != pending.RedirectURI {
		t.Errorf("grant.RedirectURI = %q, want %q", grant.RedirectURI, pending.RedirectURI)
	}
	if grant.CodeChallenge != pending.CodeChallenge {
		t.Error("grant must carry the PKCE challenge verbatim")
	}
	if grant.Used {
		t.Error("fresh grant must not be marked used")
	}
	if ttl := time.Until(grant.ExpiresAt); ttl > 10*time.Minute || ttl < 9*time.Minute {
		t.Errorf("grant TTL = %v, want about 10 minutes", ttl)
	}
}

func TestCreateAuthorizationResponse_ImplicitToken(t *testing.T) {
	eng, store := setupTestEngine(t, Config{})
	ctx := context.Background()

	// Allow the implicit flow for the web client.
	client := testConfidentialClient()
	client.GrantTypes = append(client.GrantTypes, oauth.GrantTypeImplicit)
	if err := store.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	params := validCodeParams()
	params.ResponseType = oauth.ResponseTypeToken
	params.CodeChallenge = ""
	params.CodeChallengeMethod = ""
	pending, err := eng.ValidateAuthorizationRequest(ctx, params)
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}

	target, err := eng.CreateAuthorizationResponse(ctx, testUserID, pending, true)
	if err != nil {
		t.Fatalf("CreateAuthorizationResponse() error = %v", err)
	}

	base, fragment, found := strings.Cut(target.URL, "#")
	if !found {
		t.Fatalf("URL = %q, want token parameters in the fragment", target.URL)
	}
	if strings.Contains(base, "access_token") {
		t.Error("access token leaked into the query string")
	}

	values, err := url.ParseQuery(fragment)
	if err != nil {
		t.Fatalf("ParseQuery(%q) error = %v", fragment, err)
	}
	tokenValue := values.Get("access_token")
	if tokenValue == "" {
		t.Fatal("fragment carries no access_token")
	}
	if values.Get("token_type") != oauth.TokenTypeBearer {
		t.Errorf("token_type = %q, want Bearer", values.Get("token_type"))
	}
	if values.Get("expires_in") != "3600" {
		t.Errorf("expires_in = %q, want 3600", values.Get("expires_in"))
	}
	if values.Get("state") != "xyz-state" {
		t.Errorf("state = %q, want xyz-state", values.Get("state"))
	}

	token, err := store.GetAccessToken(ctx, tokenValue)
	if err != nil {
		t.Fatalf("GetAccessToken() error = %v", err)
	}
	if token.GrantType != oauth.GrantTypeImplicit {
		t.Errorf("GrantType = %q, want implicit", token.GrantType)
	}
	if token.RefreshToken != "" {
		t.Error("implicit tokens must not have a refresh token")
	}
}

func TestShouldSkipApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("skip authorization flag", func(t *testing.T) {
		eng, store := setupTestEngine(t, Config{})
		client := testConfidentialClient()
		client.SkipAuthorization = true
		if err := store.SaveClient(ctx, client); err != nil {
			t.Fatalf("SaveClient() error = %v", err)
		}

		pending, err := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
		if err != nil {
			t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
		}
		skip, err := eng.ShouldSkipApproval(ctx, testUserID, pending)
		if err != nil {
			t.Fatalf("ShouldSkipApproval() error = %v", err)
		}
		if !skip {
			t.Error("SkipAuthorization client should skip approval")
		}
	})

	t.Run("force policy always prompts", func(t *testing.T) {
		eng, store := setupTestEngine(t, Config{})
		saveActiveToken(t, store, testUserID, "web-client", []string{"read", "write"})

		pending, _ := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
		skip, err := eng.ShouldSkipApproval(ctx, testUserID, pending)
		if err != nil {
			t.Fatalf("ShouldSkipApproval() error = %v", err)
		}
		if skip {
			t.Error("force policy must always prompt")
		}
	})

	t.Run("auto policy with covering prior token", func(t *testing.T) {
		eng, store := setupTestEngine(t, autoApprovalConfig())
		saveActiveToken(t, store, testUserID, "web-client", []string{"read", "write"})

		pending, _ := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
		skip, err := eng.ShouldSkipApproval(ctx, testUserID, pending)
		if err != nil {
			t.Fatalf("ShouldSkipApproval() error = %v", err)
		}
		if !skip {
			t.Error("covering prior token should skip approval under auto policy")
		}
	})

	t.Run("auto policy with narrower prior token", func(t *testing.T) {
		eng, store := setupTestEngine(t, autoApprovalConfig())
		saveActiveToken(t, store, testUserID, "web-client", []string{"read"})

		pending, _ := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
		skip, err := eng.ShouldSkipApproval(ctx, testUserID, pending)
		if err != nil {
			t.Fatalf("ShouldSkipApproval() error = %v", err)
		}
		if skip {
			t.Error("prior token with narrower scope must not skip approval")
		}
	})

	t.Run("auto policy ignores revoked tokens", func(t *testing.T) {
		eng, store := setupTestEngine(t, autoApprovalConfig())
		token := saveActiveToken(t, store, testUserID, "web-client", []string{"read", "write"})
		if err := store.RevokeAccessToken(ctx, token.Token); err != nil {
			t.Fatalf("RevokeAccessToken() error = %v", err)
		}

		pending, _ := eng.ValidateAuthorizationRequest(ctx, validCodeParams())
		skip, err := eng.ShouldSkipApproval(ctx, testUserID, pending)
		if err != nil {
			t.Fatalf("ShouldSkipApproval() error = %v", err)
		}
		if skip {
			t.Error("revoked prior token must not skip approval")
		}
	})
}

func autoApprovalConfig() Config {
	return Config{
		RequirePKCE:         true,
		RotateRefreshTokens: true,
		ApprovalPrompt:      ApprovalPromptAuto,
	}
}

func saveActiveToken(t *testing.T, store storage.TokenStore, userID, clientID string, tokenScopes []string) *storage.AccessToken {
	t.Helper()
	now := time.Now()
	token := &storage.AccessToken{
		Token:     generateToken(),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    tokenScopes,
		GrantType: oauth.GrantTypeAuthorizationCode,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.SaveAccessToken(context.Background(), token); err != nil {
		t.Fatalf("SaveAccessToken() error = %v", err)
	}
	return token
}
