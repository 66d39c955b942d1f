package engine

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	oauth "github.com/giantswarm/oauth2-engine"
)

func TestRegisterClient_Confidential(t *testing.T) {
	eng, store := setupTestEngine(t, Config{})
	ctx := context.Background()

	client, secret, err := eng.RegisterClient(ctx, oauth.ClientRegistration{
		Name:         "Backend Service",
		RedirectURIs: []string{"https://service.example.com/callback"},
		ClientType:   oauth.ClientTypeConfidential,
		Scopes:       []string{"read", "write"},
	})
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}

	if client.ClientID == "" {
		t.Error("client ID must be minted")
	}
	if secret == "" {
		t.Fatal("confidential clients must receive a secret")
	}
	if client.ClientSecretHash == secret {
		t.Error("the stored hash must not be the plaintext secret")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(secret)); err != nil {
		t.Errorf("stored hash does not verify the returned secret: %v", err)
	}
	if len(client.GrantTypes) != 2 {
		t.Errorf("GrantTypes = %v, want the authorization_code + refresh_token default", client.GrantTypes)
	}

	// The secret works at the token endpoint.
	if err := store.ValidateClientSecret(ctx, client.ClientID, secret); err != nil {
		t.Errorf("ValidateClientSecret() error = %v", err)
	}
}

func TestRegisterClient_Public(t *testing.T) {
	eng, _ := setupTestEngine(t, Config{})

	client, secret, err := eng.RegisterClient(context.Background(), oauth.ClientRegistration{
		Name:         "Mobile App",
		RedirectURIs: []string{"com.example.mobile:/oauth"},
		ClientType:   oauth.ClientTypePublic,
	})
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if secret != "" {
		t.Error("public clients must not receive a secret")
	}
	if client.ClientSecretHash != "" {
		t.Error("public clients must not carry a secret hash")
	}
}

func TestRegisterClient_Validation(t *testing.T) {
	eng, _ := setupTestEngine(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name     string
		reg      oauth.ClientRegistration
		wantCode string
	}{
		{
			name:     "no redirect URIs",
			reg:      oauth.ClientRegistration{Name: "X"},
			wantCode: oauth.ErrorCodeInvalidRedirectURI,
		},
		{
			name: "unknown client type",
			reg: oauth.ClientRegistration{
				Name:         "X",
				RedirectURIs: []string{"https://x.example.com/cb"},
				ClientType:   "hybrid",
			},
			wantCode: oauth.ErrorCodeInvalidRequest,
		},
		{
			name: "unknown grant type",
			reg: oauth.ClientRegistration{
				Name:         "X",
				RedirectURIs: []string{"https://x.example.com/cb"},
				GrantTypes:   []string{"device_code"},
			},
			wantCode: oauth.ErrorCodeInvalidRequest,
		},
		{
			name: "unknown scope",
			reg: oauth.ClientRegistration{
				Name:         "X",
				RedirectURIs: []string{"https://x.example.com/cb"},
				Scopes:       []string{"nonexistent"},
			},
			wantCode: oauth.ErrorCodeInvalidScope,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := eng.RegisterClient(ctx, tt.reg)
			assertOAuthError(t, err, tt.wantCode)
		})
	}
}

func TestValidateRegistrationRedirectURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"https", "https://app.example.com/callback", false},
		{"http loopback IPv4", "http://127.0.0.1:8912/callback", false},
		{"http localhost", "http://localhost/callback", false},
		{"http loopback IPv6", "http://[::1]:9000/callback", false},
		{"http non-loopback", "http://app.example.com/callback", true},
		{"custom scheme reverse domain", "com.example.app:/oauth", false},
		{"custom scheme without dot", "myapp:/oauth", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"data scheme", "data:text/html,x", true},
		{"fragment", "https://app.example.com/callback#frag", true},
		{"relative", "/callback", true},
		{"unspecified address", "https://0.0.0.0/callback", true},
		{"link-local address", "https://169.254.169.254/callback", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRegistrationRedirectURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRegistrationRedirectURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
		})
	}
}
