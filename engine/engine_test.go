package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/scopes"
	"github.com/giantswarm/oauth2-engine/storage"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

const (
	testUserID       = "user-123"
	testClientSecret = "test"
)

// testClientSecretHash is the bcrypt hash of testClientSecret. MinCost
// keeps setup fast.
var testClientSecretHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(testClientSecret), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

// setupTestEngine creates an engine over a memory store with a small scope
// registry and two pre-registered clients: a confidential web client and a
// public native client.
func setupTestEngine(t *testing.T, config Config) (*Engine, *memory.Store) {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Stop() })

	registry, err := scopes.NewRegistry(
		scopes.Scope{Name: "read", Description: "Read access", Default: true},
		scopes.Scope{Name: "write", Description: "Write access"},
		scopes.Scope{Name: "admin", Description: "Administrative access"},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	eng, err := New(store, store, store, registry, config, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for _, client := range []*storage.Client{testConfidentialClient(), testPublicClient()} {
		if err := store.SaveClient(ctx, client); err != nil {
			t.Fatalf("SaveClient() error = %v", err)
		}
	}
	return eng, store
}

func testConfidentialClient() *storage.Client {
	return &storage.Client{
		ClientID:         "web-client",
		ClientSecretHash: testClientSecretHash,
		ClientType:       oauth.ClientTypeConfidential,
		Name:             "Web Client",
		RedirectURIs:     []string{"https://app.example.com/callback"},
		GrantTypes: []string{
			oauth.GrantTypeAuthorizationCode,
			oauth.GrantTypeRefreshToken,
			oauth.GrantTypePassword,
			oauth.GrantTypeClientCredentials,
		},
		Scopes: []string{"read", "write"},
	}
}

func testPublicClient() *storage.Client {
	return &storage.Client{
		ClientID:     "native-client",
		ClientType:   oauth.ClientTypePublic,
		Name:         "Native Client",
		RedirectURIs: []string{"http://127.0.0.1:8912/callback", "com.example.app:/oauth"},
		GrantTypes: []string{
			oauth.GrantTypeAuthorizationCode,
			oauth.GrantTypeRefreshToken,
		},
		Scopes: []string{"read"},
	}
}

func TestNew_RequiredDependencies(t *testing.T) {
	store := memory.New()
	t.Cleanup(func() { store.Stop() })
	registry, _ := scopes.NewRegistry()

	tests := []struct {
		name string
		fn   func() (*Engine, error)
	}{
		{"nil client store", func() (*Engine, error) {
			return New(nil, store, store, registry, Config{}, nil)
		}},
		{"nil grant store", func() (*Engine, error) {
			return New(store, nil, store, registry, Config{}, nil)
		}},
		{"nil token store", func() (*Engine, error) {
			return New(store, store, nil, registry, Config{}, nil)
		}},
		{"nil registry", func() (*Engine, error) {
			return New(store, store, store, nil, Config{}, nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestNew_SecureDefaults(t *testing.T) {
	eng, _ := setupTestEngine(t, Config{})

	if !eng.Config.RequirePKCE {
		t.Error("RequirePKCE should default to true")
	}
	if !eng.Config.RotateRefreshTokens {
		t.Error("RotateRefreshTokens should default to true")
	}
	if eng.Config.AllowPlainPKCE {
		t.Error("AllowPlainPKCE should default to false")
	}
	if eng.Config.AuthorizationCodeTTL != 600 {
		t.Errorf("AuthorizationCodeTTL = %d, want 600", eng.Config.AuthorizationCodeTTL)
	}
	if eng.Config.AccessTokenTTL != 3600 {
		t.Errorf("AccessTokenTTL = %d, want 3600", eng.Config.AccessTokenTTL)
	}
	if eng.Config.RefreshTokenTTL != 7776000 {
		t.Errorf("RefreshTokenTTL = %d, want 7776000", eng.Config.RefreshTokenTTL)
	}
	if eng.Config.ApprovalPrompt != ApprovalPromptForce {
		t.Errorf("ApprovalPrompt = %q, want %q", eng.Config.ApprovalPrompt, ApprovalPromptForce)
	}
}

// assertOAuthError fails unless err is an *oauth.OAuthError with the given code.
func assertOAuthError(t *testing.T, err error, code string) *oauth.OAuthError {
	t.Helper()
	var oerr *oauth.OAuthError
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *oauth.OAuthError, got %T: %v", err, err)
	}
	if oerr.Code != code {
		t.Fatalf("error code = %q, want %q (description: %s)", oerr.Code, code, oerr.Description)
	}
	return oerr
}
