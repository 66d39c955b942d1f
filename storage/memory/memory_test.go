package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/oauth2-engine/internal/testutil"
	"github.com/giantswarm/oauth2-engine/storage"
)

// ============================================================
// ClientStore Tests
// ============================================================

func TestStore_SaveClient(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	client := testutil.GenerateTestClient()

	err := store.SaveClient(ctx, client)
	if err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	got, err := store.GetClient(ctx, client.ClientID)
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}

	if got.ClientID != client.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, client.ClientID)
	}
	if got.ClientType != "confidential" {
		t.Errorf("ClientType = %q, want %q", got.ClientType, "confidential")
	}
}

func TestStore_SaveClient_Invalid(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	if err := store.SaveClient(ctx, nil); err == nil {
		t.Error("SaveClient() with nil client should return error")
	}
	if err := store.SaveClient(ctx, &storage.Client{}); err == nil {
		t.Error("SaveClient() with empty client ID should return error")
	}
}

func TestStore_GetClient_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	_, err := store.GetClient(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("GetClient() error = %v, want ErrClientNotFound", err)
	}
}

func TestStore_ValidateClientSecret(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, store.SaveClient(ctx, client))

	t.Run("correct secret", func(t *testing.T) {
		// The test fixture's hash is bcrypt("test")
		if err := store.ValidateClientSecret(ctx, client.ClientID, "test"); err != nil {
			t.Errorf("ValidateClientSecret() error = %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		if err := store.ValidateClientSecret(ctx, client.ClientID, "wrong"); err == nil {
			t.Error("ValidateClientSecret() with wrong secret should return error")
		}
	})

	t.Run("nonexistent client", func(t *testing.T) {
		if err := store.ValidateClientSecret(ctx, "nonexistent", "test"); err == nil {
			t.Error("ValidateClientSecret() for nonexistent client should return error")
		}
	})

	t.Run("public client", func(t *testing.T) {
		public := testutil.GenerateTestPublicClient()
		testutil.AssertNoError(t, store.SaveClient(ctx, public))

		if err := store.ValidateClientSecret(ctx, public.ClientID, ""); err != nil {
			t.Errorf("ValidateClientSecret() for public client error = %v", err)
		}
	})
}

func TestStore_ListClients(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	testutil.AssertNoError(t, store.SaveClient(ctx, testutil.GenerateTestClient()))
	testutil.AssertNoError(t, store.SaveClient(ctx, testutil.GenerateTestPublicClient()))

	clients, err := store.ListClients(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(clients), 2)
}

func TestStore_DeleteClient(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, store.SaveClient(ctx, client))
	testutil.AssertNoError(t, store.DeleteClient(ctx, client.ClientID))

	_, err := store.GetClient(ctx, client.ClientID)
	if !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("GetClient() after delete error = %v, want ErrClientNotFound", err)
	}
}

// ============================================================
// GrantStore Tests
// ============================================================

func TestStore_SaveGrant(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	grant := testutil.GenerateTestGrant()

	err := store.SaveGrant(ctx, grant)
	if err != nil {
		t.Fatalf("SaveGrant() error = %v", err)
	}

	got, err := store.GetGrant(ctx, grant.Code)
	if err != nil {
		t.Fatalf("GetGrant() error = %v", err)
	}

	if got.ClientID != grant.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, grant.ClientID)
	}
	if got.Used {
		t.Error("grant should not be marked used")
	}
}

func TestStore_GetGrant_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	_, err := store.GetGrant(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrGrantNotFound) {
		t.Errorf("GetGrant() error = %v, want ErrGrantNotFound", err)
	}
}

func TestStore_ConsumeGrant(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	grant := testutil.GenerateTestGrant()
	testutil.AssertNoError(t, store.SaveGrant(ctx, grant))

	// First consumption succeeds
	got, err := store.ConsumeGrant(ctx, grant.Code)
	if err != nil {
		t.Fatalf("ConsumeGrant() error = %v", err)
	}
	if got.UserID != grant.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, grant.UserID)
	}

	// Second consumption fails with ErrGrantConsumed and returns the grant
	// so the caller can revoke the tokens it produced
	reused, err := store.ConsumeGrant(ctx, grant.Code)
	if !errors.Is(err, storage.ErrGrantConsumed) {
		t.Fatalf("ConsumeGrant() second call error = %v, want ErrGrantConsumed", err)
	}
	if reused == nil {
		t.Fatal("ConsumeGrant() on reuse should return the grant for revocation")
	}
	if reused.UserID != grant.UserID || reused.ClientID != grant.ClientID {
		t.Error("reused grant should carry the original user and client IDs")
	}
}

func TestStore_ConsumeGrant_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	got, err := store.ConsumeGrant(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrGrantNotFound) {
		t.Errorf("ConsumeGrant() error = %v, want ErrGrantNotFound", err)
	}
	if got != nil {
		t.Error("ConsumeGrant() on not-found should return nil grant")
	}
}

func TestStore_ConsumeGrant_Expired(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	grant := testutil.GenerateTestGrant()
	grant.ExpiresAt = time.Now().Add(-10 * time.Minute)
	testutil.AssertNoError(t, store.SaveGrant(ctx, grant))

	got, err := store.ConsumeGrant(ctx, grant.Code)
	if !errors.Is(err, storage.ErrGrantExpired) {
		t.Errorf("ConsumeGrant() error = %v, want ErrGrantExpired", err)
	}
	if got != nil {
		t.Error("ConsumeGrant() on expired should return nil grant")
	}
}

func TestStore_ConsumeGrant_Concurrent(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	grant := testutil.GenerateTestGrant()
	testutil.AssertNoError(t, store.SaveGrant(ctx, grant))

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	reuses := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeGrant(ctx, grant.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, storage.ErrGrantConsumed):
				reuses++
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("ConsumeGrant() successes = %d, want exactly 1", successes)
	}
	if reuses != goroutines-1 {
		t.Errorf("ConsumeGrant() reuse errors = %d, want %d", reuses, goroutines-1)
	}
}

// ============================================================
// TokenStore Tests
// ============================================================

func TestStore_SaveAccessToken(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestAccessToken()

	err := store.SaveAccessToken(ctx, token)
	if err != nil {
		t.Fatalf("SaveAccessToken() error = %v", err)
	}

	got, err := store.GetAccessToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("GetAccessToken() error = %v", err)
	}
	if got.UserID != token.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, token.UserID)
	}
}

func TestStore_GetAccessToken_Expired(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestAccessToken()
	token.ExpiresAt = time.Now().Add(-10 * time.Minute)
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, token))

	_, err := store.GetAccessToken(ctx, token.Token)
	if !errors.Is(err, storage.ErrTokenExpired) {
		t.Errorf("GetAccessToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestStore_RevokeAccessToken(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestAccessToken()
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, token))

	testutil.AssertNoError(t, store.RevokeAccessToken(ctx, token.Token))

	got, err := store.GetAccessToken(ctx, token.Token)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, got.Revoked, "token should be marked revoked")

	// Revoking an unknown token is distinguishable for the caller
	err = store.RevokeAccessToken(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("RevokeAccessToken() error = %v, want ErrTokenNotFound", err)
	}
}

func TestStore_ConsumeRefreshToken(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestRefreshToken()
	testutil.AssertNoError(t, store.SaveRefreshToken(ctx, token))

	// First rotation succeeds
	got, err := store.ConsumeRefreshToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("ConsumeRefreshToken() error = %v", err)
	}
	if got.UserID != token.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, token.UserID)
	}

	// Reuse returns ErrTokenRevoked with the record for family revocation
	reused, err := store.ConsumeRefreshToken(ctx, token.Token)
	if !errors.Is(err, storage.ErrTokenRevoked) {
		t.Fatalf("ConsumeRefreshToken() reuse error = %v, want ErrTokenRevoked", err)
	}
	if reused == nil {
		t.Fatal("ConsumeRefreshToken() on reuse should return the record for revocation")
	}
	if reused.UserID != token.UserID || reused.ClientID != token.ClientID {
		t.Error("reused record should carry the original user and client IDs")
	}
}

func TestStore_ConsumeRefreshToken_NotFound(t *testing.T) {
	store := New()
	defer store.Stop()

	got, err := store.ConsumeRefreshToken(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("ConsumeRefreshToken() error = %v, want ErrTokenNotFound", err)
	}
	if got != nil {
		t.Error("ConsumeRefreshToken() on not-found should return nil record")
	}
}

func TestStore_ConsumeRefreshToken_Expired(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestRefreshToken()
	token.ExpiresAt = time.Now().Add(-10 * time.Minute)
	testutil.AssertNoError(t, store.SaveRefreshToken(ctx, token))

	_, err := store.ConsumeRefreshToken(ctx, token.Token)
	if !errors.Is(err, storage.ErrTokenExpired) {
		t.Errorf("ConsumeRefreshToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestStore_ConsumeRefreshToken_Concurrent(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestRefreshToken()
	testutil.AssertNoError(t, store.SaveRefreshToken(ctx, token))

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeRefreshToken(ctx, token.Token); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("ConsumeRefreshToken() successes = %d, want exactly 1", successes)
	}
}

func TestStore_RevokeRefreshToken(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	token := testutil.GenerateTestRefreshToken()
	testutil.AssertNoError(t, store.SaveRefreshToken(ctx, token))
	testutil.AssertNoError(t, store.RevokeRefreshToken(ctx, token.Token))

	// Revoked tokens cannot be rotated
	_, err := store.ConsumeRefreshToken(ctx, token.Token)
	if !errors.Is(err, storage.ErrTokenRevoked) {
		t.Errorf("ConsumeRefreshToken() after revoke error = %v, want ErrTokenRevoked", err)
	}
}

func TestStore_RevokeAllTokensForUserClient(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	// Two tokens for the target user+client
	at := testutil.GenerateTestAccessToken()
	rt := testutil.GenerateTestRefreshToken()
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, at))
	testutil.AssertNoError(t, store.SaveRefreshToken(ctx, rt))

	// One token for a different client, must survive
	other := testutil.GenerateTestAccessToken()
	other.ClientID = "other-client"
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, other))

	count, err := store.RevokeAllTokensForUserClient(ctx, at.UserID, at.ClientID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, count, 2)

	got, err := store.GetAccessToken(ctx, at.Token)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, got.Revoked, "access token should be revoked")

	survivor, err := store.GetAccessToken(ctx, other.Token)
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, survivor.Revoked, "other client's token should survive")
}

func TestStore_ActiveAccessTokens(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	active := testutil.GenerateTestAccessToken()
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, active))

	expired := testutil.GenerateTestAccessToken()
	expired.ExpiresAt = time.Now().Add(-10 * time.Minute)
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, expired))

	revoked := testutil.GenerateTestAccessToken()
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, revoked))
	testutil.AssertNoError(t, store.RevokeAccessToken(ctx, revoked.Token))

	got, err := store.ActiveAccessTokens(ctx, active.UserID, active.ClientID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(got), 1)
	testutil.AssertEqual(t, got[0].Token, active.Token)
}

// ============================================================
// Cleanup Tests
// ============================================================

func TestStore_Cleanup(t *testing.T) {
	store := NewWithInterval(time.Hour) // cleanup triggered manually
	defer store.Stop()
	ctx := context.Background()

	expiredGrant := testutil.GenerateTestGrant()
	expiredGrant.ExpiresAt = time.Now().Add(-10 * time.Minute)
	testutil.AssertNoError(t, store.SaveGrant(ctx, expiredGrant))

	expiredToken := testutil.GenerateTestAccessToken()
	expiredToken.ExpiresAt = time.Now().Add(-10 * time.Minute)
	testutil.AssertNoError(t, store.SaveAccessToken(ctx, expiredToken))

	liveGrant := testutil.GenerateTestGrant()
	testutil.AssertNoError(t, store.SaveGrant(ctx, liveGrant))

	store.cleanup()

	store.mu.RLock()
	_, expiredGrantExists := store.grants[expiredGrant.Code]
	_, expiredTokenExists := store.accessTokens[expiredToken.Token]
	_, liveGrantExists := store.grants[liveGrant.Code]
	store.mu.RUnlock()

	testutil.AssertFalse(t, expiredGrantExists, "expired grant should be cleaned up")
	testutil.AssertFalse(t, expiredTokenExists, "expired token should be cleaned up")
	testutil.AssertTrue(t, liveGrantExists, "live grant should survive cleanup")
}
