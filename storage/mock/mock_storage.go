// Package mock backs the storage interfaces with overridable hooks.
// Each method works against in-memory state by default, can be swapped
// out through its Func field, and counts its calls.
package mock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-engine/storage"
)

// MockClientStore is a mock implementation of ClientStore for testing
type MockClientStore struct {
	mu                       sync.RWMutex
	clients                  map[string]*storage.Client
	SaveClientFunc           func(ctx context.Context, client *storage.Client) error
	GetClientFunc            func(ctx context.Context, clientID string) (*storage.Client, error)
	ValidateClientSecretFunc func(ctx context.Context, clientID, secret string) error
	ListClientsFunc          func(ctx context.Context) ([]*storage.Client, error)
	DeleteClientFunc         func(ctx context.Context, clientID string) error
	CallCounts               map[string]int
}

// NewMockClientStore creates a new mock client store with working defaults
func NewMockClientStore() *MockClientStore {
	m := &MockClientStore{
		clients:    make(map[string]*storage.Client),
		CallCounts: make(map[string]int),
	}

	m.SaveClientFunc = func(ctx context.Context, client *storage.Client) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clients[client.ClientID] = client
		return nil
	}

	m.GetClientFunc = func(ctx context.Context, clientID string) (*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		client, ok := m.clients[clientID]
		if !ok {
			return nil, storage.ErrClientNotFound
		}
		return client, nil
	}

	m.ValidateClientSecretFunc = func(ctx context.Context, clientID, secret string) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		client, ok := m.clients[clientID]
		if !ok || client.ClientSecretHash == "" {
			return storage.ErrClientNotFound
		}
		return bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(secret))
	}

	m.ListClientsFunc = func(ctx context.Context) ([]*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		clients := make([]*storage.Client, 0, len(m.clients))
		for _, c := range m.clients {
			clients = append(clients, c)
		}
		return clients, nil
	}

	m.DeleteClientFunc = func(ctx context.Context, clientID string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.clients[clientID]; !ok {
			return storage.ErrClientNotFound
		}
		delete(m.clients, clientID)
		return nil
	}

	return m
}

func (m *MockClientStore) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

func (m *MockClientStore) SaveClient(ctx context.Context, client *storage.Client) error {
	m.recordCall("SaveClient")
	return m.SaveClientFunc(ctx, client)
}

func (m *MockClientStore) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	m.recordCall("GetClient")
	return m.GetClientFunc(ctx, clientID)
}

func (m *MockClientStore) ValidateClientSecret(ctx context.Context, clientID, secret string) error {
	m.recordCall("ValidateClientSecret")
	return m.ValidateClientSecretFunc(ctx, clientID, secret)
}

func (m *MockClientStore) ListClients(ctx context.Context) ([]*storage.Client, error) {
	m.recordCall("ListClients")
	return m.ListClientsFunc(ctx)
}

func (m *MockClientStore) DeleteClient(ctx context.Context, clientID string) error {
	m.recordCall("DeleteClient")
	return m.DeleteClientFunc(ctx, clientID)
}

// MockGrantStore is a mock implementation of GrantStore for testing
type MockGrantStore struct {
	mu               sync.RWMutex
	grants           map[string]*storage.Grant
	SaveGrantFunc    func(ctx context.Context, grant *storage.Grant) error
	GetGrantFunc     func(ctx context.Context, code string) (*storage.Grant, error)
	ConsumeGrantFunc func(ctx context.Context, code string) (*storage.Grant, error)
	DeleteGrantFunc  func(ctx context.Context, code string) error
	CallCounts       map[string]int
}

// NewMockGrantStore creates a new mock grant store with working defaults
func NewMockGrantStore() *MockGrantStore {
	m := &MockGrantStore{
		grants:     make(map[string]*storage.Grant),
		CallCounts: make(map[string]int),
	}

	m.SaveGrantFunc = func(ctx context.Context, grant *storage.Grant) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.grants[grant.Code] = grant
		return nil
	}

	m.GetGrantFunc = func(ctx context.Context, code string) (*storage.Grant, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		grant, ok := m.grants[code]
		if !ok {
			return nil, storage.ErrGrantNotFound
		}
		return grant, nil
	}

	m.ConsumeGrantFunc = func(ctx context.Context, code string) (*storage.Grant, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		grant, ok := m.grants[code]
		if !ok {
			return nil, storage.ErrGrantNotFound
		}
		if grant.Expired(time.Now()) {
			return nil, storage.ErrGrantExpired
		}
		if grant.Used {
			cp := *grant
			return &cp, storage.ErrGrantConsumed
		}
		grant.Used = true
		cp := *grant
		return &cp, nil
	}

	m.DeleteGrantFunc = func(ctx context.Context, code string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.grants[code]; !ok {
			return storage.ErrGrantNotFound
		}
		delete(m.grants, code)
		return nil
	}

	return m
}

func (m *MockGrantStore) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

func (m *MockGrantStore) SaveGrant(ctx context.Context, grant *storage.Grant) error {
	m.recordCall("SaveGrant")
	return m.SaveGrantFunc(ctx, grant)
}

func (m *MockGrantStore) GetGrant(ctx context.Context, code string) (*storage.Grant, error) {
	m.recordCall("GetGrant")
	return m.GetGrantFunc(ctx, code)
}

func (m *MockGrantStore) ConsumeGrant(ctx context.Context, code string) (*storage.Grant, error) {
	m.recordCall("ConsumeGrant")
	return m.ConsumeGrantFunc(ctx, code)
}

func (m *MockGrantStore) DeleteGrant(ctx context.Context, code string) error {
	m.recordCall("DeleteGrant")
	return m.DeleteGrantFunc(ctx, code)
}

// MockTokenStore is a mock implementation of TokenStore for testing
type MockTokenStore struct {
	mu                               sync.RWMutex
	accessTokens                     map[string]*storage.AccessToken
	refreshTokens                    map[string]*storage.RefreshToken
	SaveAccessTokenFunc              func(ctx context.Context, token *storage.AccessToken) error
	GetAccessTokenFunc               func(ctx context.Context, token string) (*storage.AccessToken, error)
	RevokeAccessTokenFunc            func(ctx context.Context, token string) error
	SaveRefreshTokenFunc             func(ctx context.Context, token *storage.RefreshToken) error
	GetRefreshTokenFunc              func(ctx context.Context, token string) (*storage.RefreshToken, error)
	ConsumeRefreshTokenFunc          func(ctx context.Context, token string) (*storage.RefreshToken, error)
	RevokeRefreshTokenFunc           func(ctx context.Context, token string) error
	RevokeAllTokensForUserClientFunc func(ctx context.Context, userID, clientID string) (int, error)
	ActiveAccessTokensFunc           func(ctx context.Context, userID, clientID string) ([]*storage.AccessToken, error)
	CallCounts                       map[string]int
}

// NewMockTokenStore creates a new mock token store with working defaults
func NewMockTokenStore() *MockTokenStore {
	m := &MockTokenStore{
		accessTokens:  make(map[string]*storage.AccessToken),
		refreshTokens: make(map[string]*storage.RefreshToken),
		CallCounts:    make(map[string]int),
	}

	m.SaveAccessTokenFunc = func(ctx context.Context, token *storage.AccessToken) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.accessTokens[token.Token] = token
		return nil
	}

	m.GetAccessTokenFunc = func(ctx context.Context, token string) (*storage.AccessToken, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		record, ok := m.accessTokens[token]
		if !ok {
			return nil, storage.ErrTokenNotFound
		}
		return record, nil
	}

	m.RevokeAccessTokenFunc = func(ctx context.Context, token string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.accessTokens[token]
		if !ok {
			return storage.ErrTokenNotFound
		}
		record.Revoked = true
		return nil
	}

	m.SaveRefreshTokenFunc = func(ctx context.Context, token *storage.RefreshToken) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.refreshTokens[token.Token] = token
		return nil
	}

	m.GetRefreshTokenFunc = func(ctx context.Context, token string) (*storage.RefreshToken, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		record, ok := m.refreshTokens[token]
		if !ok {
			return nil, storage.ErrTokenNotFound
		}
		return record, nil
	}

	m.ConsumeRefreshTokenFunc = func(ctx context.Context, token string) (*storage.RefreshToken, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.refreshTokens[token]
		if !ok {
			return nil, storage.ErrTokenNotFound
		}
		if record.Expired(time.Now()) {
			return nil, storage.ErrTokenExpired
		}
		if record.Rotated || record.Revoked {
			cp := *record
			return &cp, storage.ErrTokenRevoked
		}
		record.Rotated = true
		cp := *record
		return &cp, nil
	}

	m.RevokeRefreshTokenFunc = func(ctx context.Context, token string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.refreshTokens[token]
		if !ok {
			return storage.ErrTokenNotFound
		}
		record.Revoked = true
		return nil
	}

	m.RevokeAllTokensForUserClientFunc = func(ctx context.Context, userID, clientID string) (int, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		count := 0
		for _, record := range m.accessTokens {
			if record.UserID == userID && record.ClientID == clientID && !record.Revoked {
				record.Revoked = true
				count++
			}
		}
		for _, record := range m.refreshTokens {
			if record.UserID == userID && record.ClientID == clientID && !record.Revoked {
				record.Revoked = true
				count++
			}
		}
		return count, nil
	}

	m.ActiveAccessTokensFunc = func(ctx context.Context, userID, clientID string) ([]*storage.AccessToken, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		now := time.Now()
		var active []*storage.AccessToken
		for _, record := range m.accessTokens {
			if record.UserID == userID && record.ClientID == clientID && !record.Revoked && !record.Expired(now) {
				active = append(active, record)
			}
		}
		return active, nil
	}

	return m
}

func (m *MockTokenStore) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

func (m *MockTokenStore) SaveAccessToken(ctx context.Context, token *storage.AccessToken) error {
	m.recordCall("SaveAccessToken")
	return m.SaveAccessTokenFunc(ctx, token)
}

func (m *MockTokenStore) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	m.recordCall("GetAccessToken")
	return m.GetAccessTokenFunc(ctx, token)
}

func (m *MockTokenStore) RevokeAccessToken(ctx context.Context, token string) error {
	m.recordCall("RevokeAccessToken")
	return m.RevokeAccessTokenFunc(ctx, token)
}

func (m *MockTokenStore) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	m.recordCall("SaveRefreshToken")
	return m.SaveRefreshTokenFunc(ctx, token)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	m.recordCall("GetRefreshToken")
	return m.GetRefreshTokenFunc(ctx, token)
}

func (m *MockTokenStore) ConsumeRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	m.recordCall("ConsumeRefreshToken")
	return m.ConsumeRefreshTokenFunc(ctx, token)
}

func (m *MockTokenStore) RevokeRefreshToken(ctx context.Context, token string) error {
	m.recordCall("RevokeRefreshToken")
	return m.RevokeRefreshTokenFunc(ctx, token)
}

func (m *MockTokenStore) RevokeAllTokensForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	m.recordCall("RevokeAllTokensForUserClient")
	return m.RevokeAllTokensForUserClientFunc(ctx, userID, clientID)
}

func (m *MockTokenStore) ActiveAccessTokens(ctx context.Context, userID, clientID string) ([]*storage.AccessToken, error) {
	m.recordCall("ActiveAccessTokens")
	return m.ActiveAccessTokensFunc(ctx, userID, clientID)
}

// Compile-time interface checks
var (
	_ storage.ClientStore = (*MockClientStore)(nil)
	_ storage.GrantStore  = (*MockGrantStore)(nil)
	_ storage.TokenStore  = (*MockTokenStore)(nil)
)
