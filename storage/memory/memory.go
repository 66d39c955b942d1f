package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// dummySecretHash is a well-formed bcrypt hash that matches no known
// password. It is compared against when the client does not exist, so
// lookups and misses take the same time.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Store holds clients, grants, and tokens in maps behind a single
// RWMutex. One Store serves as ClientStore, GrantStore, and TokenStore.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.Client
	grants        map[string]*storage.Grant
	accessTokens  map[string]*storage.AccessToken
	refreshTokens map[string]*storage.RefreshToken

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Mirrors of len() for the size gauges, readable without the lock.
	clientsCount       atomic.Int64
	grantsCount        atomic.Int64
	accessTokensCount  atomic.Int64
	refreshTokensCount atomic.Int64

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	logger          *slog.Logger
}

var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.GrantStore  = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
	_ storage.Store       = (*Store)(nil)
)

// New returns a store that sweeps expired records once a minute.
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval returns a store with a custom sweep interval.
// Zero or negative intervals fall back to one minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		grants:          make(map[string]*storage.Grant),
		accessTokens:    make(map[string]*storage.AccessToken),
		refreshTokens:   make(map[string]*storage.RefreshToken),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation enables tracing, operation metrics, and storage
// size gauges on the store.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.clientsCount.Store(int64(len(s.clients)))
	s.grantsCount.Store(int64(len(s.grants)))
	s.accessTokensCount.Store(int64(len(s.accessTokens)))
	s.refreshTokensCount.Store(int64(len(s.refreshTokens)))
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.clientsCount.Load() },
			func() int64 { return s.grantsCount.Load() },
			func() int64 { return s.accessTokensCount.Load() },
			func() int64 { return s.refreshTokensCount.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop ends the background sweep goroutine.
func (s *Store) Stop() {
	close(s.stopCleanup)
}

// observe opens a span for the named operation and returns a completion
// func that records the result metric and closes the span. Callers defer
// the completion with their named error return.
func (s *Store) observe(ctx context.Context, op string) (context.Context, func(error)) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "storage."+op,
			trace.WithAttributes(attribute.String("operation", op)))
	} else {
		span = trace.SpanFromContext(ctx)
	}

	start := time.Now()
	return ctx, func(err error) {
		defer span.End()
		if s.instrumentation == nil {
			return
		}
		result := "success"
		if err != nil {
			result = "error"
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		s.instrumentation.Metrics().RecordStorageOperation(
			ctx, op, result, float64(time.Since(start).Milliseconds()))
	}
}

// ============================================================
// ClientStore
// ============================================================

// SaveClient stores or replaces a client registration.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) (err error) {
	ctx, done := s.observe(ctx, "save_client")
	defer func() { done(err) }()

	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.clients[client.ClientID]
	s.clients[client.ClientID] = client
	if !existed {
		s.clientsCount.Add(1)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	return nil
}

// GetClient looks up a client by ID.
func (s *Store) GetClient(ctx context.Context, clientID string) (client *storage.Client, err error) {
	_, done := s.observe(ctx, "get_client")
	defer func() { done(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}
	return client, nil
}

// ValidateClientSecret checks a client secret with bcrypt. A comparison
// runs whether or not the client exists, so response time does not
// reveal which client IDs are registered.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.GetClient(ctx, clientID)

	hashToCompare := dummySecretHash
	isPublicClient := false
	if err == nil {
		if client.ClientType == "public" {
			isPublicClient = true
		} else if client.ClientSecretHash != "" {
			hashToCompare = client.ClientSecretHash
		}
	}

	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

	// Public clients carry no secret.
	if isPublicClient && err == nil {
		return nil
	}
	if err != nil || bcryptErr != nil {
		return fmt.Errorf("invalid client credentials")
	}
	return nil
}

// ListClients returns every registered client.
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	return clients, nil
}

// DeleteClient removes a client registration.
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.clients[clientID]
	delete(s.clients, clientID)
	if existed {
		s.clientsCount.Add(-1)
	}

	s.logger.Debug("Deleted client", "client_id", clientID)
	return nil
}

// ============================================================
// GrantStore
// ============================================================

// SaveGrant stores an issued authorization grant.
func (s *Store) SaveGrant(ctx context.Context, grant *storage.Grant) (err error) {
	ctx, done := s.observe(ctx, "save_grant")
	defer func() { done(err) }()

	if grant == nil || grant.Code == "" {
		return fmt.Errorf("invalid grant")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.grants[grant.Code]
	s.grants[grant.Code] = grant
	if !existed {
		s.grantsCount.Add(1)
	}

	s.logger.Debug("Saved grant", "code_prefix", util.TokenPrefix(grant.Code))
	return nil
}

// GetGrant returns a copy of a grant without consuming it. Used grants
// remain readable until expiry so replay attempts stay detectable. Code
// exchange must go through ConsumeGrant.
func (s *Store) GetGrant(ctx context.Context, code string) (*storage.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[code]
	if !ok {
		return nil, storage.ErrGrantNotFound
	}
	if security.IsTokenExpired(grant.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", storage.ErrGrantExpired, util.TokenPrefix(code))
	}

	grantCopy := *grant
	return &grantCopy, nil
}

// ConsumeGrant marks a grant used in one step under the write lock, so
// of two concurrent exchanges of the same code exactly one succeeds.
//
// On ErrGrantConsumed the used grant is returned alongside the error,
// since the caller needs its UserID and ClientID to run the revocation
// cascade. Missing and expired grants return a nil grant.
func (s *Store) ConsumeGrant(ctx context.Context, code string) (grant *storage.Grant, err error) {
	_, done := s.observe(ctx, "consume_grant")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.grants[code]
	if !ok {
		return nil, storage.ErrGrantNotFound
	}
	if security.IsTokenExpired(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: authorization code expired", storage.ErrGrantExpired)
	}

	grantCopy := *stored
	if stored.Used {
		return &grantCopy, storage.ErrGrantConsumed
	}

	stored.Used = true
	grantCopy.Used = true
	s.logger.Debug("Marked grant as used", "code_prefix", util.TokenPrefix(code))
	return &grantCopy, nil
}

// DeleteGrant removes a grant.
func (s *Store) DeleteGrant(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.grants[code]
	delete(s.grants, code)
	if existed {
		s.grantsCount.Add(-1)
	}

	s.logger.Debug("Deleted grant")
	return nil
}

// ============================================================
// TokenStore
// ============================================================

// SaveAccessToken stores an issued access token.
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) (err error) {
	ctx, done := s.observe(ctx, "save_access_token")
	defer func() { done(err) }()

	if token == nil || token.Token == "" {
		return fmt.Errorf("invalid access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.accessTokens[token.Token]
	s.accessTokens[token.Token] = token
	if !existed {
		s.accessTokensCount.Add(1)
	}

	s.logger.Debug("Saved access token",
		"client_id", token.ClientID,
		"token_prefix", util.TokenPrefix(token.Token))
	return nil
}

// GetAccessToken returns a copy of an unexpired access token.
func (s *Store) GetAccessToken(ctx context.Context, token string) (record *storage.AccessToken, err error) {
	_, done := s.observe(ctx, "get_access_token")
	defer func() { done(err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.accessTokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if security.IsTokenExpired(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: access token expired", storage.ErrTokenExpired)
	}

	recordCopy := *stored
	return &recordCopy, nil
}

// RevokeAccessToken marks an access token revoked.
func (s *Store) RevokeAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accessTokens[token]
	if !ok {
		return storage.ErrTokenNotFound
	}

	record.Revoked = true
	s.logger.Debug("Revoked access token",
		"client_id", record.ClientID,
		"token_prefix", util.TokenPrefix(token))
	return nil
}

// SaveRefreshToken stores an issued refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) (err error) {
	ctx, done := s.observe(ctx, "save_refresh_token")
	defer func() { done(err) }()

	if token == nil || token.Token == "" {
		return fmt.Errorf("invalid refresh token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.refreshTokens[token.Token]
	s.refreshTokens[token.Token] = token
	if !existed {
		s.refreshTokensCount.Add(1)
	}

	s.logger.Debug("Saved refresh token",
		"client_id", token.ClientID,
		"expires_at", token.ExpiresAt)
	return nil
}

// GetRefreshToken returns a copy of an unexpired refresh token.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.refreshTokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if security.IsTokenExpired(record.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", storage.ErrTokenExpired)
	}

	recordCopy := *record
	return &recordCopy, nil
}

// ConsumeRefreshToken marks a refresh token rotated in one step under
// the write lock, so concurrent refreshes with the same token cannot
// both succeed.
//
// On ErrTokenRevoked the record is returned alongside the error, since
// the caller needs its UserID and ClientID to run the revocation
// cascade. Missing and expired tokens return a nil record.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string) (record *storage.RefreshToken, err error) {
	_, done := s.observe(ctx, "consume_refresh_token")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.refreshTokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if security.IsTokenExpired(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", storage.ErrTokenExpired)
	}

	recordCopy := *stored
	if stored.Rotated || stored.Revoked {
		return &recordCopy, storage.ErrTokenRevoked
	}

	stored.Rotated = true
	recordCopy.Rotated = true
	s.logger.Debug("Marked refresh token as rotated",
		"client_id", stored.ClientID,
		"token_prefix", util.TokenPrefix(token))
	return &recordCopy, nil
}

// RevokeRefreshToken marks a refresh token revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.refreshTokens[token]
	if !ok {
		return storage.ErrTokenNotFound
	}

	record.Revoked = true
	s.logger.Debug("Revoked refresh token",
		"client_id", record.ClientID,
		"token_prefix", util.TokenPrefix(token))
	return nil
}

// RevokeAllTokensForUserClient revokes every access and refresh token
// belonging to the user+client pair and reports how many it touched.
// The engine calls this when grant or refresh token reuse is detected.
func (s *Store) RevokeAllTokensForUserClient(ctx context.Context, userID, clientID string) (n int, err error) {
	if userID == "" || clientID == "" {
		return 0, fmt.Errorf("userID and clientID cannot be empty")
	}

	_, done := s.observe(ctx, "revoke_all_tokens")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.accessTokens {
		if record.UserID == userID && record.ClientID == clientID && !record.Revoked {
			record.Revoked = true
			n++
		}
	}
	for _, record := range s.refreshTokens {
		if record.UserID == userID && record.ClientID == clientID && !record.Revoked {
			record.Revoked = true
			n++
		}
	}

	if n > 0 {
		s.logger.Warn("Revoked all tokens for user+client",
			"user_id", userID,
			"client_id", clientID,
			"tokens_revoked", n,
			"reason", "credential_reuse_detected")
	}
	return n, nil
}

// ActiveAccessTokens returns copies of the unexpired, unrevoked access
// tokens held by the user+client pair.
func (s *Store) ActiveAccessTokens(ctx context.Context, userID, clientID string) ([]*storage.AccessToken, error) {
	if userID == "" || clientID == "" {
		return nil, fmt.Errorf("userID and clientID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*storage.AccessToken
	for _, record := range s.accessTokens {
		if record.UserID != userID || record.ClientID != clientID {
			continue
		}
		if record.Revoked || security.IsTokenExpired(record.ExpiresAt) {
			continue
		}
		recordCopy := *record
		active = append(active, &recordCopy)
	}
	return active, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops expired records. Used grants and rotated refresh tokens
// stay until expiry so replay inside the credential lifetime is still
// reported as reuse rather than a miss.
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0

	for code, grant := range s.grants {
		if security.IsTokenExpired(grant.ExpiresAt) {
			delete(s.grants, code)
			s.grantsCount.Add(-1)
			cleaned++
		}
	}
	for token, record := range s.accessTokens {
		if security.IsTokenExpired(record.ExpiresAt) {
			delete(s.accessTokens, token)
			s.accessTokensCount.Add(-1)
			cleaned++
		}
	}
	for token, record := range s.refreshTokens {
		if security.IsTokenExpired(record.ExpiresAt) {
			delete(s.refreshTokens, token)
			s.refreshTokensCount.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
	}
}
