package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/storage"
)

// ============================================================
// GrantStore implementation
// ============================================================

// SaveGrant stores an authorization grant with TTL set to its expiry.
func (s *Store) SaveGrant(ctx context.Context, grant *storage.Grant) error {
	if grant == nil {
		return fmt.Errorf("grant cannot be nil")
	}
	if grant.Code == "" {
		return fmt.Errorf("authorization code cannot be empty")
	}
	if err := validateStringLength(grant.Code, MaxTokenLength, "authorization code"); err != nil {
		return err
	}

	ttl := calculateTTL(grant.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("grant has already expired")
	}

	data, err := json.Marshal(toGrantJSON(grant))
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}

	key := s.grantKey(grant.Code)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save grant: %w", err)
	}

	s.logger.Debug("Saved authorization grant",
		"code", util.TokenPrefix(grant.Code),
		"client_id", grant.ClientID,
		"ttl_seconds", int(ttl.Seconds()))

	return nil
}

// GetGrant retrieves an authorization grant without consuming it.
// Returns storage.ErrGrantNotFound if the grant doesn't exist.
func (s *Store) GetGrant(ctx context.Context, code string) (*storage.Grant, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}

	return getAndUnmarshal[grantJSON, storage.Grant](
		ctx, s, s.grantKey(code), storage.ErrGrantNotFound, fromGrantJSON)
}

// ConsumeGrant atomically checks that a grant is unused and marks it as used.
// This MUST be atomic to prevent authorization code replay attacks.
//
// Returns:
//   - (grant, nil) if the grant was live and is now marked used
//   - (nil, ErrGrantNotFound) if the grant doesn't exist
//   - (nil, ErrGrantExpired) if the grant has expired
//   - (grant, ErrGrantConsumed) if the grant was already used; the record is
//     returned so the caller can revoke tokens issued from the stolen code
func (s *Store) ConsumeGrant(ctx context.Context, code string) (*storage.Grant, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}

	key := s.grantKey(code)
	now := time.Now().Unix()

	result, err := s.client.Do(ctx, s.client.B().Eval().
		Script(luaAtomicConsumeGrant).
		Numkeys(1).
		Key(key).
		Arg(fmt.Sprintf("%d", now)).
		Build()).ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic grant consume: %w", err)
	}

	switch {
	case result == "NOT_FOUND":
		return nil, storage.ErrGrantNotFound

	case result == "EXPIRED":
		return nil, storage.ErrGrantExpired

	case strings.HasPrefix(result, "ALREADY_USED:"):
		// Replay detected. Return the original record for forensics and
		// so the caller can revoke tokens issued from this code.
		data := strings.TrimPrefix(result, "ALREADY_USED:")
		var j grantJSON
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			s.logger.Warn("Failed to unmarshal replayed grant data",
				"code", util.TokenPrefix(code))
			return nil, storage.ErrGrantConsumed
		}
		s.logger.Warn("Authorization code replay detected",
			"code", util.TokenPrefix(code),
			"client_id", j.ClientID,
			"user_id", j.UserID)
		return fromGrantJSON(&j), storage.ErrGrantConsumed

	default:
		// Success: result is the original grant JSON
		var j grantJSON
		if err := json.Unmarshal([]byte(result), &j); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
		}
		grant := fromGrantJSON(&j)
		grant.Used = true
		return grant, nil
	}
}

// DeleteGrant removes an authorization grant.
// Returns storage.ErrGrantNotFound if the grant doesn't exist.
func (s *Store) DeleteGrant(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("authorization code cannot be empty")
	}

	deleted, err := s.client.Do(ctx, s.client.B().Del().Key(s.grantKey(code)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	if deleted == 0 {
		return storage.ErrGrantNotFound
	}

	return nil
}
