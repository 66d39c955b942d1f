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
// TokenStore implementation
// ============================================================

// SaveAccessToken stores an access token record with TTL set to its expiry.
// The token is also indexed in a per-user-per-client set so that all tokens
// for a (user, client) pair can be revoked together.
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) error {
	if token == nil {
		return fmt.Errorf("access token cannot be nil")
	}
	if token.Token == "" {
		return fmt.Errorf("access token value cannot be empty")
	}
	if err := validateStringLength(token.Token, MaxTokenLength, "access token"); err != nil {
		return err
	}

	ttl := calculateTTL(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("access token has already expired")
	}

	j := toAccessTokenJSON(token)
	if err := s.encryptAccessTokenRecord(j); err != nil {
		return err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}

	key := s.accessTokenKey(token.Token)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}

	if token.UserID != "" {
		if err := s.indexUserClientToken(ctx, token.UserID, token.ClientID, "access:"+token.Token, token.ExpiresAt); err != nil {
			return err
		}
	}

	s.logger.Debug("Saved access token",
		"token_id", util.TokenPrefix(token.Token),
		"client_id", token.ClientID,
		"grant_type", token.GrantType)

	return nil
}

// GetAccessToken retrieves an access token record.
// Returns storage.ErrTokenNotFound if the token doesn't exist.
func (s *Store) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	if token == "" {
		return nil, fmt.Errorf("access token value cannot be empty")
	}

	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.accessTokenKey(token)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var j accessTokenJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access token: %w", err)
	}
	if err := s.decryptAccessTokenRecord(&j); err != nil {
		return nil, err
	}

	return fromAccessTokenJSON(&j), nil
}

// RevokeAccessToken marks an access token as revoked while preserving its TTL.
// Returns storage.ErrTokenNotFound if the token doesn't exist.
func (s *Store) RevokeAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("access token value cannot be empty")
	}

	record, err := s.GetAccessToken(ctx, token)
	if err != nil {
		return err
	}
	if record.Revoked {
		return nil
	}
	record.Revoked = true

	j := toAccessTokenJSON(record)
	if err := s.encryptAccessTokenRecord(j); err != nil {
		return err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}

	key := s.accessTokenKey(token)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Keepttl().Build()).Error(); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}

	s.logger.Debug("Revoked access token",
		"token_id", util.TokenPrefix(token),
		"client_id", record.ClientID)

	return nil
}

// SaveRefreshToken stores a refresh token record with TTL set to its expiry.
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	if token == nil {
		return fmt.Errorf("refresh token cannot be nil")
	}
	if token.Token == "" {
		return fmt.Errorf("refresh token value cannot be empty")
	}
	if err := validateStringLength(token.Token, MaxTokenLength, "refresh token"); err != nil {
		return err
	}

	ttl := calculateTTL(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token has already expired")
	}

	j := toRefreshTokenJSON(token)
	if err := s.encryptRefreshTokenRecord(j); err != nil {
		return err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	key := s.refreshTokenKey(token.Token)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	if token.UserID != "" {
		if err := s.indexUserClientToken(ctx, token.UserID, token.ClientID, "refresh:"+token.Token, token.ExpiresAt); err != nil {
			return err
		}
	}

	s.logger.Debug("Saved refresh token",
		"token_id", util.TokenPrefix(token.Token),
		"client_id", token.ClientID)

	return nil
}

// GetRefreshToken retrieves a refresh token record without rotating it.
// Returns storage.ErrTokenNotFound if the token doesn't exist.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	if token == "" {
		return nil, fmt.Errorf("refresh token value cannot be empty")
	}

	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.refreshTokenKey(token)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	var j refreshTokenJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}
	if err := s.decryptRefreshTokenRecord(&j); err != nil {
		return nil, err
	}

	return fromRefreshTokenJSON(&j), nil
}

// ConsumeRefreshToken atomically retrieves a refresh token and marks it as
// rotated. This MUST be atomic so that concurrent refresh requests with the
// same token result in exactly one success.
//
// Returns:
//   - (token, nil) if the token was live and is now marked rotated
//   - (nil, ErrTokenNotFound) if the token doesn't exist
//   - (nil, ErrTokenExpired) if the token has expired
//   - (token, ErrTokenRevoked) if the token was already rotated or revoked;
//     the record is returned so the caller can revoke the whole token family
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	if token == "" {
		return nil, fmt.Errorf("refresh token value cannot be empty")
	}

	key := s.refreshTokenKey(token)
	now := time.Now().Unix()

	result, err := s.client.Do(ctx, s.client.B().Eval().
		Script(luaAtomicConsumeRefreshToken).
		Numkeys(1).
		Key(key).
		Arg(fmt.Sprintf("%d", now)).
		Build()).ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic refresh token consume: %w", err)
	}

	switch {
	case result == "NOT_FOUND":
		return nil, storage.ErrTokenNotFound

	case result == "EXPIRED":
		return nil, storage.ErrTokenExpired

	case strings.HasPrefix(result, "ALREADY_USED:"):
		// Reuse detected. Return the original record so the caller can
		// revoke all tokens for this user and client.
		data := strings.TrimPrefix(result, "ALREADY_USED:")
		var j refreshTokenJSON
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			s.logger.Warn("Failed to unmarshal replayed refresh token data",
				"token_id", util.TokenPrefix(token))
			return nil, storage.ErrTokenRevoked
		}
		if err := s.decryptRefreshTokenRecord(&j); err != nil {
			return nil, err
		}
		s.logger.Warn("Refresh token reuse detected",
			"token_id", util.TokenPrefix(token),
			"client_id", j.ClientID,
			"user_id", j.UserID)
		return fromRefreshTokenJSON(&j), storage.ErrTokenRevoked

	default:
		var j refreshTokenJSON
		if err := json.Unmarshal([]byte(result), &j); err != nil {
			return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
		}
		if err := s.decryptRefreshTokenRecord(&j); err != nil {
			return nil, err
		}
		rt := fromRefreshTokenJSON(&j)
		rt.Rotated = true
		return rt, nil
	}
}

// RevokeRefreshToken marks a refresh token as revoked while preserving its TTL.
// Returns storage.ErrTokenNotFound if the token doesn't exist.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("refresh token value cannot be empty")
	}

	record, err := s.GetRefreshToken(ctx, token)
	if err != nil {
		return err
	}
	if record.Revoked {
		return nil
	}
	record.Revoked = true

	j := toRefreshTokenJSON(record)
	if err := s.encryptRefreshTokenRecord(j); err != nil {
		return err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	key := s.refreshTokenKey(token)
	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Keepttl().Build()).Error(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	s.logger.Debug("Revoked refresh token",
		"token_id", util.TokenPrefix(token),
		"client_id", record.ClientID)

	return nil
}

// RevokeAllTokensForUserClient revokes every live access and refresh token
// for a (user, client) pair. Used when authorization code replay or refresh
// token reuse indicates possible credential theft.
// Returns the number of tokens revoked.
func (s *Store) RevokeAllTokensForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	if userID == "" || clientID == "" {
		return 0, fmt.Errorf("user ID and client ID cannot be empty")
	}

	setKey := s.userClientKey(userID, clientID)
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(setKey).Build()).AsStrSlice()
	if err != nil {
		if isNilError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list tokens for user and client: %w", err)
	}

	revoked := 0
	var stale []string

	for _, member := range members {
		var revokeErr error
		switch {
		case strings.HasPrefix(member, "access:"):
			revokeErr = s.RevokeAccessToken(ctx, strings.TrimPrefix(member, "access:"))
		case strings.HasPrefix(member, "refresh:"):
			revokeErr = s.RevokeRefreshToken(ctx, strings.TrimPrefix(member, "refresh:"))
		default:
			stale = append(stale, member)
			continue
		}

		if revokeErr != nil {
			if revokeErr == storage.ErrTokenNotFound {
				// Token expired and its key was evicted; drop the index entry
				stale = append(stale, member)
				continue
			}
			return revoked, revokeErr
		}
		revoked++
	}

	if len(stale) > 0 {
		if err := s.client.Do(ctx, s.client.B().Srem().Key(setKey).Member(stale...).Build()).Error(); err != nil {
			s.logger.Warn("Failed to remove stale token index entries", "key", setKey)
		}
	}

	if revoked > 0 {
		s.logger.Warn("Revoked all tokens for user and client",
			"user_id", userID,
			"client_id", clientID,
			"revoked_count", revoked,
			"reason", "credential_reuse_detected")
	}

	return revoked, nil
}

// ActiveAccessTokens returns all live (unexpired, unrevoked) access tokens
// for a (user, client) pair. Stale index entries are pruned as a side effect.
func (s *Store) ActiveAccessTokens(ctx context.Context, userID, clientID string) ([]*storage.AccessToken, error) {
	if userID == "" || clientID == "" {
		return nil, fmt.Errorf("user ID and client ID cannot be empty")
	}

	setKey := s.userClientKey(userID, clientID)
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(setKey).Build()).AsStrSlice()
	if err != nil {
		if isNilError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list tokens for user and client: %w", err)
	}

	now := time.Now()
	var active []*storage.AccessToken
	var stale []string

	for _, member := range members {
		if !strings.HasPrefix(member, "access:") {
			continue
		}

		token, err := s.GetAccessToken(ctx, strings.TrimPrefix(member, "access:"))
		if err != nil {
			if err == storage.ErrTokenNotFound {
				stale = append(stale, member)
				continue
			}
			return nil, err
		}

		if token.Revoked || token.Expired(now) {
			continue
		}
		active = append(active, token)
	}

	if len(stale) > 0 {
		if err := s.client.Do(ctx, s.client.B().Srem().Key(setKey).Member(stale...).Build()).Error(); err != nil {
			s.logger.Warn("Failed to remove stale token index entries", "key", setKey)
		}
	}

	return active, nil
}

// indexUserClientToken adds a token reference to the per-user-per-client set
// and extends the set's TTL to at least the token's lifetime.
func (s *Store) indexUserClientToken(ctx context.Context, userID, clientID, member string, expiresAt time.Time) error {
	setKey := s.userClientKey(userID, clientID)

	if err := s.client.Do(ctx, s.client.B().Sadd().Key(setKey).Member(member).Build()).Error(); err != nil {
		return fmt.Errorf("failed to index token: %w", err)
	}

	// Keep the index alive at least as long as its longest-lived token.
	// GT only extends the TTL, never shortens it.
	ttl := calculateTTL(expiresAt)
	if ttl > 0 {
		if err := s.client.Do(ctx, s.client.B().Expire().Key(setKey).Seconds(int64(ttl.Seconds())+1).Gt().Build()).Error(); err != nil {
			s.logger.Warn("Failed to set TTL on token index", "key", setKey)
		}
	}

	return nil
}
