// Package security carries the cross-cutting protections for the
// engine: audit logging, token encryption at rest, per-client rate
// limiting, and clock-skew-aware expiry checks.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

// Auditor writes security events to a structured log. User IDs are
// hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor returns an Auditor. A nil logger falls back to
// slog.Default(); enabled=false makes every Log call a no-op.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event is one audit record.
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent stamps and writes an event. The user ID goes out hashed.
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued records a token grant.
func (a *Auditor) LogTokenIssued(userID, clientID, grantType string, scopes []string) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"scope":      strings.Join(scopes, " "),
		},
	})
}

// LogTokenRefreshed records a refresh, noting whether the refresh
// token was rotated.
func (a *Auditor) LogTokenRefreshed(userID, clientID string, rotated bool) {
	a.LogEvent(Event{
		Type:     EventTokenRefreshed,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogTokenRevoked records a single-token revocation.
func (a *Auditor) LogTokenRevoked(userID, clientID, tokenType string) {
	a.LogEvent(Event{
		Type:     EventTokenRevoked,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"token_type": tokenType,
		},
	})
}

// LogAllTokensRevoked logs a bulk revocation for a user and client
func (a *Auditor) LogAllTokensRevoked(userID, clientID, reason string, count int) {
	a.LogEvent(Event{
		Type:     EventAllTokensRevoked,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
			"count":  count,
		},
	})
}

// LogAuthorizationGranted logs when a user approves an authorization request
func (a *Auditor) LogAuthorizationGranted(userID, clientID string, scopes []string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationGranted,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"scope": strings.Join(scopes, " "),
		},
	})
}

// LogAuthorizationDenied logs when a user denies an authorization request
func (a *Auditor) LogAuthorizationDenied(userID, clientID string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationDenied,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogCodeReplayDetected logs an authorization code reuse attempt
func (a *Auditor) LogCodeReplayDetected(userID, clientID string) {
	a.LogEvent(Event{
		Type:     EventAuthorizationCodeReuseDetected,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogRefreshTokenReuseDetected logs a rotated refresh token being presented again
func (a *Auditor) LogRefreshTokenReuseDetected(userID, clientID string) {
	a.LogEvent(Event{
		Type:     EventRefreshTokenReuseDetected,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogPKCEFailure logs a failed PKCE verification
func (a *Auditor) LogPKCEFailure(userID, clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventPKCEValidationFailed,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAuthFailure records a failed client or user authentication.
func (a *Auditor) LogAuthFailure(userID, clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventAuthFailure,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded records a request dropped by the rate limiter.
func (a *Auditor) LogRateLimitExceeded(identifier string) {
	a.LogEvent(Event{
		Type:   EventRateLimitExceeded,
		UserID: identifier,
	})
}

// LogClientRegistered records a successful client registration.
func (a *Auditor) LogClientRegistered(clientID, clientType string) {
	a.LogEvent(Event{
		Type:     EventClientRegistered,
		ClientID: clientID,
		Details: map[string]any{
			"client_type": clientType,
		},
	})
}

// LogScopeEscalationAttempt logs a client requesting scopes beyond its grant
func (a *Auditor) LogScopeEscalationAttempt(userID, clientID string, requested []string) {
	a.LogEvent(Event{
		Type:     EventScopeEscalationAttempt,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"requested_scope": strings.Join(requested, " "),
		},
	})
}

// hashForLogging maps a sensitive value to a short stable token.
// It is the first 16 hex chars of the value's SHA-256.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
