// Package security provides security-related functionality for the OAuth2
// engine, including rate limiting, encryption at rest, clock-skew aware
// expiry checks, and audit logging.
//
// # Rate Limiting
//
// The RateLimiter keeps one token bucket per client. Idle buckets are
// swept every five minutes, and a hard cap on tracked clients prevents
// unbounded memory growth when an attacker cycles client_id values; at
// the cap the least recently seen client is evicted.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientID) {
//	    // too many token requests from this client
//	}
//
// # Encryption at Rest
//
// The Encryptor seals token values with AES-256-GCM before they reach
// the storage backend. Constructed with an empty key it degrades to a
// pass-through, so callers can wire it unconditionally.
//
// # Audit Logging
//
// The Auditor emits structured security events through slog. User
// identifiers are hashed before logging so audit trails do not carry
// raw subject IDs.
package security
