package security

// Audit event types. One constant per security-relevant occurrence the
// Auditor can log.
const (
	// Token lifecycle.
	EventTokenIssued      = "token_issued"
	EventTokenRefreshed   = "token_refreshed"
	EventTokenRevoked     = "token_revoked"
	EventAllTokensRevoked = "all_tokens_revoked" //nolint:gosec // event type name, not a credential

	// Authorization flow.
	EventAuthorizationGranted           = "authorization_granted"
	EventAuthorizationDenied            = "authorization_denied"
	EventAuthorizationCodeReuseDetected = "authorization_code_reuse_detected"

	// Client registration.
	EventClientRegistered           = "client_registered"
	EventClientRegistrationRejected = "client_registration_rejected"

	// Violations.
	EventAuthFailure               = "auth_failure"
	EventRateLimitExceeded         = "rate_limit_exceeded"
	EventPKCEValidationFailed      = "pkce_validation_failed"
	EventRefreshTokenReuseDetected = "refresh_token_reuse_detected"
	EventScopeEscalationAttempt    = "scope_escalation_attempt"
)
