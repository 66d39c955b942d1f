package engine

import "log/slog"

// Approval prompt policies. "force" always asks the user; "auto" skips the
// consent step when a prior active token already covers the requested scopes.
const (
	ApprovalPromptForce = "force"
	ApprovalPromptAuto  = "auto"
)

// Config holds the engine's policy knobs. The zero value is usable:
// applySecureDefaults fills in OAuth 2.1 recommended settings.
type Config struct {
	// AuthorizationCodeTTL is the authorization code lifetime in seconds (default: 600)
	AuthorizationCodeTTL int64

	// AccessTokenTTL is the access token lifetime in seconds (default: 3600)
	AccessTokenTTL int64

	// RefreshTokenTTL is the refresh token lifetime in seconds (default: 7776000, 90 days)
	RefreshTokenTTL int64

	// RotateRefreshTokens mints a new refresh token on every refresh and
	// invalidates the old one (default: true, OAuth 2.1)
	RotateRefreshTokens bool

	// RequirePKCE makes a code_challenge mandatory for public clients
	// (default: true, OAuth 2.1)
	RequirePKCE bool

	// AllowPlainPKCE accepts the "plain" code_challenge_method.
	// Disabled by default; only S256 resists authorization code interception.
	AllowPlainPKCE bool

	// ApprovalPrompt is "force" or "auto" (default: "force")
	ApprovalPrompt string
}

// applySecureDefaults fills zero values with secure settings and warns
// about explicitly insecure choices.
func applySecureDefaults(config Config, logger *slog.Logger) Config {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 7776000 // 90 days
	}
	if config.ApprovalPrompt == "" {
		config.ApprovalPrompt = ApprovalPromptForce
	}

	// Heuristic: all security bools false means a fresh config, so apply
	// the OAuth 2.1 defaults instead of treating them as opt-outs.
	isDefaultConfig := !config.RotateRefreshTokens &&
		!config.RequirePKCE &&
		!config.AllowPlainPKCE
	if isDefaultConfig {
		config.RotateRefreshTokens = true
		config.RequirePKCE = true
		return config
	}

	if !config.RequirePKCE {
		logger.Warn("SECURITY WARNING: PKCE is not required for public clients",
			"recommendation", "set RequirePKCE=true (OAuth 2.1)")
	}
	if config.AllowPlainPKCE {
		logger.Warn("SECURITY WARNING: 'plain' PKCE method is allowed",
			"recommendation", "set AllowPlainPKCE=false, only S256 resists code interception")
	}
	if !config.RotateRefreshTokens {
		logger.Warn("SECURITY WARNING: refresh token rotation is disabled",
			"recommendation", "set RotateRefreshTokens=true (OAuth 2.1)")
	}

	return config
}
