// Package util holds small helpers shared across the oauth2-engine
// packages.
package util

// tokenPrefixLen is how many characters of a token or code value may
// appear in logs and error messages.
const tokenPrefixLen = 8

// TokenPrefix returns a short prefix of a token, authorization code, or
// other secret value, safe to include in log output. The full value is
// never logged.
func TokenPrefix(s string) string {
	if len(s) <= tokenPrefixLen {
		return s
	}
	return s[:tokenPrefixLen]
}
