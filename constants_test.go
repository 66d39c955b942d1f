package oauth

import "testing"

// The constants are wire values fixed by the protocol, not free to drift.
func TestWireConstants(t *testing.T) {
	want := map[string]string{
		GrantTypeAuthorizationCode: "authorization_code",
		GrantTypePassword:          "password",
		GrantTypeClientCredentials: "client_credentials",
		GrantTypeRefreshToken:      "refresh_token",
		ResponseTypeCode:           "code",
		ResponseTypeToken:          "token",
		ClientTypeConfidential:     "confidential",
		ClientTypePublic:           "public",
		PKCEMethodS256:             "S256",
		PKCEMethodPlain:            "plain",
		TokenTypeBearer:            "Bearer",
		TokenTypeHintAccessToken:   "access_token",
	}
	for got, expected := range want {
		if got != expected {
			t.Errorf("constant = %q, want %q", got, expected)
		}
	}
	if TokenTypeHintRefreshToken != GrantTypeRefreshToken {
		t.Errorf("TokenTypeHintRefreshToken = %q, want %q", TokenTypeHintRefreshToken, "refresh_token")
	}
}

func TestCodeVerifierBounds(t *testing.T) {
	if MinCodeVerifierLength != 43 || MaxCodeVerifierLength != 128 {
		t.Errorf("verifier bounds = [%d, %d], want [43, 128]", MinCodeVerifierLength, MaxCodeVerifierLength)
	}
}
