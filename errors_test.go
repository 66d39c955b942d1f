package oauth

import (
	"net/http"
	"testing"
)

func TestOAuthError_Error(t *testing.T) {
	e := &OAuthError{Code: "invalid_request", Description: "missing client_id"}
	if got := e.Error(); got != "invalid_request: missing client_id" {
		t.Errorf("Error() = %q", got)
	}

	e = &OAuthError{Code: "server_error"}
	if got := e.Error(); got != "server_error: " {
		t.Errorf("Error() with empty description = %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		constructor func(string) *OAuthError
		wantCode    string
		wantStatus  int
	}{
		{ErrInvalidRequest, ErrorCodeInvalidRequest, http.StatusBadRequest},
		{ErrInvalidGrant, ErrorCodeInvalidGrant, http.StatusBadRequest},
		{ErrInvalidClient, ErrorCodeInvalidClient, http.StatusUnauthorized},
		{ErrInvalidScope, ErrorCodeInvalidScope, http.StatusBadRequest},
		{ErrInvalidToken, ErrorCodeInvalidToken, http.StatusUnauthorized},
		{ErrUnauthorizedClient, ErrorCodeUnauthorizedClient, http.StatusBadRequest},
		{ErrUnsupportedGrantType, ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{ErrUnsupportedResponseType, ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
		{ErrServerError, ErrorCodeServerError, http.StatusInternalServerError},
		{ErrAccessDenied, ErrorCodeAccessDenied, http.StatusForbidden},
		{ErrInvalidRedirectURI, ErrorCodeInvalidRedirectURI, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			err := tt.constructor("details")
			if err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.wantCode)
			}
			if err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", err.Status, tt.wantStatus)
			}
			if err.Description != "details" {
				t.Errorf("Description = %q, want %q", err.Description, "details")
			}
		})
	}
}

func TestNewOAuthError(t *testing.T) {
	err := NewOAuthError(ErrorCodeRateLimitExceeded, "too many requests", http.StatusTooManyRequests)
	if err.Code != ErrorCodeRateLimitExceeded || err.Status != http.StatusTooManyRequests {
		t.Errorf("NewOAuthError() = %+v", err)
	}
}
