// Package testutil provides fixtures and assertion helpers shared by
// the storage and engine tests.
package testutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-engine/storage"
)

// testSecretHash is the bcrypt hash of "test". MinCost keeps fixture
// setup fast.
var testSecretHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("test"), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash test secret: %v", err))
	}
	return string(hash)
}()

// GenerateTestClient returns a confidential client whose secret is
// "test".
func GenerateTestClient() *storage.Client {
	return &storage.Client{
		ClientID:         "test-client-id",
		ClientSecretHash: testSecretHash,
		ClientType:       "confidential",
		Name:             "Test Client",
		RedirectURIs:     []string{"https://example.com/callback"},
		GrantTypes:       []string{"authorization_code", "refresh_token"},
		Scopes:           []string{"read", "write"},
		CreatedAt:        time.Now(),
	}
}

// GenerateTestPublicClient returns a public client with no secret.
func GenerateTestPublicClient() *storage.Client {
	c := GenerateTestClient()
	c.ClientID = "test-public-client"
	c.ClientSecretHash = ""
	c.ClientType = "public"
	c.Name = "Test Public Client"
	return c
}

// GenerateTestGrant returns an unused authorization grant with an S256
// PKCE challenge, valid for ten minutes.
func GenerateTestGrant() *storage.Grant {
	challenge, _ := GeneratePKCEPair()
	return &storage.Grant{
		Code:                GenerateRandomString(32),
		ClientID:            "test-client-id",
		UserID:              "test-user-123",
		RedirectURI:         "https://example.com/callback",
		Scopes:              []string{"read", "write"},
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		CreatedAt:           time.Now(),
		ExpiresAt:           time.Now().Add(10 * time.Minute),
	}
}

// GenerateTestAccessToken returns an access token valid for one hour.
func GenerateTestAccessToken() *storage.AccessToken {
	return &storage.AccessToken{
		Token:     GenerateRandomString(48),
		ClientID:  "test-client-id",
		UserID:    "test-user-123",
		Scopes:    []string{"read", "write"},
		GrantType: "authorization_code",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// GenerateTestRefreshToken returns a refresh token valid for 90 days.
func GenerateTestRefreshToken() *storage.RefreshToken {
	return &storage.RefreshToken{
		Token:     GenerateRandomString(48),
		ClientID:  "test-client-id",
		UserID:    "test-user-123",
		Scopes:    []string{"read", "write"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(90 * 24 * time.Hour),
	}
}

// GenerateRandomString returns length characters of URL-safe base64.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// GeneratePKCEPair returns a matching S256 challenge and verifier.
func GeneratePKCEPair() (challenge, verifier string) {
	verifier = GenerateRandomString(50)
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]), verifier
}

// AssertNoError fails the test immediately if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertTrue fails the test if condition is false.
func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Errorf("assertion failed: %s", message)
	}
}

// AssertFalse fails the test if condition is true.
func AssertFalse(t *testing.T, condition bool, message string) {
	t.Helper()
	if condition {
		t.Errorf("assertion failed: %s", message)
	}
}
