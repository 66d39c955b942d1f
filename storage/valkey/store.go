package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

const (
	// DefaultKeyPrefix is prepended to every key when Config.KeyPrefix
	// is empty.
	DefaultKeyPrefix = "oauth2:"

	// scanBatchSize bounds how many keys a single SCAN iteration fetches.
	scanBatchSize = 100

	// connectionVerifyTimeout bounds the PING issued by New.
	connectionVerifyTimeout = 5 * time.Second

	// MaxTokenLength caps token strings accepted for storage. Oversized
	// values are rejected before they reach the server.
	MaxTokenLength = 512

	// MaxIDLength caps userID and clientID strings.
	MaxIDLength = 256
)

// errInvalidCredentials is deliberately generic so callers cannot tell
// a missing client from a wrong secret.
var errInvalidCredentials = fmt.Errorf("invalid client credentials")

// Config holds connection settings for the Valkey backend.
type Config struct {
	// Address of the Valkey server, e.g. "localhost:6379". Required.
	Address string

	// Password for AUTH, if the server requires one.
	Password string

	// DB selects the logical database. Defaults to 0.
	DB int

	// KeyPrefix namespaces every key. Defaults to DefaultKeyPrefix.
	KeyPrefix string

	// TLS enables an encrypted connection when non-nil.
	TLS *tls.Config

	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Store keeps clients, grants, and tokens in a Valkey server. One Store
// serves as ClientStore, GrantStore, and TokenStore.
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger

	// encryptor seals token material inside stored records. Guarded by
	// encryptorMu so it can be set after the store is in use.
	encryptor   *security.Encryptor
	encryptorMu sync.RWMutex
}

var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.GrantStore  = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
	_ storage.Store       = (*Store)(nil)
)

// New connects to the configured Valkey server and verifies the
// connection with a PING before returning the store.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetEncryptor turns on encryption at rest. Token values inside record
// bodies are sealed before writing and opened on read.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.encryptorMu.Lock()
	defer s.encryptorMu.Unlock()
	s.encryptor = enc
	if enc != nil && enc.IsEnabled() {
		s.logger.Info("Token encryption at rest enabled for Valkey storage")
	}
}

func (s *Store) getEncryptor() *security.Encryptor {
	s.encryptorMu.RLock()
	defer s.encryptorMu.RUnlock()
	return s.encryptor
}

// validateStringLength rejects values longer than maxLen bytes.
func validateStringLength(value string, maxLen int, fieldName string) error {
	if len(value) > maxLen {
		return fmt.Errorf("%s exceeds maximum length of %d bytes", fieldName, maxLen)
	}
	return nil
}

// ============================================================
// Keys
// ============================================================

func (s *Store) clientKey(clientID string) string {
	return s.prefix + "client:" + clientID
}

func (s *Store) grantKey(code string) string {
	return s.prefix + "grant:" + code
}

func (s *Store) accessTokenKey(token string) string {
	return s.prefix + "access:" + token
}

func (s *Store) refreshTokenKey(token string) string {
	return s.prefix + "refresh:" + token
}

func (s *Store) userClientKey(userID, clientID string) string {
	return s.prefix + "userclient:" + userID + ":" + clientID
}

// ============================================================
// Consume scripts
// ============================================================

// Single-use consumption runs server-side as a Lua script, so the read,
// the liveness check, and the marking happen in one step and concurrent
// consumers of the same credential cannot both succeed. Both scripts
// share a body; they differ in the reuse predicate and the field that
// gets set. A script takes the record key as KEYS[1] and the current
// Unix time as ARGV[1], and replies with one of:
//
//	<json>                the live record, now marked
//	NOT_FOUND             no such key
//	EXPIRED               record outlived expires_at
//	ALREADY_USED:<json>   record was consumed before; body included so
//	                      the caller can identify whose tokens to revoke
const consumeScriptBody = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end

local record = cjson.decode(data)

local expiresAt = tonumber(record.expires_at)
if expiresAt and tonumber(ARGV[1]) > expiresAt then
    return 'EXPIRED'
end

if %s then
    return 'ALREADY_USED:' .. data
end

record.%s = true
redis.call('SET', KEYS[1], cjson.encode(record), 'KEEPTTL')

return data
`

var (
	luaAtomicConsumeGrant        = fmt.Sprintf(consumeScriptBody, "record.used", "used")
	luaAtomicConsumeRefreshToken = fmt.Sprintf(consumeScriptBody, "record.rotated or record.revoked", "rotated")
)

// ============================================================
// Wire records
// ============================================================

// Records are stored as JSON with Unix-second timestamps; the scripts
// above read expires_at numerically, so the field names below are part
// of the storage contract.

type clientJSON struct {
	ClientID          string   `json:"client_id"`
	ClientSecretHash  string   `json:"client_secret_hash,omitempty"`
	ClientType        string   `json:"client_type"`
	Name              string   `json:"name,omitempty"`
	RedirectURIs      []string `json:"redirect_uris"`
	GrantTypes        []string `json:"grant_types,omitempty"`
	Scopes            []string `json:"scopes,omitempty"`
	SkipAuthorization bool     `json:"skip_authorization,omitempty"`
	CreatedAt         int64    `json:"created_at"`
}

func toClientJSON(client *storage.Client) *clientJSON {
	return &clientJSON{
		ClientID:          client.ClientID,
		ClientSecretHash:  client.ClientSecretHash,
		ClientType:        client.ClientType,
		Name:              client.Name,
		RedirectURIs:      client.RedirectURIs,
		GrantTypes:        client.GrantTypes,
		Scopes:            client.Scopes,
		SkipAuthorization: client.SkipAuthorization,
		CreatedAt:         client.CreatedAt.Unix(),
	}
}

func fromClientJSON(j *clientJSON) *storage.Client {
	if j == nil {
		return nil
	}
	return &storage.Client{
		ClientID:          j.ClientID,
		ClientSecretHash:  j.ClientSecretHash,
		ClientType:        j.ClientType,
		Name:              j.Name,
		RedirectURIs:      j.RedirectURIs,
		GrantTypes:        j.GrantTypes,
		Scopes:            j.Scopes,
		SkipAuthorization: j.SkipAuthorization,
		CreatedAt:         time.Unix(j.CreatedAt, 0),
	}
}

type grantJSON struct {
	Code                string   `json:"code"`
	ClientID            string   `json:"client_id"`
	UserID              string   `json:"user_id"`
	RedirectURI         string   `json:"redirect_uri"`
	Scopes              []string `json:"scopes,omitempty"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
	CreatedAt           int64    `json:"created_at"`
	ExpiresAt           int64    `json:"expires_at"`
	Used                bool     `json:"used"`
}

func toGrantJSON(grant *storage.Grant) *grantJSON {
	return &grantJSON{
		Code:                grant.Code,
		ClientID:            grant.ClientID,
		UserID:              grant.UserID,
		RedirectURI:         grant.RedirectURI,
		Scopes:              grant.Scopes,
		CodeChallenge:       grant.CodeChallenge,
		CodeChallengeMethod: grant.CodeChallengeMethod,
		CreatedAt:           grant.CreatedAt.Unix(),
		ExpiresAt:           grant.ExpiresAt.Unix(),
		Used:                grant.Used,
	}
}

func fromGrantJSON(j *grantJSON) *storage.Grant {
	if j == nil {
		return nil
	}
	return &storage.Grant{
		Code:                j.Code,
		ClientID:            j.ClientID,
		UserID:              j.UserID,
		RedirectURI:         j.RedirectURI,
		Scopes:              j.Scopes,
		CodeChallenge:       j.CodeChallenge,
		CodeChallengeMethod: j.CodeChallengeMethod,
		CreatedAt:           time.Unix(j.CreatedAt, 0),
		ExpiresAt:           time.Unix(j.ExpiresAt, 0),
		Used:                j.Used,
	}
}

type accessTokenJSON struct {
	Token        string   `json:"token"`
	ClientID     string   `json:"client_id"`
	UserID       string   `json:"user_id,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	GrantType    string   `json:"grant_type,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	CreatedAt    int64    `json:"created_at"`
	ExpiresAt    int64    `json:"expires_at"`
	Revoked      bool     `json:"revoked"`
}

func toAccessTokenJSON(token *storage.AccessToken) *accessTokenJSON {
	return &accessTokenJSON{
		Token:        token.Token,
		ClientID:     token.ClientID,
		UserID:       token.UserID,
		Scopes:       token.Scopes,
		GrantType:    token.GrantType,
		RefreshToken: token.RefreshToken,
		CreatedAt:    token.CreatedAt.Unix(),
		ExpiresAt:    token.ExpiresAt.Unix(),
		Revoked:      token.Revoked,
	}
}

func fromAccessTokenJSON(j *accessTokenJSON) *storage.AccessToken {
	if j == nil {
		return nil
	}
	return &storage.AccessToken{
		Token:        j.Token,
		ClientID:     j.ClientID,
		UserID:       j.UserID,
		Scopes:       j.Scopes,
		GrantType:    j.GrantType,
		RefreshToken: j.RefreshToken,
		CreatedAt:    time.Unix(j.CreatedAt, 0),
		ExpiresAt:    time.Unix(j.ExpiresAt, 0),
		Revoked:      j.Revoked,
	}
}

type refreshTokenJSON struct {
	Token       string   `json:"token"`
	ClientID    string   `json:"client_id"`
	UserID      string   `json:"user_id"`
	Scopes      []string `json:"scopes,omitempty"`
	AccessToken string   `json:"access_token,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	ExpiresAt   int64    `json:"expires_at"`
	Rotated     bool     `json:"rotated"`
	Revoked     bool     `json:"revoked"`
}

func toRefreshTokenJSON(token *storage.RefreshToken) *refreshTokenJSON {
	return &refreshTokenJSON{
		Token:       token.Token,
		ClientID:    token.ClientID,
		UserID:      token.UserID,
		Scopes:      token.Scopes,
		AccessToken: token.AccessToken,
		CreatedAt:   token.CreatedAt.Unix(),
		ExpiresAt:   token.ExpiresAt.Unix(),
		Rotated:     token.Rotated,
		Revoked:     token.Revoked,
	}
}

func fromRefreshTokenJSON(j *refreshTokenJSON) *storage.RefreshToken {
	if j == nil {
		return nil
	}
	return &storage.RefreshToken{
		Token:       j.Token,
		ClientID:    j.ClientID,
		UserID:      j.UserID,
		Scopes:      j.Scopes,
		AccessToken: j.AccessToken,
		CreatedAt:   time.Unix(j.CreatedAt, 0),
		ExpiresAt:   time.Unix(j.ExpiresAt, 0),
		Rotated:     j.Rotated,
		Revoked:     j.Revoked,
	}
}

// ============================================================
// Encryption at rest
// ============================================================

// Lookup keys keep the plaintext token value, since the key is how the
// record is found. What the encryptor protects is the token material
// inside record bodies, so a dump of values alone does not yield usable
// credentials.

// transformField runs fn over value when encryption is enabled. Empty
// values pass through untouched.
func (s *Store) transformField(value string, fn func(string) (string, error), errFmt string) (string, error) {
	enc := s.getEncryptor()
	if enc == nil || !enc.IsEnabled() || value == "" {
		return value, nil
	}
	result, err := fn(value)
	if err != nil {
		return "", fmt.Errorf(errFmt, err)
	}
	return result, nil
}

func (s *Store) encryptAccessTokenRecord(j *accessTokenJSON) error {
	enc := s.getEncryptor()
	if enc == nil || !enc.IsEnabled() {
		return nil
	}
	var err error
	if j.Token, err = s.transformField(j.Token, enc.Encrypt, "failed to encrypt access token: %w"); err != nil {
		return err
	}
	j.RefreshToken, err = s.transformField(j.RefreshToken, enc.Encrypt, "failed to encrypt paired refresh token: %w")
	return err
}

func (s *Store) decryptAccessTokenRecord(j *accessTokenJSON) error {
	enc := s.getEncryptor()
	if enc == nil || !enc.IsEnabled() {
		return nil
	}
	var err error
	if j.Token, err = s.transformField(j.Token, enc.Decrypt, "failed to decrypt access token: %w"); err != nil {
		return err
	}
	j.RefreshToken, err = s.transformField(j.RefreshToken, enc.Decrypt, "failed to decrypt paired refresh token: %w")
	return err
}

func (s *Store) encryptRefreshTokenRecord(j *refreshTokenJSON) error {
	enc := s.getEncryptor()
	if enc == nil || !enc.IsEnabled() {
		return nil
	}
	var err error
	if j.Token, err = s.transformField(j.Token, enc.Encrypt, "failed to encrypt refresh token: %w"); err != nil {
		return err
	}
	j.AccessToken, err = s.transformField(j.AccessToken, enc.Encrypt, "failed to encrypt paired access token: %w")
	return err
}

func (s *Store) decryptRefreshTokenRecord(j *refreshTokenJSON) error {
	enc := s.getEncryptor()
	if enc == nil || !enc.IsEnabled() {
		return nil
	}
	var err error
	if j.Token, err = s.transformField(j.Token, enc.Decrypt, "failed to decrypt refresh token: %w"); err != nil {
		return err
	}
	j.AccessToken, err = s.transformField(j.AccessToken, enc.Decrypt, "failed to decrypt paired access token: %w")
	return err
}

// ============================================================
// Fetch helpers
// ============================================================

// getAndUnmarshal fetches a key, decodes its JSON body into the wire
// type J, and converts it to the domain type T. A Valkey nil reply maps
// to notFoundErr.
func getAndUnmarshal[J any, T any](
	ctx context.Context,
	s *Store,
	key string,
	notFoundErr error,
	fromJSON func(*J) *T,
) (*T, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("failed to get data: %w", err)
	}

	var j J
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return fromJSON(&j), nil
}

// calculateTTL maps an expiry timestamp to a key TTL, flooring at zero
// for records already past their expiry.
func calculateTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return 0
	}
	return ttl
}

// isNilError reports whether err is the server's nil (missing key) reply.
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
