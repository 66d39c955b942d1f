package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/scopes"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// Engine implements the OAuth 2.0 authorization-server protocol core
// (transport-agnostic). It coordinates clients, grants, and tokens through
// the storage interfaces; the caller owns the HTTP surface and the consent
// UI.
type Engine struct {
	clientStore   storage.ClientStore
	grantStore    storage.GrantStore
	tokenStore    storage.TokenStore
	registry      *scopes.Registry
	authenticator UserAuthenticator

	Auditor     *security.Auditor
	RateLimiter *security.RateLimiter
	Logger      *slog.Logger
	Config      Config

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	onTokenIssued TokenIssuedFunc
}

// New creates an engine over the given stores and scope registry.
func New(
	clientStore storage.ClientStore,
	grantStore storage.GrantStore,
	tokenStore storage.TokenStore,
	registry *scopes.Registry,
	config Config,
	logger *slog.Logger,
) (*Engine, error) {
	if clientStore == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if grantStore == nil {
		return nil, fmt.Errorf("grant store is required")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("scope registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applySecureDefaults(config, logger)

	return &Engine{
		clientStore: clientStore,
		grantStore:  grantStore,
		tokenStore:  tokenStore,
		registry:    registry,
		Config:      config,
		Logger:      logger,
		tracer:      noop.NewTracerProvider().Tracer(""),
	}, nil
}

// SetUserAuthenticator installs the collaborator that verifies resource-owner
// credentials for the password grant. Without one, password grant requests
// fail with unsupported_grant_type.
func (e *Engine) SetUserAuthenticator(auth UserAuthenticator) {
	e.authenticator = auth
}

// SetAuditor sets the security auditor
func (e *Engine) SetAuditor(aud *security.Auditor) {
	e.Auditor = aud
}

// SetRateLimiter sets the per-client rate limiter applied at the token endpoint
func (e *Engine) SetRateLimiter(rl *security.RateLimiter) {
	e.RateLimiter = rl
}

// SetInstrumentation wires OpenTelemetry metrics and tracing into the engine.
func (e *Engine) SetInstrumentation(inst *instrumentation.Instrumentation) {
	e.instrumentation = inst
	if inst != nil {
		e.tracer = inst.Tracer("engine")
	}
}

// OnTokenIssued registers a callback invoked synchronously after every
// successful token issuance, once the tokens are persisted.
func (e *Engine) OnTokenIssued(fn TokenIssuedFunc) {
	e.onTokenIssued = fn
}

// metrics returns the instrumentation metrics, or nil when disabled.
func (e *Engine) metrics() *instrumentation.Metrics {
	if e.instrumentation == nil {
		return nil
	}
	return e.instrumentation.Metrics()
}

// generateToken returns a fresh opaque token value with at least 256 bits of
// entropy (43 base64url characters).
func generateToken() string {
	return oauth2.GenerateVerifier()
}
