package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the engine's metric instruments, grouped by the meter
// scope that owns them.
type Metrics struct {
	// engine scope
	AuthorizationRequests metric.Int64Counter
	GrantsIssued          metric.Int64Counter
	TokensIssued          metric.Int64Counter
	TokensRefreshed       metric.Int64Counter
	TokensRevoked         metric.Int64Counter
	ClientsRegistered     metric.Int64Counter

	// security scope
	RateLimitExceeded    metric.Int64Counter
	PKCEValidationFailed metric.Int64Counter
	CodeReuseDetected    metric.Int64Counter
	TokenReuseDetected   metric.Int64Counter
	AuditEventsTotal     metric.Int64Counter

	// storage scope
	StorageOperationTotal     metric.Int64Counter
	StorageOperationDuration  metric.Float64Histogram
	StorageClientsCount       metric.Int64ObservableGauge
	StorageGrantsCount        metric.Int64ObservableGauge
	StorageAccessTokensCount  metric.Int64ObservableGauge
	StorageRefreshTokensCount metric.Int64ObservableGauge
}

// instrumentErrs collects the first instrument construction failure so
// newMetrics can build the whole set in one pass.
type instrumentErrs struct {
	err error
}

func (e *instrumentErrs) counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("failed to create %s counter: %w", name, err)
	}
	return c
}

func (e *instrumentErrs) gauge(meter metric.Meter, name, desc, unit string) metric.Int64ObservableGauge {
	g, err := meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("failed to create %s gauge: %w", name, err)
	}
	return g
}

func newMetrics(inst *Instrumentation) (*Metrics, error) {
	engine := inst.Meter("engine")
	security := inst.Meter("security")
	storage := inst.Meter("storage")

	var errs instrumentErrs
	m := &Metrics{
		AuthorizationRequests: errs.counter(engine, "oauth.authorization.requests",
			"Number of authorization requests processed", "{request}"),
		GrantsIssued: errs.counter(engine, "oauth.grants.issued",
			"Number of authorization grants issued", "{grant}"),
		TokensIssued: errs.counter(engine, "oauth.tokens.issued",
			"Number of access tokens issued", "{token}"),
		TokensRefreshed: errs.counter(engine, "oauth.tokens.refreshed",
			"Number of tokens refreshed", "{refresh}"),
		TokensRevoked: errs.counter(engine, "oauth.tokens.revoked",
			"Number of tokens revoked", "{revocation}"),
		ClientsRegistered: errs.counter(engine, "oauth.clients.registered",
			"Number of clients registered", "{client}"),

		RateLimitExceeded: errs.counter(security, "oauth.rate_limit.exceeded",
			"Number of rate limit violations", "{violation}"),
		PKCEValidationFailed: errs.counter(security, "oauth.pkce.validation_failed",
			"Number of PKCE validation failures", "{failure}"),
		CodeReuseDetected: errs.counter(security, "oauth.code.reuse_detected",
			"Number of authorization code replay attempts detected", "{attempt}"),
		TokenReuseDetected: errs.counter(security, "oauth.token.reuse_detected",
			"Number of refresh token reuse attempts detected", "{attempt}"),
		AuditEventsTotal: errs.counter(security, "oauth.audit.events.total",
			"Total number of audit events", "{event}"),

		StorageOperationTotal: errs.counter(storage, "storage.operation.total",
			"Total number of storage operations", "{operation}"),
		StorageClientsCount: errs.gauge(storage, "storage.clients.count",
			"Current number of registered clients in storage", "{client}"),
		StorageGrantsCount: errs.gauge(storage, "storage.grants.count",
			"Current number of authorization grants in storage", "{grant}"),
		StorageAccessTokensCount: errs.gauge(storage, "storage.access_tokens.count",
			"Current number of access tokens in storage", "{token}"),
		StorageRefreshTokensCount: errs.gauge(storage, "storage.refresh_tokens.count",
			"Current number of refresh tokens in storage", "{token}"),
	}

	var err error
	m.StorageOperationDuration, err = storage.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil && errs.err == nil {
		errs.err = fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	if errs.err != nil {
		return nil, errs.err
	}
	return m, nil
}

// RecordAuthorizationRequest counts one authorization request by
// response type and outcome.
func (m *Metrics) RecordAuthorizationRequest(ctx context.Context, responseType, result string) {
	m.AuthorizationRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("response_type", responseType),
		attribute.String("result", result),
	))
}

// RecordGrantIssued counts one authorization code issued.
func (m *Metrics) RecordGrantIssued(ctx context.Context, clientID, pkceMethod string) {
	m.GrantsIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("pkce_method", pkceMethod),
	))
}

// RecordTokenIssued counts one access token issued by grant type.
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
	))
}

// RecordTokenRefresh counts one refresh, tagged with whether the
// refresh token rotated.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string, rotated bool) {
	m.TokensRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Bool("rotated", rotated),
	))
}

// RecordTokenRevocation counts one revocation by token type.
func (m *Metrics) RecordTokenRevocation(ctx context.Context, tokenType string) {
	m.TokensRevoked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("token_type", tokenType),
	))
}

// RecordClientRegistration counts one registered client by type.
func (m *Metrics) RecordClientRegistration(ctx context.Context, clientType string) {
	m.ClientsRegistered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_type", clientType),
	))
}

// RecordRateLimitExceeded counts one rejected request per limiter.
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordPKCEValidationFailed counts one failed PKCE check by method.
func (m *Metrics) RecordPKCEValidationFailed(ctx context.Context, method string) {
	m.PKCEValidationFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordCodeReuseDetected counts one authorization code replay.
func (m *Metrics) RecordCodeReuseDetected(ctx context.Context) {
	m.CodeReuseDetected.Add(ctx, 1)
}

// RecordTokenReuseDetected counts one refresh token reuse.
func (m *Metrics) RecordTokenReuseDetected(ctx context.Context) {
	m.TokenReuseDetected.Add(ctx, 1)
}

// RecordStorageOperation counts a storage operation and records its
// duration.
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordAuditEvent counts one audit event by type.
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
