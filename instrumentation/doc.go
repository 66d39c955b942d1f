// Package instrumentation provides OpenTelemetry metrics and tracing
// for the OAuth2 engine.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-auth-server",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	eng.SetInstrumentation(inst)
//	store.SetInstrumentation(inst)
//
// With Enabled false, or when no instrumentation is attached at all,
// every recording path is a no-op.
//
// # Metrics
//
// Authorization flows (engine scope):
//   - oauth.authorization.requests{response_type, result}
//   - oauth.grants.issued{client_id, pkce_method}
//   - oauth.tokens.issued{grant_type}
//   - oauth.tokens.refreshed{client_id, rotated}
//   - oauth.tokens.revoked{token_type}
//   - oauth.clients.registered{client_type}
//
// Security (security scope):
//   - oauth.rate_limit.exceeded{limiter_type}
//   - oauth.pkce.validation_failed{method}
//   - oauth.code.reuse_detected
//   - oauth.token.reuse_detected
//   - oauth.audit.events.total{event_type}
//
// Storage (storage scope):
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation}
//   - storage.clients.count, storage.grants.count,
//     storage.access_tokens.count, storage.refresh_tokens.count
//
// The client_id label carries one value per registered client. For
// deployments with very many clients, aggregate by client_type in the
// monitoring backend instead.
//
// # Tracing
//
// The engine opens a span per protocol operation, nesting the stages
// of each flow:
//
//	oauth.token_request
//	└── oauth.exchange_code
//	    ├── storage.consume_grant
//	    └── oauth.issue_tokens
//
// Span attributes hold flow metadata only. Token values, authorization
// codes, client secrets, and PKCE verifiers never appear in traces or
// metric labels.
package instrumentation
