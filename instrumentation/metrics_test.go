package instrumentation

import (
	"context"
	"testing"
)

func testMetrics(t *testing.T, enabled bool) *Metrics {
	t.Helper()
	inst, err := New(Config{Enabled: enabled})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })
	return inst.Metrics()
}

// recordAll touches every recording helper once. Instruments are
// validated at construction; the recorders just must not panic.
func recordAll(ctx context.Context, m *Metrics) {
	m.RecordAuthorizationRequest(ctx, "code", "success")
	m.RecordAuthorizationRequest(ctx, "token", "error")
	m.RecordGrantIssued(ctx, "web-client", "S256")
	m.RecordTokenIssued(ctx, "authorization_code")
	m.RecordTokenRefresh(ctx, "web-client", true)
	m.RecordTokenRevocation(ctx, "refresh_token")
	m.RecordClientRegistration(ctx, "confidential")
	m.RecordRateLimitExceeded(ctx, "client")
	m.RecordPKCEValidationFailed(ctx, "plain")
	m.RecordCodeReuseDetected(ctx)
	m.RecordTokenReuseDetected(ctx)
	m.RecordStorageOperation(ctx, "consume_grant", "success", 5.67)
	m.RecordAuditEvent(ctx, "token_issued")
}

func TestMetrics_RecordAll(t *testing.T) {
	recordAll(context.Background(), testMetrics(t, true))
}

func TestMetrics_RecordAll_Disabled(t *testing.T) {
	recordAll(context.Background(), testMetrics(t, false))
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	ctx := context.Background()
	m := testMetrics(t, true)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				recordAll(ctx, m)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
