package instrumentation

import (
	"context"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		inst, err := New(Config{Enabled: enabled, ServiceName: "auth", ServiceVersion: "1.2.3"})
		if err != nil {
			t.Fatalf("New(enabled=%v) error = %v", enabled, err)
		}
		if inst.Meter("engine") == nil || inst.Tracer("engine") == nil {
			t.Error("Meter or Tracer returned nil")
		}
		if inst.Metrics() == nil {
			t.Error("Metrics() returned nil")
		}
		if inst.MeterProvider() == nil || inst.TracerProvider() == nil {
			t.Error("provider accessor returned nil")
		}

		if err := inst.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := inst.Shutdown(context.Background()); err != nil {
			t.Errorf("repeated Shutdown() error = %v", err)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	if inst.config.ServiceName != "oauth2-engine" {
		t.Errorf("ServiceName = %q, want oauth2-engine", inst.config.ServiceName)
	}
	if inst.config.ServiceVersion != "unknown" {
		t.Errorf("ServiceVersion = %q, want unknown", inst.config.ServiceVersion)
	}
}

func TestInstrumentation_DisabledIsUsable(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	// Recording against no-op providers must not panic.
	inst.Metrics().RecordAuthorizationRequest(ctx, "code", "success")
	inst.Metrics().RecordGrantIssued(ctx, "web-client", "S256")
	inst.Metrics().RecordTokenRefresh(ctx, "web-client", true)
	_, span := inst.Tracer("engine").Start(ctx, "noop")
	span.End()
}

func TestInstrumentation_RegisterStorageSizeCallbacks(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	err = inst.RegisterStorageSizeCallbacks(
		func() int64 { return 1 },
		func() int64 { return 2 },
		func() int64 { return 3 },
		func() int64 { return 4 },
	)
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks() error = %v", err)
	}
	if err := inst.RegisterStorageSizeCallbacks(nil, nil, nil, nil); err != nil {
		t.Errorf("RegisterStorageSizeCallbacks(nil...) error = %v", err)
	}
}

func TestInstrumentation_ConcurrentRecording(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				inst.Metrics().RecordGrantIssued(ctx, fmt.Sprintf("client-%d", id), "S256")
				inst.Metrics().RecordTokenIssued(ctx, "authorization_code")
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkRecordTokenIssued(b *testing.B) {
	inst, _ := New(Config{Enabled: true})
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	metrics := inst.Metrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordTokenIssued(ctx, "authorization_code")
	}
}

func BenchmarkSpanCreation(b *testing.B) {
	inst, _ := New(Config{Enabled: true})
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	tracer := inst.Tracer("engine")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.Start(ctx, "oauth.token_request")
		span.End()
	}
}
