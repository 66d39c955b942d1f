package security

import (
	"testing"
	"time"
)

func TestIsTokenExpired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"long expired", now.Add(-10 * time.Minute), true},
		{"just past expiry, inside grace", now.Add(-time.Second), false},
		{"past expiry and grace", now.Add(-DefaultClockSkewGracePeriod - time.Second), true},
		{"still valid", now.Add(time.Hour), false},
		{"zero time never expires", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTokenExpired(tt.expiresAt); got != tt.want {
				t.Errorf("IsTokenExpired(%v) = %v, want %v", tt.expiresAt, got, tt.want)
			}
		})
	}
}

func TestIsTokenExpiredWithGracePeriod(t *testing.T) {
	now := time.Now()

	// With zero grace the boundary is exact.
	if !IsTokenExpiredWithGracePeriod(now.Add(-time.Millisecond), 0) {
		t.Error("zero grace should expire immediately after the deadline")
	}
	// A large grace keeps a recently expired token alive.
	if IsTokenExpiredWithGracePeriod(now.Add(-time.Minute), 2*time.Minute) {
		t.Error("token inside the grace window should not be expired")
	}
	if !IsTokenExpiredWithGracePeriod(now.Add(-3*time.Minute), 2*time.Minute) {
		t.Error("token beyond the grace window should be expired")
	}
}
