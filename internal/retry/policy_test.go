package retry

import (
	"testing"
	"time"
)

func TestPolicy_Delay(t *testing.T) {
	policy := Policy{
		InitialInterval: 1 * time.Second,
		MaxInterval:     1 * time.Hour,
		Multiplier:      2.0,
		Jitter:          false, // deterministic
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{10, 512 * time.Second},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			got := policy.Delay(tt.attempt)
			if got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestPolicy_Delay_CapsAtMaxInterval(t *testing.T) {
	policy := Policy{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          false,
	}

	// attempt 6 would be 32s, but should cap at 30s
	got := policy.Delay(6)
	if got != 30*time.Second {
		t.Errorf("Delay(6) = %v, want %v (capped)", got, 30*time.Second)
	}
}

func TestPolicy_Delay_JitterBand(t *testing.T) {
	policy := Policy{
		InitialInterval: 1 * time.Second,
		MaxInterval:     1 * time.Hour,
		Multiplier:      2.0,
		Jitter:          true,
	}

	base := 4 * time.Second // attempt 3
	minExpected := time.Duration(float64(base) * jitterMin)
	maxExpected := time.Duration(float64(base) * jitterMax)

	for i := 0; i < 100; i++ {
		got := policy.Delay(3)
		if got < minExpected || got > maxExpected {
			t.Errorf("Delay(3) = %v, want between %v and %v", got, minExpected, maxExpected)
		}
	}
}

func TestPolicy_Delay_JitterCanExceedCap(t *testing.T) {
	policy := Policy{
		InitialInterval: 1 * time.Second,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	}

	// Jitter applies after the cap, so the result stays within the jitter
	// band of MaxInterval rather than the raw exponential value.
	upper := time.Duration(float64(2*time.Second) * jitterMax)
	for i := 0; i < 100; i++ {
		if got := policy.Delay(10); got > upper {
			t.Errorf("Delay(10) = %v, want at most %v", got, upper)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	if policy.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v, want 3", policy.MaxRetries)
	}
	if policy.InitialInterval != 500*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 500ms", policy.InitialInterval)
	}
	if policy.MaxInterval != 30*time.Second {
		t.Errorf("MaxInterval = %v, want 30s", policy.MaxInterval)
	}
	if policy.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", policy.Multiplier)
	}
	if !policy.Jitter {
		t.Error("Jitter = false, want true")
	}
	if policy.AttemptTimeout != 10*time.Second {
		t.Errorf("AttemptTimeout = %v, want 10s", policy.AttemptTimeout)
	}
}
