package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    10,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_NoBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	if got := p.Backoff(2); got != 0 {
		t.Errorf("Backoff(2) = %v, want 0", got)
	}
}

func TestRetryPolicy_MultiplierBelowOneIsConstant(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 50 * time.Millisecond, Multiplier: 0.5}
	if got := p.Backoff(4); got != 50*time.Millisecond {
		t.Errorf("Backoff(4) = %v, want 50ms", got)
	}
}

func TestRetryPolicy_Unbounded(t *testing.T) {
	if DefaultRetryPolicy().Unbounded() {
		t.Error("default policy should be bounded")
	}
	if !(RetryPolicy{MaxAttempts: 0}).Unbounded() {
		t.Error("MaxAttempts 0 should be unbounded")
	}
	if !(RetryPolicy{MaxAttempts: -1}).Unbounded() {
		t.Error("negative MaxAttempts should be unbounded")
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext did not return promptly on cancellation")
	}
}
