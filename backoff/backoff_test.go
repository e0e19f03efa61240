package backoff_test

import (
	"testing"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(3 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 3*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 3*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},  // 1 * 2^0
		{2, 2 * time.Second},  // 1 * 2^1
		{3, 4 * time.Second},  // 1 * 2^2
		{4, 8 * time.Second},  // 1 * 2^3
		{5, 16 * time.Second}, // 1 * 2^4
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtCap(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(5); got != 10*time.Second {
		t.Errorf("Delay(5) = %v, want %v (capped)", got, 10*time.Second)
	}
	if got := e.Delay(30); got != 10*time.Second {
		t.Errorf("Delay(30) = %v, want %v (capped)", got, 10*time.Second)
	}
}

func TestExponential_ClampsAttemptBelowOne(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Minute)
	if got := e.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want %v", got, time.Second)
	}
	if got := e.Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %v, want %v", got, time.Second)
	}
}

func TestJitter_WithinBounds(t *testing.T) {
	j := backoff.WithJitter(backoff.NewExponential(time.Second, 8*time.Second))

	for attempt := 1; attempt <= 6; attempt++ {
		for range 100 {
			got := j.Delay(attempt)
			if got < 0 {
				t.Fatalf("Delay(%d) = %v, should be >= 0", attempt, got)
			}
			if got > 8*time.Second {
				t.Fatalf("Delay(%d) = %v, should be <= %v", attempt, got, 8*time.Second)
			}
		}
	}
}

func TestJitter_ProducesVariance(t *testing.T) {
	j := backoff.WithJitter(backoff.NewExponential(time.Second, time.Minute))

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[j.Delay(4)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got only %d distinct values", len(seen))
	}
}

func TestJitter_ZeroInnerDelay(t *testing.T) {
	j := backoff.WithJitter(backoff.NewConstant(0))
	if got := j.Delay(1); got != 0 {
		t.Errorf("Delay over zero inner = %v, want 0", got)
	}
}

func TestDefault_NonNil(t *testing.T) {
	s := backoff.Default()
	if s == nil {
		t.Fatal("Default() returned nil")
	}
	if d := s.Delay(1); d < 0 || d > time.Second {
		t.Errorf("Default().Delay(1) = %v, want within [0, 1s]", d)
	}
}
