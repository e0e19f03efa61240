// Package backoff provides retry delay strategies for remote submit
// attempts. All strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
// Mostly useful in tests.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay each attempt:
// Delay = min(Base * 2^(attempt-1), Cap).
type Exponential struct {
	Base time.Duration
	Cap  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, cap time.Duration) *Exponential {
	return &Exponential{Base: base, Cap: cap}
}

// Delay returns Base * 2^(attempt-1), capped at Cap.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if e.Cap > 0 && d > e.Cap {
		return e.Cap
	}
	return d
}

// Jitter decorates another strategy with full jitter: the delay becomes a
// random value in [0, inner.Delay(attempt)]. Full jitter keeps retries
// from a burst of simultaneous failures from hammering the provider in
// lockstep.
type Jitter struct {
	Inner Strategy
}

// WithJitter wraps s with full jitter.
func WithJitter(s Strategy) *Jitter {
	return &Jitter{Inner: s}
}

// Delay returns a random duration in [0, Inner.Delay(attempt)].
func (j *Jitter) Delay(attempt int) time.Duration {
	d := j.Inner.Delay(attempt)
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * float64(d)) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// Default returns the strategy used when the caller configures none:
// exponential from 1s capped at 30s, with full jitter.
func Default() Strategy {
	return WithJitter(NewExponential(time.Second, 30*time.Second))
}
