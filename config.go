package genclient

import "time"

// Config holds the tunable settings of a Client.
type Config struct {
	// MaxConcurrentRequests is the cap on jobs in flight (submitting or
	// polling) at any time.
	MaxConcurrentRequests int

	// DefaultTimeout is the per-attempt submit deadline applied when a
	// request carries none. Timeouts are scoped per attempt, not per
	// job: a job may survive several timed-out attempts across retries.
	DefaultTimeout time.Duration

	// MaxRetries is the retry budget applied when a request carries
	// none. The total attempt count is retries + 1.
	MaxRetries int

	// PollInterval is the base status poll interval. The poller
	// stretches it while progress is flat, up to four times this value.
	PollInterval time.Duration

	// DefaultCostEstimate is the per-job spend estimate charged against
	// the budget when the caller supplies none.
	DefaultCostEstimate float64

	// DailyBudget is the spend ceiling per UTC calendar day.
	DailyBudget float64

	// ShutdownTimeout bounds how long Close waits for in-flight jobs
	// before cancelling them.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRequests: 2,
		DefaultTimeout:        30 * time.Second,
		MaxRetries:            3,
		PollInterval:          5 * time.Second,
		DefaultCostEstimate:   0.50,
		DailyBudget:           50.0,
		ShutdownTimeout:       30 * time.Second,
	}
}
