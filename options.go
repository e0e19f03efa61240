package genclient

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/almlog/ai-dynamic-painting-sub000/backoff"
	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/hook"
	"github.com/almlog/ai-dynamic-painting-sub000/middleware"
)

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets the structured logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return &ValidationError{Field: "logger", Reason: "must not be nil"}
		}
		c.logger = l
		return nil
	}
}

// WithMaxConcurrent sets the cap on jobs in flight.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return &ValidationError{Field: "max concurrent", Reason: "must be at least 1"}
		}
		c.config.MaxConcurrentRequests = n
		return nil
	}
}

// WithDefaultTimeout sets the per-attempt submit deadline applied when a
// request carries none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return &ValidationError{Field: "default timeout", Reason: "must be positive"}
		}
		c.config.DefaultTimeout = d
		return nil
	}
}

// WithMaxRetries sets the retry budget applied when a request carries
// none.
func WithMaxRetries(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return &ValidationError{Field: "max retries", Reason: "must not be negative"}
		}
		c.config.MaxRetries = n
		return nil
	}
}

// WithPollInterval sets the base status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return &ValidationError{Field: "poll interval", Reason: "must be positive"}
		}
		c.config.PollInterval = d
		return nil
	}
}

// WithDailyBudget sets the spend ceiling per UTC calendar day.
func WithDailyBudget(limit float64) Option {
	return func(c *Client) error {
		if limit <= 0 {
			return &ValidationError{Field: "daily budget", Reason: "must be positive"}
		}
		c.config.DailyBudget = limit
		return nil
	}
}

// WithDefaultCostEstimate sets the per-job estimate charged against the
// budget when the caller supplies none.
func WithDefaultCostEstimate(v float64) Option {
	return func(c *Client) error {
		if v < 0 {
			return &ValidationError{Field: "cost estimate", Reason: "must not be negative"}
		}
		c.config.DefaultCostEstimate = v
		return nil
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight jobs.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return &ValidationError{Field: "shutdown timeout", Reason: "must be positive"}
		}
		c.config.ShutdownTimeout = d
		return nil
	}
}

// WithBudgetStore sets the ledger persistence backend. The ledger is
// restored from it on Start and written through after every recorded
// spend.
func WithBudgetStore(s budget.Store) Option {
	return func(c *Client) error {
		c.gateOpts = append(c.gateOpts, budget.WithStore(s))
		return nil
	}
}

// WithBudgetThresholds sets the warning and critical alert thresholds as
// fractions of the daily budget.
func WithBudgetThresholds(warning, critical float64) Option {
	return func(c *Client) error {
		if warning <= 0 || critical <= warning || critical >= 1 {
			return &ValidationError{Field: "budget thresholds", Reason: "need 0 < warning < critical < 1"}
		}
		c.gateOpts = append(c.gateOpts, budget.WithThresholds(warning, critical))
		return nil
	}
}

// WithAutoStop denies all admissions once daily spend reaches threshold,
// regardless of individual estimates.
func WithAutoStop(threshold float64) Option {
	return func(c *Client) error {
		if threshold <= 0 {
			return &ValidationError{Field: "auto-stop threshold", Reason: "must be positive"}
		}
		c.gateOpts = append(c.gateOpts, budget.WithAutoStop(threshold))
		return nil
	}
}

// WithDenyAtLimit makes the gate deny a request whose estimate lands
// spend exactly on the daily budget. The default allows exact equality.
func WithDenyAtLimit() Option {
	return func(c *Client) error {
		c.gateOpts = append(c.gateOpts, budget.WithDenyAtLimit())
		return nil
	}
}

// WithOverrideToken sets the token that authorizes budget overrides.
func WithOverrideToken(token string) Option {
	return func(c *Client) error {
		if token == "" {
			return &ValidationError{Field: "override token", Reason: "must not be empty"}
		}
		c.gateOpts = append(c.gateOpts, budget.WithOverrideToken(token))
		return nil
	}
}

// WithDailyReset runs a midnight UTC scheduler that rolls the budget day
// over even when no jobs complete around the boundary.
func WithDailyReset() Option {
	return func(c *Client) error {
		c.dailyReset = true
		return nil
	}
}

// WithBackoff sets the delay strategy between submit retries.
func WithBackoff(b backoff.Strategy) Option {
	return func(c *Client) error {
		if b == nil {
			return &ValidationError{Field: "backoff", Reason: "must not be nil"}
		}
		c.backoff = b
		return nil
	}
}

// WithMiddleware wraps every submit attempt with the given middleware,
// outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) error {
		c.middlewares = append(c.middlewares, mws...)
		return nil
	}
}

// WithExtensions registers lifecycle extensions. They are notified in
// registration order, after the client's own subscription fan-out.
func WithExtensions(exts ...hook.Extension) Option {
	return func(c *Client) error {
		c.extensions = append(c.extensions, exts...)
		return nil
	}
}

// WithSubmitRateLimit throttles remote submits to r per second with the
// given burst.
func WithSubmitRateLimit(r float64, burst int) Option {
	return func(c *Client) error {
		if r <= 0 || burst < 1 {
			return &ValidationError{Field: "submit rate limit", Reason: "need positive rate and burst"}
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
		return nil
	}
}
