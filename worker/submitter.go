// Package worker drives admitted requests through the remote service.
// A Submitter runs one submit with per-attempt timeouts and retry
// classification; a Dispatcher owns the concurrency slots and the
// lifecycle of each in-flight request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/backoff"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
	"github.com/almlog/ai-dynamic-painting-sub000/middleware"
	"github.com/almlog/ai-dynamic-painting-sub000/remote"
)

// TimeoutError reports that a single submit attempt exceeded its
// per-attempt deadline. It is retryable: the next attempt gets a fresh
// deadline.
type TimeoutError struct {
	Timeout time.Duration
	Attempt int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("worker: submit attempt %d timed out after %dms", e.Attempt, e.Timeout.Milliseconds())
}

// Submitter runs remote submit calls with per-attempt timeouts, retry
// classification, and backoff between attempts.
type Submitter struct {
	service        remote.Service
	backoff        backoff.Strategy
	mw             middleware.Middleware
	logger         *slog.Logger
	defaultTimeout time.Duration
	maxRetries     int
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSubmitTimeout sets the per-attempt timeout used when the request
// does not carry its own.
func WithSubmitTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) { s.defaultTimeout = d }
}

// WithMaxRetries sets the retry budget used when the request does not
// carry its own. The total attempt count is retries + 1.
func WithMaxRetries(n int) SubmitterOption {
	return func(s *Submitter) { s.maxRetries = n }
}

// WithBackoff sets the delay strategy between retryable attempts.
func WithBackoff(b backoff.Strategy) SubmitterOption {
	return func(s *Submitter) { s.backoff = b }
}

// WithMiddleware wraps every submit attempt with the given middleware,
// outermost first.
func WithMiddleware(mws ...middleware.Middleware) SubmitterOption {
	return func(s *Submitter) { s.mw = middleware.Chain(mws...) }
}

// NewSubmitter creates a Submitter for the given remote service.
func NewSubmitter(service remote.Service, logger *slog.Logger, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		service:        service,
		backoff:        backoff.Default(),
		mw:             middleware.Chain(),
		logger:         logger,
		defaultTimeout: 30 * time.Second,
		maxRetries:     3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs the request's submit call until it succeeds, fails
// permanently, or exhausts its retry budget. It returns the
// provider-assigned task ID on success.
//
// Each attempt runs under its own deadline; a deadline miss becomes a
// TimeoutError and counts as a retryable failure. Transient remote
// errors retry with backoff. Permanent and unclassified errors stop
// immediately. Cancelling ctx stops between attempts and interrupts
// both the in-flight call and any backoff wait.
func (s *Submitter) Submit(ctx context.Context, req *job.Request) (string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	retries := req.MaxRetries
	if retries < 0 {
		retries = s.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= retries+1; attempt++ {
		if ctx.Err() != nil {
			return "", job.ErrCancelled
		}

		taskID, err := s.attempt(ctx, req, timeout, attempt)
		if err == nil {
			if attempt > 1 {
				s.logger.Info("submit succeeded after retry",
					slog.String("request_id", req.ID.String()),
					slog.Int("attempt", attempt),
				)
			}
			return taskID, nil
		}
		lastErr = err

		// The parent context going away is cancellation, not a remote
		// failure, regardless of how the adapter wrapped it.
		if ctx.Err() != nil {
			return "", job.ErrCancelled
		}

		if !retryable(err) {
			s.logger.Warn("submit failed permanently",
				slog.String("request_id", req.ID.String()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return "", err
		}

		if attempt > retries {
			break
		}

		delay := s.backoff.Delay(attempt)
		s.logger.Info("submit attempt failed, retrying",
			slog.String("request_id", req.ID.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", retries),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", job.ErrCancelled
		}
	}

	s.logger.Warn("submit retries exhausted",
		slog.String("request_id", req.ID.String()),
		slog.Int("retries", retries),
		slog.String("error", lastErr.Error()),
	)
	return "", fmt.Errorf("worker: retries exhausted after %d attempts: %w", retries+1, lastErr)
}

// attempt runs one submit call under its own deadline, through the
// middleware chain.
func (s *Submitter) attempt(ctx context.Context, req *job.Request, timeout time.Duration, attempt int) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var taskID string
	terminal := func(ctx context.Context) error {
		var err error
		taskID, err = s.service.Submit(ctx, req.Params)
		return err
	}

	err := s.mw(attemptCtx, req, terminal)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return "", &TimeoutError{Timeout: timeout, Attempt: attempt}
	}
	return taskID, err
}

// retryable reports whether err is worth another attempt. Timeouts and
// explicitly transient remote errors retry; everything else is final.
func retryable(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return remote.IsTransient(err)
}
