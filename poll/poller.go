// Package poll tracks remote task progress. A Poller asks the remote
// service for status on a timer and slows down while nothing moves, so
// a stalled provider queue does not get hammered at full rate.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/remote"
)

// maxIntervalFactor caps the adaptive interval at a multiple of the
// base interval.
const maxIntervalFactor = 4

// Callbacks receive progress and the terminal outcome of one watch.
// OnProgress fires after every successful status fetch. Exactly one of
// OnComplete or OnError fires, then the watch ends. A stopped watch
// fires neither. Nil callbacks are skipped.
type Callbacks struct {
	OnProgress func(remote.PollResult)
	OnComplete func(remote.PollResult)
	OnError    func(error)
}

// Poller polls remote task status until the task reaches a terminal
// state. A single Poller is shared by all in-flight requests.
type Poller struct {
	service     remote.Service
	interval    time.Duration
	maxFailures int
	logger      *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the base poll interval. The adaptive schedule grows
// from this value and never exceeds four times it.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithMaxFailures sets how many consecutive status fetch failures end
// the watch with an error.
func WithMaxFailures(n int) Option {
	return func(p *Poller) { p.maxFailures = n }
}

// New creates a Poller for the given remote service.
func New(service remote.Service, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		service:     service,
		interval:    5 * time.Second,
		maxFailures: 5,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Watch is one in-progress status watch. Stop is safe to call any
// number of times and from any goroutine.
type Watch struct {
	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once
}

// Stop ends the watch without a terminal callback. Idempotent.
func (w *Watch) Stop() {
	w.stop.Do(w.cancel)
}

// Done is closed once the watch loop has exited.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Start begins watching taskID in a new goroutine. The watch ends when
// the task reaches a terminal status, consecutive fetch failures exceed
// the limit, ctx is cancelled, or Stop is called.
func (p *Poller) Start(ctx context.Context, taskID string, cb Callbacks) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		defer cancel()
		p.loop(ctx, taskID, cb)
	}()
	return w
}

// loop is the poll cycle. The interval stretches by half while progress
// stays flat and snaps back to base on any movement, capped at
// maxIntervalFactor times the base interval.
func (p *Poller) loop(ctx context.Context, taskID string, cb Callbacks) {
	interval := p.interval
	maxInterval := p.interval * maxIntervalFactor
	lastProgress := -1
	failures := 0

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		result, err := p.service.GetStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if remote.IsPermanent(err) {
				p.logger.Warn("status fetch failed permanently",
					slog.String("task_id", taskID),
					slog.String("error", err.Error()),
				)
				if cb.OnError != nil {
					cb.OnError(err)
				}
				return
			}

			failures++
			p.logger.Debug("status fetch failed, will retry",
				slog.String("task_id", taskID),
				slog.Int("consecutive_failures", failures),
				slog.String("error", err.Error()),
			)
			if failures >= p.maxFailures {
				if cb.OnError != nil {
					cb.OnError(err)
				}
				return
			}
			timer.Reset(interval)
			continue
		}
		failures = 0

		if cb.OnProgress != nil {
			cb.OnProgress(result)
		}

		if result.Status.Terminal() {
			if result.Status == remote.StatusCompleted {
				if cb.OnComplete != nil {
					cb.OnComplete(result)
				}
			} else {
				if cb.OnError != nil {
					cb.OnError(remote.Permanent(&TaskFailedError{TaskID: taskID, Message: result.ErrorMessage}))
				}
			}
			return
		}

		if result.ProgressPercent == lastProgress {
			interval = interval * 3 / 2
			if interval > maxInterval {
				interval = maxInterval
			}
		} else {
			interval = p.interval
			lastProgress = result.ProgressPercent
		}

		timer.Reset(interval)
	}
}

// TaskFailedError reports that the remote side finished the task in a
// failed state.
type TaskFailedError struct {
	TaskID  string
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Message == "" {
		return "poll: task " + e.TaskID + " failed remotely"
	}
	return "poll: task " + e.TaskID + " failed remotely: " + e.Message
}
