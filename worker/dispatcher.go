package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/hook"
	"github.com/almlog/ai-dynamic-painting-sub000/id"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
	"github.com/almlog/ai-dynamic-painting-sub000/poll"
	"github.com/almlog/ai-dynamic-painting-sub000/queue"
	"github.com/almlog/ai-dynamic-painting-sub000/remote"
)

// HandleResolver maps a queued request back to its live handle. The
// dispatcher skips requests whose handle is gone, which happens when a
// job was cancelled between enqueue and dispatch.
type HandleResolver func(id.RequestID) *job.Handle

// Dispatcher moves admitted requests from the queue to the remote
// service. It owns the concurrency slots: at most maxConcurrent
// requests are in flight (submitting or polling) at any time, and each
// dispatch releases its slot exactly once no matter how it ends.
type Dispatcher struct {
	queue     *queue.Queue
	gate      *budget.Gate
	submitter *Submitter
	poller    *poll.Poller
	hooks     *hook.Registry
	resolve   HandleResolver
	logger    *slog.Logger

	maxConcurrent int
	limiter       *rate.Limiter

	kick   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	active   int
	inflight map[string]context.CancelFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxConcurrent sets the in-flight request cap.
func WithMaxConcurrent(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrent = n
		}
	}
}

// WithRateLimiter throttles remote submits. Each dispatch waits for one
// token before its first attempt.
func WithRateLimiter(l *rate.Limiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	q *queue.Queue,
	gate *budget.Gate,
	submitter *Submitter,
	poller *poll.Poller,
	hooks *hook.Registry,
	resolve HandleResolver,
	logger *slog.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		queue:         q,
		gate:          gate,
		submitter:     submitter,
		poller:        poller,
		hooks:         hooks,
		resolve:       resolve,
		logger:        logger,
		maxConcurrent: 2,
		kick:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		inflight:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the dispatch goroutine. It returns immediately.
func (d *Dispatcher) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	d.running = true

	d.logger.Info("dispatcher starting", slog.Int("max_concurrent", d.maxConcurrent))

	d.wg.Add(1)
	go d.run()
	return nil
}

// Stop ends the dispatch loop and waits for in-flight work to finish.
// If ctx expires first, in-flight jobs are cancelled and Stop waits for
// them to unwind.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("dispatcher shutdown deadline hit, cancelling in-flight jobs")
		d.cancelInflight()
		<-done
	}
	return nil
}

// Kick asks the dispatch loop to look at the queue. Non-blocking; a
// pending kick absorbs later ones.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Cancel aborts the in-flight dispatch for reqID, if one exists.
// Returns false if the request is not currently dispatched.
func (d *Dispatcher) Cancel(reqID id.RequestID) bool {
	d.mu.Lock()
	cancel, ok := d.inflight[reqID.String()]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// SetMaxConcurrent changes the in-flight cap at runtime. Raising it
// kicks the dispatch loop; lowering it lets in-flight work drain down
// to the new cap without cancelling anything.
func (d *Dispatcher) SetMaxConcurrent(n int) {
	if n < 1 {
		return
	}
	d.mu.Lock()
	d.maxConcurrent = n
	d.mu.Unlock()
	d.Kick()
}

// Active returns the number of requests currently holding a slot.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.kick:
			d.dispatchReady()
		}
	}
}

// dispatchReady drains the queue into free slots. Admission is
// re-checked per request: spend recorded since enqueue may have closed
// the budget window.
func (d *Dispatcher) dispatchReady() {
	for {
		d.mu.Lock()
		if d.active >= d.maxConcurrent {
			d.mu.Unlock()
			return
		}
		req := d.queue.Pop()
		if req == nil {
			d.mu.Unlock()
			return
		}
		d.active++
		d.mu.Unlock()

		h := d.resolve(req.ID)
		if h == nil || h.Terminal() {
			// Cancelled while queued. Give the slot back.
			d.releaseSlot()
			continue
		}

		var admitOpts []budget.AdmitOption
		if req.OverrideToken != "" {
			admitOpts = append(admitOpts, budget.WithOverride(req.OverrideToken))
		}
		if err := d.gate.CheckAdmission(req.CostEstimate, admitOpts...); err != nil {
			d.logger.Warn("request rejected at dispatch",
				slog.String("request_id", req.ID.String()),
				slog.String("error", err.Error()),
			)
			if h.Fail(job.StateFailed, err) {
				d.hooks.EmitJobFailed(context.Background(), h, err)
			}
			d.releaseSlot()
			continue
		}

		if err := h.Transition(job.StateAdmitted); err != nil {
			// Lost the race with a cancellation.
			d.releaseSlot()
			continue
		}
		d.hooks.EmitJobDispatched(context.Background(), h)

		d.wg.Add(1)
		go d.execute(req, h)
	}
}

// execute owns one dispatch from slot acquisition to terminal state.
// The slot release is wrapped in a sync.Once: completion, failure,
// cancellation, and shutdown all funnel through it, and only the first
// caller wins.
func (d *Dispatcher) execute(req *job.Request, h *job.Handle) {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := req.ID.String()
	d.mu.Lock()
	d.inflight[key] = cancel
	d.mu.Unlock()

	var release sync.Once
	releaseSlot := func() {
		release.Do(func() {
			d.mu.Lock()
			delete(d.inflight, key)
			d.mu.Unlock()
			d.releaseSlot()
		})
	}
	defer releaseSlot()

	start := time.Now()

	if err := h.Transition(job.StateSubmitting); err != nil {
		return
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.finishFailure(h, job.ErrCancelled)
			return
		}
	}

	taskID, err := d.submitter.Submit(ctx, req)
	if err != nil {
		d.finishFailure(h, err)
		return
	}

	h.SetRemoteTaskID(taskID)
	if err := h.Transition(job.StatePolling); err != nil {
		return
	}

	d.logger.Info("remote task started",
		slog.String("request_id", key),
		slog.String("task_id", taskID),
	)

	watch := d.poller.Start(ctx, taskID, poll.Callbacks{
		OnProgress: func(r remote.PollResult) {
			h.SetProgress(r.ProgressPercent)
			d.hooks.EmitJobProgress(context.Background(), h, r.ProgressPercent)
		},
		OnComplete: func(r remote.PollResult) {
			h.SetProgress(r.ProgressPercent)
			h.SetResultURL(r.ResultURL)
			h.SetActualCost(r.ActualCost)
			d.recordSpend(req, r.ActualCost)
			if h.Complete() {
				d.hooks.EmitJobCompleted(context.Background(), h, time.Since(start))
			}
		},
		OnError: func(pollErr error) {
			d.recordSpend(req, 0)
			d.finishFailure(h, pollErr)
		},
	})

	select {
	case <-watch.Done():
	case <-ctx.Done():
		watch.Stop()
		<-watch.Done()
	}
	// A watch ended by cancellation exits without a terminal callback.
	if ctx.Err() != nil {
		d.finishFailure(h, job.ErrCancelled)
	}
}

// finishFailure maps err to the matching terminal state and emits the
// lifecycle event. A handle that is already terminal is left alone.
func (d *Dispatcher) finishFailure(h *job.Handle, err error) {
	terminal := job.StateFailed
	var te *TimeoutError
	switch {
	case errors.Is(err, job.ErrCancelled):
		terminal = job.StateCancelled
	case errors.As(err, &te):
		terminal = job.StateTimedOut
	}

	if !h.Fail(terminal, err) {
		return
	}

	switch terminal {
	case job.StateCancelled:
		d.hooks.EmitJobCancelled(context.Background(), h)
	default:
		d.hooks.EmitJobFailed(context.Background(), h, err)
	}
}

// recordSpend charges the gate once the remote side has run the task.
// The provider-reported cost wins; the request estimate is the fallback.
func (d *Dispatcher) recordSpend(req *job.Request, actual float64) {
	cost := actual
	if cost <= 0 {
		cost = req.CostEstimate
	}
	d.gate.RecordActual(context.Background(), cost)
}

func (d *Dispatcher) releaseSlot() {
	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	d.Kick()
}

func (d *Dispatcher) cancelInflight() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, cancel := range d.inflight {
		d.logger.Warn("cancelling in-flight job", slog.String("request_id", key))
		cancel()
	}
}
