package genclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/almlog/ai-dynamic-painting-sub000/backoff"
	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/hook"
	"github.com/almlog/ai-dynamic-painting-sub000/id"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
	"github.com/almlog/ai-dynamic-painting-sub000/middleware"
	"github.com/almlog/ai-dynamic-painting-sub000/poll"
	"github.com/almlog/ai-dynamic-painting-sub000/queue"
	"github.com/almlog/ai-dynamic-painting-sub000/remote"
	"github.com/almlog/ai-dynamic-painting-sub000/worker"
)

// Client is the admission-controlled job client. Create one with New,
// call Start, and submit jobs with SubmitJob. All methods are safe for
// concurrent use.
type Client struct {
	config  Config
	logger  *slog.Logger
	service remote.Service

	gate       *budget.Gate
	queue      *queue.Queue
	submitter  *worker.Submitter
	poller     *poll.Poller
	dispatcher *worker.Dispatcher
	hooks      *hook.Registry
	resetter   *budget.ResetScheduler

	// Collected by options, consumed once in New.
	gateOpts    []budget.GateOption
	backoff     backoff.Strategy
	middlewares []middleware.Middleware
	extensions  []hook.Extension
	limiter     *rate.Limiter
	dailyReset  bool

	mu      sync.Mutex
	started bool
	closed  bool
	handles map[string]*job.Handle
	subs    map[string]map[string]Callbacks
}

// New creates a Client for the given remote service.
func New(service remote.Service, opts ...Option) (*Client, error) {
	if service == nil {
		return nil, &ValidationError{Field: "service", Reason: "must not be nil"}
	}

	c := &Client{
		config:  DefaultConfig(),
		logger:  slog.Default(),
		service: service,
		handles: make(map[string]*job.Handle),
		subs:    make(map[string]map[string]Callbacks),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.hooks = hook.NewRegistry(c.logger)
	c.hooks.Register(&fanout{c: c})
	for _, e := range c.extensions {
		c.hooks.Register(e)
	}

	gateOpts := append([]budget.GateOption{
		budget.WithLogger(c.logger),
		budget.WithAlertFunc(func(level budget.AlertLevel, snapshot budget.Ledger) {
			c.hooks.EmitBudgetAlert(context.Background(), level, snapshot)
		}),
	}, c.gateOpts...)
	c.gate = budget.NewGate(c.config.DailyBudget, gateOpts...)

	submitterOpts := []worker.SubmitterOption{
		worker.WithSubmitTimeout(c.config.DefaultTimeout),
		worker.WithMaxRetries(c.config.MaxRetries),
		worker.WithMiddleware(c.middlewares...),
	}
	if c.backoff != nil {
		submitterOpts = append(submitterOpts, worker.WithBackoff(c.backoff))
	}
	c.submitter = worker.NewSubmitter(service, c.logger, submitterOpts...)

	c.queue = queue.New()
	c.poller = poll.New(service, c.logger, poll.WithInterval(c.config.PollInterval))

	dispatcherOpts := []worker.DispatcherOption{
		worker.WithMaxConcurrent(c.config.MaxConcurrentRequests),
	}
	if c.limiter != nil {
		dispatcherOpts = append(dispatcherOpts, worker.WithRateLimiter(c.limiter))
	}
	c.dispatcher = worker.NewDispatcher(
		c.queue, c.gate, c.submitter, c.poller, c.hooks,
		c.lookupHandle, c.logger, dispatcherOpts...,
	)

	if c.dailyReset {
		c.resetter = budget.NewResetScheduler(c.gate, c.logger)
	}
	return c, nil
}

// Start restores the budget ledger from its store and launches the
// dispatch loop. Jobs submitted before Start stay queued until it runs.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.gate.Restore(ctx); err != nil {
		return err
	}
	if c.resetter != nil {
		if err := c.resetter.Start(); err != nil {
			return err
		}
	}
	if err := c.dispatcher.Start(ctx); err != nil {
		return err
	}
	c.dispatcher.Kick()

	c.logger.Info("generation client started",
		slog.Int("max_concurrent", c.config.MaxConcurrentRequests),
		slog.Float64("daily_budget", c.config.DailyBudget),
	)
	return nil
}

// Close stops admitting work, waits up to the shutdown timeout for
// in-flight jobs, then cancels whatever is left. Idempotent.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	if !started {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ShutdownTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return c.dispatcher.Stop(ctx) })
	if c.resetter != nil {
		g.Go(func() error {
			c.resetter.Stop()
			return nil
		})
	}
	err := g.Wait()

	c.hooks.EmitShutdown(context.Background())
	c.logger.Info("generation client closed")
	return err
}

// SubmitOption configures a single job submission.
type SubmitOption func(*submitOpts)

type submitOpts struct {
	priority      job.Priority
	timeout       time.Duration
	maxRetries    int
	maxRetriesSet bool
	estimate      float64
	estimateSet   bool
	overrideToken string
}

// WithPriority sets the admission priority. The default is normal.
func WithPriority(p job.Priority) SubmitOption {
	return func(o *submitOpts) { o.priority = p }
}

// WithJobTimeout sets the per-attempt submit deadline for this job.
func WithJobTimeout(d time.Duration) SubmitOption {
	return func(o *submitOpts) { o.timeout = d }
}

// WithJobMaxRetries sets the retry budget for this job. Zero means a
// single attempt.
func WithJobMaxRetries(n int) SubmitOption {
	return func(o *submitOpts) {
		o.maxRetries = n
		o.maxRetriesSet = true
	}
}

// WithCostEstimate sets the spend estimate charged against the budget
// for this job.
func WithCostEstimate(v float64) SubmitOption {
	return func(o *submitOpts) {
		o.estimate = v
		o.estimateSet = true
	}
}

// WithBudgetOverride supplies an override token for this admission,
// bypassing the auto-stop denial when the token is valid.
func WithBudgetOverride(token string) SubmitOption {
	return func(o *submitOpts) { o.overrideToken = token }
}

// SubmitJob validates params, checks the budget, and enqueues a job.
// It returns immediately; dispatch happens asynchronously. Validation
// and budget denials surface synchronously as *ValidationError and
// *budget.ExceededError.
func (c *Client) SubmitJob(ctx context.Context, params job.Params, opts ...SubmitOption) (*job.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	cfg := c.config
	c.mu.Unlock()

	so := submitOpts{
		priority:   job.PriorityNormal,
		timeout:    cfg.DefaultTimeout,
		maxRetries: cfg.MaxRetries,
		estimate:   cfg.DefaultCostEstimate,
	}
	for _, opt := range opts {
		opt(&so)
	}

	if err := validateParams(params); err != nil {
		return nil, err
	}
	if so.timeout <= 0 {
		return nil, &ValidationError{Field: "timeout", Reason: "must be positive"}
	}
	if so.maxRetriesSet && so.maxRetries < 0 {
		return nil, &ValidationError{Field: "max retries", Reason: "must not be negative"}
	}
	if so.estimateSet && so.estimate < 0 {
		return nil, &ValidationError{Field: "cost estimate", Reason: "must not be negative"}
	}

	var admitOpts []budget.AdmitOption
	if so.overrideToken != "" {
		admitOpts = append(admitOpts, budget.WithOverride(so.overrideToken))
	}
	if err := c.gate.CheckAdmission(so.estimate, admitOpts...); err != nil {
		return nil, err
	}

	req := &job.Request{
		ID:            id.NewRequestID(),
		Params:        params,
		Priority:      so.priority,
		SubmittedAt:   time.Now().UTC(),
		CostEstimate:  so.estimate,
		Timeout:       so.timeout,
		MaxRetries:    so.maxRetries,
		OverrideToken: so.overrideToken,
	}
	handle := job.NewHandle(req)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.handles[req.ID.String()] = handle
	c.mu.Unlock()

	c.queue.Push(req)
	c.hooks.EmitJobQueued(ctx, handle)
	c.dispatcher.Kick()

	c.logger.Debug("job queued",
		slog.String("request_id", req.ID.String()),
		slog.String("priority", req.Priority.String()),
		slog.Float64("cost_estimate", req.CostEstimate),
	)
	return handle, nil
}

func validateParams(params job.Params) error {
	if params.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if params.DurationSeconds < 0 {
		return &ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	return nil
}

// CancelJob cancels a job. A queued job is removed before it can reach
// the remote service; a dispatched job has its in-flight work aborted.
// Cancelling an already-terminal job is a no-op. Idempotent.
func (c *Client) CancelJob(h *job.Handle) error {
	if h == nil {
		return ErrUnknownJob
	}
	key := h.RequestID().String()

	c.mu.Lock()
	tracked, ok := c.handles[key]
	c.mu.Unlock()
	if !ok || tracked != h {
		return ErrUnknownJob
	}

	if h.Terminal() {
		return nil
	}

	if removed := c.queue.Remove(h.RequestID()); removed != nil {
		if h.Fail(job.StateCancelled, job.ErrCancelled) {
			c.hooks.EmitJobCancelled(context.Background(), h)
		}
		return nil
	}

	// Already claimed by the dispatcher; cancellation lands through the
	// per-job context and the terminal state follows asynchronously.
	if c.dispatcher.Cancel(h.RequestID()) {
		return nil
	}

	// Claimed but not yet registered in flight. Mark the handle; the
	// dispatch path observes the terminal state and backs out.
	if h.Fail(job.StateCancelled, job.ErrCancelled) {
		c.hooks.EmitJobCancelled(context.Background(), h)
	}
	return nil
}

// Job returns the tracked handle for a request ID.
func (c *Client) Job(reqID id.RequestID) (*job.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[reqID.String()]
	if !ok {
		return nil, ErrUnknownJob
	}
	return h, nil
}

// GetBudgetStatus returns a snapshot of the budget ledger.
func (c *Client) GetBudgetStatus() budget.Ledger {
	return c.gate.Snapshot()
}

// OverrideBudget opens an admission override window authorized by token.
func (c *Client) OverrideBudget(token string, d time.Duration) error {
	return c.gate.Override(token, d)
}

// ClearBudgetOverride closes an open override window.
func (c *Client) ClearBudgetOverride(token string) error {
	return c.gate.ClearOverride(token)
}

// Configure adjusts the runtime-tunable settings: the concurrency cap
// and the default per-attempt timeout. Everything else is fixed at
// construction.
func (c *Client) Configure(maxConcurrent int, defaultTimeout time.Duration) error {
	if maxConcurrent < 1 {
		return &ValidationError{Field: "max concurrent", Reason: "must be at least 1"}
	}
	if defaultTimeout <= 0 {
		return &ValidationError{Field: "default timeout", Reason: "must be positive"}
	}

	c.mu.Lock()
	c.config.MaxConcurrentRequests = maxConcurrent
	c.config.DefaultTimeout = defaultTimeout
	c.mu.Unlock()

	c.dispatcher.SetMaxConcurrent(maxConcurrent)
	return nil
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// lookupHandle resolves queued requests for the dispatcher.
func (c *Client) lookupHandle(reqID id.RequestID) *job.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[reqID.String()]
}
