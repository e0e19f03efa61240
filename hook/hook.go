// Package hook defines lifecycle extension points for the generation
// client. Extensions are notified of job lifecycle events and budget
// alerts and can react to them, for logging or metrics.
//
// Each lifecycle event is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobQueued is called after a request passes admission and enters the
// priority queue.
type JobQueued interface {
	OnJobQueued(ctx context.Context, h *job.Handle) error
}

// JobDispatched is called when the dispatcher claims a concurrency slot
// for a request and the remote submit is about to start.
type JobDispatched interface {
	OnJobDispatched(ctx context.Context, h *job.Handle) error
}

// JobProgress is called after every successful status poll while a job
// is in flight.
type JobProgress interface {
	OnJobProgress(ctx context.Context, h *job.Handle, percent int) error
}

// JobCompleted is called after a job reaches Completed.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, h *job.Handle, elapsed time.Duration) error
}

// JobFailed is called when a job reaches Failed or TimedOut.
type JobFailed interface {
	OnJobFailed(ctx context.Context, h *job.Handle, err error) error
}

// JobCancelled is called when a caller cancellation takes effect.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, h *job.Handle) error
}

// BudgetAlert is called when daily spend crosses an alert threshold.
type BudgetAlert interface {
	OnBudgetAlert(ctx context.Context, level budget.AlertLevel, snapshot budget.Ledger) error
}

// Shutdown is called during graceful client shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
