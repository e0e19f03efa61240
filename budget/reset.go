package budget

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ResetScheduler forces the gate's day rollover at midnight UTC, so a
// quiet period with no completions still resets the spend on time.
// Rollover also happens lazily on every gate operation; the scheduler
// just makes the boundary punctual.
type ResetScheduler struct {
	cron   *cron.Cron
	gate   *Gate
	logger *slog.Logger
}

// NewResetScheduler creates a scheduler for the given gate.
func NewResetScheduler(gate *Gate, logger *slog.Logger) *ResetScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetScheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		gate:   gate,
		logger: logger,
	}
}

// Start begins the midnight schedule. It returns immediately.
func (r *ResetScheduler) Start() error {
	_, err := r.cron.AddFunc("0 0 * * *", func() {
		r.gate.Reset()
		r.logger.Info("daily budget reset fired")
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running reset to finish.
func (r *ResetScheduler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
