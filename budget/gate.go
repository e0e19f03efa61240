package budget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBadOverrideToken is returned when an override is requested with a
// token that does not match the configured one.
var ErrBadOverrideToken = errors.New("budget: invalid override token")

// AlertFunc receives threshold-crossing alerts. Called outside the gate's
// lock; implementations may call back into the gate.
type AlertFunc func(level AlertLevel, snapshot Ledger)

// Gate is the admission gatekeeper. It is safe for concurrent use.
type Gate struct {
	// Immutable after construction.
	store         Store
	alert         AlertFunc
	logger        *slog.Logger
	now           func() time.Time
	denyAtLimit   bool
	overrideToken string

	mu        sync.Mutex
	ledger    Ledger
	lastAlert AlertLevel // highest level emitted for the current day
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithStore sets the ledger persistence hook. Spend totals are written
// through after every RecordActual; persistence failures are logged and
// never propagated.
func WithStore(s Store) GateOption {
	return func(g *Gate) { g.store = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// WithAlertFunc sets the alert sink for threshold crossings.
func WithAlertFunc(f AlertFunc) GateOption {
	return func(g *Gate) { g.alert = f }
}

// WithClock sets the time source. The clock decides the calendar-day
// boundary; timezone policy belongs to the caller, not the gate.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithThresholds sets the warning and critical alert thresholds as
// fractions of the daily limit.
func WithThresholds(warning, critical float64) GateOption {
	return func(g *Gate) {
		g.ledger.WarningThreshold = warning
		g.ledger.CriticalThreshold = critical
	}
}

// WithAutoStop enables the auto-stop gate: once spend reaches threshold,
// every admission is denied regardless of its estimate.
func WithAutoStop(threshold float64) GateOption {
	return func(g *Gate) {
		g.ledger.AutoStopEnabled = true
		g.ledger.AutoStopThreshold = threshold
	}
}

// WithDenyAtLimit makes the gate deny a request whose estimate lands
// spend exactly on the daily limit. The default allows exact equality.
func WithDenyAtLimit() GateOption {
	return func(g *Gate) { g.denyAtLimit = true }
}

// WithOverrideToken sets the token that authorizes admission overrides.
// Without a configured token, overrides are impossible.
func WithOverrideToken(token string) GateOption {
	return func(g *Gate) { g.overrideToken = token }
}

// NewGate creates a Gate with the given daily limit.
func NewGate(dailyLimit float64, opts ...GateOption) *Gate {
	g := &Gate{
		logger: slog.Default(),
		now:    time.Now,
		ledger: Ledger{
			DailyLimit:        dailyLimit,
			WarningThreshold:  DefaultWarningThreshold,
			CriticalThreshold: DefaultCriticalThreshold,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.ledger.Day = midnight(g.now())
	return g
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Restore hydrates the ledger from the persistence hook, typically once
// at startup. A stored total from an earlier day is discarded.
func (g *Gate) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}

	day, spend, err := g.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return nil
		}
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if midnight(day).Equal(g.ledger.Day) {
		g.ledger.DailySpend = spend
		g.lastAlert = g.ledger.alertLevel()
	}
	return nil
}

// AdmitOption configures a single admission check.
type AdmitOption func(*admitOpts)

type admitOpts struct {
	overrideToken string
}

// WithOverride supplies an explicit override token for this admission,
// bypassing the auto-stop denial when the token is valid.
func WithOverride(token string) AdmitOption {
	return func(o *admitOpts) { o.overrideToken = token }
}

// CheckAdmission decides whether a request with the given cost estimate
// may proceed. Returns nil to allow, or an *ExceededError describing the
// denial. It is evaluated synchronously on submission and again before a
// request leaves the queue for dispatch.
func (g *Gate) CheckAdmission(estimate float64, opts ...AdmitOption) error {
	var ao admitOpts
	for _, opt := range opts {
		opt(&ao)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()

	if g.overrideActiveLocked() {
		return nil
	}
	overridden := g.overrideToken != "" && ao.overrideToken == g.overrideToken

	if g.ledger.AutoStopEnabled && g.ledger.DailySpend >= g.ledger.AutoStopThreshold && !overridden {
		return &ExceededError{
			Spend:    g.ledger.DailySpend,
			Estimate: estimate,
			Limit:    g.ledger.DailyLimit,
			Reason:   "auto-stop threshold reached",
		}
	}

	projected := g.ledger.DailySpend + estimate
	over := projected > g.ledger.DailyLimit
	if g.denyAtLimit {
		over = projected >= g.ledger.DailyLimit
	}
	if over && !overridden {
		return &ExceededError{
			Spend:    g.ledger.DailySpend,
			Estimate: estimate,
			Limit:    g.ledger.DailyLimit,
			Reason:   "daily limit",
		}
	}
	return nil
}

// RecordActual adds the actual cost of a finished job to the daily spend.
// It never fails: persistence errors are logged, not propagated, so a
// flaky store cannot take down job completion. Negative costs are ignored
// to keep the daily total monotonic.
func (g *Gate) RecordActual(ctx context.Context, cost float64) {
	if cost < 0 {
		g.logger.Warn("ignoring negative cost", slog.Float64("cost", cost))
		return
	}

	g.mu.Lock()
	g.rolloverLocked()
	g.ledger.DailySpend += cost
	snapshot := g.ledger
	level := snapshot.alertLevel()
	crossed := alertRank(level) > alertRank(g.lastAlert)
	if crossed {
		g.lastAlert = level
	}
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Save(ctx, snapshot.Day, snapshot.DailySpend); err != nil {
			g.logger.Error("ledger persistence failed",
				slog.Float64("daily_spend", snapshot.DailySpend),
				slog.String("error", err.Error()),
			)
		}
	}

	if crossed {
		g.emitAlert(level, snapshot)
	}
}

func (g *Gate) emitAlert(level AlertLevel, snapshot Ledger) {
	g.logger.Warn("budget alert",
		slog.String("level", string(level)),
		slog.Float64("daily_spend", snapshot.DailySpend),
		slog.Float64("daily_limit", snapshot.DailyLimit),
		slog.String("summary", snapshot.Summary()),
	)
	if g.alert != nil {
		g.alert(level, snapshot)
	}
}

// Snapshot returns a copy of the current ledger.
func (g *Gate) Snapshot() Ledger {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
	snap := g.ledger
	snap.OverrideActive = g.overrideActiveLocked()
	return snap
}

// SetDailyLimit updates the spend ceiling, effective immediately.
func (g *Gate) SetDailyLimit(limit float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger.DailyLimit = limit
}

// Override opens an admission override window for the given duration.
// Every admission during the window is allowed. The token must match the
// configured override token.
func (g *Gate) Override(token string, d time.Duration) error {
	if g.overrideToken == "" || token != g.overrideToken {
		return ErrBadOverrideToken
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger.OverrideUntil = g.now().Add(d)
	return nil
}

// ClearOverride closes any open override window.
func (g *Gate) ClearOverride(token string) error {
	if g.overrideToken == "" || token != g.overrideToken {
		return ErrBadOverrideToken
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger.OverrideUntil = time.Time{}
	return nil
}

func (g *Gate) overrideActiveLocked() bool {
	return !g.ledger.OverrideUntil.IsZero() && g.now().Before(g.ledger.OverrideUntil)
}

// Reset forces a day rollover check. The daily reset scheduler calls this
// at midnight; it is also safe to call at any time.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
}

// rolloverLocked zeroes the spend when the calendar day has changed.
// Caller must hold g.mu.
func (g *Gate) rolloverLocked() {
	today := midnight(g.now())
	if today.Equal(g.ledger.Day) {
		return
	}
	g.logger.Info("budget day rollover",
		slog.Time("previous_day", g.ledger.Day),
		slog.Float64("previous_spend", g.ledger.DailySpend),
	)
	g.ledger.Day = today
	g.ledger.DailySpend = 0
	g.lastAlert = ""
}
