package budget_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
)

// fakeClock is a mutable time source for day-boundary tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore always fails on Save, to prove persistence errors never
// propagate out of RecordActual.
type failingStore struct{}

func (failingStore) Load(context.Context) (time.Time, float64, error) {
	return time.Time{}, 0, budget.ErrNoRecord
}

func (failingStore) Save(context.Context, time.Time, float64) error {
	return errors.New("disk on fire")
}

func TestGate_AllowsWithinLimit(t *testing.T) {
	g := budget.NewGate(50)

	if err := g.CheckAdmission(10); err != nil {
		t.Fatalf("CheckAdmission(10) = %v, want nil", err)
	}
}

func TestGate_DeniesOverLimit(t *testing.T) {
	g := budget.NewGate(50)
	g.RecordActual(context.Background(), 48)

	err := g.CheckAdmission(4)
	var exceeded *budget.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("CheckAdmission(4) = %v, want ExceededError", err)
	}
	if exceeded.Spend != 48 || exceeded.Limit != 50 {
		t.Errorf("error detail = spend %.2f limit %.2f, want 48.00 / 50.00", exceeded.Spend, exceeded.Limit)
	}
}

func TestGate_ExactEqualityAllowsByDefault(t *testing.T) {
	g := budget.NewGate(50)
	g.RecordActual(context.Background(), 40)

	// 40 + 10 == 50: documented default is allow.
	if err := g.CheckAdmission(10); err != nil {
		t.Errorf("CheckAdmission at exact limit = %v, want nil", err)
	}
}

func TestGate_DenyAtLimitFlag(t *testing.T) {
	g := budget.NewGate(50, budget.WithDenyAtLimit())
	g.RecordActual(context.Background(), 40)

	if err := g.CheckAdmission(10); err == nil {
		t.Error("CheckAdmission at exact limit with WithDenyAtLimit succeeded, want denial")
	}
	if err := g.CheckAdmission(9.99); err != nil {
		t.Errorf("CheckAdmission below limit = %v, want nil", err)
	}
}

func TestGate_AutoStopDeniesEverything(t *testing.T) {
	g := budget.NewGate(100, budget.WithAutoStop(30), budget.WithOverrideToken("let-me-in"))
	g.RecordActual(context.Background(), 30)

	// Even a zero-cost estimate is denied once auto-stop trips.
	err := g.CheckAdmission(0)
	var exceeded *budget.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("CheckAdmission(0) = %v, want ExceededError", err)
	}
	if exceeded.Reason != "auto-stop threshold reached" {
		t.Errorf("Reason = %q, want auto-stop", exceeded.Reason)
	}

	// A valid override token bypasses auto-stop.
	if err := g.CheckAdmission(1, budget.WithOverride("let-me-in")); err != nil {
		t.Errorf("CheckAdmission with valid override = %v, want nil", err)
	}
	// A wrong token does not.
	if err := g.CheckAdmission(1, budget.WithOverride("guess")); err == nil {
		t.Error("CheckAdmission with bad override succeeded, want denial")
	}
}

func TestGate_OverrideWindow(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	g := budget.NewGate(10,
		budget.WithOverrideToken("let-me-in"),
		budget.WithClock(clock.Now),
	)
	g.RecordActual(context.Background(), 10)

	if err := g.CheckAdmission(1); err == nil {
		t.Fatal("expected denial before override")
	}
	if err := g.Override("wrong", time.Hour); !errors.Is(err, budget.ErrBadOverrideToken) {
		t.Fatalf("Override with wrong token = %v, want ErrBadOverrideToken", err)
	}
	if err := g.Override("let-me-in", time.Hour); err != nil {
		t.Fatalf("Override error: %v", err)
	}

	if err := g.CheckAdmission(1); err != nil {
		t.Errorf("CheckAdmission during override window = %v, want nil", err)
	}
	if !g.Snapshot().OverrideActive {
		t.Error("Snapshot().OverrideActive = false during window")
	}

	// The window expires.
	clock.Advance(2 * time.Hour)
	if err := g.CheckAdmission(1); err == nil {
		t.Error("CheckAdmission after override expiry succeeded, want denial")
	}
}

func TestGate_ConcurrentRecordActual_NoLostUpdates(t *testing.T) {
	g := budget.NewGate(1000)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RecordActual(context.Background(), 1.00)
		}()
	}
	wg.Wait()

	if got := g.Snapshot().DailySpend; got != 2.00 {
		t.Errorf("DailySpend after two concurrent RecordActual(1.00) = %.2f, want 2.00", got)
	}
}

func TestGate_ConcurrentRecordActual_Many(t *testing.T) {
	g := budget.NewGate(100000)
	const n = 500

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RecordActual(context.Background(), 1)
		}()
	}
	wg.Wait()

	if got := g.Snapshot().DailySpend; got != n {
		t.Errorf("DailySpend = %.2f, want %d", got, n)
	}
}

func TestGate_AlertsFireOncePerLevel(t *testing.T) {
	var mu sync.Mutex
	var fired []budget.AlertLevel

	g := budget.NewGate(100, budget.WithAlertFunc(func(level budget.AlertLevel, _ budget.Ledger) {
		mu.Lock()
		fired = append(fired, level)
		mu.Unlock()
	}))

	ctx := context.Background()
	g.RecordActual(ctx, 50) // 50%: below warning, nothing
	g.RecordActual(ctx, 26) // 76%: warning
	g.RecordActual(ctx, 5)  // 81%: still warning band, no repeat
	g.RecordActual(ctx, 10) // 91%: critical
	g.RecordActual(ctx, 10) // 101%: exceeded

	mu.Lock()
	defer mu.Unlock()
	want := []budget.AlertLevel{budget.AlertWarning, budget.AlertCritical, budget.AlertExceeded}
	if len(fired) != len(want) {
		t.Fatalf("alerts fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("alert #%d = %s, want %s", i, fired[i], want[i])
		}
	}
}

func TestGate_AlertSkipsStraightToExceeded(t *testing.T) {
	var mu sync.Mutex
	var fired []budget.AlertLevel

	g := budget.NewGate(100, budget.WithAlertFunc(func(level budget.AlertLevel, _ budget.Ledger) {
		mu.Lock()
		fired = append(fired, level)
		mu.Unlock()
	}))

	// One giant completion blows through every threshold at once; only the
	// highest level fires.
	g.RecordActual(context.Background(), 150)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != budget.AlertExceeded {
		t.Errorf("alerts fired = %v, want [exceeded]", fired)
	}
}

func TestGate_DayRolloverResetsSpendAndAlerts(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC))

	var mu sync.Mutex
	var fired []budget.AlertLevel
	g := budget.NewGate(100,
		budget.WithClock(clock.Now),
		budget.WithAlertFunc(func(level budget.AlertLevel, _ budget.Ledger) {
			mu.Lock()
			fired = append(fired, level)
			mu.Unlock()
		}),
	)

	g.RecordActual(context.Background(), 95)
	if got := g.Snapshot().DailySpend; got != 95 {
		t.Fatalf("DailySpend = %.2f, want 95", got)
	}

	clock.Advance(2 * time.Hour) // past midnight

	snap := g.Snapshot()
	if snap.DailySpend != 0 {
		t.Errorf("DailySpend after rollover = %.2f, want 0", snap.DailySpend)
	}
	if err := g.CheckAdmission(50); err != nil {
		t.Errorf("CheckAdmission after rollover = %v, want nil", err)
	}

	// Threshold alerts re-arm for the new day.
	g.RecordActual(context.Background(), 80)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 2 || fired[1] != budget.AlertWarning {
		t.Errorf("alerts fired = %v, want [critical warning]", fired)
	}
}

func TestGate_RecordActual_PersistenceFailureIsSwallowed(t *testing.T) {
	g := budget.NewGate(100, budget.WithStore(failingStore{}))

	// Must not panic and must still update the ledger.
	g.RecordActual(context.Background(), 5)
	if got := g.Snapshot().DailySpend; got != 5 {
		t.Errorf("DailySpend = %.2f, want 5", got)
	}
}

func TestGate_RecordActual_IgnoresNegativeCost(t *testing.T) {
	g := budget.NewGate(100)
	g.RecordActual(context.Background(), 10)
	g.RecordActual(context.Background(), -4)

	if got := g.Snapshot().DailySpend; got != 10 {
		t.Errorf("DailySpend = %.2f, want 10 (negative ignored)", got)
	}
}

func TestGate_RestoreFromStore(t *testing.T) {
	ctx := context.Background()
	store := budget.NewMemoryStore()

	first := budget.NewGate(100, budget.WithStore(store))
	first.RecordActual(ctx, 33)

	second := budget.NewGate(100, budget.WithStore(store))
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if got := second.Snapshot().DailySpend; got != 33 {
		t.Errorf("restored DailySpend = %.2f, want 33", got)
	}
}

func TestGate_RestoreDiscardsStaleDay(t *testing.T) {
	ctx := context.Background()
	store := budget.NewMemoryStore()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	if err := store.Save(ctx, yesterday, 77); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	g := budget.NewGate(100, budget.WithStore(store))
	if err := g.Restore(ctx); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if got := g.Snapshot().DailySpend; got != 0 {
		t.Errorf("DailySpend restored from stale day = %.2f, want 0", got)
	}
}

func TestGate_RestoreEmptyStore(t *testing.T) {
	g := budget.NewGate(100, budget.WithStore(budget.NewMemoryStore()))
	if err := g.Restore(context.Background()); err != nil {
		t.Errorf("Restore on empty store = %v, want nil", err)
	}
}

func TestLedger_Summary(t *testing.T) {
	tests := []struct {
		spend float64
		want  string
	}{
		{0, "ok"},
		{40, "ok"},
		{50, "moderate"},
		{76, "warning"},
		{91, "critical"},
		{100, "exceeded"},
		{130, "exceeded"},
	}
	for _, tt := range tests {
		l := budget.Ledger{
			DailySpend:        tt.spend,
			DailyLimit:        100,
			WarningThreshold:  budget.DefaultWarningThreshold,
			CriticalThreshold: budget.DefaultCriticalThreshold,
		}
		if got := l.Summary(); got != tt.want {
			t.Errorf("Summary at spend %.0f = %q, want %q", tt.spend, got, tt.want)
		}
	}
}

func TestLedger_Remaining(t *testing.T) {
	l := budget.Ledger{DailySpend: 120, DailyLimit: 100}
	if got := l.Remaining(); got != 0 {
		t.Errorf("Remaining over limit = %.2f, want 0", got)
	}
	l.DailySpend = 30
	if got := l.Remaining(); got != 70 {
		t.Errorf("Remaining = %.2f, want 70", got)
	}
}
