package hook_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/hook"
)

func newTestMetrics() *hook.MetricsExtension {
	return hook.NewMetricsExtensionWithFactory(gu.NewMetricsCollector("test"))
}

func TestMetricsExtension_Name(t *testing.T) {
	e := newTestMetrics()
	if e.Name() != "genclient-metrics" {
		t.Errorf("name = %q, want genclient-metrics", e.Name())
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e := newTestMetrics()
	reg := hook.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	h := newHandle()

	reg.EmitJobQueued(ctx, h)
	reg.EmitJobDispatched(ctx, h)
	reg.EmitJobCompleted(ctx, h, 50*time.Millisecond)
	reg.EmitJobFailed(ctx, h, errors.New("fail"))
	reg.EmitJobCancelled(ctx, h)
	reg.EmitBudgetAlert(ctx, budget.AlertCritical, budget.Ledger{})

	checks := []struct {
		name  string
		value float64
	}{
		{"JobQueued", e.JobQueued.Value()},
		{"JobDispatched", e.JobDispatched.Value()},
		{"JobCompleted", e.JobCompleted.Value()},
		{"JobFailed", e.JobFailed.Value()},
		{"JobCancelled", e.JobCancelled.Value()},
		{"BudgetAlerts", e.BudgetAlerts.Value()},
	}
	for _, c := range checks {
		if c.value != 1 {
			t.Errorf("%s: want 1, got %v", c.name, c.value)
		}
	}
}
