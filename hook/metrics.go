package hook

import (
	"context"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Compile-time interface checks.
var (
	_ Extension     = (*MetricsExtension)(nil)
	_ JobQueued     = (*MetricsExtension)(nil)
	_ JobDispatched = (*MetricsExtension)(nil)
	_ JobCompleted  = (*MetricsExtension)(nil)
	_ JobFailed     = (*MetricsExtension)(nil)
	_ JobCancelled  = (*MetricsExtension)(nil)
	_ BudgetAlert   = (*MetricsExtension)(nil)
)

// MetricsExtension records client-wide lifecycle metrics via go-utils
// MetricFactory. Register it as an extension to track queue rates,
// dispatch counts, completions, failures, cancellations, and budget
// alerts.
type MetricsExtension struct {
	JobQueued     gu.Counter
	JobDispatched gu.Counter
	JobCompleted  gu.Counter
	JobFailed     gu.Counter
	JobCancelled  gu.Counter
	BudgetAlerts  gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics
// collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("genclient/hook"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the
// provided MetricFactory.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		JobQueued:     factory.Counter("genclient.job.queued"),
		JobDispatched: factory.Counter("genclient.job.dispatched"),
		JobCompleted:  factory.Counter("genclient.job.completed"),
		JobFailed:     factory.Counter("genclient.job.failed"),
		JobCancelled:  factory.Counter("genclient.job.cancelled"),
		BudgetAlerts:  factory.Counter("genclient.budget.alerts"),
	}
}

// Name implements Extension.
func (m *MetricsExtension) Name() string { return "genclient-metrics" }

// OnJobQueued implements JobQueued.
func (m *MetricsExtension) OnJobQueued(_ context.Context, _ *job.Handle) error {
	m.JobQueued.Inc()
	return nil
}

// OnJobDispatched implements JobDispatched.
func (m *MetricsExtension) OnJobDispatched(_ context.Context, _ *job.Handle) error {
	m.JobDispatched.Inc()
	return nil
}

// OnJobCompleted implements JobCompleted.
func (m *MetricsExtension) OnJobCompleted(_ context.Context, _ *job.Handle, _ time.Duration) error {
	m.JobCompleted.Inc()
	return nil
}

// OnJobFailed implements JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, _ *job.Handle, _ error) error {
	m.JobFailed.Inc()
	return nil
}

// OnJobCancelled implements JobCancelled.
func (m *MetricsExtension) OnJobCancelled(_ context.Context, _ *job.Handle) error {
	m.JobCancelled.Inc()
	return nil
}

// OnBudgetAlert implements BudgetAlert.
func (m *MetricsExtension) OnBudgetAlert(_ context.Context, _ budget.AlertLevel, _ budget.Ledger) error {
	m.BudgetAlerts.Inc()
	return nil
}
