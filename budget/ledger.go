// Package budget implements the admission gate that measures generation
// spend against a daily limit.
//
// The Gate owns a single shared ledger. Every dispatch path consults it
// before a request leaves the queue, and every completed job (success or
// failure with partial cost) reports its actual cost back through
// RecordActual. All mutations are serialized behind one mutex so that
// concurrently completing jobs never lose an update.
package budget

import (
	"fmt"
	"time"
)

// Default alert thresholds as fractions of the daily limit.
const (
	DefaultWarningThreshold  = 0.75
	DefaultCriticalThreshold = 0.90
)

// AlertLevel is the severity of a threshold-crossing alert.
type AlertLevel string

// Graduated alert levels. Each is emitted at most once per calendar day,
// when its threshold is first crossed.
const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
	AlertExceeded AlertLevel = "exceeded"
)

// Ledger is a point-in-time snapshot of the budget state. The live ledger
// inside the Gate is mutable and mutex-guarded; snapshots handed to
// callers are plain values.
type Ledger struct {
	// Day is the UTC calendar day (midnight-truncated) the spend belongs
	// to. DailySpend resets when the day rolls over.
	Day time.Time `json:"day"`

	// DailySpend is the running total for Day. Monotonic non-decreasing
	// within the day.
	DailySpend float64 `json:"daily_spend"`

	// DailyLimit is the spend ceiling for one day.
	DailyLimit float64 `json:"daily_limit"`

	// WarningThreshold and CriticalThreshold are fractions of DailyLimit
	// at which graduated alerts fire (defaults 0.75 and 0.90; the
	// exceeded alert always fires at 1.0).
	WarningThreshold  float64 `json:"warning_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`

	// AutoStopEnabled denies all admissions once DailySpend reaches
	// AutoStopThreshold, regardless of individual estimates, unless an
	// override token is supplied.
	AutoStopEnabled   bool    `json:"auto_stop_enabled"`
	AutoStopThreshold float64 `json:"auto_stop_threshold"`

	// OverrideActive reports whether an administrative override window
	// is currently open.
	OverrideActive bool      `json:"override_active"`
	OverrideUntil  time.Time `json:"override_until,omitzero"`
}

// UsageRate returns DailySpend / DailyLimit. Returns 0 for a zero limit.
func (l Ledger) UsageRate() float64 {
	if l.DailyLimit <= 0 {
		return 0
	}
	return l.DailySpend / l.DailyLimit
}

// Remaining returns the unspent budget for the day, floored at zero.
func (l Ledger) Remaining() float64 {
	if r := l.DailyLimit - l.DailySpend; r > 0 {
		return r
	}
	return 0
}

// Exceeded reports whether the daily limit has been spent.
func (l Ledger) Exceeded() bool {
	return l.DailySpend >= l.DailyLimit
}

// Summary returns a human-readable status word for dashboards:
// ok, moderate, warning, critical, or exceeded.
func (l Ledger) Summary() string {
	rate := l.UsageRate()
	switch {
	case l.Exceeded():
		return "exceeded"
	case rate >= l.CriticalThreshold:
		return "critical"
	case rate >= l.WarningThreshold:
		return "warning"
	case rate >= 0.5:
		return "moderate"
	default:
		return "ok"
	}
}

// alertLevel returns the alert level the current usage calls for, or ""
// when usage is below every threshold.
func (l Ledger) alertLevel() AlertLevel {
	rate := l.UsageRate()
	switch {
	case rate >= 1.0:
		return AlertExceeded
	case rate >= l.CriticalThreshold:
		return AlertCritical
	case rate >= l.WarningThreshold:
		return AlertWarning
	default:
		return ""
	}
}

// alertRank orders levels so the Gate can emit each level once as usage
// climbs through the thresholds.
func alertRank(level AlertLevel) int {
	switch level {
	case AlertWarning:
		return 1
	case AlertCritical:
		return 2
	case AlertExceeded:
		return 3
	default:
		return 0
	}
}

// ExceededError is returned by CheckAdmission when a request is denied.
type ExceededError struct {
	Spend    float64
	Estimate float64
	Limit    float64
	Reason   string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget: admission denied: spend %.2f + estimate %.2f against limit %.2f (%s)",
		e.Spend, e.Estimate, e.Limit, e.Reason)
}
