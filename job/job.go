// Package job defines the generation job data model: the request submitted
// by callers, the handle tracking a job through its lifecycle, and the
// one-directional state machine every job moves through.
package job

import (
	"fmt"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/id"
)

// Priority orders pending requests in the admission queue. Higher
// priorities are dispatched first; requests of equal priority are FIFO.
type Priority int

// Priority levels, lowest to highest.
const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority parses a priority name. Unknown names default to normal.
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// State represents the lifecycle state of a job. States are one-directional:
// a job never revisits a state it has left, and terminal states are sinks.
type State string

const (
	// StateQueued means the request is waiting in the admission queue.
	StateQueued State = "queued"
	// StateAdmitted means the dispatcher has claimed a concurrency slot
	// for the request but the remote submit has not started yet.
	StateAdmitted State = "admitted"
	// StateSubmitting means the remote submit call (with retries) is in
	// flight.
	StateSubmitting State = "submitting"
	// StatePolling means the remote accepted the job and the poller is
	// watching it until a terminal status.
	StatePolling State = "polling"
	// StateCompleted means the remote reported successful completion.
	StateCompleted State = "completed"
	// StateFailed means the job failed terminally (submit exhaustion,
	// denied admission at dispatch time, or remote failure).
	StateFailed State = "failed"
	// StateCancelled means the caller cancelled the job.
	StateCancelled State = "cancelled"
	// StateTimedOut means the submit attempts exhausted their retries on
	// per-attempt timeouts.
	StateTimedOut State = "timed_out"
)

// Terminal reports whether the state is a sink with no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	default:
		return false
	}
}

// transitions is the legal forward edge set of the lifecycle.
var transitions = map[State][]State{
	StateQueued:     {StateAdmitted, StateCancelled, StateFailed},
	StateAdmitted:   {StateSubmitting, StateCancelled, StateFailed},
	StateSubmitting: {StatePolling, StateCompleted, StateFailed, StateCancelled, StateTimedOut},
	StatePolling:    {StateCompleted, StateFailed, StateCancelled},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an attempt to move a job along an edge
// that is not part of the lifecycle.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job: invalid transition %s -> %s", e.From, e.To)
}

// Params are the generation parameters forwarded verbatim to the remote
// provider. The client validates only that a prompt is present; everything
// else is the provider's concern.
type Params struct {
	Prompt          string            `json:"prompt"`
	Style           string            `json:"style,omitempty"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	Resolution      string            `json:"resolution,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Request is a generation job as submitted by a caller. The admission
// queue owns the request until it is dispatched.
type Request struct {
	ID           id.RequestID  `json:"id"`
	Params       Params        `json:"params"`
	Priority     Priority      `json:"priority"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	CostEstimate float64       `json:"cost_estimate"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	MaxRetries   int           `json:"max_retries"`

	// OverrideToken, when set, authorizes this request past the budget
	// auto-stop at both admission checks. Never serialized.
	OverrideToken string `json:"-"`
}
