// Package remote defines the contract with the remote generation service.
//
// The service is an external collaborator: this package specifies only the
// two operations the client consumes (Submit and GetStatus) and the error
// classification the retry policy depends on. Transport, serialization,
// and authentication are the implementation's concern, not this package's.
package remote

import (
	"context"
	"errors"

	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Status is the remote-reported state of a generation task.
type Status string

const (
	// StatusPending means the task is queued on the provider side.
	StatusPending Status = "pending"
	// StatusProcessing means the provider is generating.
	StatusProcessing Status = "processing"
	// StatusCompleted means generation finished and a result is available.
	StatusCompleted Status = "completed"
	// StatusFailed means the provider gave up on the task.
	StatusFailed Status = "failed"
)

// Terminal reports whether the remote status ends polling.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PollResult is one status snapshot returned by GetStatus.
type PollResult struct {
	Status          Status  `json:"status"`
	ProgressPercent int     `json:"progress_percent"`
	ResultURL       string  `json:"result_url,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ActualCost      float64 `json:"actual_cost,omitempty"`
}

// Service is the remote generation provider.
//
// Submit starts a generation task and returns the provider-assigned task
// ID, or an error if the provider rejects the request. GetStatus returns
// the current snapshot for a previously submitted task. Both must honour
// context cancellation.
type Service interface {
	Submit(ctx context.Context, params job.Params) (taskID string, err error)
	GetStatus(ctx context.Context, taskID string) (PollResult, error)
}

// TransientError wraps a failure worth retrying: network trouble or
// provider unavailability (the 503 class). The retry controller backs off
// and tries again; everything else is treated as permanent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "remote: transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks e as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// PermanentError wraps a non-retryable provider rejection, such as a
// validation failure or quota denial that will not clear on its own.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "remote: permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks e as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err should be retried with backoff.
// Unclassified errors are treated as permanent: retrying an unknown
// rejection against a paid API risks spending on a lost cause.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err was explicitly classified non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
