package genclient

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a client that has been closed.
var ErrClosed = errors.New("genclient: client is closed")

// ErrUnknownJob is returned when a handle or subscription refers to a
// job this client does not track.
var ErrUnknownJob = errors.New("genclient: unknown job")

// ValidationError reports a request rejected before queueing because its
// parameters are unusable. It always surfaces synchronously from
// SubmitJob.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("genclient: invalid %s: %s", e.Field, e.Reason)
}
