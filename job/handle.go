package job

import (
	"errors"
	"sync"

	"github.com/almlog/ai-dynamic-painting-sub000/id"
)

// ErrCancelled is the terminal error recorded on a handle when the caller
// cancels the job. It is never retried.
var ErrCancelled = errors.New("job: cancelled by caller")

// Handle tracks a single submitted job through its lifecycle. It is safe
// for concurrent use: the dispatcher, the poller, and the caller may all
// observe or advance it.
//
// At most one dispatch attempt exists per handle at any time, and a handle
// never revisits a state it has left. Transition enforces both.
type Handle struct {
	mu           sync.Mutex
	request      *Request
	remoteTaskID string
	state        State
	err          error
	progress     int
	resultURL    string
	actualCost   float64
}

// NewHandle creates a handle for a freshly queued request.
func NewHandle(req *Request) *Handle {
	return &Handle{request: req, state: StateQueued}
}

// RequestID returns the local request identifier.
func (h *Handle) RequestID() id.RequestID { return h.request.ID }

// Request returns the underlying request.
func (h *Handle) Request() *Request { return h.request }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// RemoteTaskID returns the provider-assigned task ID, or the empty string
// until the remote submit has succeeded.
func (h *Handle) RemoteTaskID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remoteTaskID
}

// SetRemoteTaskID records the provider-assigned task ID.
func (h *Handle) SetRemoteTaskID(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remoteTaskID = taskID
}

// Err returns the terminal error, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Progress returns the last reported progress percentage.
func (h *Handle) Progress() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// SetProgress records the latest reported progress percentage.
func (h *Handle) SetProgress(pct int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = pct
}

// ResultURL returns the result location reported at completion.
func (h *Handle) ResultURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resultURL
}

// SetResultURL records the result location.
func (h *Handle) SetResultURL(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resultURL = url
}

// ActualCost returns the provider-reported cost, or zero if none was
// reported.
func (h *Handle) ActualCost() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actualCost
}

// SetActualCost records the provider-reported cost.
func (h *Handle) SetActualCost(cost float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actualCost = cost
}

// Transition advances the handle to next. It fails with an
// InvalidTransitionError if the edge is not part of the lifecycle, which
// makes double terminal transitions (and therefore double callbacks or
// double slot releases) impossible.
func (h *Handle) Transition(next State) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.CanTransition(next) {
		return &InvalidTransitionError{From: h.state, To: next}
	}
	h.state = next
	return nil
}

// Fail moves the handle to a terminal failure state and records the cause.
// Returns false if the handle was already terminal (the first terminal
// transition wins).
func (h *Handle) Fail(terminal State, cause error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.CanTransition(terminal) {
		return false
	}
	h.state = terminal
	h.err = cause
	return true
}

// Complete moves the handle to StateCompleted. Returns false if the handle
// was already terminal.
func (h *Handle) Complete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.CanTransition(StateCompleted) {
		return false
	}
	h.state = StateCompleted
	return true
}

// Terminal reports whether the handle has reached a terminal state.
func (h *Handle) Terminal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Terminal()
}
