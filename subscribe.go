package genclient

import (
	"context"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/id"
	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Callbacks receive job lifecycle notifications for one subscription.
// Nil callbacks are skipped. Callbacks run on dispatcher goroutines and
// must not block.
type Callbacks struct {
	// OnProgress fires after every successful status poll.
	OnProgress func(h *job.Handle, percent int)
	// OnComplete fires once when the job completes.
	OnComplete func(h *job.Handle)
	// OnError fires once when the job fails, times out, or is
	// cancelled. Cancellation is reported as job.ErrCancelled.
	OnError func(h *job.Handle, err error)
}

// Subscribe attaches callbacks to a job. Subscribing to a job that is
// already terminal delivers the terminal callback synchronously before
// returning. Multiple subscriptions per job are allowed.
func (c *Client) Subscribe(h *job.Handle, cb Callbacks) (id.SubscriptionID, error) {
	if h == nil {
		return id.SubscriptionID{}, ErrUnknownJob
	}
	key := h.RequestID().String()

	c.mu.Lock()
	tracked, ok := c.handles[key]
	if !ok || tracked != h {
		c.mu.Unlock()
		return id.SubscriptionID{}, ErrUnknownJob
	}

	subID := id.NewSubscriptionID()
	if h.Terminal() {
		c.mu.Unlock()
		deliverTerminal(h, cb)
		return subID, nil
	}

	if c.subs[key] == nil {
		c.subs[key] = make(map[string]Callbacks)
	}
	c.subs[key][subID.String()] = cb
	c.mu.Unlock()
	return subID, nil
}

// Unsubscribe removes a subscription. Unknown subscriptions are a no-op.
func (c *Client) Unsubscribe(h *job.Handle, subID id.SubscriptionID) {
	if h == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if subs, ok := c.subs[h.RequestID().String()]; ok {
		delete(subs, subID.String())
	}
}

func deliverTerminal(h *job.Handle, cb Callbacks) {
	switch h.State() {
	case job.StateCompleted:
		if cb.OnComplete != nil {
			cb.OnComplete(h)
		}
	case job.StateFailed, job.StateTimedOut, job.StateCancelled:
		if cb.OnError != nil {
			cb.OnError(h, h.Err())
		}
	}
}

// fanout is the client's own extension: it forwards lifecycle events to
// the matching subscriptions and prunes them once the job is terminal.
type fanout struct {
	c *Client
}

func (f *fanout) Name() string { return "genclient.subscriptions" }

// snapshot copies the callbacks for a job so they run outside the
// client lock.
func (f *fanout) snapshot(h *job.Handle, prune bool) []Callbacks {
	key := h.RequestID().String()
	f.c.mu.Lock()
	defer f.c.mu.Unlock()

	subs := f.c.subs[key]
	out := make([]Callbacks, 0, len(subs))
	for _, cb := range subs {
		out = append(out, cb)
	}
	if prune {
		delete(f.c.subs, key)
	}
	return out
}

func (f *fanout) OnJobProgress(_ context.Context, h *job.Handle, percent int) error {
	for _, cb := range f.snapshot(h, false) {
		if cb.OnProgress != nil {
			cb.OnProgress(h, percent)
		}
	}
	return nil
}

func (f *fanout) OnJobCompleted(_ context.Context, h *job.Handle, _ time.Duration) error {
	for _, cb := range f.snapshot(h, true) {
		if cb.OnComplete != nil {
			cb.OnComplete(h)
		}
	}
	return nil
}

func (f *fanout) OnJobFailed(_ context.Context, h *job.Handle, err error) error {
	for _, cb := range f.snapshot(h, true) {
		if cb.OnError != nil {
			cb.OnError(h, err)
		}
	}
	return nil
}

func (f *fanout) OnJobCancelled(_ context.Context, h *job.Handle) error {
	for _, cb := range f.snapshot(h, true) {
		if cb.OnError != nil {
			cb.OnError(h, job.ErrCancelled)
		}
	}
	return nil
}
