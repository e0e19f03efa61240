// Package middleware provides composable middleware around remote submit
// attempts. Middleware wraps each attempt synchronously and can modify
// execution (recover from panics, log, record metrics).
package middleware

import (
	"context"

	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Handler is the terminal function that performs one remote submit attempt.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the request being submitted, and the next handler to
// call. Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, req *job.Request, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, metrics) executes as:
//
//	logging → recover → metrics → attempt
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, req *job.Request, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, req, prev)
			}
		}
		return h(ctx)
	}
}
