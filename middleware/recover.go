package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Recover returns middleware that recovers from panics in the attempt
// chain. Panics are converted to errors and logged with a stack trace,
// so one panicking remote adapter cannot kill the dispatcher goroutine.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *job.Request, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("submit attempt panicked",
					slog.String("request_id", req.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in submit for request %s: %v", req.ID.String(), r)
			}
		}()
		return next(ctx)
	}
}
