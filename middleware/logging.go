package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/job"
)

// Logging returns middleware that logs the start and outcome of each
// submit attempt.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *job.Request, next Handler) error {
		logger.Debug("submit attempt started",
			slog.String("request_id", req.ID.String()),
			slog.String("priority", req.Priority.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("submit attempt failed",
				slog.String("request_id", req.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("submit attempt succeeded",
				slog.String("request_id", req.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
