package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Timeout returns middleware that bounds every engine operation, including
// its conflict retries, with a deadline of d. A zero or negative d disables it.
// Store calls observe the cancelled context and the operation fails with
// context.DeadlineExceeded wrapped in the store error.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, op Op, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d {
			return next(ctx)
		}
		logger.DebugContext(ctx, "operation timeout set", append(op.attrs(), slog.Duration("timeout", d))...)

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
