package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/stepwise"
)

// Logging returns middleware that logs operation start and completion.
// Rejections caused by the caller (validation failure, invalid
// transition, unknown workflow) are logged at warn level; everything else
// that fails is logged as an error.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, op Op, next Handler) error {
		logger.DebugContext(ctx, "operation started", op.attrs()...)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		attrs := append(op.attrs(), slog.Duration("elapsed", elapsed))
		switch {
		case err == nil:
			logger.InfoContext(ctx, "operation completed", attrs...)
		case isRejection(err):
			logger.WarnContext(ctx, "operation rejected", append(attrs, slog.String("error", err.Error()))...)
		default:
			logger.ErrorContext(ctx, "operation failed", append(attrs, slog.String("error", err.Error()))...)
		}

		return err
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		stepwise.ErrStepValidation,
		stepwise.ErrInvalidTransition,
		stepwise.ErrTerminalState,
		stepwise.ErrOutOfOrderStep,
		stepwise.ErrStepNotOptional,
		stepwise.ErrWorkflowNotFound,
		stepwise.ErrStepNotFound,
		stepwise.ErrSkillNotFound,
		stepwise.ErrDefinitionInvalid,
		stepwise.ErrUnknownStep,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
