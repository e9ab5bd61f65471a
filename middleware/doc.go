// Package middleware provides composable middleware around engine
// operations.
//
// A [Middleware] wraps one engine operation (CompleteStep, PauseWorkflow,
// ...). The engine composes its middleware with [Chain] and runs the chain
// once per call, outside the per-workflow lock and the conflict retry loop.
// Middleware are applied right-to-left: the first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs operation name, workflow/step IDs, duration, and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Tracing]: wraps the operation in an OpenTelemetry span
//   - [Metrics]: records per-operation duration and outcome counters
//   - [Timeout]: bounds each operation with a deadline
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, op middleware.Op, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., rate limiting).
package middleware
