package extension

import (
	"log/slog"

	"github.com/xraph/stepwise/backoff"
	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/ext"
	mw "github.com/xraph/stepwise/middleware"
	"github.com/xraph/stepwise/store"
)

// ExtOption configures the Extension.
type ExtOption func(*Extension)

// WithStore uses s instead of opening the configured driver. The caller
// keeps ownership; Stop does not close it.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLogger sets the logger handed to the store, engine and API.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithExtension registers a lifecycle hook on the engine.
func WithExtension(x ext.Extension) ExtOption {
	return func(e *Extension) {
		e.exts = append(e.exts, x)
	}
}

// WithMiddleware adds engine middleware.
func WithMiddleware(m mw.Middleware) ExtOption {
	return func(e *Extension) {
		e.mws = append(e.mws, m)
	}
}

// WithBackoff sets the conflict-retry backoff strategy.
func WithBackoff(b backoff.Strategy) ExtOption {
	return func(e *Extension) {
		e.bo = b
	}
}

// WithEngineOptions passes extra options to engine.New.
func WithEngineOptions(opts ...engine.Option) ExtOption {
	return func(e *Extension) {
		e.engOpts = append(e.engOpts, opts...)
	}
}
