package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/backoff"
	"github.com/xraph/stepwise/ext"
	mw "github.com/xraph/stepwise/middleware"
	"github.com/xraph/stepwise/validator"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithValidator sets the step validator. Defaults to validator.New() with
// no custom checks or advisors.
func WithValidator(v *validator.Validator) Option {
	return func(eng *Engine) { eng.validator = v }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pending = append(eng.pending, e) }
}

// WithMiddleware adds middleware to the engine's chain. User middleware
// runs inside the default recover, tracing, metrics and logging stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the delay strategy between version-conflict retries.
// If not set, an exponential strategy with jitter built from the config's
// ConflictBackoffInitial and ConflictBackoffMax is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithConfig replaces the engine configuration.
func WithConfig(cfg stepwise.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithClock sets the time source used for every timestamp the engine
// writes. Tests use it to get deterministic times.
func WithClock(now func() time.Time) Option {
	return func(eng *Engine) { eng.now = now }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// WithoutDefaultMiddleware drops the built-in recover, tracing, metrics
// and logging middleware, leaving only what WithMiddleware adds. The
// observability extension is not registered either.
func WithoutDefaultMiddleware() Option {
	return func(eng *Engine) { eng.noDefaults = true }
}
