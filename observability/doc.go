// Package observability provides an OpenTelemetry metrics extension for
// stepwise. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for workflow creation, start, pause, resume,
// completion and failure, and for step completion, rejection and skips.
//
// For per-operation tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
