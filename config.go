package stepwise

import "time"

// Config holds tunables for the workflow engine.
type Config struct {
	// ConflictRetries is how many times an operation that lost an
	// optimistic-concurrency race is re-run before giving up.
	ConflictRetries int

	// ConflictBackoffInitial is the first delay between conflict retries.
	ConflictBackoffInitial time.Duration

	// ConflictBackoffMax caps the delay between conflict retries.
	ConflictBackoffMax time.Duration

	// AuditDryRuns makes standalone step validation append validation
	// records. Off by default so live-feedback UIs do not flood the trail.
	AuditDryRuns bool

	// DefaultListLimit applies to list queries that do not set a limit.
	DefaultListLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConflictRetries:        3,
		ConflictBackoffInitial: 5 * time.Millisecond,
		ConflictBackoffMax:     100 * time.Millisecond,
		AuditDryRuns:           false,
		DefaultListLimit:       100,
	}
}
