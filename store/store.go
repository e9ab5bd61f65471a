// Package store defines the aggregate persistence interface. The workflow
// subsystem defines the data contract; Store adds the lifecycle methods
// every backend provides. Backends: Postgres, Bun, Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/stepwise/workflow"
)

// Store is the aggregate persistence interface.
type Store interface {
	workflow.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
