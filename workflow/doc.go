// Package workflow defines the persisted model of a guided process: the
// workflow instance, its step instances, the append-only validation log,
// the lifecycle state machine, and the [Store] persistence port.
//
// # Lifecycle
//
//	not_started ──start──▶ in_progress ──pause──▶ paused
//	                         ▲   │                  │
//	                         └───┼──────resume──────┘
//	                             │
//	              last step done ▼          any non-terminal
//	                         completed      ──fail──▶ failed
//
// completed and failed are terminal. A step instance moves from pending to
// in_progress (while a draft is being edited) and from there to completed,
// skipped, or failed.
//
// # Concurrency
//
// Every instance carries a Version. Writers pass the version they read and
// the store rejects the write with stepwise.ErrVersionConflict when another
// writer got there first.
package workflow
