package redis

// Redis key naming conventions for stepwise data.
// All keys are prefixed with "stepwise:" to avoid collisions.

const keyPrefix = "stepwise:"

// ── Workflow keys ──

// workflowKey returns the Hash key for an instance: stepwise:workflow:{id}
func workflowKey(id string) string { return keyPrefix + "workflow:" + id }

// workflowIndexKey is the Sorted Set of instance IDs scored by creation
// time in milliseconds.
const workflowIndexKey = keyPrefix + "workflows"

// ── Step keys ──

// stepKey returns the Hash key for a step: stepwise:step:{id}
func stepKey(id string) string { return keyPrefix + "step:" + id }

// stepIndexKey returns the Sorted Set of a workflow's step IDs scored by
// step number.
func stepIndexKey(workflowID string) string { return keyPrefix + "steps:" + workflowID }

// ── Validation record keys ──

// recordsKey returns the List holding a workflow's validation records in
// append order.
func recordsKey(workflowID string) string { return keyPrefix + "records:" + workflowID }
