// Package workflow holds the operations on the phase/task/subtask tree of a
// workflow instance: progress aggregation, the task status state machine,
// the visualization board projection and the orchestrator list filter.
//
// Functions here are pure or mutate only the instance passed in; persistence
// and locking belong to the caller.
package workflow
