package orchestrator

import "time"

// EventType identifies a lifecycle event emitted during task execution.
type EventType string

const (
	// EventTaskStarted indicates a task has entered the engine.
	EventTaskStarted EventType = "task_started"
	// EventWorkerStarted indicates a worker began processing a hop.
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerCompleted indicates a worker finished a hop.
	EventWorkerCompleted EventType = "worker_completed"
	// EventWorkerFailed indicates a worker returned an error or panicked.
	EventWorkerFailed EventType = "worker_failed"
	// EventBranchCompleted indicates one branch of a parallel fan-out finished.
	EventBranchCompleted EventType = "branch_completed"
	// EventTaskCompleted indicates the task produced a final answer.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates the task ended without a usable answer.
	EventTaskFailed EventType = "task_failed"
	// EventTaskTimedOut indicates the task exceeded its deadline.
	EventTaskTimedOut EventType = "task_timed_out"
)

// Event describes a single step in a task's execution, suitable for
// streaming to a UI or log sink.
type Event struct {
	Type      EventType
	TaskID    string
	Worker    string
	Hop       int
	Message   string
	Err       error
	Timestamp time.Time
}
