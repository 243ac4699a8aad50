// Package models defines the shared value types passed between the
// orchestrator, the message bus, and workers.
package models

import "time"

// Context keys every task carries. Workers may add their own keys on top.
const (
	// ContextKeyType holds the task's type tag.
	ContextKeyType = "type"
	// ContextKeyQuery holds the task's query text.
	ContextKeyQuery = "query"
	// ContextKeyResults holds the accumulated per-worker outputs.
	ContextKeyResults = "accumulated_results"
)

// Task represents a unit of work routed through the worker chain.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Type is the task type tag used for routing decisions.
	Type string `json:"type"`
	// Query is the free-form task text handed to workers.
	Query string `json:"query"`
	// Context accumulates each worker's output and is passed to the next
	// worker in the chain. It always contains the required keys above.
	Context map[string]any `json:"context"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a Task with the required context keys populated.
func NewTask(id, taskType, query string) *Task {
	return &Task{
		ID:    id,
		Type:  taskType,
		Query: query,
		Context: map[string]any{
			ContextKeyType:    taskType,
			ContextKeyQuery:   query,
			ContextKeyResults: map[string]string{},
		},
		CreatedAt: time.Now(),
	}
}

// CloneContext returns a copy of the task context. The accumulated
// results map is copied too, so parallel branches never share mutable
// state. Other values are copied by reference.
func (t *Task) CloneContext() map[string]any {
	clone := make(map[string]any, len(t.Context))
	for k, v := range t.Context {
		if results, ok := v.(map[string]string); ok && k == ContextKeyResults {
			copied := make(map[string]string, len(results))
			for rk, rv := range results {
				copied[rk] = rv
			}
			clone[k] = copied
			continue
		}
		clone[k] = v
	}
	return clone
}

// RecordResult stores a worker's output under the accumulated results key.
func (t *Task) RecordResult(workerName, output string) {
	results, ok := t.Context[ContextKeyResults].(map[string]string)
	if !ok {
		results = map[string]string{}
		t.Context[ContextKeyResults] = results
	}
	results[workerName] = output
}
