package models

import "context"

// TerminalWorker is the NextWorker value that explicitly ends a chain.
// An empty NextWorker ends the chain as well.
const TerminalWorker = "none"

// ProcessResult is what a worker returns from a Process call.
type ProcessResult struct {
	// Success indicates whether the worker completed its step.
	Success bool `json:"success"`
	// Output is the worker's textual result.
	Output string `json:"output"`
	// ToolsUsed lists the tools or capabilities the worker exercised.
	ToolsUsed []string `json:"tools_used,omitempty"`
	// Confidence is the worker's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// NextWorker names the worker the task should be handed to next.
	// Empty or TerminalWorker ends the chain.
	NextWorker string `json:"next_worker,omitempty"`
}

// Terminal returns true if this result ends the handoff chain.
func (r *ProcessResult) Terminal() bool {
	return r.NextWorker == "" || r.NextWorker == TerminalWorker
}

// WorkerHealth describes a worker's self-reported health.
type WorkerHealth struct {
	// Healthy indicates the worker can accept tasks.
	Healthy bool `json:"healthy"`
	// Detail is an optional human-readable status line.
	Detail string `json:"detail,omitempty"`
}

// Worker is the contract every agent implements. The orchestrator only
// ever depends on this interface, never on concrete worker types.
type Worker interface {
	// Name returns the worker's unique registry name.
	Name() string
	// Capabilities returns the worker's capability tags.
	Capabilities() []string
	// Process runs the worker's step on the task. Workers may suspend on
	// network or LLM calls; the context carries the task deadline.
	Process(ctx context.Context, task *Task) (*ProcessResult, error)
	// Status reports the worker's health.
	Status() WorkerHealth
}
