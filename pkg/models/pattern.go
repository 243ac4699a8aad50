package models

import "time"

// ExecutionPattern records one completed task execution: which workers
// ran, in what order, and whether the run succeeded. Patterns are the
// raw material the routing memory scores when picking a sequence.
type ExecutionPattern struct {
	// TaskType is the task type tag this pattern was recorded for.
	TaskType string `json:"task_type"`
	// Sequence is the ordered worker sequence actually executed.
	Sequence []string `json:"sequence"`
	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`
	// Success indicates whether the execution produced a real answer.
	Success bool `json:"success"`
	// Context is the task context snapshot used to select this pattern.
	// Only string-valued keys are kept; they drive context similarity.
	Context map[string]string `json:"context,omitempty"`
	// RecordedAt is when the outcome was recorded.
	RecordedAt time.Time `json:"recorded_at"`
}

// TransitionStat tracks how often handing off from one worker to another
// led to a successful execution.
type TransitionStat struct {
	// From is the worker the task left.
	From string `json:"from"`
	// To is the worker the task was handed to.
	To string `json:"to"`
	// SuccessCount is the number of successful executions containing
	// this transition.
	SuccessCount int `json:"success_count"`
	// TotalCount is the number of executions containing this transition.
	TotalCount int `json:"total_count"`
}

// SuccessRate returns the transition's success ratio, or 0 with no samples.
func (s *TransitionStat) SuccessRate() float64 {
	if s.TotalCount == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalCount)
}

// SharedEntry is one item on the inter-worker bulletin board.
type SharedEntry struct {
	// From is the worker that shared the value.
	From string `json:"from"`
	// To is the worker the value is addressed to.
	To string `json:"to"`
	// Key identifies the shared value.
	Key string `json:"key"`
	// Value is the shared payload.
	Value string `json:"value"`
	// SharedAt is when the entry was posted.
	SharedAt time.Time `json:"shared_at"`
}
