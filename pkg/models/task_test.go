package models

import "testing"

func TestNewTask_RequiredContextKeys(t *testing.T) {
	task := NewTask("t1", "research", "analyze trends")

	if task.Context[ContextKeyType] != "research" {
		t.Errorf("context type = %v, want research", task.Context[ContextKeyType])
	}
	if task.Context[ContextKeyQuery] != "analyze trends" {
		t.Errorf("context query = %v, want analyze trends", task.Context[ContextKeyQuery])
	}
	if _, ok := task.Context[ContextKeyResults].(map[string]string); !ok {
		t.Error("context should contain an accumulated results map")
	}
}

func TestTask_CloneContext_Isolated(t *testing.T) {
	task := NewTask("t1", "research", "query")
	task.Context["extra"] = "original"

	clone := task.CloneContext()
	clone["extra"] = "mutated"

	if task.Context["extra"] != "original" {
		t.Error("mutating a clone should not affect the task context")
	}
}

func TestTask_CloneContext_ResultsIsolated(t *testing.T) {
	task := NewTask("t1", "research", "query")
	task.RecordResult("search_agent", "original")

	clone := task.CloneContext()
	clone[ContextKeyResults].(map[string]string)["search_agent"] = "mutated"

	results := task.Context[ContextKeyResults].(map[string]string)
	if results["search_agent"] != "original" {
		t.Error("branch results map should be copied, not shared")
	}
}

func TestTask_RecordResult(t *testing.T) {
	task := NewTask("t1", "research", "query")

	task.RecordResult("search_agent", "found 3 sources")
	task.RecordResult("analysis_agent", "trend is upward")

	results := task.Context[ContextKeyResults].(map[string]string)
	if results["search_agent"] != "found 3 sources" {
		t.Errorf("search_agent result = %q", results["search_agent"])
	}
	if results["analysis_agent"] != "trend is upward" {
		t.Errorf("analysis_agent result = %q", results["analysis_agent"])
	}
}

func TestTask_RecordResult_MissingMap(t *testing.T) {
	// A worker may have clobbered the results key with a wrong type.
	task := NewTask("t1", "research", "query")
	task.Context[ContextKeyResults] = "not a map"

	task.RecordResult("search_agent", "output")

	results, ok := task.Context[ContextKeyResults].(map[string]string)
	if !ok {
		t.Fatal("RecordResult should restore the results map")
	}
	if results["search_agent"] != "output" {
		t.Errorf("search_agent result = %q, want output", results["search_agent"])
	}
}

func TestProcessResult_Terminal(t *testing.T) {
	tests := []struct {
		next string
		want bool
	}{
		{"", true},
		{TerminalWorker, true},
		{"analysis_agent", false},
	}

	for _, tt := range tests {
		r := &ProcessResult{NextWorker: tt.next}
		if got := r.Terminal(); got != tt.want {
			t.Errorf("Terminal() with next=%q = %v, want %v", tt.next, got, tt.want)
		}
	}
}

func TestTransitionStat_SuccessRate(t *testing.T) {
	s := &TransitionStat{From: "a", To: "b"}
	if got := s.SuccessRate(); got != 0 {
		t.Errorf("empty stat rate = %v, want 0", got)
	}

	s.SuccessCount = 4
	s.TotalCount = 5
	if got := s.SuccessRate(); got != 0.8 {
		t.Errorf("rate = %v, want 0.8", got)
	}
}
