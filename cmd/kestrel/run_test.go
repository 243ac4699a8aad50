package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kestrelhq/kestrel/internal/orchestrator"
)

func TestPrintResult_FailureShowsFallbackAnswer(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &orchestrator.ExecutionResult{
		TaskID:   "ab12cd34",
		Answer:   "Sorry, this task could not be completed.",
		Sequence: []string{"search_agent"},
		Duration: 120 * time.Millisecond,
		State:    orchestrator.StateFailed,
	})

	out := buf.String()
	if !strings.Contains(out, "Sorry, this task could not be completed.") {
		t.Errorf("output missing fallback answer:\n%s", out)
	}
	if !strings.Contains(out, "failed") {
		t.Errorf("output missing terminal state:\n%s", out)
	}
	if !strings.Contains(out, "search_agent") {
		t.Errorf("output missing executed sequence:\n%s", out)
	}
}

func TestPrintResult_Completed(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &orchestrator.ExecutionResult{
		TaskID:   "ab12cd34",
		Answer:   "all done",
		Sequence: []string{"search_agent", "formatting"},
		Duration: 80 * time.Millisecond,
		State:    orchestrator.StateCompleted,
	})

	out := buf.String()
	if !strings.Contains(out, "all done") {
		t.Errorf("output missing answer:\n%s", out)
	}
	if !strings.Contains(out, "search_agent > formatting") {
		t.Errorf("output missing sequence:\n%s", out)
	}
}
