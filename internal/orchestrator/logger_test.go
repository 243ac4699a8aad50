package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLogger_WritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")

	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.Log("task %s routed to %s", "ab12cd34", "search_agent")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "task ab12cd34 routed to search_agent") {
		t.Errorf("log missing entry:\n%s", data)
	}
}

func TestDebugLogger_EmptyPathIsNoop(t *testing.T) {
	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.Log("discarded")
	if err := l.Close(); err != nil {
		t.Errorf("Close on no-op logger: %v", err)
	}

	var nilLogger *DebugLogger
	nilLogger.Log("also discarded")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}
