// Package orchestrator drives tasks through worker chains and fan-outs.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pkgLogger is shared by free functions in this package; the owning
// Orchestrator installs it at construction.
var pkgLogger *DebugLogger
var pkgLoggerMu sync.RWMutex

func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes a line through the installed package logger, if any.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// DebugLogger appends timestamped lines to a file so a task's routing
// decisions and hop-by-hop progress can be reconstructed afterwards.
// A logger without a file swallows everything, which is what
// NewDebugLogger("") returns; the engine runs silent unless asked.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger opens (or creates) the log file at logPath, creating
// parent directories as needed. An empty path yields a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{file: f}
	logger.Log("kestrel debug log opened %s", time.Now().Format(time.RFC3339))
	return logger, nil
}

// Log writes one timestamped line. Each line is synced so a crash mid-task
// still leaves the trail on disk. No-op on a nil or file-less logger.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.file, "[%s] %s\n",
		time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	l.file.Sync()
}

// Close closes the underlying file. Safe on a nil or file-less logger.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
