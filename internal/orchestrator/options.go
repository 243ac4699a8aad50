package orchestrator

import (
	"errors"
	"time"

	"github.com/kestrelhq/kestrel/internal/bus"
	"github.com/kestrelhq/kestrel/internal/memory"
	"github.com/kestrelhq/kestrel/internal/worker"
)

// RequiredConfig holds the dependencies every orchestrator needs.
type RequiredConfig struct {
	Registry *worker.Registry
	Bus      *bus.Bus
	Memory   *memory.Memory
}

func (c RequiredConfig) validate() error {
	if c.Registry == nil {
		return errors.New("orchestrator: registry is required")
	}
	if c.Bus == nil {
		return errors.New("orchestrator: bus is required")
	}
	if c.Memory == nil {
		return errors.New("orchestrator: memory is required")
	}
	return nil
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithLogger sets the debug logger. A nil logger disables debug output.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithStore attaches a persistent store that is flushed periodically
// and on Stop.
func WithStore(s *memory.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithMaxHops caps the number of sequential handoffs per task.
func WithMaxHops(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxHops = n
		}
	}
}

// WithTaskTimeout bounds the wall-clock time a single task may take.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.taskTimeout = d
		}
	}
}

// WithParallelTaskTypes sets the task types routed through parallel fan-out.
func WithParallelTaskTypes(types []string) Option {
	return func(o *Orchestrator) {
		o.parallelTypes = make(map[string]bool, len(types))
		for _, t := range types {
			o.parallelTypes[t] = true
		}
	}
}

// WithFlushInterval sets how often the attached store is flushed.
// Ignored when no store is attached.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}
