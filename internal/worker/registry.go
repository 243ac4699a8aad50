// Package worker holds the worker registry and the built-in workers the
// orchestrator relies on for synthesis, formatting, and health checks.
// Domain workers (search, code analysis, and so on) are external: they
// implement models.Worker and are handed to the registry at start-up.
package worker

import (
	"fmt"
	"sort"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// Registry holds the fixed set of available workers. The set is sealed at
// construction and read-only afterwards, so lookups need no locking.
type Registry struct {
	workers map[string]models.Worker
	names   []string
}

// NewRegistry creates a Registry from the given workers.
// Duplicate names are rejected.
func NewRegistry(workers ...models.Worker) (*Registry, error) {
	r := &Registry{workers: make(map[string]models.Worker, len(workers))}
	for _, w := range workers {
		name := w.Name()
		if name == "" {
			return nil, fmt.Errorf("worker with empty name")
		}
		if _, exists := r.workers[name]; exists {
			return nil, fmt.Errorf("duplicate worker name %q", name)
		}
		r.workers[name] = w
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the worker with the given name, or nil if unknown.
func (r *Registry) Get(name string) models.Worker {
	return r.workers[name]
}

// Has returns true if a worker with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.workers[name]
	return ok
}

// Names returns the registered worker names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	return len(r.workers)
}

// WithCapability returns the names of workers carrying the given
// capability tag, sorted.
func (r *Registry) WithCapability(tag string) []string {
	var names []string
	for name, w := range r.workers {
		for _, c := range w.Capabilities() {
			if c == tag {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// Health returns each worker's self-reported health, keyed by name.
func (r *Registry) Health() map[string]models.WorkerHealth {
	health := make(map[string]models.WorkerHealth, len(r.workers))
	for name, w := range r.workers {
		health[name] = w.Status()
	}
	return health
}
