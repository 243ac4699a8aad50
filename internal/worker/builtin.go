package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// Reserved names for the built-in workers.
const (
	// LoopbackName is the echo worker used by health checks.
	LoopbackName = "loopback"
	// SynthesisName is the worker that combines parallel branch outputs.
	SynthesisName = "synthesis"
	// FormattingName is the worker that shapes the final answer.
	FormattingName = "formatting"
)

// Loopback is a trivial worker that echoes the task query back.
// The orchestrator's health check routes a synthetic task through it.
type Loopback struct{}

// Name implements models.Worker.
func (Loopback) Name() string { return LoopbackName }

// Capabilities implements models.Worker.
func (Loopback) Capabilities() []string { return []string{"echo"} }

// Process echoes the query and terminates the chain.
func (Loopback) Process(_ context.Context, task *models.Task) (*models.ProcessResult, error) {
	return &models.ProcessResult{
		Success:    true,
		Output:     task.Query,
		ToolsUsed:  []string{"echo"},
		Confidence: 1.0,
		NextWorker: models.TerminalWorker,
	}, nil
}

// Status implements models.Worker.
func (Loopback) Status() models.WorkerHealth {
	return models.WorkerHealth{Healthy: true}
}

// Synthesis combines the accumulated per-worker outputs into one body of
// text. The orchestrator invokes it after a parallel fan-out.
type Synthesis struct{}

// Name implements models.Worker.
func (Synthesis) Name() string { return SynthesisName }

// Capabilities implements models.Worker.
func (Synthesis) Capabilities() []string { return []string{"synthesis"} }

// Process joins the accumulated results, one section per contributing
// worker, in worker-name order, and hands off to formatting.
func (Synthesis) Process(_ context.Context, task *models.Task) (*models.ProcessResult, error) {
	results, _ := task.Context[models.ContextKeyResults].(map[string]string)
	if len(results) == 0 {
		return &models.ProcessResult{
			Success:    false,
			Output:     "no branch results to synthesize",
			Confidence: 0,
		}, nil
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "[%s]\n%s\n", name, results[name])
	}

	return &models.ProcessResult{
		Success:    true,
		Output:     strings.TrimSpace(b.String()),
		ToolsUsed:  []string{"synthesis"},
		Confidence: 0.9,
		NextWorker: FormattingName,
	}, nil
}

// Status implements models.Worker.
func (Synthesis) Status() models.WorkerHealth {
	return models.WorkerHealth{Healthy: true}
}

// Formatting shapes the synthesized text into the final answer.
type Formatting struct{}

// Name implements models.Worker.
func (Formatting) Name() string { return FormattingName }

// Capabilities implements models.Worker.
func (Formatting) Capabilities() []string { return []string{"formatting"} }

// Process prefixes the answer with the original query and terminates.
func (Formatting) Process(_ context.Context, task *models.Task) (*models.ProcessResult, error) {
	results, _ := task.Context[models.ContextKeyResults].(map[string]string)
	body := results[SynthesisName]
	if body == "" {
		body = task.Query
	}

	return &models.ProcessResult{
		Success:    true,
		Output:     fmt.Sprintf("Query: %s\n\n%s", task.Query, body),
		ToolsUsed:  []string{"formatting"},
		Confidence: 0.9,
		NextWorker: models.TerminalWorker,
	}, nil
}

// Status implements models.Worker.
func (Formatting) Status() models.WorkerHealth {
	return models.WorkerHealth{Healthy: true}
}

// Builtins returns the built-in worker set.
func Builtins() []models.Worker {
	return []models.Worker{Loopback{}, Synthesis{}, Formatting{}}
}
