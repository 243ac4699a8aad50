package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelhq/kestrel/internal/worker"
	"github.com/kestrelhq/kestrel/pkg/models"
)

// ContextKeyInbox is the task context key holding the payloads of bus
// messages delivered to the current worker.
const ContextKeyInbox = "inbox"

// runSequential walks the task through a handoff chain. Workers may hand
// off explicitly via NextWorker; a worker with no opinion advances along
// the planned sequence, then falls back to routing memory recommendations.
// The chain is capped at maxHops.
func (o *Orchestrator) runSequential(ctx context.Context, task *models.Task, planned []string) (string, []string, error) {
	if len(planned) == 0 {
		return "", nil, fmt.Errorf("task %s: empty worker sequence", task.ID)
	}

	current := planned[0]
	plannedIdx := 0
	var answer string
	var executed []string

	for hop := 1; ; hop++ {
		if hop > o.maxHops {
			return answer, executed, fmt.Errorf("task %s: hop limit %d exceeded at worker %s",
				task.ID, o.maxHops, current)
		}
		if err := ctx.Err(); err != nil {
			return answer, executed, err
		}

		w := o.registry.Get(current)
		if w == nil {
			return answer, executed, fmt.Errorf("task %s: unknown worker %q", task.ID, current)
		}

		o.deliverInbox(task, current)
		o.emit(Event{Type: EventWorkerStarted, TaskID: task.ID, Worker: current, Hop: hop, Timestamp: time.Now()})

		res, err := o.processWithRecovery(ctx, w, task)
		if err != nil {
			o.emit(Event{Type: EventWorkerFailed, TaskID: task.ID, Worker: current, Hop: hop, Err: err, Timestamp: time.Now()})
			return answer, executed, fmt.Errorf("task %s: worker %s: %w", task.ID, current, err)
		}
		executed = append(executed, current)
		if !res.Success {
			o.emit(Event{Type: EventWorkerFailed, TaskID: task.ID, Worker: current, Hop: hop, Timestamp: time.Now()})
			return answer, executed, fmt.Errorf("task %s: worker %s reported failure: %s",
				task.ID, current, res.Output)
		}

		task.RecordResult(current, res.Output)
		answer = res.Output
		o.emit(Event{Type: EventWorkerCompleted, TaskID: task.ID, Worker: current, Hop: hop, Timestamp: time.Now()})
		debugLog("task %s hop %d: %s ok, next=%q", task.ID, hop, current, res.NextWorker)

		next := o.nextWorker(task, current, res, planned, &plannedIdx)
		if next == "" {
			return answer, executed, nil
		}
		current = next
	}
}

// nextWorker resolves the next hop. An explicit NextWorker always wins,
// TerminalWorker ends the chain, and an empty NextWorker consults the
// planned sequence first and routing memory second.
func (o *Orchestrator) nextWorker(task *models.Task, current string, res *models.ProcessResult, planned []string, plannedIdx *int) string {
	if res.NextWorker == models.TerminalWorker {
		return ""
	}
	if res.NextWorker != "" {
		return res.NextWorker
	}

	if *plannedIdx+1 < len(planned) {
		*plannedIdx++
		return planned[*plannedIdx]
	}

	return o.memory.RecommendNext(current, stringContext(task))
}

// runParallel fans the task out to every worker in the set, each branch
// working on its own context copy, then pipes the surviving results
// through synthesis and formatting. Failed branches are logged and
// omitted; the task only fails when every branch does.
func (o *Orchestrator) runParallel(ctx context.Context, task *models.Task, workers []string) (string, []string, error) {
	branches := fanOutSet(workers)
	if len(branches) < 2 {
		return o.runSequential(ctx, task, workers)
	}

	var mu sync.Mutex
	outputs := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range branches {
		g.Go(func() error {
			w := o.registry.Get(name)
			if w == nil {
				debugLog("task %s branch %s: unknown worker, skipped", task.ID, name)
				return nil
			}

			branchTask := &models.Task{
				ID:        task.ID,
				Type:      task.Type,
				Query:     task.Query,
				Context:   task.CloneContext(),
				CreatedAt: task.CreatedAt,
			}
			o.deliverInbox(branchTask, name)

			res, err := o.processWithRecovery(gctx, w, branchTask)
			if err != nil || !res.Success {
				o.emit(Event{Type: EventWorkerFailed, TaskID: task.ID, Worker: name, Err: err, Timestamp: time.Now()})
				debugLog("task %s branch %s failed: err=%v", task.ID, name, err)
				return nil
			}

			mu.Lock()
			outputs[name] = res.Output
			mu.Unlock()
			o.emit(Event{Type: EventBranchCompleted, TaskID: task.ID, Worker: name, Timestamp: time.Now()})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	executed := make([]string, 0, len(outputs)+2)
	for _, name := range branches {
		if _, ok := outputs[name]; ok {
			executed = append(executed, name)
		}
	}
	if len(outputs) == 0 {
		return "", executed, fmt.Errorf("task %s: all %d parallel branches failed", task.ID, len(branches))
	}

	answer, err := o.synthesize(ctx, task, outputs)
	if err != nil {
		return "", executed, err
	}
	executed = append(executed, worker.SynthesisName, worker.FormattingName)
	return answer, executed, nil
}

// synthesize merges branch outputs into the task and runs the synthesis
// and formatting workers over them. Falls back to a plain join when those
// workers are not registered.
func (o *Orchestrator) synthesize(ctx context.Context, task *models.Task, outputs map[string]string) (string, error) {
	for name, out := range outputs {
		task.RecordResult(name, out)
	}

	synth := o.registry.Get(worker.SynthesisName)
	format := o.registry.Get(worker.FormattingName)
	if synth == nil || format == nil {
		return joinOutputs(outputs), nil
	}

	res, err := o.processWithRecovery(ctx, synth, task)
	if err != nil {
		return "", fmt.Errorf("task %s: synthesis: %w", task.ID, err)
	}
	if !res.Success {
		return "", fmt.Errorf("task %s: synthesis reported failure: %s", task.ID, res.Output)
	}
	task.RecordResult(worker.SynthesisName, res.Output)

	res, err = o.processWithRecovery(ctx, format, task)
	if err != nil {
		return "", fmt.Errorf("task %s: formatting: %w", task.ID, err)
	}
	if !res.Success {
		return "", fmt.Errorf("task %s: formatting reported failure: %s", task.ID, res.Output)
	}
	return res.Output, nil
}

// processWithRecovery invokes a worker with panic containment and a
// context guard, so a stuck or crashing worker cannot take down a task
// past its deadline.
func (o *Orchestrator) processWithRecovery(ctx context.Context, w models.Worker, task *models.Task) (result *models.ProcessResult, err error) {
	type outcome struct {
		res *models.ProcessResult
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("worker %s panicked: %v", w.Name(), r)}
			}
		}()
		res, perr := w.Process(ctx, task)
		if perr == nil && res == nil {
			perr = fmt.Errorf("worker %s returned no result", w.Name())
		}
		done <- outcome{res: res, err: perr}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.res, out.err
	}
}

// deliverInbox drains the worker's bus queue into the task context and
// acknowledges messages that asked for confirmation.
func (o *Orchestrator) deliverInbox(task *models.Task, workerName string) {
	msgs, err := o.bus.Receive(workerName)
	if err != nil || len(msgs) == 0 {
		return
	}

	payloads := make([]string, 0, len(msgs))
	for _, m := range msgs {
		payloads = append(payloads, fmt.Sprintf("[%s] %s", m.From, m.Payload))
		if m.RequireAck {
			o.bus.Acknowledge(m.ID, workerName)
		}
	}
	task.Context[ContextKeyInbox] = payloads
	debugLog("task %s: delivered %d message(s) to %s", task.ID, len(msgs), workerName)
}

// fanOutSet removes the pipeline tail workers from a fan-out set so they
// run once after the branches, not inside them.
func fanOutSet(workers []string) []string {
	out := make([]string, 0, len(workers))
	for _, name := range workers {
		if name == worker.SynthesisName || name == worker.FormattingName {
			continue
		}
		out = append(out, name)
	}
	return out
}

func joinOutputs(outputs map[string]string) string {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", name, outputs[name])
	}
	return strings.TrimSpace(b.String())
}
