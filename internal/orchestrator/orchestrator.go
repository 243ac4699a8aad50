package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/kestrel/internal/bus"
	"github.com/kestrelhq/kestrel/internal/directive"
	"github.com/kestrelhq/kestrel/internal/memory"
	"github.com/kestrelhq/kestrel/internal/worker"
	"github.com/kestrelhq/kestrel/pkg/models"
)

const (
	// DefaultMaxHops caps the sequential handoff chain length.
	DefaultMaxHops = 15
	// DefaultTaskTimeout is the overall per-task deadline.
	DefaultTaskTimeout = 600 * time.Second
	// DefaultFlushInterval is how often routing memory is persisted.
	DefaultFlushInterval = 60 * time.Second
	// DefaultEventBuffer is the event channel capacity.
	DefaultEventBuffer = 64
)

// timeoutAnswer is returned when a task exceeds its deadline.
const timeoutAnswer = "Sorry, this task could not be completed within the " +
	"allotted time. Any partial results gathered so far have been discarded."

// failureAnswer is returned when a chain aborts before producing a result.
const failureAnswer = "Sorry, this task could not be completed. " +
	"The worker chain stopped before producing an answer."

// State describes where a task is in its lifecycle.
type State string

const (
	// StateRouting means a worker sequence is being selected.
	StateRouting State = "routing"
	// StateExecuting means workers are processing the task.
	StateExecuting State = "executing"
	// StateSynthesizing means branch results are being combined.
	StateSynthesizing State = "synthesizing"
	// StateCompleted means the task produced a final answer.
	StateCompleted State = "completed"
	// StateTimedOut means the task hit its deadline.
	StateTimedOut State = "timed_out"
	// StateFailed means the task ended without a usable answer.
	StateFailed State = "failed"
)

// ExecutionResult is the outcome of a single task execution.
type ExecutionResult struct {
	// TaskID is the generated task identifier.
	TaskID string
	// Answer is the final answer text.
	Answer string
	// Sequence lists the workers that actually processed the task,
	// in order.
	Sequence []string
	// Duration is the wall-clock execution time.
	Duration time.Duration
	// State is the terminal task state.
	State State
}

// StatusReport is a point-in-time snapshot of the engine.
type StatusReport struct {
	// Workers maps each registered worker to its self-reported health.
	Workers map[string]models.WorkerHealth
	// QueueDepths maps each worker to its pending message count.
	QueueDepths map[string]int
	// BusStats are the bus lifetime counters.
	BusStats bus.Stats
	// MemorySize is the total routing memory entry count.
	MemorySize int
	// ActiveTasks is the number of tasks currently executing.
	ActiveTasks int64
	// DroppedEvents counts events discarded because the event channel
	// was full.
	DroppedEvents uint64
}

// Orchestrator routes tasks through worker chains, learns from outcomes,
// and relays inter-worker messages over the bus.
type Orchestrator struct {
	registry *worker.Registry
	bus      *bus.Bus
	memory   *memory.Memory
	store    *memory.Store
	logger   *DebugLogger

	maxHops       int
	taskTimeout   time.Duration
	flushInterval time.Duration
	parallelTypes map[string]bool
	eventBuffer   int

	events        chan Event
	droppedEvents atomic.Uint64
	activeTasks   atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an orchestrator from required dependencies and options.
func New(cfg RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry:      cfg.Registry,
		bus:           cfg.Bus,
		memory:        cfg.Memory,
		maxHops:       DefaultMaxHops,
		taskTimeout:   DefaultTaskTimeout,
		flushInterval: DefaultFlushInterval,
		parallelTypes: map[string]bool{},
		eventBuffer:   DefaultEventBuffer,
		ctx:           ctx,
		cancel:        cancel,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.events = make(chan Event, o.eventBuffer)
	if o.logger != nil {
		setPackageLogger(o.logger)
	}
	return o, nil
}

// Memory returns the routing memory for inspection.
func (o *Orchestrator) Memory() *memory.Memory {
	return o.memory
}

// Events returns the execution event stream. Events are dropped rather
// than blocking execution when the channel is full.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// DroppedEventCount returns how many events have been discarded.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.droppedEvents.Load()
}

// Start launches the bus expiry sweeper and, when a store is attached,
// the periodic memory flush loop.
func (o *Orchestrator) Start() {
	o.startOnce.Do(func() {
		o.bus.Start()

		if o.store != nil {
			o.wg.Add(1)
			go o.flushLoop()
		}
		debugLog("orchestrator started: workers=%d maxHops=%d timeout=%s",
			o.registry.Count(), o.maxHops, o.taskTimeout)
	})
}

// Stop shuts down background loops, flushes routing memory a final time,
// and closes the event stream. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.cancel()
		o.wg.Wait()
		o.bus.Stop()

		if o.store != nil {
			if err := o.store.Save(o.memory); err != nil {
				debugLog("final memory flush failed: %v", err)
			}
			o.store.Close()
		}
		close(o.events)
		debugLog("orchestrator stopped")
	})
}

func (o *Orchestrator) flushLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			if err := o.store.Save(o.memory); err != nil {
				debugLog("memory flush failed: %v", err)
			}
		}
	}
}

// Execute runs a task to completion. The query may embed directive lines,
// which are dispatched over the bus before the residual text is routed
// through the worker chain. An outcome is recorded in routing memory on
// every path, including failures and timeouts.
func (o *Orchestrator) Execute(ctx context.Context, taskType, query string) (*ExecutionResult, error) {
	taskID := uuid.New().String()[:8]
	started := time.Now()

	o.activeTasks.Add(1)
	defer o.activeTasks.Add(-1)

	ctx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	o.emit(Event{Type: EventTaskStarted, TaskID: taskID, Message: taskType, Timestamp: started})
	debugLog("task %s started: type=%s", taskID, taskType)

	baseQuery := query
	var dispatched int
	if directive.HasDirectionalSyntax(query) {
		var err error
		dispatched, err = o.dispatchDirectives(taskID, query)
		if err != nil {
			result := o.finish(taskID, taskType, nil, started, StateFailed, failureAnswer)
			return result, err
		}
		baseQuery = directive.ExtractBaseQuery(query)
	}

	if baseQuery == "" {
		// Pure directive input: nothing left to route.
		answer := fmt.Sprintf("Dispatched %d message(s).", dispatched)
		result := o.finish(taskID, taskType, nil, started, StateCompleted, answer)
		return result, nil
	}

	task := models.NewTask(taskID, taskType, baseQuery)

	sequence := o.memory.BestSequence(taskType, stringContext(task))
	debugLog("task %s routed: sequence=%v parallel=%v",
		taskID, sequence, o.parallelTypes[taskType])

	var answer string
	var executed []string
	var err error
	if o.parallelTypes[taskType] && len(sequence) >= 2 {
		answer, executed, err = o.runParallel(ctx, task, sequence)
	} else {
		answer, executed, err = o.runSequential(ctx, task, sequence)
	}

	switch {
	case err == nil:
		return o.finish(taskID, taskType, executedWithContext(task, executed), started, StateCompleted, answer), nil
	case ctx.Err() != nil:
		result := o.finish(taskID, taskType, executedWithContext(task, executed), started, StateTimedOut, timeoutAnswer)
		return result, nil
	default:
		result := o.finish(taskID, taskType, executedWithContext(task, executed), started, StateFailed, failureAnswer)
		return result, err
	}
}

// finish records the outcome, emits the terminal event, and builds the
// result. It runs on every execution path.
func (o *Orchestrator) finish(taskID, taskType string, exec *executionRecord, started time.Time, state State, answer string) *ExecutionResult {
	duration := time.Since(started)

	var sequence []string
	var taskContext map[string]string
	if exec != nil {
		sequence = exec.sequence
		taskContext = exec.context
	}
	o.memory.RecordOutcome(taskType, sequence, duration, state == StateCompleted, taskContext)

	eventType := EventTaskCompleted
	switch state {
	case StateTimedOut:
		eventType = EventTaskTimedOut
	case StateFailed:
		eventType = EventTaskFailed
	}
	o.emit(Event{Type: eventType, TaskID: taskID, Message: string(state), Timestamp: time.Now()})
	debugLog("task %s finished: state=%s duration=%s sequence=%v",
		taskID, state, duration.Round(time.Millisecond), sequence)

	return &ExecutionResult{
		TaskID:   taskID,
		Answer:   answer,
		Sequence: sequence,
		Duration: duration,
		State:    state,
	}
}

// executionRecord bundles what RecordOutcome needs from a finished run.
type executionRecord struct {
	sequence []string
	context  map[string]string
}

func executedWithContext(task *models.Task, executed []string) *executionRecord {
	return &executionRecord{
		sequence: executed,
		context:  stringContext(task),
	}
}

// dispatchDirectives parses directive lines, validates their targets, and
// sends one bus message per source/target pair. Returns how many messages
// were accepted.
func (o *Orchestrator) dispatchDirectives(taskID, query string) (int, error) {
	directives := directive.Parse(query)
	if unknown := directive.Validate(directives, o.registry.Names()); len(unknown) > 0 {
		return 0, fmt.Errorf("directive targets unknown worker(s): %v", unknown)
	}

	sent := 0
	for _, d := range directives {
		priority := models.PriorityNormal
		if p, ok := d.Params["priority"].(string); ok {
			candidate := models.MessagePriority(p)
			if !candidate.Valid() {
				return sent, fmt.Errorf("directive from %q: invalid priority %q", d.Source, p)
			}
			priority = candidate
		}
		ack, _ := d.Params["ack"].(bool)

		for _, target := range d.Targets {
			msg := bus.NewMessage(d.Source, target, d.Payload, priority)
			msg.RequireAck = ack
			if err := o.bus.Send(msg); err != nil {
				return sent, fmt.Errorf("directive send %s > %s: %w", d.Source, target, err)
			}
			sent++
			debugLog("task %s directive: %s > %s priority=%s ack=%v",
				taskID, d.Source, target, priority, ack)
		}
	}
	return sent, nil
}

// Status returns a snapshot of worker health, queue depths, and memory.
func (o *Orchestrator) Status() StatusReport {
	depths := make(map[string]int)
	for _, name := range o.registry.Names() {
		depths[name] = o.bus.QueueDepth(name)
	}
	return StatusReport{
		Workers:       o.registry.Health(),
		QueueDepths:   depths,
		BusStats:      o.bus.Stats(),
		MemorySize:    o.memory.Size(),
		ActiveTasks:   o.activeTasks.Load(),
		DroppedEvents: o.droppedEvents.Load(),
	}
}

// HealthCheck verifies the engine end to end: every worker must report
// healthy, a synthetic message must make a full bus round trip, and a
// synthetic task must actually run through the loopback worker's Process
// call under ctx. A registry without a loopback worker fails the check,
// since nothing could verify the task path.
func (o *Orchestrator) HealthCheck(ctx context.Context) error {
	for name, h := range o.registry.Health() {
		if !h.Healthy {
			return fmt.Errorf("worker %s unhealthy: %s", name, h.Detail)
		}
	}

	lb := o.registry.Get(worker.LoopbackName)
	if lb == nil {
		return fmt.Errorf("no %s worker registered, cannot verify task round trip", worker.LoopbackName)
	}

	ping := bus.NewMessage("orchestrator", worker.LoopbackName, "ping", models.PriorityHigh)
	ping.RequireAck = true
	if err := o.bus.Send(ping); err != nil {
		return fmt.Errorf("health ping send: %w", err)
	}
	msgs, err := o.bus.Receive(worker.LoopbackName)
	if err != nil {
		return fmt.Errorf("health ping receive: %w", err)
	}
	delivered := false
	for _, m := range msgs {
		if m.ID == ping.ID {
			if !o.bus.Acknowledge(m.ID, worker.LoopbackName) {
				return fmt.Errorf("health ping ack rejected")
			}
			delivered = true
		}
	}
	if !delivered {
		return fmt.Errorf("health ping not delivered")
	}

	task := models.NewTask(uuid.New().String()[:8], "health_check", "ping")
	res, err := o.processWithRecovery(ctx, lb, task)
	if err != nil {
		return fmt.Errorf("round trip task: %w", err)
	}
	if !res.Success || res.Output != task.Query {
		return fmt.Errorf("round trip task: unexpected result %q", res.Output)
	}
	return nil
}

// emit sends an event without ever blocking task execution.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.droppedEvents.Add(1)
	}
}

// stringContext extracts the string-valued entries of a task context for
// routing memory snapshots.
func stringContext(task *models.Task) map[string]string {
	if task == nil {
		return nil
	}
	out := make(map[string]string)
	for k, v := range task.Context {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
