// Package bus implements the priority message bus workers use to pass
// directed notices to each other outside the main handoff chain.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// DefaultQueueCapacity is the per-worker queue capacity when none is configured.
const DefaultQueueCapacity = 100

// DefaultSweepInterval is how often the background sweeper runs.
const DefaultSweepInterval = 30 * time.Second

var (
	// ErrUnknownWorker is returned when a message targets a worker the bus
	// does not know about.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrQueueFull is returned when the target queue is at capacity and
	// holds no low-priority message to evict.
	ErrQueueFull = errors.New("queue full")
	// ErrInvalidPriority is returned for messages with an unknown priority.
	ErrInvalidPriority = errors.New("invalid priority")
)

// Counters holds the bus-wide message counters.
type Counters struct {
	Sent         uint64 `json:"sent"`
	Delivered    uint64 `json:"delivered"`
	Acknowledged uint64 `json:"acknowledged"`
	Failed       uint64 `json:"failed"`
	Expired      uint64 `json:"expired"`
}

// Stats is a point-in-time snapshot of the bus state.
type Stats struct {
	// QueueDepths maps worker names to their undelivered message count.
	QueueDepths map[string]int `json:"queue_depths"`
	// PendingAcks is the number of delivered messages awaiting acknowledgment.
	PendingAcks int `json:"pending_acks"`
	// Counters are the global lifecycle counters.
	Counters Counters `json:"counters"`
}

// Bus routes messages between workers through per-worker priority queues.
// The worker set is fixed at construction; per-queue locking keeps send and
// receive for different workers contention-free.
type Bus struct {
	queues   map[string]*workerQueue
	capacity int

	// pendingAck tracks delivered messages awaiting acknowledgment, by ID.
	pendingAck   map[string]*models.Message
	pendingAckMu sync.Mutex

	sent         atomic.Uint64
	delivered    atomic.Uint64
	acknowledged atomic.Uint64
	failed       atomic.Uint64
	expired      atomic.Uint64

	sweepInterval time.Duration
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	startOnce     sync.Once
	stopOnce      sync.Once
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueCapacity sets the per-worker queue capacity.
func WithQueueCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithSweepInterval sets how often the background sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.sweepInterval = d
		}
	}
}

// New creates a Bus with one queue per worker name.
func New(workerNames []string, opts ...Option) *Bus {
	b := &Bus{
		queues:        make(map[string]*workerQueue, len(workerNames)),
		capacity:      DefaultQueueCapacity,
		pendingAck:    make(map[string]*models.Message),
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, name := range workerNames {
		b.queues[name] = newWorkerQueue(b.capacity)
	}
	return b
}

// NewMessage builds a pending message with a fresh ID. The expiry is left
// zero; Send derives it from the priority unless the caller sets it first.
func NewMessage(from, to, payload string, priority models.MessagePriority) *models.Message {
	return &models.Message{
		ID:        uuid.New().String()[:8],
		From:      from,
		To:        to,
		Payload:   payload,
		Priority:  priority,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}
}

// Send validates and enqueues a message for its target worker.
// A full queue first evicts its oldest low-priority message; if none
// exists the send is rejected with ErrQueueFull. Rejections are returned
// to the sender, never swallowed.
func (b *Bus) Send(m *models.Message) error {
	q, ok := b.queues[m.To]
	if !ok {
		return fmt.Errorf("send to %q: %w", m.To, ErrUnknownWorker)
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("send to %q: %w: %q", m.To, ErrInvalidPriority, m.Priority)
	}
	if m.ExpiresAt.IsZero() {
		m.ExpiresAt = m.CreatedAt.Add(m.Priority.TTL())
	}

	evicted, ok := q.enqueue(m)
	if !ok {
		return fmt.Errorf("send to %q: %w", m.To, ErrQueueFull)
	}
	if evicted != nil {
		evicted.Status = models.StatusFailed
		b.failed.Add(1)
	}

	b.sent.Add(1)
	return nil
}

// Receive drains the worker's queue in priority/FIFO order and marks each
// returned message delivered. Messages past expiry at drain time are marked
// expired and skipped. Delivered messages with RequireAck set are tracked
// until Acknowledge or expiry.
func (b *Bus) Receive(workerName string) ([]*models.Message, error) {
	q, ok := b.queues[workerName]
	if !ok {
		return nil, fmt.Errorf("receive for %q: %w", workerName, ErrUnknownWorker)
	}

	ready, expired := q.drain(time.Now())
	for _, m := range expired {
		m.Status = models.StatusExpired
		b.expired.Add(1)
	}

	for _, m := range ready {
		m.Status = models.StatusDelivered
		b.delivered.Add(1)
		if m.RequireAck {
			b.pendingAckMu.Lock()
			b.pendingAck[m.ID] = m
			b.pendingAckMu.Unlock()
		}
	}
	return ready, nil
}

// Acknowledge confirms a delivered message. It succeeds only if the
// acknowledging worker is the message's recorded target and the message is
// still awaiting acknowledgment.
func (b *Bus) Acknowledge(messageID, workerName string) bool {
	b.pendingAckMu.Lock()
	defer b.pendingAckMu.Unlock()

	m, ok := b.pendingAck[messageID]
	if !ok || m.To != workerName {
		return false
	}
	if !m.Status.CanTransitionTo(models.StatusAcknowledged) {
		return false
	}

	m.Status = models.StatusAcknowledged
	delete(b.pendingAck, messageID)
	b.acknowledged.Add(1)
	return true
}

// Fail reports that the target worker could not process a delivered
// message. While retries remain, a fresh pending copy with a bumped
// retry count is enqueued; the original keeps its delivered status, so
// no message ever regresses. Once retries are exhausted the failure is
// counted and the message is dropped. Only the message's recorded
// target may fail it.
func (b *Bus) Fail(messageID, workerName string) bool {
	b.pendingAckMu.Lock()
	m, ok := b.pendingAck[messageID]
	if !ok || m.To != workerName {
		b.pendingAckMu.Unlock()
		return false
	}
	delete(b.pendingAck, messageID)
	b.pendingAckMu.Unlock()

	if m.RetryCount < m.MaxRetries {
		retry := NewMessage(m.From, m.To, m.Payload, m.Priority)
		retry.RequireAck = m.RequireAck
		retry.MaxRetries = m.MaxRetries
		retry.RetryCount = m.RetryCount + 1
		retry.Metadata = m.Metadata
		if err := b.Send(retry); err == nil {
			return true
		}
	}

	b.failed.Add(1)
	return true
}

// SweepExpired scans all queues and the pending-acknowledgment set, marking
// anything past expiry as expired. It returns the number of messages swept.
// Safe to call concurrently with Send and Receive; it takes one short lock
// per queue, never a global lock.
func (b *Bus) SweepExpired() int {
	now := time.Now()
	count := 0

	for _, q := range b.queues {
		for _, m := range q.sweep(now) {
			m.Status = models.StatusExpired
			b.expired.Add(1)
			count++
		}
	}

	b.pendingAckMu.Lock()
	for id, m := range b.pendingAck {
		if m.Expired(now) {
			m.Status = models.StatusExpired
			delete(b.pendingAck, id)
			b.expired.Add(1)
			count++
		}
	}
	b.pendingAckMu.Unlock()

	return count
}

// Start launches the background sweeper. Safe to call once; subsequent
// calls are no-ops.
func (b *Bus) Start() {
	b.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			ticker := time.NewTicker(b.sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					b.SweepExpired()
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Stop halts the background sweeper and waits for it to exit.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
	})
}

// QueueDepth returns the undelivered message count for one worker.
func (b *Bus) QueueDepth(workerName string) int {
	q, ok := b.queues[workerName]
	if !ok {
		return 0
	}
	return q.depth()
}

// Stats returns a snapshot of queue depths and global counters.
func (b *Bus) Stats() Stats {
	depths := make(map[string]int, len(b.queues))
	for name, q := range b.queues {
		depths[name] = q.depth()
	}

	b.pendingAckMu.Lock()
	pending := len(b.pendingAck)
	b.pendingAckMu.Unlock()

	return Stats{
		QueueDepths: depths,
		PendingAcks: pending,
		Counters: Counters{
			Sent:         b.sent.Load(),
			Delivered:    b.delivered.Load(),
			Acknowledged: b.acknowledged.Load(),
			Failed:       b.failed.Load(),
			Expired:      b.expired.Load(),
		},
	}
}
