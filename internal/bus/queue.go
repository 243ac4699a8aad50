package bus

import (
	"sync"
	"time"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// priorityOrder lists sub-queues from highest to lowest drain priority.
var priorityOrder = []models.MessagePriority{
	models.PriorityCritical,
	models.PriorityHigh,
	models.PriorityNormal,
	models.PriorityLow,
}

// workerQueue holds one worker's undelivered messages in four strict-priority
// FIFO sub-queues. Each queue carries its own lock so that traffic for one
// worker never contends with traffic for another.
type workerQueue struct {
	mu       sync.Mutex
	queues   map[models.MessagePriority][]*models.Message
	capacity int
}

func newWorkerQueue(capacity int) *workerQueue {
	return &workerQueue{
		queues: map[models.MessagePriority][]*models.Message{
			models.PriorityCritical: nil,
			models.PriorityHigh:     nil,
			models.PriorityNormal:   nil,
			models.PriorityLow:      nil,
		},
		capacity: capacity,
	}
}

// size returns the total queued message count. Caller must hold mu.
func (q *workerQueue) size() int {
	n := 0
	for _, msgs := range q.queues {
		n += len(msgs)
	}
	return n
}

// enqueue adds a message, evicting the oldest low-priority message if the
// queue is at capacity. The evicted message is returned so the bus can mark
// it failed. If the queue is full and holds no low-priority message, the
// enqueue is rejected.
func (q *workerQueue) enqueue(m *models.Message) (evicted *models.Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size() >= q.capacity {
		low := q.queues[models.PriorityLow]
		if len(low) == 0 {
			return nil, false
		}
		evicted = low[0]
		q.queues[models.PriorityLow] = low[1:]
	}

	q.queues[m.Priority] = append(q.queues[m.Priority], m)
	return evicted, true
}

// drain removes and returns all queued messages in strict priority order,
// FIFO within each priority. Messages past expiry at drain time are
// returned separately so the bus can mark them expired.
func (q *workerQueue) drain(now time.Time) (ready, expired []*models.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range priorityOrder {
		for _, m := range q.queues[p] {
			if m.Expired(now) {
				expired = append(expired, m)
				continue
			}
			ready = append(ready, m)
		}
		q.queues[p] = nil
	}
	return ready, expired
}

// sweep removes queued messages past expiry and returns them.
func (q *workerQueue) sweep(now time.Time) []*models.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []*models.Message
	for _, p := range priorityOrder {
		kept := q.queues[p][:0]
		for _, m := range q.queues[p] {
			if m.Expired(now) {
				expired = append(expired, m)
				continue
			}
			kept = append(kept, m)
		}
		q.queues[p] = kept
	}
	return expired
}

// depth returns the current queued message count.
func (q *workerQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}
