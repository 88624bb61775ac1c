package server

import (
	"sync"
	"time"
)

// defaultQueueCapacity bounds each user's offline queue. When full, the
// oldest entry is evicted unread; bounded memory is preferred over unbounded
// growth for long-offline users.
const defaultQueueCapacity = 100

type QueuedMessage struct {
	Event    *ServerEvent
	QueuedAt time.Time
}

// OfflineQueue holds per-user FIFO queues of events addressed to users who
// were offline at send time.
type OfflineQueue struct {
	mu       sync.Mutex
	capacity int
	queues   map[string][]*QueuedMessage
}

func NewOfflineQueue(capacity int) *OfflineQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	return &OfflineQueue{
		capacity: capacity,
		queues:   make(map[string][]*QueuedMessage),
	}
}

// Enqueue appends ev to the tail of userId's queue and reports whether the
// oldest entry was evicted to stay within capacity.
func (oq *OfflineQueue) Enqueue(userId string, ev *ServerEvent) bool {
	oq.mu.Lock()
	defer oq.mu.Unlock()

	q := append(oq.queues[userId], &QueuedMessage{
		Event:    ev,
		QueuedAt: time.Now(),
	})

	evicted := false
	if len(q) > oq.capacity {
		q = q[1:]
		evicted = true
	}
	oq.queues[userId] = q

	return evicted
}

// Drain returns userId's queued messages in enqueue order and clears the
// queue. Called exactly once when the user transitions to online, before any
// newly-addressed messages are processed.
func (oq *OfflineQueue) Drain(userId string) []*QueuedMessage {
	oq.mu.Lock()
	defer oq.mu.Unlock()

	q := oq.queues[userId]
	delete(oq.queues, userId)
	return q
}

func (oq *OfflineQueue) SizeOf(userId string) int {
	oq.mu.Lock()
	defer oq.mu.Unlock()

	return len(oq.queues[userId])
}

func (oq *OfflineQueue) TotalQueued() int {
	oq.mu.Lock()
	defer oq.mu.Unlock()

	total := 0
	for _, q := range oq.queues {
		total += len(q)
	}
	return total
}
