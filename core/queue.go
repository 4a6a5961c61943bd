package core

import (
	"sync"

	"github.com/eapache/queue"
)

// defaultQueueCapacity bounds the overflow queue when the config does not
// say otherwise.
const defaultQueueCapacity = 64

// taskQueue is the bounded FIFO holding tasks admitted while every worker
// slot is busy. Aborted tasks stay in place and are skipped on pop; they
// were already settled by the abort path.
type taskQueue struct {
	mu       sync.Mutex
	ring     *queue.Queue
	capacity int
}

func newTaskQueue(capacity int) *taskQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &taskQueue{ring: queue.New(), capacity: capacity}
}

// Push appends t, reporting false when the queue is at capacity.
func (q *taskQueue) Push(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ring.Length() >= q.capacity {
		return false
	}
	q.ring.Add(t)
	return true
}

// Pop removes the oldest live task, skipping entries aborted while queued.
func (q *taskQueue) Pop() (*task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Length() > 0 {
		t := q.ring.Remove().(*task)
		if t.aborted {
			continue
		}
		return t, true
	}
	return nil, false
}

// Len counts queued tasks, aborted entries included until they are popped.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

// Drain empties the queue and returns the live tasks that were waiting.
func (q *taskQueue) Drain() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained []*task
	for q.ring.Length() > 0 {
		t := q.ring.Remove().(*task)
		if t.aborted {
			continue
		}
		drained = append(drained, t)
	}
	return drained
}
