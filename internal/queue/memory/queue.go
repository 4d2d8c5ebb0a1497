// Package memory provides the in-process execution queue that hands
// submitted jobs to workers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = hansard.ErrQueueClosed

// Queue is an unbounded FIFO. Enqueue never waits for a worker, so a backlog
// of any size is absorbed without blocking submitters.
type Queue struct {
	mu     sync.Mutex
	items  []hansard.QueueItem
	closed bool
	// wake is closed and replaced whenever items arrive or the queue closes.
	wake chan struct{}
}

// NewQueue constructs an empty queue. capacity only preallocates the backlog.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		items: make([]hansard.QueueItem, 0, capacity),
		wake:  make(chan struct{}),
	}
}

// Enqueue appends a job. It fails only for an already finished context or a
// closed queue.
func (q *Queue) Enqueue(ctx context.Context, item hansard.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.broadcast()
	return nil
}

// Dequeue pops the oldest job, waiting until one arrives, the queue is closed
// and drained, or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (hansard.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = hansard.QueueItem{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return hansard.QueueItem{}, ErrClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return hansard.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-wake:
		}
	}
}

// Len reports how many jobs are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes idle workers. Waiting jobs can still
// be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcast()
}

// broadcast must be called with mu held.
func (q *Queue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}
