// Package queue provides the bounded in-memory work queues that connect
// the schedulers to their worker pools. Queues never block producers:
// when a queue is full the offer is refused and the scheduler leaves the
// work for a later cycle.
package queue

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO. Offer is non-blocking; Take blocks until work
// arrives, the context ends, or the queue is closed and drained.
type Queue[T any] struct {
	ch     chan T
	mu     sync.Mutex
	closed bool
}

// New creates a queue holding at most capacity entries.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Offer enqueues v if there is room. It returns false when the queue is
// full or closed; the caller decides what to do with the refused work.
func (q *Queue[T]) Offer(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Take blocks until an entry is available. It returns false when the
// context is done, or when the queue has been closed and fully drained.
func (q *Queue[T]) Take(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-q.ch:
		if !ok {
			return zero, false
		}
		return v, true
	case <-ctx.Done():
		return zero, false
	}
}

// Close stops accepting offers. Entries already queued remain takeable
// so workers can drain during shutdown.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// FreeCapacity returns how many entries fit right now. The value is a
// snapshot; schedulers use it to size their claim batches.
func (q *Queue[T]) FreeCapacity() int {
	return cap(q.ch) - len(q.ch)
}
