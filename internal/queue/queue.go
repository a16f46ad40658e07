// Package queue provides an unbounded FIFO shared by many producers and consumers.
package queue

import (
	"errors"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// ErrClosed is returned by Push once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded, goroutine-safe FIFO. Push never blocks; Pop blocks
// until an item is available or the queue is closed and empty.
type Queue[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    *linkedlistqueue.Queue
	closed   bool
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{items: linkedlistqueue.New()}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends v to the tail of the queue.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items.Enqueue(v)
	q.nonEmpty.Signal()
	return nil
}

// PushAll appends every value in order, atomically with respect to other
// producers.
func (q *Queue[T]) PushAll(values []T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	for _, v := range values {
		q.items.Enqueue(v)
	}
	q.nonEmpty.Broadcast()
	return nil
}

// Pop removes the head of the queue, waiting while the queue is open and
// empty. It reports false once the queue is closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Empty() && !q.closed {
		q.nonEmpty.Wait()
	}

	v, ok := q.items.Dequeue()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Drain removes and returns everything currently queued without waiting.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Empty() {
		return nil
	}
	out := make([]T, 0, q.items.Size())
	for _, v := range q.items.Values() {
		out = append(out, v.(T))
	}
	q.items.Clear()
	return out
}

// Close stops further pushes and wakes every waiting consumer. Items already
// queued stay available to Pop and Drain. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.nonEmpty.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}
