// Package queue provides an unbounded, thread-safe FIFO used for the
// task and result streams of the automation worker.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by PopContext once the queue is closed and drained
var ErrClosed = errors.New("queue closed")

// FIFO is an unbounded first-in first-out queue. Push never blocks
type FIFO[T any] struct {
	items  []T
	head   int
	mu     sync.Mutex
	cond   *sync.Cond // Condition variable to wait for items
	closed bool
	name   string
	log    *logrus.Entry
}

// NewFIFO creates an empty queue. name only appears in logs
func NewFIFO[T any](name string, logger *logrus.Entry) *FIFO[T] {
	q := &FIFO[T]{name: name, log: logger}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item. Returns false when the queue is closed
func (q *FIFO[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Warnf("Attempted to push to closed queue %q", q.name)
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

// popLocked removes the head item; caller holds mu and has checked Len > 0
func (q *FIFO[T]) popLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero // avoid memory leak
	q.head++
	// Compact once the dead prefix dominates
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append([]T(nil), q.items[q.head:]...)
		q.head = 0
	}
	return item
}

func (q *FIFO[T]) lenLocked() int { return len(q.items) - q.head }

// Pop blocks until an item is available or the queue is closed and empty.
// Returns the item and true, or the zero value and false once drained after Close.
func (q *FIFO[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 {
		if q.closed {
			var zero T
			return zero, false
		}
		q.cond.Wait()
	}
	return q.popLocked(), true
}

// PopContext is Pop bounded by ctx. Returns ctx.Err() when ctx ends first,
// ErrClosed when the queue is closed and drained.
func (q *FIFO[T]) PopContext(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	// Wake waiters when ctx ends so they can observe it
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.lenLocked() == 0 {
		if q.closed {
			return zero, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.cond.Wait()
	}
	return q.popLocked(), nil
}

// Close signals that no more items will be added. Queued items can still be popped
func (q *FIFO[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast() // Wake up all waiters so they can check the closed status
	}
}

// Closed reports whether Close was called
func (q *FIFO[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current number of items in the queue
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}
