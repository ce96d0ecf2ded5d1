// Package queue provides the bounded buffer between order producers
// and the single book consumer.
package queue

import (
	"errors"
	"sync"

	"github.com/quantfold/bookd/pkg/book"
)

// ErrFull is returned by Push when the queue is at capacity. The
// operation stays with the caller, who decides whether to retry or
// drop it.
var ErrFull = errors.New("order queue full")

// OrderQueue is a fixed-capacity ring buffer of book operations. The
// buffer is preallocated at construction and never grows; sustained
// producer overrun shows up as ErrFull, not as memory growth.
//
// Push is safe for any number of concurrent producers. Pop is meant
// for exactly one consumer: with several poppers each item is still
// delivered exactly once, but no ordering is guaranteed among them.
// Items from a single producer are popped in the order that producer
// pushed them. A *OrderQueue is the shared handle; copies of the
// pointer refer to the same buffer.
type OrderQueue struct {
	mu    sync.Mutex
	buf   []book.Op
	head  int
	count int
}

// New creates a queue with the given fixed capacity. Panics if
// capacity is not positive.
func New(capacity int) *OrderQueue {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	return &OrderQueue{buf: make([]book.Op, capacity)}
}

// Push enqueues op, or returns ErrFull without blocking.
func (q *OrderQueue) Push(op book.Op) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.buf) {
		return ErrFull
	}
	q.buf[(q.head+q.count)%len(q.buf)] = op
	q.count++
	return nil
}

// Pop dequeues the oldest op, or returns false without blocking.
func (q *OrderQueue) Pop() (book.Op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return book.Op{}, false
	}
	op := q.buf[q.head]
	q.buf[q.head] = book.Op{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return op, true
}

// Len is the number of queued ops.
func (q *OrderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap is the fixed capacity.
func (q *OrderQueue) Cap() int { return len(q.buf) }
