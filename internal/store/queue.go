package store

import (
	"sync"

	"github.com/roach88/pdaledger/internal/ir"
)

// txQueue is a thread-safe FIFO of pending transaction signatures.
//
// Submitters enqueue from any goroutine; the processor drains it once per
// slot. The queue is unbounded so submission never blocks on the
// processor. A buffered signal channel lets the processor wait with
// select alongside ctx.Done().
type txQueue struct {
	mu     sync.Mutex
	items  []ir.Signature
	closed bool
	signal chan struct{}
}

func newTxQueue() *txQueue {
	return &txQueue{
		items:  make([]ir.Signature, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a signature to the back of the queue.
// Returns false if the queue is closed.
func (q *txQueue) Enqueue(sig ir.Signature) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, sig)

	// Buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns everything queued.
func (q *txQueue) Drain() []ir.Signature {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]ir.Signature, 0, cap(out))
	return out
}

// Wait returns a channel that signals when items may be available.
// The channel is closed when the queue is closed.
func (q *txQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *txQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *txQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting items and wakes any waiter.
func (q *txQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
