// Package buffered is the naive way to defer work in Go: a buffered channel
// of closures. It exists as a baseline for the deferred queue benchmarks;
// every push allocates a closure.
package buffered

import "errors"

// ErrQueueIsFull is returned by Push when the channel buffer is full.
var ErrQueueIsFull = errors.New("buffered queue is full")

type BufferedQueue struct {
	ch chan func()
}

func New(bufferSize uint64) *BufferedQueue {
	// Enforce minimum capacity of 1 to ensure proper bounded buffer semantics.
	// A zero-capacity Go channel is an unbuffered synchronization primitive,
	// not a zero-capacity buffer, which would cause unexpected behavior.
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &BufferedQueue{
		ch: make(chan func(), bufferSize),
	}
}

// Push queues fn without blocking.
func (q *BufferedQueue) Push(fn func()) error {
	select {
	case q.ch <- fn:
		return nil
	default:
		return ErrQueueIsFull
	}
}

// Sync runs the functions buffered when it started and returns how many ran.
func (q *BufferedQueue) Sync() int {
	n := len(q.ch)
	for i := 0; i < n; i++ {
		(<-q.ch)()
	}
	return n
}

func (q *BufferedQueue) FreeSlots() uint64 {
	return uint64(cap(q.ch) - len(q.ch))
}

func (q *BufferedQueue) UsedSlots() uint64 {
	return uint64(len(q.ch))
}
