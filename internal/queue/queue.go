// Package queue is the contract between the benchmark harness and the
// queues it measures.
package queue

import (
	"github.com/i5heu/GoCommandQueue/pkg/buffered"
	"github.com/i5heu/GoCommandQueue/pkg/deferred"
)

// Accumulator is the target every benchmark command runs against.
// Only the consumer goroutine touches it.
type Accumulator struct {
	Sum   uint64
	Count uint64
}

func (a *Accumulator) Add(v uint64) {
	a.Sum += v
	a.Count++
}

// Dispatcher defers Accumulator.Add calls from many producers to one
// consumer.
type Dispatcher interface {
	// Push queues a.Add(v) without blocking. It reports false when the queue
	// turned the command away; a dropped command still reports true.
	Push(a *Accumulator, v uint64) bool

	// Sync runs pending commands on the calling goroutine and returns how
	// many ran.
	Sync() int

	// Len returns how many commands are queued.
	Len() uint64

	// Dropped returns how many accepted commands were discarded.
	Dropped() uint64
}

// Deferred adapts a deferred.Queue.
type Deferred struct {
	Q *deferred.Queue
}

func (d Deferred) Push(a *Accumulator, v uint64) bool {
	return deferred.Push1(d.Q, a, (*Accumulator).Add, v) == nil
}

func (d Deferred) Sync() int { return d.Q.Sync() }

func (d Deferred) Len() uint64 { return d.Q.Len() }

func (d Deferred) Dropped() uint64 { return d.Q.Stats().Dropped }

// Buffered adapts the channel baseline. Each push allocates a closure.
type Buffered struct {
	Q *buffered.BufferedQueue
}

func (b Buffered) Push(a *Accumulator, v uint64) bool {
	return b.Q.Push(func() { a.Add(v) }) == nil
}

func (b Buffered) Sync() int { return b.Q.Sync() }

func (b Buffered) Len() uint64 { return b.Q.UsedSlots() }

func (b Buffered) Dropped() uint64 { return 0 }

var (
	_ Dispatcher = Deferred{}
	_ Dispatcher = Buffered{}
)
