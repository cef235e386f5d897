package ring

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Original algorithm by Dmitry Vyukov
// https://www.1024cores.net/home/lock-free-algorithms/queues/bounded-mpmc-queue

// closedBit marks the enqueue index of a closed ring. Positions never reach it.
const closedBit = uint64(1) << 63

const goschedEvery = 64 // reduce runtime.Gosched() frequency in hot loops

// Status is the outcome of Reserve.
type Status uint8

const (
	// Reserved means the returned position belongs to the caller until Commit.
	Reserved Status = iota
	// Full means the consumer has not freed the next cell yet.
	Full
	// Closed means Close was called; no position will be handed out again.
	Closed
)

func (s Status) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case Full:
		return "full"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// cell represents one slot in the ring buffer.
type cell[T any] struct {
	sequence atomic.Uint64 // controls visibility and ownership of value
	value    T
}

// Ring is a bounded, lock-free, multi-producer/single-consumer FIFO queue.
//
// Producers claim a position with Reserve, fill it in place through At and
// publish it with Commit. The single consumer walks positions with Next and
// hands them back with Release. Enqueue and Dequeue wrap both phases for
// values that are cheap to copy.
type Ring[T any] struct {
	_        cpu.CacheLinePad
	enqueue  atomic.Uint64 // logical tail, updated by producers; closedBit once closed
	_        cpu.CacheLinePad
	dequeue  atomic.Uint64 // logical head, written by the consumer only
	_        cpu.CacheLinePad
	buffer   []cell[T]
	mask     uint64
	capacity uint64
	_        cpu.CacheLinePad
}

// New creates a ring with the given capacity.
// Capacity must be a power of two (1<<k), at least 2: with a single cell a
// committed value would look free to the next lap.
func New[T any](capacity uint64) *Ring[T] {
	return NewWith[T](capacity, nil)
}

// NewWith creates a ring and calls init once per cell value, in index order,
// before the ring is shared. It lets callers wire preallocated storage into
// every cell.
func NewWith[T any](capacity uint64, init func(v *T)) *Ring[T] {
	if capacity < 2 || (capacity&(capacity-1)) != 0 {
		panic("ring: capacity must be power of 2 and >= 2")
	}
	if capacity >= closedBit {
		panic("ring: capacity too large")
	}
	if !LockFree() {
		panic("ring: 64-bit atomics are not lock-free on " + runtime.GOARCH)
	}

	buffer := make([]cell[T], capacity)
	for i := uint64(0); i < capacity; i++ {
		// initial sequence for each cell matches its index
		buffer[i].sequence.Store(i)
		if init != nil {
			init(&buffer[i].value)
		}
	}

	return &Ring[T]{
		buffer:   buffer,
		mask:     capacity - 1,
		capacity: capacity,
	}
}

// Reserve claims the next position for the calling producer.
// Safe to call concurrently from many producer goroutines. It never blocks:
// it either wins a CAS, or observes a full or closed ring.
func (r *Ring[T]) Reserve() (uint64, Status) {
	var spins uint32
	for {
		pos := r.enqueue.Load()
		if pos&closedBit != 0 {
			return 0, Closed
		}
		c := &r.buffer[pos&r.mask]

		diff := int64(c.sequence.Load()) - int64(pos)
		if diff == 0 {
			// Cell is free for this position. The CAS also fails if the ring
			// was closed in the meantime, since that sets closedBit.
			if r.enqueue.CompareAndSwap(pos, pos+1) {
				return pos, Reserved
			}
		} else if diff < 0 {
			// Consumer has not freed this cell for the current lap.
			return 0, Full
		}
		// diff > 0: another producer took pos, retry with a fresh one.
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

// At returns the cell value for a reserved or dequeued position.
func (r *Ring[T]) At(pos uint64) *T {
	return &r.buffer[pos&r.mask].value
}

// Commit publishes the value written at a reserved position.
func (r *Ring[T]) Commit(pos uint64) {
	r.buffer[pos&r.mask].sequence.Store(pos + 1)
}

// Next returns the position at the head of the ring, if it is published.
// It does not advance the head; call Release when done with the value.
// IMPORTANT: must be called from a single consumer goroutine.
func (r *Ring[T]) Next() (uint64, bool) {
	pos := r.dequeue.Load()
	c := &r.buffer[pos&r.mask]
	if c.sequence.Load() == pos+1 {
		return pos, true
	}
	// Either empty, or the producer holding pos has not committed yet.
	return 0, false
}

// Release hands the head position back to producers and advances the head.
// IMPORTANT: must be called from a single consumer goroutine, with the
// position last returned by Next.
func (r *Ring[T]) Release(pos uint64) {
	r.dequeue.Store(pos + 1)
	// next time this physical cell will be used at pos+capacity
	r.buffer[pos&r.mask].sequence.Store(pos + r.capacity)
}

// Enqueue copies v into the ring.
// Returns false if the ring is full or closed.
func (r *Ring[T]) Enqueue(v T) bool {
	pos, st := r.Reserve()
	if st != Reserved {
		return false
	}
	*r.At(pos) = v
	r.Commit(pos)
	return true
}

// Dequeue pops the head value, leaving a zero value behind.
// Returns (zero, false) if nothing is published at the head.
// IMPORTANT: must be called from a single consumer goroutine.
func (r *Ring[T]) Dequeue() (T, bool) {
	var zero T
	pos, ok := r.Next()
	if !ok {
		return zero, false
	}
	p := r.At(pos)
	v := *p
	*p = zero
	r.Release(pos)
	return v, true
}

// Close stops the ring from handing out new positions and returns the final
// enqueue index. Positions reserved before Close stay valid and can still be
// committed and consumed. Close is idempotent.
func (r *Ring[T]) Close() uint64 {
	return r.enqueue.Or(closedBit) &^ closedBit
}

// Closed reports whether Close has been called.
func (r *Ring[T]) Closed() bool {
	return r.enqueue.Load()&closedBit != 0
}

// Drained reports whether the ring is closed and every position reserved
// before Close has been released by the consumer.
func (r *Ring[T]) Drained() bool {
	enq := r.enqueue.Load()
	if enq&closedBit == 0 {
		return false
	}
	return r.dequeue.Load() == enq&^closedBit
}

// Len returns an approximate count of reserved but not yet released positions.
func (r *Ring[T]) Len() uint64 {
	enq := r.enqueue.Load() &^ closedBit
	deq := r.dequeue.Load()
	if deq >= enq {
		return 0
	}
	used := enq - deq
	if used > r.capacity {
		return r.capacity
	}
	return used
}

// Capacity returns the fixed ring capacity.
func (r *Ring[T]) Capacity() uint64 {
	return r.capacity
}

// FreeSlots returns how many more values fit before the ring is full.
func (r *Ring[T]) FreeSlots() uint64 {
	return r.capacity - r.Len()
}

// UsedSlots returns how many values are currently queued.
func (r *Ring[T]) UsedSlots() uint64 {
	return r.Len()
}
