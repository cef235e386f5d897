package deferred

import (
	"runtime"

	"github.com/i5heu/GoCommandQueue/pkg/capsule"
	"github.com/i5heu/GoCommandQueue/pkg/ring"
)

// reserve claims a slot for a command of layout l. It returns a nil segment
// when the command was not queued: err is then nil for a drop and
// ErrQueueFull for a rejection.
func (q *Queue) reserve(l *capsule.Layout) (*segment, uint64, error) {
	if !l.Fits(q.slotSize) {
		panic(l.Check(q.slotSize))
	}

	seg := q.tail.Load()
	for {
		pos, st := seg.ring.Reserve()
		switch st {
		case ring.Reserved:
			return seg, pos, nil
		case ring.Closed:
			seg = q.follow(seg)
			continue
		}

		if !q.growable {
			return nil, 0, q.full(seg.ring.Capacity())
		}
		next, ok := q.grow(seg)
		if !ok {
			return nil, 0, q.full(seg.ring.Capacity())
		}
		seg = next
	}
}

// grow moves past the full segment seg. Producers that find the same segment
// full race on the capacity counter; the winner of the doubling allocates and
// links the next segment, the others wait for it.
// It reports false when the next capacity would exceed maxCapacity.
func (q *Queue) grow(seg *segment) (*segment, bool) {
	if next := seg.next.Load(); next != nil {
		return next, true
	}

	c := seg.ring.Capacity()
	if q.capacity.Load() != c {
		// another producer already doubled past this segment
		return q.follow(seg), true
	}
	if q.maxCapacity != 0 && 2*c > q.maxCapacity {
		q.logger.Debug().
			Uint64("capacity", c).
			Uint64("max_capacity", q.maxCapacity).
			Log("deferred queue growth refused")
		return nil, false
	}
	if !q.capacity.CompareAndSwap(c, 2*c) {
		return q.follow(seg), true
	}

	// Growing: allocation is the one blocking step of a push. Link before
	// closing so anyone who sees the segment closed can follow it.
	next := newSegment(2*c, q.slotSize)
	seg.next.Store(next)
	seg.ring.Close()
	q.tail.Store(next)
	q.segments.Add(1)
	q.grown.Add(1)

	q.logger.Info().
		Uint64("capacity", 2*c).
		Uint64("previous", c).
		Log("deferred queue grown")
	return next, true
}

// follow waits for the winner of the growth race on seg to link its
// successor.
func (q *Queue) follow(seg *segment) *segment {
	var spins uint32
	for {
		if next := seg.next.Load(); next != nil {
			return next
		}
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

const goschedEvery = 16

// full applies the full policy to a push that found no room.
func (q *Queue) full(capacity uint64) error {
	switch q.policy {
	case Drop:
		q.dropped.Add(1)
		q.logger.Debug().
			Uint64("capacity", capacity).
			Log("deferred queue full, command dropped")
		return nil
	case Panic:
		panic(ErrQueueFull)
	default:
		q.rejected.Add(1)
		q.logger.Debug().
			Uint64("capacity", capacity).
			Log("deferred queue full, command rejected")
		return ErrQueueFull
	}
}
