// Package deferred queues method calls from many goroutines and runs them
// later, in push order, on the one goroutine that calls Sync.
//
// A push copies the target, the method and its arguments into a fixed-size
// slot of a lock-free ring. It never locks and never allocates, except while
// a growable queue doubles its capacity. Targets are kept reachable while
// queued, but the caller must keep them usable until the Sync that runs them.
//
//	q := deferred.New()
//	deferred.Push2(q, foo, (*Foo).Move, 42, 13.0) // any goroutine
//	q.Sync()                                      // consumer goroutine
package deferred

import (
	"sync/atomic"

	"github.com/i5heu/GoCommandQueue/pkg/capsule"
	"github.com/i5heu/GoCommandQueue/pkg/config"
	"github.com/i5heu/GoCommandQueue/pkg/ring"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/cpu"
)

// segment is one ring of slots. A growing queue chains segments: once a
// segment is closed, producers move on to next and the consumer follows after
// draining it.
type segment struct {
	ring *ring.Ring[capsule.Slot]
	next atomic.Pointer[segment]
}

func newSegment(capacity uint64, slotSize int) *segment {
	arena := capsule.NewArena(int(capacity), slotSize)
	return &segment{ring: ring.NewWith(capacity, arena.Init)}
}

// Queue is a multi-producer, single-consumer queue of deferred method calls.
// Push with Push0 to Push4 from any goroutine; call Sync from one goroutine
// at a time.
type Queue struct {
	_        cpu.CacheLinePad
	tail     atomic.Pointer[segment] // producers
	capacity atomic.Uint64           // capacity of the tail segment, raced on by growth
	_        cpu.CacheLinePad
	head     *segment // consumer only
	syncing  atomic.Bool
	_        cpu.CacheLinePad

	pushed   atomic.Uint64
	executed atomic.Uint64
	dropped  atomic.Uint64
	rejected atomic.Uint64
	grown    atomic.Uint64
	segments atomic.Int64

	slotSize    int
	growable    bool
	maxCapacity uint64
	policy      FullPolicy
	logger      *logiface.Logger[logiface.Event]
}

// New creates a queue from the defaults in package config and opts.
// It panics on an invalid configuration, and when the platform cannot run the
// ring lock-free.
func New(opts ...Option) *Queue {
	q, err := FromConfig(config.Defaults(), opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// FromConfig creates a queue from cfg, with opts applied on top.
func FromConfig(cfg config.Config, opts ...Option) (*Queue, error) {
	s := settings{config: cfg}
	for _, o := range opts {
		o(&s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{
		slotSize:    s.config.SlotSize,
		growable:    s.config.Growable,
		maxCapacity: s.config.MaxCapacity,
		policy:      s.config.Policy(),
		logger:      s.logger,
	}
	seg := newSegment(s.config.InitialCapacity, q.slotSize)
	q.head = seg
	q.tail.Store(seg)
	q.capacity.Store(s.config.InitialCapacity)
	q.segments.Store(1)

	q.logger.Debug().
		Str("name", s.config.Name).
		Int("slot_size", q.slotSize).
		Uint64("capacity", s.config.InitialCapacity).
		Bool("growable", q.growable).
		Str("full_policy", string(q.policy)).
		Log("deferred queue created")
	return q, nil
}

// SlotSize returns the slot size in bytes.
func (q *Queue) SlotSize() int {
	return q.slotSize
}

// Capacity returns the capacity of the segment producers currently push to.
func (q *Queue) Capacity() uint64 {
	return q.capacity.Load()
}

// Len returns the number of committed commands not yet run.
func (q *Queue) Len() uint64 {
	// executed first: it never passes pushed
	done := q.executed.Load()
	return q.pushed.Load() - done
}

// Growable reports whether the queue doubles its capacity when full.
func (q *Queue) Growable() bool {
	return q.growable
}

// Policy returns the full policy.
func (q *Queue) Policy() FullPolicy {
	return q.policy
}
