package deferred

import (
	"github.com/i5heu/GoCommandQueue/pkg/config"
	"github.com/joeycumines/logiface"
)

// FullPolicy selects what a push does when the queue has no room and cannot
// grow.
type FullPolicy = config.FullPolicy

const (
	// Reject makes the push return ErrQueueFull.
	Reject = config.Reject
	// Drop discards the command and counts it in Stats.Dropped.
	Drop = config.Drop
	// Panic panics with ErrQueueFull.
	Panic = config.Panic
)

// Option configures a Queue.
type Option func(*settings)

type settings struct {
	config config.Config
	logger *logiface.Logger[logiface.Event]
}

// WithSlotSize sets the slot size in bytes. It bounds the largest command the
// queue accepts.
func WithSlotSize(bytes int) Option {
	return func(s *settings) { s.config.SlotSize = bytes }
}

// WithInitialCapacity sets the number of slots allocated up front. It must be
// a power of two.
func WithInitialCapacity(slots uint64) Option {
	return func(s *settings) { s.config.InitialCapacity = slots }
}

// WithGrowth lets the queue double its capacity when full, up to max slots.
// A max of 0 means unbounded.
func WithGrowth(max uint64) Option {
	return func(s *settings) {
		s.config.Growable = true
		s.config.MaxCapacity = max
	}
}

// WithFixedCapacity disables growth. Every push stays lock-free and a full
// queue is handled by the full policy.
func WithFixedCapacity() Option {
	return func(s *settings) {
		s.config.Growable = false
		s.config.MaxCapacity = 0
	}
}

// WithFullPolicy selects the behavior of a push on a full queue.
func WithFullPolicy(p FullPolicy) Option {
	return func(s *settings) { s.config.FullPolicy = p }
}

// WithLogger sets the logger for growth and overflow events. A nil logger
// disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(s *settings) { s.logger = l }
}
