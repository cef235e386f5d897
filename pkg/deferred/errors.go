package deferred

import (
	"errors"

	"github.com/i5heu/GoCommandQueue/pkg/capsule"
	"github.com/i5heu/GoCommandQueue/pkg/config"
)

var (
	// ErrQueueFull is returned, or panicked with, when a push finds no room and
	// the queue cannot grow.
	ErrQueueFull = errors.New("deferred queue is full")

	// ErrConcurrentSync is panicked with when Sync is entered while another
	// Sync is running, either from a second goroutine or from a command.
	ErrConcurrentSync = errors.New("deferred queue: concurrent or re-entrant Sync")

	// ErrCapsuleTooLarge is wrapped by the panic of a push whose command does
	// not fit the queue's slot size.
	ErrCapsuleTooLarge = capsule.ErrCapsuleTooLarge

	// ErrInvalidConfig is wrapped by FromConfig errors for a bad configuration.
	ErrInvalidConfig = config.ErrInvalidConfig
)
