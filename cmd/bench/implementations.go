package main

import (
	"fmt"

	"github.com/i5heu/GoCommandQueue/internal/queue"
	"github.com/i5heu/GoCommandQueue/pkg/buffered"
	"github.com/i5heu/GoCommandQueue/pkg/config"
	"github.com/i5heu/GoCommandQueue/pkg/deferred"
	"github.com/joeycumines/logiface"
)

// Implementation represents one queue setup under test.
type Implementation struct {
	name        string
	description string
	pkgName     string
	features    []string
	newQueue    func() (queue.Dispatcher, error)
}

// defaultVariants are the deferred queue setups measured when no variant
// file is given.
func defaultVariants() []config.Config {
	growable := config.Defaults()
	growable.Name = "Deferred Growable"

	reject := config.Defaults()
	reject.Name = "Deferred Fixed Reject"
	reject.Growable = false

	drop := reject
	drop.Name = "Deferred Fixed Drop"
	drop.FullPolicy = config.Drop

	return []config.Config{growable, reject, drop}
}

func features(cfg config.Config) []string {
	f := []string{"MPSC", "FIFO", "Zero-Alloc"}
	if cfg.Growable {
		f = append(f, "Growable")
	} else {
		f = append(f, "Lock-Free", "Full:"+string(cfg.Policy()))
	}
	return f
}

// getImplementations returns one implementation per variant, plus the
// channel baseline.
func getImplementations(variants []config.Config, logger *logiface.Logger[logiface.Event]) []Implementation {
	impls := make([]Implementation, 0, len(variants)+1)
	for _, cfg := range variants {
		impls = append(impls, Implementation{
			name: cfg.Name,
			description: fmt.Sprintf("Deferred queue, %d byte slots, %d initial slots.",
				cfg.SlotSize, cfg.InitialCapacity),
			pkgName:  "deferred",
			features: features(cfg),
			newQueue: func() (queue.Dispatcher, error) {
				q, err := deferred.FromConfig(cfg, deferred.WithLogger(logger))
				if err != nil {
					return nil, err
				}
				return queue.Deferred{Q: q}, nil
			},
		})
	}
	return append(impls, Implementation{
		name:        "Golang Buffered Channel",
		pkgName:     "buffered",
		description: "A buffered channel of closures; every push allocates.",
		features:    []string{"MPMC", "FIFO"},
		newQueue: func() (queue.Dispatcher, error) {
			return queue.Buffered{Q: buffered.New(config.DefaultInitialCapacity)}, nil
		},
	})
}
