// Package config holds the declarative configuration of a deferred queue.
//
// Other programs (the benchmark, services wiring queues from a file) can
// import it without pulling in the queue itself.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/i5heu/GoCommandQueue/pkg/capsule"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid queue config")

// FullPolicy selects what a push does when the queue has no room left and
// cannot grow.
type FullPolicy string

const (
	// Reject makes the push return an error the caller can act on.
	Reject FullPolicy = "reject"
	// Drop discards the command silently; drops are only visible in stats.
	Drop FullPolicy = "drop"
	// Panic fails fast.
	Panic FullPolicy = "panic"
)

const (
	DefaultInitialCapacity = 1024
	DefaultSlotSize        = capsule.DefaultSlotSize
)

// Config describes one queue.
type Config struct {
	Name            string     `yaml:"name,omitempty"`
	SlotSize        int        `yaml:"slot_size"`
	InitialCapacity uint64     `yaml:"initial_capacity"`
	Growable        bool       `yaml:"growable"`
	MaxCapacity     uint64     `yaml:"max_capacity,omitempty"` // 0 means unbounded
	FullPolicy      FullPolicy `yaml:"full_policy,omitempty"`
}

// Defaults returns a growable, unbounded queue with 64 byte slots and room for
// 1024 commands before the first growth.
func Defaults() Config {
	return Config{
		SlotSize:        DefaultSlotSize,
		InitialCapacity: DefaultInitialCapacity,
		Growable:        true,
		FullPolicy:      Reject,
	}
}

// Validate reports the first problem found, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if err := capsule.ValidateSlotSize(c.SlotSize); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !powerOfTwo(c.InitialCapacity) {
		return fmt.Errorf("%w: initial capacity %d is not a power of two >= 2", ErrInvalidConfig, c.InitialCapacity)
	}
	if c.MaxCapacity != 0 {
		if !c.Growable {
			return fmt.Errorf("%w: max capacity set on a fixed capacity queue", ErrInvalidConfig)
		}
		if !powerOfTwo(c.MaxCapacity) || c.MaxCapacity < c.InitialCapacity {
			return fmt.Errorf("%w: max capacity %d must be a power of two >= initial capacity %d",
				ErrInvalidConfig, c.MaxCapacity, c.InitialCapacity)
		}
	}
	switch c.FullPolicy {
	case "", Reject, Drop, Panic:
	default:
		return fmt.Errorf("%w: unknown full policy %q", ErrInvalidConfig, c.FullPolicy)
	}
	return nil
}

// Policy returns the full policy, Reject when unset.
func (c Config) Policy() FullPolicy {
	if c.FullPolicy == "" {
		return Reject
	}
	return c.FullPolicy
}

func powerOfTwo(n uint64) bool {
	return n >= 2 && n&(n-1) == 0
}

// Load reads a YAML list of queue configs from path.
func Load(path string) ([]Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML list of queue configs. Fields an entry leaves out keep
// their Defaults value, and every entry is validated.
func Decode(r io.Reader) ([]Config, error) {
	var nodes []yaml.Node
	if err := yaml.NewDecoder(r).Decode(&nodes); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode queue configs: %w", err)
	}

	configs := make([]Config, 0, len(nodes))
	for i := range nodes {
		c := Defaults()
		if err := nodes[i].Decode(&c); err != nil {
			return nil, fmt.Errorf("queue config %d: %w", i, err)
		}
		if err := c.Validate(); err != nil {
			name := c.Name
			if name == "" {
				name = fmt.Sprint(i)
			}
			return nil, fmt.Errorf("queue config %s: %w", name, err)
		}
		configs = append(configs, c)
	}
	return configs, nil
}
