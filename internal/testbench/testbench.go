package testbench

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoCommandQueue/internal/queue"
	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"
)

// Config is only about concurrency: there is always a single consumer.
type Config struct {
	NumProducers int
}

// Result of one timed run.
type Result struct {
	Pushed   int64 // commands the queue accepted
	Rejected int64 // pushes the queue turned away
	Dropped  uint64
	Executed uint64
	Elapsed  time.Duration
}

// RunTimedTest spawns producers that push commands for the specified
// duration while one consumer keeps calling Sync. Once the duration expires,
// producers stop and the consumer drains what is left.
//
// Every command adds a random value to a shared accumulator. The run fails
// if the consumer did not execute exactly the accepted commands, or if the
// executed values do not add up to what producers pushed.
func RunTimedTest(q queue.Dispatcher, cfg Config, testDuration time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var (
		acc      queue.Accumulator
		pushed   atomic.Int64
		rejected atomic.Int64
		sum      atomic.Uint64
		done     atomic.Bool
	)

	start := time.Now()

	var producers errgroup.Group
	for i := 0; i < cfg.NumProducers; i++ {
		producers.Go(func() error {
			var n, r int64
			var s uint64
			for ctx.Err() == nil {
				v := uint64(fastrand.Uint32())
				if q.Push(&acc, v) {
					n++
					s += v
				} else {
					r++
					runtime.Gosched()
				}
			}
			pushed.Add(n)
			rejected.Add(r)
			sum.Add(s)
			return nil
		})
	}

	consumer := make(chan struct{})
	go func() {
		defer close(consumer)
		for {
			finished := done.Load()
			if q.Sync() == 0 {
				if finished && q.Len() == 0 {
					return
				}
				runtime.Gosched()
			}
		}
	}()

	_ = producers.Wait()
	done.Store(true)
	<-consumer

	res := Result{
		Pushed:   pushed.Load(),
		Rejected: rejected.Load(),
		Dropped:  q.Dropped(),
		Executed: acc.Count,
		Elapsed:  time.Since(start),
	}
	if res.Executed+res.Dropped != uint64(res.Pushed) {
		return res, fmt.Errorf("executed %d + dropped %d commands, %d were accepted",
			res.Executed, res.Dropped, res.Pushed)
	}
	if res.Dropped == 0 && acc.Sum != sum.Load() {
		return res, fmt.Errorf("checksum mismatch: executed %d, pushed %d", acc.Sum, sum.Load())
	}
	return res, nil
}

// NsPerCommand is the wall time per executed command.
func (r Result) NsPerCommand() float64 {
	if r.Executed == 0 {
		return 0
	}
	return float64(r.Elapsed.Nanoseconds()) / float64(r.Executed)
}

// Throughput is executed commands per second.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Executed) / r.Elapsed.Seconds()
}
