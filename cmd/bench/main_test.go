package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i5heu/GoCommandQueue/internal/queue"
	"github.com/i5heu/GoCommandQueue/internal/testbench"
	"github.com/i5heu/GoCommandQueue/pkg/config"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressWatchdog monitors progress and fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := wd.lastProgress.Load()
				if time.Since(time.Unix(0, last)) > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
}

// withAllQueues loops over the default implementations and runs fn for each
// one that has every feature in testedFeatures.
func withAllQueues(t *testing.T, testedFeatures []string, fn func(t *testing.T, impl Implementation)) {
	t.Helper()
	for _, impl := range getImplementations(defaultVariants(), nil) {
		t.Run(impl.name, func(t *testing.T) {
			for _, feature := range testedFeatures {
				found := false
				for _, implFeature := range impl.features {
					if feature == implFeature {
						found = true
						break
					}
				}
				if !found {
					t.Skipf("Skipping: missing feature %q", feature)
				}
			}
			fn(t, impl)
		})
	}
}

func newQueue(t *testing.T, impl Implementation) queue.Dispatcher {
	t.Helper()
	q, err := impl.newQueue()
	require.NoError(t, err)
	return q
}

func TestEmptyQueue(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		q := newQueue(t, impl)
		assert.Equal(t, 0, q.Sync())
		assert.Zero(t, q.Len())

		var acc queue.Accumulator
		require.True(t, q.Push(&acc, 42))
		assert.Equal(t, uint64(1), q.Len())
		assert.Equal(t, 1, q.Sync())
		assert.Equal(t, queue.Accumulator{Sum: 42, Count: 1}, acc)
		assert.Equal(t, 0, q.Sync(), "nothing runs twice")
	})
}

func TestFillAndDrain(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		q := newQueue(t, impl)
		var acc queue.Accumulator

		// one more than the default capacity
		const N = config.DefaultInitialCapacity + 1
		accepted := 0
		var want uint64
		for i := uint64(0); i < N; i++ {
			if q.Push(&acc, i) {
				accepted++
				want += i
			}
		}
		q.Sync()

		assert.Equal(t, uint64(accepted), acc.Count+q.Dropped())
		if q.Dropped() == 0 {
			assert.Equal(t, want, acc.Sum)
		}
		assert.Zero(t, q.Len())
	})
}

func TestGrowableNeverRejects(t *testing.T) {
	withAllQueues(t, []string{"Growable"}, func(t *testing.T, impl Implementation) {
		q := newQueue(t, impl)
		var acc queue.Accumulator
		for i := uint64(0); i < 10*config.DefaultInitialCapacity; i++ {
			require.True(t, q.Push(&acc, 1), "push %d", i)
		}
		assert.Equal(t, 10*config.DefaultInitialCapacity, q.Sync())
	})
}

// TestFullQueueNoDataLoss runs producers against a queue that keeps filling
// up, and checks that every accepted command runs exactly once.
func TestFullQueueNoDataLoss(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		const numProducers = 20
		const itemsPerProducer = 2000

		q := newQueue(t, impl)
		wd := newWatchdog(t, "FullQueueNoDataLoss")
		wd.Start()
		defer wd.Stop()

		var acc queue.Accumulator
		var accepted, sent atomic.Uint64
		var prodWg sync.WaitGroup
		var producersDone atomic.Bool

		prodWg.Add(numProducers)
		for p := 0; p < numProducers; p++ {
			go func(producerID int) {
				defer prodWg.Done()
				for i := 0; i < itemsPerProducer; i++ {
					v := uint64(producerID*itemsPerProducer + i)
					// retry rejected pushes; drops count as delivered
					for !q.Push(&acc, v) {
						runtime.Gosched()
					}
					accepted.Add(1)
					sent.Add(v)
					wd.Progress()
				}
			}(p)
		}
		go func() {
			prodWg.Wait()
			producersDone.Store(true)
		}()

		for {
			finished := producersDone.Load()
			if q.Sync() > 0 {
				wd.Progress()
				continue
			}
			if finished && q.Len() == 0 {
				break
			}
			runtime.Gosched()
		}

		require.Equal(t, uint64(numProducers*itemsPerProducer), accepted.Load())
		assert.Equal(t, accepted.Load(), acc.Count+q.Dropped())
		if q.Dropped() == 0 {
			assert.Equal(t, sent.Load(), acc.Sum)
		}
	})
}

func TestSmallTimedRun(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		res, err := testbench.RunTimedTest(newQueue(t, impl), testbench.Config{NumProducers: 8}, 50*time.Millisecond)
		require.NoError(t, err)
		assert.NotZero(t, res.Executed)
	})
}

func TestImplementationsFromVariants(t *testing.T) {
	variants, err := config.Load(writeFile(t, "variants.yaml", `
- name: tiny
  initial_capacity: 2
- name: broken
  initial_capacity: 4
  max_capacity: 2
`))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, variants)

	variants, err = config.Load(writeFile(t, "variants.yaml", "- name: tiny\n  initial_capacity: 2\n  growable: false\n"))
	require.NoError(t, err)
	impls := getImplementations(variants, nil)
	require.Len(t, impls, 2, "variants plus the channel baseline")
	assert.Equal(t, "tiny", impls[0].name)
	assert.Contains(t, impls[0].features, "Lock-Free")
	assert.Equal(t, "buffered", impls[1].pkgName)

	q := newQueue(t, impls[0])
	var acc queue.Accumulator
	assert.True(t, q.Push(&acc, 1))
	assert.True(t, q.Push(&acc, 1))
	assert.False(t, q.Push(&acc, 1), "fixed capacity of two")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOutputMarkdownTable(t *testing.T) {
	impls := getImplementations(defaultVariants(), nil)
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, testbench.AppendReports(path, []testbench.FullReport{{
		SessionTime: "old",
		Benchmarks:  []testbench.BenchmarkResult{{Implementation: "stale", Throughput: 1}},
	}, {
		SessionTime: "last",
		Benchmarks: []testbench.BenchmarkResult{
			{Implementation: "Golang Buffered Channel", Throughput: 1e6, NsPerCommand: 1000},
			{Implementation: "Deferred Growable", Throughput: 2e6, NsPerCommand: 500},
			{Implementation: "Deferred Growable", Throughput: 5e6, NsPerCommand: 200},
		},
	}}))

	var buf bytes.Buffer
	require.NoError(t, outputMarkdownTable(&buf, path, impls))
	out := buf.String()

	assert.NotContains(t, out, "stale", "only the last session is shown")
	growable := bytes.Index(buf.Bytes(), []byte("Deferred Growable"))
	channel := bytes.Index(buf.Bytes(), []byte("Golang Buffered Channel"))
	assert.Less(t, growable, channel, "sorted by throughput")
	assert.Contains(t, out, "5000000", "best run per implementation")
	assert.NotContains(t, out, "2000000")

	assert.Error(t, outputMarkdownTable(&buf, filepath.Join(t.TempDir(), "missing.json"), impls))
}

func TestParseLevel(t *testing.T) {
	for _, l := range []logiface.Level{logiface.LevelDisabled, logiface.LevelError, logiface.LevelWarning, logiface.LevelInformational, logiface.LevelDebug} {
		got, err := parseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerWritesQueueEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, logiface.LevelInformational)
	variants := []config.Config{config.Defaults()}
	variants[0].Name = "small"
	variants[0].InitialCapacity = 2

	q := newQueue(t, getImplementations(variants, logger)[0])
	var acc queue.Accumulator
	for i := 0; i < 3; i++ {
		require.True(t, q.Push(&acc, 1))
	}
	assert.Contains(t, buf.String(), "deferred queue grown")
}

func TestCPUSettings(t *testing.T) {
	assert.Equal(t, []int{4}, cpuSettings(4, 8))
	assert.Equal(t, []int{8}, cpuSettings(32, 8))
	assert.Equal(t, []int{1, 2, 3, 4, 6}, cpuSettings(0, 7))
}

func BenchmarkPushSync(b *testing.B) {
	for _, impl := range getImplementations(defaultVariants(), nil) {
		b.Run(impl.name, func(b *testing.B) {
			q, err := impl.newQueue()
			require.NoError(b, err)
			var acc queue.Accumulator
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				q.Push(&acc, uint64(i))
				if i%512 == 511 {
					q.Sync()
				}
			}
			q.Sync()
		})
	}
}
