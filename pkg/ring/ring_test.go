package ring

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Basic sanity: sequential enqueue/dequeue with ints, across many laps.
func TestRingSequential(t *testing.T) {
	const (
		capacity = 1024
		N        = 100_000
	)

	q := New[int](capacity)

	for i := 0; i < N; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue failed at %d (queue unexpectedly full)", i)
		}
		v, ok := q.Dequeue()
		if !ok {
			t.Fatalf("dequeue failed at %d (queue unexpectedly empty)", i)
		}
		if v != i {
			t.Fatalf("expected %d, got %d (FIFO violated)", i, v)
		}
	}

	if v, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue at the end, got value=%v", v)
	}
}

// Test that capacity is enforced and overflow is reported.
func TestRingCapacityOverflow(t *testing.T) {
	const capacity = 8
	q := New[int](capacity)

	for i := 0; i < capacity; i++ {
		require.True(t, q.Enqueue(i), "enqueue %d", i)
	}
	_, st := q.Reserve()
	assert.Equal(t, Full, st)
	assert.False(t, q.Enqueue(999))
	assert.Equal(t, uint64(capacity), q.UsedSlots())
	assert.Equal(t, uint64(0), q.FreeSlots())

	// freeing one cell makes room for exactly one more
	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 0, v)
	assert.True(t, q.Enqueue(8))
	assert.False(t, q.Enqueue(9))
}

func TestRingPowerOfTwo(t *testing.T) {
	for _, c := range []uint64{0, 1, 3, 6, 1000} {
		assert.Panics(t, func() { New[int](c) }, "capacity %d", c)
	}
	for _, c := range []uint64{2, 4, 1024} {
		assert.Equal(t, c, New[int](c).Capacity())
	}
}

func TestRingNewWith(t *testing.T) {
	var n int
	q := NewWith(4, func(v *int) {
		n++
		*v = 100 + n
	})
	assert.Equal(t, 4, n)
	pos, st := q.Reserve()
	require.Equal(t, Reserved, st)
	assert.Equal(t, 101, *q.At(pos), "cells keep the values init wrote")
}

// A reserved but uncommitted position blocks the consumer without being lost.
func TestRingReserveCommit(t *testing.T) {
	q := New[string](4)

	first, st := q.Reserve()
	require.Equal(t, Reserved, st)
	second, st := q.Reserve()
	require.Equal(t, Reserved, st)

	*q.At(second) = "second"
	q.Commit(second)

	_, ok := q.Next()
	assert.False(t, ok, "head is reserved but not committed")

	*q.At(first) = "first"
	q.Commit(first)

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "first", v)
	v, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestRingClose(t *testing.T) {
	q := New[int](4)
	require.True(t, q.Enqueue(1))
	pending, st := q.Reserve()
	require.Equal(t, Reserved, st)

	assert.False(t, q.Drained())
	final := q.Close()
	assert.Equal(t, uint64(2), final)
	assert.True(t, q.Closed())
	assert.Equal(t, final, q.Close(), "Close is idempotent")

	_, st = q.Reserve()
	assert.Equal(t, Closed, st)
	assert.False(t, q.Enqueue(3))

	// positions reserved before Close are still delivered
	*q.At(pending) = 2
	q.Commit(pending)

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, q.Drained())
	v, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.True(t, q.Drained())
	assert.Equal(t, uint64(0), q.Len())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "reserved", Reserved.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "unknown", Status(42).String())
}

// Concurrent test: many producers, single consumer.
// Checks that all values [0..N) are received exactly once, and in order per producer.
func TestRingConcurrentProducers(t *testing.T) {
	const (
		capacity    = 1 << 8
		producers   = 8
		perProducer = 25_000
		N           = producers * perProducer
	)

	q := New[int](capacity)
	seen := make([]int32, N)
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	var produced sync.WaitGroup
	produced.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				for !q.Enqueue(v) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	var done atomic.Bool
	go func() {
		produced.Wait()
		done.Store(true)
	}()

	received := 0
	for received < N {
		v, ok := q.Dequeue()
		if !ok {
			if done.Load() && q.Len() == 0 {
				break
			}
			runtime.Gosched()
			continue
		}
		received++
		seen[v]++
		p, i := v/perProducer, v%perProducer
		if i <= last[p] {
			t.Fatalf("producer %d: value %d after %d (FIFO violated)", p, i, last[p])
		}
		last[p] = i
	}

	require.Equal(t, N, received)
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("value %d seen %d times", v, n)
		}
	}
}

func TestNativeAtomics(t *testing.T) {
	assert.True(t, nativeAtomics("amd64", 0, false))
	assert.True(t, nativeAtomics("arm64", 0, false))
	assert.True(t, nativeAtomics("arm", 7, false))
	assert.False(t, nativeAtomics("arm", 6, true))
	assert.True(t, nativeAtomics("arm", 0, true))
	assert.False(t, nativeAtomics("arm", 0, false))
	assert.False(t, nativeAtomics("mips", 0, false))
	assert.False(t, nativeAtomics("mipsle", 0, false))

	switch runtime.GOARCH {
	case "amd64", "arm64":
		assert.True(t, LockFree())
	}
}
