package buffered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSync(t *testing.T) {
	q := New(2)
	var got []int
	require.NoError(t, q.Push(func() { got = append(got, 1) }))
	require.NoError(t, q.Push(func() { got = append(got, 2) }))
	assert.ErrorIs(t, q.Push(func() { got = append(got, 3) }), ErrQueueIsFull)
	assert.Equal(t, uint64(0), q.FreeSlots())
	assert.Equal(t, uint64(2), q.UsedSlots())

	assert.Equal(t, 2, q.Sync())
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 0, q.Sync())
}

func TestZeroCapacity(t *testing.T) {
	q := New(0)
	require.NoError(t, q.Push(func() {}), "capacity is raised to 1")
	assert.Error(t, q.Push(func() {}))
}

func TestSyncLeavesLaterPushes(t *testing.T) {
	q := New(4)
	var runs int
	var self func()
	self = func() {
		runs++
		_ = q.Push(self)
	}
	require.NoError(t, q.Push(self))
	assert.Equal(t, 1, q.Sync())
	assert.Equal(t, 1, q.Sync())
	assert.Equal(t, 2, runs)
}
