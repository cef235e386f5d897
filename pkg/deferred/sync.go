package deferred

// Sync runs the commands that were pending when it started, in push order,
// on the calling goroutine, and returns how many ran.
//
// Commands pushed while Sync runs, including pushes made by the commands
// themselves, are left for the next call. Sync also stops early at a slot a
// producer has reserved but not yet filled. A command that panics is not
// replayed: its slot is released and the panic propagates to the caller.
//
// Only one Sync may run at a time; a concurrent or re-entrant call panics
// with ErrConcurrentSync.
func (q *Queue) Sync() int {
	if !q.syncing.CompareAndSwap(false, true) {
		panic(ErrConcurrentSync)
	}
	defer q.syncing.Store(false)

	limit := q.Len()
	var n uint64
	for n < limit {
		seg := q.head
		pos, ok := seg.ring.Next()
		if !ok {
			if !seg.ring.Drained() {
				break
			}
			// closed segments are linked before they are closed
			q.head = seg.next.Load()
			q.segments.Add(-1)
			continue
		}
		q.run(seg, pos)
		n++
	}
	return int(n)
}

func (q *Queue) run(seg *segment, pos uint64) {
	s := seg.ring.At(pos)
	defer func() {
		s.Clear()
		seg.ring.Release(pos)
		q.executed.Add(1)
	}()
	s.Execute()
}
