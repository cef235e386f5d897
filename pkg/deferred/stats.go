package deferred

// Stats is a snapshot of a queue's counters. The fields are read one by one
// while producers keep pushing, so they need not add up exactly.
type Stats struct {
	Pushed   uint64 `json:"pushed"`
	Executed uint64 `json:"executed"`
	Dropped  uint64 `json:"dropped"`
	Rejected uint64 `json:"rejected"`
	// Grown counts capacity doublings.
	Grown    uint64 `json:"grown"`
	Capacity uint64 `json:"capacity"`
	Pending  uint64 `json:"pending"`
	// Segments counts rings not yet drained and released by the consumer.
	Segments int `json:"segments"`
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	executed := q.executed.Load()
	pushed := q.pushed.Load()
	return Stats{
		Pushed:   pushed,
		Executed: executed,
		Dropped:  q.dropped.Load(),
		Rejected: q.rejected.Load(),
		Grown:    q.grown.Load(),
		Capacity: q.capacity.Load(),
		Pending:  pushed - executed,
		Segments: int(q.segments.Load()),
	}
}
