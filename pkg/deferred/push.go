package deferred

import (
	"github.com/i5heu/GoCommandQueue/pkg/capsule"
)

// The push functions queue method(target, args...) to run on the next Sync
// that reaches it. Arguments are copied at push time. Pass the method as a
// method expression, e.g. (*Foo).Move: a method value like foo.Move allocates
// a closure on every push.
//
// A command whose encoded size exceeds the slot size panics with
// ErrCapsuleTooLarge before the queue is touched; capsule.Fits reports the
// same condition ahead of time. When the queue is full and cannot grow, the
// full policy decides: Reject returns ErrQueueFull, Drop returns nil and
// discards the command, Panic panics with ErrQueueFull.

// Push0 queues method(target).
func Push0[O any](q *Queue, target *O, method func(*O)) error {
	c := capsule.Bind0(target, method)
	seg, pos, err := q.reserve(c.Layout())
	if seg == nil {
		return err
	}
	c.Encode(seg.ring.At(pos))
	q.commit(seg, pos)
	return nil
}

// Push1 queues method(target, a).
func Push1[O, A any](q *Queue, target *O, method func(*O, A), a A) error {
	c := capsule.Bind1(target, method, a)
	seg, pos, err := q.reserve(c.Layout())
	if seg == nil {
		return err
	}
	c.Encode(seg.ring.At(pos))
	q.commit(seg, pos)
	return nil
}

// Push2 queues method(target, a, b).
func Push2[O, A, B any](q *Queue, target *O, method func(*O, A, B), a A, b B) error {
	c := capsule.Bind2(target, method, a, b)
	seg, pos, err := q.reserve(c.Layout())
	if seg == nil {
		return err
	}
	c.Encode(seg.ring.At(pos))
	q.commit(seg, pos)
	return nil
}

// Push3 queues method(target, a, b, c).
func Push3[O, A, B, C any](q *Queue, target *O, method func(*O, A, B, C), a A, b B, c C) error {
	call := capsule.Bind3(target, method, a, b, c)
	seg, pos, err := q.reserve(call.Layout())
	if seg == nil {
		return err
	}
	call.Encode(seg.ring.At(pos))
	q.commit(seg, pos)
	return nil
}

// Push4 queues method(target, a, b, c, d).
func Push4[O, A, B, C, D any](q *Queue, target *O, method func(*O, A, B, C, D), a A, b B, c C, d D) error {
	call := capsule.Bind4(target, method, a, b, c, d)
	seg, pos, err := q.reserve(call.Layout())
	if seg == nil {
		return err
	}
	call.Encode(seg.ring.At(pos))
	q.commit(seg, pos)
	return nil
}

// commit publishes the slot at pos. The counter goes first so Len never sees
// more executed than pushed commands.
func (q *Queue) commit(seg *segment, pos uint64) {
	q.pushed.Add(1)
	seg.ring.Commit(pos)
}
