package capsule

import "unsafe"

// Call0 is a deferred call of a method without arguments.
type Call0[O any] struct {
	target *O
	method func(*O)
}

// Call1 is a deferred call of a method with one argument.
type Call1[O, A any] struct {
	target *O
	method func(*O, A)
	a      A
}

// Call2 is a deferred call of a method with two arguments.
type Call2[O, A, B any] struct {
	target *O
	method func(*O, A, B)
	a      A
	b      B
}

// Call3 is a deferred call of a method with three arguments.
type Call3[O, A, B, C any] struct {
	target *O
	method func(*O, A, B, C)
	a      A
	b      B
	c      C
}

// Call4 is a deferred call of a method with four arguments.
type Call4[O, A, B, C, D any] struct {
	target *O
	method func(*O, A, B, C, D)
	a      A
	b      B
	c      C
	d      D
}

// Bind0 captures target and method. Pass a method expression, e.g.
// (*Foo).Reset; method values like foo.Reset allocate a closure.
func Bind0[O any](target *O, method func(*O)) Call0[O] {
	return Call0[O]{target: target, method: method}
}

// Bind1 captures target, method and a copy of the argument.
func Bind1[O, A any](target *O, method func(*O, A), a A) Call1[O, A] {
	return Call1[O, A]{target: target, method: method, a: a}
}

// Bind2 captures target, method and copies of the arguments.
func Bind2[O, A, B any](target *O, method func(*O, A, B), a A, b B) Call2[O, A, B] {
	return Call2[O, A, B]{target: target, method: method, a: a, b: b}
}

// Bind3 captures target, method and copies of the arguments.
func Bind3[O, A, B, C any](target *O, method func(*O, A, B, C), a A, b B, c C) Call3[O, A, B, C] {
	return Call3[O, A, B, C]{target: target, method: method, a: a, b: b, c: c}
}

// Bind4 captures target, method and copies of the arguments.
func Bind4[O, A, B, C, D any](target *O, method func(*O, A, B, C, D), a A, b B, c C, d D) Call4[O, A, B, C, D] {
	return Call4[O, A, B, C, D]{target: target, method: method, a: a, b: b, c: c, d: d}
}

// Layout returns the cached layout of the capsule type.
func (c *Call0[O]) Layout() *Layout { return LayoutOf[Call0[O]]() }

// Layout returns the cached layout of the capsule type.
func (c *Call1[O, A]) Layout() *Layout { return LayoutOf[Call1[O, A]]() }

// Layout returns the cached layout of the capsule type.
func (c *Call2[O, A, B]) Layout() *Layout { return LayoutOf[Call2[O, A, B]]() }

// Layout returns the cached layout of the capsule type.
func (c *Call3[O, A, B, C]) Layout() *Layout { return LayoutOf[Call3[O, A, B, C]]() }

// Layout returns the cached layout of the capsule type.
func (c *Call4[O, A, B, C, D]) Layout() *Layout { return LayoutOf[Call4[O, A, B, C, D]]() }

// Encode writes the call into s. The caller checks Layout().Fits first;
// Encode panics with ErrCapsuleTooLarge rather than truncating.
func (c *Call0[O]) Encode(s *Slot) {
	s.store(run0[O]{}, unsafe.Pointer(c), c.Layout())
}

// Encode writes the call into s.
func (c *Call1[O, A]) Encode(s *Slot) {
	s.store(run1[O, A]{}, unsafe.Pointer(c), c.Layout())
}

// Encode writes the call into s.
func (c *Call2[O, A, B]) Encode(s *Slot) {
	s.store(run2[O, A, B]{}, unsafe.Pointer(c), c.Layout())
}

// Encode writes the call into s.
func (c *Call3[O, A, B, C]) Encode(s *Slot) {
	s.store(run3[O, A, B, C]{}, unsafe.Pointer(c), c.Layout())
}

// Encode writes the call into s.
func (c *Call4[O, A, B, C, D]) Encode(s *Slot) {
	s.store(run4[O, A, B, C, D]{}, unsafe.Pointer(c), c.Layout())
}

// Call invokes the method with the captured arguments.
func (c *Call0[O]) Call() { c.method(c.target) }

// Call invokes the method with the captured arguments.
func (c *Call1[O, A]) Call() { c.method(c.target, c.a) }

// Call invokes the method with the captured arguments.
func (c *Call2[O, A, B]) Call() { c.method(c.target, c.a, c.b) }

// Call invokes the method with the captured arguments.
func (c *Call3[O, A, B, C]) Call() { c.method(c.target, c.a, c.b, c.c) }

// Call invokes the method with the captured arguments.
func (c *Call4[O, A, B, C, D]) Call() { c.method(c.target, c.a, c.b, c.c, c.d) }

// The run types are the dispatch entries stored in a slot, one per capsule
// type. They carry no state, so storing one in a slot does not allocate.

type run0[O any] struct{}

func (run0[O]) dispatch(s *Slot) {
	var c Call0[O]
	s.load(unsafe.Pointer(&c), c.Layout())
	c.Call()
}

type run1[O, A any] struct{}

func (run1[O, A]) dispatch(s *Slot) {
	var c Call1[O, A]
	s.load(unsafe.Pointer(&c), c.Layout())
	c.Call()
}

type run2[O, A, B any] struct{}

func (run2[O, A, B]) dispatch(s *Slot) {
	var c Call2[O, A, B]
	s.load(unsafe.Pointer(&c), c.Layout())
	c.Call()
}

type run3[O, A, B, C any] struct{}

func (run3[O, A, B, C]) dispatch(s *Slot) {
	var c Call3[O, A, B, C]
	s.load(unsafe.Pointer(&c), c.Layout())
	c.Call()
}

type run4[O, A, B, C, D any] struct{}

func (run4[O, A, B, C, D]) dispatch(s *Slot) {
	var c Call4[O, A, B, C, D]
	s.load(unsafe.Pointer(&c), c.Layout())
	c.Call()
}
