// Package capsule encodes deferred method calls into fixed-size slots.
//
// A capsule is a by-value record of a target pointer, a method expression and
// the arguments to replay it with. Capsules travel through a queue inside a
// Slot: a dispatch word plus a fixed number of payload words. Go's garbage
// collector must see every pointer the capsule holds, so a Slot keeps two
// planes of payload words, one typed as unsafe.Pointer and one as uintptr, and
// each capsule word is routed to the plane matching its Layout.
//
// Capsule values are never addressed through the slot: they are copied in word
// by word when pushed and copied back out onto the consumer's stack before
// they run. A capsule must therefore not point into itself, which holds for
// all Call types since they only carry the target, the method and argument
// values.
package capsule

import (
	"fmt"
	"unsafe"
)

// WordSize is the size of one slot word, in bytes.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

// MaxPayloadWords bounds the payload of a slot; a Layout describes its
// pointer words with a 64 bit mask.
const MaxPayloadWords = 64

const (
	// MinSlotSize fits the dispatch word plus the target and method of a
	// Call0.
	MinSlotSize = 3 * WordSize
	// MaxSlotSize fits the dispatch word plus MaxPayloadWords.
	MaxSlotSize = (MaxPayloadWords + 1) * WordSize
	// DefaultSlotSize is the slot size queues use unless configured otherwise.
	DefaultSlotSize = 64
)

// dispatcher decodes the capsule stored in a slot and runs it.
type dispatcher interface {
	dispatch(s *Slot)
}

// Slot is fixed-size storage for one encoded capsule.
// The zero Slot has no payload; slots are wired to storage by an Arena.
type Slot struct {
	exec  dispatcher
	refs  []unsafe.Pointer
	bits  []uintptr
	words int // payload words used by the stored capsule
}

// PayloadWords returns the number of payload words a slot of slotSize bytes
// offers.
func PayloadWords(slotSize int) int {
	return slotSize/WordSize - 1
}

// ValidateSlotSize checks that slotSize is usable as a slot size.
func ValidateSlotSize(slotSize int) error {
	switch {
	case slotSize%WordSize != 0:
		return fmt.Errorf("slot size %d is not a multiple of %d", slotSize, WordSize)
	case slotSize < MinSlotSize:
		return fmt.Errorf("slot size %d is below the minimum of %d", slotSize, MinSlotSize)
	case slotSize > MaxSlotSize:
		return fmt.Errorf("slot size %d is above the maximum of %d", slotSize, MaxSlotSize)
	}
	return nil
}

// Empty reports whether the slot holds no capsule.
func (s *Slot) Empty() bool {
	return s.exec == nil
}

// Execute replays the stored call. It does nothing on an empty slot.
// Execute leaves the slot populated: pair it with Clear so the call runs once.
func (s *Slot) Execute() {
	if s.exec != nil {
		s.exec.dispatch(s)
	}
}

// Clear drops every reference the slot holds, so the targets and arguments of
// an executed capsule become collectable.
func (s *Slot) Clear() {
	clear(s.refs[:s.words])
	s.exec = nil
	s.words = 0
}

func (s *Slot) store(exec dispatcher, src unsafe.Pointer, l *Layout) {
	if l.Words > len(s.refs) {
		panic(fmt.Errorf("%w: %d payload words, slot has %d", ErrCapsuleTooLarge, l.Words, len(s.refs)))
	}
	for i := 0; i < l.Words; i++ {
		p := unsafe.Add(src, i*WordSize)
		if l.Pointers&(1<<i) != 0 {
			s.refs[i] = *(*unsafe.Pointer)(p)
		} else {
			s.bits[i] = *(*uintptr)(p)
		}
	}
	s.exec = exec
	s.words = l.Words
}

func (s *Slot) load(dst unsafe.Pointer, l *Layout) {
	for i := 0; i < l.Words; i++ {
		p := unsafe.Add(dst, i*WordSize)
		if l.Pointers&(1<<i) != 0 {
			*(*unsafe.Pointer)(p) = s.refs[i]
		} else {
			*(*uintptr)(p) = s.bits[i]
		}
	}
}

// Arena carves the payload planes of many slots out of two backing arrays,
// so a whole ring of slots costs two allocations.
type Arena struct {
	refs  []unsafe.Pointer
	bits  []uintptr
	words int
	next  int
}

// NewArena allocates payload storage for n slots of slotSize bytes.
func NewArena(n int, slotSize int) *Arena {
	if err := ValidateSlotSize(slotSize); err != nil {
		panic("capsule: " + err.Error())
	}
	words := PayloadWords(slotSize)
	return &Arena{
		refs:  make([]unsafe.Pointer, n*words),
		bits:  make([]uintptr, n*words),
		words: words,
	}
}

// Init wires the next unused region of the arena into s.
// It panics once all n regions are handed out.
func (a *Arena) Init(s *Slot) {
	lo, hi := a.next*a.words, (a.next+1)*a.words
	if hi > len(a.refs) {
		panic("capsule: arena exhausted")
	}
	a.next++
	*s = Slot{
		refs: a.refs[lo:hi:hi],
		bits: a.bits[lo:hi:hi],
	}
}
