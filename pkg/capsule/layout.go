package capsule

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrCapsuleTooLarge is raised when a capsule does not fit the slot size of the
// queue it is pushed to.
var ErrCapsuleTooLarge = errors.New("capsule too large for slot")

// Layout describes how a capsule type maps onto slot words.
type Layout struct {
	Type reflect.Type
	// Size is the encoded size in bytes, the dispatch word included.
	Size int
	// Words is the number of payload words.
	Words int
	// Pointers has bit i set when payload word i holds a pointer.
	Pointers uint64
}

// Fits reports whether the capsule fits a slot of slotSize bytes.
func (l *Layout) Fits(slotSize int) bool {
	return l.Size <= slotSize && l.Words <= MaxPayloadWords
}

// Check returns an error wrapping ErrCapsuleTooLarge if the capsule does not
// fit a slot of slotSize bytes.
func (l *Layout) Check(slotSize int) error {
	if l.Fits(slotSize) {
		return nil
	}
	return fmt.Errorf("%w: %s needs %d bytes, slot size is %d", ErrCapsuleTooLarge, l.Type, l.Size, slotSize)
}

var layouts sync.Map // reflect.Type -> *Layout

// LayoutOf returns the cached layout of C, computing it on first use.
func LayoutOf[C any]() *Layout {
	t := reflect.TypeFor[C]()
	if v, ok := layouts.Load(t); ok {
		return v.(*Layout)
	}
	v, _ := layouts.LoadOrStore(t, newLayout(t))
	return v.(*Layout)
}

// SizeOf returns the encoded size of C in bytes, the dispatch word included.
func SizeOf[C any]() int {
	return LayoutOf[C]().Size
}

// Fits reports whether C fits a slot of slotSize bytes.
// Call it from an init function or a test to catch oversized capsules before
// the first push does.
func Fits[C any](slotSize int) bool {
	return LayoutOf[C]().Fits(slotSize)
}

func newLayout(t reflect.Type) *Layout {
	words := (int(t.Size()) + WordSize - 1) / WordSize
	l := &Layout{
		Type:  t,
		Size:  (words + 1) * WordSize,
		Words: words,
	}
	markPointers(t, 0, &l.Pointers)
	return l
}

// markPointers sets the bit of every word of t, placed at byte offset off,
// that the garbage collector treats as a pointer.
func markPointers(t reflect.Type, off uintptr, mask *uint64) {
	word := off / uintptr(WordSize)
	if word >= MaxPayloadWords {
		// the layout cannot fit any slot anyway
		return
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.String, reflect.Slice:
		// pointer first: string and slice headers start with their data pointer
		*mask |= 1 << word
	case reflect.Interface:
		// type or itab word, then data word
		*mask |= 1 << word
		if word+1 < MaxPayloadWords {
			*mask |= 1 << (word + 1)
		}
	case reflect.Array:
		elem := t.Elem()
		if elem.Size() == 0 {
			return
		}
		for i := 0; i < t.Len(); i++ {
			at := off + uintptr(i)*elem.Size()
			if at/uintptr(WordSize) >= MaxPayloadWords {
				break
			}
			markPointers(elem, at, mask)
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			markPointers(f.Type, off+f.Offset, mask)
		}
	}
}

// compile-time guard: payload bitmask indexing assumes 64 words at most
var _ [64 - MaxPayloadWords]struct{}
