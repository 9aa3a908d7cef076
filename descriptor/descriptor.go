// Package descriptor decodes the producer's type descriptors: the fixed
// descriptor record (object size, element size, pointer flag) and the
// pointer-field map that immediately precedes it in memory.
//
// Descriptors are emitted ahead of time by the compiler and are never
// mutated by the collector; this package only ever reads through a raw
// uintptr and never allocates on the GC heap itself.
package descriptor

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrDescriptorInvalid is returned when a candidate descriptor pointer
// fails validation — most commonly because it lies inside the GC heap,
// which falsifies it as a real, producer-emitted descriptor.
var ErrDescriptorInvalid = errors.New("descriptor: invalid descriptor pointer")

// HeapRangeChecker answers whether an address currently lies inside the
// GC-managed heap. A real descriptor pointer never does; the mark engine
// (package mark) implements this over its live segment bounding box.
type HeapRangeChecker interface {
	InGCHeap(addr uintptr) bool
}

// Descriptor is the fixed portion of a producer-emitted type descriptor,
// decoded from the word layout at the descriptor address:
//
//	+0  rawBaseSize       uintptr
//	+8  componentSize     uintptr
//	+16 hasComponentSize  uintptr (0 or 1)
//	+24 containsGCPointers uintptr (0 or 1)
type Descriptor struct {
	Addr               uintptr
	RawBaseSize        uintptr
	ComponentSize      uintptr
	HasComponentSize   bool
	ContainsGCPointers bool
}

const wordSize = unsafe.Sizeof(uintptr(0))

func readWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// Read decodes the fixed descriptor fields at d and validates that d does
// not alias the GC heap. It does not yet touch the preceding pointer-field
// map — that is only decoded on demand by ForEachPointer/Spans, since most
// descriptors (contains_gc_pointers == false) never need it.
func Read(d uintptr, heap HeapRangeChecker) (Descriptor, error) {
	if d == 0 {
		return Descriptor{}, errors.WithMessage(ErrDescriptorInvalid, "nil descriptor")
	}
	if heap != nil && heap.InGCHeap(d) {
		return Descriptor{}, errors.WithMessagef(ErrDescriptorInvalid, "0x%x lies inside GC heap", d)
	}
	desc := Descriptor{
		Addr:               d,
		RawBaseSize:        readWord(d),
		ComponentSize:      readWord(d + wordSize),
		HasComponentSize:   readWord(d+2*wordSize) != 0,
		ContainsGCPointers: readWord(d+3*wordSize) != 0,
	}
	return desc, nil
}

// ObjectSize returns the total byte size of an instance of this type given
// its element count (ignored for fixed-size, non-array types).
func (d Descriptor) ObjectSize(elementCount uint32) uintptr {
	if !d.HasComponentSize {
		return d.RawBaseSize
	}
	return d.RawBaseSize + uintptr(elementCount)*d.ComponentSize
}

// Span describes one pointer-containing range inside an object, as a
// byte offset from the object base and a count of consecutive
// pointer-sized slots.
type Span struct {
	Offset       uintptr
	PointerCount int
}

// numSeriesWord reads the word immediately preceding the descriptor,
// interpreted as a signed count: positive selects the Normal shape,
// negative the Array-element shape (see forEachSpan).
func (d Descriptor) numSeriesWord() int64 {
	return int64(readWord(d.Addr - wordSize))
}

// Spans decodes the pointer-field map into a concrete slice of spans for
// a single object instance with the given element count. It is the
// non-hot-path, test-friendly sibling of ForEachPointer.
func (d Descriptor) Spans(elementCount uint32) ([]Span, error) {
	var spans []Span
	err := d.forEachSpan(elementCount, func(s Span) {
		spans = append(spans, s)
	})
	return spans, err
}

// ForEachPointer calls fn once per pointer-sized field address inside an
// object of base address obj with the given element count. It is the
// entry point the mark engine uses; it never allocates.
func (d Descriptor) ForEachPointer(obj uintptr, elementCount uint32, fn func(fieldAddr uintptr)) error {
	return d.forEachSpan(elementCount, func(s Span) {
		base := obj + s.Offset
		for i := 0; i < s.PointerCount; i++ {
			fn(base + uintptr(i)*wordSize)
		}
	})
}

func (d Descriptor) forEachSpan(elementCount uint32, emit func(Span)) error {
	if !d.ContainsGCPointers {
		return nil
	}

	n := d.numSeriesWord()
	switch {
	case n == 0:
		return nil
	case n > 0:
		// Normal shape: n records of (seriesSize, startOffset) packed
		// below the numSeries word, one object-worth of spans.
		num := uintptr(n)
		for k := uintptr(0); k < num; k++ {
			seriesSizeAddr := d.Addr - (2*num+1-2*k)*wordSize
			startOffsetAddr := d.Addr - (2*num-2*k)*wordSize
			seriesSize := readWord(seriesSizeAddr)
			startOffset := readWord(startOffsetAddr)
			count := int((seriesSize + d.RawBaseSize) / wordSize)
			if count <= 0 {
				continue
			}
			emit(Span{Offset: startOffset, PointerCount: count})
		}
		return nil
	default:
		// Array-element shape: one startOffset word, then |n| records of
		// (pointerCount, skipBytes), applied once per array element.
		num := uintptr(-n)
		startOffset := readWord(d.Addr - 2*wordSize)
		if elementCount == 0 {
			return nil
		}
		elemStride := d.ComponentSize
		for e := uint32(0); e < elementCount; e++ {
			elemBase := startOffset + uintptr(e)*elemStride
			cursor := uintptr(0)
			for k := uintptr(0); k < num; k++ {
				pointerCountAddr := d.Addr - (2*num+2-2*k)*wordSize
				skipBytesAddr := d.Addr - (2*num+1-2*k)*wordSize
				pointerCount := readWord(pointerCountAddr)
				skipBytes := readWord(skipBytesAddr)
				if pointerCount > 0 {
					emit(Span{Offset: elemBase + cursor, PointerCount: int(pointerCount)})
				}
				cursor += pointerCount*wordSize + skipBytes
			}
		}
		return nil
	}
}

// String renders the descriptor for diagnostics.
func (d Descriptor) String() string {
	return fmt.Sprintf("descriptor{addr=0x%x size=%d component=%d hasComponent=%v gcPtrs=%v}",
		d.Addr, d.RawBaseSize, d.ComponentSize, d.HasComponentSize, d.ContainsGCPointers)
}
