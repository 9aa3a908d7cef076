package descriptor

import (
	"unsafe"
)

// Registry is a host-side stand-in for the producer: it lays out
// descriptor + pointer-field-map blocks in ordinary Go memory that is
// guaranteed to sit outside the GC heap (Go's own allocator owns it),
// exactly the "region distinct from the GC heap" the design requires.
// Production kernels get these blocks from the AOT compiler's output
// section instead; this registry exists so tests and the demo binary in
// cmd/kernelgc-demo have real descriptor pointers to hand the collector.
type Registry struct {
	blocks [][]uintptr // keeps each backing array alive and pinned in place
}

// DefineFixed registers a fixed-size, non-array type with the given
// pointer spans (Normal shape). Word layout, ascending address:
//
//	[record0.seriesSize, record0.startOffset, ..., recordN-1.*, numSeries, size, component, hasComponent, gcPtrs]
func (r *Registry) DefineFixed(size uintptr, containsPointers bool, spans []Span) uintptr {
	num := len(spans)
	numWords := 2*num + 1 + 4
	block := make([]uintptr, numWords)

	for k, s := range spans {
		// seriesSize chosen so (seriesSize+size)/wordSize == PointerCount.
		block[2*k] = uintptr(s.PointerCount)*wordSize - size
		block[2*k+1] = s.Offset
	}
	block[2*num] = uintptr(num) // numSeries, positive => Normal shape

	descIdx := 2*num + 1
	block[descIdx] = size
	block[descIdx+1] = 0
	block[descIdx+2] = 0
	if containsPointers {
		block[descIdx+3] = 1
	}

	r.blocks = append(r.blocks, block)
	return uintptr(unsafe.Pointer(&block[descIdx]))
}

// DefineArray registers an array/string-shaped type: component size and
// per-element pointer layout (Array-element shape). Word layout,
// ascending address:
//
//	[record0.pointerCount, record0.skipBytes, ..., startOffset, numSeries(negative), baseSize, componentSize, hasComponent, gcPtrs]
func (r *Registry) DefineArray(baseSize, componentSize uintptr, startOffset uintptr, elemSpans []Span) uintptr {
	num := len(elemSpans)
	numWords := 2*num + 1 + 1 + 4
	block := make([]uintptr, numWords)

	for k, s := range elemSpans {
		block[2*k] = uintptr(s.PointerCount)
		block[2*k+1] = uintptr(s.Offset) // reused as skipBytes between this element field and the next
	}
	block[2*num] = startOffset
	block[2*num+1] = uintptr(-int64(num)) // numSeries, negative => Array-element shape

	descIdx := 2*num + 2
	block[descIdx] = baseSize
	block[descIdx+1] = componentSize
	block[descIdx+2] = 1 // hasComponentSize
	if num > 0 {
		block[descIdx+3] = 1
	}

	r.blocks = append(r.blocks, block)
	return uintptr(unsafe.Pointer(&block[descIdx]))
}
