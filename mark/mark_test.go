package mark

import (
	"testing"
	"unsafe"

	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/frozen"
	"github.com/mazarinos/gcore/objheader"
)

const wordSize = unsafe.Sizeof(uintptr(0))

// trackedHeap stands in for the collector's real segment-chain bounding
// box: it reports true only for addresses inside objects explicitly
// registered as fixture objects, and false for everything else —
// including descriptor addresses, which always live in ordinary Go
// memory outside any registered range. A real mark candidate must fall
// inside some live segment before validate ever dereferences it; these
// tests register each fixture object's backing array so that same
// falsification path is exercised here instead of being bypassed.
type trackedHeap struct {
	ranges [][2]uintptr
}

func heapOf(objs ...[]uintptr) *trackedHeap {
	h := &trackedHeap{}
	for _, o := range objs {
		lo := objAddr(o)
		h.ranges = append(h.ranges, [2]uintptr{lo, lo + uintptr(len(o))*wordSize})
	}
	return h
}

func (h *trackedHeap) InGCHeap(addr uintptr) bool {
	for _, r := range h.ranges {
		if addr >= r[0] && addr < r[1] {
			return true
		}
	}
	return false
}

type noHandles struct{}

func (noHandles) InHandleTable(addr uintptr) bool { return false }

func newObject(words int) []uintptr {
	return make([]uintptr, words)
}

func objAddr(o []uintptr) uintptr {
	return uintptr(unsafe.Pointer(&o[0]))
}

func fieldAddr(o []uintptr, wordIdx int) uintptr {
	return objAddr(o) + uintptr(wordIdx)*wordSize
}

func TestMarkTracesChainOfPointers(t *testing.T) {
	var reg descriptor.Registry

	leafDesc := reg.DefineFixed(2*wordSize, false, nil)
	leaf := newObject(2)
	objheader.WriteHeader(objAddr(leaf), leafDesc)

	// Node: [header, next-pointer]. One pointer span at offset wordSize.
	nodeDesc := reg.DefineFixed(2*wordSize, true, []descriptor.Span{{Offset: wordSize, PointerCount: 1}})
	root := newObject(2)
	objheader.WriteHeader(objAddr(root), nodeDesc)
	*(*uintptr)(unsafe.Pointer(fieldAddr(root, 1))) = objAddr(leaf)

	e := &Engine{Heap: heapOf(root, leaf), Handles: noHandles{}}
	e.Push(objAddr(root))
	e.Run(nil)

	if !objheader.IsMarked(objAddr(root)) {
		t.Fatal("root should be marked")
	}
	if !objheader.IsMarked(objAddr(leaf)) {
		t.Fatal("leaf reachable through root's pointer field should be marked")
	}
}

func TestMarkRejectsNullAndHandleTableMemory(t *testing.T) {
	e := &Engine{Heap: heapOf(), Handles: rangeFunc(func(addr uintptr) bool { return addr == 0x5000 })}
	e.Push(0)
	e.Push(0x5000)
	e.Run(nil)
	// Nothing should have panicked or been marked; this mainly guards
	// against validate dereferencing a rejected candidate.
}

type rangeFunc func(uintptr) bool

func (f rangeFunc) InHandleTable(addr uintptr) bool { return f(addr) }

// TestMarkRejectsOutOfHeapGarbage exercises the conservative-stack-scan
// falsification path directly: a candidate that is non-null, not in the
// handle table, and not inside any registered heap range must be
// rejected before validate ever dereferences it as a header word. Real
// stack words are garbage far more often than they are object pointers
// (spec.md §4.9's "candidate" definition), so this is the path that
// keeps ScanConservative's raw candidates from crashing the host
// process instead of being falsified.
func TestMarkRejectsOutOfHeapGarbage(t *testing.T) {
	live := newObject(2)
	leafDesc := func() uintptr {
		var reg descriptor.Registry
		return reg.DefineFixed(2*wordSize, false, nil)
	}()
	objheader.WriteHeader(objAddr(live), leafDesc)

	e := &Engine{Heap: heapOf(live), Handles: noHandles{}}

	// Garbage candidates: an arbitrary non-zero bit pattern and an
	// address just past the one registered heap range. Neither lies
	// inside heapOf(live)'s range, so validate must reject them without
	// dereferencing — if it didn't, the out-of-range read below would
	// segfault the test process instead of failing cleanly.
	e.Push(0xdeadbeef)
	e.Push(objAddr(live) + uintptr(len(live))*wordSize + 4096)
	e.Push(objAddr(live)) // the one real root, to confirm the engine still works
	e.Run(nil)

	if !objheader.IsMarked(objAddr(live)) {
		t.Fatal("the genuine in-heap candidate should still be marked")
	}
}

func TestMarkStopsAtFrozenObjects(t *testing.T) {
	var freg frozen.Registry
	frozenObj := newObject(2)
	freg.Register(objAddr(frozenObj), 16, 16, 16)

	var reg descriptor.Registry
	nodeDesc := reg.DefineFixed(2*wordSize, true, []descriptor.Span{{Offset: wordSize, PointerCount: 1}})
	root := newObject(2)
	objheader.WriteHeader(objAddr(root), nodeDesc)
	*(*uintptr)(unsafe.Pointer(fieldAddr(root, 1))) = objAddr(frozenObj)

	e := &Engine{Heap: heapOf(root, frozenObj), Handles: noHandles{}, Frozen: &freg}
	e.Push(objAddr(root))
	e.Run(nil)

	if objheader.IsMarked(objAddr(frozenObj)) {
		t.Fatal("frozen objects must never be marked")
	}
}

func TestMarkIdempotentOnCycles(t *testing.T) {
	var reg descriptor.Registry
	nodeDesc := reg.DefineFixed(2*wordSize, true, []descriptor.Span{{Offset: wordSize, PointerCount: 1}})

	a := newObject(2)
	b := newObject(2)
	objheader.WriteHeader(objAddr(a), nodeDesc)
	objheader.WriteHeader(objAddr(b), nodeDesc)
	*(*uintptr)(unsafe.Pointer(fieldAddr(a, 1))) = objAddr(b)
	*(*uintptr)(unsafe.Pointer(fieldAddr(b, 1))) = objAddr(a)

	e := &Engine{Heap: heapOf(a, b), Handles: noHandles{}}
	e.Push(objAddr(a))
	e.Run(nil)

	if !objheader.IsMarked(objAddr(a)) || !objheader.IsMarked(objAddr(b)) {
		t.Fatal("both objects in the cycle should be marked")
	}
}

func TestDependentSecondaryFixpoint(t *testing.T) {
	var reg descriptor.Registry
	leafDesc := reg.DefineFixed(2*wordSize, false, nil)

	target := newObject(2)
	secondary := newObject(2)
	objheader.WriteHeader(objAddr(target), leafDesc)
	objheader.WriteHeader(objAddr(secondary), leafDesc)

	e := &Engine{Heap: heapOf(target, secondary), Handles: noHandles{}}
	e.Push(objAddr(target))

	pushedSecondary := false
	e.Run(func(push func(uintptr)) {
		if objheader.IsMarked(objAddr(target)) && !pushedSecondary {
			push(objAddr(secondary))
			pushedSecondary = true
		}
	})

	if !objheader.IsMarked(objAddr(secondary)) {
		t.Fatal("secondary should be marked once the dependent target was marked")
	}
}
