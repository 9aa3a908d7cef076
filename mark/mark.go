// Package mark implements the worklist-based mark engine: given a set
// of root candidates, it traces every reachable object, setting the
// mark bit on each, and stops cleanly at frozen segments and
// handle-table memory.
package mark

import (
	"unsafe"

	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/frozen"
	"github.com/mazarinos/gcore/objheader"
)

// HeapRange is the bounding-box + per-segment confirmation oracle the
// engine uses to falsify candidate pointers, implementing
// descriptor.HeapRangeChecker. A real collector recomputes this whenever
// segments are added, removed, or reordered.
type HeapRange interface {
	descriptor.HeapRangeChecker
}

// HandleRange reports whether addr falls inside the handle table's own
// backing memory, so the engine can reject handle slots as candidate
// object pointers.
type HandleRange interface {
	InHandleTable(addr uintptr) bool
}

// Engine runs one mark pass per Collect invocation; it is not safe to
// reuse concurrently but is cheap to construct fresh each collection.
type Engine struct {
	Heap    HeapRange
	Handles HandleRange
	Frozen  *frozen.Registry

	worklist []uintptr
}

// Push enqueues a root candidate. Call this once per conservative stack
// word and once per strong/pinned handle root before calling Run;
// dependent handle secondaries are pushed by Run's extraRoots callback.
func (e *Engine) Push(candidate uintptr) {
	e.worklist = append(e.worklist, candidate)
}

// Run drains the worklist to a fixpoint, marking every object
// transitively reachable from the pushed roots. extraRoots is invoked
// once per pass to let the caller project dependent handle secondaries
// that just became reachable (handle.Table.DependentSecondaries); since
// extraRoots has no way to know which secondaries it already pushed, it
// may re-push the same already-marked candidate every pass, so
// termination is judged by whether either drain in a pass newly marked
// anything, not by worklist length.
func (e *Engine) Run(extraRoots func(push func(uintptr))) {
	for {
		progressed := e.drain()
		if extraRoots != nil {
			extraRoots(e.Push)
		}
		progressed = e.drain() || progressed
		if !progressed {
			return
		}
	}
}

// drain processes the current worklist until empty, returning whether
// any object was newly marked.
func (e *Engine) drain() bool {
	marked := false
	for len(e.worklist) > 0 {
		n := len(e.worklist) - 1
		candidate := e.worklist[n]
		e.worklist = e.worklist[:n]

		obj, d, ok := e.validate(candidate)
		if !ok {
			continue
		}
		if objheader.IsMarked(obj) {
			continue
		}
		objheader.Mark(obj)
		marked = true

		if d.ContainsGCPointers {
			elemCount := uint32(0)
			if d.HasComponentSize {
				elemCount = objheader.ElementCount(obj)
			}
			d.ForEachPointer(obj, elemCount, func(fieldAddr uintptr) {
				e.worklist = append(e.worklist, *(*uintptr)(unsafe.Pointer(fieldAddr)))
			})
		}
	}
	return marked
}

// validate rejects null, handle-table memory, and candidates whose
// descriptor fails to decode or lies inside the GC heap (a
// falsification signal). It also stops cleanly at frozen-segment
// objects: they are always live, never marked, and never traced
// further, since by construction they only reference other frozen
// objects.
//
// Every check up to and including the InGCHeap test must run before
// candidate is ever dereferenced: a conservative stack/register scan
// (package roots) pushes every pointer-aligned stack word regardless of
// whether it happens to be a pointer, and most of them are not. A real
// object always lives inside some live segment, so a candidate that
// fails InGCHeap cannot be one and must be rejected on address alone —
// reading objheader.DescriptorOf(candidate) first would dereference
// arbitrary stack garbage and crash the host process instead of
// falsifying it.
func (e *Engine) validate(candidate uintptr) (obj uintptr, d descriptor.Descriptor, ok bool) {
	if candidate == 0 {
		return 0, descriptor.Descriptor{}, false
	}
	if e.Handles != nil && e.Handles.InHandleTable(candidate) {
		return 0, descriptor.Descriptor{}, false
	}
	if e.Frozen != nil && e.Frozen.Contains(candidate) {
		return 0, descriptor.Descriptor{}, false
	}
	if e.Heap != nil && !e.Heap.InGCHeap(candidate) {
		return 0, descriptor.Descriptor{}, false
	}

	descAddr := objheader.DescriptorOf(candidate)
	dec, err := descriptor.Read(descAddr, e.Heap)
	if err != nil {
		return 0, descriptor.Descriptor{}, false
	}
	return candidate, dec, true
}
