package sweep

import (
	"testing"
	"unsafe"

	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/freelist"
	"github.com/mazarinos/gcore/objheader"
	"github.com/mazarinos/gcore/segment"
)

type noHeap struct{}

func (noHeap) InGCHeap(addr uintptr) bool { return false }

func init() {
	objheader.SetFreeSentinel(0xF00D)
}

func backingSegment(words int) *segment.Segment {
	buf := make([]uint64, words)
	start := uintptr(unsafe.Pointer(&buf[0]))
	s := segment.New(start, uintptr(words)*wordSize)
	s.Bump = s.End
	return s
}

func TestRegularSweepReclaimsDeadAndTrimsTrailing(t *testing.T) {
	var reg descriptor.Registry
	desc := reg.DefineFixed(4*wordSize, false, nil) // 32-byte non-pointer object

	seg := backingSegment(8) // 64 bytes == two 32-byte objects
	objA := seg.Start
	objB := seg.Start + 4*wordSize

	objheader.WriteHeader(objA, desc)
	objheader.Mark(objA) // survives
	objheader.WriteHeader(objB, desc) // unmarked: dead, and trailing

	var fl freelist.Allocator
	res := Regular(seg, noHeap{}, &fl, nil)

	if res.LiveBytes != 32 {
		t.Fatalf("LiveBytes = %d, want 32", res.LiveBytes)
	}
	if objheader.IsMarked(objA) {
		t.Fatal("surviving object should be unmarked by sweep")
	}
	if seg.Bump != objB {
		t.Fatalf("Bump = %#x, want rollback to %#x (trailing dead run)", seg.Bump, objB)
	}
	if res.ReachedBumpFree != 32 {
		t.Fatalf("ReachedBumpFree = %d, want 32", res.ReachedBumpFree)
	}
}

func TestRegularSweepFlushesInteriorRunToFreelist(t *testing.T) {
	var reg descriptor.Registry
	desc := reg.DefineFixed(4*wordSize, false, nil)

	seg := backingSegment(12) // three 32-byte slots
	objA := seg.Start
	objB := seg.Start + 4*wordSize
	objC := seg.Start + 8*wordSize

	objheader.WriteHeader(objA, desc)
	objheader.Mark(objA)
	objheader.WriteHeader(objB, desc) // dead, interior
	objheader.WriteHeader(objC, desc)
	objheader.Mark(objC)

	var fl freelist.Allocator
	res := Regular(seg, noHeap{}, &fl, nil)

	if res.LiveBytes != 64 {
		t.Fatalf("LiveBytes = %d, want 64", res.LiveBytes)
	}
	if a, sz, ok := fl.Alloc(32); !ok || a != objB || sz != 32 {
		t.Fatalf("expected interior dead block reinserted into free list at %#x, got addr=%#x size=%d ok=%v", objB, a, sz, ok)
	}
}

func TestPinnedSweepNeverPushesToFreelist(t *testing.T) {
	var reg descriptor.Registry
	desc := reg.DefineFixed(4*wordSize, false, nil)

	seg := backingSegment(8)
	objA := seg.Start
	objB := seg.Start + 4*wordSize

	objheader.WriteHeader(objA, desc) // dead, interior (not trailing)
	objheader.WriteHeader(objB, desc)
	objheader.Mark(objB) // survives, so objA is NOT a trailing run

	res := Pinned(seg, noHeap{}, nil)

	if res.LiveBytes != 32 {
		t.Fatalf("LiveBytes = %d, want 32", res.LiveBytes)
	}
	if seg.Bump != seg.End {
		t.Fatal("pinned sweep must not roll back Bump when the dead run is not trailing")
	}
}

func TestPinnedSweepTrimsTrailingDeadRun(t *testing.T) {
	var reg descriptor.Registry
	desc := reg.DefineFixed(4*wordSize, false, nil)

	seg := backingSegment(8)
	objA := seg.Start
	objB := seg.Start + 4*wordSize

	objheader.WriteHeader(objA, desc)
	objheader.Mark(objA)
	objheader.WriteHeader(objB, desc) // dead, trailing

	res := Pinned(seg, noHeap{}, nil)

	if seg.Bump != objB {
		t.Fatalf("Bump = %#x, want %#x", seg.Bump, objB)
	}
	if res.ReachedBumpFree != 32 {
		t.Fatalf("ReachedBumpFree = %d, want 32", res.ReachedBumpFree)
	}
}
