package gc

import (
	"testing"

	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/handle"
	"github.com/mazarinos/gcore/pagesource"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return New(Config{
		Source:         pagesource.NewMmapSource(),
		Interrupt:      &AtomicController{},
		HandleCapacity: 16,
		FreeSentinel:   0xDEAD0001,
	})
}

// S1: allocate-then-collect-empty-root-set.
func TestScenarioAllocateThenCollectEmptyRootSet(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry
	desc := reg.DefineFixed(32, false, nil)

	a := c.AllocObjectFast(desc)
	if a == 0 {
		t.Fatal("initial allocation failed")
	}

	freed := c.Collect()
	if freed < 1 {
		t.Fatalf("Collect() = %d, want >= 1", freed)
	}

	// Reuse should come from the free list or a fresh bump at/below A.
	b := c.AllocObjectFast(desc)
	if b == 0 {
		t.Fatal("post-collection allocation failed")
	}
	if b > a {
		t.Fatalf("expected reuse at or below freed address %#x, got %#x", a, b)
	}
}

// S2: reachability via strong handle.
func TestScenarioStrongHandleSurvives(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry
	desc := reg.DefineFixed(32, false, nil)

	a := c.AllocObjectFast(desc)
	h := c.HandleAlloc(a, handle.Strong)

	c.Collect()

	if got := c.HandleGet(h); got != a {
		t.Fatalf("HandleGet = %#x, want %#x", got, a)
	}
}

// S3: weak handle cleared once unreachable.
func TestScenarioWeakHandleCleared(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry
	desc := reg.DefineFixed(32, false, nil)

	a := c.AllocObjectFast(desc)
	h := c.HandleAlloc(a, handle.Weak)

	freed := c.Collect()

	if got := c.HandleGet(h); got != 0 {
		t.Fatalf("HandleGet after collect = %#x, want 0 (cleared)", got)
	}
	if freed < 1 {
		t.Fatalf("Collect() = %d, want >= 1", freed)
	}
}

// S4: dependent handle liveness, case (a) and (b).
func TestScenarioDependentHandleLiveness(t *testing.T) {
	var reg descriptor.Registry
	desc := reg.DefineFixed(32, false, nil)

	t.Run("nothing else references target", func(t *testing.T) {
		c := newTestCollector(t)
		a := c.AllocObjectFast(desc)
		b := c.AllocObjectFast(desc)
		h := c.HandleAllocDependent(a, b)

		c.Collect()

		tgt, sec := c.HandleGetDependent(h)
		if tgt != 0 || sec != 0 {
			t.Fatalf("GetDependent = %#x, %#x, want 0, 0", tgt, sec)
		}
	})

	t.Run("strong handle to target exists", func(t *testing.T) {
		c := newTestCollector(t)
		a := c.AllocObjectFast(desc)
		b := c.AllocObjectFast(desc)
		strong := c.HandleAlloc(a, handle.Strong)
		dep := c.HandleAllocDependent(a, b)

		c.Collect()

		tgt, sec := c.HandleGetDependent(dep)
		if tgt != a || sec != b {
			t.Fatalf("GetDependent = %#x, %#x, want %#x, %#x", tgt, sec, a, b)
		}
		if c.HandleGet(strong) != a {
			t.Fatal("strong handle to target should itself survive")
		}
	})
}

// S5: array with inner pointers traced through the array's pointer-field map.
func TestScenarioArrayInnerPointerTraced(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry

	innerDesc := reg.DefineFixed(16, false, nil)
	// SomeStruct: [header, refField] -> 16 bytes, one pointer field at
	// offset 8 within each element: skip the first 8 bytes, then one
	// pointer-sized span with nothing trailing it. Element data starts
	// after the array object's own 16-byte header (descriptor word +
	// element count word).
	const headerSize = 16
	elemStride := uintptr(16)
	arrayDesc := reg.DefineArray(headerSize, elemStride, headerSize, []descriptor.Span{
		{PointerCount: 0, Offset: 8},
		{PointerCount: 1, Offset: 0},
	})

	x := c.AllocObjectFast(innerDesc)
	arr := c.AllocArray(arrayDesc, 3)
	arrHandle := c.HandleAlloc(arr, handle.Strong)

	// Populate slot 1's reference field with X.
	slot1Field := arr + headerSize + elemStride + 8
	*(*uintptr)(ptrOf(slot1Field)) = x

	c.Collect()

	if c.HandleGet(arrHandle) != arr {
		t.Fatal("array itself should survive via its strong handle")
	}
	// X must not have been reclaimed: its header must still be its own
	// descriptor rather than the free sentinel of a reformatted block.
	if isFreeObject(x) {
		t.Fatal("X should not have been reclaimed; it is reachable through the array")
	}
}

// S6: pinned stability across repeated collections.
func TestScenarioPinnedStability(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry
	desc := reg.DefineFixed(32, false, nil)

	p := c.AllocWithFlags(desc, 0, pinnedFlags())
	h := c.HandleAlloc(p, handle.Pinned)

	for i := 0; i < 3; i++ {
		// Unrelated churn.
		c.AllocObjectFast(desc)
		c.Collect()
	}

	if got := c.HandleGet(h); got != p {
		t.Fatalf("pinned object moved or was cleared: got %#x, want %#x", got, p)
	}
}

// Stats() must reflect live allocations immediately, not only after the
// next Collect() refreshes each segment's Used field from a sweep.
func TestStatsReflectsAllocationsBeforeFirstCollect(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry
	desc := reg.DefineFixed(32, false, nil)

	if got := c.Stats().RegularUsedBytes; got != 0 {
		t.Fatalf("RegularUsedBytes before any allocation = %d, want 0", got)
	}

	if a := c.AllocObjectFast(desc); a == 0 {
		t.Fatal("allocation failed")
	}

	if got := c.Stats().RegularUsedBytes; got == 0 {
		t.Fatal("RegularUsedBytes should be nonzero immediately after allocating, before any Collect()")
	}
}

// S7: free-list split on alloc.
func TestScenarioFreeListSplit(t *testing.T) {
	c := newTestCollector(t)
	var reg descriptor.Registry
	bigDesc := reg.DefineFixed(128, false, nil)
	smallDesc := reg.DefineFixed(48, false, nil)

	big := c.AllocObjectFast(bigDesc)
	// No handle was taken out on big, but a survivor right after it keeps
	// big's dead space interior, so the first collection reclaims it as a
	// single 128-byte free block rather than trimming the bump cursor.
	keep := c.AllocObjectFast(smallDesc)
	c.HandleAlloc(keep, handle.Strong)
	c.Collect()

	// RegularFreeBytes is the untouched space past each bump cursor.
	before := c.Stats().RegularFreeBytes
	small := c.AllocObjectFast(smallDesc)
	if small != big {
		t.Fatalf("expected allocation from the free block at %#x, got %#x", big, small)
	}
	after := c.Stats().RegularFreeBytes
	if after != before {
		t.Fatalf("expected no bump advance after a free-list split alloc: before=%d after=%d", before, after)
	}
}
