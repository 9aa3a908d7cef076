// Package gc composes the regular heap, pinned heap, frozen registry,
// handle table, root scanner, mark engine, and sweep engine into the
// single stop-the-world collector, and exposes the external ABI used by
// generated allocation call sites.
package gc

import (
	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/frozen"
	"github.com/mazarinos/gcore/handle"
	"github.com/mazarinos/gcore/heap"
	"github.com/mazarinos/gcore/mark"
	"github.com/mazarinos/gcore/objheader"
	"github.com/mazarinos/gcore/pagesource"
	"github.com/mazarinos/gcore/roots"
	"github.com/mazarinos/gcore/segment"
	"github.com/mazarinos/gcore/sweep"
)

// Collector is the process-wide GC singleton state: initialization is
// explicit via New, teardown is not supported.
type Collector struct {
	src       pagesource.Source
	interrupt InterruptController
	logger    Logger
	sched     roots.Scheduler
	mem       roots.Memory

	regular *heap.Regular
	pinned  *heap.Pinned
	frozen  frozen.Registry
	handles *handle.Table

	handleTableBase uintptr

	bounds heapRange

	collectionsRun   uint64
	lastFreedObjects uint64
}

// Config wires every collaborator New needs; Scheduler and Memory may be
// nil, in which case Collect conservatively scans nothing beyond the
// handle table (callers embedding this in a single-threaded host harness
// should supply roots.SingleThreadScheduler instead of leaving it nil).
type Config struct {
	Source         pagesource.Source
	Interrupt      InterruptController
	Logger         Logger
	Scheduler      roots.Scheduler
	Memory         roots.Memory
	HandleCapacity int
	FreeSentinel   uintptr
}

// New constructs a Collector with empty regular/pinned heaps and a
// fixed-capacity handle table. FreeSentinel installs the process-wide
// free-block marker (objheader.SetFreeSentinel) — callers must pick a
// value that a real descriptor pointer could never equal.
func New(cfg Config) *Collector {
	if cfg.FreeSentinel != 0 {
		objheader.SetFreeSentinel(cfg.FreeSentinel)
	}
	c := &Collector{
		src:       cfg.Source,
		interrupt: cfg.Interrupt,
		logger:    cfg.Logger,
		sched:     cfg.Scheduler,
		mem:       cfg.Memory,
		regular:   heap.NewRegular(cfg.Source, pagesource.RegularHeap),
		pinned:    heap.NewPinned(cfg.Source),
		handles:   handle.NewTable(cfg.HandleCapacity),
	}
	c.handleTableBase = c.handles.BaseAddr()
	c.bounds = heapRange{regular: &c.regular.Chain, pinned: &c.pinned.Chain}
	return c
}

// AllocObjectFast allocates a single fixed-size, non-array instance of
// the type described by desc. Returns 0 on exhaustion (out-of-memory
// converted to a null return).
func (c *Collector) AllocObjectFast(desc uintptr) uintptr {
	return c.allocWithRetry(desc, 0, heap.Flags{})
}

// AllocArray allocates an array/string-shaped instance with elementCount
// elements, writing the element count word.
func (c *Collector) AllocArray(desc uintptr, elementCount uint32) uintptr {
	return c.allocWithRetry(desc, elementCount, heap.Flags{})
}

// AllocVariableSize allocates a variable-size instance when the caller
// has already computed the element count needed to reach a target byte
// size (e.g. a producer packing a raw byte buffer into a byte-array
// descriptor), which is otherwise identical to AllocArray.
func (c *Collector) AllocVariableSize(desc uintptr, elementCount uint32) uintptr {
	return c.allocWithRetry(desc, elementCount, heap.Flags{})
}

// AllocWithFlags is the general entry point generated call sites use
// when allocation behavior (currently just pinning) is selected at the
// call site rather than baked into the descriptor.
func (c *Collector) AllocWithFlags(desc uintptr, elementCount uint32, flags heap.Flags) uintptr {
	return c.allocWithRetry(desc, elementCount, flags)
}

// AllocString is AllocArray under the string descriptor convention: the
// element count doubles as the character length.
func (c *Collector) AllocString(desc uintptr, length uint32) uintptr {
	return c.allocWithRetry(desc, length, heap.Flags{})
}

// allocWithRetry retries exactly once: on total failure, trigger a
// collection and try again.
func (c *Collector) allocWithRetry(desc uintptr, elementCount uint32, flags heap.Flags) uintptr {
	if addr, ok := c.tryAlloc(desc, elementCount, flags); ok {
		return addr
	}
	c.Collect()
	if addr, ok := c.tryAlloc(desc, elementCount, flags); ok {
		return addr
	}
	logWarn(c.logger, ErrOutOfMemory.Error(), "desc", desc)
	return 0
}

func (c *Collector) tryAlloc(desc uintptr, elementCount uint32, flags heap.Flags) (uintptr, bool) {
	dec, err := descriptor.Read(desc, &c.bounds)
	if err != nil {
		logWarn(c.logger, "gc: alloc with invalid descriptor", "err", err.Error())
		return 0, false
	}
	size := uint32(dec.ObjectSize(elementCount))

	var addr uintptr
	var ok bool
	if flags.Pinned {
		addr, ok = c.pinned.Alloc(size)
	} else {
		addr, ok = c.regular.Alloc(size)
	}
	if !ok {
		return 0, false
	}
	if addr < c.bounds.min || addr >= c.bounds.max {
		// The allocation landed in a segment the bounding box does not
		// cover yet (a newly grown one), so widen it before any mark.
		c.bounds.recompute()
	}

	objheader.WriteHeader(addr, desc)
	if dec.HasComponentSize {
		objheader.WriteElementCount(addr, elementCount)
	}
	return addr, true
}

// HandleAlloc claims a handle slot of the given kind for obj, returning
// the zero Handle when the table is at capacity.
func (c *Collector) HandleAlloc(obj uintptr, kind handle.Kind) handle.Handle {
	h, ok := c.handles.Alloc(obj, kind)
	if !ok {
		logWarn(c.logger, ErrHandleCapacity.Error())
		return 0
	}
	return h
}

// HandleAllocDependent claims a dependent handle tying secondary's
// liveness to target's.
func (c *Collector) HandleAllocDependent(target, secondary uintptr) handle.Handle {
	h, ok := c.handles.AllocDependent(target, secondary)
	if !ok {
		logWarn(c.logger, ErrHandleCapacity.Error())
		return 0
	}
	return h
}

// HandleFree releases a handle slot back to the empty pool.
func (c *Collector) HandleFree(h handle.Handle) {
	c.handles.Free(h)
}

// HandleGet returns a handle's current target, or 0 if cleared/freed.
func (c *Collector) HandleGet(h handle.Handle) uintptr {
	return c.handles.Get(h)
}

// HandleGetDependent returns a dependent handle's target and secondary.
func (c *Collector) HandleGetDependent(h handle.Handle) (target, secondary uintptr) {
	return c.handles.GetDependent(h)
}

// FrozenRegister records a new read-only segment, never marked or swept.
func (c *Collector) FrozenRegister(start, allocSize, commitSize, reservedSize uintptr) int {
	return c.frozen.Register(start, allocSize, commitSize, reservedSize)
}

// FrozenUpdate revises a previously registered frozen segment's extents.
func (c *Collector) FrozenUpdate(id int, newAlloc, newCommit uintptr) bool {
	return c.frozen.Update(id, newAlloc, newCommit)
}

// Collect runs one full stop-the-world cycle: disable interrupts, clear
// free lists, mark from every root, clear dead weak/dependent handles,
// sweep every chain, reorder segments and return empty ones to the page
// source, recompute heap bounds, enable interrupts. Returns the number
// of objects reclaimed.
func (c *Collector) Collect() uint64 {
	c.interrupt.Disable()

	c.regular.Freelist.Clear()

	engine := &mark.Engine{
		Heap:    &c.bounds,
		Handles: &handleRange{table: c.handles, tableBase: c.handleTableBase},
		Frozen:  &c.frozen,
	}
	c.handles.StrongRoots(engine.Push)
	if c.sched != nil && c.mem != nil {
		roots.ScanConservative(c.sched, c.mem, engine.Push)
	}
	engine.Run(func(push func(uintptr)) {
		c.handles.DependentSecondaries(push)
	})

	c.handles.ClearDead()

	var freedObjects uint64
	regularHasBlocks := map[*segment.Segment]bool{}
	for s := c.regular.Chain.Head; s != nil; s = s.Next {
		res := sweep.Regular(s, &c.bounds, &c.regular.Freelist, c.logger)
		freedObjects += uint64(res.FreedObjects)
		regularHasBlocks[s] = res.FreeListInsertions > 0
	}
	for s := c.pinned.Chain.Head; s != nil; s = s.Next {
		res := sweep.Pinned(s, &c.bounds, c.logger)
		freedObjects += uint64(res.FreedObjects)
	}

	c.reorderAndReturn(&c.regular.Chain, regularHasBlocks)
	c.reorderAndReturn(&c.pinned.Chain, nil)

	c.bounds.recompute()

	c.collectionsRun++
	c.lastFreedObjects = freedObjects

	c.interrupt.Enable()
	return freedObjects
}

func (c *Collector) reorderAndReturn(chain *segment.Chain, hasFreeBlocks map[*segment.Segment]bool) {
	classOf := map[*segment.Segment]segment.Class{}
	for s := chain.Head; s != nil; s = s.Next {
		classOf[s] = s.Classify(hasFreeBlocks[s])
	}
	freed := chain.Reorder(classOf)
	for _, s := range freed {
		if s.Size > pagesource.PageSize {
			c.src.Free(s.Start)
			chain.Remove(s)
		}
	}
}
