// Package sweep implements the sweep engine: a linear per-segment walk
// that converts dead space into free blocks, folding adjacent dead
// objects and pre-existing free blocks into a single run before handing
// it to the free-list allocator.
package sweep

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/freelist"
	"github.com/mazarinos/gcore/objheader"
	"github.com/mazarinos/gcore/segment"
)

const wordSize = unsafe.Sizeof(uintptr(0))

// ErrCorruptedHeap is reported through Logger (not fatal — sweep recovers
// by skipping a word) when a header word neither matches the free
// sentinel nor decodes to a descriptor outside the heap.
var ErrCorruptedHeap = errors.New("sweep: header word inside GC heap, corrupted cell skipped")

// Logger is the optional diagnostics collaborator; sweep calls Warn once
// per corrupted-cell recovery. A nil Logger is silently ignored.
type Logger interface {
	Warn(msg string, kv ...interface{})
}

// run is a contiguous stretch of dead space discovered during the walk:
// either a pre-existing free block or one or more unmarked objects.
type run struct {
	addr uintptr
	size uintptr
}

// Result summarizes one segment's sweep: bytes still occupied by
// surviving (now unmarked) objects, and how many corrupted cells were
// skipped.
type Result struct {
	LiveBytes          uintptr
	FreedObjects       int // newly-unmarked objects reclaimed this sweep (excludes pre-existing free blocks)
	CorruptedSkips     int
	ReachedBumpFree    uintptr // size of the dead run, if any, that ran up to the old Bump
	FreeListInsertions int     // interior runs handed to the free list (Regular only)
}

// Regular sweeps a non-pinned segment: every interior dead run is
// flushed to fl. A run ending at Bump is not: the segment's Bump is
// rolled back over it instead, reclaiming that space without ever
// emitting a trailing free block for it.
func Regular(seg *segment.Segment, heap descriptor.HeapRangeChecker, fl *freelist.Allocator, log Logger) Result {
	runs, res := walk(seg, heap, log)

	for i, r := range runs {
		isTrailing := i == len(runs)-1 && r.addr+r.size == seg.Bump
		if isTrailing {
			seg.Bump = r.addr
			res.ReachedBumpFree = r.size
			continue
		}
		fl.Insert(r.addr, uint32(r.size))
		res.FreeListInsertions++
	}
	seg.Used = res.LiveBytes
	return res
}

// Pinned sweeps a pinned segment: dead runs are never reformatted into
// free blocks (no free-list coalescing for pinned objects), the only
// reclamation is rolling Bump back over a trailing dead run.
func Pinned(seg *segment.Segment, heap descriptor.HeapRangeChecker, log Logger) Result {
	runs, res := walk(seg, heap, log)

	if n := len(runs); n > 0 {
		last := runs[n-1]
		if last.addr+last.size == seg.Bump {
			seg.Bump = last.addr
			res.ReachedBumpFree = last.size
		}
	}
	seg.Used = res.LiveBytes
	return res
}

// walk performs the shared linear scan, returning every dead run found
// (in ascending address order) and a Result tallying live bytes and
// corrupted-cell recoveries.
func walk(seg *segment.Segment, heap descriptor.HeapRangeChecker, log Logger) ([]run, Result) {
	var (
		runs       []run
		res        Result
		runStart   uintptr
		runLen     uintptr
		haveRun    bool
		addr       = seg.Start
	)

	flush := func() {
		if haveRun {
			runs = append(runs, run{addr: runStart, size: runLen})
			haveRun = false
			runLen = 0
		}
	}

	for addr < seg.Bump {
		if objheader.IsFreeBlock(addr) {
			sz := uintptr(objheader.FreeBlockSize(addr))
			if !haveRun {
				runStart = addr
				haveRun = true
			}
			runLen += sz
			addr += sz
			continue
		}

		descAddr := objheader.DescriptorOf(addr)
		dec, err := descriptor.Read(descAddr, heap)
		if err != nil {
			// Corrupted-cell guard: the header word is neither the free
			// sentinel nor a descriptor outside the heap. Skip exactly
			// one pointer-sized word and keep walking.
			flush()
			res.CorruptedSkips++
			if log != nil {
				log.Warn(ErrCorruptedHeap.Error(), "addr", addr)
			}
			addr += wordSize
			continue
		}

		elemCount := uint32(0)
		if dec.HasComponentSize {
			elemCount = objheader.ElementCount(addr)
		}
		size := dec.ObjectSize(elemCount)
		if size < objheader.MinObjectSize {
			size = objheader.MinObjectSize
		}

		if objheader.IsMarked(addr) {
			flush()
			objheader.Unmark(addr)
			res.LiveBytes += size
			addr += size
			continue
		}

		if !haveRun {
			runStart = addr
			haveRun = true
		}
		runLen += size
		addr += size
		res.FreedObjects++
	}
	flush()

	return runs, res
}
