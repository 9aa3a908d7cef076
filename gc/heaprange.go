package gc

import (
	"github.com/mazarinos/gcore/handle"
	"github.com/mazarinos/gcore/segment"
)

// heapRange implements descriptor.HeapRangeChecker (and mark.HeapRange)
// over the collector's live segment chains: a coarse bounding-box test
// followed by a linear per-segment confirmation. It is recomputed
// whenever segments are added, removed, or reordered.
type heapRange struct {
	min, max uintptr
	regular  *segment.Chain
	pinned   *segment.Chain
}

func (h *heapRange) InGCHeap(addr uintptr) bool {
	if addr < h.min || addr >= h.max {
		return false
	}
	return h.regular.Contains(addr) || h.pinned.Contains(addr)
}

func (h *heapRange) recompute() {
	h.min, h.max = ^uintptr(0), 0
	expand := func(lo, hi uintptr, ok bool) {
		if !ok {
			return
		}
		if lo < h.min {
			h.min = lo
		}
		if hi > h.max {
			h.max = hi
		}
	}
	expand(h.regular.Bounds())
	expand(h.pinned.Bounds())
	if h.min > h.max {
		h.min, h.max = 0, 0
	}
}

// handleRange implements mark.HandleRange over the collector's single
// handle-table segment, rejecting handle-slot memory as a candidate
// object pointer.
type handleRange struct {
	table     *handle.Table
	tableBase uintptr
}

func (h *handleRange) InHandleTable(addr uintptr) bool {
	if h.table == nil {
		return false
	}
	return h.table.InRange(addr, h.tableBase)
}
