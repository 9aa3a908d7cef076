// Package segment implements the contiguous, page-multiple memory
// region that backs both the regular and pinned heaps: a bump cursor
// for fast-path allocation and a linear walk invariant over [start,
// bump) used by the mark-phase bounding box and the sweep engine.
package segment

import "github.com/mazarinos/gcore/objheader"

// Segment is a contiguous page-multiple region carved from the page
// source. The following invariants hold at every observation point
// outside an in-progress Bump/Grow call: start <= bump <= end, and
// [start, bump) is walkable (every word sequence is an object header or
// a free-block header), while [bump, end) is untouched.
type Segment struct {
	Start uintptr
	End   uintptr
	Bump  uintptr
	Size  uintptr // End - Start, kept redundantly for O(1) reorder classification
	Used  uintptr // bytes occupied by live objects; credited on allocation (TryBump/CreditUsed), recomputed authoritatively by sweep
	Next  *Segment
}

// New wraps a page-source-provided [start, start+size) extent as a fresh,
// entirely empty segment (Bump == Start).
func New(start uintptr, size uintptr) *Segment {
	return &Segment{Start: start, End: start + size, Bump: start, Size: size}
}

// Free is the number of untouched bytes available to bump allocation.
func (s *Segment) Free() uintptr {
	return s.End - s.Bump
}

// TryBump advances Bump by size if it fits before End and returns the
// base address of the reserved span, or (0, false) otherwise. This is
// the fast path called after the free-list allocator has missed. The
// reserved span is live the instant it is handed out, so Used is
// credited here rather than waiting for the next sweep to discover it —
// Stats() must report accurate occupancy between collections, not just
// immediately after one.
func (s *Segment) TryBump(size uintptr) (uintptr, bool) {
	if size > s.Free() {
		return 0, false
	}
	addr := s.Bump
	s.Bump += size
	s.Used += size
	return addr, true
}

// CreditUsed records size additional live bytes in the segment without
// moving Bump, for allocations satisfied by reclaiming a free-list block
// (heap.Regular's free-list path) rather than by bumping.
func (s *Segment) CreditUsed(size uintptr) {
	s.Used += size
}

// Class classifies a segment for post-collection reordering: Full when
// every byte up to End is in use, Free when the sweep found no live
// objects in it at all, Semifull otherwise.
type Class int

const (
	Full Class = iota
	Semifull
	Free
)

// Classify inspects the segment after a sweep has rebuilt Bump/Used.
// hasFreeBlocks is true when sweep produced at least one free-list
// entry (rather than trimming Bump back to the start).
func (s *Segment) Classify(hasFreeBlocks bool) Class {
	if s.Bump == s.Start && !hasFreeBlocks {
		return Free
	}
	if s.Bump == s.End && !hasFreeBlocks {
		return Full
	}
	return Semifull
}

// Walk steps over every record — live object or free block — from Start
// to Bump and returns how many it visited. isFree decides whether a
// record is a free block (sized from its free-block header); otherwise
// objectSize supplies the record's size. The walk stops early with
// ok == false on an invalid or undersized record, and otherwise reports
// whether it landed exactly on Bump (property 1, "Walkability").
//
// isFree and objectSize keep Walk shape-agnostic, so a caller can drive
// it with a stub descriptor reader.
func Walk(s *Segment, isFree func(addr uintptr) bool, objectSize func(addr uintptr) (uintptr, bool)) (count int, ok bool) {
	addr := s.Start
	for addr < s.Bump {
		if isFree(addr) {
			sz := uintptr(objheader.FreeBlockSize(addr))
			if sz < objheader.MinObjectSize {
				return count, false
			}
			addr += sz
			count++
			continue
		}
		sz, valid := objectSize(addr)
		if !valid || sz < objheader.MinObjectSize {
			return count, false
		}
		addr += sz
		count++
	}
	return count, addr == s.Bump
}
