// Package heap implements the regular heap and the pinned heap: a chain
// of segments with a bump-allocation fast path, a free-list-backed reuse
// path, and a slow path that grows the chain from the page source.
// Retrying allocation after a collection is the top-level collector's
// job, not this package's — Alloc here only ever reports success or
// exhaustion against the current chain.
package heap

import (
	"unsafe"

	"github.com/mazarinos/gcore/freelist"
	"github.com/mazarinos/gcore/objheader"
	"github.com/mazarinos/gcore/pagesource"
	"github.com/mazarinos/gcore/segment"
)

const pointerAlign = unsafe.Sizeof(uintptr(0))

func alignSize(size uint32) uint32 {
	rem := size % uint32(pointerAlign)
	if rem != 0 {
		size += uint32(pointerAlign) - rem
	}
	if size < objheader.MinObjectSize {
		size = objheader.MinObjectSize
	}
	return size
}

// Regular is the chain-of-segments allocator for ordinary (non-pinned)
// objects, backed by a size-classed free list rebuilt on every sweep.
type Regular struct {
	Chain    segment.Chain
	Freelist freelist.Allocator
	src      pagesource.Source
	pageType pagesource.PageType
}

// NewRegular constructs an empty regular heap drawing new segments from
// src, tagged pageType when requesting pages.
func NewRegular(src pagesource.Source, pageType pagesource.PageType) *Regular {
	return &Regular{src: src, pageType: pageType}
}

// Alloc aligns/minimum-sizes the request, tries the free list, then
// bumps in the "last" segment, then walks the chain, then grows from
// the page source. It does not retry after a collection — callers that
// get ok == false should collect and call Alloc again themselves.
func (r *Regular) Alloc(size uint32) (addr uintptr, ok bool) {
	size = alignSize(size)

	if a, actualSize, found := r.Freelist.Alloc(size); found {
		s := r.segmentContaining(a)
		r.Chain.Current = s
		if s != nil {
			s.CreditUsed(uintptr(actualSize))
		}
		return a, true
	}

	if r.Chain.Last != nil {
		if a, found := r.Chain.Last.TryBump(uintptr(size)); found {
			r.Chain.Current = r.Chain.Last
			return a, true
		}
	}

	// Slow path: walk the chain from Last forward, wrapping once.
	if s := r.walkForFit(size); s != nil {
		a, _ := s.TryBump(uintptr(size))
		r.Chain.Current = s
		r.Chain.Last = s
		return a, true
	}

	// Grow: request a new segment sized max(requested, page size).
	grown := r.grow(size)
	if grown == nil {
		return 0, false
	}
	a, _ := grown.TryBump(uintptr(size))
	return a, true
}

func (r *Regular) walkForFit(size uint32) *segment.Segment {
	if r.Chain.Last == nil {
		return nil
	}
	start := r.Chain.Last
	for s := start; s != nil; s = s.Next {
		if s.Free() >= uintptr(size) {
			return s
		}
	}
	for s := r.Chain.Head; s != start; s = s.Next {
		if s.Free() >= uintptr(size) {
			return s
		}
	}
	return nil
}

func (r *Regular) grow(size uint32) *segment.Segment {
	want := uintptr(size)
	if want < pagesource.PageSize {
		want = pagesource.PageSize
	}
	pages := (want + pagesource.PageSize - 1) / pagesource.PageSize

	base, ok := r.src.AllocPages(r.pageType, int(pages), true)
	if !ok {
		return nil
	}
	s := segment.New(base, pages*pagesource.PageSize)
	r.Chain.Append(s)
	return s
}

func (r *Regular) segmentContaining(addr uintptr) *segment.Segment {
	for s := r.Chain.Head; s != nil; s = s.Next {
		if addr >= s.Start && addr < s.End {
			return s
		}
	}
	return nil
}
