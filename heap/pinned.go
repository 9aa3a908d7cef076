package heap

import (
	"github.com/mazarinos/gcore/pagesource"
	"github.com/mazarinos/gcore/segment"
)

// Pinned is the chain-of-segments allocator for objects that must never
// move: a pinned object keeps its address across collections for as long
// as it is reachable. It shares the regular heap's bump/grow shape but
// has no free list: dead space is reclaimed only when a sweep's trailing
// dead run reaches a segment's bump cursor, rolling the cursor back
// (sweep.Pinned), never by splicing freed blocks back into circulation.
type Pinned struct {
	Chain segment.Chain
	src   pagesource.Source
}

// NewPinned constructs an empty pinned heap drawing new segments from src.
func NewPinned(src pagesource.Source) *Pinned {
	return &Pinned{src: src}
}

// Alloc bumps in the last segment, else walks the chain, else grows.
// No free-list step exists.
func (p *Pinned) Alloc(size uint32) (addr uintptr, ok bool) {
	size = alignSize(size)

	if p.Chain.Last != nil {
		if a, found := p.Chain.Last.TryBump(uintptr(size)); found {
			p.Chain.Current = p.Chain.Last
			return a, true
		}
	}

	if s := p.walkForFit(size); s != nil {
		a, _ := s.TryBump(uintptr(size))
		p.Chain.Current = s
		p.Chain.Last = s
		return a, true
	}

	grown := p.grow(size)
	if grown == nil {
		return 0, false
	}
	a, _ := grown.TryBump(uintptr(size))
	return a, true
}

func (p *Pinned) walkForFit(size uint32) *segment.Segment {
	if p.Chain.Last == nil {
		return nil
	}
	start := p.Chain.Last
	for s := start; s != nil; s = s.Next {
		if s.Free() >= uintptr(size) {
			return s
		}
	}
	for s := p.Chain.Head; s != start; s = s.Next {
		if s.Free() >= uintptr(size) {
			return s
		}
	}
	return nil
}

func (p *Pinned) grow(size uint32) *segment.Segment {
	want := uintptr(size)
	if want < pagesource.PageSize {
		want = pagesource.PageSize
	}
	pages := (want + pagesource.PageSize - 1) / pagesource.PageSize

	base, ok := p.src.AllocPages(pagesource.PinnedHeap, int(pages), true)
	if !ok {
		return nil
	}
	s := segment.New(base, pages*pagesource.PageSize)
	p.Chain.Append(s)
	return s
}
