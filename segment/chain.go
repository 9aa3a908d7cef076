package segment

// Chain is a singly linked list of segments plus the bookkeeping the
// regular/pinned heap needs around it: where the next bump attempt
// begins (Last) and which segment most recently served an allocation
// (Current). Two independent Chain values exist per collector — one for
// the regular heap, one for the pinned heap.
type Chain struct {
	Head    *Segment
	Last    *Segment // where the next bump attempt begins
	Current *Segment // segment that last served an allocation
}

// Append adds a freshly allocated segment to the end of the chain and
// makes it both Last and Current, matching the "grow" slow path.
func (c *Chain) Append(s *Segment) {
	if c.Head == nil {
		c.Head = s
	} else {
		tail := c.Head
		for tail.Next != nil {
			tail = tail.Next
		}
		tail.Next = s
	}
	c.Last = s
	c.Current = s
}

// Bounds returns the lowest start and highest end address over every
// segment in the chain, or (0, 0, false) for an empty chain. The mark
// engine's bounding box is the union of this over both the regular and
// pinned chains.
func (c *Chain) Bounds() (lo, hi uintptr, ok bool) {
	if c.Head == nil {
		return 0, 0, false
	}
	lo, hi = c.Head.Start, c.Head.End
	for s := c.Head; s != nil; s = s.Next {
		if s.Start < lo {
			lo = s.Start
		}
		if s.End > hi {
			hi = s.End
		}
	}
	return lo, hi, true
}

// Contains reports whether addr falls within some segment of the chain,
// the linear per-segment confirmation a coarse bounding-box check alone
// cannot provide.
func (c *Chain) Contains(addr uintptr) bool {
	for s := c.Head; s != nil; s = s.Next {
		if addr >= s.Start && addr < s.End {
			return true
		}
	}
	return false
}

// Reorder relinks the chain as [Full...][Semifull...][Free...] using the
// per-segment classification produced by a just-completed sweep, and
// returns the Free segments so the caller can hand multi-page ones back
// to the page source. Last is reset to the first Semifull segment, or
// the first Free segment if there are none.
func (c *Chain) Reorder(classOf map[*Segment]Class) []*Segment {
	var full, semifull, free []*Segment
	for s := c.Head; s != nil; s = s.Next {
		switch classOf[s] {
		case Full:
			full = append(full, s)
		case Semifull:
			semifull = append(semifull, s)
		default:
			free = append(free, s)
		}
	}

	ordered := append(append(full, semifull...), free...)
	for i, s := range ordered {
		if i+1 < len(ordered) {
			s.Next = ordered[i+1]
		} else {
			s.Next = nil
		}
	}
	if len(ordered) == 0 {
		c.Head, c.Last, c.Current = nil, nil, nil
		return nil
	}
	c.Head = ordered[0]
	if len(semifull) > 0 {
		c.Last = semifull[0]
	} else if len(free) > 0 {
		c.Last = free[0]
	} else {
		c.Last = ordered[len(ordered)-1]
	}
	if c.Current == nil {
		c.Current = c.Head
	}
	return free
}

// Remove splices a segment out of the chain entirely (used after a Free
// segment has been returned to the page source and must no longer be
// walked or bump-allocated into).
func (c *Chain) Remove(target *Segment) {
	if c.Head == target {
		c.Head = target.Next
	} else {
		for s := c.Head; s != nil; s = s.Next {
			if s.Next == target {
				s.Next = target.Next
				break
			}
		}
	}
	if c.Last == target {
		c.Last = c.Head
	}
	if c.Current == target {
		c.Current = c.Head
	}
}
