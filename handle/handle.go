// Package handle implements the GC handle table: a flat array of
// 24-byte slots referencing heap objects from outside the traced heap
// (native stacks, FFI boundaries, interpreter state).
package handle

import (
	"unsafe"

	"github.com/mazarinos/gcore/objheader"
)

// Kind selects a handle slot's rooting and clearing behavior.
type Kind int

const (
	// Weak handles are not roots; cleared to null if their target is
	// unmarked at the end of a mark phase.
	Weak Kind = iota
	// Strong handles are roots and are never auto-cleared.
	Strong
	// Pinned handles are roots; their target additionally may never be
	// relocated (trivially true in this non-moving design).
	Pinned
	// Dependent handles do not by themselves root their target; the
	// secondary (stored in extra) is a root iff the target is marked
	// through some other root, and the whole slot is cleared iff the
	// target does not survive marking.
	Dependent
)

// Handle is one plus an index into a Table's slot array, so the zero
// value is never a valid allocated handle.
type Handle uint32

// slot is 24 bytes: target pointer, kind, and an extra word used by
// dependent handles to hold the secondary object.
type slot struct {
	target uintptr
	kind   Kind
	extra  uintptr
}

// Table is the single dedicated segment of handle slots. Capacity is
// fixed at construction; Alloc returns ok == false when full. Growth is
// optional and caller-driven via Grow, never automatic.
type Table struct {
	slots []slot
}

// NewTable constructs a table with room for capacity handles, all
// initially empty.
func NewTable(capacity int) *Table {
	return &Table{slots: make([]slot, capacity)}
}

// Alloc scans linearly for the first empty slot (target == 0) and claims
// it for object under kind. Dependent handles must be created via
// AllocDependent, which additionally stores the secondary.
func (t *Table) Alloc(object uintptr, kind Kind) (Handle, bool) {
	if object == 0 {
		return 0, false
	}
	for i := range t.slots {
		if t.slots[i].target == 0 {
			t.slots[i] = slot{target: object, kind: kind}
			return Handle(i + 1), true
		}
	}
	return 0, false
}

// AllocDependent claims a slot holding both a target and a secondary
// object, whose liveness the dependent-handle rule ties together (see
// StrongRoots and DependentSecondaries below).
func (t *Table) AllocDependent(target, secondary uintptr) (Handle, bool) {
	if target == 0 {
		return 0, false
	}
	for i := range t.slots {
		if t.slots[i].target == 0 {
			t.slots[i] = slot{target: target, kind: Dependent, extra: secondary}
			return Handle(i + 1), true
		}
	}
	return 0, false
}

// Free clears a handle's slot, returning it to the empty pool.
func (t *Table) Free(h Handle) {
	if h == 0 || int(h) > len(t.slots) {
		return
	}
	t.slots[h-1] = slot{}
}

// Get returns the handle's current target, or 0 if it has been cleared
// or freed.
func (t *Table) Get(h Handle) uintptr {
	if h == 0 || int(h) > len(t.slots) {
		return 0
	}
	return t.slots[h-1].target
}

// GetDependent returns the target and secondary of a dependent handle.
// For non-dependent handles the secondary is always 0.
func (t *Table) GetDependent(h Handle) (target, secondary uintptr) {
	if h == 0 || int(h) > len(t.slots) {
		return 0, 0
	}
	s := t.slots[h-1]
	return s.target, s.extra
}

// Grow copies all slots into a new, larger table; growth is optional
// and caller-driven, never automatic. Existing Handle values remain
// valid in the returned table.
func (t *Table) Grow(newCapacity int) *Table {
	if newCapacity < len(t.slots) {
		newCapacity = len(t.slots)
	}
	grown := &Table{slots: make([]slot, newCapacity)}
	copy(grown.slots, t.slots)
	return grown
}

// Len reports the table's current slot capacity.
func (t *Table) Len() int {
	return len(t.slots)
}

// StrongRoots calls fn once for every object unconditionally rooted by
// this table: strong and pinned targets. A dependent handle's target is
// deliberately excluded — per S4 of the worked scenarios, a dependent
// handle must not by itself keep its target alive; only DependentSecondaries
// projects a conditional root from it once something else has already
// marked the target.
func (t *Table) StrongRoots(fn func(obj uintptr)) {
	for i := range t.slots {
		s := t.slots[i]
		if s.target == 0 {
			continue
		}
		switch s.kind {
		case Strong, Pinned:
			fn(s.target)
		}
	}
}

// DependentSecondaries calls fn once for every dependent handle's
// secondary whose target is currently marked. The mark engine calls this
// repeatedly to a fixpoint: marking a secondary may itself mark further
// objects, including the target of some other dependent handle.
func (t *Table) DependentSecondaries(fn func(secondary uintptr)) {
	for i := range t.slots {
		s := t.slots[i]
		if s.target == 0 || s.kind != Dependent || s.extra == 0 {
			continue
		}
		if objheader.IsMarked(s.target) {
			fn(s.extra)
		}
	}
}

// ClearDead performs post-mark handle cleanup: weak handles whose
// target did not survive marking are cleared to null, and dependent
// handles whose target did not survive are cleared entirely (both
// target and secondary).
func (t *Table) ClearDead() {
	for i := range t.slots {
		s := &t.slots[i]
		if s.target == 0 {
			continue
		}
		switch s.kind {
		case Weak:
			if !objheader.IsMarked(s.target) {
				s.target = 0
			}
		case Dependent:
			if !objheader.IsMarked(s.target) {
				s.target = 0
				s.extra = 0
			}
		}
	}
}

// BaseAddr returns the address of the table's backing slot array. On a
// real kernel the handle table lives in a dedicated page-source segment
// with a known base; here the Go slice's own backing array plays that
// role, and BaseAddr is how the mark engine learns where it starts.
func (t *Table) BaseAddr() uintptr {
	if len(t.slots) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&t.slots[0]))
}

// InRange reports whether addr lies within this table's backing slot
// array, used by the mark engine (through gc's handleRange) to reject
// handle-table memory itself as a candidate object pointer.
func (t *Table) InRange(addr, tableBase uintptr) bool {
	size := uintptr(len(t.slots)) * slotSize
	return addr >= tableBase && addr < tableBase+size
}

const slotSize = unsafe.Sizeof(slot{})
