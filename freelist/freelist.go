// Package freelist implements the size-classed free-list allocator:
// twelve power-of-two classes from 16 to 32768 bytes, first-fit within
// a class, escalating to the next class on a miss, and splitting a
// found block when the remainder is still a usable object.
package freelist

import "github.com/mazarinos/gcore/objheader"

// NumClasses is the number of size classes: powers of two from 16 to
// 32768 bytes.
const NumClasses = 12

// classBounds[i] is the upper bound (inclusive) in bytes of class i.
var classBounds = [NumClasses]uint32{
	16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768,
}

// ClassFor returns the smallest size class whose upper bound is >= size,
// or -1 if size exceeds the largest class (the caller must fall back to
// bump/segment allocation for such oversized requests).
func ClassFor(size uint32) int {
	for i, bound := range classBounds {
		if size <= bound {
			return i
		}
	}
	return -1
}

// Allocator holds the NumClasses singly linked free lists. It is cleared
// at the start of every collection and rebuilt entirely by sweep: this
// GC never maintains free lists incrementally across mutation, so there
// is no coalescing bookkeeping here beyond what sweep already folds
// into a single free run before handing it to Insert.
type Allocator struct {
	heads [NumClasses]uintptr
}

// Clear empties every size class. Called once at the top of a
// collection, before mark runs.
func (a *Allocator) Clear() {
	for i := range a.heads {
		a.heads[i] = 0
	}
}

// Insert threads a free block of the given size onto its size class.
// size must already be objheader.MinObjectSize or larger.
func (a *Allocator) Insert(addr uintptr, size uint32) {
	class := ClassFor(size)
	if class < 0 {
		class = NumClasses - 1
	}
	objheader.FormatFreeBlock(addr, size, a.heads[class])
	a.heads[class] = addr
}

// Alloc searches for a block able to satisfy size bytes, starting at the
// smallest class whose upper bound covers it and escalating on a miss.
// On success it unlinks the block, splits off any remainder >=
// objheader.MinObjectSize bytes (reinserting the remainder into its own
// class), and returns the usable block's address and actual size (which
// may be larger than requested when no split occurred).
func (a *Allocator) Alloc(size uint32) (addr uintptr, actualSize uint32, ok bool) {
	start := ClassFor(size)
	if start < 0 {
		return 0, 0, false
	}
	for class := start; class < NumClasses; class++ {
		prev := uintptr(0)
		cur := a.heads[class]
		for cur != 0 {
			blockSize := objheader.FreeBlockSize(cur)
			if blockSize >= size {
				next := objheader.FreeBlockNext(cur)
				if prev == 0 {
					a.heads[class] = next
				} else {
					objheader.SetFreeBlockNext(prev, next)
				}
				return a.splitIfWorthwhile(cur, blockSize, size)
			}
			prev = cur
			cur = objheader.FreeBlockNext(cur)
		}
	}
	return 0, 0, false
}

func (a *Allocator) splitIfWorthwhile(addr uintptr, blockSize, requested uint32) (uintptr, uint32, bool) {
	remainder := blockSize - requested
	if remainder < objheader.MinObjectSize {
		return addr, blockSize, true
	}
	a.Insert(addr+uintptr(requested), remainder)
	return addr, requested, true
}
