// Package objheader reads and writes the one-word tagged object header
// (descriptor pointer with the mark bit folded into bit 0) and the
// optional element-count field that follows it for array/string-shaped
// objects. It also defines the free-block shape sweep reformats dead
// space into, so that a linear walk of a segment cannot distinguish a
// live object from a free block until it reads the header word.
package objheader

import "unsafe"

const wordSize = unsafe.Sizeof(uintptr(0))

// MinObjectSize is the smallest object any allocation may produce: large
// enough to be reformatted in place as a walkable free block.
const MinObjectSize = 24

// ElementCountOffset is the byte offset of the 4-byte element-count field
// from the object base, immediately after the header word.
const ElementCountOffset = wordSize

func header(obj uintptr) *uintptr {
	return (*uintptr)(unsafe.Pointer(obj))
}

// WriteHeader stores descriptor d as the unmarked header word of obj. d
// must be naturally aligned (its low bit must already be zero).
func WriteHeader(obj uintptr, d uintptr) {
	*header(obj) = d
}

// DescriptorOf returns the header word with the mark bit masked off.
func DescriptorOf(obj uintptr) uintptr {
	return *header(obj) &^ 1
}

// Mark sets the low bit of the header word.
func Mark(obj uintptr) {
	h := header(obj)
	*h = *h | 1
}

// Unmark clears the low bit of the header word.
func Unmark(obj uintptr) {
	h := header(obj)
	*h = *h &^ 1
}

// IsMarked tests the low bit of the header word.
func IsMarked(obj uintptr) bool {
	return *header(obj)&1 != 0
}

// ElementCount reads the 4-byte element count following the header. It
// is only meaningful when the type descriptor reports HasComponentSize.
func ElementCount(obj uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(obj + ElementCountOffset))
}

// WriteElementCount stores the element count following the header.
func WriteElementCount(obj uintptr, n uint32) {
	*(*uint32)(unsafe.Pointer(obj + ElementCountOffset)) = n
}
