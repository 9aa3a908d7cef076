package objheader

import "unsafe"

// FreeSentinel is the process-wide descriptor value sweep writes into a
// reclaimed block's header word. It is never a valid descriptor address:
// callers of SetFreeSentinel must pick a value that no real descriptor
// pointer could equal, so a header word equal to the sentinel can never
// be confused with a live object's descriptor.
var FreeSentinel uintptr = 0x1 // overwritten by SetFreeSentinel at GC init; low bit set so it can never collide with an aligned real descriptor either.

// SetFreeSentinel installs the process-wide free-block marker. Call it
// once during GC initialization, before any sweep runs.
func SetFreeSentinel(v uintptr) {
	FreeSentinel = v
}

// freeBlock is the in-place layout sweep gives to dead space:
//
//	+0  sentinel descriptor pointer (word-sized; compared as a whole word)
//	+8  size (4 bytes, includes this header)
//	+16 next pointer (8 bytes), threading the block into its size class
//
// The struct is never instantiated by value — blocks live at arbitrary
// segment addresses and are only ever accessed through the accessors
// below, formatted in place over whatever object used to occupy the
// space.
type freeBlockLayout struct {
	sentinel uintptr
	size     uint32
	_        uint32
	next     uintptr
}

const FreeBlockHeaderSize = unsafe.Sizeof(freeBlockLayout{})

func asFreeBlock(addr uintptr) *freeBlockLayout {
	return (*freeBlockLayout)(unsafe.Pointer(addr))
}

// IsFreeBlock reports whether the header word at addr equals the
// process-wide free sentinel.
func IsFreeBlock(addr uintptr) bool {
	return *header(addr) == FreeSentinel
}

// FormatFreeBlock reformats the span [addr, addr+size) in place as a
// walkable free block of the given size and next pointer. size must be
// at least MinObjectSize.
func FormatFreeBlock(addr uintptr, size uint32, next uintptr) {
	fb := asFreeBlock(addr)
	fb.sentinel = FreeSentinel
	fb.size = size
	fb.next = next
}

// FreeBlockSize reads the size field of a free block (the sweep/free-list
// caller is responsible for having checked IsFreeBlock first).
func FreeBlockSize(addr uintptr) uint32 {
	return asFreeBlock(addr).size
}

// FreeBlockNext reads the next-pointer field of a free block.
func FreeBlockNext(addr uintptr) uintptr {
	return asFreeBlock(addr).next
}

// SetFreeBlockNext rewrites the next-pointer field of a free block
// in place (used when splicing a block out of its size class).
func SetFreeBlockNext(addr uintptr, next uintptr) {
	asFreeBlock(addr).next = next
}
