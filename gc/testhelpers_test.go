package gc

import (
	"unsafe"

	"github.com/mazarinos/gcore/heap"
	"github.com/mazarinos/gcore/objheader"
)

func ptrOf(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

func isFreeObject(addr uintptr) bool {
	return objheader.IsFreeBlock(addr)
}

func pinnedFlags() heap.Flags {
	return heap.Flags{Pinned: true}
}
