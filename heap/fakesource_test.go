package heap

import (
	"unsafe"

	"github.com/mazarinos/gcore/pagesource"
)

// fakeSource backs heap tests with plain Go-allocated buffers instead of
// real mmap, so the package's allocation logic can be exercised without
// touching the OS.
type fakeSource struct {
	fail    bool
	regions [][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{}
}

func (f *fakeSource) AllocPages(pageType pagesource.PageType, count int, zero bool) (uintptr, bool) {
	if f.fail || count <= 0 {
		return 0, false
	}
	buf := make([]byte, count*pagesource.PageSize)
	f.regions = append(f.regions, buf)
	return uintptr(unsafe.Pointer(&buf[0])), true
}

func (f *fakeSource) Free(addr uintptr) {}

func (f *fakeSource) PageTypeOf(addr uintptr) pagesource.PageType {
	return pagesource.NotOurs
}

func (f *fakeSource) PageBaseOf(addr uintptr) uintptr {
	return addr &^ (pagesource.PageSize - 1)
}
