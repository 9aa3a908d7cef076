// Package pagesource defines the page allocator collaborator interface
// and ships a host-testable reference adapter backed by anonymous mmap
// regions, so the GC core can be exercised without a real physical page
// allocator underneath it.
package pagesource

// PageType tags the purpose of a page-aligned region, as tracked by the
// real page allocator. NotOurs is returned for any address the source
// does not itself manage.
type PageType int

const (
	NotOurs PageType = iota
	RegularHeap
	PinnedHeap
	HandleTable
	Metadata
)

// PageSize is the fixed page granularity the core assumes throughout (4096).
const PageSize = 4096

// Source is the page allocator collaborator: request/return page-aligned,
// page-multiple regions, and classify arbitrary addresses.
type Source interface {
	// AllocPages reserves count*PageSize contiguous bytes tagged with
	// pageType, optionally zeroed, returning the base address or (0,
	// false) on exhaustion.
	AllocPages(pageType PageType, count int, zero bool) (addr uintptr, ok bool)

	// Free returns a region previously obtained from AllocPages.
	Free(addr uintptr)

	// PageTypeOf reports the tag of the page containing addr, or NotOurs
	// if addr does not lie in any region this source manages.
	PageTypeOf(addr uintptr) PageType

	// PageBaseOf returns the page-aligned base address of the page
	// containing addr.
	PageBaseOf(addr uintptr) uintptr
}
