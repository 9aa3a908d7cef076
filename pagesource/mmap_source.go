package pagesource

import (
	"sort"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapSource is the reference Source adapter: it reserves anonymous,
// page-aligned mappings via golang.org/x/sys/unix and keeps a sorted
// extent table so PageTypeOf/PageBaseOf can classify any address in
// O(log n). A real kernel's physical page allocator would instead walk a
// page-frame array indexed by physical address, but the external
// contract — page-aligned, page-multiple regions tagged by type — is
// identical, so the GC core never has to know which one it is talking
// to.
type MmapSource struct {
	mu      sync.Mutex
	extents []extent
}

type extent struct {
	base     uintptr
	size     uintptr
	pageType PageType
}

// NewMmapSource constructs an empty source with no reserved extents.
func NewMmapSource() *MmapSource {
	return &MmapSource{}
}

func (m *MmapSource) AllocPages(pageType PageType, count int, zero bool) (uintptr, bool) {
	if count <= 0 {
		return 0, false
	}
	size := uintptr(count) * PageSize

	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, false
	}
	// mmap(MAP_ANON) already returns zeroed pages; zero is honored for
	// callers that reuse a region obtained some other way in tests.
	if zero {
		for i := range data {
			data[i] = 0
		}
	}

	base := uintptr(unsafe.Pointer(&data[0]))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.extents = append(m.extents, extent{base: base, size: size, pageType: pageType})
	sort.Slice(m.extents, func(i, j int) bool { return m.extents[i].base < m.extents[j].base })
	return base, true
}

func (m *MmapSource) Free(addr uintptr) {
	m.mu.Lock()
	idx := m.indexOf(addr)
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	e := m.extents[idx]
	m.extents = append(m.extents[:idx], m.extents[idx+1:]...)
	m.mu.Unlock()

	data := unsafe.Slice((*byte)(unsafe.Pointer(e.base)), e.size)
	if err := unix.Munmap(data); err != nil {
		// Nothing recoverable to do here; the region leaks. A real page
		// source would have no equivalent failure mode since it owns
		// the physical frames outright.
		_ = errors.Wrap(err, "pagesource: munmap failed")
	}
}

func (m *MmapSource) PageTypeOf(addr uintptr) PageType {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(addr)
	if idx < 0 {
		return NotOurs
	}
	return m.extents[idx].pageType
}

func (m *MmapSource) PageBaseOf(addr uintptr) uintptr {
	return addr &^ (PageSize - 1)
}

// indexOf returns the extent index containing addr, or -1. Caller must
// hold mu.
func (m *MmapSource) indexOf(addr uintptr) int {
	i := sort.Search(len(m.extents), func(i int) bool { return m.extents[i].base+m.extents[i].size > addr })
	if i < len(m.extents) && addr >= m.extents[i].base && addr < m.extents[i].base+m.extents[i].size {
		return i
	}
	return -1
}
