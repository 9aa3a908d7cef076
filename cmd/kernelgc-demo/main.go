// Command kernelgc-demo wires every collaborator of the managed-memory
// core into a running Collector and drives a handful of allocations and
// collections end to end, the hosted-process equivalent of the
// teacher's KernelMain wiring boot.s's peripherals into uartPuts.
//
// On a real bare-metal target the page source would be a physical frame
// allocator, the scheduler would be the kernel's own thread table, and
// Memory would read process memory directly; here they're all adapted
// to a normal OS process so the core can be exercised without hardware.
package main

import (
	"fmt"
	"os"
	"unsafe"

	kitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mazarinos/gcore/descriptor"
	"github.com/mazarinos/gcore/gc"
	"github.com/mazarinos/gcore/handle"
	"github.com/mazarinos/gcore/pagesource"
	"github.com/mazarinos/gcore/roots"
)

// stackMemory adapts a single goroutine's conservative root scan to a
// plain Go slice standing in for that thread's stack, since this demo
// has no real machine stack to walk.
type stackMemory struct {
	words []uintptr
}

func (m *stackMemory) ReadWord(addr uintptr) uintptr {
	base := uintptr(unsafe.Pointer(&m.words[0]))
	idx := (addr - base) / unsafe.Sizeof(uintptr(0))
	if int(idx) < 0 || int(idx) >= len(m.words) {
		return 0
	}
	return m.words[idx]
}

func main() {
	base := kitlog.NewLogfmtLogger(os.Stdout)
	logger := gc.NewKitLogger(kitlog.With(base, "component", "gcore-demo"))

	src := pagesource.NewMmapSource()

	// A single conservative root: a fake "stack" of three words, with
	// the middle word pointing at a live object and the other two zero.
	stack := &stackMemory{words: make([]uintptr, 3)}
	stackBase := uintptr(unsafe.Pointer(&stack.words[0]))
	sched := roots.SingleThreadScheduler{
		Extent: roots.ThreadExtent{
			StackLo: stackBase,
			StackHi: stackBase + uintptr(len(stack.words))*unsafe.Sizeof(uintptr(0)),
		},
	}

	collector := gc.New(gc.Config{
		Source:         src,
		Interrupt:      &gc.AtomicController{},
		Logger:         logger,
		Scheduler:      sched,
		Memory:         stack,
		HandleCapacity: 64,
		FreeSentinel:   0xDEAD0BAD,
	})

	reg := &descriptor.Registry{}
	nodeDesc := reg.DefineFixed(2*unsafe.Sizeof(uintptr(0)), true, []descriptor.Span{
		{Offset: unsafe.Sizeof(uintptr(0)), PointerCount: 1},
	})
	leafDesc := reg.DefineFixed(2*unsafe.Sizeof(uintptr(0)), false, nil)

	leaf := collector.AllocObjectFast(leafDesc)
	node := collector.AllocObjectFast(nodeDesc)
	*(*uintptr)(unsafe.Pointer(node + unsafe.Sizeof(uintptr(0)))) = leaf

	// Root node from the fake stack's middle word; the zero words around
	// it exercise the mark engine's null-candidate rejection.
	stack.words[1] = node

	orphanDesc := reg.DefineFixed(48, false, nil)
	orphan := collector.AllocObjectFast(orphanDesc)
	weakHandle := collector.HandleAlloc(orphan, handle.Weak)

	logger.Info("allocated", "node", fmt.Sprintf("%#x", node), "leaf", fmt.Sprintf("%#x", leaf), "orphan", fmt.Sprintf("%#x", orphan))

	freed := collector.Collect()
	logger.Info("collected", "freed_objects", freed)

	if collector.HandleGet(weakHandle) != 0 {
		logger.Warn("unexpected: weak handle to an unrooted object survived")
	} else {
		logger.Info("weak handle cleared as expected")
	}

	metrics := gc.MetricsCollector{GC: collector}
	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics); err != nil {
		logger.Warn("metrics registration failed", "err", err.Error())
	}

	stats := collector.Stats()
	logger.Info("stats",
		"regular_used", stats.RegularUsedBytes,
		"regular_free", stats.RegularFreeBytes,
		"pinned_used", stats.PinnedUsedBytes,
		"collections_run", stats.CollectionsRun,
	)
}
