package gc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mazarinos/gcore/segment"
)

// Stats is a point-in-time snapshot of collector state, sourced from
// this collector's own bookkeeping rather than the host Go runtime's
// heap.
type Stats struct {
	HeapMin, HeapMax uintptr
	RegularUsedBytes uintptr
	RegularFreeBytes uintptr
	PinnedUsedBytes  uintptr
	CollectionsRun   uint64
	LastFreedObjects uint64
}

// Stats returns a snapshot safe to read at any time; it does not itself
// disable interrupts since reading bookkeeping fields is not a mutation.
func (c *Collector) Stats() Stats {
	return Stats{
		HeapMin:          c.bounds.min,
		HeapMax:          c.bounds.max,
		RegularUsedBytes: chainUsed(&c.regular.Chain),
		RegularFreeBytes: chainFree(&c.regular.Chain),
		PinnedUsedBytes:  chainUsed(&c.pinned.Chain),
		CollectionsRun:   c.collectionsRun,
		LastFreedObjects: c.lastFreedObjects,
	}
}

func chainUsed(ch *segment.Chain) uintptr {
	var total uintptr
	for s := ch.Head; s != nil; s = s.Next {
		total += s.Used
	}
	return total
}

func chainFree(ch *segment.Chain) uintptr {
	var total uintptr
	for s := ch.Head; s != nil; s = s.Next {
		total += s.Free()
	}
	return total
}

var (
	descHeapBytes = prometheus.NewDesc(
		"gcore_heap_bytes", "Bytes tracked per heap chain and state.",
		[]string{"chain", "state"}, nil,
	)
	descCollections = prometheus.NewDesc(
		"gcore_collections_total", "Number of stop-the-world collections run.", nil, nil,
	)
	descLastFreed = prometheus.NewDesc(
		"gcore_last_collection_freed_objects", "Objects reclaimed by the most recent collection.", nil, nil,
	)
)

// MetricsCollector adapts a Collector to prometheus.Collector. It is a
// separate type, not a method set on Collector itself, because the
// Prometheus interface's Collect(chan<- prometheus.Metric) would
// otherwise collide with the GC entry point Collector.Collect() — the
// two are unrelated operations that happen to share a name.
type MetricsCollector struct {
	GC *Collector
}

func (m MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descHeapBytes
	ch <- descCollections
	ch <- descLastFreed
}

func (m MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := m.GC.Stats()
	ch <- prometheus.MustNewConstMetric(descHeapBytes, prometheus.GaugeValue, float64(s.RegularUsedBytes), "regular", "used")
	ch <- prometheus.MustNewConstMetric(descHeapBytes, prometheus.GaugeValue, float64(s.RegularFreeBytes), "regular", "free")
	ch <- prometheus.MustNewConstMetric(descHeapBytes, prometheus.GaugeValue, float64(s.PinnedUsedBytes), "pinned", "used")
	ch <- prometheus.MustNewConstMetric(descCollections, prometheus.CounterValue, float64(s.CollectionsRun))
	ch <- prometheus.MustNewConstMetric(descLastFreed, prometheus.GaugeValue, float64(s.LastFreedObjects))
}
