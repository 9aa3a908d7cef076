package gc

import "sync/atomic"

// InterruptController is the interrupt-mask collaborator: Collect wraps
// its entire critical section between Disable and Enable, mirroring the
// "globally controllable interrupts" assumption of a single-CPU
// bare-metal kernel.
type InterruptController interface {
	Disable()
	Enable()
}

// AtomicController is the reference adapter, built on sync/atomic rather
// than a real interrupt mask register. It panics on a re-entrant Disable
// call: a real interrupt mask is not re-entrant either, and catching the
// bug here during development is cheaper than debugging a hung collector
// on real hardware.
type AtomicController struct {
	disabled atomic.Bool
}

func (c *AtomicController) Disable() {
	if !c.disabled.CompareAndSwap(false, true) {
		panic("gc: AtomicController.Disable called while already disabled")
	}
}

func (c *AtomicController) Enable() {
	if !c.disabled.CompareAndSwap(true, false) {
		panic("gc: AtomicController.Enable called while not disabled")
	}
}
