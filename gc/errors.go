package gc

import "github.com/pkg/errors"

// ErrOutOfMemory is logged when allocation fails even after a triggered
// collection; every exported Alloc* method then returns 0, never letting
// the error escape.
var ErrOutOfMemory = errors.New("gc: out of memory")

// ErrHandleCapacity is logged when the handle table is full (the
// collector never grows it); HandleAlloc and HandleAllocDependent then
// return a zero Handle.
var ErrHandleCapacity = errors.New("gc: handle table at capacity")
