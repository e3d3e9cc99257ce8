// Package alloc implements the job-scoped allocation container: a flat
// ledger of raw aligned allocations, freed in bulk on job teardown.
//
// No available library exposes a raw aligned-allocation primitive with
// per-pointer bookkeeping, so this component is built on unsafe + the
// standard library rather than a third-party allocator (see DESIGN.md).
package alloc

import (
	"math/bits"
	"sync"
	"unsafe"

	apperrors "github.com/pixelforge/imgcore/errors"
)

type record struct {
	raw       []byte // backing storage, kept alive via the map so the GC can't reclaim it
	aligned   uintptr
	size      int
	alignment int
}

// Container tracks raw allocations by pointer for accounting and bulk
// release. Each job owns exactly one Container; every method takes the
// container's own mutex for the duration of the call.
type Container struct {
	mu     sync.Mutex
	allocs map[uintptr]*record
}

// New returns an empty Container.
func New() *Container {
	return &Container{allocs: make(map[uintptr]*record, 8)}
}

// Allocate returns a zero-initialized, alignment-aligned pointer of the
// requested size, tracked for later Free or bulk Close. Fails with
// InvalidArgument if alignment is not a power of two or size is zero.
func (c *Container) Allocate(size, alignment int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "alloc.allocate",
			apperrors.ErrInvalidDimensions)
	}
	if alignment <= 0 || bits.OnesCount(uint(alignment)) != 1 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "alloc.allocate",
			apperrors.ErrInvalidDimensions)
	}

	// Over-allocate by alignment-1 bytes so we can carve out an aligned
	// sub-slice; the raw slice is retained in the record to keep it alive.
	raw := make([]byte, size+alignment-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	mask := uintptr(alignment - 1)
	aligned := (base + mask) &^ mask

	c.mu.Lock()
	c.allocs[aligned] = &record{raw: raw, aligned: aligned, size: size, alignment: alignment}
	c.mu.Unlock()

	return unsafe.Pointer(aligned), nil
}

// Free releases a previously allocated pointer. Returns false without
// aborting if ptr is unknown (duplicate or foreign free).
func (c *Container) Free(ptr unsafe.Pointer) bool {
	addr := uintptr(ptr)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.allocs[addr]; !ok {
		return false
	}
	delete(c.allocs, addr)
	return true
}

// LiveCount returns the number of allocations not yet freed; useful for leak
// assertions in tests.
func (c *Container) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.allocs)
}

// Close releases all remaining live allocations and returns how many were
// freed, so callers (typically Context.Destroy) can assert no leaks.
func (c *Container) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.allocs)
	c.allocs = make(map[uintptr]*record, 8)
	return n
}
