// Package vm implements simulated physical-memory, page-table, and
// address-space primitives (frame allocation, page-table mapping,
// copy-on-write address-space cloning), plus the page-fault handler built
// on top of them. Hosting a process/IPC kernel in user space means
// something has to stand in for the MMU; this package is that stand-in.
package vm

import (
	"sync"

	"github.com/minios-project/minios/internal/errno"
	"golang.org/x/sync/semaphore"
)

// PageSize matches a typical hardware page; all regions and frames are
// multiples of it.
const PageSize = 4096

// Frame is one physical page: a fixed-size byte array plus a refcount
// shared by every page-table entry that maps it (used by copy-on-write
// sharing between a forked parent and child).
type Frame struct {
	mu       sync.Mutex
	bytes    [PageSize]byte
	refcount int
}

// Bytes returns the frame's backing storage. Callers must hold whatever
// higher-level lock (the owning PageTable's) serializes concurrent access;
// Frame itself only protects its refcount.
func (f *Frame) Bytes() *[PageSize]byte { return &f.bytes }

// IncRef increments the frame's reference count, e.g. when COW setup shares
// the frame with a second page table. Alloc does not use it: a new frame
// starts at refcount 1 directly.
func (f *Frame) IncRef() {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
}

// Refcount returns the current reference count.
func (f *Frame) Refcount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refcount
}

// FrameAllocator hands out zeroed physical frames and implements
// pmem_alloc/pmem_free/pmem_dec_refcnt. Capacity is bounded by a semaphore
// so a misbehaving process can't allocate unbounded simulated physical
// memory.
type FrameAllocator struct {
	sem *semaphore.Weighted
}

// NewFrameAllocator creates an allocator capped at capacityFrames physical
// frames.
func NewFrameAllocator(capacityFrames int64) *FrameAllocator {
	return &FrameAllocator{sem: semaphore.NewWeighted(capacityFrames)}
}

// Alloc returns a new zeroed frame with refcount 1, or NOMEM if the
// allocator is at capacity (pmem_alloc).
func (a *FrameAllocator) Alloc() (*Frame, errno.Errno) {
	if !a.sem.TryAcquire(1) {
		return nil, errno.NOMEM
	}
	return &Frame{refcount: 1}, errno.OK
}

// DecRef decrements the frame's refcount, freeing it back to the allocator
// when it reaches zero (pmem_dec_refcnt).
func (a *FrameAllocator) DecRef(f *Frame) {
	f.mu.Lock()
	f.refcount--
	freed := f.refcount == 0
	f.mu.Unlock()

	if freed {
		a.sem.Release(1)
	}
}

// Free is an alias for DecRef used where the caller knows it holds the only
// reference (pmem_free).
func (a *FrameAllocator) Free(f *Frame) { a.DecRef(f) }
