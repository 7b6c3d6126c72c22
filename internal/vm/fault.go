package vm

import (
	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/metrics"
)

// FaultHandler resolves page faults for one address space: zero-fill for a
// first touch of a mapped-but-absent page, copy-on-write for a write to a
// page shared by a forked parent/child, and a hard fault for anything else
// (a write to a read-only region, or an access outside every region).
type FaultHandler struct {
	as      *AddressSpace
	frames  *FrameAllocator
	metrics *metrics.Handle
}

// NewFaultHandler builds a fault handler bound to one address space and
// frame allocator, recording counts through h (pgfault_handler counterpart).
func NewFaultHandler(as *AddressSpace, frames *FrameAllocator, h *metrics.Handle) *FaultHandler {
	return &FaultHandler{as: as, frames: frames, metrics: h}
}

// Handle resolves a fault at fault address va caused by a write (iswrite) or
// a read. It returns OK once the page is mapped and usable, or an error if
// the fault cannot be resolved (access outside any region, or write to a
// read-only region) — the caller is expected to treat those as fatal to the
// faulting process, the same way an unhandled page fault kills the process
// that caused it.
func (fh *FaultHandler) Handle(va VA, iswrite bool) errno.Errno {
	fh.metrics.IncPgfault()

	page := PageRoundDown(va)

	region := fh.as.FindMemRegion(page, 1)
	if region == nil {
		return errno.FAULT
	}
	if iswrite && region.Perm&PermWrite == 0 {
		return errno.FAULT
	}

	frame, perm, present := fh.as.PageTable.Lookup(page)
	if !present {
		return fh.zeroFill(page, region)
	}

	if iswrite && perm&PermWrite == 0 {
		return fh.resolveCOW(page, frame, region)
	}

	// Present and permitted: nothing to do, a stray fault (e.g. racing
	// with another thread's resolution) or a spurious re-trigger.
	fh.as.PageTable.FlushTLB(page)
	return errno.OK
}

// zeroFill backs a not-yet-present page in a mapped region with a freshly
// zeroed frame (fault-in of a stack/heap/bss page never touched before).
func (fh *FaultHandler) zeroFill(page VA, region *MemRegion) errno.Errno {
	f, e := fh.frames.Alloc()
	if e != errno.OK {
		return errno.PGFAULT_ALLOC
	}
	if e := fh.as.PageTable.Map(page, f, region.Perm); e != errno.OK {
		fh.frames.DecRef(f)
		return e
	}
	fh.as.PageTable.FlushTLB(page)
	return errno.OK
}

// resolveCOW handles a write fault on a page mapped read-only because it is
// shared with another address space after fork. A refcount of 1 means this
// address space now holds the only reference, so the mapping is simply
// upgraded back to writable in place; otherwise the page is duplicated and
// the original's reference released.
func (fh *FaultHandler) resolveCOW(page VA, frame *Frame, region *MemRegion) errno.Errno {
	if frame.Refcount() == 1 {
		if e := fh.as.PageTable.Protect(page, region.Perm); e != errno.OK {
			return e
		}
		fh.as.PageTable.FlushTLB(page)
		return errno.OK
	}

	fresh, e := fh.frames.Alloc()
	if e != errno.OK {
		return errno.PGFAULT_ALLOC
	}
	*fresh.Bytes() = *frame.Bytes()

	if e := fh.as.PageTable.Map(page, fresh, region.Perm); e != errno.OK {
		fh.frames.DecRef(fresh)
		return e
	}
	fh.frames.DecRef(frame)
	fh.as.PageTable.FlushTLB(page)
	return errno.OK
}
