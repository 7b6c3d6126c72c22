package vm

import (
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/minios-project/minios/internal/errno"
)

// MemRegion is a contiguous virtual-address range with uniform permissions.
//
// GUARDED_BY(as.mu)
type MemRegion struct {
	Start VA
	End   VA
	Perm  Perm
}

func (r *MemRegion) contains(va VA, size uint64) bool {
	if va < r.Start || va >= r.End {
		return false
	}
	end := uint64(va) + size
	return end >= uint64(va) && end <= uint64(r.End) // reject overflow and spill past the region
}

// AddressSpace owns a page table and the list of memory regions mapped
// into it, including the distinguished heap region.
//
// LOCK ORDERING: never acquire two AddressSpaces' locks at once;
// CopyAddressSpace below only ever holds the parent's lock while building
// the (not yet shared) child from scratch.
type AddressSpace struct {
	PageTable *PageTable

	mu      syncutil.InvariantMutex
	regions []*MemRegion
	heap    *MemRegion
}

// NewAddressSpace returns an empty address space (as_init).
func NewAddressSpace() *AddressSpace {
	as := &AddressSpace{PageTable: NewPageTable()}
	as.mu = syncutil.NewInvariantMutex(as.checkInvariants)
	return as
}

func (as *AddressSpace) checkInvariants() {
	for _, r := range as.regions {
		// A region may be created with End == Start (e.g. the heap's initial
		// zero-sized region, later grown by sbrk via ExtendMemRegion); only a
		// negative-size region is a bug.
		if r.End < r.Start {
			panic(fmt.Sprintf("inverted region [%v, %v)", r.Start, r.End))
		}
	}
}

// MapMemRegion adds a new region to the address space (as_map_memregion).
func (as *AddressSpace) MapMemRegion(start VA, size uint64, perm Perm) *MemRegion {
	as.mu.Lock()
	defer as.mu.Unlock()

	r := &MemRegion{Start: start, End: VA(uint64(start) + size), Perm: perm}
	as.regions = append(as.regions, r)
	return r
}

// SetHeap designates r as the heap region (proc_load step 3).
func (as *AddressSpace) SetHeap(r *MemRegion) { as.heap = r }

// Heap returns the heap region, or nil if none has been set yet.
func (as *AddressSpace) Heap() *MemRegion {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.heap
}

// FindMemRegion returns the region enclosing [va, va+size), or nil
// (as_find_memregion). A size of 0 or 1 checks only that va itself falls in
// a region, which is how the fault handler uses it.
func (as *AddressSpace) FindMemRegion(va VA, size uint64) *MemRegion {
	as.mu.RLock()
	defer as.mu.RUnlock()

	if size == 0 {
		size = 1
	}
	for _, r := range as.regions {
		if r.contains(va, size) {
			return r
		}
	}
	return nil
}

// ExtendMemRegion grows r's end by delta bytes (memregion_extend), used by
// sbrk. Returns the region's new end.
func (as *AddressSpace) ExtendMemRegion(r *MemRegion, delta int64) VA {
	as.mu.Lock()
	defer as.mu.Unlock()
	r.End = VA(int64(r.End) + delta)
	return r.End
}

// Destroy releases every frame this address space's page table still maps
// (proc_exit step 6: "destroy address space").
func (as *AddressSpace) Destroy(alloc *FrameAllocator) {
	as.PageTable.Each(func(va VA, f *Frame, _ Perm) {
		alloc.DecRef(f)
	})
}

// CopyAddressSpace implements as_copy_as: a copy-on-write clone of src into
// a freshly created child address space, used by process fork. Every page
// the parent has mapped is shared with incremented refcount and, if it was
// writable, downgraded to read-only in *both* page tables so that the next
// write by either side takes a COW fault.
//
// This function installs the mapping in both page tables before returning,
// so neither parent nor child can race ahead and observe an un-COW'd page.
func CopyAddressSpace(src *AddressSpace) (*AddressSpace, errno.Errno) {
	dst := NewAddressSpace()

	src.mu.Lock()
	defer src.mu.Unlock()

	for _, r := range src.regions {
		dst.regions = append(dst.regions, &MemRegion{Start: r.Start, End: r.End, Perm: r.Perm})
		if r == src.heap {
			dst.heap = dst.regions[len(dst.regions)-1]
		}
	}

	var copyErr errno.Errno
	src.PageTable.Each(func(va VA, f *Frame, perm Perm) {
		if copyErr != errno.OK {
			return
		}

		sharedPerm := perm
		if perm&PermWrite != 0 {
			sharedPerm = perm &^ PermWrite
		}

		f.IncRef()
		if e := dst.PageTable.Map(va, f, sharedPerm); e != errno.OK {
			copyErr = e
			return
		}
		if sharedPerm != perm {
			src.PageTable.Protect(va, sharedPerm)
		}
	})

	if copyErr != errno.OK {
		return nil, copyErr
	}
	return dst, errno.OK
}
