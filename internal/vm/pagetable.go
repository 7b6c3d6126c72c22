package vm

import (
	"sync"

	"github.com/minios-project/minios/internal/errno"
)

// VA is a simulated virtual address, page-aligned whenever it names a
// mapping.
type VA uint64

// Perm is a memregion/page permission bitset.
type Perm int

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermUser
)

const (
	UR  = PermRead | PermUser
	URW = PermRead | PermWrite | PermUser
)

// mapping is one page table entry: the frame backing a VA and the
// permission it is currently mapped with (which may be narrower than the
// owning region's permission, e.g. downgraded to read-only for COW).
type mapping struct {
	frame *Frame
	perm  Perm
}

// PageTable is a per-address-space map from VA to mapping, implementing
// vpmap_map/vpmap_lookup_vaddr. A real MMU's vpmap_flush_tlb has no
// counterpart on a single simulated core; FlushTLB is kept as a no-op so
// fault-handling call sites read the same as they would against real
// hardware.
type PageTable struct {
	mu       sync.RWMutex
	mappings map[VA]mapping
}

// NewPageTable returns an empty page table.
func NewPageTable() *PageTable {
	return &PageTable{mappings: make(map[VA]mapping)}
}

// Map installs frame at va with the given permission (vpmap_map).
func (pt *PageTable) Map(va VA, f *Frame, perm Perm) errno.Errno {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.mappings[va] = mapping{frame: f, perm: perm}
	return errno.OK
}

// Lookup returns the frame and permission mapped at va, if any
// (vpmap_lookup_vaddr).
func (pt *PageTable) Lookup(va VA) (*Frame, Perm, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	m, ok := pt.mappings[va]
	if !ok {
		return nil, 0, false
	}
	return m.frame, m.perm, true
}

// Unmap removes whatever mapping exists at va, if any.
func (pt *PageTable) Unmap(va VA) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	delete(pt.mappings, va)
}

// Protect changes the permission of an existing mapping without touching
// the backing frame, used to downgrade pages to read-only during COW setup
// and to upgrade them back to read-write on a resolved COW fault.
func (pt *PageTable) Protect(va VA, perm Perm) errno.Errno {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	m, ok := pt.mappings[va]
	if !ok {
		return errno.INVAL
	}
	m.perm = perm
	pt.mappings[va] = m
	return errno.OK
}

// FlushTLB is a no-op hook kept for parity with vpmap_flush_tlb; a hosted
// simulation has no stale hardware translation cache to invalidate.
func (pt *PageTable) FlushTLB(VA) {}

// Each calls fn for every mapped VA, used by CopyAddressSpace to walk the
// parent's page table when cloning for fork.
func (pt *PageTable) Each(fn func(va VA, f *Frame, perm Perm)) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	for va, m := range pt.mappings {
		fn(va, m.frame, m.perm)
	}
}

// PageRoundDown implements pg_round_down.
func PageRoundDown(va VA) VA { return va &^ (PageSize - 1) }

// PageRoundUp implements pg_round_up.
func PageRoundUp(n uint64) uint64 { return (n + PageSize - 1) &^ (PageSize - 1) }

// PageOffset implements pg_ofs.
func PageOffset(va VA) uint64 { return uint64(va) & (PageSize - 1) }
