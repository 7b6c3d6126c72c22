package vm

import (
	"testing"

	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newHandle(t *testing.T) *metrics.Handle {
	t.Helper()
	return metrics.NewHandle(prometheus.NewRegistry())
}

func TestZeroFillOnDemandCountsFault(t *testing.T) {
	as := NewAddressSpace()
	frames := NewFrameAllocator(16)
	as.MapMemRegion(0x1000, PageSize, URW)

	h := newHandle(t)
	fh := NewFaultHandler(as, frames, h)

	e := fh.Handle(0x1000, true)
	require.Equal(t, errno.OK, e)
	require.Equal(t, uint64(1), h.NumPgfault())

	frame, perm, present := as.PageTable.Lookup(0x1000)
	require.True(t, present)
	require.Equal(t, URW, perm)
	require.NotNil(t, frame)
}

func TestFaultOutsideAnyRegionFails(t *testing.T) {
	as := NewAddressSpace()
	frames := NewFrameAllocator(16)
	fh := NewFaultHandler(as, frames, newHandle(t))

	e := fh.Handle(0x5000, false)
	require.Equal(t, errno.FAULT, e)
}

func TestWriteToReadOnlyRegionFaults(t *testing.T) {
	as := NewAddressSpace()
	frames := NewFrameAllocator(16)
	as.MapMemRegion(0x2000, PageSize, UR)
	fh := NewFaultHandler(as, frames, newHandle(t))

	e := fh.Handle(0x2000, true)
	require.Equal(t, errno.FAULT, e)
}

func TestCOWResolutionPrivatizesSharedFrame(t *testing.T) {
	parent := NewAddressSpace()
	frames := NewFrameAllocator(16)
	parent.MapMemRegion(0x3000, PageSize, URW)

	h := newHandle(t)
	parentFaults := NewFaultHandler(parent, frames, h)
	require.Equal(t, errno.OK, parentFaults.Handle(0x3000, true))

	pf, _, _ := parent.PageTable.Lookup(0x3000)
	pf.Bytes()[0] = 0x11

	child, e := CopyAddressSpace(parent)
	require.Equal(t, errno.OK, e)

	cf, cperm, present := child.PageTable.Lookup(0x3000)
	require.True(t, present)
	require.Same(t, pf, cf)
	require.Equal(t, UR, cperm&UR)
	require.Equal(t, 2, pf.Refcount())

	childFaults := NewFaultHandler(child, frames, h)
	require.Equal(t, errno.OK, childFaults.Handle(0x3000, true))

	cf2, _, _ := child.PageTable.Lookup(0x3000)
	require.NotSame(t, pf, cf2)
	require.Equal(t, 1, pf.Refcount())
	require.Equal(t, byte(0x11), cf2.Bytes()[0])

	cf2.Bytes()[0] = 0x22
	require.Equal(t, byte(0x11), pf.Bytes()[0])
}

func TestFrameAllocatorRespectsCapacity(t *testing.T) {
	frames := NewFrameAllocator(1)
	f1, e := frames.Alloc()
	require.Equal(t, errno.OK, e)

	_, e = frames.Alloc()
	require.Equal(t, errno.NOMEM, e)

	frames.Free(f1)
	_, e = frames.Alloc()
	require.Equal(t, errno.OK, e)
}

func TestMemRegionExtendGrowsHeap(t *testing.T) {
	as := NewAddressSpace()
	heap := as.MapMemRegion(0x4000, 0, URW)
	as.SetHeap(heap)

	newEnd := as.ExtendMemRegion(heap, 4096)
	require.Equal(t, VA(0x4000+4096), newEnd)
	require.Equal(t, heap, as.Heap())
}
