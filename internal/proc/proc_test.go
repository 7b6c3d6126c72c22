package proc

import (
	"testing"

	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/kfs"
	"github.com/minios-project/minios/internal/metrics"
	"github.com/minios-project/minios/internal/vm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	fs := kfs.New()
	frames := vm.NewFrameAllocator(4096)
	m := metrics.NewHandle(prometheus.NewRegistry())
	return NewTable(fs, frames, m, Limits{})
}

func TestInitInstallsStdio(t *testing.T) {
	pt := newTable(t)
	p, e := pt.Init("root", nil)
	require.Equal(t, errno.OK, e)
	require.True(t, p.Files.Validate(0))
	require.True(t, p.Files.Validate(1))
	require.Equal(t, 2, p.Files.Count())
}

func TestForkInheritsDescriptorsAtSameIndex(t *testing.T) {
	pt := newTable(t)
	parent, e := pt.Init("parent", nil)
	require.Equal(t, errno.OK, e)

	dir, e := pt.FS.GetInode(pt.FS.RootIno())
	require.Equal(t, errno.OK, e)
	fileIno, e := pt.FS.CreateFile(dir, "data")
	require.Equal(t, errno.OK, e)

	f, e := pt.FS.OpenFile(fileIno, 1 /* O_RDONLY */)
	require.Equal(t, errno.OK, e)
	fd, e := parent.Files.Alloc(f)
	require.Equal(t, errno.OK, e)
	require.Equal(t, 2, fd) // lowest free index after 0, 1

	child, e := pt.Fork(parent)
	require.Equal(t, errno.OK, e)

	got, e := child.Files.Get(fd)
	require.Equal(t, errno.OK, e)
	require.Same(t, f, got)
	require.GreaterOrEqual(t, f.Refcount(), 2)
}

func TestWaitAnyReturnsExitedChild(t *testing.T) {
	pt := newTable(t)
	parent, e := pt.Init("parent", nil)
	require.Equal(t, errno.OK, e)

	child, e := pt.Fork(parent)
	require.Equal(t, errno.OK, e)

	go pt.Exit(child, 7)

	pid, status, e := pt.Wait(parent, AnyChild)
	require.Equal(t, errno.OK, e)
	require.Equal(t, child.PID, pid)
	require.Equal(t, 7, status)
}

func TestWaitOnNonChildReturnsErrChild(t *testing.T) {
	pt := newTable(t)
	parent, e := pt.Init("parent", nil)
	require.Equal(t, errno.OK, e)

	_, _, e = pt.Wait(parent, 999)
	require.Equal(t, errno.CHILD, e)
}

func TestReparentOrphansToInit(t *testing.T) {
	pt := newTable(t)
	init, e := pt.BootInit()
	require.Equal(t, errno.OK, e)

	parent, e := pt.Init("parent", init)
	require.Equal(t, errno.OK, e)
	child, e := pt.Fork(parent)
	require.Equal(t, errno.OK, e)

	pt.Exit(parent, 0)

	child.mu.Lock()
	gotParent := child.Parent
	child.mu.Unlock()
	require.Same(t, init, gotParent)

	pt.Exit(child, 3)

	pid, status, e := pt.Wait(init, AnyChild)
	require.Equal(t, errno.OK, e)
	require.Equal(t, child.PID, pid)
	require.Equal(t, 3, status)
}
