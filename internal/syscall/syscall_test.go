package syscall

import (
	"testing"

	"github.com/minios-project/minios/internal/elfload"
	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/fdtable"
	"github.com/minios-project/minios/internal/kfs"
	"github.com/minios-project/minios/internal/metrics"
	"github.com/minios-project/minios/internal/proc"
	"github.com/minios-project/minios/internal/vm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// testBufVA is an arbitrary user-space address within the scratch region
// newFacade maps into every test process, standing in for wherever a real
// caller's read/write buffer would live.
const testBufVA = vm.VA(0x1000)

func newFacade(t *testing.T) (*Facade, *proc.Process) {
	t.Helper()
	fs := kfs.New()
	frames := vm.NewFrameAllocator(4096)
	m := metrics.NewHandle(prometheus.NewRegistry())
	procs := proc.NewTable(fs, frames, m, proc.Limits{
		MaxFile: fdtable.MaxFile,
		MaxArg:  elfload.MaxArg,
		NameLen: proc.NameLen,
	})

	root, e := procs.Init("parent", nil)
	require.Equal(t, errno.OK, e)
	root.AS.MapMemRegion(testBufVA, vm.PageSize, vm.URW)

	return New(procs), root
}

// TestPipeEcho is the pipe-echo scenario: a forked child reads from one
// pipe and writes whatever it read into a second pipe; the parent writes
// into the first and reads the echo back out of the second.
func TestPipeEcho(t *testing.T) {
	fa, parent := newFacade(t)

	r1, w1, e := fa.Pipe(parent)
	require.Equal(t, errno.OK, e)
	r2, w2, e := fa.Pipe(parent)
	require.Equal(t, errno.OK, e)

	childPID, e := fa.Fork(parent)
	require.Equal(t, errno.OK, e)

	// In the absence of a real ELF-executing thread, the child's logic is
	// driven directly against the syscall facade in its own goroutine; the
	// fd numbers line up because fork installed every parent fd at the
	// same index in the child.
	child := fa.Procs.Lookup(childPID)
	require.NotNil(t, child)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		n, e := fa.Read(child, r1, testBufVA, buf, len(buf))
		require.Equal(t, errno.OK, e)
		_, e = fa.Write(child, w2, testBufVA, buf, n)
		require.Equal(t, errno.OK, e)
		fa.Exit(child, 0)
	}()

	msg := []byte("hello\n")
	n, e := fa.Write(parent, w1, testBufVA, msg, len(msg))
	require.Equal(t, errno.OK, e)
	require.Equal(t, len(msg), n)

	out := make([]byte, 6)
	total := 0
	for total < len(out) {
		n, e := fa.Read(parent, r2, testBufVA, out[total:], len(out)-total)
		require.Equal(t, errno.OK, e)
		total += n
	}

	<-done
	require.Equal(t, "hello\n", string(out))
}

func TestOpenRejectsMultipleAccessModeBits(t *testing.T) {
	fa, parent := newFacade(t)
	fs := kfs.New()
	root, e := fs.GetInode(fs.RootIno())
	require.Equal(t, errno.OK, e)

	_, e = fa.Open(parent, fs, root, "x", 0b011 /* RDONLY|WRONLY */)
	require.Equal(t, errno.INVAL, e)
}

func TestDupReturnsLowestFreeFD(t *testing.T) {
	fa, parent := newFacade(t)
	fs := kfs.New()
	root, e := fs.GetInode(fs.RootIno())
	require.Equal(t, errno.OK, e)

	fd, e := fa.Open(parent, fs, root, "x", 1 /* O_RDONLY */ | 0b1000 /* O_CREAT */)
	require.Equal(t, errno.OK, e)
	require.Equal(t, 2, fd)

	newFd, e := fa.Dup(parent, fd)
	require.Equal(t, errno.OK, e)
	require.Equal(t, 3, newFd)
}
