// Package proc implements process allocation, spawn, fork, wait, and exit,
// and the parent/child bookkeeping (ChildEntry, process table, PID
// allocation, re-parenting orphans to init) that ties them together.
package proc

import (
	"sync"
	"time"

	"github.com/minios-project/minios/internal/console"
	"github.com/minios-project/minios/internal/elfload"
	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/fdtable"
	"github.com/minios-project/minios/internal/file"
	"github.com/minios-project/minios/internal/kfs"
	"github.com/minios-project/minios/internal/metrics"
	"github.com/minios-project/minios/internal/pipe"
	"github.com/minios-project/minios/internal/vm"
)

// NameLen is the maximum stored process name length, truncated beyond this
// (PROC_NAME_LEN).
const NameLen = 31

// AnyChild is the wait() pid sentinel meaning "any child" (ANY_CHILD = -1).
const AnyChild = -1

// StatusAlive is the child-entry status sentinel distinguishing a live
// child from any recorded exit status, chosen (of the two designs on
// offer) to keep ChildEntry.Status a plain int rather than a tagged union.
const StatusAlive = 0xBEEFEEB

// Limits holds the tunables a process table enforces, overridable via
// cfg.Config instead of being wired to this package's own defaults
// (NameLen, fdtable.MaxFile, elfload.MaxArg/StackPages/UserStackUpperBound).
type Limits struct {
	MaxFile             int
	MaxArg              int
	NameLen             int
	StackPages          int
	UserStackUpperBound vm.VA
	PipeSize            int
}

// ChildEntry is a node in a parent's child list.
type ChildEntry struct {
	ChildPID int
	Status   int
}

// Process is one live execution context.
type Process struct {
	PID        int
	Name       string
	Parent     *Process // nil only for the very first process
	AS         *vm.AddressSpace
	Files      *fdtable.Table
	Cwd        *kfs.Inode
	EntryPoint vm.VA

	mu        sync.Mutex
	children  []*ChildEntry
	exitCode  int
	hasExited bool
}

// ExitCode returns the process's recorded exit status once it has exited.
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.hasExited
}

// Table owns every live process plus PID allocation, mirroring the "owning
// container keyed by pid" recommendation over raw intrusive back-pointers.
type Table struct {
	mu        sync.Mutex
	processes map[int]*Process
	nextPID   int

	exitMu sync.Mutex
	waitCV *sync.Cond

	FS      *kfs.FS
	Frames  *vm.FrameAllocator
	Metrics *metrics.Handle
	Limits  Limits

	Init *Process
}

// NewTable creates an empty process table wired to the given filesystem,
// frame allocator, metrics handle, and resource limits. Any zero field in
// lim falls back to this package's own default.
func NewTable(fs *kfs.FS, frames *vm.FrameAllocator, m *metrics.Handle, lim Limits) *Table {
	if lim.MaxFile <= 0 {
		lim.MaxFile = fdtable.MaxFile
	}
	if lim.MaxArg <= 0 {
		lim.MaxArg = elfload.MaxArg
	}
	if lim.NameLen <= 0 {
		lim.NameLen = NameLen
	}
	if lim.StackPages <= 0 {
		lim.StackPages = elfload.StackPages
	}
	if lim.UserStackUpperBound == 0 {
		lim.UserStackUpperBound = elfload.UserStackUpperBound
	}
	if lim.PipeSize <= 0 {
		lim.PipeSize = pipe.Size
	}

	t := &Table{processes: make(map[int]*Process), nextPID: 1, FS: fs, Frames: frames, Metrics: m, Limits: lim}
	t.waitCV = sync.NewCond(&t.exitMu)
	return t
}

// Lookup returns the live process with the given PID, or nil.
func (t *Table) Lookup(pid int) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processes[pid]
}

func (t *Table) truncateName(name string) string {
	if len(name) > t.Limits.NameLen {
		return name[:t.Limits.NameLen]
	}
	return name
}

// Init implements proc_init: allocate a process struct, initialize its
// address space and FD table (stdin/stdout at 0/1), and obtain the root
// inode as cwd. parent may be nil only for the very first process.
func (t *Table) Init(name string, parent *Process) (*Process, errno.Errno) {
	root, e := t.FS.GetInode(t.FS.RootIno())
	if e != errno.OK {
		return nil, e
	}

	p := &Process{
		Name:   t.truncateName(name),
		Parent: parent,
		AS:     vm.NewAddressSpace(),
		Files:  fdtable.New(t.Limits.MaxFile),
		Cwd:    root,
	}
	installStdio(p)

	t.mu.Lock()
	p.PID = t.nextPID
	t.nextPID++
	t.processes[p.PID] = p
	live := len(t.processes)
	t.mu.Unlock()

	t.Metrics.SetLiveProcesses(live)
	return p, errno.OK
}

func installStdio(p *Process) {
	if e := p.Files.AllocAt(0, console.Stdin()); e != errno.OK {
		panic("proc_init: fd 0 slot unexpectedly occupied")
	}
	if e := p.Files.AllocAt(1, console.Stdout()); e != errno.OK {
		panic("proc_init: fd 1 slot unexpectedly occupied")
	}
}

// copyFDs reopens every fd the parent has open from 2 upward (console
// singletons at 0/1 are freshly installed, never reopened) into the same index in the
// child, satisfying fork's fd-inheritance invariant: same file object, same
// index, refcount >= 2.
func copyFDs(parent, child *Process) errno.Errno {
	var firstErr errno.Errno
	parent.Files.Each(func(fd int, f *file.File) {
		if fd == 0 || fd == 1 || firstErr != errno.OK {
			return
		}
		if e := child.Files.AllocAt(fd, f.Reopen()); e != errno.OK {
			firstErr = e
		}
	})
	return firstErr
}

func closeAll(t *fdtable.Table) {
	t.Each(func(fd int, f *file.File) {
		f.Close()
	})
}

// Spawn implements proc_spawn: init a process, load path's ELF image, set up
// the stack with argv, and register it in the table and its parent's child
// list.
func (t *Table) Spawn(parent *Process, name string, path *kfs.Inode, argv []string) (*Process, errno.Errno) {
	p, e := t.Init(name, parent)
	if e != errno.OK {
		return nil, e
	}

	loaded, e := elfload.Load(p.AS, t.Frames, t.FS, path)
	if e != errno.OK {
		t.destroy(p)
		return nil, e
	}

	sp, e := elfload.SetupStack(p.AS, t.Frames, argv, elfload.Limits{
		StackPages:          t.Limits.StackPages,
		MaxArg:              t.Limits.MaxArg,
		UserStackUpperBound: t.Limits.UserStackUpperBound,
	})
	if e != errno.OK {
		t.destroy(p)
		return nil, e
	}
	_ = sp // would seed the trap frame's stack pointer on real hardware

	p.EntryPoint = loaded.EntryPoint

	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, &ChildEntry{ChildPID: p.PID, Status: StatusAlive})
		parent.mu.Unlock()
	}

	return p, errno.OK
}

// Fork implements proc_fork: clone the parent's address space with
// copy-on-write sharing, reopen every parent fd (except the stdio
// singletons, which are freshly installed rather than reopened) into the
// same slot in the child, and register the child in the parent's child
// list with status ALIVE. The syscall facade is responsible for forcing
// the child's return value to 0; Fork itself just returns the new Process.
func (t *Table) Fork(parent *Process) (*Process, errno.Errno) {
	childAS, e := vm.CopyAddressSpace(parent.AS)
	if e != errno.OK {
		return nil, e
	}

	root, e := t.FS.GetInode(t.FS.RootIno())
	if e != errno.OK {
		return nil, e
	}

	child := &Process{
		Name:       parent.Name,
		Parent:     parent,
		AS:         childAS,
		Files:      fdtable.New(t.Limits.MaxFile),
		Cwd:        root,
		EntryPoint: parent.EntryPoint,
	}
	installStdio(child)

	if e := copyFDs(parent, child); e != errno.OK {
		t.destroy(child)
		return nil, e
	}

	t.mu.Lock()
	child.PID = t.nextPID
	t.nextPID++
	t.processes[child.PID] = child
	live := len(t.processes)
	t.mu.Unlock()
	t.Metrics.SetLiveProcesses(live)

	parent.mu.Lock()
	parent.children = append(parent.children, &ChildEntry{ChildPID: child.PID, Status: StatusAlive})
	parent.mu.Unlock()

	return child, errno.OK
}

// Wait implements proc_wait.
func (t *Table) Wait(p *Process, pid int) (int, int, errno.Errno) {
	p.mu.Lock()
	if len(p.children) == 0 {
		p.mu.Unlock()
		return 0, 0, errno.CHILD
	}
	p.mu.Unlock()

	t.exitMu.Lock()
	defer t.exitMu.Unlock()

	for {
		p.mu.Lock()
		if pid == AnyChild {
			for i, ce := range p.children {
				if ce.Status != StatusAlive {
					status := ce.Status
					childPID := ce.ChildPID
					p.children = append(p.children[:i], p.children[i+1:]...)
					p.mu.Unlock()
					return childPID, status, errno.OK
				}
			}
		} else {
			idx := -1
			for i, ce := range p.children {
				if ce.ChildPID == pid {
					idx = i
					break
				}
			}
			if idx == -1 {
				p.mu.Unlock()
				return 0, 0, errno.CHILD
			}
			if p.children[idx].Status != StatusAlive {
				status := p.children[idx].Status
				p.children = append(p.children[:idx], p.children[idx+1:]...)
				p.mu.Unlock()
				return pid, status, errno.OK
			}
		}
		p.mu.Unlock()
		t.waitCV.Wait()
	}
}

// Exit implements proc_exit: close every open fd, record the exit status
// into the parent's child entry, re-parent live children to init (rather
// than flagging parent_live=false, so init can always reap them), wake any
// waiter, and tear down the address space.
func (t *Table) Exit(p *Process, status int) {
	closeAll(p.Files)

	t.exitMu.Lock()

	p.mu.Lock()
	p.hasExited = true
	p.exitCode = status
	orphans := p.children
	p.children = nil
	p.mu.Unlock()

	if p.Parent != nil {
		p.Parent.mu.Lock()
		for _, ce := range p.Parent.children {
			if ce.ChildPID == p.PID {
				ce.Status = status
				break
			}
		}
		p.Parent.mu.Unlock()
	}

	if t.Init != nil && t.Init != p {
		t.Init.mu.Lock()
		t.Init.children = append(t.Init.children, orphans...)
		t.Init.mu.Unlock()

		t.mu.Lock()
		for _, ce := range orphans {
			if child, ok := t.processes[ce.ChildPID]; ok {
				child.mu.Lock()
				child.Parent = t.Init
				child.mu.Unlock()
			}
		}
		t.mu.Unlock()
	}

	t.waitCV.Broadcast()
	t.exitMu.Unlock()

	p.AS.Destroy(t.Frames)
	t.FS.ReleaseInode(p.Cwd)

	t.mu.Lock()
	delete(t.processes, p.PID)
	live := len(t.processes)
	t.mu.Unlock()
	t.Metrics.SetLiveProcesses(live)
}

func (t *Table) destroy(p *Process) {
	closeAll(p.Files)
	p.AS.Destroy(t.Frames)
	if p.Cwd != nil {
		t.FS.ReleaseInode(p.Cwd)
	}
}

// BootInit creates init_proc, the designated re-parenting target spawned
// once at boot, and registers it as the table's orphan collector.
func (t *Table) BootInit() (*Process, errno.Errno) {
	init, e := t.Init("init", nil)
	if e != errno.OK {
		return nil, e
	}
	t.Init = init
	return init, errno.OK
}

// RunInitReaper loops calling Wait(ANY_CHILD) on init_proc so orphaned
// children re-parented to it are always eventually collected. Wait returns
// ERR_CHILD immediately whenever init currently has no children at all
// (including the common case of none yet), so this backs off briefly
// before retrying rather than busy-looping; it runs until stop is closed.
func (t *Table) RunInitReaper(init *Process, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, _, e := t.Wait(init, AnyChild)
		if e == errno.CHILD {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}
