// Package syscall is the kernel's syscall facade: argument fetching, user
// pointer/fd validation, and dispatch to the FD table, pipe, VM,
// filesystem, and process-lifecycle packages.
//
// Methods that move a buffer between kernel and user space (Read, Write)
// take the user-space address separately from the already-resolved buf
// slice and validate it with validateBuffer. Methods that take a name
// string (Open, Mkdir, Link, ...) accept it as an already-fetched Go
// string rather than a raw user pointer: this facade models syscall
// dispatch, not the string-fetch step a real kernel would also perform
// against the caller's address space, so there is no separate
// validateString counterpart here.
package syscall

import (
	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/file"
	"github.com/minios-project/minios/internal/kfs"
	"github.com/minios-project/minios/internal/pipe"
	"github.com/minios-project/minios/internal/proc"
	"github.com/minios-project/minios/internal/vm"
)

// Num is a syscall number.
type Num int

const (
	SysFork Num = iota
	SysSpawn
	SysWait
	SysExit
	SysGetpid
	SysSleep
	SysOpen
	SysClose
	SysRead
	SysWrite
	SysLink
	SysUnlink
	SysMkdir
	SysChdir
	SysReaddir
	SysRmdir
	SysFstat
	SysSbrk
	SysMeminfo
	SysDup
	SysPipe
	SysInfo
	SysHalt
)

// Facade dispatches validated syscalls for one kernel instance.
type Facade struct {
	Procs *proc.Table
}

// New creates a syscall facade bound to the given process table.
func New(procs *proc.Table) *Facade {
	return &Facade{Procs: procs}
}

// validateBuffer checks that [va, va+n) lies entirely within one mapped
// region of p's address space, rejecting both out-of-region accesses and
// pointer-arithmetic overflow.
func validateBuffer(p *proc.Process, va vm.VA, n int) errno.Errno {
	if n < 0 {
		return errno.FAULT
	}
	if n == 0 {
		return errno.OK
	}
	end := uint64(va) + uint64(n)
	if end < uint64(va) {
		return errno.FAULT // overflow
	}
	if p.AS.FindMemRegion(va, uint64(n)) == nil {
		return errno.FAULT
	}
	return errno.OK
}

// Getpid returns p's own PID; always succeeds.
func (fa *Facade) Getpid(p *proc.Process) int {
	return p.PID
}

// Fork implements the fork syscall: the child's syscall return value (0) is
// the caller's responsibility to install into its own trap-frame state;
// this returns the new child PID to the parent.
func (fa *Facade) Fork(p *proc.Process) (int, errno.Errno) {
	child, e := fa.Procs.Fork(p)
	if e != errno.OK {
		return -1, e
	}
	return child.PID, errno.OK
}

// Spawn implements the spawn syscall: load and run a named ELF binary as a
// new child of p, sharing nothing with p's address space.
func (fa *Facade) Spawn(p *proc.Process, name string, path *kfs.Inode, argv []string) (int, errno.Errno) {
	child, e := fa.Procs.Spawn(p, name, path, argv)
	if e != errno.OK {
		return -1, e
	}
	return child.PID, errno.OK
}

// Wait implements the wait syscall.
func (fa *Facade) Wait(p *proc.Process, pid int) (int, int, errno.Errno) {
	return fa.Procs.Wait(p, pid)
}

// Exit implements the exit syscall. It never returns to the caller on real
// hardware; here it simply runs proc_exit to completion.
func (fa *Facade) Exit(p *proc.Process, status int) {
	fa.Procs.Exit(p, status)
}

// Open implements the open syscall: flags must name exactly one access
// mode, matching the resolved encoding rather than the fragile
// flags&(flags>>1) heuristic.
func (fa *Facade) Open(p *proc.Process, fs *kfs.FS, dir *kfs.Inode, name string, flags file.OpenFlag) (int, errno.Errno) {
	if !file.ValidAccessMode(flags) {
		return -1, errno.INVAL
	}

	ino, e := fs.FindInode(dir, name)
	var target *kfs.Inode
	if e == errno.NOTEXIST {
		if flags&file.O_CREAT == 0 {
			return -1, errno.NOTEXIST
		}
		target, e = fs.CreateFile(dir, name)
		if e != errno.OK {
			return -1, e
		}
	} else if e != errno.OK {
		return -1, e
	} else {
		target, e = fs.GetInode(ino)
		if e != errno.OK {
			return -1, e
		}
	}

	f, e := fs.OpenFile(target, flags)
	if e != errno.OK {
		return -1, e
	}
	fd, e := p.Files.Alloc(f)
	if e != errno.OK {
		f.Close()
		return -1, e
	}
	return fd, errno.OK
}

// Close implements the close syscall.
func (fa *Facade) Close(p *proc.Process, fd int) errno.Errno {
	f, e := p.Files.Remove(fd)
	if e != errno.OK {
		return e
	}
	return f.Close()
}

// Read implements the read syscall. va is the user-space address the
// caller's buffer lives at, validated against p's address space before buf
// (the kernel-side copy of that buffer) is filled; buf must be n bytes
// long. Stdin/stdout are ordinary file handles with a proper ops vtable,
// so fd 0/1 need no special-casing here.
func (fa *Facade) Read(p *proc.Process, fd int, va vm.VA, buf []byte, n int) (int, errno.Errno) {
	if e := validateBuffer(p, va, n); e != errno.OK {
		return -1, e
	}
	if !p.Files.Validate(fd) {
		return -1, errno.INVAL
	}
	f, _ := p.Files.Get(fd)
	return f.Read(buf, n)
}

// Write implements the write syscall. va is the user-space address the
// caller's buffer lives at, validated against p's address space before buf
// (the kernel-side copy of that buffer) is drained.
func (fa *Facade) Write(p *proc.Process, fd int, va vm.VA, buf []byte, n int) (int, errno.Errno) {
	if e := validateBuffer(p, va, n); e != errno.OK {
		return -1, e
	}
	if !p.Files.Validate(fd) {
		return -1, errno.INVAL
	}
	f, _ := p.Files.Get(fd)
	return f.Write(buf, n)
}

// Dup implements the dup syscall: share the same file object at the lowest
// free fd.
func (fa *Facade) Dup(p *proc.Process, fd int) (int, errno.Errno) {
	f, e := p.Files.Get(fd)
	if e != errno.OK {
		return -1, e
	}
	newFd, e := p.Files.Alloc(f.Reopen())
	if e != errno.OK {
		f.Close() // undo the Reopen
		return -1, e
	}
	return newFd, errno.OK
}

// Pipe implements the pipe syscall: install the read end at the lowest
// free fd, then the write end at the next lowest; if the second allocation
// fails, close the read end and fail the whole call. The buffer capacity
// comes from the process table's configured PipeSize limit.
func (fa *Facade) Pipe(p *proc.Process) (readFD, writeFD int, e errno.Errno) {
	r, w, e := pipe.Alloc(fa.Procs.Limits.PipeSize)
	if e != errno.OK {
		return -1, -1, e
	}

	readFD, e = p.Files.Alloc(r)
	if e != errno.OK {
		r.Close()
		w.Close()
		return -1, -1, e
	}

	writeFD, e = p.Files.Alloc(w)
	if e != errno.OK {
		p.Files.Remove(readFD)
		r.Close()
		w.Close()
		return -1, -1, errno.NOMEM
	}

	return readFD, writeFD, errno.OK
}

// Sbrk implements the sbrk syscall: extend the heap memregion by increment
// bytes and return the old top.
func (fa *Facade) Sbrk(p *proc.Process, increment int64) (vm.VA, errno.Errno) {
	heap := p.AS.Heap()
	if heap == nil {
		return 0, errno.FAULT
	}
	old := heap.End
	p.AS.ExtendMemRegion(heap, increment)
	return old, errno.OK
}

// Info is the result of the info syscall.
type Info struct {
	NumPgfault uint64
}

// InfoSyscall implements the info syscall.
func (fa *Facade) InfoSyscall() Info {
	return Info{NumPgfault: fa.Procs.Metrics.NumPgfault()}
}

// Mkdir implements the mkdir syscall.
func (fa *Facade) Mkdir(fs *kfs.FS, dir *kfs.Inode, name string) errno.Errno {
	return fs.Mkdir(dir, name)
}

// Rmdir implements the rmdir syscall.
func (fa *Facade) Rmdir(fs *kfs.FS, dir *kfs.Inode, name string) errno.Errno {
	return fs.Rmdir(dir, name)
}

// Unlink implements the unlink syscall.
func (fa *Facade) Unlink(fs *kfs.FS, dir *kfs.Inode, name string) errno.Errno {
	return fs.Unlink(dir, name)
}

// Link implements the link syscall.
func (fa *Facade) Link(fs *kfs.FS, dir *kfs.Inode, name string, target *kfs.Inode) errno.Errno {
	return fs.Link(dir, name, target)
}

// Readdir implements the readdir syscall.
func (fa *Facade) Readdir(fs *kfs.FS, dir *kfs.Inode) ([]string, errno.Errno) {
	return fs.Readdir(dir)
}

// Fstat is the result of the fstat syscall.
type Fstat struct {
	Ino  uint64
	Size int64
}

// FstatSyscall implements the fstat syscall: invalid on console/pipe fds,
// which carry no inode.
func (fa *Facade) FstatSyscall(p *proc.Process, fs *kfs.FS, fd int) (Fstat, errno.Errno) {
	f, e := p.Files.Get(fd)
	if e != errno.OK {
		return Fstat{}, e
	}
	if f.Inode == nil {
		return Fstat{}, errno.FTYPE
	}
	in, ok := f.Inode.(*kfs.Inode)
	if !ok {
		return Fstat{}, errno.FTYPE
	}
	size, e := fs.Size(in)
	if e != errno.OK {
		return Fstat{}, e
	}
	return Fstat{Ino: in.Ino(), Size: size}, errno.OK
}

// Chdir implements the chdir syscall: resolve name under p's current cwd
// and install it as the new cwd, releasing the old one.
func (fa *Facade) Chdir(p *proc.Process, fs *kfs.FS, name string) errno.Errno {
	ino, e := fs.FindInode(p.Cwd, name)
	if e != errno.OK {
		return e
	}
	newCwd, e := fs.GetInode(ino)
	if e != errno.OK {
		return e
	}

	old := p.Cwd
	p.Cwd = newCwd
	fs.ReleaseInode(old)
	return errno.OK
}

// Meminfo is the result of the meminfo syscall.
type Meminfo struct {
	HeapEnd vm.VA
}

// MeminfoSyscall implements the meminfo syscall.
func (fa *Facade) MeminfoSyscall(p *proc.Process) Meminfo {
	if heap := p.AS.Heap(); heap != nil {
		return Meminfo{HeapEnd: heap.End}
	}
	return Meminfo{}
}

// Sleep implements the sleep syscall, which the core leaves unimplemented.
func (fa *Facade) Sleep(seconds int) errno.Errno {
	return errno.INVAL
}

// Halt implements the halt syscall: a no-op hook in a hosted simulation
// with no real hardware to power off. It has no observable effect, and
// cmd/miniosctl does not call it.
func (fa *Facade) Halt() {}
