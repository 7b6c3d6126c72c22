// Package file defines the File handle type shared by every open-file
// producer in the kernel (the simulated filesystem, pipes, and the
// console), and its refcounting rules.
package file

import (
	"sync"

	"github.com/minios-project/minios/internal/errno"
)

// OpenFlag is the access-mode/creation flag bitset passed to Open.
type OpenFlag int

const (
	O_RDONLY OpenFlag = 1 << iota
	O_WRONLY
	O_RDWR
	O_CREAT
	O_TRUNC
)

// accessMask isolates the three mutually-exclusive access-mode bits so open
// validation can check "exactly one of RDONLY/WRONLY/RDWR" instead of the
// fragile flags&(flags>>1) heuristic.
const accessMask = O_RDONLY | O_WRONLY | O_RDWR

// ValidAccessMode reports whether flags names exactly one access mode.
func ValidAccessMode(flags OpenFlag) bool {
	switch flags & accessMask {
	case O_RDONLY, O_WRONLY, O_RDWR:
		return true
	default:
		return false
	}
}

// Ops is the operations vtable every file handle carries.
type Ops interface {
	Read(f *File, buf []byte, n int) (int, errno.Errno)
	Write(f *File, buf []byte, n int) (int, errno.Errno)
	Close(f *File) errno.Errno
}

// Inode is the minimal inode identity a file handle may carry; nil for
// non-filesystem files (pipes, console).
type Inode interface {
	Ino() uint64
}

// File is a refcounted, shared file handle: it carries an open-mode flag
// set, a position cursor, an operations vtable, a nullable inode pointer,
// and an opaque info payload private to whichever Ops implementation
// created it.
//
// GUARDED_BY(mu): FPos and Refcount. Ops/Oflag/Inode/Info are set once at
// construction and never mutated afterward, so they need no lock.
type File struct {
	Oflag OpenFlag
	Ops   Ops
	Inode Inode // nil for non-fs files
	Info  interface{}

	mu       sync.Mutex
	fpos     int64
	refcount int
}

// New wraps the given ops/inode/info triple in a File handle with refcount 1.
func New(oflag OpenFlag, ops Ops, in Inode, info interface{}) *File {
	return &File{Oflag: oflag, Ops: ops, Inode: in, Info: info, refcount: 1}
}

// FPos returns the current cursor position.
func (f *File) FPos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fpos
}

// SetFPos overwrites the cursor position.
func (f *File) SetFPos(pos int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fpos = pos
}

// AdvanceFPos adds delta to the cursor position and returns the new value.
func (f *File) AdvanceFPos(delta int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fpos += delta
	return f.fpos
}

// Reopen implements fs_reopen_file: bump the refcount and return the same
// handle, used by dup and by fork's fd-table inheritance.
func (f *File) Reopen() *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refcount++
	return f
}

// Close implements fs_close_file: decrement the refcount, invoking the ops'
// Close only when the last reference goes away.
func (f *File) Close() errno.Errno {
	f.mu.Lock()
	f.refcount--
	last := f.refcount == 0
	f.mu.Unlock()

	if !last {
		return errno.OK
	}
	return f.Ops.Close(f)
}

// Refcount returns the current reference count, for tests and invariant
// checks (e.g. a shared fd must have refcount >= 2 after fork).
func (f *File) Refcount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refcount
}

// Read serves a read through the vtable. File.Read itself does not touch
// f_pos; any cursor advance is done by the Ops implementation.
func (f *File) Read(buf []byte, n int) (int, errno.Errno) {
	return f.Ops.Read(f, buf, n)
}

// Write serves a write through the vtable.
func (f *File) Write(buf []byte, n int) (int, errno.Errno) {
	return f.Ops.Write(f, buf, n)
}
