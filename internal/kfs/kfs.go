// Package kfs is an in-memory filesystem standing in for the on-disk
// filesystem the process/IPC core treats as an external collaborator. It
// implements just enough of a Unix-like inode tree (regular files and
// directories, link counts, a root) for proc_load, proc_init's cwd handle,
// and the syscall facade's filesystem syscalls to have something real to
// call.
package kfs

import (
	"fmt"
	"sync"

	"github.com/minios-project/minios/common"
	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/file"
)

// Kind distinguishes a regular file from a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Inode is one entry in the tree: either a byte blob (KindFile) or a name ->
// child-inode-number map (KindDir). All fields are GUARDED_BY the owning
// FS's mu.
type Inode struct {
	ino      uint64
	kind     Kind
	refcount int // fs_get_inode/fs_release_inode refcount, distinct from open-file refcount

	data     []byte
	children map[string]uint64
}

// Ino implements file.Inode.
func (in *Inode) Ino() uint64 { return in.ino }

// FS is the in-memory inode tree, protected by a single package-level-style
// lock the way a simple monolithic kernel filesystem would serialize all
// metadata operations. It is not general-purpose: no permissions, no
// symlinks, no hard links across directories beyond a plain refcount bump.
type FS struct {
	mu       sync.Mutex
	inodes   map[uint64]*Inode
	nextIno  uint64
	rootIno  uint64
}

// New creates a filesystem containing only the root directory.
func New() *FS {
	fs := &FS{inodes: make(map[uint64]*Inode), nextIno: 1}
	root := &Inode{ino: fs.allocIno(), kind: KindDir, refcount: 1, children: make(map[string]uint64)}
	fs.inodes[root.ino] = root
	fs.rootIno = root.ino
	return fs
}

func (fs *FS) allocIno() uint64 {
	ino := fs.nextIno
	fs.nextIno++
	return ino
}

// RootIno returns the inode number of the root directory (root_sb.s_root_inum).
func (fs *FS) RootIno() uint64 { return fs.rootIno }

// GetInode implements fs_get_inode: look up an inode by number and bump its
// refcount.
func (fs *FS) GetInode(ino uint64) (*Inode, errno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.inodes[ino]
	if !ok {
		return nil, errno.NOTEXIST
	}
	in.refcount++
	return in, errno.OK
}

// ReleaseInode implements fs_release_inode: drop a reference obtained via
// GetInode or FindInode, freeing the inode once nothing references it and
// it has no remaining directory entries pointing at it.
func (fs *FS) ReleaseInode(in *Inode) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in.refcount--
	if in.refcount <= 0 {
		delete(fs.inodes, in.ino)
	}
}

// FindInode implements fs_find_inode: resolve a '/'-free path component
// under dir.
func (fs *FS) FindInode(dir *Inode, name string) (uint64, errno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir.kind != KindDir {
		return 0, errno.FTYPE
	}
	ino, ok := dir.children[name]
	if !ok {
		return 0, errno.NOTEXIST
	}
	return ino, errno.OK
}

// Mkdir implements fs_mkdir: create an empty subdirectory named name under
// dir.
func (fs *FS) Mkdir(dir *Inode, name string) errno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir.kind != KindDir {
		return errno.FTYPE
	}
	if _, exists := dir.children[name]; exists {
		return errno.INVAL
	}

	child := &Inode{ino: fs.allocIno(), kind: KindDir, refcount: 1, children: make(map[string]uint64)}
	fs.inodes[child.ino] = child
	dir.children[name] = child.ino
	return errno.OK
}

// Rmdir implements fs_rmdir: remove an empty subdirectory.
func (fs *FS) Rmdir(dir *Inode, name string) errno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ino, ok := dir.children[name]
	if !ok {
		return errno.NOTEXIST
	}
	child, ok := fs.inodes[ino]
	if !ok {
		return errno.NOTEXIST
	}
	if child.kind != KindDir {
		return errno.FTYPE
	}
	if len(child.children) > 0 {
		return errno.INVAL
	}

	delete(dir.children, name)
	child.refcount--
	if child.refcount <= 0 {
		delete(fs.inodes, ino)
	}
	return errno.OK
}

// Link implements fs_link: create a new directory entry name under dir
// pointing at an existing inode, bumping its link-equivalent refcount.
func (fs *FS) Link(dir *Inode, name string, target *Inode) errno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir.kind != KindDir {
		return errno.FTYPE
	}
	if _, exists := dir.children[name]; exists {
		return errno.INVAL
	}

	dir.children[name] = target.ino
	target.refcount++
	return errno.OK
}

// Unlink implements fs_unlink: remove a directory entry, freeing the target
// inode once its refcount reaches zero.
func (fs *FS) Unlink(dir *Inode, name string) errno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ino, ok := dir.children[name]
	if !ok {
		return errno.NOTEXIST
	}
	target, ok := fs.inodes[ino]
	if !ok {
		return errno.NOTEXIST
	}
	if target.kind == KindDir {
		return errno.FTYPE
	}

	delete(dir.children, name)
	target.refcount--
	if target.refcount <= 0 {
		delete(fs.inodes, ino)
	}
	return errno.OK
}

// Readdir implements fs_readdir: a snapshot of the directory's entry names.
func (fs *FS) Readdir(dir *Inode) ([]string, errno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir.kind != KindDir {
		return nil, errno.FTYPE
	}
	q := common.NewEntryQueue[string]()
	for name := range dir.children {
		q.Enqueue(name)
	}
	names := make([]string, 0, q.Len())
	for !q.Empty() {
		names = append(names, q.Dequeue())
	}
	return names, errno.OK
}

// CreateFile implements the fs_mkdir-equivalent path for regular files: used
// by open(O_CREAT) when name does not already exist under dir.
func (fs *FS) CreateFile(dir *Inode, name string) (*Inode, errno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir.kind != KindDir {
		return nil, errno.FTYPE
	}
	if _, exists := dir.children[name]; exists {
		return nil, errno.INVAL
	}

	child := &Inode{ino: fs.allocIno(), kind: KindFile, refcount: 1}
	fs.inodes[child.ino] = child
	dir.children[name] = child.ino
	return child, errno.OK
}

// reader is the regular-file read/write/close implementation installed as a
// file.Ops when OpenFile succeeds. ino's bytes are read/written directly
// while holding the owning FS's mu; there is no separate per-inode lock, so
// reads and writes are serialized with truncation and every other
// metadata operation by that one lock.
type reader struct {
	fs  *FS
	ino *Inode
}

func (r *reader) Read(f *file.File, buf []byte, n int) (int, errno.Errno) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()

	pos := f.FPos()
	if pos >= int64(len(r.ino.data)) {
		return 0, errno.OK
	}
	avail := int64(len(r.ino.data)) - pos
	toCopy := n
	if int64(toCopy) > avail {
		toCopy = int(avail)
	}
	copy(buf[:toCopy], r.ino.data[pos:pos+int64(toCopy)])
	f.AdvanceFPos(int64(toCopy))
	return toCopy, errno.OK
}

func (r *reader) Write(f *file.File, buf []byte, n int) (int, errno.Errno) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()

	pos := f.FPos()
	need := pos + int64(n)
	if need > int64(len(r.ino.data)) {
		grown := make([]byte, need)
		copy(grown, r.ino.data)
		r.ino.data = grown
	}
	copy(r.ino.data[pos:need], buf[:n])
	f.AdvanceFPos(int64(n))
	return n, errno.OK
}

func (r *reader) Close(f *file.File) errno.Errno {
	r.fs.ReleaseInode(r.ino)
	return errno.OK
}

// OpenFile implements fs_open_file for a regular file already resolved to an
// inode, producing a *file.File with refcount 1.
func (fs *FS) OpenFile(in *Inode, oflag file.OpenFlag) (*file.File, errno.Errno) {
	if in.kind != KindFile {
		return nil, errno.FTYPE
	}
	if !file.ValidAccessMode(oflag) {
		return nil, errno.INVAL
	}
	fs.mu.Lock()
	if oflag&file.O_TRUNC != 0 {
		in.data = nil
	}
	in.refcount++
	fs.mu.Unlock()

	return file.New(oflag, &reader{fs: fs, ino: in}, in, nil), errno.OK
}

// Size returns the current byte length of a regular file's contents, used by
// fstat and the ELF loader.
func (fs *FS) Size(in *Inode) (int64, errno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if in.kind != KindFile {
		return 0, errno.FTYPE
	}
	return int64(len(in.data)), errno.OK
}

// WriteAt is a convenience used by test setup and the demo CLI to seed a
// regular file's contents (e.g. an ELF binary) without going through the
// syscall facade.
func (fs *FS) WriteAt(in *Inode, data []byte) errno.Errno {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if in.kind != KindFile {
		return errno.FTYPE
	}
	in.data = append([]byte(nil), data...)
	return errno.OK
}

// ReadAll returns a copy of a regular file's full contents, used by the ELF
// loader which needs random access into the image rather than a sequential
// read cursor.
func (fs *FS) ReadAll(in *Inode) ([]byte, errno.Errno) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if in.kind != KindFile {
		return nil, errno.FTYPE
	}
	return append([]byte(nil), in.data...), errno.OK
}

// DebugString renders an inode for logging.
func (in *Inode) DebugString() string {
	return fmt.Sprintf("inode(%d, kind=%d, refcount=%d)", in.ino, in.kind, in.refcount)
}
