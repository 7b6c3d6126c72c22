// Package pipe implements an anonymous byte-stream pipe: a bounded
// single-buffer producer/consumer channel between two file handles.
package pipe

import (
	"sync"

	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/file"
)

// Size is the pipe's default ring-buffer capacity, used when Alloc is
// called with a non-positive size.
const Size = 512

// pipe is the shared state behind a pair of read/write file handles. All
// fields below are GUARDED_BY mu.
type pipe struct {
	mu         sync.Mutex
	readAvail  *sync.Cond
	writeAvail *sync.Cond

	data   []byte
	nwrite int64

	// readerFile is the sole read-end handle. The writer's fullness check
	// (nwrite == readerFile.f_pos + len(data)) only makes sense because exactly one
	// reader handle exists per pipe — duplicated read descriptors share this
	// same *file.File, so its f_pos stays authoritative.
	readerFile *file.File

	readopen  bool
	writeopen bool
}

// Alloc creates a pipe with the given buffer capacity (falling back to Size
// if size is non-positive) and returns its read and write end file
// handles. In this hosted simulation the only failure mode would be an
// allocation panic, so Alloc never actually fails, but the signature keeps
// the same shape as the rest of the resource-allocating API for symmetry
// with fdtable.Alloc and proc.Spawn.
func Alloc(size int) (readEnd, writeEnd *file.File, e errno.Errno) {
	if size <= 0 {
		size = Size
	}
	p := &pipe{readopen: true, writeopen: true, data: make([]byte, size)}
	p.readAvail = sync.NewCond(&p.mu)
	p.writeAvail = sync.NewCond(&p.mu)

	readEnd = file.New(file.O_RDONLY, ops{}, nil, &endpoint{p: p, isRead: true})
	writeEnd = file.New(file.O_WRONLY, ops{}, nil, &endpoint{p: p, isRead: false})
	p.readerFile = readEnd
	return readEnd, writeEnd, errno.OK
}

// endpoint is the File.Info payload distinguishing the read end from the
// write end of a shared *pipe.
type endpoint struct {
	p      *pipe
	isRead bool
}

// ops is the shared file-operations vtable for both pipe endpoints.
type ops struct{}

func (ops) Read(f *file.File, buf []byte, n int) (int, errno.Errno) {
	ep := f.Info.(*endpoint)
	if !ep.isRead {
		return 0, errno.INVAL
	}
	return ep.p.read(f, buf, n)
}

func (ops) Write(f *file.File, buf []byte, n int) (int, errno.Errno) {
	ep := f.Info.(*endpoint)
	if ep.isRead {
		return 0, errno.INVAL
	}
	return ep.p.write(f, buf, n)
}

func (ops) Close(f *file.File) errno.Errno {
	ep := f.Info.(*endpoint)
	return ep.p.close(ep.isRead)
}

// read blocks until at least one byte is available or the write end has
// closed, then copies as much as fits in buf.
func (p *pipe) read(f *file.File, buf []byte, n int) (int, errno.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for f.FPos() == p.nwrite && p.writeopen {
		p.readAvail.Wait()
	}

	avail := p.nwrite - f.FPos()
	toCopy := n
	if int64(toCopy) > avail {
		toCopy = int(avail)
	}

	pos := f.FPos()
	bufCap := int64(len(p.data))
	for i := 0; i < toCopy; i++ {
		buf[i] = p.data[(pos+int64(i))%bufCap]
	}
	f.AdvanceFPos(int64(toCopy))

	p.writeAvail.Broadcast()
	return toCopy, errno.OK
}

// write blocks while the ring buffer is full and the read end is still
// open, copying one byte at a time as space frees up. f must be the sole
// write-end handle (duplicated descriptors share the same *file.File and
// hence the same f_pos, so this remains true even with dup'd fds).
func (p *pipe) write(f *file.File, buf []byte, n int) (int, errno.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 && !p.readopen {
		return 0, errno.END
	}

	bufCap := int64(len(p.data))
	written := 0
	for written < n {
		for p.nwrite == p.readerFile.FPos()+bufCap {
			if !p.readopen {
				return written, errno.END
			}
			p.readAvail.Broadcast()
			p.writeAvail.Wait()
		}

		p.data[p.nwrite%bufCap] = buf[written]
		p.nwrite++
		written++
	}

	p.readAvail.Broadcast()
	return written, errno.OK
}

// close marks one end of the pipe shut and wakes whichever side might be
// blocked waiting on it. Once both ends are closed there is nothing left to
// free explicitly: the pipe struct is reclaimed by the garbage collector
// once both endpoint files drop their reference to it.
func (p *pipe) close(isRead bool) errno.Errno {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isRead {
		p.readopen = false
		p.writeAvail.Broadcast()
	} else {
		p.writeopen = false
		p.readAvail.Broadcast()
	}
	return errno.OK
}
