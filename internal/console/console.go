// Package console provides the stdin/stdout file handles every process gets
// pre-installed at fd 0 and 1. They carry the same {read, write, close}
// vtable as any other file handle so the syscall facade's read/write path
// never special-cases fd 0/1.
package console

import (
	"os"

	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/file"
)

type stream struct {
	f *os.File
}

type ops struct{}

func (ops) Read(handle *file.File, buf []byte, n int) (int, errno.Errno) {
	s := handle.Info.(*stream)
	m, err := s.f.Read(buf[:n])
	if err != nil && m == 0 {
		return 0, errno.OK // EOF on stdin reads as a 0-byte result, not a fault
	}
	return m, errno.OK
}

func (ops) Write(handle *file.File, buf []byte, n int) (int, errno.Errno) {
	s := handle.Info.(*stream)
	m, err := s.f.Write(buf[:n])
	if err != nil {
		return m, errno.FAULT
	}
	return m, errno.OK
}

func (ops) Close(handle *file.File) errno.Errno {
	// stdin/stdout are process-scoped singletons; proc_fork never reopens
	// them and proc_exit's close loop should not actually close the
	// underlying OS stream out from under the rest of the program.
	return errno.OK
}

// Stdin returns a fresh read-only handle wrapping os.Stdin.
func Stdin() *file.File {
	return file.New(file.O_RDONLY, ops{}, nil, &stream{f: os.Stdin})
}

// Stdout returns a fresh write-only handle wrapping os.Stdout.
func Stdout() *file.File {
	return file.New(file.O_WRONLY, ops{}, nil, &stream{f: os.Stdout})
}
