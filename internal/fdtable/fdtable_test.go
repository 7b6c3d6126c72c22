package fdtable

import (
	"testing"

	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyFile() *file.File {
	return file.New(file.O_RDONLY, noopOps{}, nil, nil)
}

type noopOps struct{}

func (noopOps) Read(*file.File, []byte, int) (int, errno.Errno)  { return 0, errno.OK }
func (noopOps) Write(*file.File, []byte, int) (int, errno.Errno) { return 0, errno.OK }
func (noopOps) Close(*file.File) errno.Errno                     { return errno.OK }

func TestAllocReturnsLowestFreeIndex(t *testing.T) {
	tbl := New(8)

	fd0, e := tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)
	fd1, e := tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)
	fd2, e := tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)

	assert.Equal(t, []int{0, 1, 2}, []int{fd0, fd1, fd2})

	_, e = tbl.Remove(fd1)
	require.Equal(t, errno.OK, e)

	fd3, e := tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)
	assert.Equal(t, fd1, fd3, "freeing the minimum fd must make alloc reuse it")
}

func TestAllocNoMemWhenFull(t *testing.T) {
	tbl := New(2)
	_, e := tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)
	_, e = tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)

	_, e = tbl.Alloc(dummyFile())
	assert.Equal(t, errno.NOMEM, e)
}

func TestValidateAndGet(t *testing.T) {
	tbl := New(4)
	assert.False(t, tbl.Validate(0))

	f := dummyFile()
	fd, _ := tbl.Alloc(f)
	assert.True(t, tbl.Validate(fd))

	got, e := tbl.Get(fd)
	require.Equal(t, errno.OK, e)
	assert.Same(t, f, got)

	_, e = tbl.Get(99)
	assert.Equal(t, errno.INVAL, e)
}

func TestStdinStdoutInvariant(t *testing.T) {
	tbl := New(MaxFile)
	require.Equal(t, errno.OK, tbl.AllocAt(0, dummyFile()))
	require.Equal(t, errno.OK, tbl.AllocAt(1, dummyFile()))

	assert.True(t, tbl.Validate(0))
	assert.True(t, tbl.Validate(1))
	assert.Equal(t, 2, tbl.Count())
	for fd := 2; fd < MaxFile; fd++ {
		assert.False(t, tbl.Validate(fd))
	}

	fd, e := tbl.Alloc(dummyFile())
	require.Equal(t, errno.OK, e)
	assert.Equal(t, 2, fd)
}

func TestRemoveInvalid(t *testing.T) {
	tbl := New(4)
	_, e := tbl.Remove(0)
	assert.Equal(t, errno.INVAL, e)
}
