package pipe

import (
	"sync"
	"testing"
	"time"

	"github.com/minios-project/minios/internal/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrdering(t *testing.T) {
	r, w, e := Alloc(0)
	require.Equal(t, errno.OK, e)

	msg := []byte("hello\n")
	n, e := w.Write(msg, len(msg))
	require.Equal(t, errno.OK, e)
	require.Equal(t, len(msg), n)

	out := make([]byte, len(msg))
	n, e = r.Read(out, len(out))
	require.Equal(t, errno.OK, e)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, msg, out)
}

func TestReadEOFAfterWriterClose(t *testing.T) {
	r, w, _ := Alloc(0)

	n, e := w.Write([]byte("x"), 1)
	require.Equal(t, errno.OK, e)
	require.Equal(t, 1, n)

	buf := make([]byte, 1)
	n, e = r.Read(buf, 1)
	require.Equal(t, errno.OK, e)
	require.Equal(t, 1, n)

	require.Equal(t, errno.OK, w.Close())

	n, e = r.Read(buf, 1)
	assert.Equal(t, errno.OK, e)
	assert.Equal(t, 0, n, "read after drain and writer close must return EOF (0 bytes)")
}

func TestWriteAfterReaderCloseReturnsEND(t *testing.T) {
	r, w, _ := Alloc(0)
	require.Equal(t, errno.OK, r.Close())

	_, e := w.Write([]byte("x"), 1)
	assert.Equal(t, errno.END, e)
}

func TestPipeFullBlocksThenUnblocks(t *testing.T) {
	r, w, _ := Alloc(0)

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	var wg sync.WaitGroup
	var written int
	var writeErrno errno.Errno
	wg.Add(1)
	go func() {
		defer wg.Done()
		written, writeErrno = w.Write(payload, len(payload))
	}()

	// Give the writer a chance to fill the buffer and block.
	time.Sleep(20 * time.Millisecond)

	first := make([]byte, 256)
	n, e := r.Read(first, len(first))
	require.Equal(t, errno.OK, e)
	require.Equal(t, 256, n)

	rest := make([]byte, len(payload)-256)
	total := 0
	for total < len(rest) {
		n, e := r.Read(rest[total:], len(rest)-total)
		require.Equal(t, errno.OK, e)
		total += n
	}

	wg.Wait()
	assert.Equal(t, errno.OK, writeErrno)
	assert.Equal(t, len(payload), written)

	got := append(append([]byte{}, first...), rest...)
	assert.Equal(t, payload, got)
}
