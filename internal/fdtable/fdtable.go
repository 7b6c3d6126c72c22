// Package fdtable implements the per-process file descriptor table: a
// fixed-capacity array of optional file handles with a lowest-free-index
// allocation policy.
package fdtable

import (
	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/file"
)

// MaxFile is the default table capacity.
const MaxFile = 128

// Table is a process's FD table. Each process runs a single thread, so no
// internal lock is required; callers owning a *Table from multiple
// goroutines must synchronize externally.
//
// INVARIANT: count == number of non-nil slots.
// INVARIANT: firstAvail <= the lowest empty slot (a lower-bound hint only).
type Table struct {
	slots      []*file.File
	count      int
	firstAvail int
}

// New returns an empty table of the given capacity.
func New(capacity int) *Table {
	return &Table{slots: make([]*file.File, capacity)}
}

// Validate reports whether fd names an occupied slot.
func (t *Table) Validate(fd int) bool {
	return fd >= 0 && fd < len(t.slots) && t.slots[fd] != nil
}

// Alloc installs f at the lowest unused index and returns it, or NOMEM if the
// table is full. Allocation always returns the lowest free index.
func (t *Table) Alloc(f *file.File) (int, errno.Errno) {
	if t.count == len(t.slots) {
		return -1, errno.NOMEM
	}

	n := len(t.slots)
	for i := 0; i < n; i++ {
		idx := (t.firstAvail + i) % n
		if t.slots[idx] == nil {
			t.slots[idx] = f
			t.count++
			t.firstAvail = (idx + 1) % n
			return idx, errno.OK
		}
	}

	// count < len(slots) guarantees a free slot exists; reaching here means
	// the invariant above was violated.
	return -1, errno.NOMEM
}

// AllocAt installs f at exactly the given index, which must currently be
// empty. Used by proc_init to seed the console handles at fd 0 and 1 and by
// fork to mirror the parent's fd layout exactly.
func (t *Table) AllocAt(fd int, f *file.File) errno.Errno {
	if fd < 0 || fd >= len(t.slots) {
		return errno.INVAL
	}
	if t.slots[fd] != nil {
		return errno.INVAL
	}

	t.slots[fd] = f
	t.count++
	return errno.OK
}

// Remove clears fd's slot and returns the file that was stored there.
func (t *Table) Remove(fd int) (*file.File, errno.Errno) {
	if !t.Validate(fd) {
		return nil, errno.INVAL
	}

	f := t.slots[fd]
	t.slots[fd] = nil
	t.count--
	if fd < t.firstAvail {
		t.firstAvail = fd
	}
	return f, errno.OK
}

// Get returns the file stored at fd without removing it.
func (t *Table) Get(fd int) (*file.File, errno.Errno) {
	if !t.Validate(fd) {
		return nil, errno.INVAL
	}
	return t.slots[fd], errno.OK
}

// Count returns the number of occupied slots.
func (t *Table) Count() int { return t.count }

// Cap returns the table's fixed capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Each calls fn for every occupied slot in ascending fd order. Used by
// proc_exit to close every open fd and by fork to reopen every inherited fd.
func (t *Table) Each(fn func(fd int, f *file.File)) {
	for fd, f := range t.slots {
		if f != nil {
			fn(fd, f)
		}
	}
}
