// Package elfload populates a fresh address space from an ELF binary
// (proc_load) and lays out the initial user stack, including argv
// (stack_setup).
package elfload

import (
	"bytes"
	"debug/elf"

	"github.com/minios-project/minios/internal/errno"
	"github.com/minios-project/minios/internal/kfs"
	"github.com/minios-project/minios/internal/vm"
)

// StackPages is the fixed size of the stack region, in pages.
const StackPages = 10

// MaxArg is the maximum number of argv entries; proc_spawn silently
// truncates beyond this (PROC_MAX_ARG).
const MaxArg = 128

// Loaded carries back the two facts proc_spawn/proc_fork need after a
// successful load: where user execution begins and where the heap starts.
type Loaded struct {
	EntryPoint vm.VA
	HeapStart  vm.VA
}

// Load implements proc_load: reads path from fs, validates it as an ELF
// image, and maps every PT_LOAD segment into as, backed by freshly zeroed
// and populated frames.
func Load(as *vm.AddressSpace, frames *vm.FrameAllocator, fs *kfs.FS, in *kfs.Inode) (Loaded, errno.Errno) {
	raw, e := fs.ReadAll(in)
	if e != errno.OK {
		return Loaded{}, e
	}

	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return Loaded{}, errno.INVAL
	}

	var end vm.VA
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Memsz < prog.Filesz {
			return Loaded{}, errno.INVAL
		}

		perm := vm.UR
		if prog.Flags&elf.PF_W != 0 {
			perm = vm.URW
		}

		vaddr := vm.VA(prog.Vaddr)
		start := vm.PageRoundDown(vaddr)
		size := vm.PageRoundUp(prog.Memsz + vm.PageOffset(vaddr))
		region := as.MapMemRegion(start, size, perm)

		segData := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(segData, 0); err != nil {
			return Loaded{}, errno.INVAL
		}

		for off := uint64(0); off < size; off += vm.PageSize {
			page := vm.VA(uint64(start) + off)
			frame, fe := frames.Alloc()
			if fe != errno.OK {
				return Loaded{}, errno.NOMEM
			}

			// file offset for this page, relative to the segment's
			// (possibly unaligned) vaddr
			fileStart := int64(off) - int64(vm.PageOffset(vaddr))
			if fileStart < int64(len(segData)) {
				copyStart := fileStart
				copyOff := int64(0)
				if copyStart < 0 {
					copyOff = -copyStart
					copyStart = 0
				}
				copyEnd := copyStart + vm.PageSize - copyOff
				if copyEnd > int64(len(segData)) {
					copyEnd = int64(len(segData))
				}
				if copyEnd > copyStart {
					copy(frame.Bytes()[copyOff:], segData[copyStart:copyEnd])
				}
			}

			if me := as.PageTable.Map(page, frame, perm); me != errno.OK {
				frames.DecRef(frame)
				return Loaded{}, me
			}
		}

		if regionEnd := region.End; regionEnd > end {
			end = regionEnd
		}
	}

	heap := as.MapMemRegion(end, 0, vm.URW)
	as.SetHeap(heap)

	return Loaded{EntryPoint: vm.VA(f.Entry), HeapStart: end}, errno.OK
}

// UserStackUpperBound is the fixed virtual address the stack region ends at.
const UserStackUpperBound = vm.VA(0xC0000000)

// Limits overrides SetupStack's package-level defaults (StackPages, MaxArg,
// UserStackUpperBound) with caller-supplied values, letting cfg.Config
// tune them without this package depending on cfg.
type Limits struct {
	StackPages          int
	MaxArg              int
	UserStackUpperBound vm.VA
}

func (lim Limits) rationalized() Limits {
	if lim.StackPages <= 0 {
		lim.StackPages = StackPages
	}
	if lim.MaxArg <= 0 {
		lim.MaxArg = MaxArg
	}
	if lim.UserStackUpperBound == 0 {
		lim.UserStackUpperBound = UserStackUpperBound
	}
	return lim
}

// SetupStack implements stack_setup: reserves the stack region, maps its top
// page, then lays out argv and returns the initial user stack pointer.
//
// Layout at the top of the mapped page, from high to low addresses:
// each argv string (NUL-terminated), then padding to word-align, then the
// argv pointer array (each entry pointing back into the strings just
// written), then the {fake_return_pc, argc, argv_ptr} frame below it, so
// fake_return_pc sits at the returned stack pointer and argv_ptr points at
// the array just above the frame.
func SetupStack(as *vm.AddressSpace, frames *vm.FrameAllocator, argv []string, lim Limits) (vm.VA, errno.Errno) {
	lim = lim.rationalized()
	if len(argv) > lim.MaxArg {
		argv = argv[:lim.MaxArg]
	}

	stackTop := lim.UserStackUpperBound
	stackStart := vm.VA(uint64(stackTop) - uint64(lim.StackPages)*vm.PageSize)
	as.MapMemRegion(stackStart, uint64(lim.StackPages)*vm.PageSize, vm.URW)

	topPage := vm.VA(uint64(stackTop) - vm.PageSize)
	frame, fe := frames.Alloc()
	if fe != errno.OK {
		return 0, errno.NOMEM
	}
	if me := as.PageTable.Map(topPage, frame, vm.URW); me != errno.OK {
		frames.DecRef(frame)
		return 0, me
	}

	page := frame.Bytes()[:]
	cursor := len(page)

	argPtrs := make([]uint64, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		n := len(s) + 1 // NUL terminator
		cursor -= n
		copy(page[cursor:], s)
		page[cursor+len(s)] = 0
		argPtrs[i] = uint64(topPage) + uint64(cursor)
	}

	cursor &^= 7 // word-align before the pointer block

	const ptrSize = 8
	blockWords := 3 + len(argPtrs) // fake_return_pc, argc, argv_ptr, then argv[]
	cursor -= blockWords * ptrSize
	if cursor < 0 {
		return 0, errno.NOMEM
	}

	putWord := func(off int, v uint64) {
		for b := 0; b < ptrSize; b++ {
			page[off+b] = byte(v >> (8 * b))
		}
	}

	argvBase := uint64(topPage) + uint64(cursor) + 3*ptrSize
	putWord(cursor, ^uint64(1)) // fake_return_pc sentinel, ~0x1
	putWord(cursor+ptrSize, uint64(len(argv)))
	putWord(cursor+2*ptrSize, argvBase)
	for i, p := range argPtrs {
		putWord(cursor+3*ptrSize+i*ptrSize, p)
	}

	return vm.VA(uint64(topPage) + uint64(cursor)), errno.OK
}
