package libc

import "github.com/lookbusy1344/rv32im-toolchain/vm"

func alignUp16(v uint32) uint32 { return (v + 15) &^ 15 }

// doMalloc is a bump allocator: each block is
// prefixed with a {prev, self} header in a 16-byte slot, so both header
// and payload are aligned to 16 bytes (this implementation's stand-in for
// alignof(max_align_t)); the minimum
// allocation is 16 bytes. Request sizes are tracked host-side in st.sizes
// so realloc knows how much to copy forward — the header format itself
// carries no size field, matching the spec's literal {prev, self} layout.
func (st *State) doMalloc(mem *vm.Memory, size uint32) (uint32, error) {
	payload := size
	if payload < 16 {
		payload = 16
	}
	total := alignUp16(16 + payload)
	headerAddr := mem.Sbrk(total)
	payloadAddr := headerAddr + 16
	if err := mem.StoreU32(headerAddr, st.lastAlloc); err != nil {
		return 0, err
	}
	if err := mem.StoreU32(headerAddr+4, payloadAddr); err != nil {
		return 0, err
	}
	st.lastAlloc = payloadAddr
	st.sizes[payloadAddr] = size
	return payloadAddr, nil
}

func (st *State) malloc(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("malloc")
	a := args(rf)
	ptr, err := st.doMalloc(mem, a[0])
	if err != nil {
		return err
	}
	finish(rf, ptr)
	return nil
}

// calloc relies on the heap's backing buffer being host-zeroed on growth
// (Memory.Sbrk grows via make([]byte, ...), which Go zero-initializes) and
// never reused across live allocations, so no guest-side zeroing loop is
// needed to satisfy "reads as zero".
func (st *State) calloc(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("calloc")
	a := args(rf)
	ptr, err := st.doMalloc(mem, a[0]*a[1])
	if err != nil {
		return err
	}
	finish(rf, ptr)
	return nil
}

func (st *State) realloc(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("realloc")
	a := args(rf)
	oldPtr, newSize := a[0], a[1]
	newPtr, err := st.doMalloc(mem, newSize)
	if err != nil {
		return err
	}
	if oldPtr != 0 {
		n := st.sizes[oldPtr]
		if newSize < n {
			n = newSize
		}
		if err := copyBytes(mem, "realloc", newPtr, oldPtr, n); err != nil {
			return err
		}
	}
	finish(rf, newPtr)
	return nil
}

// free is a no-op; the bump allocator never reclaims.
func (st *State) free(rf *vm.RegisterFile, mem *vm.Memory, dev *vm.Device) error {
	dev.Tick("free")
	finish(rf, 0)
	return nil
}
