package vm

import (
	"encoding/binary"

	"github.com/lookbusy1344/rv32im-toolchain/linker"
)

const pageSize = linker.PageSize

// Memory implements three logical regions: a static
// area copied from the linker's MemoryLayout sections, a heap that grows
// upward via Sbrk, and a stack that grows downward from a fixed top. Each
// region owns one backing buffer indexed by absolute address minus the
// region's start, using segment-relative addressing.
type Memory struct {
	textStart uint32
	static    []byte // [textStart, textStart+len(static)) == [text_start, bss.end())

	heapStart uint32
	heap      []byte // backing buffer; len may exceed brk-heapStart for amortized growth
	brk       uint32

	stackLow uint32
	stack    []byte
}

// NewMemory builds the static region from ml's four sections and reserves
// a stack of stackSize bytes ending at stackTop.
func NewMemory(ml *linker.MemoryLayout, stackTop, stackSize uint32) *Memory {
	staticEnd := ml.BSS.End()
	static := make([]byte, staticEnd-ml.Text.Start)
	copy(static[ml.Text.Start-ml.Text.Start:], ml.Text.Bytes)
	copy(static[ml.Data.Start-ml.Text.Start:], ml.Data.Bytes)
	copy(static[ml.Rodata.Start-ml.Text.Start:], ml.Rodata.Bytes)
	// BSS is conceptually zero and already zero-valued in the make([]byte).

	heapStart := alignUp(staticEnd, pageSize)
	stackLow := stackTop - stackSize

	return &Memory{
		textStart: ml.Text.Start,
		static:    static,
		heapStart: heapStart,
		brk:       heapStart,
		stackLow:  stackLow,
		stack:     make([]byte, stackSize),
	}
}

func alignUp(v, align uint32) uint32 { return (v + align - 1) &^ (align - 1) }

// region identifies which backing buffer (if any) owns addr, and the
// buffer-relative offset.
func (m *Memory) region(addr uint32) (buf []byte, offset uint32, ok bool) {
	switch {
	case addr >= m.textStart && addr < m.textStart+uint32(len(m.static)):
		return m.static, addr - m.textStart, true
	case addr >= m.heapStart && addr < m.brk:
		return m.heap, addr - m.heapStart, true
	case addr >= m.stackLow && addr < m.stackLow+uint32(len(m.stack)):
		return m.stack, addr - m.stackLow, true
	default:
		return nil, 0, false
	}
}

func (m *Memory) checkAccess(addr uint32, size uint32, misaligned, outOfBound func() error) ([]byte, uint32, error) {
	if size > 1 && addr%size != 0 {
		return nil, 0, misaligned()
	}
	buf, off, ok := m.region(addr)
	if !ok || off+size > uint32(len(buf)) {
		return nil, 0, outOfBound()
	}
	return buf, off, nil
}

func (m *Memory) LoadU8(addr uint32) (uint8, error) {
	buf, off, err := m.checkAccess(addr, 1,
		func() error { return &InterpretFailure{Kind: LoadMisAligned, Addr: addr, Align: 1} },
		func() error { return &InterpretFailure{Kind: LoadOutOfBound, Addr: addr, Size: 1} })
	if err != nil {
		return 0, err
	}
	return buf[off], nil
}

func (m *Memory) LoadI8(addr uint32) (int8, error) {
	v, err := m.LoadU8(addr)
	return int8(v), err
}

func (m *Memory) LoadU16(addr uint32) (uint16, error) {
	buf, off, err := m.checkAccess(addr, 2,
		func() error { return &InterpretFailure{Kind: LoadMisAligned, Addr: addr, Align: 2} },
		func() error { return &InterpretFailure{Kind: LoadOutOfBound, Addr: addr, Size: 2} })
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[off:]), nil
}

func (m *Memory) LoadI16(addr uint32) (int16, error) {
	v, err := m.LoadU16(addr)
	return int16(v), err
}

func (m *Memory) LoadI32(addr uint32) (int32, error) {
	v, err := m.LoadU32(addr)
	return int32(v), err
}

func (m *Memory) LoadU32(addr uint32) (uint32, error) {
	buf, off, err := m.checkAccess(addr, 4,
		func() error { return &InterpretFailure{Kind: LoadMisAligned, Addr: addr, Align: 4} },
		func() error { return &InterpretFailure{Kind: LoadOutOfBound, Addr: addr, Size: 4} })
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

func (m *Memory) StoreU8(addr uint32, v uint8) error {
	buf, off, err := m.checkAccess(addr, 1,
		func() error { return &InterpretFailure{Kind: StoreMisAligned, Addr: addr, Align: 1} },
		func() error { return &InterpretFailure{Kind: StoreOutOfBound, Addr: addr, Size: 1} })
	if err != nil {
		return err
	}
	buf[off] = v
	return nil
}

func (m *Memory) StoreU16(addr uint32, v uint16) error {
	buf, off, err := m.checkAccess(addr, 2,
		func() error { return &InterpretFailure{Kind: StoreMisAligned, Addr: addr, Align: 2} },
		func() error { return &InterpretFailure{Kind: StoreOutOfBound, Addr: addr, Size: 2} })
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(buf[off:], v)
	return nil
}

func (m *Memory) StoreU32(addr uint32, v uint32) error {
	buf, off, err := m.checkAccess(addr, 4,
		func() error { return &InterpretFailure{Kind: StoreMisAligned, Addr: addr, Align: 4} },
		func() error { return &InterpretFailure{Kind: StoreOutOfBound, Addr: addr, Size: 4} })
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[off:], v)
	return nil
}

// LoadCmd fetches a 4-byte-aligned instruction word.
func (m *Memory) LoadCmd(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, &InterpretFailure{Kind: InsMisAligned, Addr: addr, Align: 4}
	}
	buf, off, ok := m.region(addr)
	if !ok || off+4 > uint32(len(buf)) {
		return 0, &InterpretFailure{Kind: InsOutOfBound, Addr: addr, Size: 4}
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

// Sbrk extends the heap break by delta bytes (delta may be 0 to simply
// query), returning the break's value before the extension. Growth
// reserves to the next power of two to amortize allocation cost.
func (m *Memory) Sbrk(delta uint32) uint32 {
	old := m.brk
	needed := m.brk + delta - m.heapStart
	if needed > uint32(len(m.heap)) {
		newCap := uint32(len(m.heap))
		if newCap == 0 {
			newCap = pageSize
		}
		for newCap < needed {
			newCap *= 2
		}
		grown := make([]byte, newCap)
		copy(grown, m.heap)
		m.heap = grown
	}
	m.brk += delta
	return old
}

// LibcAccess returns the byte slice from addr to the end of whichever
// region contains it, for libc routines that need to bound string/buffer
// operations without knowing the region in advance.
func (m *Memory) LibcAccess(addr uint32) ([]byte, bool) {
	buf, off, ok := m.region(addr)
	if !ok {
		return nil, false
	}
	if addr >= m.heapStart && addr < m.brk {
		return buf[off : m.brk-m.heapStart], true
	}
	return buf[off:], true
}

// HeapStart and StackLow are exposed for diagnostics and tests.
func (m *Memory) HeapStart() uint32 { return m.heapStart }
func (m *Memory) Brk() uint32       { return m.brk }
func (m *Memory) StackLow() uint32  { return m.stackLow }
