package debugger

import (
	"github.com/lookbusy1344/rv32im-toolchain/linker"
	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

// newTestInterpreter builds a minimal Interpreter over a tiny memory
// layout, enough for expression/watchpoint tests that only read and
// write registers and memory without stepping real instructions.
func newTestInterpreter() *vm.Interpreter {
	ml := &linker.MemoryLayout{
		Symbols: map[string]uint32{},
		Text:    linker.Section{Start: 0x1000, Bytes: make([]byte, 64)},
		Data:    linker.Section{Start: 0x1040, Bytes: make([]byte, 64)},
		Rodata:  linker.Section{Start: 0x1080, Bytes: make([]byte, 64)},
		BSS:     linker.Section{Start: 0x10C0, Bytes: make([]byte, 64)},
		EntryPC: 0x1000,
	}
	mem := vm.NewMemory(ml, 0x80000000, 0x10000)
	ic := vm.NewICache(ml.Text.Start, uint32(len(ml.Text.Bytes)))
	dev := vm.NewDevice(nil)
	return vm.NewInterpreter(mem, ic, dev, uint64(ml.EntryPC), 0x80000000, 0)
}
