// Package loader wires the assembler, linker, interpreter core, and libc
// boundary together into one runnable program (the toolchain's end-to-end
// pipeline): source text in, a ready-to-run vm.Interpreter out.
package loader

import (
	"fmt"
	"io"

	"github.com/lookbusy1344/rv32im-toolchain/abi"
	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/libc"
	"github.com/lookbusy1344/rv32im-toolchain/linker"
	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

// Options configures one Load call. Entry overrides the linker-resolved
// "main" symbol when non-zero (the -entry CLI flag); StackTop, StackSize
// and TimeoutCycles mirror config.Config's Execution fields, Weights is the
// config's weights table, and Stdin/Stdout are the guest's streams.
type Options struct {
	Entry         uint32
	StackTop      uint32
	StackSize     uint32
	TimeoutCycles uint64
	Weights       map[string]uint64
	Stdin         io.Reader
	Stdout        io.Writer
}

// Program bundles everything a debugger or a plain run needs after
// loading: the linked layout (for symbol lookups) and a ready
// Interpreter.
type Program struct {
	Layout      *linker.MemoryLayout
	Interpreter *vm.Interpreter
}

// Load assembles each source file (in link order), links them into one
// MemoryLayout, builds the interpreter's Memory/ICache/Device, and installs
// every libc trampoline, returning a Program ready for Run/Step.
func Load(files map[string]string, order []string, opts Options) (*Program, error) {
	layouts := make([]*asm.AssemblyLayout, 0, len(order))
	for _, name := range order {
		src, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("loader: no source registered for %q", name)
		}
		a := asm.NewAssembler(name, src)
		layout, errs := a.Assemble()
		if len(errs) > 0 {
			return nil, errs[0]
		}
		layouts = append(layouts, layout)
	}

	ml, err := linker.Link(layouts)
	if err != nil {
		return nil, err
	}

	entryPC := ml.EntryPC
	if opts.Entry != 0 {
		entryPC = opts.Entry
	}

	mem := vm.NewMemory(ml, opts.StackTop, opts.StackSize)
	ic := vm.NewICache(ml.Text.Start, uint32(len(ml.Text.Bytes)))
	dev := vm.NewDevice(opts.Weights)

	st := libc.NewState(opts.Stdin, opts.Stdout)
	handlers := libc.NewTrampolines(st)
	for i, name := range abi.TrampolineNames {
		h, ok := handlers[name]
		if !ok {
			return nil, fmt.Errorf("loader: no trampoline handler registered for %q", name)
		}
		ic.InstallLibc(abi.LibcBase+uint32(i)*4, h)
	}

	in := vm.NewInterpreter(mem, ic, dev, uint64(entryPC), uint64(opts.StackTop), opts.TimeoutCycles)

	return &Program{Layout: ml, Interpreter: in}, nil
}
