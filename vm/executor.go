package vm

import "github.com/lookbusy1344/rv32im-toolchain/isa"

// Interpreter drives the dispatch loop: it fetches an
// Executable from the ICache, runs it against the register file and
// memory, and stops when the program counter reaches 0, a run-time error
// traps, or the cycle budget is exhausted.
type Interpreter struct {
	RF     *RegisterFile
	Mem    *Memory
	ICache *ICache
	Dev    *Device

	MaxCycles uint64

	State    State
	Err      error
	ExitCode uint32
}

// NewInterpreter wires a freshly built Memory and ICache into a run-ready
// Interpreter. entryPC and stackTop come from the linker's MemoryLayout and
// the execution config's stack_top respectively.
func NewInterpreter(mem *Memory, ic *ICache, dev *Device, entryPC, stackTop, maxCycles uint64) *Interpreter {
	rf := &RegisterFile{}
	rf.PC = uint32(entryPC)
	rf.Set(isa.RA, 0)
	rf.Set(isa.SP, uint32(stackTop))
	return &Interpreter{
		RF:        rf,
		Mem:       mem,
		ICache:    ic,
		Dev:       dev,
		MaxCycles: maxCycles,
		State:     StateRunning,
	}
}

// Step executes exactly one instruction (or libc trampoline call) and
// returns whether the interpreter is still running afterward.
func (in *Interpreter) Step() bool {
	if in.State != StateRunning {
		return false
	}
	if in.MaxCycles != 0 && in.Dev.Cycles >= in.MaxCycles {
		in.State = StateHaltedTimeout
		return false
	}

	in.RF.ResetZero()

	hint := in.Dev.NextHint
	in.Dev.NextHint = nil
	slot, err := in.ICache.Fetch(in.RF.PC, hint)
	if err != nil {
		in.Err = err
		in.State = StateHaltedError
		return false
	}

	if err := slot.Handler(in.RF, in.Mem, in.Dev); err != nil {
		in.Err = err
		in.State = StateHaltedError
		return false
	}

	if in.RF.PC == 0 {
		in.ExitCode = in.RF.Get(isa.A0)
		in.State = StateHaltedNormal
		return false
	}
	return true
}

// Run steps until the interpreter halts, returning the terminal state.
func (in *Interpreter) Run() State {
	for in.Step() {
	}
	return in.State
}
