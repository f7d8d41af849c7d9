package libc

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-toolchain/isa"
	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

// poisonRegs lists the caller-saved registers that
// every trampoline clobbers with a magic value on return, so that callers
// relying on their contents surviving a libc call are themselves bugs.
var poisonRegs = []isa.Register{
	isa.T0, isa.T1, isa.T2, isa.T3, isa.T4, isa.T5, isa.T6,
	isa.A1, isa.A2, isa.A3, isa.A4, isa.A5, isa.A6, isa.A7,
}

const poisonValue = 0xDEADC0DE

// argRegs is the fixed a0..a7 argument-register order.
var argRegs = [8]isa.Register{isa.A0, isa.A1, isa.A2, isa.A3, isa.A4, isa.A5, isa.A6, isa.A7}

// finish implements the trampoline return convention: a0 := retval,
// pc := ra, caller-saved registers poisoned.
func finish(rf *vm.RegisterFile, retval uint32) {
	ra := rf.Get(isa.RA)
	rf.Set(isa.A0, retval)
	for _, r := range poisonRegs {
		rf.Set(r, poisonValue)
	}
	rf.PC = ra
}

func args(rf *vm.RegisterFile) [8]uint32 {
	var a [8]uint32
	for i, r := range argRegs {
		a[i] = rf.Get(r)
	}
	return a
}

// NewTrampolines builds the full name -> handler table,
// closing over st for stream/allocator state shared across calls.
func NewTrampolines(st *State) map[string]vm.LibcHandler {
	return map[string]vm.LibcHandler{
		"puts":      st.puts,
		"putchar":   st.putchar,
		"printf":    st.printf,
		"sprintf":   st.sprintf,
		"getchar":   st.getchar,
		"scanf":     st.scanf,
		"sscanf":    st.sscanf,
		"malloc":    st.malloc,
		"calloc":    st.calloc,
		"realloc":   st.realloc,
		"free":      st.free,
		"memcpy":    st.memcpy,
		"memset":    st.memset,
		"memmove":   st.memmove,
		"memcmp":    st.memcmp,
		"strcpy":    st.strcpy,
		"strlen":    st.strlen,
		"strnlen_s": st.strnlenS,
		"strcat":    st.strcat,
		"strcmp":    st.strcmp,
	}
}

func notImplemented(which, msg string) error {
	return &vm.InterpretFailure{Kind: vm.NotImplemented, Which: which, Message: fmt.Sprintf("%s: %s", which, msg)}
}
