package vm

import "github.com/lookbusy1344/rv32im-toolchain/isa"

// RegisterFile holds the 32 RV32I integer registers and the program
// counter. x0 is stored like any other slot; ResetZero re-pins it to 0 at
// the top of every cycle (`rf[zero] := 0`), which is
// cheaper than special-casing every Set call and gives the same observable
// behavior since nothing reads a register between a write to x0 and the
// next cycle boundary.
type RegisterFile struct {
	regs [32]uint32
	PC   uint32
}

func (rf *RegisterFile) Get(r isa.Register) uint32 { return rf.regs[r] }

func (rf *RegisterFile) Set(r isa.Register, v uint32) { rf.regs[r] = v }

// ResetZero re-pins x0 to 0. Call once per dispatch cycle before decoding.
func (rf *RegisterFile) ResetZero() { rf.regs[isa.Zero] = 0 }
