// Package isa holds the RV32IM definitions shared by the assembler, the
// linker's encoder, and the interpreter's decoder: register numbering,
// opcode/funct tables, and the bitfield packing conventions of the
// RISC-V Unprivileged ISA. Keeping these in one leaf package, rather than
// duplicating them across the encoder and the decoder, keeps encode(decode(x))
// and decode(encode(x)) honest by construction.
package isa

import "fmt"

// Register is one of the 32 RV32I integer registers.
type Register int

// Numbering follows the hardware x0-x31 register file exactly (a0 is x10,
// not an arbitrary ABI-name ordinal), since Register values are packed
// directly into instruction bit fields.
const (
	Zero Register = iota // x0
	RA                   // x1
	SP                   // x2
	GP                   // x3
	TP                   // x4
	T0                   // x5
	T1                   // x6
	T2                   // x7
	S0                   // x8
	S1                   // x9
	A0                   // x10
	A1                   // x11
	A2                   // x12
	A3                   // x13
	A4                   // x14
	A5                   // x15
	A6                   // x16
	A7                   // x17
	S2                   // x18
	S3                   // x19
	S4                   // x20
	S5                   // x21
	S6                   // x22
	S7                   // x23
	S8                   // x24
	S9                   // x25
	S10                  // x26
	S11                  // x27
	T3                   // x28
	T4                   // x29
	T5                   // x30
	T6                   // x31
)

var registerNames = map[Register]string{
	Zero: "zero", RA: "ra", SP: "sp", GP: "gp", TP: "tp",
	T0: "t0", T1: "t1", T2: "t2", T3: "t3", T4: "t4", T5: "t5", T6: "t6",
	S0: "s0", S1: "s1", S2: "s2", S3: "s3", S4: "s4", S5: "s5",
	S6: "s6", S7: "s7", S8: "s8", S9: "s9", S10: "s10", S11: "s11",
	A0: "a0", A1: "a1", A2: "a2", A3: "a3", A4: "a4", A5: "a5", A6: "a6", A7: "a7",
}

var registerByName = buildRegisterByName()

func buildRegisterByName() map[string]Register {
	m := make(map[string]Register, 64)
	for r, name := range registerNames {
		m[name] = r
	}
	for i := Register(0); i <= 31; i++ {
		m[fmt.Sprintf("x%d", int(i))] = i
	}
	return m
}

func (r Register) String() string {
	if n, ok := registerNames[r]; ok {
		return n
	}
	return fmt.Sprintf("x%d", int(r))
}

// ParseRegister resolves a register spelling (zero, ra, sp, ..., a7, or
// x0-x31) to its number.
func ParseRegister(name string) (Register, bool) {
	r, ok := registerByName[name]
	return r, ok
}
