package isa

// This file packs and unpacks the 32-bit RV32IM instruction formats (R, I,
// S, B, U, J) per the RISC-V Unprivileged ISA. Keeping both directions here
// (rather than splitting pack into the linker's encoder and unpack into the
// interpreter's decoder, as separate hand-rolled bit-twiddling) is what
// keeps decode(encode(x)) == x true by construction rather than by
// diligence.

// EncodeR packs an R-type (register-register) instruction.
func EncodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 Register) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

// DecodeR unpacks an R-type word (caller already knows opcode).
func DecodeR(word uint32) (funct3, funct7 uint32, rd, rs1, rs2 Register) {
	funct7 = (word >> 25) & 0x7F
	rs2 = Register((word >> 20) & 0x1F)
	rs1 = Register((word >> 15) & 0x1F)
	funct3 = (word >> 12) & 0x7
	rd = Register((word >> 7) & 0x1F)
	return
}

// EncodeI packs an I-type (arithmetic-immediate, load, jalr) instruction.
// imm is the raw 12-bit signed immediate in its low 12 bits.
func EncodeI(opcode, funct3 uint32, rd, rs1 Register, imm uint32) uint32 {
	return (imm&0xFFF)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

// DecodeI unpacks an I-type word, sign-extending the immediate.
func DecodeI(word uint32) (funct3 uint32, rd, rs1 Register, imm int32) {
	raw := (word >> 20) & 0xFFF
	funct3 = (word >> 12) & 0x7
	rd = Register((word >> 7) & 0x1F)
	rs1 = Register((word >> 15) & 0x1F)
	imm = signExtend(raw, 12)
	return
}

// EncodeS packs an S-type (store) instruction.
func EncodeS(opcode, funct3 uint32, rs1, rs2 Register, imm uint32) uint32 {
	imm11_5 := (imm >> 5) & 0x7F
	imm4_0 := imm & 0x1F
	return imm11_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | imm4_0<<7 | opcode
}

// DecodeS unpacks an S-type word, sign-extending the immediate.
func DecodeS(word uint32) (funct3 uint32, rs1, rs2 Register, imm int32) {
	imm11_5 := (word >> 25) & 0x7F
	rs2 = Register((word >> 20) & 0x1F)
	rs1 = Register((word >> 15) & 0x1F)
	funct3 = (word >> 12) & 0x7
	imm4_0 := (word >> 7) & 0x1F
	raw := imm11_5<<5 | imm4_0
	imm = signExtend(raw, 12)
	return
}

// EncodeB packs a B-type (branch) instruction. imm is the byte offset
// (always even; bit 0 is implicitly zero).
func EncodeB(opcode, funct3 uint32, rs1, rs2 Register, imm uint32) uint32 {
	b12 := (imm >> 12) & 0x1
	b10_5 := (imm >> 5) & 0x3F
	b4_1 := (imm >> 1) & 0xF
	b11 := (imm >> 11) & 0x1
	return b12<<31 | b10_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | b4_1<<8 | b11<<7 | opcode
}

// DecodeB unpacks a B-type word, sign-extending the branch offset.
func DecodeB(word uint32) (funct3 uint32, rs1, rs2 Register, imm int32) {
	b12 := (word >> 31) & 0x1
	b10_5 := (word >> 25) & 0x3F
	rs2 = Register((word >> 20) & 0x1F)
	rs1 = Register((word >> 15) & 0x1F)
	funct3 = (word >> 12) & 0x7
	b4_1 := (word >> 8) & 0xF
	b11 := (word >> 7) & 0x1
	raw := b12<<12 | b11<<11 | b10_5<<5 | b4_1<<1
	imm = signExtend(raw, 13)
	return
}

// EncodeU packs a U-type (lui, auipc) instruction. imm occupies bits
// [31:12] (already the "upper 20 bits" value, not pre-shifted).
func EncodeU(opcode uint32, rd Register, imm uint32) uint32 {
	return (imm&0xFFFFF)<<12 | uint32(rd)<<7 | opcode
}

// DecodeU unpacks a U-type word, returning the raw upper-20-bit field.
func DecodeU(word uint32) (rd Register, imm uint32) {
	rd = Register((word >> 7) & 0x1F)
	imm = (word >> 12) & 0xFFFFF
	return
}

// EncodeJ packs a J-type (jal) instruction. imm is the byte offset (always
// even; bit 0 is implicitly zero).
func EncodeJ(opcode uint32, rd Register, imm uint32) uint32 {
	b20 := (imm >> 20) & 0x1
	b10_1 := (imm >> 1) & 0x3FF
	b11 := (imm >> 11) & 0x1
	b19_12 := (imm >> 12) & 0xFF
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | uint32(rd)<<7 | opcode
}

// DecodeJ unpacks a J-type word, sign-extending the jump offset.
func DecodeJ(word uint32) (rd Register, imm int32) {
	b20 := (word >> 31) & 0x1
	b10_1 := (word >> 21) & 0x3FF
	b11 := (word >> 20) & 0x1
	b19_12 := (word >> 12) & 0xFF
	rd = Register((word >> 7) & 0x1F)
	raw := b20<<20 | b19_12<<12 | b11<<11 | b10_1<<1
	imm = signExtend(raw, 21)
	return
}

// Opcode extracts the 7-bit opcode field common to every format.
func Opcode(word uint32) uint32 { return word & 0x7F }

func signExtend(raw uint32, bits int) int32 {
	shift := 32 - bits
	return int32(raw<<uint(shift)) >> uint(shift)
}
