package isa

import "testing"

func TestRoundTripR(t *testing.T) {
	word := EncodeR(OpcodeR, 0x5, 0x20, S3, T1, A4)
	funct3, funct7, rd, rs1, rs2 := DecodeR(word)
	if funct3 != 0x5 || funct7 != 0x20 || rd != S3 || rs1 != T1 || rs2 != A4 {
		t.Fatalf("got (%x,%x,%v,%v,%v)", funct3, funct7, rd, rs1, rs2)
	}
}

func TestRoundTripI(t *testing.T) {
	for _, imm := range []int32{0, 1, -1, 2047, -2048, 42} {
		word := EncodeI(OpcodeI, 0x0, A0, T0, uint32(imm))
		funct3, rd, rs1, got := DecodeI(word)
		if funct3 != 0 || rd != A0 || rs1 != T0 || got != imm {
			t.Fatalf("imm %d: got (%d,%v,%v,%d)", imm, funct3, rd, rs1, got)
		}
	}
}

func TestRoundTripS(t *testing.T) {
	for _, imm := range []int32{0, 4, -4, 2047, -2048} {
		word := EncodeS(OpcodeStore, 0x2, SP, A1, uint32(imm))
		funct3, rs1, rs2, got := DecodeS(word)
		if funct3 != 2 || rs1 != SP || rs2 != A1 || got != imm {
			t.Fatalf("imm %d: got (%d,%v,%v,%d)", imm, funct3, rs1, rs2, got)
		}
	}
}

func TestRoundTripB(t *testing.T) {
	for _, imm := range []int32{0, 8, -8, 4094, -4096} {
		word := EncodeB(OpcodeBranch, 0x0, A0, A1, uint32(imm))
		funct3, rs1, rs2, got := DecodeB(word)
		if funct3 != 0 || rs1 != A0 || rs2 != A1 || got != imm {
			t.Fatalf("imm %d: got (%d,%v,%v,%d)", imm, funct3, rs1, rs2, got)
		}
	}
}

func TestRoundTripU(t *testing.T) {
	word := EncodeU(OpcodeLUI, T0, 0x12345)
	rd, imm := DecodeU(word)
	if rd != T0 || imm != 0x12345 {
		t.Fatalf("got (%v,%x)", rd, imm)
	}
}

func TestRoundTripJ(t *testing.T) {
	for _, imm := range []int32{0, 4, -4, 1<<20 - 2, -(1 << 20)} {
		word := EncodeJ(OpcodeJAL, RA, uint32(imm))
		rd, got := DecodeJ(word)
		if rd != RA || got != imm {
			t.Fatalf("imm %d: got (%v,%d)", imm, rd, got)
		}
	}
}

func TestEncoderSpotChecks(t *testing.T) {
	// addi a0, zero, 5  ->  0x00500513
	if got := EncodeI(OpcodeI, 0x0, A0, Zero, 5); got != 0x00500513 {
		t.Errorf("addi a0,zero,5 = %#08x, want 0x00500513", got)
	}
	// lui t0, 0x12345  ->  0x123452B7
	if got := EncodeU(OpcodeLUI, T0, 0x12345); got != 0x123452B7 {
		t.Errorf("lui t0,0x12345 = %#08x, want 0x123452b7", got)
	}
	// beq a0, a1, .+8  ->  0x00B50463
	if got := EncodeB(OpcodeBranch, 0x0, A0, A1, 8); got != 0x00B50463 {
		t.Errorf("beq a0,a1,.+8 = %#08x, want 0x00b50463", got)
	}
}

func TestSplitLoHi(t *testing.T) {
	hi, lo := SplitLoHi(0x12345678)
	if hi != 0x12345 || lo != 0x678 {
		t.Errorf("split(0x12345678) = (%x,%x), want (12345,678)", hi, lo)
	}
	hi2, lo2 := SplitLoHi(0x12345000)
	if hi2 != 0x12345 || lo2 != 0 {
		t.Errorf("split(0x12345000) = (%x,%x), want (12345,0)", hi2, lo2)
	}
}
