package linker

import (
	"encoding/binary"
	"testing"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
)

func assembleFile(t *testing.T, name, src string) *asm.AssemblyLayout {
	t.Helper()
	a := asm.NewAssembler(name, src)
	layout, errs := a.Assemble()
	if len(errs) > 0 {
		t.Fatalf("%s: unexpected assemble errors: %v", name, errs)
	}
	return layout
}

func TestLinkEncoderSpotChecks(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  addi a0, zero, 5\n  lui t0, 0x12345\n  beq a0, a1, .+8\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	word := func(off int) uint32 {
		return binary.LittleEndian.Uint32(ml.Text.Bytes[off : off+4])
	}
	if w := word(0); w != 0x00500513 {
		t.Errorf("addi a0,zero,5 = %#08x, want 0x00500513", w)
	}
	if w := word(4); w != 0x123452B7 {
		t.Errorf("lui t0,0x12345 = %#08x, want 0x123452b7", w)
	}
	if w := word(8); w != 0x00B50463 {
		t.Errorf("beq a0,a1,there = %#08x, want 0x00b50463", w)
	}
}

func TestLinkRelaxLoadImmediateSmall(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  li a0, 42\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if ml.Text.End()-ml.Text.Start != 8 { // addi + ret(jalr)
		t.Fatalf("text size = %d, want 8", ml.Text.End()-ml.Text.Start)
	}
	word := binary.LittleEndian.Uint32(ml.Text.Bytes[0:4])
	if word != 0x02A00513 { // addi a0, zero, 42
		t.Errorf("li a0,42 relaxed to %#08x, want 0x02a00513", word)
	}
}

func TestLinkRelaxLoadImmediateAligned(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  li a0, 0x12345000\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if ml.Text.End()-ml.Text.Start != 8 {
		t.Fatalf("text size = %d, want 8", ml.Text.End()-ml.Text.Start)
	}
	word := binary.LittleEndian.Uint32(ml.Text.Bytes[0:4])
	if word != 0x12345537 { // lui a0, 0x12345
		t.Errorf("li relaxed to %#08x, want lui encoding", word)
	}
}

func TestLinkRelaxLoadImmediateSplit(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  li a0, 0x12345678\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if ml.Text.End()-ml.Text.Start != 12 { // lui + addi + ret
		t.Fatalf("text size = %d, want 12", ml.Text.End()-ml.Text.Start)
	}
}

func TestLinkMissingMainFatal(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\nfoo:\n  ret\n")
	_, err := Link([]*asm.AssemblyLayout{layout})
	if err == nil {
		t.Fatalf("expected an error for missing main")
	}
}

func TestLinkDuplicateGlobalFatal(t *testing.T) {
	a := assembleFile(t, "a.s", ".text\n.globl main\nmain:\n  ret\n")
	b := assembleFile(t, "b.s", ".text\n.globl main\nmain:\n  ret\n")
	_, err := Link([]*asm.AssemblyLayout{a, b})
	if err == nil {
		t.Fatalf("expected a duplicate-global error")
	}
}

func TestLinkSectionNonOverlap(t *testing.T) {
	layout := assembleFile(t, "t.s", ".data\nval: .word 1\n.rodata\nmsg: .asciz \"hi\"\n.bss\nbuf: .zero 8\n.text\n.globl main\nmain:\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if ml.Text.End() > ml.Data.Start || ml.Data.End() > ml.Rodata.Start || ml.Rodata.End() > ml.BSS.Start {
		t.Fatalf("sections overlap: text=[%x,%x) data=[%x,%x) rodata=[%x,%x) bss=[%x,%x)",
			ml.Text.Start, ml.Text.End(), ml.Data.Start, ml.Data.End(),
			ml.Rodata.Start, ml.Rodata.End(), ml.BSS.Start, ml.BSS.End())
	}
	if ml.Text.Start%4 != 0 || ml.Data.Start%4 != 0 {
		t.Errorf("sections not 4-byte aligned")
	}
}

func TestLinkSymbolUniqueness(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  ret\nhelper:\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	seen := make(map[uint32]string)
	for name, addr := range ml.Symbols {
		if other, ok := seen[addr]; ok && other != name {
			// libc entries and user entries may never collide; only flag
			// genuine distinct same-section duplicates.
			t.Errorf("addresses collide: %s and %s both at %#x", name, other, addr)
		}
		seen[addr] = name
	}
}

func TestLinkLibcAddressesReservedBelowText(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if ml.Text.Start != ml.LibcEnd {
		t.Errorf("text starts at %#x, want libc_end %#x", ml.Text.Start, ml.LibcEnd)
	}
	putsAddr, ok := ml.Symbols["puts"]
	if !ok || putsAddr != 0x10000 {
		t.Errorf("puts = %#x, ok=%v, want 0x10000", putsAddr, ok)
	}
}

// A negative immediate must keep its sign through relaxation and encoding;
// folding the trailing Sub into Add would turn "addi sp,sp,-16" into
// "addi sp,sp,16" and break every standard function prologue.
func TestLinkEncodeNegativeImmediate(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  addi sp, sp, -16\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	word := binary.LittleEndian.Uint32(ml.Text.Bytes[0:4])
	if word != 0xFF010113 {
		t.Errorf("addi sp,sp,-16 = %#08x, want 0xff010113", word)
	}
}

func TestLinkEncodeLoadImmediateNegativeOne(t *testing.T) {
	layout := assembleFile(t, "t.s", ".text\n.globl main\nmain:\n  li a0, -1\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	// li a0,-1 relaxes to a single addi a0,zero,-1.
	word := binary.LittleEndian.Uint32(ml.Text.Bytes[0:4])
	if word != 0xFFF00513 {
		t.Errorf("li a0,-1 relaxed to %#08x, want 0xfff00513", word)
	}
}

// A symbol difference must not fold its subtracted term into addition.
func TestLinkEncodeSymbolDifference(t *testing.T) {
	layout := assembleFile(t, "t.s", ".data\na: .word 0\nb: .word 0\ndiff: .word a-b\n.text\n.globl main\nmain:\n  ret\n")
	ml, err := Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	diffAddr, ok := ml.Symbols["diff"]
	if !ok {
		t.Fatalf("diff symbol not found")
	}
	off := diffAddr - ml.Data.Start
	word := binary.LittleEndian.Uint32(ml.Data.Bytes[off : off+4])
	if word != 0xFFFFFFFC { // a - b == -4
		t.Errorf("a-b = %#08x, want 0xfffffffc (-4)", word)
	}
}
