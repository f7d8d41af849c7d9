package libc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/isa"
	"github.com/lookbusy1344/rv32im-toolchain/linker"
	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

func buildMem(t *testing.T, src string) *vm.Memory {
	t.Helper()
	a := asm.NewAssembler("t.s", src)
	layout, errs := a.Assemble()
	if len(errs) > 0 {
		t.Fatalf("assemble errors: %v", errs)
	}
	ml, err := linker.Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	return vm.NewMemory(ml, 0x80000000, 0x1000)
}

func newRF(ra uint32, a0 uint32) *vm.RegisterFile {
	rf := &vm.RegisterFile{}
	rf.Set(isa.RA, ra)
	rf.Set(isa.A0, a0)
	return rf
}

func TestPutsWritesLineToStdout(t *testing.T) {
	mem := buildMem(t, ".rodata\nmsg: .asciz \"hello\"\n.text\n.globl main\nmain:\n  ret\n")
	// Memory doesn't expose symbols, so findSymbol links the fixture again
	// and looks "msg" up in the linked symbol map.
	addr := findSymbol(t, mem)

	var out bytes.Buffer
	st := NewState(strings.NewReader(""), &out)
	rf := newRF(0x1234, addr)
	dev := vm.NewDevice(nil)
	if err := st.puts(rf, mem, dev); err != nil {
		t.Fatalf("puts: %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "hello\n")
	}
	if rf.Get(isa.A0) != 6 {
		t.Errorf("a0 = %d, want 6", rf.Get(isa.A0))
	}
	if rf.PC != 0x1234 {
		t.Errorf("pc = %#x, want return to ra", rf.PC)
	}
}

// findSymbol re-assembles the same fixture through the linker to recover
// the rodata string's address, since vm.Memory alone carries no symbol
// table (that lives in the MemoryLayout the loader already consulted).
func findSymbol(t *testing.T, _ *vm.Memory) uint32 {
	t.Helper()
	a := asm.NewAssembler("t.s", ".rodata\nmsg: .asciz \"hello\"\n.text\n.globl main\nmain:\n  ret\n")
	layout, errs := a.Assemble()
	if len(errs) > 0 {
		t.Fatalf("assemble errors: %v", errs)
	}
	ml, err := linker.Link([]*asm.AssemblyLayout{layout})
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	return ml.Symbols["msg"]
}

func TestMallocReturnsDistinctAlignedPointers(t *testing.T) {
	mem := buildMem(t, ".text\n.globl main\nmain:\n  ret\n")
	st := NewState(strings.NewReader(""), &bytes.Buffer{})
	dev := vm.NewDevice(nil)

	rf := newRF(0, 0)
	rf.Set(isa.A0, 8)
	if err := st.malloc(rf, mem, dev); err != nil {
		t.Fatalf("malloc: %v", err)
	}
	p1 := rf.Get(isa.A0)
	if p1%16 != 0 {
		t.Errorf("p1 = %#x, want 16-byte aligned", p1)
	}

	rf2 := newRF(0, 0)
	rf2.Set(isa.A0, 8)
	if err := st.malloc(rf2, mem, dev); err != nil {
		t.Fatalf("malloc: %v", err)
	}
	p2 := rf2.Get(isa.A0)
	if p2 == p1 {
		t.Errorf("second malloc returned the same address %#x", p1)
	}
	if err := mem.StoreU32(p1, 111); err != nil {
		t.Fatalf("store p1: %v", err)
	}
	if err := mem.StoreU32(p2, 222); err != nil {
		t.Fatalf("store p2: %v", err)
	}
	v1, _ := mem.LoadU32(p1)
	if v1 != 111 {
		t.Errorf("p1 overwritten by p2's allocation: got %d", v1)
	}
}

func TestStrcpyAndStrlenRoundTrip(t *testing.T) {
	mem := buildMem(t, ".text\n.globl main\nmain:\n  ret\n")
	st := NewState(strings.NewReader(""), &bytes.Buffer{})
	dev := vm.NewDevice(nil)

	rf := newRF(0, 0)
	rf.Set(isa.A0, 64) // requested size for the destination buffer
	if err := st.malloc(rf, mem, dev); err != nil {
		t.Fatalf("malloc dst: %v", err)
	}
	dst := rf.Get(isa.A0)

	rf2 := newRF(0, 0)
	rf2.Set(isa.A0, 64)
	if err := st.malloc(rf2, mem, dev); err != nil {
		t.Fatalf("malloc src: %v", err)
	}
	src := rf2.Get(isa.A0)
	if err := writeCString(mem, "test", src, []byte("abc")); err != nil {
		t.Fatalf("seed src: %v", err)
	}

	rf3 := newRF(0x99, 0)
	rf3.Set(isa.A0, dst)
	rf3.Set(isa.A1, src)
	if err := st.strcpy(rf3, mem, dev); err != nil {
		t.Fatalf("strcpy: %v", err)
	}
	if rf3.Get(isa.A0) != dst {
		t.Errorf("strcpy returned %#x, want dst %#x", rf3.Get(isa.A0), dst)
	}

	rf4 := newRF(0, 0)
	rf4.Set(isa.A0, dst)
	if err := st.strlen(rf4, mem, dev); err != nil {
		t.Fatalf("strlen: %v", err)
	}
	if rf4.Get(isa.A0) != 3 {
		t.Errorf("strlen = %d, want 3", rf4.Get(isa.A0))
	}
}

func TestSscanfParsesIntAndString(t *testing.T) {
	mem := buildMem(t, ".text\n.globl main\nmain:\n  ret\n")
	st := NewState(strings.NewReader(""), &bytes.Buffer{})
	dev := vm.NewDevice(nil)

	mallocAt := func(size uint32) uint32 {
		rf := newRF(0, 0)
		rf.Set(isa.A0, size)
		if err := st.malloc(rf, mem, dev); err != nil {
			t.Fatalf("malloc: %v", err)
		}
		return rf.Get(isa.A0)
	}

	input := mallocAt(32)
	if err := writeCString(mem, "test", input, []byte("42 hi")); err != nil {
		t.Fatalf("seed input: %v", err)
	}
	format := mallocAt(32)
	if err := writeCString(mem, "test", format, []byte("%d %s")); err != nil {
		t.Fatalf("seed format: %v", err)
	}
	outInt := mallocAt(16)
	outStr := mallocAt(16)

	rf := newRF(0, 0)
	rf.Set(isa.A0, input)
	rf.Set(isa.A1, format)
	rf.Set(isa.A2, outInt)
	rf.Set(isa.A3, outStr)
	if err := st.sscanf(rf, mem, dev); err != nil {
		t.Fatalf("sscanf: %v", err)
	}
	if rf.Get(isa.A0) != 2 {
		t.Errorf("sscanf matched %d fields, want 2", rf.Get(isa.A0))
	}
	v, _ := mem.LoadU32(outInt)
	if v != 42 {
		t.Errorf("parsed int = %d, want 42", v)
	}
	s, err := cstring(mem, "test", outStr)
	if err != nil || string(s) != "hi" {
		t.Errorf("parsed string = %q, err=%v, want \"hi\"", s, err)
	}
}

func TestPrintfFormatsAllSpecifiers(t *testing.T) {
	mem := buildMem(t, ".text\n.globl main\nmain:\n  ret\n")
	st := NewState(strings.NewReader(""), &bytes.Buffer{})
	dev := vm.NewDevice(nil)

	mallocAt := func(size uint32) uint32 {
		rf := newRF(0, 0)
		rf.Set(isa.A0, size)
		if err := st.malloc(rf, mem, dev); err != nil {
			t.Fatalf("malloc: %v", err)
		}
		return rf.Get(isa.A0)
	}
	fmtAddr := mallocAt(32)
	if err := writeCString(mem, "test", fmtAddr, []byte("%d-%u-%x-%c-%%")); err != nil {
		t.Fatalf("seed fmt: %v", err)
	}

	var out bytes.Buffer
	st.Stdout = &out
	rf := newRF(0x50, 0)
	rf.Set(isa.A0, fmtAddr)
	rf.Set(isa.A1, 0xFFFFFFFF) // -1
	rf.Set(isa.A2, 7)
	rf.Set(isa.A3, 255)
	rf.Set(isa.A4, uint32('Z'))
	if err := st.printf(rf, mem, dev); err != nil {
		t.Fatalf("printf: %v", err)
	}
	if out.String() != "-1-7-ff-Z-%" {
		t.Errorf("printf output = %q, want %q", out.String(), "-1-7-ff-Z-%")
	}
}
