package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lookbusy1344/rv32im-toolchain/isa"
	"github.com/lookbusy1344/rv32im-toolchain/loader"
	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

func load(t *testing.T, opts loader.Options, files map[string]string, order []string) *loader.Program {
	t.Helper()
	prog, err := loader.Load(files, order, opts)
	if err != nil {
		t.Fatalf("loader.Load: %v", err)
	}
	return prog
}

func TestLoaderRunsArithmeticToNormalHalt(t *testing.T) {
	src := `.text
.globl main
main:
	addi a0, zero, 10
	addi a1, zero, 32
	add  a0, a0, a1
	ret
`
	prog := load(t, loader.Options{StackTop: 0x80000000, StackSize: 0x1000}, map[string]string{"t.s": src}, []string{"t.s"})

	final := prog.Interpreter.Run()
	if final != vm.StateHaltedNormal {
		t.Fatalf("state = %s, want %s", final, vm.StateHaltedNormal)
	}
	if got := prog.Interpreter.RF.Get(isa.A0); got != 42 {
		t.Errorf("a0 = %d, want 42", got)
	}
}

func TestLoaderRunsPutsThroughLibc(t *testing.T) {
	src := `.rodata
msg:
	.asciz "hello, rv32im"
.text
.globl main
main:
	la a0, msg
	call puts
	ret
`
	var out bytes.Buffer
	prog := load(t, loader.Options{
		StackTop:  0x80000000,
		StackSize: 0x1000,
		Stdin:     strings.NewReader(""),
		Stdout:    &out,
	}, map[string]string{"t.s": src}, []string{"t.s"})

	final := prog.Interpreter.Run()
	if final != vm.StateHaltedNormal {
		t.Fatalf("state = %s, want %s, err=%v", final, vm.StateHaltedNormal, prog.Interpreter.Err)
	}
	if out.String() != "hello, rv32im\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "hello, rv32im\n")
	}
}

func TestLoaderTimeoutHalt(t *testing.T) {
	src := `.text
.globl main
main:
loop:
	j loop
`
	prog := load(t, loader.Options{
		StackTop:      0x80000000,
		StackSize:     0x1000,
		TimeoutCycles: 50,
	}, map[string]string{"t.s": src}, []string{"t.s"})

	final := prog.Interpreter.Run()
	if final != vm.StateHaltedTimeout {
		t.Fatalf("state = %s, want %s", final, vm.StateHaltedTimeout)
	}
}

func TestLoaderMultiFileLink(t *testing.T) {
	mainSrc := `.text
.globl main
main:
	call helper
	ret
`
	helperSrc := `.text
.globl helper
helper:
	addi a0, zero, 7
	ret
`
	prog := load(t, loader.Options{StackTop: 0x80000000, StackSize: 0x1000},
		map[string]string{"main.s": mainSrc, "helper.s": helperSrc},
		[]string{"main.s", "helper.s"})

	final := prog.Interpreter.Run()
	if final != vm.StateHaltedNormal {
		t.Fatalf("state = %s, want %s, err=%v", final, vm.StateHaltedNormal, prog.Interpreter.Err)
	}
}

func TestLoaderUnknownFileErrors(t *testing.T) {
	_, err := loader.Load(map[string]string{"a.s": ".text\n"}, []string{"missing.s"}, loader.Options{})
	if err == nil {
		t.Fatal("expected error for unregistered source file")
	}
}

func TestLoaderAssembleErrorPropagates(t *testing.T) {
	_, err := loader.Load(map[string]string{"t.s": ".text\nfrobnicate a0, a1\n"}, []string{"t.s"}, loader.Options{})
	if err == nil {
		t.Fatal("expected assemble error to propagate")
	}
}

func TestLoaderEntryOverride(t *testing.T) {
	src := `.text
.globl main
main:
	j skip
	addi a0, zero, 99
skip:
	addi a0, zero, 1
	ret
`
	prog, err := loader.Load(map[string]string{"t.s": src}, []string{"t.s"}, loader.Options{
		StackTop:  0x80000000,
		StackSize: 0x1000,
	})
	if err != nil {
		t.Fatalf("loader.Load: %v", err)
	}
	skipPC, ok := prog.Layout.Symbols["skip"]
	if !ok {
		t.Fatal("expected skip symbol in linked layout")
	}

	prog2 := load(t, loader.Options{StackTop: 0x80000000, StackSize: 0x1000, Entry: skipPC},
		map[string]string{"t.s": src}, []string{"t.s"})
	if prog2.Interpreter.RF.PC != skipPC {
		t.Errorf("entry pc = %#x, want %#x", prog2.Interpreter.RF.PC, skipPC)
	}
}
