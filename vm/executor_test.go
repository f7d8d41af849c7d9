package vm

import (
	"reflect"
	"testing"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/linker"
)

func buildInterpreter(t *testing.T, src string) *Interpreter {
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
	const stackTop, stackSize = 0x80000000, 0x10000
	mem := NewMemory(ml, stackTop, stackSize)
	ic := NewICache(ml.Text.Start, uint32(len(ml.Text.Bytes)))
	dev := NewDevice(nil)
	return NewInterpreter(mem, ic, dev, uint64(ml.EntryPC), stackTop, 10000)
}

func TestInterpretAddReturnsA0(t *testing.T) {
	in := buildInterpreter(t, ".text\n.globl main\nmain:\n  addi a0, zero, 5\n  addi a1, zero, 7\n  add a0, a0, a1\n  ret\n")
	st := in.Run()
	if st != StateHaltedNormal {
		t.Fatalf("state = %v, err = %v", st, in.Err)
	}
	if in.ExitCode != 12 {
		t.Errorf("exit code = %d, want 12", in.ExitCode)
	}
}

func TestInterpretBranchLoop(t *testing.T) {
	// sum 1..5 into a0 via a counted loop.
	src := `.text
.globl main
main:
  addi a0, zero, 0
  addi a1, zero, 1
loop:
  add a0, a0, a1
  addi a1, a1, 1
  addi t0, zero, 6
  blt a1, t0, loop
  ret
`
	in := buildInterpreter(t, src)
	st := in.Run()
	if st != StateHaltedNormal {
		t.Fatalf("state = %v, err = %v", st, in.Err)
	}
	if in.ExitCode != 15 {
		t.Errorf("exit code = %d, want 15 (1+2+3+4+5)", in.ExitCode)
	}
}

func TestInterpretDivideByZeroTraps(t *testing.T) {
	in := buildInterpreter(t, ".text\n.globl main\nmain:\n  addi a0, zero, 10\n  addi a1, zero, 0\n  div a0, a0, a1\n  ret\n")
	st := in.Run()
	if st != StateHaltedError {
		t.Fatalf("state = %v, want halted_error", st)
	}
	fail, ok := in.Err.(*InterpretFailure)
	if !ok || fail.Kind != DivideByZero {
		t.Errorf("err = %v, want DivideByZero", in.Err)
	}
}

func TestInterpretZeroRegisterAlwaysReadsZero(t *testing.T) {
	in := buildInterpreter(t, ".text\n.globl main\nmain:\n  addi zero, zero, 99\n  add a0, zero, zero\n  ret\n")
	st := in.Run()
	if st != StateHaltedNormal {
		t.Fatalf("state = %v, err = %v", st, in.Err)
	}
	if in.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0 (zero register must not stick)", in.ExitCode)
	}
}

func TestInterpretICacheMonotonic(t *testing.T) {
	in := buildInterpreter(t, ".text\n.globl main\nmain:\n  addi a0, zero, 1\n  ret\n")
	slot, err := in.ICache.Fetch(in.RF.PC, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	before := slot.Handler
	in.Run()
	after, err := in.ICache.Fetch(uint32(0)+in.ICache.textStart, nil)
	if err != nil {
		t.Fatalf("fetch after run: %v", err)
	}
	if fnAddr(before) == fnAddr(after.Handler) {
		t.Errorf("compile_once sentinel was not replaced after first fetch")
	}
	// Fetching again must not trigger a second compile (handler pointer stable).
	again, _ := in.ICache.Fetch(in.ICache.textStart, nil)
	if fnAddr(again.Handler) != fnAddr(after.Handler) {
		t.Errorf("decoded handler changed across repeated fetches")
	}
}

func fnAddr(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// A loop's backward branch is taken on every iteration but the last; the
// predictor must learn that pattern, and the ifetch hint it leaves behind
// must never cause the interpreter to execute the wrong instruction.
func TestInterpretBranchPredictorTracksLoop(t *testing.T) {
	src := `.text
.globl main
main:
  addi a0, zero, 0
  addi a1, zero, 1
loop:
  add a0, a0, a1
  addi a1, a1, 1
  addi t0, zero, 50
  blt a1, t0, loop
  ret
`
	in := buildInterpreter(t, src)
	st := in.Run()
	if st != StateHaltedNormal {
		t.Fatalf("state = %v, err = %v", st, in.Err)
	}
	if in.Dev.PredictHits+in.Dev.PredictMisses != in.Dev.BranchesTaken+in.Dev.BranchesNotTaken {
		t.Fatalf("predictor saw %d+%d outcomes, want %d branches",
			in.Dev.PredictHits, in.Dev.PredictMisses, in.Dev.BranchesTaken+in.Dev.BranchesNotTaken)
	}
	// A cold-start miss or two plus one miss when the loop finally falls
	// through is expected; the long run of taken iterations in between
	// should dominate once the saturating counter trains up.
	if in.Dev.PredictMisses > 3 {
		t.Errorf("predictor misses = %d, want at most 3 after training", in.Dev.PredictMisses)
	}
	if in.Dev.PredictHits <= in.Dev.PredictMisses {
		t.Errorf("predictor hits = %d should dominate misses = %d over a 48-iteration loop",
			in.Dev.PredictHits, in.Dev.PredictMisses)
	}
}

func TestInterpretTimeout(t *testing.T) {
	src := `.text
.globl main
main:
  addi t0, zero, 1
loop:
  bne t0, zero, loop
  ret
`
	in := buildInterpreter(t, src)
	in.MaxCycles = 5
	st := in.Run()
	if st != StateHaltedTimeout {
		t.Fatalf("state = %v, want halted_timeout", st)
	}
}
