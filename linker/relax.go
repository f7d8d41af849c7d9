package linker

import (
	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/isa"
)

// relaxArena walks one arena's TEXT nodes in layout order, shrinking
// CallFunction and LoadImmediate nodes in place where the final distance or
// value permits. It never grows a node and converges
// in one pass since every rewrite is non-growing and later rewrites never
// invalidate earlier ones (call relaxation uses a conservative half-range
// for exactly this reason).
func relaxArena(a *arena, st *symbolTable) {
	for i, n := range a.nodes {
		ctx := evalContext{file: a.files[i], st: st, havePC: true, pc: a.addressOf(i)}

		switch n.Kind {
		case asm.KindCallFunction:
			relaxCall(n, ctx, a.addressOf(i))
		case asm.KindLoadImmediate:
			relaxLoadImmediate(n, ctx)
		}
	}
}

// callRelaxHalfRange is 2^19, half of JAL's ±1MiB reach. relaxCall rewrites
// a call/tail to a single jal only when the signed distance lies in
// [-callRelaxHalfRange/2, callRelaxHalfRange/2), i.e. ±256KiB, a quarter of
// JAL's reach, so that later shrinking elsewhere in the program cannot push
// the real distance back out of range.
const callRelaxHalfRange = 1 << 19

func relaxCall(n *asm.Storage, ctx evalContext, pc uint32) {
	target, ok := evaluate(n.Imm, ctx)
	if !ok {
		return
	}
	dist := int64(int32(target.IntValue - pc))
	if dist < -callRelaxHalfRange/2 || dist >= callRelaxHalfRange/2 {
		return
	}
	rd := isa.RA
	if n.IsTail {
		rd = isa.Zero
	}
	*n = asm.Storage{
		Kind: asm.KindJumpRelative, Section: n.Section, Line: n.Line,
		Rd: rd, Imm: target,
	}
}

func relaxLoadImmediate(n *asm.Storage, ctx evalContext) {
	v, ok := evaluate(n.Imm, ctx)
	if !ok {
		return
	}
	val := v.IntValue
	if sval := int32(val); sval >= -2048 && sval < 2048 {
		*n = asm.Storage{
			Kind: asm.KindArithmeticImm, Section: n.Section, Line: n.Line,
			ArithOp: isa.ADD, Rd: n.Rd, Rs1: isa.Zero, Imm: asm.NewInt(val),
		}
		return
	}
	if val&0xFFF == 0 {
		*n = asm.Storage{
			Kind: asm.KindLoadUpperImmediate, Section: n.Section, Line: n.Line,
			Rd: n.Rd, Imm: asm.NewInt(val >> 12),
		}
		return
	}
}
