package linker

import (
	"fmt"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/isa"
)

// evalContext carries what's needed to fold an Immediate tree to a concrete
// Int: the defining file (for local-symbol resolution) and, once sizes have
// stabilized, the instruction's own address (for %pcrel_hi/%pcrel_lo).
type evalContext struct {
	file    string
	st      *symbolTable
	havePC  bool
	pc      uint32
}

// evaluate attempts to fold imm to an Int, per the relaxation pass's
// "trivial evaluation": a tree/relocated immediate folds if every leaf
// resolves; %pcrel_hi/%pcrel_lo additionally require ctx.havePC. Leaves
// that remain symbolic (or a pcrel operator evaluated too early) propagate
// failure upward rather than partially folding.
func evaluate(imm *asm.Immediate, ctx evalContext) (*asm.Immediate, bool) {
	switch imm.Kind {
	case asm.ImmInt:
		return imm, true

	case asm.ImmSymbol:
		if imm.Symbol == "." {
			if !ctx.havePC {
				return imm, false
			}
			return asm.NewInt(ctx.pc), true
		}
		addr, ok := ctx.st.resolve(ctx.file, imm.Symbol)
		if !ok {
			return imm, false
		}
		return asm.NewInt(addr), true

	case asm.ImmRelocated:
		if imm.RelocOp == isa.PCRelHI || imm.RelocOp == isa.PCRelLO {
			if !ctx.havePC {
				return imm, false
			}
		}
		inner, ok := evaluate(imm.Inner, ctx)
		if !ok {
			return imm, false
		}
		v := inner.IntValue
		switch imm.RelocOp {
		case isa.HI:
			hi, _ := isa.SplitLoHi(v)
			return asm.NewInt(hi), true
		case isa.LO:
			_, lo := isa.SplitLoHi(v)
			return asm.NewInt(lo), true
		case isa.PCRelHI:
			hi, _ := isa.SplitLoHi(v - ctx.pc)
			return asm.NewInt(hi), true
		case isa.PCRelLO:
			_, lo := isa.SplitLoHi(v - ctx.pc)
			return asm.NewInt(lo), true
		default:
			return imm, false
		}

	case asm.ImmTree:
		var acc uint32
		for _, e := range imm.Tree {
			v, ok := evaluate(e.Value, ctx)
			if !ok {
				return imm, false
			}
			switch e.Op {
			case isa.TreeAdd:
				acc += v.IntValue
			case isa.TreeSub:
				acc -= v.IntValue
			}
		}
		return asm.NewInt(acc), true

	default:
		return imm, false
	}
}

// mustEvaluate evaluates imm and returns a LinkFailure if it's still not
// concrete (used during final encoding, where every immediate must have
// resolved).
func mustEvaluate(imm *asm.Immediate, ctx evalContext) (uint32, error) {
	v, ok := evaluate(imm, ctx)
	if !ok {
		return 0, &LinkFailure{Message: fmt.Sprintf("unresolved symbol in immediate %q", imm.String())}
	}
	return v.IntValue, nil
}
