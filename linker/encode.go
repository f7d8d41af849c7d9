package linker

import (
	"encoding/binary"
	"fmt"

	"github.com/lookbusy1344/rv32im-toolchain/asm"
	"github.com/lookbusy1344/rv32im-toolchain/isa"
)

// encodeStorage emits the final bytes for one Storage node at absolute
// address pc, evaluating its immediate(s) against ctx (which carries pc, so
// %pcrel_hi/%pcrel_lo resolve here for the first time). Every immediate
// reached this way must already be concrete or resolvable (the
// post-relaxation invariant); an unresolved symbol is a LinkFailure.
func encodeStorage(n *asm.Storage, pc uint32, ctx evalContext) ([]byte, error) {
	put := func(word uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, word)
		return b
	}

	switch n.Kind {
	case asm.KindArithmeticReg:
		funct3, funct7 := isa.RFunct(n.ArithOp)
		return put(isa.EncodeR(isa.OpcodeR, funct3, funct7, n.Rd, n.Rs1, n.Rs2)), nil

	case asm.KindArithmeticImm:
		imm, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		funct3 := isa.IFunct(n.ArithOp)
		raw := imm
		if n.ArithOp == isa.SLL || n.ArithOp == isa.SRL || n.ArithOp == isa.SRA {
			funct7 := uint32(0)
			if n.ArithOp == isa.SRA {
				funct7 = 0x20
			}
			raw = (imm & 0x1F) | funct7<<5
		}
		return put(isa.EncodeI(isa.OpcodeI, funct3, n.Rd, n.Rs1, raw)), nil

	case asm.KindLoadStore:
		imm, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		if n.LSOp.IsStore() {
			return put(isa.EncodeS(isa.OpcodeStore, n.LSOp.Funct3(), n.Rs1, n.Rs2, imm)), nil
		}
		return put(isa.EncodeI(isa.OpcodeLoad, n.LSOp.Funct3(), n.Rd, n.Rs1, imm)), nil

	case asm.KindBranch:
		target, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		dist := target - pc
		return put(isa.EncodeB(isa.OpcodeBranch, n.BrOp.Funct3(), n.Rs1, n.Rs2, dist)), nil

	case asm.KindJumpRelative:
		target, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		dist := target - pc
		return put(isa.EncodeJ(isa.OpcodeJAL, n.Rd, dist)), nil

	case asm.KindJumpRegister:
		imm, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		return put(isa.EncodeI(isa.OpcodeJALR, 0x0, n.Rd, n.Rs1, imm)), nil

	case asm.KindLoadUpperImmediate:
		imm, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		return put(isa.EncodeU(isa.OpcodeLUI, n.Rd, imm)), nil

	case asm.KindAddUpperImmediatePC:
		imm, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		return put(isa.EncodeU(isa.OpcodeAUIPC, n.Rd, imm)), nil

	case asm.KindCallFunction:
		// survived relaxation: emit auipc+jalr using split-lo-hi against
		// the *first* of the two instruction's own pc.
		target, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		hi, lo := isa.SplitLoHi(target - pc)
		// call links through ra and may reuse it as scratch; tail must
		// preserve the caller's ra, so it scratches through t1 instead.
		rd, scratch := isa.RA, isa.RA
		if n.IsTail {
			rd, scratch = isa.Zero, isa.T1
		}
		out := put(isa.EncodeU(isa.OpcodeAUIPC, scratch, hi))
		out = append(out, put(isa.EncodeI(isa.OpcodeJALR, 0x0, rd, scratch, lo))...)
		return out, nil

	case asm.KindLoadImmediate:
		// survived relaxation: emit lui+addi, split-lo-hi of the absolute value.
		val, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		hi, lo := isa.SplitLoHi(val)
		out := put(isa.EncodeU(isa.OpcodeLUI, n.Rd, hi))
		out = append(out, put(isa.EncodeI(isa.OpcodeI, 0x0, n.Rd, n.Rd, lo))...)
		return out, nil

	case asm.KindAlignment:
		return make([]byte, alignPadding(pc, n.Align)), nil

	case asm.KindIntegerData:
		v, err := mustEvaluate(n.Imm, ctx)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n.Width)
		switch n.Width {
		case 1:
			b[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(b, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(b, v)
		}
		return b, nil

	case asm.KindZeroBytes:
		return make([]byte, n.Count), nil

	case asm.KindASCIZ:
		b := make([]byte, len(n.Text)+1)
		copy(b, n.Text)
		return b, nil

	default:
		return nil, fmt.Errorf("unencodable storage kind %d", n.Kind)
	}
}
