package asm

import (
	"github.com/lookbusy1344/rv32im-toolchain/isa"
	"github.com/lookbusy1344/rv32im-toolchain/token"
)

// assembleInstruction lowers one canonical or pseudo mnemonic into 1 or 2
// Storage nodes via the canonical lowering table below. After this
// function the assembler's IR is uniform: no pseudo markers survive.
func (a *Assembler) assembleInstruction(line int, mnemonic string, operands []token.Token) {
	if a.section == isa.SectionUnknown {
		a.fail(line, "instruction %q outside any section", mnemonic)
		return
	}
	parts := splitOnCommas(operands)

	switch {
	case mnemonic == "nop":
		a.push(&Storage{Kind: KindArithmeticImm, Line: line, ArithOp: isa.ADD, Rd: isa.Zero, Rs1: isa.Zero, Imm: NewInt(0)})
		return

	case mnemonic == "ret":
		a.push(&Storage{Kind: KindJumpRegister, Line: line, Rd: isa.Zero, Rs1: isa.RA, Imm: NewInt(0)})
		return

	case mnemonic == "jr":
		rs1, ok := a.reg1(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindJumpRegister, Line: line, Rd: isa.Zero, Rs1: rs1, Imm: NewInt(0)})
		return

	case mnemonic == "j":
		imm, ok := a.imm1(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindJumpRelative, Line: line, Rd: isa.Zero, Imm: imm})
		return

	case mnemonic == "jal":
		a.lowerJal(line, parts)
		return

	case mnemonic == "jalr":
		a.lowerJalr(line, parts)
		return

	case mnemonic == "call" || mnemonic == "tail":
		imm, ok := a.imm1(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindCallFunction, Line: line, IsTail: mnemonic == "tail", Imm: imm})
		return

	case mnemonic == "lui" || mnemonic == "auipc":
		rd, imm, ok := a.reg1Imm1(line, mnemonic, parts)
		if !ok {
			return
		}
		kind := KindLoadUpperImmediate
		if mnemonic == "auipc" {
			kind = KindAddUpperImmediatePC
		}
		a.push(&Storage{Kind: kind, Line: line, Rd: rd, Imm: imm})
		return

	case mnemonic == "li" || mnemonic == "la" || mnemonic == "lla":
		rd, imm, ok := a.reg1Imm1(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindLoadImmediate, Line: line, Rd: rd, Imm: imm})
		return

	case mnemonic == "mv":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticImm, Line: line, ArithOp: isa.ADD, Rd: rd, Rs1: rs1, Imm: NewInt(0)})
		return

	case mnemonic == "neg":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticReg, Line: line, ArithOp: isa.SUB, Rd: rd, Rs1: isa.Zero, Rs2: rs1})
		return

	case mnemonic == "not":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticImm, Line: line, ArithOp: isa.XOR, Rd: rd, Rs1: rs1, Imm: NewInt(0xFFFFFFFF)})
		return

	case mnemonic == "seqz":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticImm, Line: line, ArithOp: isa.SLTU, Rd: rd, Rs1: rs1, Imm: NewInt(1)})
		return

	case mnemonic == "snez":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticReg, Line: line, ArithOp: isa.SLTU, Rd: rd, Rs1: isa.Zero, Rs2: rs1})
		return

	case mnemonic == "sgtz":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticReg, Line: line, ArithOp: isa.SLT, Rd: rd, Rs1: isa.Zero, Rs2: rs1})
		return

	case mnemonic == "sltz":
		rd, rs1, ok := a.reg2(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticReg, Line: line, ArithOp: isa.SLT, Rd: rd, Rs1: rs1, Rs2: isa.Zero})
		return
	}

	if op, ok := regArithMnemonics[mnemonic]; ok {
		rd, rs1, rs2, ok := a.reg3(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticReg, Line: line, ArithOp: op, Rd: rd, Rs1: rs1, Rs2: rs2})
		return
	}

	if op, ok := immArithMnemonics[mnemonic]; ok {
		rd, rs1, imm, ok := a.reg2Imm1(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindArithmeticImm, Line: line, ArithOp: op, Rd: rd, Rs1: rs1, Imm: imm})
		return
	}

	if op, ok := loadMnemonics[mnemonic]; ok {
		a.lowerLoad(line, op, parts)
		return
	}

	if op, ok := storeMnemonics[mnemonic]; ok {
		a.lowerStore(line, op, parts)
		return
	}

	if op, ok := directBranchMnemonics[mnemonic]; ok {
		rs1, rs2, imm, ok := a.reg2ImmLast(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindBranch, Line: line, BrOp: op, Rs1: rs1, Rs2: rs2, Imm: imm})
		return
	}

	if op, ok := swappedBranchMnemonics[mnemonic]; ok {
		rs1, rs2, imm, ok := a.reg2ImmLast(line, mnemonic, parts)
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindBranch, Line: line, BrOp: op, Rs1: rs2, Rs2: rs1, Imm: imm})
		return
	}

	if zop, ok := zeroBranchMnemonics[mnemonic]; ok {
		rs1, imm, ok := a.reg1ImmLast(line, mnemonic, parts)
		if !ok {
			return
		}
		rs1f, rs2f := rs1, isa.Zero
		if zop.swap {
			rs1f, rs2f = isa.Zero, rs1
		}
		a.push(&Storage{Kind: KindBranch, Line: line, BrOp: zop.op, Rs1: rs1f, Rs2: rs2f, Imm: imm})
		return
	}

	a.fail(line, "unrecognized mnemonic %q", mnemonic)
}

type zeroBranch struct {
	op   isa.BranchOp
	swap bool // true: compare (zero, rs1) instead of (rs1, zero)
}

var zeroBranchMnemonics = map[string]zeroBranch{
	"beqz": {isa.BEQ, false},
	"bnez": {isa.BNE, false},
	"bltz": {isa.BLT, false},
	"bgez": {isa.BGE, false},
	"bgtz": {isa.BLT, true},
	"blez": {isa.BGE, true},
}

var fixedMnemonics = map[string]bool{
	"nop": true, "ret": true, "jr": true, "j": true, "jal": true, "jalr": true,
	"call": true, "tail": true, "lui": true, "auipc": true,
	"li": true, "la": true, "lla": true, "mv": true, "neg": true, "not": true,
	"seqz": true, "snez": true, "sgtz": true, "sltz": true,
}

// IsKnownMnemonic reports whether name (already lower-cased) is a
// canonical RV32IM instruction or one of the pseudo-instructions this
// assembler lowers, independent of where it appears in a file.
func IsKnownMnemonic(name string) bool {
	if fixedMnemonics[name] {
		return true
	}
	if _, ok := regArithMnemonics[name]; ok {
		return true
	}
	if _, ok := immArithMnemonics[name]; ok {
		return true
	}
	if _, ok := loadMnemonics[name]; ok {
		return true
	}
	if _, ok := storeMnemonics[name]; ok {
		return true
	}
	if _, ok := directBranchMnemonics[name]; ok {
		return true
	}
	if _, ok := swappedBranchMnemonics[name]; ok {
		return true
	}
	if _, ok := zeroBranchMnemonics[name]; ok {
		return true
	}
	return false
}

func (a *Assembler) lowerJal(line int, parts [][]token.Token) {
	switch len(parts) {
	case 1:
		imm, err := a.parseImmediateTokens(parts[0])
		if err != nil {
			a.fail(line, "jal: %v", err)
			return
		}
		a.push(&Storage{Kind: KindJumpRelative, Line: line, Rd: isa.RA, Imm: imm})
	case 2:
		rd, ok := firstReg(parts[0])
		if !ok {
			a.fail(line, "jal: expected a register operand")
			return
		}
		imm, err := a.parseImmediateTokens(parts[1])
		if err != nil {
			a.fail(line, "jal: %v", err)
			return
		}
		a.push(&Storage{Kind: KindJumpRelative, Line: line, Rd: rd, Imm: imm})
	default:
		a.fail(line, "jal: expected 1 or 2 operands, got %d", len(parts))
	}
}

func (a *Assembler) lowerJalr(line int, parts [][]token.Token) {
	if len(parts) == 1 {
		rs1, ok := firstReg(parts[0])
		if !ok {
			a.fail(line, "jalr: expected a register operand")
			return
		}
		a.push(&Storage{Kind: KindJumpRegister, Line: line, Rd: isa.RA, Rs1: rs1, Imm: NewInt(0)})
		return
	}
	if len(parts) != 2 {
		a.fail(line, "jalr: expected 1 or 2 operands, got %d", len(parts))
		return
	}
	rd, ok := firstReg(parts[0])
	if !ok {
		a.fail(line, "jalr: expected a register destination")
		return
	}
	rs1, off, ok := a.parseOffsetOperand(line, "jalr", parts[1])
	if !ok {
		return
	}
	a.push(&Storage{Kind: KindJumpRegister, Line: line, Rd: rd, Rs1: rs1, Imm: off})
}

func (a *Assembler) lowerLoad(line int, op isa.LoadStoreOp, parts [][]token.Token) {
	if len(parts) != 2 {
		a.fail(line, "%s: expected 2 operands, got %d", op, len(parts))
		return
	}
	rd, ok := firstReg(parts[0])
	if !ok {
		a.fail(line, "%s: expected a register destination", op)
		return
	}
	if hasTopLevelParen(parts[1]) {
		rs1, off, ok := a.parseOffsetOperand(line, op.String(), parts[1])
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindLoadStore, Line: line, LSOp: op, Rd: rd, Rs1: rs1, Imm: off})
		return
	}
	// pseudo form: lw rd, symbol  ->  lui rd,%hi(symbol); op rd, %lo(symbol)(rd)
	sym, err := a.parseImmediateTokens(parts[1])
	if err != nil {
		a.fail(line, "%s: %v", op, err)
		return
	}
	a.push(&Storage{Kind: KindLoadUpperImmediate, Line: line, Rd: rd, Imm: &Immediate{Kind: ImmRelocated, RelocOp: isa.HI, Inner: sym}})
	a.push(&Storage{Kind: KindLoadStore, Line: line, LSOp: op, Rd: rd, Rs1: rd, Imm: &Immediate{Kind: ImmRelocated, RelocOp: isa.LO, Inner: sym}})
}

func (a *Assembler) lowerStore(line int, op isa.LoadStoreOp, parts [][]token.Token) {
	rs2, ok := firstReg(parts[0])
	if !ok {
		a.fail(line, "%s: expected a register source", op)
		return
	}
	switch len(parts) {
	case 2:
		rs1, off, ok := a.parseOffsetOperand(line, op.String(), parts[1])
		if !ok {
			return
		}
		a.push(&Storage{Kind: KindLoadStore, Line: line, LSOp: op, Rs1: rs1, Rs2: rs2, Imm: off})
	case 3:
		// pseudo form: sw rs2, symbol, rt -> lui rt,%hi(symbol); op rs2, %lo(symbol)(rt)
		sym, err := a.parseImmediateTokens(parts[1])
		if err != nil {
			a.fail(line, "%s: %v", op, err)
			return
		}
		rt, ok := firstReg(parts[2])
		if !ok {
			a.fail(line, "%s: expected a register temporary as the third operand", op)
			return
		}
		a.push(&Storage{Kind: KindLoadUpperImmediate, Line: line, Rd: rt, Imm: &Immediate{Kind: ImmRelocated, RelocOp: isa.HI, Inner: sym}})
		a.push(&Storage{Kind: KindLoadStore, Line: line, LSOp: op, Rs1: rt, Rs2: rs2, Imm: &Immediate{Kind: ImmRelocated, RelocOp: isa.LO, Inner: sym}})
	default:
		a.fail(line, "%s: expected 2 or 3 operands, got %d", op, len(parts))
	}
}

// hasTopLevelParen reports whether toks contains a '(' token (used to tell
// `off(rs1)` apart from a bare symbol operand).
func hasTopLevelParen(toks []token.Token) bool {
	for _, t := range toks {
		if t.Type == token.Parenthesis && t.Literal == "(" {
			return true
		}
	}
	return false
}

// parseOffsetOperand parses the trailing `off(rs1)` operand shape: the
// immediate tokens precede a single register token wrapped in the final
// top-level parentheses.
func (a *Assembler) parseOffsetOperand(line int, what string, toks []token.Token) (isa.Register, *Immediate, bool) {
	if len(toks) < 3 || toks[len(toks)-1].Type != token.Parenthesis || toks[len(toks)-1].Literal != ")" {
		a.fail(line, "%s: expected offset(register) operand", what)
		return 0, nil, false
	}
	openIdx := -1
	depth := 0
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].Type == token.Parenthesis && toks[i].Literal == ")" {
			depth++
		} else if toks[i].Type == token.Parenthesis && toks[i].Literal == "(" {
			depth--
			if depth == 0 {
				openIdx = i
				break
			}
		}
	}
	if openIdx == -1 || openIdx != len(toks)-3 {
		a.fail(line, "%s: expected offset(register) operand", what)
		return 0, nil, false
	}
	reg, ok := firstReg(toks[openIdx+1 : len(toks)-1])
	if !ok {
		a.fail(line, "%s: expected a register inside parentheses", what)
		return 0, nil, false
	}
	var imm *Immediate
	if openIdx == 0 {
		imm = NewInt(0)
	} else {
		var err error
		imm, err = a.parseImmediateTokens(toks[:openIdx])
		if err != nil {
			a.fail(line, "%s: %v", what, err)
			return 0, nil, false
		}
	}
	return reg, imm, true
}

func (a *Assembler) reg1(line int, what string, parts [][]token.Token) (isa.Register, bool) {
	if len(parts) != 1 {
		a.fail(line, "%s: expected 1 operand, got %d", what, len(parts))
		return 0, false
	}
	r, ok := firstReg(parts[0])
	if !ok {
		a.fail(line, "%s: expected a register operand", what)
	}
	return r, ok
}

func (a *Assembler) imm1(line int, what string, parts [][]token.Token) (*Immediate, bool) {
	if len(parts) != 1 {
		a.fail(line, "%s: expected 1 operand, got %d", what, len(parts))
		return nil, false
	}
	imm, err := a.parseImmediateTokens(parts[0])
	if err != nil {
		a.fail(line, "%s: %v", what, err)
		return nil, false
	}
	return imm, true
}

func (a *Assembler) reg2(line int, what string, parts [][]token.Token) (rd, rs1 isa.Register, ok bool) {
	if len(parts) != 2 {
		a.fail(line, "%s: expected 2 operands, got %d", what, len(parts))
		return 0, 0, false
	}
	rd, ok1 := firstReg(parts[0])
	rs1, ok2 := firstReg(parts[1])
	if !ok1 || !ok2 {
		a.fail(line, "%s: expected two register operands", what)
		return 0, 0, false
	}
	return rd, rs1, true
}

func (a *Assembler) reg3(line int, what string, parts [][]token.Token) (rd, rs1, rs2 isa.Register, ok bool) {
	if len(parts) != 3 {
		a.fail(line, "%s: expected 3 operands, got %d", what, len(parts))
		return 0, 0, 0, false
	}
	rd, ok1 := firstReg(parts[0])
	rs1, ok2 := firstReg(parts[1])
	rs2, ok3 := firstReg(parts[2])
	if !ok1 || !ok2 || !ok3 {
		a.fail(line, "%s: expected three register operands", what)
		return 0, 0, 0, false
	}
	return rd, rs1, rs2, true
}

func (a *Assembler) reg1Imm1(line int, what string, parts [][]token.Token) (rd isa.Register, imm *Immediate, ok bool) {
	if len(parts) != 2 {
		a.fail(line, "%s: expected 2 operands, got %d", what, len(parts))
		return 0, nil, false
	}
	rd, ok1 := firstReg(parts[0])
	if !ok1 {
		a.fail(line, "%s: expected a register destination", what)
		return 0, nil, false
	}
	imm, err := a.parseImmediateTokens(parts[1])
	if err != nil {
		a.fail(line, "%s: %v", what, err)
		return 0, nil, false
	}
	return rd, imm, true
}

func (a *Assembler) reg2Imm1(line int, what string, parts [][]token.Token) (rd, rs1 isa.Register, imm *Immediate, ok bool) {
	if len(parts) != 3 {
		a.fail(line, "%s: expected 3 operands, got %d", what, len(parts))
		return 0, 0, nil, false
	}
	rd, ok1 := firstReg(parts[0])
	rs1, ok2 := firstReg(parts[1])
	if !ok1 || !ok2 {
		a.fail(line, "%s: expected two register operands", what)
		return 0, 0, nil, false
	}
	imm, err := a.parseImmediateTokens(parts[2])
	if err != nil {
		a.fail(line, "%s: %v", what, err)
		return 0, 0, nil, false
	}
	return rd, rs1, imm, true
}

func (a *Assembler) reg2ImmLast(line int, what string, parts [][]token.Token) (rs1, rs2 isa.Register, imm *Immediate, ok bool) {
	if len(parts) != 3 {
		a.fail(line, "%s: expected 3 operands, got %d", what, len(parts))
		return 0, 0, nil, false
	}
	rs1, ok1 := firstReg(parts[0])
	rs2, ok2 := firstReg(parts[1])
	if !ok1 || !ok2 {
		a.fail(line, "%s: expected two register operands", what)
		return 0, 0, nil, false
	}
	imm, err := a.parseImmediateTokens(parts[2])
	if err != nil {
		a.fail(line, "%s: %v", what, err)
		return 0, 0, nil, false
	}
	return rs1, rs2, imm, true
}

func (a *Assembler) reg1ImmLast(line int, what string, parts [][]token.Token) (rs1 isa.Register, imm *Immediate, ok bool) {
	if len(parts) != 2 {
		a.fail(line, "%s: expected 2 operands, got %d", what, len(parts))
		return 0, nil, false
	}
	rs1, ok1 := firstReg(parts[0])
	if !ok1 {
		a.fail(line, "%s: expected a register operand", what)
		return 0, nil, false
	}
	imm, err := a.parseImmediateTokens(parts[1])
	if err != nil {
		a.fail(line, "%s: %v", what, err)
		return 0, nil, false
	}
	return rs1, imm, true
}
