// Package asm implements the assembler front end: it drives the lexer
// line-by-line, expands canonical and pseudo instruction mnemonics, and
// dispatches assembler directives, producing one AssemblyLayout per source
// file for the linker to consume.
package asm

import (
	"fmt"
	"os"
	"strings"

	"github.com/lookbusy1344/rv32im-toolchain/isa"
	"github.com/lookbusy1344/rv32im-toolchain/token"
)

var regArithMnemonics = map[string]isa.ArithOp{
	"add": isa.ADD, "sub": isa.SUB, "and": isa.AND, "or": isa.OR, "xor": isa.XOR,
	"sll": isa.SLL, "srl": isa.SRL, "sra": isa.SRA, "slt": isa.SLT, "sltu": isa.SLTU,
	"mul": isa.MUL, "mulh": isa.MULH, "mulhsu": isa.MULHSU, "mulhu": isa.MULHU,
	"div": isa.DIV, "divu": isa.DIVU, "rem": isa.REM, "remu": isa.REMU,
}

var immArithMnemonics = map[string]isa.ArithOp{
	"addi": isa.ADD, "andi": isa.AND, "ori": isa.OR, "xori": isa.XOR,
	"slli": isa.SLL, "srli": isa.SRL, "srai": isa.SRA,
	"slti": isa.SLT, "sltiu": isa.SLTU,
}

var loadMnemonics = map[string]isa.LoadStoreOp{
	"lb": isa.LB, "lh": isa.LH, "lw": isa.LW, "lbu": isa.LBU, "lhu": isa.LHU,
}

var storeMnemonics = map[string]isa.LoadStoreOp{
	"sb": isa.SB, "sh": isa.SH, "sw": isa.SW,
}

var directBranchMnemonics = map[string]isa.BranchOp{
	"beq": isa.BEQ, "bne": isa.BNE, "blt": isa.BLT, "bge": isa.BGE,
	"bltu": isa.BLTU, "bgeu": isa.BGEU,
}

var swappedBranchMnemonics = map[string]isa.BranchOp{
	"ble": isa.BGE, "bleu": isa.BGEU, "bgt": isa.BLT, "bgtu": isa.BLTU,
}

var sectionDirectives = map[string]isa.Section{
	".text": isa.SectionText, ".data": isa.SectionData, ".sdata": isa.SectionData,
	".bss": isa.SectionBSS, ".sbss": isa.SectionBSS, ".rodata": isa.SectionRodata,
}

var dataWidthDirectives = map[string]int{
	".byte": 1,
	".half": 2, ".short": 2, ".2byte": 2,
	".word": 4, ".long": 4, ".4byte": 4,
}

// Assembler builds one AssemblyLayout from one source file's text.
type Assembler struct {
	file        string
	sourceLines []string
	layout      *AssemblyLayout
	section     isa.Section
	errors      []*ParseFailure
	warnedDirs  map[string]bool
	pendingGlobals map[string]bool
}

// NewAssembler creates an Assembler for source text from a named file.
func NewAssembler(file, source string) *Assembler {
	return &Assembler{
		file:           file,
		sourceLines:    strings.Split(source, "\n"),
		layout:         &AssemblyLayout{File: file},
		section:        isa.SectionUnknown,
		warnedDirs:     make(map[string]bool),
		pendingGlobals: make(map[string]bool),
	}
}

// Errors returns the fatal parse failures accumulated during Assemble.
func (a *Assembler) Errors() []*ParseFailure { return a.errors }

func (a *Assembler) fail(line int, format string, args ...any) {
	a.errors = append(a.errors, newParseFailure(a.file, line, fmt.Sprintf(format, args...), a.sourceLines))
}

// Assemble lexes and assembles the whole file, returning the resulting
// layout. Even if errors occurred, a partial layout is returned so that
// callers can continue collecting diagnostics across files before aborting.
func (a *Assembler) Assemble() (*AssemblyLayout, []*ParseFailure) {
	lx := token.NewLexer(strings.Join(a.sourceLines, "\n"), a.file)
	all := lx.TokenizeAll()
	for _, lexErr := range lx.Errors().Errors {
		a.errors = append(a.errors, newParseFailure(a.file, lexErr.Pos.Line, lexErr.Message, a.sourceLines))
	}

	var runStart int
	var runSection = a.section
	flushRun := func(end int) {
		if end > runStart {
			a.layout.Runs = append(a.layout.Runs, SectionRun{Start: runStart, End: end, Section: runSection})
		}
	}

	var lineToks []token.Token
	lineNo := 1
	process := func() {
		if len(lineToks) == 0 {
			return
		}
		if runSection != a.section {
			flushRun(len(a.layout.Nodes))
			runStart = len(a.layout.Nodes)
			runSection = a.section
		}
		a.assembleLine(lineNo, lineToks)
		if runSection != a.section {
			flushRun(len(a.layout.Nodes))
			runStart = len(a.layout.Nodes)
			runSection = a.section
		}
		lineToks = nil
	}

	for _, t := range all {
		switch t.Type {
		case token.Newline:
			process()
			lineNo++
		case token.EOF:
			process()
		case token.Comment:
			// dropped
		default:
			lineToks = append(lineToks, t)
		}
	}
	flushRun(len(a.layout.Nodes))

	return a.layout, a.errors
}

// assembleLine dispatches a single logical line's tokens (label
// definitions stripped iteratively from the front, then a directive or
// instruction).
func (a *Assembler) assembleLine(line int, toks []token.Token) {
	for len(toks) >= 2 && (toks[0].Type == token.Identifier) && toks[1].Type == token.Colon {
		a.defineLabel(line, toks[0].Literal)
		toks = toks[2:]
	}
	if len(toks) == 0 {
		return
	}

	if toks[0].Type == token.Dot {
		a.handleDirective(line, toks[0].Literal, toks[1:])
		return
	}

	if toks[0].Type != token.Identifier {
		a.fail(line, "expected a label, directive, or instruction, got %s", toks[0].Type)
		return
	}

	a.assembleInstruction(line, strings.ToLower(toks[0].Literal), toks[1:])
}

func (a *Assembler) defineLabel(line int, name string) {
	if existing := a.layout.LabelByName(name); existing != nil {
		if existing.DefiningStorage != -1 {
			a.fail(line, "label %q redefined (first defined on line %d)", name, existing.DefiningLine)
			return
		}
		existing.DefiningLine = line
		existing.DefiningStorage = len(a.layout.Nodes)
		existing.Section = a.section
		return
	}
	if a.section == isa.SectionUnknown {
		a.fail(line, "label %q defined outside any section", name)
		return
	}
	a.layout.Labels = append(a.layout.Labels, &Label{
		Name:            name,
		DefiningLine:    line,
		DefiningStorage: len(a.layout.Nodes),
		IsGlobal:        a.pendingGlobals[name],
		Section:         a.section,
	})
}

func (a *Assembler) markGlobal(line int, name string) {
	a.pendingGlobals[name] = true
	if l := a.layout.LabelByName(name); l != nil {
		l.IsGlobal = true
		return
	}
	a.layout.Labels = append(a.layout.Labels, &Label{
		Name: name, DefiningLine: line, DefiningStorage: -1, IsGlobal: true,
	})
}

func (a *Assembler) push(s *Storage) {
	s.Section = a.section
	a.layout.Nodes = append(a.layout.Nodes, s)
}

func (a *Assembler) handleDirective(line int, name string, operands []token.Token) {
	lower := strings.ToLower(name)

	if sec, ok := sectionDirectives[lower]; ok {
		a.section = sec
		return
	}
	if lower == ".section" {
		if len(operands) == 0 {
			a.fail(line, ".section requires an argument")
			return
		}
		arg := strings.ToLower(operands[0].Literal)
		switch {
		case strings.Contains(arg, "bss"):
			a.section = isa.SectionBSS
		case strings.Contains(arg, "rodata"):
			a.section = isa.SectionRodata
		case strings.Contains(arg, "data"):
			a.section = isa.SectionData
		case strings.Contains(arg, "text"):
			a.section = isa.SectionText
		default:
			a.fail(line, "unrecognized .section argument %q", operands[0].Literal)
		}
		return
	}

	if lower == ".align" || lower == ".p2align" {
		if a.section == isa.SectionUnknown {
			a.fail(line, "%s outside any section", lower)
			return
		}
		n, ok := a.parseDirectiveInt(line, operands)
		if !ok {
			return
		}
		if n >= 20 {
			a.fail(line, "%s exponent %d exceeds the implementation cap of 20", lower, n)
			return
		}
		a.push(&Storage{Kind: KindAlignment, Line: line, Align: uint32(1) << uint(n)})
		return
	}

	if width, ok := dataWidthDirectives[lower]; ok {
		if a.section == isa.SectionUnknown {
			a.fail(line, "%s outside any section", lower)
			return
		}
		imm, err := a.parseImmediateTokens(operands)
		if err != nil {
			a.fail(line, "%s: %v", lower, err)
			return
		}
		a.push(&Storage{Kind: KindIntegerData, Line: line, Width: width, Imm: imm})
		return
	}

	if lower == ".string" || lower == ".asciz" {
		if a.section == isa.SectionUnknown {
			a.fail(line, "%s outside any section", lower)
			return
		}
		if len(operands) == 0 || operands[0].Type != token.String {
			a.fail(line, "%s requires a string literal", lower)
			return
		}
		a.push(&Storage{Kind: KindASCIZ, Line: line, Text: unescapeString(operands[0].Literal)})
		return
	}

	if lower == ".zero" {
		if a.section == isa.SectionUnknown {
			a.fail(line, ".zero outside any section")
			return
		}
		n, ok := a.parseDirectiveInt(line, operands)
		if !ok {
			return
		}
		if n > 1<<20 {
			a.fail(line, ".zero count %d exceeds the implementation cap of 2^20", n)
			return
		}
		a.push(&Storage{Kind: KindZeroBytes, Line: line, Count: uint32(n)})
		return
	}

	if lower == ".globl" || lower == ".global" {
		if len(operands) == 0 {
			a.fail(line, "%s requires a symbol name", lower)
			return
		}
		a.markGlobal(line, operands[0].Literal)
		return
	}

	if lower == ".set" {
		if len(operands) == 0 {
			a.fail(line, ".set requires a symbol name")
			return
		}
		a.defineLabel(line, operands[0].Literal)
		return
	}

	if !a.warnedDirs[lower] {
		a.warnedDirs[lower] = true
		fmt.Fprintf(os.Stderr, "%s:%d: warning: unknown directive %q ignored\n", a.file, line, name)
	}
}

func (a *Assembler) parseDirectiveInt(line int, operands []token.Token) (uint32, bool) {
	imm, err := a.parseImmediateTokens(operands)
	if err != nil {
		a.fail(line, "%v", err)
		return 0, false
	}
	if imm.Kind == ImmTree {
		var acc uint32
		folded := true
		for _, e := range imm.Tree {
			if !e.Value.IsInt() {
				folded = false
				break
			}
			if e.Op == isa.TreeSub {
				acc -= e.Value.IntValue
			} else {
				acc += e.Value.IntValue
			}
		}
		if folded {
			imm = NewInt(acc)
		}
	}
	if !imm.IsInt() {
		a.fail(line, "expected a constant integer operand")
		return 0, false
	}
	return imm.IntValue, true
}

func (a *Assembler) parseImmediateTokens(toks []token.Token) (*Immediate, error) {
	p, err := NewImmediateParser(toks)
	if err != nil {
		return nil, err
	}
	return p.Parse()
}

// unescapeString resolves \n \t \r \0 \\ \" escapes in a string literal's
// raw (still-escaped) lexeme.
func unescapeString(raw string) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				sb.WriteByte(raw[i])
			}
			continue
		}
		sb.WriteByte(raw[i])
	}
	return sb.String()
}

// splitOnCommas splits toks on top-level Comma tokens (there are none
// nested inside operand expressions once parentheses are balanced, since
// commas never appear inside an immediate expression).
func splitOnCommas(toks []token.Token) [][]token.Token {
	var parts [][]token.Token
	start := 0
	for i, t := range toks {
		if t.Type == token.Comma {
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	parts = append(parts, toks[start:])
	return parts
}

func firstReg(toks []token.Token) (isa.Register, bool) {
	if len(toks) != 1 || toks[0].Type != token.Register {
		return 0, false
	}
	r, ok := isa.ParseRegister(toks[0].Literal)
	return r, ok
}
