package tools

import (
	"strings"

	"github.com/lookbusy1344/rv32im-toolchain/token"
)

// SourceLine is one non-blank logical line of assembly source, split into
// its optional label, its directive or instruction, and a trailing
// comment. It mirrors the shape the assembler itself works from, without
// resolving immediates or expanding pseudo-instructions, so the tools in
// this package can work from syntax alone.
type SourceLine struct {
	Line      int
	Label     string
	Directive string   // e.g. ".word", empty when this line holds an instruction
	Mnemonic  string    // lower-cased, empty when this line holds a directive
	Operands  []string // raw operand text, comma-split and whitespace-trimmed
	Comment   string
	Raw       string
}

// ParseSource splits assembly source into one SourceLine per non-blank
// logical line, tolerating the same syntax the assembler accepts.
// Lexical errors are ignored here: a formatter or linter should still do
// something useful with source the assembler would reject outright.
func ParseSource(input string) []*SourceLine {
	rawLines := strings.Split(input, "\n")
	lx := token.NewLexer(input, "")
	all := lx.TokenizeAll()

	var lines []*SourceLine
	var cur []token.Token
	lineNo := 1
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, buildSourceLine(lineNo, cur, rawLines))
		}
		cur = nil
	}
	for _, t := range all {
		switch t.Type {
		case token.Newline:
			flush()
			lineNo++
		case token.EOF:
			flush()
		default:
			cur = append(cur, t)
		}
	}
	return lines
}

func buildSourceLine(lineNo int, toks []token.Token, rawLines []string) *SourceLine {
	sl := &SourceLine{Line: lineNo}
	if lineNo-1 < len(rawLines) {
		sl.Raw = rawLines[lineNo-1]
	}

	if n := len(toks); n > 0 && toks[n-1].Type == token.Comment {
		sl.Comment = strings.TrimSpace(toks[n-1].Literal)
		toks = toks[:n-1]
	}

	for len(toks) >= 2 && toks[0].Type == token.Identifier && toks[1].Type == token.Colon {
		sl.Label = toks[0].Literal
		toks = toks[2:]
	}
	if len(toks) == 0 {
		return sl
	}

	if toks[0].Type == token.Dot {
		sl.Directive = strings.ToLower(toks[0].Literal)
		sl.Operands = splitOperandText(toks[1:])
		return sl
	}

	if toks[0].Type != token.Identifier {
		return sl
	}
	sl.Mnemonic = strings.ToLower(toks[0].Literal)
	sl.Operands = splitOperandText(toks[1:])
	return sl
}

// splitOperandText splits toks on top-level commas and renders each part
// back to source text, since commas never nest inside an operand
// expression once parentheses are balanced.
func splitOperandText(toks []token.Token) []string {
	if len(toks) == 0 {
		return nil
	}
	var parts [][]token.Token
	start := 0
	for i, t := range toks {
		if t.Type == token.Comma {
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	parts = append(parts, toks[start:])

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(tokensToText(p)))
	}
	return out
}

// tokensToText reconstructs readable source text from a token run,
// spacing register/identifier/number runs apart but keeping punctuation
// (commas, colons, parentheses) tight against its neighbors.
func tokensToText(toks []token.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 {
			prev := toks[i-1]
			if needsSpace(prev, t) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.Literal)
	}
	return sb.String()
}

func needsSpace(prev, cur token.Token) bool {
	switch cur.Type {
	case token.Comma, token.Parenthesis:
		return false
	}
	if prev.Type == token.Parenthesis && prev.Literal == "(" {
		return false
	}
	return true
}

// isRegisterOperand reports whether operand names a register (an RV32I
// ABI name or an x0-x31 spelling).
func isRegisterOperand(operand string) bool {
	return token.IsRegisterName(strings.ToLower(strings.TrimSpace(operand)))
}

// isNumericOperand reports whether operand is a numeric literal rather
// than a symbol reference.
func isNumericOperand(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") ||
		strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B") {
		return len(s) > 2
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// isSpecialLabel reports whether label names a well-known entry point
// that a linter should never flag as unused.
func isSpecialLabel(label string) bool {
	switch label {
	case "_start", "main", "__start", "start":
		return true
	default:
		return false
	}
}
