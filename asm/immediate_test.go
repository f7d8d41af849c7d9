package asm

import (
	"testing"

	"github.com/lookbusy1344/rv32im-toolchain/isa"
	"github.com/lookbusy1344/rv32im-toolchain/token"
)

func parseImmediate(t *testing.T, expr string) *Immediate {
	t.Helper()
	toks := token.NewLexer(expr, "t.s").TokenizeAll()
	var filtered []token.Token
	for _, tok := range toks {
		if tok.Type == token.Newline || tok.Type == token.EOF {
			continue
		}
		filtered = append(filtered, tok)
	}
	p, err := NewImmediateParser(filtered)
	if err != nil {
		t.Fatalf("NewImmediateParser(%q): %v", expr, err)
	}
	imm, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	return imm
}

// A leading negative literal must carry Sub on its one element, not the
// stale TreeEnd-as-add marker that silently flipped its sign.
func TestImmediateParseNegativeLiteral(t *testing.T) {
	imm := parseImmediate(t, "-16")
	if imm.Kind != ImmTree || len(imm.Tree) != 1 {
		t.Fatalf("tree = %+v", imm)
	}
	if imm.Tree[0].Op != isa.TreeSub {
		t.Errorf("op = %v, want TreeSub", imm.Tree[0].Op)
	}
	if !imm.Tree[0].Value.IsInt() || imm.Tree[0].Value.IntValue != 16 {
		t.Errorf("value = %+v, want 16", imm.Tree[0].Value)
	}
	if got := imm.String(); got != "-16" {
		t.Errorf("String() = %q, want %q", got, "-16")
	}
}

// A symbol difference must keep the subtracted operand's Sub, not fold it
// into addition via the last element.
func TestImmediateParseSymbolDifference(t *testing.T) {
	imm := parseImmediate(t, "a-b")
	if imm.Kind != ImmTree || len(imm.Tree) != 2 {
		t.Fatalf("tree = %+v", imm)
	}
	if imm.Tree[0].Op != isa.TreeAdd || imm.Tree[0].Value.Symbol != "a" {
		t.Errorf("elem0 = %+v, want {a, TreeAdd}", imm.Tree[0])
	}
	if imm.Tree[1].Op != isa.TreeSub || imm.Tree[1].Value.Symbol != "b" {
		t.Errorf("elem1 = %+v, want {b, TreeSub}", imm.Tree[1])
	}
	if got := imm.String(); got != "a - b" {
		t.Errorf("String() = %q, want %q", got, "a - b")
	}
}

// A trailing subtracted term in a longer chain must also keep its Sub.
func TestImmediateParseTrailingSubtraction(t *testing.T) {
	imm := parseImmediate(t, "a+b-c")
	if len(imm.Tree) != 3 {
		t.Fatalf("tree = %+v", imm.Tree)
	}
	if imm.Tree[2].Op != isa.TreeSub || imm.Tree[2].Value.Symbol != "c" {
		t.Errorf("elem2 = %+v, want {c, TreeSub}", imm.Tree[2])
	}
}
