package token

import "testing"

func TestLexerBasicTokens(t *testing.T) {
	l := NewLexer("addi a0, zero, 5 # comment\n", "t.s")
	toks := l.TokenizeAll()

	want := []Type{Identifier, Register, Comma, Register, Comma, Number, Comment, Newline, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestLexerRelocation(t *testing.T) {
	l := NewLexer("lui t0, %hi(label)\n", "t.s")
	toks := l.TokenizeAll()
	foundReloc := false
	for _, tok := range toks {
		if tok.Type == Relocation {
			foundReloc = true
			if tok.Literal != "%hi(" {
				t.Errorf("relocation literal = %q, want %%hi(", tok.Literal)
			}
		}
	}
	if !foundReloc {
		t.Fatalf("expected a Relocation token in %v", toks)
	}
}

func TestLexerNumberFormats(t *testing.T) {
	cases := map[string]string{
		"42":     "42",
		"0x2A":   "0x2A",
		"0b101":  "0b101",
		"052":    "052",
	}
	for input, want := range cases {
		l := NewLexer(input+"\n", "t.s")
		tok := l.NextToken()
		if tok.Type != Number || tok.Literal != want {
			t.Errorf("input %q: got %s(%q), want Number(%q)", input, tok.Type, tok.Literal, want)
		}
	}
}

func TestLexerCharacterLiteral(t *testing.T) {
	l := NewLexer("'\\n'\n", "t.s")
	tok := l.NextToken()
	if tok.Type != Character || tok.Literal != "\n" {
		t.Fatalf("got %s(%q), want Character(\\n)", tok.Type, tok.Literal)
	}
}

func TestLexerStringLiteral(t *testing.T) {
	l := NewLexer(`"hello\nworld"` + "\n", "t.s")
	tok := l.NextToken()
	if tok.Type != String {
		t.Fatalf("got %s, want String", tok.Type)
	}
	if tok.Literal != `hello\nworld` {
		t.Errorf("literal = %q", tok.Literal)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := NewLexer(`"unterminated`, "t.s")
	l.TokenizeAll()
	if !l.Errors().HasErrors() {
		t.Fatalf("expected an error for unterminated string")
	}
}

func TestIsRegisterName(t *testing.T) {
	for _, r := range []string{"zero", "ra", "sp", "gp", "tp", "t0", "t6", "s0", "s11", "a0", "a7", "x31"} {
		if !IsRegisterName(r) {
			t.Errorf("expected %q to be a register name", r)
		}
	}
	for _, r := range []string{"main", "loop", "t7", "a8", "s12"} {
		if IsRegisterName(r) {
			t.Errorf("did not expect %q to be a register name", r)
		}
	}
}
