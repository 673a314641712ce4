package syntax

import (
	"testing"
)

func TestLexerTokens(t *testing.T) {
	input := `func int add(ref int a, int b = 2) { a += b; return a >= 0 && !false; }`
	want := []TokenType{
		TokenFunc, TokenIdent, TokenIdent, TokenLParen,
		TokenRef, TokenIdent, TokenIdent, TokenComma,
		TokenIdent, TokenIdent, TokenAssign, TokenInt, TokenRParen,
		TokenLBrace,
		TokenIdent, TokenPlusAssign, TokenIdent, TokenSemicolon,
		TokenReturn, TokenIdent, TokenGe, TokenInt, TokenAndAnd, TokenNot, TokenFalse, TokenSemicolon,
		TokenRBrace,
		TokenEOF,
	}

	toks := Tokenize(input)
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, tok := range toks {
		if tok.Type != want[i] {
			t.Errorf("token %d: got %s, want %s", i, tok.Type, want[i])
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"42", TokenInt, "42"},
		{"0xFF", TokenInt, "0xFF"},
		{"3.14", TokenFloat, "3.14"},
		{".5", TokenFloat, ".5"},
		{"1e10", TokenFloat, "1e10"},
		{"2.5e-3", TokenFloat, "2.5e-3"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ || tok.Literal != tc.lit {
			t.Errorf("lex %q: got %s %q, want %s %q", tc.input, tok.Type, tok.Literal, tc.typ, tc.lit)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tok := NewLexer(`"a\tb\n\"c\""`).NextToken()
	if tok.Type != TokenString {
		t.Fatalf("got %s, want STRING", tok.Type)
	}
	if tok.Literal != "a\tb\n\"c\"" {
		t.Errorf("literal = %q", tok.Literal)
	}

	tok = NewLexer(`"open`).NextToken()
	if tok.Type != TokenError {
		t.Errorf("unterminated string: got %s, want ERROR", tok.Type)
	}
}

func TestLexerComments(t *testing.T) {
	toks := Tokenize("a // line\n/* block\n comment */ b")
	if len(toks) != 3 {
		t.Fatalf("got %v", toks)
	}
	if toks[1].Literal != "b" {
		t.Errorf("second token = %v", toks[1])
	}
	if toks[1].Pos.Line != 3 {
		t.Errorf("line = %d, want 3", toks[1].Pos.Line)
	}

	toks = Tokenize("/* never closed")
	if toks[0].Type != TokenError {
		t.Errorf("unterminated comment: got %s", toks[0].Type)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("x\n  yy")
	if toks[1].Pos.Line != 2 || toks[1].Pos.Column != 3 {
		t.Errorf("pos = %+v, want line 2 col 3", toks[1].Pos)
	}
	if toks[1].End.Column != 5 {
		t.Errorf("end col = %d, want 5", toks[1].End.Column)
	}
}

func TestLexerKeywords(t *testing.T) {
	for word, typ := range reservedWords {
		tok := NewLexer(word).NextToken()
		if tok.Type != typ {
			t.Errorf("%q: got %s, want %s", word, tok.Type, typ)
		}
		if !IsKeyword(word) {
			t.Errorf("IsKeyword(%q) = false", word)
		}
	}
	if IsKeyword("paral_any") {
		t.Error("paral_any should not be a keyword")
	}
}
