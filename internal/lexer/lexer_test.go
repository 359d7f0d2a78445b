package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	types := make([]TokenType, len(toks))
	for i, t := range toks {
		types[i] = t.Type
	}
	return types
}

func assertTypes(t *testing.T, got []TokenType, want ...TokenType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s (%v)", i, got[i], want[i], got)
		}
	}
}

func TestScanKeywordsAndIdents(t *testing.T) {
	s := NewScanner("var x; procedure p(a) returns r; begin x := a end")
	toks := s.ScanTokens()
	assertTypes(t, tokenTypes(toks),
		TokenVar, TokenIdent, TokenSemi,
		TokenProcedure, TokenIdent, TokenLParen, TokenIdent, TokenRParen,
		TokenReturns, TokenIdent, TokenSemi,
		TokenBegin, TokenIdent, TokenAssign, TokenIdent, TokenEnd,
		TokenEOF)
}

func TestScanOperatorsAndComparisons(t *testing.T) {
	cases := []struct {
		src  string
		want TokenType
	}{
		{":=", TokenAssign},
		{"<=", TokenLE},
		{">=", TokenGE},
		{"<", TokenLT},
		{">", TokenGT},
		{"=", TokenEqual},
		{"#", TokenHash},
	}
	for _, c := range cases {
		toks := NewScanner(c.src).ScanTokens()
		assertTypes(t, tokenTypes(toks), c.want, TokenEOF)
	}
}

func TestScanSkipsLineCommentsAndWhitespace(t *testing.T) {
	toks := NewScanner("x // trailing comment\n\t:= 1").ScanTokens()
	assertTypes(t, tokenTypes(toks), TokenIdent, TokenAssign, TokenNumber, TokenEOF)
}

func TestScanLineAndColumnTracking(t *testing.T) {
	toks := NewScanner("x\ny").ScanTokens()
	if toks[0].Line != 1 || toks[0].Col != 1 {
		t.Fatalf("first token at %d:%d, want 1:1", toks[0].Line, toks[0].Col)
	}
	if toks[1].Line != 2 || toks[1].Col != 1 {
		t.Fatalf("second token at %d:%d, want 2:1", toks[1].Line, toks[1].Col)
	}
}

func TestScanEmptySourceYieldsOnlyEOF(t *testing.T) {
	toks := NewScanner("").ScanTokens()
	assertTypes(t, tokenTypes(toks), TokenEOF)
}

func TestScanInvalidCharacter(t *testing.T) {
	toks := NewScanner("@").ScanTokens()
	assertTypes(t, tokenTypes(toks), TokenInvalid, TokenEOF)
}
