package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	var out []TokenType
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func sameTypes(got []TokenType, want ...TokenType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestImplicitSemicolonAfterIdentifier(t *testing.T) {
	toks := New("t.cdr", "x\ny").All()
	got := tokenTypes(toks)
	want := []TokenType{Identifier, Semicolon, Identifier, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNoSemicolonAfterOperator(t *testing.T) {
	toks := New("t.cdr", "x +\ny").All()
	got := tokenTypes(toks)
	want := []TokenType{Identifier, Operator, Identifier, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSemicolonInsertedBeforeClosingBrace(t *testing.T) {
	toks := New("t.cdr", "{ x }").All()
	got := tokenTypes(toks)
	want := []TokenType{LBrace, Identifier, Semicolon, RBrace, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNoSemicolonInsideParens(t *testing.T) {
	toks := New("t.cdr", "f(x\n, y)").All()
	got := tokenTypes(toks)
	want := []TokenType{Identifier, LParen, Identifier, Comma, Identifier, RParen, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDivisionAfterIdentifier(t *testing.T) {
	toks := New("t.cdr", "a / b").All()
	if toks[1].Type != Operator || toks[1].Value != "/" {
		t.Fatalf("expected division operator, got %v", toks[1])
	}
}

func TestRegexLiteralAfterAssign(t *testing.T) {
	toks := New("t.cdr", `let r = /ab+c/`).All()
	got := tokenTypes(toks)
	want := []TokenType{Let, Identifier, Assign, Regex, Semicolon, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if toks[3].Value != "ab+c" {
		t.Fatalf("unexpected regex body: %q", toks[3].Value)
	}
}

func TestRegexLiteralAfterReturn(t *testing.T) {
	toks := New("t.cdr", `return /x/`).All()
	if toks[1].Type != Regex {
		t.Fatalf("expected regex after return, got %v", toks[1])
	}
}

func TestStringEscapes(t *testing.T) {
	toks := New("t.cdr", `"a\nb"`).All()
	if toks[0].Type != String || toks[0].Value != "a\nb" {
		t.Fatalf("unexpected string token: %v", toks[0])
	}
}

func TestIntLiteralForms(t *testing.T) {
	for _, src := range []string{"123", "0x1F", "0b1010", "1_000"} {
		toks := New("t.cdr", src).All()
		if toks[0].Type != Int {
			t.Fatalf("source %q: expected INT, got %v", src, toks[0])
		}
	}
}

func TestFloatLiteral(t *testing.T) {
	toks := New("t.cdr", "3.14").All()
	if toks[0].Type != Float || toks[0].Value != "3.14" {
		t.Fatalf("unexpected float token: %v", toks[0])
	}
}

func TestSymbolLiteral(t *testing.T) {
	toks := New("t.cdr", "#ok").All()
	if toks[0].Type != Symbol || toks[0].Value != "#ok" {
		t.Fatalf("unexpected symbol token: %v", toks[0])
	}
}

func TestImportDirective(t *testing.T) {
	toks := New("t.cdr", "import foo/bar").All()
	if toks[0].Type != Import || toks[0].Value != "foo/bar" {
		t.Fatalf("unexpected import token: %v", toks[0])
	}
}

func TestUnknownByteProducesErrorToken(t *testing.T) {
	toks := New("t.cdr", "x @@ y").All()
	got := tokenTypes(toks)
	want := []TokenType{Identifier, Error, Identifier, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLineCommentIgnored(t *testing.T) {
	toks := New("t.cdr", "x // trailing comment\ny").All()
	got := tokenTypes(toks)
	want := []TokenType{Identifier, Semicolon, Identifier, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBlankLinesCollapseToOneSemicolon(t *testing.T) {
	toks := New("t.cdr", "x\n\n\ny").All()
	got := tokenTypes(toks)
	want := []TokenType{Identifier, Semicolon, Identifier, EOF}
	if !sameTypes(got, want...) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
