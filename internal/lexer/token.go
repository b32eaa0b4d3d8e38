// Package lexer implements the source-language lexer: automatic semicolon
// insertion and regex/division disambiguation driven by prior-token-class
// membership, grounded on original_source/frontend/lexer.py. The Go coding
// idiom (character-class helpers, addToken, advance/peek/isAtEnd) follows
// internal/lexer/scanner.go from the teacher.
package lexer

import "fmt"

type TokenType string

const (
	Bool       TokenType = "BOOL"
	Float      TokenType = "FLOAT"
	Int        TokenType = "INT"
	Let        TokenType = "LET"
	On         TokenType = "ON"
	Union      TokenType = "UNION"
	Symbol     TokenType = "SYMBOL"
	String     TokenType = "STRING"
	Regex      TokenType = "REGEX"
	LBracket   TokenType = "LBRACKET"
	RBracket   TokenType = "RBRACKET"
	LBrace     TokenType = "LBRACE"
	RBrace     TokenType = "RBRACE"
	Comma      TokenType = "COMMA"
	Question   TokenType = "QUESTION"
	Null       TokenType = "NULL"
	Exclamation TokenType = "EXCLAMATION"
	If         TokenType = "IF"
	Else       TokenType = "ELSE"
	LParen     TokenType = "LPAREN"
	RParen     TokenType = "RPAREN"
	Colon      TokenType = "COLON"
	Semicolon  TokenType = "SEMICOLON"
	Return     TokenType = "RETURN"
	While      TokenType = "WHILE"
	For        TokenType = "FOR"
	Continue   TokenType = "CONTINUE"
	Break      TokenType = "BREAK"
	Implicit   TokenType = "IMPLICIT"
	In         TokenType = "IN"
	Type       TokenType = "TYPE"
	Match      TokenType = "MATCH"
	Case       TokenType = "CASE"
	Cast       TokenType = "CAST"
	Operator   TokenType = "OPERATOR"
	Where      TokenType = "WHERE"
	Identifier TokenType = "IDENTIFIER"
	Assign     TokenType = "ASSIGN"
	Import     TokenType = "IMPORT"
	Export     TokenType = "EXPORT"
	Assert     TokenType = "ASSERT"
	Pass       TokenType = "PASS"
	Dot        TokenType = "DOT"
	EOF        TokenType = "EOF"
	Error      TokenType = "ERROR"
)

// keywords maps identifier text to its keyword token type.
var keywords = map[string]TokenType{
	"true":     Bool,
	"false":    Bool,
	"if":       If,
	"null":     Null,
	"else":     Else,
	"type":     Type,
	"match":    Match,
	"case":     Case,
	"cast":     Cast,
	"let":      Let,
	"union":    Union,
	"on":       On,
	"assert":   Assert,
	"return":   Return,
	"implicit": Implicit,
	"while":    While,
	"for":      For,
	"in":       In,
	"continue": Continue,
	"break":    Break,
	"pass":     Pass,
	"where":    Where,
	"export":   Export,
	"not":      Operator,
	"and":      Operator,
	"or":       Operator,
}

// INSERT_IMPLICIT_SEMICOLON per original_source/frontend/lexer.py.
var insertImplicitSemicolon = map[TokenType]bool{
	Continue: true, Break: true, Return: true, RParen: true,
	Float: true, Int: true, String: true, Identifier: true,
	Pass: true, RBracket: true, Import: true, Bool: true,
	Null: true, RBrace: true, Symbol: true, Regex: true,
}

// REGEX_CAN_FOLLOW per original_source/frontend/lexer.py.
var regexCanFollow = map[TokenType]bool{
	Assign: true, Case: true, Return: true, Assert: true, Break: true,
	Continue: true, LParen: true, LBracket: true, LBrace: true, Operator: true,
}

type Token struct {
	Type   TokenType
	Value  string
	File   string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("[%s %q @ %s:%d:%d]", t.Type, t.Value, t.File, t.Line, t.Column)
}
