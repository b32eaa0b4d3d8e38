// Package cheader implements a best-effort C header lexer and parser:
// enough of C's declaration grammar (typedefs, struct/union/enum,
// function prototypes including varargs and function-pointer typedefs,
// a handful of preprocessor directives) to extract the external
// interface an `#include`d header exposes to a `.ce` module, without
// attempting full preprocessing or expression evaluation. Grounded on
// original_source/frontend/clexer.py and cparser.py; the Go coding
// idiom (character-class helpers, a token-array cursor with
// see/seeValue/advance/expect) follows internal/lexer and
// internal/parser, the same way those two port their own
// original_source counterparts.
package cheader

import "fmt"

type TokenType string

const (
	Identifier     TokenType = "IDENTIFIER"
	PPDirective    TokenType = "PPDIRECTIVE"
	PPDirectiveEnd TokenType = "PPDIRECTIVE_END"
	IntLiteral     TokenType = "INT_LITERAL"
	FloatLiteral   TokenType = "FLOAT_LITERAL"
	DoubleLiteral  TokenType = "DOUBLE_LITERAL"
	StringLiteral  TokenType = "STRING_LITERAL"
	CharLiteral    TokenType = "CHAR_LITERAL"
	Operator       TokenType = "OPERATOR"
	LParen         TokenType = "LPAREN"
	RParen         TokenType = "RPAREN"
	LBracket       TokenType = "LBRACKET"
	RBracket       TokenType = "RBRACKET"
	LBrace         TokenType = "LBRACE"
	RBrace         TokenType = "RBRACE"
	Comma          TokenType = "COMMA"
	Semicolon      TokenType = "SEMICOLON"
	Colon          TokenType = "COLON"
	Assign         TokenType = "ASSIGN"
	Dot            TokenType = "DOT"
	Arrow          TokenType = "ARROW"
	Question       TokenType = "QUESTION"
	Exclamation    TokenType = "EXCLAMATION"
	At             TokenType = "AT"
	Ellipsis       TokenType = "ELLIPSIS"
	EOF            TokenType = "EOF"
	Error          TokenType = "ERROR"

	// Type specifiers.
	Int      TokenType = "INT"
	Char     TokenType = "CHAR"
	Float    TokenType = "FLOAT"
	Double   TokenType = "DOUBLE"
	Void     TokenType = "VOID"
	Long     TokenType = "LONG"
	Short    TokenType = "SHORT"
	Signed   TokenType = "SIGNED"
	Unsigned TokenType = "UNSIGNED"
	Struct   TokenType = "STRUCT"
	Union    TokenType = "UNION"
	Enum     TokenType = "ENUM"

	// Keywords.
	Auto     TokenType = "AUTO"
	Break    TokenType = "BREAK"
	Case     TokenType = "CASE"
	Const    TokenType = "CONST"
	Continue TokenType = "CONTINUE"
	Default  TokenType = "DEFAULT"
	Do       TokenType = "DO"
	Else     TokenType = "ELSE"
	Extern   TokenType = "EXTERN"
	For      TokenType = "FOR"
	Goto     TokenType = "GOTO"
	If       TokenType = "IF"
	Inline   TokenType = "INLINE"
	Register TokenType = "REGISTER"
	Restrict TokenType = "RESTRICT"
	Return   TokenType = "RETURN"
	Sizeof   TokenType = "SIZEOF"
	Static   TokenType = "STATIC"
	Switch   TokenType = "SWITCH"
	Typedef  TokenType = "TYPEDEF"
	Volatile TokenType = "VOLATILE"
	While    TokenType = "WHILE"
	Bool     TokenType = "BOOL"
	Complex  TokenType = "COMPLEX"
	Imaginary TokenType = "IMAGINARY"
)

var keywords = map[string]TokenType{
	"auto": Auto, "break": Break, "case": Case, "const": Const,
	"continue": Continue, "default": Default, "do": Do, "else": Else,
	"extern": Extern, "for": For, "goto": Goto, "if": If,
	"inline": Inline, "register": Register, "restrict": Restrict, "return": Return,
	"sizeof": Sizeof, "static": Static, "switch": Switch, "typedef": Typedef,
	"volatile": Volatile, "while": While, "_Bool": Bool, "_Complex": Complex,
	"_Imaginary": Imaginary,
	"int": Int, "char": Char, "float": Float, "double": Double,
	"void": Void, "long": Long, "short": Short, "signed": Signed,
	"unsigned": Unsigned, "struct": Struct, "union": Union, "enum": Enum,
}

var operators = map[string]bool{
	"++": true, "--": true, "&&": true, "||": true, ">": true, "<=": true,
	">=": true, "==": true, "!=": true, "<": true, "<<": true, ">>": true,
	"+": true, "-": true, "*": true, "/": true, "%": true, "&": true,
	"|": true, "^": true, "!": true, "~": true, "=": true,
}

var delimiters = map[byte]TokenType{
	'(': LParen, ')': RParen, '[': LBracket, ']': RBracket,
	'{': LBrace, '}': RBrace, ',': Comma, ';': Semicolon,
	':': Colon, '.': Dot, '?': Question, '!': Exclamation, '@': At,
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
