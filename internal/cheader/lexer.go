package cheader

// Lexer ports clexer.py's LexerState/lex(): a single lex function that
// returns one token at a time, tracking whether it's inside a `#...`
// preprocessor directive so it can synthesize a PPDIRECTIVE_END at the
// directive's closing newline. ignoreTokens names identifiers (SDL-style
// annotation macros, typically) whose call-like use `NAME(...)` should be
// skipped outright rather than tokenized as a call.
type Lexer struct {
	file string
	src  string

	ignoreTokens map[string]bool

	pos       int
	line      int
	lineStart int

	inDirective bool
}

func New(file, src string, ignoreTokens map[string]bool) *Lexer {
	if ignoreTokens == nil {
		ignoreTokens = map[string]bool{}
	}
	return &Lexer{file: file, src: src + "\n", line: 1, ignoreTokens: ignoreTokens}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) cur() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) at(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	return c
}

func (l *Lexer) column(start int) int { return start - l.lineStart + 1 }

func (l *Lexer) tokAt(line, col int, ty TokenType, value string) Token {
	return Token{Type: ty, Value: value, File: l.file, Line: line, Column: col}
}

func isAlpha(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }

func isHexDigit(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// skipUntilMatchingParen consumes a balanced `(...)` span, used to drop
// the argument list of an ignored annotation macro.
func (l *Lexer) skipUntilMatchingParen() {
	matching := 1
	for matching > 0 && !l.atEnd() {
		c := l.advance()
		if c == '(' {
			matching++
		} else if c == ')' {
			matching--
		}
	}
}

// Next ports lex(): returns the next token, skipping whitespace and
// comments and resolving ignored-annotation calls inline.
func (l *Lexer) Next() Token {
	for !l.atEnd() {
		c := l.cur()

		if c == '\\' && l.at(1) == '\n' {
			l.pos += 2
			l.line++
			l.lineStart = l.pos
			continue
		}

		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			if c == '\n' {
				if l.inDirective {
					l.inDirective = false
					line, start := l.line, l.pos
					l.pos++
					l.line++
					l.lineStart = l.pos
					return l.tokAt(line, l.column(start), PPDirectiveEnd, "\n")
				}
				l.line++
				l.lineStart = l.pos + 1
			}
			l.pos++
			continue
		}

		if c == '/' && l.at(1) == '/' {
			for !l.atEnd() && l.cur() != '\n' {
				l.pos++
			}
			continue
		}
		if c == '/' && l.at(1) == '*' {
			l.pos += 2
			for !l.atEnd() && !(l.cur() == '*' && l.at(1) == '/') {
				if l.cur() == '\n' {
					l.line++
					l.lineStart = l.pos + 1
				}
				l.pos++
			}
			l.pos += 2
			continue
		}

		if isAlpha(c) {
			start := l.pos
			line, col := l.line, l.column(start)
			for !l.atEnd() && isAlnum(l.cur()) {
				l.pos++
			}
			value := l.src[start:l.pos]
			if l.ignoreTokens[value] {
				if l.cur() == '(' {
					l.pos++
					l.skipUntilMatchingParen()
				}
				continue
			}
			ty, ok := keywords[value]
			if !ok {
				ty = Identifier
			}
			return l.tokAt(line, col, ty, value)
		}

		if isDigit(c) || (c == '0' && (l.at(1) == 'x' || l.at(1) == 'X')) {
			return l.scanNumber()
		}

		if c == '"' {
			return l.scanString()
		}

		if c == '\'' {
			return l.scanChar()
		}

		if tok, ok := l.tryOperator(); ok {
			return tok
		}

		if l.src[l.pos:min(l.pos+3, len(l.src))] == "..." {
			line, col := l.line, l.column(l.pos)
			l.pos += 3
			return l.tokAt(line, col, Ellipsis, "...")
		}

		if c == '-' && l.at(1) == '>' {
			line, col := l.line, l.column(l.pos)
			l.pos += 2
			return l.tokAt(line, col, Arrow, "->")
		}

		if ty, ok := delimiters[c]; ok {
			line, col := l.line, l.column(l.pos)
			l.pos++
			return l.tokAt(line, col, ty, string(c))
		}

		if c == '#' {
			l.pos++
			for l.cur() == ' ' || l.cur() == '\t' {
				l.pos++
			}
			start := l.pos
			line, col := l.line, l.column(start)
			l.inDirective = true
			for !l.atEnd() && !isSpace(l.cur()) {
				l.pos++
			}
			return l.tokAt(line, col, PPDirective, l.src[start:l.pos])
		}

		line, col := l.line, l.column(l.pos)
		l.pos++
		return l.tokAt(line, col, Error, string(c))
	}
	return l.tokAt(l.line, l.column(l.pos), EOF, "<end of file>")
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (l *Lexer) tryOperator() (Token, bool) {
	for _, n := range []int{2, 1} {
		if l.pos+n > len(l.src) {
			continue
		}
		op := l.src[l.pos : l.pos+n]
		if operators[op] {
			line, col := l.line, l.column(l.pos)
			l.pos += n
			return l.tokAt(line, col, Operator, op), true
		}
	}
	return Token{}, false
}

func (l *Lexer) scanNumber() Token {
	start := l.pos
	line, col := l.line, l.column(start)
	hasDot := false
	if l.src[l.pos:min(l.pos+2, len(l.src))] == "0x" || l.src[l.pos:min(l.pos+2, len(l.src))] == "0X" {
		l.pos += 2
		for !l.atEnd() && isHexDigit(l.cur()) {
			l.pos++
		}
		return l.tokAt(line, col, IntLiteral, l.src[start:l.pos])
	}
	for !l.atEnd() && (isDigit(l.cur()) || (l.cur() == '.' && !hasDot)) {
		if l.cur() == '.' {
			hasDot = true
		}
		l.pos++
	}
	value := l.src[start:l.pos]
	switch {
	case l.cur() == 'f' || l.cur() == 'F':
		l.pos++
		return l.tokAt(line, col, FloatLiteral, value)
	case l.cur() == 'd' || l.cur() == 'D' || hasDot:
		if l.cur() == 'd' || l.cur() == 'D' {
			l.pos++
		}
		return l.tokAt(line, col, DoubleLiteral, value)
	default:
		// Trailing integer-suffix letters (u, l, ll, ul, ...) are dropped;
		// nothing downstream of this package inspects literal width.
		for !l.atEnd() && (l.cur() == 'u' || l.cur() == 'U' || l.cur() == 'l' || l.cur() == 'L') {
			l.pos++
		}
		return l.tokAt(line, col, IntLiteral, value)
	}
}

func (l *Lexer) scanString() Token {
	start := l.pos
	line, col := l.line, l.column(start)
	l.pos++
	for !l.atEnd() && l.cur() != '"' {
		if l.cur() == '\\' && !l.atEnd() {
			l.pos += 2
		} else {
			l.pos++
		}
	}
	valueStart := start + 1
	valueEnd := l.pos
	if !l.atEnd() {
		l.pos++
	}
	return l.tokAt(line, col, StringLiteral, l.src[valueStart:valueEnd])
}

func (l *Lexer) scanChar() Token {
	start := l.pos
	line, col := l.line, l.column(start)
	l.pos++
	if !l.atEnd() && l.cur() == '\\' {
		l.pos += 2
	} else if !l.atEnd() {
		l.pos++
	}
	if !l.atEnd() {
		l.pos++
	}
	return l.tokAt(line, col, CharLiteral, l.src[start:l.pos])
}

// All tokenizes the whole source, stopping after EOF.
func (l *Lexer) All() []Token {
	var out []Token
	for {
		t := l.Next()
		out = append(out, t)
		if t.Type == EOF {
			return out
		}
	}
}
