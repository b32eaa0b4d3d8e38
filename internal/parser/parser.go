// Package parser implements the recursive-descent parser for the source
// language: an untyped AST built directly from the token stream, with
// operator-precedence climbing for binary expressions and the
// "trailing block" rule that lets for/while/if act as both expressions
// and statements. Grounded on original_source/frontend/parser.py, in the
// idiom of the teacher's internal/parser/parser.go (token-array cursor,
// match/check/advance helpers, an Errors slice collected instead of
// aborting on the first mistake).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/lexer"
	"cedar/internal/rx"
)

// operatorPrecedence mirrors OPERATOR_PRECEDENCE_TABLE in
// original_source/frontend/parser.py. A couple of entries ("**", "//")
// are carried over even though the lexer's own OPERATOR pattern never
// produces them, for fidelity with the table they were copied from.
var operatorPrecedence = map[string]int{
	"..": 0,
	"or": 1, "and": 2,
	"==": 3, "!=": 3, ">": 3, ">=": 3, "<": 3, "<=": 3,
	"|": 4,
	"^": 5,
	"&": 6,
	"<<": 7, ">>": 7,
	"+": 8, "-": 8,
	"*": 9, "/": 9, "//": 9, "%": 9,
	"**":   10,
	"else": 11,
}

const maxPrecedence = 12

// unaryOperatorsByPrecedence mirrors parse_expr_unary's lookup table: at
// precedence 2 a leading "not" is unary, at precedence 12 a leading sign
// or sigil is unary.
var unaryOperatorsByPrecedence = map[int][]string{
	2:  {"not"},
	12: {"+", "-", "~", "&", "*"},
}

func isUnaryAt(precedence int, value string) bool {
	for _, op := range unaryOperatorsByPrecedence[precedence] {
		if op == value {
			return true
		}
	}
	return false
}

type Parser struct {
	tokens  []lexer.Token
	current int
	Errors  []*diag.Diagnostic
}

func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

func toLoc(t lexer.Token) diag.Location {
	return diag.Location{File: t.File, Line: t.Line, Column: t.Column}
}

func (p *Parser) tok() lexer.Token {
	if p.current < len(p.tokens) {
		return p.tokens[p.current]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) peekNext() lexer.Token {
	if p.current+1 < len(p.tokens) {
		return p.tokens[p.current+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) loc() diag.Location { return toLoc(p.tok()) }

func (p *Parser) advance() lexer.Token {
	t := p.tok()
	if p.current < len(p.tokens)-1 {
		p.current++
	}
	return t
}

func (p *Parser) see(ty lexer.TokenType) bool { return p.tok().Type == ty }

func (p *Parser) seeValue(ty lexer.TokenType, value string) bool {
	return p.tok().Type == ty && p.tok().Value == value
}

func (p *Parser) seeSeq(ty0, ty1 lexer.TokenType) bool {
	return p.tok().Type == ty0 && p.peekNext().Type == ty1
}

func (p *Parser) errorf(format string, args ...any) {
	p.Errors = append(p.Errors, diag.New(diag.SyntaxError, p.loc(), fmt.Sprintf(format, args...)))
}

// expect records a diagnostic if the current token isn't tokty, but
// advances unconditionally either way — the parser never aborts on a
// syntax error, matching original_source/frontend/parser.py's expect(),
// which always calls advance(parser) regardless of the match outcome.
func (p *Parser) expect(tokty lexer.TokenType, msg string) bool {
	ok := p.tok().Type == tokty
	if !ok {
		p.errorf("%s; got %q", msg, p.tok().Value)
	}
	p.advance()
	return ok
}

// Parse parses a complete module out of filename/text's token stream.
// mainModule marks whether this module owns the program's entry point.
func (p *Parser) Parse(filename string, mainModule bool) *ast.ModuleDef {
	var defs []ast.Definition
	if !strings.Contains(filename, "__builtins__") {
		for _, name := range []string{"string", "symbol", "context", "range"} {
			imp := &ast.ImportDef{Filename: "__builtins__/" + name + ".ce", Namespace: "implicit"}
			defs = append(defs, imp)
		}
	}
	for !p.see(lexer.EOF) {
		if d := p.parseTop(); d != nil {
			defs = append(defs, d)
		}
	}
	mod := &ast.ModuleDef{Filename: filename, Defs: defs, MainModule: mainModule}
	return mod
}

// ---- type expressions ----

func (p *Parser) parseTypeExprTuple() *ast.TupleType {
	loc := p.loc()
	p.expect(lexer.LParen, "expected '(' to begin tuple type")
	var positional, named []ast.TypeExpr
	var names []string
	parsePositional := true
	errorEmitted := false
	for !p.see(lexer.RParen) && !p.see(lexer.EOF) {
		if p.seeSeq(lexer.Identifier, lexer.Colon) {
			names = append(names, p.tok().Value)
			p.advance()
			p.advance()
			named = append(named, p.parseTypeExpr())
			parsePositional = false
		} else {
			if !parsePositional && !errorEmitted {
				errorEmitted = true
				p.errorf("named tuple slots must follow positional slots")
			}
			positional = append(positional, p.parseTypeExpr())
		}
		if p.see(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(lexer.RParen, "expected ')' to finish tuple type")
	n := &ast.TupleType{Positional: positional, Named: named, Names: names}
	n.SetLoc(loc)
	return n
}

// parseTypeExprNoUnion parses everything except the top-level `|`
// alternation, including postfix pointer/array/option/failable sigils
// and an optional function-type argument list.
func (p *Parser) parseTypeExprNoUnion() ast.TypeExpr {
	loc := p.loc()
	var ty ast.TypeExpr
	switch {
	case p.see(lexer.Identifier):
		name := p.tok().Value
		p.advance()
		namespace := ""
		if p.see(lexer.Dot) {
			p.advance()
			namespace = name
			name = p.tok().Value
			p.expect(lexer.Identifier, "expected identifier")
		}
		n := &ast.NamedType{Namespace: namespace, Name: name}
		n.SetLoc(loc)
		ty = n
	case p.see(lexer.LParen):
		ty = p.parseTypeExprTuple()
	default:
		p.errorf("expected a type expression")
		p.advance()
		n := &ast.NamedType{Name: "<error>"}
		n.SetLoc(loc)
		ty = n
	}

	if p.see(lexer.LParen) {
		p.advance()
		var argtys []ast.TypeExpr
		var argnames []string
		for !p.see(lexer.RParen) && !p.see(lexer.EOF) {
			argtys = append(argtys, p.parseTypeExpr())
			argnames = append(argnames, p.tok().Value)
			p.expect(lexer.Identifier, "expected argument name")
			if p.see(lexer.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(lexer.RParen, "expected ')' to finish field list")
		fn := &ast.FunctionType{ReturnType: ty, ArgTypes: argtys, ArgNames: argnames}
		fn.SetLoc(loc)
		ty = fn
	}

	for {
		sigilLoc := p.loc()
		switch {
		case p.seeValue(lexer.Operator, "*"):
			p.advance()
			n := &ast.PointerType{Target: ty}
			n.SetLoc(sigilLoc)
			ty = n
		case p.seeSeq(lexer.LBracket, lexer.RBracket):
			p.advance()
			p.advance()
			n := &ast.ArraySliceType{Elem: ty}
			n.SetLoc(sigilLoc)
			ty = n
		case p.see(lexer.Question):
			p.advance()
			n := &ast.OptionType{Target: ty}
			n.SetLoc(sigilLoc)
			ty = n
		case p.see(lexer.Exclamation):
			p.advance()
			n := &ast.FailableType{Target: ty}
			n.SetLoc(sigilLoc)
			ty = n
		default:
			return ty
		}
	}
}

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	loc := p.loc()
	ty := p.parseTypeExprNoUnion()
	if p.seeValue(lexer.Operator, "|") {
		alts := []ast.TypeExpr{ty}
		for p.seeValue(lexer.Operator, "|") {
			p.advance()
			alts = append(alts, p.parseTypeExprNoUnion())
		}
		u := &ast.UnionType{Alternatives: alts}
		u.SetLoc(loc)
		return u
	}
	return ty
}

// ---- expressions ----

func (p *Parser) parseExprArray() ast.Expr {
	loc := p.loc()
	p.expect(lexer.LBracket, "expected '[' to begin array literal")
	var elems []ast.Expr
	for !p.see(lexer.RBracket) && !p.see(lexer.EOF) {
		elems = append(elems, p.parseExpr(false))
		if p.see(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(lexer.RBracket, "expected ']' to finish array literal")
	n := &ast.ArrayExpr{Elems: elems}
	n.SetLoc(loc)
	return n
}

func (p *Parser) parseExprTuple(onlyNamed bool) *ast.TupleExpr {
	loc := p.loc()
	p.expect(lexer.LParen, "expected '(' to begin tuple")
	var positional, named []ast.Expr
	var names []string
	parsePositional := !onlyNamed
	errorEmitted := false
	for !p.see(lexer.RParen) && !p.see(lexer.EOF) {
		if p.seeSeq(lexer.Identifier, lexer.Colon) {
			names = append(names, p.tok().Value)
			p.advance()
			p.advance()
			named = append(named, p.parseExpr(false))
			parsePositional = false
		} else {
			if !parsePositional && !errorEmitted {
				errorEmitted = true
				p.errorf("named tuple slots must follow positional slots")
			}
			positional = append(positional, p.parseExpr(false))
		}
		if p.see(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(lexer.RParen, "expected ')' to finish tuple")
	n := &ast.TupleExpr{Positional: positional, Named: named, Names: names}
	n.SetLoc(loc)
	return n
}

func parseIntLiteral(text string) int64 {
	clean := strings.ReplaceAll(text, "_", "")
	var v int64
	switch {
	case strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X"):
		v, _ = strconv.ParseInt(clean[2:], 16, 64)
	case strings.HasPrefix(clean, "0b") || strings.HasPrefix(clean, "0B"):
		v, _ = strconv.ParseInt(clean[2:], 2, 64)
	default:
		v, _ = strconv.ParseInt(clean, 10, 64)
	}
	return v
}

func (p *Parser) parseExprAtom(trailingBlockPermitted bool) ast.Expr {
	loc := p.loc()
	switch p.tok().Type {
	case lexer.Int:
		v := parseIntLiteral(p.tok().Value)
		p.advance()
		n := &ast.IntegerExpr{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Float:
		v := p.tok().Value
		p.advance()
		n := &ast.FloatExpr{Text: v}
		n.SetLoc(loc)
		return n
	case lexer.Regex:
		v := p.tok().Value
		p.advance()
		renode, err := rx.Parse(v)
		if err != nil {
			p.errorf("invalid regex literal: %s", err)
			renode = &ast.RESequence{}
		}
		n := &ast.RegexExpr{Value: renode}
		n.SetLoc(loc)
		return n
	case lexer.String:
		v := p.tok().Value
		p.advance()
		n := &ast.StringExpr{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Symbol:
		v := p.tok().Value[1:] // strip leading '#'
		p.advance()
		if len(v) > 0 && (v[0] == '"' || v[0] == '\'') {
			v = v[1 : len(v)-1]
		}
		n := &ast.SymbolExpr{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Bool:
		v := p.tok().Value == "true"
		p.advance()
		n := &ast.BoolExpr{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Null:
		p.advance()
		n := &ast.NullExpr{}
		n.SetLoc(loc)
		return n
	case lexer.Identifier:
		name := p.tok().Value
		p.advance()
		n := &ast.IdentifierExpr{Name: name}
		n.SetLoc(loc)
		return n
	case lexer.Cast:
		p.advance()
		p.expect(lexer.LParen, "expected '(' after 'cast'")
		ty := p.parseTypeExpr()
		p.expect(lexer.RParen, "expected ')' after cast")
		n := &ast.CastExpr{Type: ty, Expr: p.parseExpr(true)}
		n.SetLoc(loc)
		return n
	case lexer.Let:
		p.advance()
		implicit := false
		if p.see(lexer.Implicit) {
			implicit = true
			p.advance()
		}
		name := p.tok().Value
		p.expect(lexer.Identifier, "expected variable name after 'let'")
		n := &ast.NewIdentifierExpr{Name: name, Implicit: implicit}
		n.SetLoc(loc)
		return n
	case lexer.Type:
		p.advance()
		p.expect(lexer.LParen, "expected '(' after 'type'")
		e := p.parseExpr(true)
		p.expect(lexer.RParen, "expected ')'")
		n := &ast.TypeOfExpr{Expr: e}
		n.SetLoc(loc)
		return n
	case lexer.LBracket:
		return p.parseExprArray()
	case lexer.LParen:
		return p.parseExprTuple(false)
	case lexer.For:
		if !trailingBlockPermitted {
			break
		}
		p.advance()
		var iterator ast.Expr
		if p.see(lexer.LParen) {
			iterator = p.parseExprTuple(false)
		} else if p.see(lexer.Identifier) {
			id := &ast.IdentifierExpr{Name: p.tok().Value}
			id.SetLoc(p.loc())
			p.advance()
			iterator = id
		} else {
			p.errorf("expected a tuple or identifier for the loop variable")
		}
		p.expect(lexer.In, "expected 'in'")
		iterable := p.parseExpr(false)
		body := p.parseStmtBlock()
		n := &ast.ForExpr{Iterator: iterator, Iterable: iterable, Body: body}
		n.SetLoc(loc)
		return n
	case lexer.While:
		if !trailingBlockPermitted {
			break
		}
		p.advance()
		cond := p.parseExpr(false)
		body := p.parseStmtBlock()
		n := &ast.WhileExpr{Cond: cond, Body: body}
		n.SetLoc(loc)
		return n
	case lexer.If:
		if !trailingBlockPermitted {
			break
		}
		return p.parseIfExpr(loc)
	}
	p.errorf("expected an expression")
	p.advance()
	n := &ast.NullExpr{}
	n.SetLoc(loc)
	return n
}

func (p *Parser) parseIfExpr(loc diag.Location) ast.Expr {
	p.advance() // 'if'
	cond := p.parseExpr(false)
	var pattern ast.Expr
	if p.see(lexer.Case) {
		p.advance()
		pattern = p.parseExpr(false)
	}
	trueBody := p.parseStmtBlock()
	// Only an implicit semicolon before 'else' should be consumed here;
	// an explicit one was already consumed by parseStmtBlock's caller.
	if p.seeSeq(lexer.Semicolon, lexer.Else) {
		p.advance()
	}
	var falseBody ast.Stmt
	if p.seeSeq(lexer.Else, lexer.If) {
		p.advance()
		inner := p.parseExprAtom(true)
		es := &ast.ExprStmt{Expr: inner}
		es.SetLoc(inner.Loc())
		blk := &ast.BlockStmt{Stmts: []ast.Stmt{es}}
		blk.SetLoc(inner.Loc())
		falseBody = blk
	} else if p.see(lexer.Else) {
		p.advance()
		falseBody = p.parseStmtBlock()
	} else {
		blk := &ast.BlockStmt{}
		blk.SetLoc(loc)
		falseBody = blk
	}
	if pattern != nil {
		n := &ast.IfCaseExpr{Cond: cond, Pattern: pattern, TrueBody: trueBody, FalseBody: falseBody}
		n.SetLoc(loc)
		return n
	}
	n := &ast.IfExpr{Cond: cond, TrueBody: trueBody, FalseBody: falseBody}
	n.SetLoc(loc)
	return n
}

func (p *Parser) parseExprPrimary(trailingBlockPermitted bool) ast.Expr {
	expr := p.parseExprAtom(trailingBlockPermitted)
	for {
		loc := p.loc()
		switch p.tok().Type {
		case lexer.LParen:
			args := p.parseExprTuple(false)
			var block *ast.BlockStmt
			if trailingBlockPermitted && p.see(lexer.LBrace) {
				block = p.parseStmtBlock()
			}
			n := &ast.CallExpr{Func: expr, Args: args, Block: block}
			n.SetLoc(loc)
			expr = n
		case lexer.On:
			p.advance()
			data := p.parseExpr(false)
			n := &ast.AllocateExpr{Allocator: expr, Data: data}
			n.SetLoc(loc)
			expr = n
		case lexer.Dot:
			p.advance()
			name := p.tok().Value
			p.expect(lexer.Identifier, "expected identifier for member access")
			n := &ast.MemberExpr{Target: expr, Member: name}
			n.SetLoc(loc)
			expr = n
		case lexer.LBracket:
			p.advance()
			index := p.parseExpr(false)
			p.expect(lexer.RBracket, "expected ']'")
			n := &ast.IndexExpr{Target: expr, Indices: []ast.Expr{index}}
			n.SetLoc(loc)
			expr = n
		default:
			return expr
		}
	}
}

func (p *Parser) parseExprUnary(precedence int, trailingBlockPermitted bool) ast.Expr {
	loc := p.loc()
	if isUnaryAt(precedence, p.tok().Value) {
		op := p.tok().Value
		p.advance()
		operand := p.parseExprUnary(precedence, trailingBlockPermitted)
		n := &ast.UnaryOpExpr{Op: op, Expr: operand}
		n.SetLoc(loc)
		return n
	}
	if precedence < maxPrecedence {
		return p.parseExprUnary(precedence+1, trailingBlockPermitted)
	}
	return p.parseExprPrimary(trailingBlockPermitted)
}

func (p *Parser) parseExprBinary(precedence int, trailingBlockPermitted bool) ast.Expr {
	left := p.parseExprUnary(precedence, trailingBlockPermitted)
	for (p.see(lexer.Operator) || p.see(lexer.Else)) && operatorPrecedence[p.tok().Value] >= precedence {
		loc := p.loc()
		op := p.tok().Value
		p.advance()
		if op == "else" {
			if p.see(lexer.LBrace) && trailingBlockPermitted {
				stmt := p.parseStmtBlock()
				n := &ast.BinaryElseExpr{LHS: left, Stmt: stmt}
				n.SetLoc(loc)
				return n
			}
			right := p.parseExprBinary(operatorPrecedence[op]+1, trailingBlockPermitted)
			es := &ast.ExprStmt{Expr: right}
			es.SetLoc(right.Loc())
			blk := &ast.BlockStmt{Stmts: []ast.Stmt{es}}
			blk.SetLoc(right.Loc())
			n := &ast.BinaryElseExpr{LHS: left, Stmt: blk}
			n.SetLoc(loc)
			return n
		}
		right := p.parseExprBinary(operatorPrecedence[op]+1, trailingBlockPermitted)
		n := &ast.BinaryOpExpr{LHS: left, Op: op, RHS: right}
		n.SetLoc(loc)
		left = n
	}
	return left
}

func (p *Parser) parseExpr(trailingBlockPermitted bool) ast.Expr {
	return p.parseExprBinary(0, trailingBlockPermitted)
}

func (p *Parser) parseExprTop() ast.Expr {
	expr := p.parseExpr(true)
	if p.see(lexer.Where) {
		loc := p.loc()
		p.advance()
		block := p.parseStmtBlock()
		n := &ast.WhereExpr{Expr: expr, Stmts: block.Stmts}
		n.SetLoc(loc)
		return n
	}
	return expr
}

// ---- statements ----

func (p *Parser) parseStmtExprOrAssign() ast.Stmt {
	loc := p.loc()
	lhs := p.parseExprTop()
	if p.see(lexer.Semicolon) {
		p.advance()
		n := &ast.ExprStmt{Expr: lhs}
		n.SetLoc(loc)
		return n
	}
	p.expect(lexer.Assign, "expected '='")
	rhs := p.parseExprTop()
	p.expect(lexer.Semicolon, "expected ';' after expression")
	n := &ast.AssignStmt{LHS: lhs, RHS: rhs}
	n.SetLoc(loc)
	return n
}

func (p *Parser) parseOptionalValue() ast.Expr {
	if p.see(lexer.Semicolon) {
		n := &ast.NoExpr{}
		n.SetLoc(p.loc())
		return n
	}
	return p.parseExprTop()
}

func (p *Parser) parseStmt() ast.Stmt {
	loc := p.loc()
	switch p.tok().Type {
	case lexer.Pass:
		p.advance()
		p.expect(lexer.Semicolon, "expected ';' after 'pass'")
		n := &ast.PassStmt{}
		n.SetLoc(loc)
		return n
	case lexer.Continue:
		p.advance()
		v := p.parseOptionalValue()
		p.expect(lexer.Semicolon, "expected ';' after 'continue'")
		n := &ast.ContinueStmt{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Break:
		p.advance()
		v := p.parseOptionalValue()
		p.expect(lexer.Semicolon, "expected ';' after 'break'")
		n := &ast.BreakStmt{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Return:
		p.advance()
		v := p.parseOptionalValue()
		p.expect(lexer.Semicolon, "expected ';' after 'return'")
		n := &ast.ReturnStmt{Value: v}
		n.SetLoc(loc)
		return n
	case lexer.Assert:
		p.advance()
		v := p.parseExprTop()
		p.expect(lexer.Semicolon, "expected ';' after 'assert'")
		n := &ast.AssertStmt{Value: v}
		n.SetLoc(loc)
		return n
	default:
		return p.parseStmtExprOrAssign()
	}
}

func (p *Parser) parseStmtBlock() *ast.BlockStmt {
	loc := p.loc()
	p.expect(lexer.LBrace, "expected a block statement")
	var stmts []ast.Stmt
	for !p.see(lexer.RBrace) && !p.see(lexer.EOF) {
		stmt := p.parseStmt()
		if _, isPass := stmt.(*ast.PassStmt); !isPass {
			stmts = append(stmts, stmt)
		}
	}
	p.expect(lexer.RBrace, "expected end of block statement")
	n := &ast.BlockStmt{Stmts: stmts}
	n.SetLoc(loc)
	return n
}

// ---- top-level definitions ----

func (p *Parser) parseTopTypeConstructor() *ast.TypeConstructor {
	loc := p.loc()
	name := p.tok().Value
	p.expect(lexer.Identifier, "expected type constructor name")

	var fieldTypes []ast.TypeExpr
	var fieldNames []string
	if !p.see(lexer.Semicolon) && !p.see(lexer.Assign) {
		p.expect(lexer.LParen, "expected '('")
		for !p.see(lexer.RParen) && !p.see(lexer.EOF) {
			fieldTypes = append(fieldTypes, p.parseTypeExpr())
			fieldNames = append(fieldNames, p.tok().Value)
			p.expect(lexer.Identifier, "expected field name")
			if p.see(lexer.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(lexer.RParen, "expected ')' to finish field list")
	}

	var tagValue ast.Expr
	if p.see(lexer.Assign) {
		p.advance()
		tagValue = p.parseExpr(false)
	}
	p.expect(lexer.Semicolon, "expected ';' to finish constructor definition")

	n := &ast.TypeConstructor{Name: name, FieldTypes: fieldTypes, FieldNames: fieldNames, TagValue: tagValue}
	n.SetLoc(loc)
	return n
}

func (p *Parser) parseTop() ast.Definition {
	loc := p.loc()
	export := false
	if p.see(lexer.Export) {
		p.advance()
		export = true
	}

	switch {
	case p.see(lexer.Import):
		filename := p.tok().Value
		p.advance()
		expectSemicolon := true
		namespace := ""
		if p.see(lexer.In) {
			p.advance()
			namespace = p.tok().Value
			if p.see(lexer.Implicit) {
				p.advance()
				namespace = "implicit"
			} else {
				p.expect(lexer.Identifier, "expected namespace")
			}
			if !p.see(lexer.Semicolon) && !p.see(lexer.LParen) {
				expectSemicolon = false
			}
		} else {
			namespace = defaultNamespace(filename)
		}
		var params *ast.TupleExpr
		if p.see(lexer.LParen) {
			params = p.parseExprTuple(true)
		}
		if expectSemicolon {
			p.expect(lexer.Semicolon, "expected ';' to end import declaration")
		}
		n := &ast.ImportDef{Filename: filename, Namespace: namespace, Parameters: params}
		n.SetLoc(loc)
		return n

	case p.see(lexer.Type):
		p.advance()
		if p.peekNext().Type == lexer.LBrace {
			tyname := p.tok().Value
			p.expect(lexer.Identifier, "expected type name")
			p.expect(lexer.LBrace, "expected '{' to begin type definition")
			var ctors []*ast.TypeConstructor
			for !p.see(lexer.RBrace) && !p.see(lexer.EOF) {
				ctors = append(ctors, p.parseTopTypeConstructor())
			}
			p.expect(lexer.RBrace, "expected '}' to end type definition")
			p.expect(lexer.Semicolon, "expected ';' to end type definition")
			n := &ast.TypeDef{Export: export, Name: tyname, Constructors: ctors}
			n.SetLoc(loc)
			return n
		}
		ctor := p.parseTopTypeConstructor()
		n := &ast.TypeDef{Export: export, Name: ctor.Name, Constructors: []*ast.TypeConstructor{ctor}}
		n.SetLoc(loc)
		return n

	case p.see(lexer.Identifier) || p.see(lexer.LParen):
		ty := p.parseTypeExpr()
		name := p.tok().Value
		p.expect(lexer.Identifier, "expected variable name")
		if p.see(lexer.Assign) {
			p.advance()
			value := p.parseExprTop()
			p.expect(lexer.Semicolon, "expected ';' to end variable assignment")
			n := &ast.GlobalVarDef{Export: export, Type: ty, Name: name, Value: value}
			n.SetLoc(loc)
			return n
		}
		p.expect(lexer.LParen, "expected '(' or '='")
		var argtysImplicit, argtys []ast.TypeExpr
		var argnamesImplicit, argnames []string
		implicitArgPermitted := true
		for !p.see(lexer.RParen) && !p.see(lexer.EOF) {
			implicit := false
			if implicitArgPermitted {
				if p.see(lexer.Implicit) {
					p.advance()
					implicit = true
				} else {
					implicitArgPermitted = false
				}
			}
			if implicit {
				argtysImplicit = append(argtysImplicit, p.parseTypeExpr())
				argnamesImplicit = append(argnamesImplicit, p.tok().Value)
			} else {
				argtys = append(argtys, p.parseTypeExpr())
				argnames = append(argnames, p.tok().Value)
			}
			p.expect(lexer.Identifier, "expected argument name")
			if p.see(lexer.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(lexer.RParen, "expected ')' to finish argument list")
		body := p.parseStmtBlock().Stmts
		p.expect(lexer.Semicolon, "expected ';' to end function definition")
		n := &ast.FunctionDef{
			Export: export, ReturnType: ty, Name: name,
			ArgTypesImplicit: argtysImplicit, ArgNamesImplicit: argnamesImplicit,
			ArgTypes: argtys, ArgNames: argnames, Body: body,
		}
		n.SetLoc(loc)
		return n

	default:
		p.errorf("expected a top-level definition")
		p.advance()
		return nil
	}
}

func defaultNamespace(filename string) string {
	base := filename
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 {
		base = base[:idx]
	}
	return base
}
