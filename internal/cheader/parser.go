package cheader

import (
	"strings"

	"cedar/internal/ast"
	"cedar/internal/diag"
)

// Parser ports cparser.py's ParserState/parse_* functions: a two-token
// lookahead recursive-descent parser over the cheader lexer's token
// stream. Unlike the Python reference (which calls `assert False` the
// moment `expect` fails), a mismatched token here only records a
// diag.Diagnostic and resynchronizes by skipping to the next plausible
// declaration boundary — a malformed macro or unsupported construct
// anywhere in a large system header must not abort parsing the rest of
// the file.
type Parser struct {
	tokens  []Token
	current int

	Diags *diag.Stream

	ppdefs map[string]*ast.CConstDefine
	defs   []ast.CDefinition
}

func NewParser(tokens []Token, diags *diag.Stream) *Parser {
	return &Parser{tokens: tokens, Diags: diags, ppdefs: map[string]*ast.CConstDefine{}}
}

func toLoc(t Token) diag.Location { return diag.Location{File: t.File, Line: t.Line, Column: t.Column} }

func (p *Parser) tok() Token {
	if p.current < len(p.tokens) {
		return p.tokens[p.current]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) peekNext() Token {
	if p.current+1 < len(p.tokens) {
		return p.tokens[p.current+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) loc() diag.Location { return toLoc(p.tok()) }

func (p *Parser) advance() Token {
	t := p.tok()
	if p.current < len(p.tokens)-1 {
		p.current++
	}
	return t
}

func (p *Parser) see(ty TokenType) bool { return p.tok().Type == ty }

func (p *Parser) seeValue(ty TokenType, value string) bool {
	return p.tok().Type == ty && p.tok().Value == value
}

func (p *Parser) seeSeq(ty0, ty1 TokenType) bool {
	return p.tok().Type == ty0 && p.peekNext().Type == ty1
}

func (p *Parser) errorf(format string, args ...any) {
	p.Diags.Syntaxf(p.loc(), format, args...)
}

func (p *Parser) expect(ty TokenType, msg string) bool {
	ok := p.tok().Type == ty
	if !ok {
		p.errorf("%s; got %q", msg, p.tok().Value)
	}
	p.advance()
	return ok
}

// skipUntil consumes tokens up to the first occurrence of one of endTypes
// (and past it, unless keepLast) or up to, but never past, blockEnding,
// returning the skipped tokens; the terminator is never among them.
func (p *Parser) skipUntil(endTypes []TokenType, blockEnding TokenType, keepLast bool) []Token {
	types := append(append([]TokenType{}, endTypes...), EOF)
	var toks []Token
	if blockEnding != "" && p.see(blockEnding) {
		return toks
	}
	for !containsType(types, p.tok().Type) {
		toks = append(toks, p.advance())
		if blockEnding != "" && p.see(blockEnding) {
			return toks
		}
	}
	if !keepLast {
		p.advance()
	}
	return toks
}

func containsType(types []TokenType, ty TokenType) bool {
	for _, t := range types {
		if t == ty {
			return true
		}
	}
	return false
}

var parens = map[TokenType]TokenType{LBrace: RBrace, LParen: RParen, LBracket: RBracket}

// skipExpression ports skip_expression: consumes tokens up to (not
// including) one of endTypes, recursing into any balanced bracket it
// encounters along the way so an end token inside nested parens doesn't
// terminate early.
func (p *Parser) skipExpression(endTypes []TokenType) {
	for !containsType(endTypes, p.tok().Type) && !p.see(EOF) {
		ty := p.tok().Type
		p.advance()
		if closing, ok := parens[ty]; ok {
			p.skipExpression([]TokenType{closing})
			if p.see(closing) {
				p.advance()
			}
		}
	}
}

func (p *Parser) skipUntilPPEndif() {
	for !p.seeValue(PPDirective, "endif") && !p.see(EOF) {
		recurse := p.see(PPDirective) && strings.HasPrefix(p.tok().Value, "if")
		p.advance()
		if recurse {
			p.skipUntilPPEndif()
		}
	}
	p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
}

func (p *Parser) determinePPDefineType(toks []Token) ast.CTypeExpr {
	for _, t := range toks {
		if t.Type == IntLiteral {
			ty := &ast.CNamedType{Name: "int"}
			return ty
		}
	}
	for _, t := range toks {
		if t.Type == FloatLiteral || t.Type == DoubleLiteral {
			ty := &ast.CNamedType{Name: "float"}
			return ty
		}
	}
	for _, t := range toks {
		if def, ok := p.ppdefs[t.Value]; ok {
			return def.Type
		}
	}
	return nil
}

// parsePPDirective ports parse_pp_directive. Returns nil for a directive
// that contributes no top-level definition (#undef, #if.../#endif,
// #include_next, #error).
func (p *Parser) parsePPDirective() ast.CDefinition {
	directive := p.tok().Value
	loc := p.loc()
	p.advance()

	if strings.HasPrefix(directive, "if") {
		p.skipUntilPPEndif()
		return nil
	}

	switch directive {
	case "define":
		ident := p.tok().Value
		p.expect(Identifier, "expected identifier after #define")
		toks := p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
		ty := p.determinePPDefineType(toks)
		res := &ast.CConstDefine{Type: ty, Name: ident, Undefined: false}
		res.SetLoc(loc)
		p.ppdefs[ident] = res
		return res
	case "undef":
		ident := p.tok().Value
		p.expect(Identifier, "expected identifier after #undef")
		p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
		if def, ok := p.ppdefs[ident]; ok {
			def.Undefined = true
		}
		return nil
	case "include":
		var filename string
		if p.see(StringLiteral) {
			filename = p.tok().Value
			p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
		} else {
			toks := p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
			var b strings.Builder
			if len(toks) > 2 {
				for _, t := range toks[1 : len(toks)-1] {
					b.WriteString(t.Value)
				}
			}
			filename = b.String()
		}
		inc := &ast.CInclude{Filename: filename}
		inc.SetLoc(loc)
		return inc
	case "include_next", "error":
		p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
		return nil
	default:
		p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
		return nil
	}
}

var typeSpecifiers = map[TokenType]bool{Unsigned: true, Signed: true, Long: true, Short: true, Int: true, Char: true}
var kwTypes = map[TokenType]bool{Float: true, Void: true, Double: true}

// parseTypeExpr ports parse_typeexpr: a type-specifier sequence followed
// by any number of `*`/`const` suffixes.
func (p *Parser) parseTypeExpr() ast.CTypeExpr {
	loc := p.loc()
	isConst := false
	if p.see(Const) {
		isConst = true
		p.advance()
	}

	var ty ast.CTypeExpr
	switch {
	case p.see(Identifier):
		name := p.tok().Value
		p.advance()
		nt := &ast.CNamedType{Name: name}
		nt.SetLoc(loc)
		ty = nt
	case p.see(Enum):
		name, enumerators := p.parseEnum()
		if name == "" {
			name = anonymousName(len(p.defs))
		}
		def := &ast.CEnumDef{Name: name, Enumerators: enumerators}
		def.SetLoc(loc)
		p.defs = append(p.defs, def)
		nt := &ast.CNamedType{Name: name, TypeKind: "enum"}
		nt.SetLoc(loc)
		ty = nt
	case p.see(Struct) || p.see(Union):
		kind := p.tok().Value
		p.advance()
		name, fieldtys, fieldnames := p.parseStructOrUnion()
		if fieldtys == nil {
			nt := &ast.CNamedType{Name: name, TypeKind: kind}
			nt.SetLoc(loc)
			ty = nt
		} else {
			if name == "" {
				name = anonymousName(len(p.defs))
			}
			var def ast.CDefinition
			if kind == "struct" {
				sd := &ast.CStructDef{Name: name, FieldTypes: fieldtys, FieldNames: fieldnames}
				sd.SetLoc(loc)
				def = sd
			} else {
				ud := &ast.CUnionDef{Name: name, FieldTypes: fieldtys, FieldNames: fieldnames}
				ud.SetLoc(loc)
				def = ud
			}
			p.defs = append(p.defs, def)
			nt := &ast.CNamedType{Name: name, TypeKind: kind}
			nt.SetLoc(loc)
			ty = nt
		}
	case typeSpecifiers[p.tok().Type]:
		parts := []string{p.tok().Value}
		p.advance()
		for typeSpecifiers[p.tok().Type] {
			parts = append(parts, p.tok().Value)
			p.advance()
		}
		nt := &ast.CNamedType{Name: strings.Join(parts, " ")}
		nt.SetLoc(loc)
		ty = nt
	case kwTypes[p.tok().Type]:
		name := p.tok().Value
		p.advance()
		nt := &ast.CNamedType{Name: name}
		nt.SetLoc(loc)
		ty = nt
	default:
		p.errorf("expected a type, got %q", p.tok().Value)
		p.advance()
		nt := &ast.CNamedType{Name: "int"}
		nt.SetLoc(loc)
		ty = nt
	}

	if isConst {
		ct := &ast.CConstType{Target: ty}
		ct.SetLoc(loc)
		ty = ct
	}

	for {
		loc = p.loc()
		if p.seeValue(Operator, "*") {
			pt := &ast.CPointerType{Target: ty}
			pt.SetLoc(loc)
			ty = pt
			p.advance()
		} else if p.see(Const) {
			ct := &ast.CConstType{Target: ty}
			ct.SetLoc(loc)
			ty = ct
			p.advance()
		} else {
			break
		}
	}
	return ty
}

func anonymousName(n int) string {
	return "_anonymous_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

// parseFunctionArgumentList ports parse_function_argument_list.
func (p *Parser) parseFunctionArgumentList() ([]ast.CTypeExpr, []string, bool) {
	var argtys []ast.CTypeExpr
	var argnames []string
	varargs := false
	p.expect(LParen, "expected '('")
	if p.seeSeq(Void, RParen) {
		p.advance()
		p.advance()
		return argtys, argnames, varargs
	}

	for !p.see(RParen) && !p.see(EOF) {
		if p.see(Ellipsis) {
			p.advance()
			varargs = true
			break
		}
		argty := p.parseTypeExpr()
		var argname string
		if p.see(LParen) && p.peekNext().Type == Operator && p.peekNext().Value == "*" {
			var fnptr *ast.CFunctionPointerType
			fnptr, argname = p.parseFunctionPointer(argty)
			argty = fnptr
		} else if p.see(Identifier) {
			for p.see(Identifier) {
				argname = p.tok().Value
				p.advance()
			}
		} else {
			argname = "__anonymous_arg_" + itoa(len(argnames))
		}
		if p.see(LBracket) {
			p.advance()
			if !p.see(RBracket) {
				p.skipExpression([]TokenType{RBracket})
			}
			p.advance()
			at := &ast.CArrayType{Elem: argty}
			at.SetLoc(argty.Loc())
			argty = at
		}
		argtys = append(argtys, argty)
		argnames = append(argnames, argname)
		if p.see(Comma) {
			p.advance()
			continue
		}
		break
	}

	p.expect(RParen, "expected ')'")
	return argtys, argnames, varargs
}

func (p *Parser) skipFunctionBody() {
	p.skipUntil([]TokenType{Semicolon, LBrace}, "", true)
	if p.see(Semicolon) {
		p.advance()
		return
	}
	p.advance()
	p.skipUntilParen(LBrace, RBrace)
}

func (p *Parser) parseOptionalIdentifier() string {
	if p.see(Identifier) {
		name := p.tok().Value
		p.advance()
		return name
	}
	return ""
}

func (p *Parser) parseEnum() (string, []string) {
	p.expect(Enum, "expected 'enum'")
	name := p.parseOptionalIdentifier()
	p.skipUntil([]TokenType{LBrace}, "", false)
	var enumerators []string
	for !p.see(RBrace) {
		if p.see(PPDirective) {
			if def := p.parsePPDirective(); def != nil {
				p.defs = append(p.defs, def)
			}
			continue
		}
		ename := p.tok().Value
		p.expect(Identifier, "expected identifier")
		p.skipExpression([]TokenType{Comma, RBrace})
		enumerators = append(enumerators, ename)
		if !p.see(Comma) {
			break
		}
		p.advance()
	}
	p.expect(RBrace, "expected '}'")
	return name, enumerators
}

// parseStructOrUnion ports parse_struct_or_union: returns (name, nil,
// nil) for a forward declaration with no body.
func (p *Parser) parseStructOrUnion() (string, []ast.CTypeExpr, []string) {
	name := p.parseOptionalIdentifier()
	if !p.see(LBrace) {
		return name, nil, nil
	}
	p.skipUntil([]TokenType{LBrace}, "", false)
	var tys []ast.CTypeExpr
	var names []string
	for !p.see(RBrace) && !p.see(EOF) {
		if p.see(PPDirective) {
			if def := p.parsePPDirective(); def != nil {
				p.defs = append(p.defs, def)
			}
			continue
		}
		tys = append(tys, p.parseTypeExpr())
		fname := "__anonymous_field_" + itoa(len(names))
		if p.see(Identifier) {
			fname = p.tok().Value
		}
		names = append(names, fname)
		p.skipUntil([]TokenType{Semicolon}, "", false)
	}
	p.expect(RBrace, "expected '}'")
	return name, tys, names
}

// parseFunctionPointer ports parse_function_pointer: called once the
// `(*` lookahead has already been confirmed by the caller.
func (p *Parser) parseFunctionPointer(retty ast.CTypeExpr) (*ast.CFunctionPointerType, string) {
	p.advance() // '('
	p.advance() // '*'
	name := p.tok().Value
	p.expect(Identifier, "expected identifier")
	p.expect(RParen, "expected ')'")
	argtys, argnames, _ := p.parseFunctionArgumentList()
	fp := &ast.CFunctionPointerType{ReturnType: retty, ArgTypes: argtys, ArgNames: argnames}
	fp.SetLoc(retty.Loc())
	return fp, name
}

func (p *Parser) parseTypedef() ast.CDefinition {
	loc := p.loc()
	ty := p.parseTypeExpr()
	if p.see(LParen) && p.peekNext().Type == Operator && p.peekNext().Value == "*" {
		fnptr, name := p.parseFunctionPointer(ty)
		p.expect(Semicolon, "expected ';'")
		td := &ast.CTypedefDef{Name: name, Definition: fnptr}
		td.SetLoc(loc)
		return td
	}

	name := p.tok().Value
	p.expect(Identifier, "expected identifier")
	p.expect(Semicolon, "expected ';'")
	td := &ast.CTypedefDef{Name: name, Definition: ty}
	td.SetLoc(loc)
	return td
}

func (p *Parser) skipUntilParen(opening, closing TokenType) {
	for !p.see(closing) {
		if p.see(EOF) {
			return
		}
		if p.see(opening) {
			p.advance()
			p.skipUntilParen(opening, closing)
		} else {
			p.advance()
		}
	}
	p.advance()
}

// parseTop ports parse_top: one top-level declaration or directive.
func (p *Parser) parseTop() ast.CDefinition {
	loc := p.loc()
	switch p.tok().Type {
	case PPDirective:
		return p.parsePPDirective()
	case Typedef:
		p.advance()
		return p.parseTypedef()
	case Struct:
		p.advance()
		name, ftys, fnames := p.parseStructOrUnion()
		p.expect(Semicolon, "expected ';'")
		def := &ast.CStructDef{Name: name, FieldTypes: ftys, FieldNames: fnames}
		def.SetLoc(loc)
		return def
	case Union:
		p.advance()
		name, ftys, fnames := p.parseStructOrUnion()
		p.expect(Semicolon, "expected ';'")
		def := &ast.CUnionDef{Name: name, FieldTypes: ftys, FieldNames: fnames}
		def.SetLoc(loc)
		return def
	case Enum:
		name, enumerators := p.parseEnum()
		p.expect(Semicolon, "expected ';'")
		def := &ast.CEnumDef{Name: name, Enumerators: enumerators}
		def.SetLoc(loc)
		return def
	default:
		if p.seeSeq(Identifier, LParen) {
			// A macro invocation at file scope (e.g. an ABI-version
			// assertion): skip the call entirely.
			p.advance()
			p.advance()
			p.skipUntilParen(LParen, RParen)
			if p.see(Semicolon) {
				p.advance()
			}
			return nil
		}
		// Storage-class specifiers carry no type information of their own;
		// `extern` marks the following global as defined elsewhere (no
		// storage owned by this header), everything else here is noise to
		// the declared interface.
		isExtern := false
		for p.see(Extern) || p.see(Static) || p.see(Inline) || p.see(Register) {
			isExtern = isExtern || p.see(Extern)
			p.advance()
		}
		ty := p.parseTypeExpr()
		if p.seeSeq(Identifier, LParen) {
			name := p.tok().Value
			p.advance()
			argtys, argnames, varargs := p.parseFunctionArgumentList()
			p.skipFunctionBody()
			def := &ast.CFunctionDef{ReturnType: ty, Name: name, ArgTypes: argtys, ArgNames: argnames, Varargs: varargs}
			def.SetLoc(loc)
			return def
		} else if p.see(Identifier) {
			name := p.tok().Value
			p.advance()
			p.skipUntil([]TokenType{Semicolon}, "", false)
			if isExtern {
				def := &ast.CVariableDef{Type: ty, Name: name}
				def.SetLoc(loc)
				return def
			}
			def := &ast.CGlobalVarDef{Type: ty, Name: name}
			def.SetLoc(loc)
			return def
		}
		return nil
	}
}

// parseModule ports parse_module: handles the common `#ifndef GUARD /
// #define GUARD ... #endif` include-guard wrapper by parsing everything
// between the guard's #ifndef and matching #endif, then dropping the
// guard macro's own #define from the resulting definition list.
func (p *Parser) parseModule(filename string) *ast.CModuleDef {
	var includeGuard string
	if p.seeValue(PPDirective, "ifndef") {
		toks := p.skipUntil([]TokenType{PPDirectiveEnd}, "", false)
		if len(toks) > 1 {
			includeGuard = toks[1].Value
		}
		for !p.seeValue(PPDirective, "endif") && !p.see(EOF) {
			if res := p.parseTop(); res != nil {
				p.defs = append(p.defs, res)
			}
		}
	} else {
		for !p.see(EOF) {
			if res := p.parseTop(); res != nil {
				p.defs = append(p.defs, res)
			}
		}
	}

	out := p.defs
	if includeGuard != "" {
		filtered := make([]ast.CDefinition, 0, len(out))
		for _, d := range out {
			if cd, ok := d.(*ast.CConstDefine); ok && cd.Name == includeGuard {
				continue
			}
			filtered = append(filtered, d)
		}
		out = filtered
	}

	mod := &ast.CModuleDef{Filename: filename, Defs: out}
	return mod
}

// Parse tokenizes and parses a C header's full source into an
// ast.CModuleDef, the idiom internal/declare.DeclareCHeader/
// ResolveCHeader consume. ignoreTokens names annotation macros (e.g.
// SDL's SDLCALL/DECLSPEC) whose call-like use should be skipped rather
// than parsed as a declaration.
func Parse(file, src string, ignoreTokens map[string]bool, diags *diag.Stream) *ast.CModuleDef {
	lx := New(file, src, ignoreTokens)
	var toks []Token
	for {
		t := lx.Next()
		toks = append(toks, t)
		if t.Type == EOF {
			break
		}
	}
	p := NewParser(toks, diags)
	return p.parseModule(file)
}
