package parser

import (
	"testing"

	"cedar/internal/ast"
	"cedar/internal/lexer"
)

func parseExprString(t *testing.T, src string) ast.Expr {
	t.Helper()
	toks := lexer.New("t.cdr", src+";").All()
	p := New(toks)
	stmt := p.parseStmt()
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Errors)
	}
	es, ok := stmt.(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected an expression statement, got %T", stmt)
	}
	return es.Expr
}

func TestBinaryPrecedenceAddBeforeMul(t *testing.T) {
	expr := parseExprString(t, "1 + 2 * 3")
	bin, ok := expr.(*ast.BinaryOpExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level '+', got %#v", expr)
	}
	rhs, ok := bin.RHS.(*ast.BinaryOpExpr)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected right-hand '*', got %#v", bin.RHS)
	}
}

func TestUnaryMinusBindsTighterThanBinaryPlus(t *testing.T) {
	expr := parseExprString(t, "-1 + 2")
	bin, ok := expr.(*ast.BinaryOpExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level '+', got %#v", expr)
	}
	if _, ok := bin.LHS.(*ast.UnaryOpExpr); !ok {
		t.Fatalf("expected unary minus on left, got %#v", bin.LHS)
	}
}

func TestMemberAndCallChain(t *testing.T) {
	expr := parseExprString(t, "a.b(c)[0]")
	idx, ok := expr.(*ast.IndexExpr)
	if !ok {
		t.Fatalf("expected IndexExpr, got %#v", expr)
	}
	call, ok := idx.Target.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr target, got %#v", idx.Target)
	}
	if _, ok := call.Func.(*ast.MemberExpr); !ok {
		t.Fatalf("expected MemberExpr callee, got %#v", call.Func)
	}
}

func TestIfElseIfChain(t *testing.T) {
	src := `if a { pass } else if b { pass } else { pass };`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	stmt := p.parseStmt()
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	es := stmt.(*ast.ExprStmt)
	ifExpr, ok := es.Expr.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected IfExpr, got %#v", es.Expr)
	}
	blk, ok := ifExpr.FalseBody.(*ast.BlockStmt)
	if !ok || len(blk.Stmts) != 1 {
		t.Fatalf("expected else-if wrapped in one-statement block, got %#v", ifExpr.FalseBody)
	}
	if _, ok := blk.Stmts[0].(*ast.ExprStmt); !ok {
		t.Fatalf("expected ExprStmt wrapping nested if, got %#v", blk.Stmts[0])
	}
}

func TestIfCasePattern(t *testing.T) {
	src := `if x case Some(v) { pass } else { pass };`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	stmt := p.parseStmt()
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	es := stmt.(*ast.ExprStmt)
	if _, ok := es.Expr.(*ast.IfCaseExpr); !ok {
		t.Fatalf("expected IfCaseExpr, got %#v", es.Expr)
	}
}

func TestFunctionDefWithImplicitArgs(t *testing.T) {
	src := `int add(implicit Context ctx, int a, int b) { return a + b; };`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	mod := p.Parse("t.cdr", false)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	var fn *ast.FunctionDef
	for _, d := range mod.Defs {
		if f, ok := d.(*ast.FunctionDef); ok {
			fn = f
		}
	}
	if fn == nil {
		t.Fatalf("expected a FunctionDef among module defs")
	}
	if fn.Name != "add" || len(fn.ArgNamesImplicit) != 1 || len(fn.ArgNames) != 2 {
		t.Fatalf("unexpected function shape: %#v", fn)
	}
}

func TestTypeDefShortForm(t *testing.T) {
	src := `type Point(int x, int y);`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	mod := p.Parse("t.cdr", false)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	var td *ast.TypeDef
	for _, d := range mod.Defs {
		if t, ok := d.(*ast.TypeDef); ok {
			td = t
		}
	}
	if td == nil || len(td.Constructors) != 1 || td.Constructors[0].Name != "Point" {
		t.Fatalf("unexpected type def: %#v", td)
	}
}

func TestTypeDefLongFormSumType(t *testing.T) {
	src := `type Option { Some(int v); None; };`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	mod := p.Parse("t.cdr", false)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	var td *ast.TypeDef
	for _, d := range mod.Defs {
		if t, ok := d.(*ast.TypeDef); ok {
			td = t
		}
	}
	if td == nil || len(td.Constructors) != 2 {
		t.Fatalf("unexpected sum type def: %#v", td)
	}
	if td.Constructors[1].FieldTypes != nil {
		t.Fatalf("expected argument-less constructor, got %#v", td.Constructors[1])
	}
}

func TestImportDeclaration(t *testing.T) {
	src := "import foo/bar.ce\n"
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	mod := p.Parse("t.cdr", false)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	var found bool
	for _, d := range mod.Defs {
		if imp, ok := d.(*ast.ImportDef); ok && imp.Filename == "foo/bar.ce" {
			found = true
			if imp.Namespace != "bar" {
				t.Fatalf("expected default namespace 'bar', got %q", imp.Namespace)
			}
		}
	}
	if !found {
		t.Fatalf("expected to find the import among module defs")
	}
}

func TestUnionTypeExpr(t *testing.T) {
	src := `int|string x() { return null; };`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	mod := p.Parse("t.cdr", false)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	fn, ok := mod.Defs[len(mod.Defs)-1].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("expected a FunctionDef, got %#v", mod.Defs[len(mod.Defs)-1])
	}
	if _, ok := fn.ReturnType.(*ast.UnionType); !ok {
		t.Fatalf("expected a UnionType return type, got %#v", fn.ReturnType)
	}
}

func TestPointerAndOptionTypeSigils(t *testing.T) {
	src := `int* ptr_field() { return null; }; int? opt_field() { return null; };`
	toks := lexer.New("t.cdr", src).All()
	p := New(toks)
	mod := p.Parse("t.cdr", false)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	var sawPointer, sawOption bool
	for _, d := range mod.Defs {
		fn, ok := d.(*ast.FunctionDef)
		if !ok {
			continue
		}
		switch fn.ReturnType.(type) {
		case *ast.PointerType:
			sawPointer = true
		case *ast.OptionType:
			sawOption = true
		}
	}
	if !sawPointer || !sawOption {
		t.Fatalf("expected both a pointer and an option return type among defs")
	}
}
