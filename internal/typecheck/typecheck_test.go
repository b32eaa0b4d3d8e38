package typecheck

import (
	"testing"

	"cedar/internal/ast"
	"cedar/internal/declare"
	"cedar/internal/diag"
	"cedar/internal/ir"
	"cedar/internal/machine"
)

func namedType(name string) *ast.NamedType { return &ast.NamedType{Name: name} }

func typecheckOneFunction(t *testing.T, mod *ast.ModuleDef) (*ir.FunctionDefinition, *diag.Stream) {
	t.Helper()
	d := declare.New(machine.LP64)
	d.DeclareModule(mod)
	declDiags := &diag.Stream{}
	d.ResolveModule(mod, declDiags)
	if declDiags.HasErrors() {
		t.Fatalf("unexpected declare diagnostics: %v", declDiags.Entries())
	}

	checkDiags := &diag.Stream{}
	c := New(d, checkDiags)
	c.TypecheckModule(mod)

	irMod := d.Modules[mod.Filename]
	for _, fn := range irMod.Functions {
		return fn, checkDiags
	}
	t.Fatalf("module %q declared no functions", mod.Filename)
	return nil, nil
}

func TestTypecheckReturnLiteralCoercesToDeclaredWidth(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "m.ce",
		Defs: []ast.Definition{
			&ast.FunctionDef{
				Name:       "answer",
				ReturnType: namedType("i8"),
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IntegerExpr{Value: 42}},
				},
			},
		},
	}
	fn, diags := typecheckOneFunction(t, mod)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected a single lowered instruction, got %d", len(fn.Body))
	}
	rv, ok := fn.Body[0].(*ir.ReturnValue)
	if !ok {
		t.Fatalf("expected ReturnValue, got %T", fn.Body[0])
	}
	li, ok := rv.Value.(*ir.LoadInteger)
	if !ok {
		t.Fatalf("expected the literal to stay a LoadInteger, got %T", rv.Value)
	}
	it, ok := li.Type.(*ir.IntegerType)
	if !ok || it.Bits != 8 {
		t.Fatalf("expected the literal coerced to i8, got %#v", li.Type)
	}
}

func TestTypecheckOversizedIntegerLiteralIsCompileError(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "m.ce",
		Defs: []ast.Definition{
			&ast.FunctionDef{
				Name:       "overflow",
				ReturnType: namedType("i8"),
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IntegerExpr{Value: 1000}},
				},
			},
		},
	}
	_, diags := typecheckOneFunction(t, mod)
	if !diags.HasErrors() {
		t.Fatalf("expected a range-check diagnostic for a literal that doesn't fit in i8")
	}
}

func TestTypecheckIfAsExpressionUnifiesBranchTypes(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "m.ce",
		Defs: []ast.Definition{
			&ast.FunctionDef{
				Name:       "pick",
				ReturnType: namedType("i32"),
				ArgTypes:   []ast.TypeExpr{namedType("bool")},
				ArgNames:   []string{"flag"},
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IfExpr{
						Cond: &ast.IdentifierExpr{Name: "flag"},
						TrueBody: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.ExprStmt{Expr: &ast.IntegerExpr{Value: 1}},
						}},
						FalseBody: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.ExprStmt{Expr: &ast.IntegerExpr{Value: 2}},
						}},
					}},
				},
			},
		},
	}
	_, diags := typecheckOneFunction(t, mod)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
}

func TestTypecheckAssignDeclaresFreshLocal(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "m.ce",
		Defs: []ast.Definition{
			&ast.FunctionDef{
				Name:       "makeLocal",
				ReturnType: namedType("i32"),
				Body: []ast.Stmt{
					&ast.AssignStmt{
						LHS: &ast.NewIdentifierExpr{Name: "x"},
						RHS: &ast.IntegerExpr{Value: 7},
					},
					&ast.ReturnStmt{Value: &ast.IdentifierExpr{Name: "x"}},
				},
			},
		},
	}
	fn, diags := typecheckOneFunction(t, mod)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	if len(fn.Body) != 2 {
		t.Fatalf("expected a store then a return, got %d instructions", len(fn.Body))
	}
	if _, ok := fn.Body[0].(*ir.StoreLocal); !ok {
		t.Fatalf("expected the let-binding to lower to StoreLocal, got %T", fn.Body[0])
	}
}

func TestTypecheckUndefinedIdentifierIsCompileError(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "m.ce",
		Defs: []ast.Definition{
			&ast.FunctionDef{
				Name:       "bad",
				ReturnType: namedType("i32"),
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IdentifierExpr{Name: "nowhere"}},
				},
			},
		},
	}
	fn, diags := typecheckOneFunction(t, mod)
	if !diags.HasErrors() {
		t.Fatalf("expected an undefined-identifier diagnostic")
	}
	rv := fn.Body[0].(*ir.ReturnValue)
	if _, ok := rv.Value.(*ir.CompileError); !ok {
		t.Fatalf("expected the undefined reference to lower to CompileError, got %T", rv.Value)
	}
}

func TestTypecheckConstructorPatternBindsFields(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "opt.ce",
		Defs: []ast.Definition{
			&ast.TypeDef{
				Name: "Shape",
				Constructors: []*ast.TypeConstructor{
					{Name: "Circle", FieldTypes: []ast.TypeExpr{namedType("i32")}, FieldNames: []string{"radius"}},
					{Name: "Empty"},
				},
			},
			&ast.FunctionDef{
				Name:       "radiusOr",
				ReturnType: namedType("i32"),
				ArgTypes:   []ast.TypeExpr{namedType("Shape")},
				ArgNames:   []string{"s"},
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.IfCaseExpr{
						Cond: &ast.IdentifierExpr{Name: "s"},
						Pattern: &ast.CallExpr{
							Func: &ast.IdentifierExpr{Name: "Circle"},
							Args: &ast.TupleExpr{Positional: []ast.Expr{&ast.NewIdentifierExpr{Name: "r"}}},
						},
						TrueBody: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.ExprStmt{Expr: &ast.IdentifierExpr{Name: "r"}},
						}},
						FalseBody: &ast.BlockStmt{Stmts: []ast.Stmt{
							&ast.ExprStmt{Expr: &ast.IntegerExpr{Value: 0}},
						}},
					}},
				},
			},
		},
	}
	_, diags := typecheckOneFunction(t, mod)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
}

func TestTypecheckTupleLiteralType(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "m.ce",
		Defs: []ast.Definition{
			&ast.FunctionDef{
				Name: "pair",
				ReturnType: &ast.TupleType{
					Positional: []ast.TypeExpr{namedType("i32"), namedType("i32")},
				},
				Body: []ast.Stmt{
					&ast.ReturnStmt{Value: &ast.TupleExpr{
						Positional: []ast.Expr{&ast.IntegerExpr{Value: 1}, &ast.IntegerExpr{Value: 2}},
					}},
				},
			},
		},
	}
	fn, diags := typecheckOneFunction(t, mod)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	rv := fn.Body[0].(*ir.ReturnValue)
	it, ok := rv.Value.(*ir.InitTuple)
	if !ok {
		t.Fatalf("expected InitTuple, got %T", rv.Value)
	}
	if it.Target == nil {
		t.Fatalf("expected InitTuple.Target to carry a MakeRtti node")
	}
}
