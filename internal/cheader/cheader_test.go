package cheader

import (
	"testing"

	"cedar/internal/ast"
	"cedar/internal/diag"
)

func tokenValues(toks []Token) []string {
	var out []string
	for _, t := range toks {
		out = append(out, t.Value)
	}
	return out
}

func TestLexerSkipsIgnoredAnnotationCall(t *testing.T) {
	lx := New("sdl.h", `SDLCALL int f(void);`, map[string]bool{"SDLCALL": true})
	toks := lx.All()
	vals := tokenValues(toks)
	if len(vals) < 2 || vals[0] != "int" {
		t.Fatalf("expected SDLCALL(...) to be skipped, got %v", vals)
	}
}

func TestLexerDirectiveEmitsEndToken(t *testing.T) {
	lx := New("h.h", "#define FOO 1\nint x;", nil)
	toks := lx.All()
	var sawEnd bool
	for _, tok := range toks {
		if tok.Type == PPDirectiveEnd {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatalf("expected a PPDIRECTIVE_END token, got %v", toks)
	}
}

func TestParseStructWithFields(t *testing.T) {
	src := `struct Point { int x; int y; };`
	diags := &diag.Stream{}
	mod := Parse("shapes.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	if len(mod.Defs) != 1 {
		t.Fatalf("expected one definition, got %d: %#v", len(mod.Defs), mod.Defs)
	}
	sd, ok := mod.Defs[0].(*ast.CStructDef)
	if !ok {
		t.Fatalf("expected *ast.CStructDef, got %#v", mod.Defs[0])
	}
	if sd.Name != "Point" || len(sd.FieldTypes) != 2 || sd.FieldNames[0] != "x" || sd.FieldNames[1] != "y" {
		t.Fatalf("unexpected struct shape: %#v", sd)
	}
}

func TestParseFunctionPrototypeWithVarargs(t *testing.T) {
	src := `int printf(const char *fmt, ...);`
	diags := &diag.Stream{}
	mod := Parse("stdio.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	if len(mod.Defs) != 1 {
		t.Fatalf("expected one definition, got %d", len(mod.Defs))
	}
	fn, ok := mod.Defs[0].(*ast.CFunctionDef)
	if !ok {
		t.Fatalf("expected *ast.CFunctionDef, got %#v", mod.Defs[0])
	}
	if fn.Name != "printf" || !fn.Varargs || len(fn.ArgTypes) != 1 {
		t.Fatalf("unexpected function shape: %#v", fn)
	}
}

func TestParseFunctionPointerTypedef(t *testing.T) {
	src := `typedef void (*Callback)(int code);`
	diags := &diag.Stream{}
	mod := Parse("cb.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	td, ok := mod.Defs[0].(*ast.CTypedefDef)
	if !ok {
		t.Fatalf("expected *ast.CTypedefDef, got %#v", mod.Defs[0])
	}
	fp, ok := td.Definition.(*ast.CFunctionPointerType)
	if !ok || len(fp.ArgTypes) != 1 {
		t.Fatalf("expected a one-argument function pointer type, got %#v", td.Definition)
	}
}

func TestParseExternDeclaresVariableWithoutStorage(t *testing.T) {
	src := `extern int errno_value;`
	diags := &diag.Stream{}
	mod := Parse("errno.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	vd, ok := mod.Defs[0].(*ast.CVariableDef)
	if !ok {
		t.Fatalf("expected *ast.CVariableDef for an extern declaration, got %#v", mod.Defs[0])
	}
	if vd.Name != "errno_value" {
		t.Fatalf("unexpected name: %q", vd.Name)
	}
}

func TestParsePlainGlobalOwnsStorage(t *testing.T) {
	src := `int global_counter;`
	diags := &diag.Stream{}
	mod := Parse("g.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	vd, ok := mod.Defs[0].(*ast.CGlobalVarDef)
	if !ok {
		t.Fatalf("expected *ast.CGlobalVarDef, got %#v", mod.Defs[0])
	}
	if vd.Name != "global_counter" {
		t.Fatalf("unexpected name: %q", vd.Name)
	}
}

func TestParseAnonymousEnumGetsSyntheticName(t *testing.T) {
	src := `typedef enum { RED, GREEN, BLUE } Color;`
	diags := &diag.Stream{}
	mod := Parse("color.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	if len(mod.Defs) != 2 {
		t.Fatalf("expected the anonymous enum plus its typedef, got %d: %#v", len(mod.Defs), mod.Defs)
	}
	ed, ok := mod.Defs[0].(*ast.CEnumDef)
	if !ok || len(ed.Enumerators) != 3 {
		t.Fatalf("expected a 3-member enum definition, got %#v", mod.Defs[0])
	}
	td, ok := mod.Defs[1].(*ast.CTypedefDef)
	if !ok {
		t.Fatalf("expected *ast.CTypedefDef, got %#v", mod.Defs[1])
	}
	nt, ok := td.Definition.(*ast.CNamedType)
	if !ok || nt.Name != ed.Name || nt.TypeKind != "enum" {
		t.Fatalf("expected the typedef to reference the synthesized enum name, got %#v", td.Definition)
	}
}

func TestParseIncludeGuardStripsOwnDefine(t *testing.T) {
	src := "#ifndef FOO_H\n#define FOO_H\nint x;\n#endif\n"
	diags := &diag.Stream{}
	mod := Parse("foo.h", src, nil, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}
	if len(mod.Defs) != 1 {
		t.Fatalf("expected the guard's own #define to be stripped, got %d: %#v", len(mod.Defs), mod.Defs)
	}
	if _, ok := mod.Defs[0].(*ast.CGlobalVarDef); !ok {
		t.Fatalf("expected the surviving definition to be the global var, got %#v", mod.Defs[0])
	}
}
