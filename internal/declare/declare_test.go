package declare

import (
	"testing"

	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/ir"
	"cedar/internal/machine"
)

func namedType(name string) *ast.NamedType { return &ast.NamedType{Name: name} }

func TestResolveTypeBuiltinPrimitive(t *testing.T) {
	d := New(machine.LP64)
	ty, err := d.ResolveType(namedType("i32"), map[string][]string{"implicit": {"m.ce"}}, "m.ce")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it, ok := ty.(*ir.IntegerType)
	if !ok || it.Bits != 32 || !it.Signed {
		t.Fatalf("expected a signed 32-bit integer, got %#v", ty)
	}
}

func TestDeclareAndResolveSimpleStruct(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "point.ce",
		Defs: []ast.Definition{
			&ast.TypeDef{
				Name: "Point",
				Constructors: []*ast.TypeConstructor{
					{Name: "Point", FieldTypes: []ast.TypeExpr{namedType("i32"), namedType("i8")}, FieldNames: []string{"x", "y"}},
				},
			},
		},
	}
	d := New(machine.LP64)
	d.DeclareModule(mod)
	diags := &diag.Stream{}
	d.ResolveModule(mod, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}

	irMod := d.Modules["point.ce"]
	if len(irMod.Types) != 1 || irMod.Types[0].Name != "Point" {
		t.Fatalf("expected one resolved type named Point, got %#v", irMod.Types)
	}
	layout, err := d.OptimizeLayout(irMod.Types[0])
	if err != nil {
		t.Fatalf("unexpected layout error: %v", err)
	}
	// i8 (align 1, size 1) sorts ahead of i32 (align 4, size 4); 3 bytes
	// of padding realign the i32, for 8 bytes in all.
	if layout.Alignment != 4 || layout.Size != 8 {
		t.Fatalf("expected alignment 4 size 8, got %#v", layout)
	}
}

func TestDeclareSumTypeTagByteSpliced(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "opt.ce",
		Defs: []ast.Definition{
			&ast.TypeDef{
				Name: "Option",
				Constructors: []*ast.TypeConstructor{
					{Name: "Some", FieldTypes: []ast.TypeExpr{namedType("i32")}, FieldNames: []string{"value"}},
					{Name: "None"},
				},
			},
		},
	}
	d := New(machine.LP64)
	d.DeclareModule(mod)
	diags := &diag.Stream{}
	d.ResolveModule(mod, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}

	tydef := d.Modules["opt.ce"].Types[0]
	if tydef.Tagless {
		t.Fatalf("a two-constructor sum type should carry a tag")
	}
	layout, err := d.OptimizeLayout(tydef)
	if err != nil {
		t.Fatalf("unexpected layout error: %v", err)
	}
	// Some carries a 4-byte i32; the tag byte rounds the type back up to
	// an 8-byte, 4-byte-aligned whole.
	if layout.Alignment != 4 || layout.Size != 8 {
		t.Fatalf("expected alignment 4 size 8, got %#v", layout)
	}
	for _, ctor := range tydef.Constructors {
		found := false
		for _, name := range ctor.LayoutNames {
			if name == "__index__" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected constructor %q to carry a spliced __index__ field, got %v", ctor.Name, ctor.LayoutNames)
		}
	}
}

func TestDeclareCHeaderStructFieldOrderPreserved(t *testing.T) {
	cmod := &ast.CModuleDef{
		Filename: "point.h",
		Defs: []ast.CDefinition{
			&ast.CStructDef{
				Name:       "CPoint",
				FieldTypes: []ast.CTypeExpr{&ast.CNamedType{Name: "char"}, &ast.CNamedType{Name: "int"}},
				FieldNames: []string{"tag", "value"},
			},
		},
	}
	d := New(machine.LP64)
	d.DeclareCHeader(cmod)
	diags := &diag.Stream{}
	d.ResolveCHeader(cmod, diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.Entries())
	}

	cs := d.Modules["point.h"].CTypes[0].(*ir.CStructDefinition)
	layout, err := d.OptimizeLayout(cs)
	if err != nil {
		t.Fatalf("unexpected layout error: %v", err)
	}
	if cs.LayoutNames[0] != "tag" {
		t.Fatalf("expected declared field order to be preserved, got %v", cs.LayoutNames)
	}
	// char (1 byte) then 3 bytes padding to align the following int.
	if layout.Alignment != 4 || layout.Size != 8 {
		t.Fatalf("expected alignment 4 size 8 (char + padding + int), got %#v", layout)
	}
}

func TestOptimizeLayoutIsCachedPerType(t *testing.T) {
	d := New(machine.LP64)
	ty := &ir.IntegerType{Bits: 64, Signed: true}
	l1, err := d.OptimizeLayout(ty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l2, err := d.OptimizeLayout(ty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l1 != l2 {
		t.Fatalf("expected identical cached layout, got %#v vs %#v", l1, l2)
	}
}

func TestResolveTypeUnknownNamedTypeFails(t *testing.T) {
	d := New(machine.LP64)
	_, err := d.ResolveType(namedType("DoesNotExist"), map[string][]string{"implicit": {"m.ce"}}, "m.ce")
	if err == nil {
		t.Fatalf("expected an error resolving an unknown type")
	}
}
