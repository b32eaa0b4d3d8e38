package pipeline

import (
	"testing"

	"github.com/kr/pretty"

	"cedar/internal/ast"
	"cedar/internal/machine"
)

func TestIsHeaderRecognizesDotHSuffix(t *testing.T) {
	cases := map[string]bool{
		"stdio.h":    true,
		"m.ce":       false,
		"h":          false,
		"a/b/sdl2.h": true,
	}
	for name, want := range cases {
		if got := isHeader(name); got != want {
			t.Errorf("isHeader(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestModuleImportsCollectsImportDefAndCInclude(t *testing.T) {
	mod := &ast.ModuleDef{
		Filename: "main.ce",
		Defs: []ast.Definition{
			&ast.ImportDef{Filename: "util.ce"},
			&ast.CInclude{Filename: "stdio.h"},
			&ast.FunctionDef{Name: "main"},
		},
	}
	got := moduleImports(mod)
	want := []string{"util.ce", "stdio.h"}
	if diff := pretty.Diff(got, want); len(diff) != 0 {
		t.Fatalf("moduleImports mismatch: %v", diff)
	}
}

func TestHeaderIncludesCollectsCInclude(t *testing.T) {
	cmod := &ast.CModuleDef{
		Filename: "sdl.h",
		Defs: []ast.CDefinition{
			&ast.CInclude{Filename: "stdint.h"},
			&ast.CStructDef{Name: "SDL_Rect"},
		},
	}
	got := headerIncludes(cmod)
	want := []string{"stdint.h"}
	if diff := pretty.Diff(got, want); len(diff) != 0 {
		t.Fatalf("headerIncludes mismatch: %v", diff)
	}
}

func TestRunDeclaresAHeaderOnlyMainFile(t *testing.T) {
	srcs := Sources{
		"shapes.h": `struct Point { int x; int y; };`,
	}
	result := Run("shapes.h", srcs, Options{Machine: machine.LP64})
	if result.Diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", result.Diags.Entries())
	}
	if !result.OK {
		t.Fatalf("expected OK, got diagnostics: %v", result.Diags.Entries())
	}
	mod, ok := result.Modules["shapes.h"]
	if !ok {
		t.Fatalf("expected shapes.h to be declared, got %v", result.Modules)
	}
	if len(mod.CTypes) != 1 {
		t.Fatalf("expected one C type, got %d", len(mod.CTypes))
	}
}

func TestRunRecordsWarningAndSkipsMissingImport(t *testing.T) {
	srcs := Sources{
		"a.h": `#include "missing.h"
struct A { int v; };`,
	}
	result := Run("a.h", srcs, Options{Machine: machine.LP64})
	if !result.OK {
		t.Fatalf("a missing import should be an internal warning, not a diagnostic: %v", result.Diags.Entries())
	}
	if _, ok := result.Modules["missing.h"]; ok {
		t.Fatalf("expected missing.h to be absent from Modules")
	}
	if _, ok := result.Modules["a.h"]; !ok {
		t.Fatalf("expected a.h to still be declared despite its missing include")
	}
}
