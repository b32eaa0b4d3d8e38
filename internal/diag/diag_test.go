package diag

import (
	"strings"
	"testing"
)

func TestDiagnosticErrorIndentsDetailBlock(t *testing.T) {
	d := New(SyntaxError, Location{File: "m.ce", Line: 3, Column: 5}, "unexpected token")
	got := d.Error()
	if !strings.HasPrefix(got, "SyntaxError: unexpected token\n") {
		t.Fatalf("unexpected head line: %q", got)
	}
	if !strings.Contains(got, "  at m.ce:3:5") {
		t.Fatalf("expected an indented location line, got %q", got)
	}
}

func TestDiagnosticErrorIncludesIndentedCaret(t *testing.T) {
	d := New(LexError, Location{File: "m.ce", Line: 1, Column: 3}, "bad escape").
		WithSource(`"\q"`)
	got := d.Error()
	if !strings.Contains(got, `"\q"`) {
		t.Fatalf("expected the source line to appear, got %q", got)
	}
	if !strings.Contains(got, "^") {
		t.Fatalf("expected a caret marker, got %q", got)
	}
}

func TestStreamRenderIncludesEveryEntry(t *testing.T) {
	s := &Stream{}
	s.Lexf(Location{File: "a.ce", Line: 1, Column: 1}, "bad token %q", "@")
	s.Typef(Location{File: "a.ce", Line: 2, Column: 1}, "unknown type %q", "Foo")
	rendered := s.Render(false)
	if strings.Count(rendered, "LexError") != 1 || strings.Count(rendered, "TypeError") != 1 {
		t.Fatalf("expected both entries rendered, got %q", rendered)
	}
	if !s.HasErrors() || len(s.Entries()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(s.Entries()))
	}
}

func TestStreamRenderColorizesWhenRequested(t *testing.T) {
	s := &Stream{}
	s.Typef(Location{File: "a.ce", Line: 1, Column: 1}, "boom")
	rendered := s.Render(true)
	if !strings.Contains(rendered, "\x1b[31m") {
		t.Fatalf("expected a red ANSI escape for a TypeError, got %q", rendered)
	}
}

func TestWrapAndErrorfProduceNonNilErrors(t *testing.T) {
	base := Errorf("declare: unknown type %q", "Foo")
	if base == nil || !strings.Contains(base.Error(), `unknown type "Foo"`) {
		t.Fatalf("unexpected Errorf result: %v", base)
	}
	wrapped := Wrap(base, "resolving import")
	if wrapped == nil || !strings.Contains(wrapped.Error(), "resolving import") {
		t.Fatalf("unexpected Wrap result: %v", wrapped)
	}
}
