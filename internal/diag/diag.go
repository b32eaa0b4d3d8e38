// Package diag implements the compiler's diagnostic stream: the three
// error kinds named by the source-language error-handling design (lex,
// syntax, type) plus the pretty-printing used to render them for humans.
package diag

import (
	"fmt"
	"strings"

	"github.com/kr/text"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Kind identifies which phase raised a Diagnostic.
type Kind string

const (
	LexError    Kind = "LexError"
	SyntaxError Kind = "SyntaxError"
	TypeError   Kind = "TypeError"
)

// Location is the {file, line, column} triple carried by every AST and IR
// node. It is deliberately excluded from equality comparisons performed by
// callers that compare AST/IR nodes structurally (those comparisons should
// project Location out first).
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is one entry of the diagnostic stream: {kind, location, message}.
type Diagnostic struct {
	Kind     Kind
	Location Location
	Message  string
	// SourceLine, when set, is rendered under the message with a caret
	// pointing at Location.Column.
	SourceLine string
}

func New(kind Kind, loc Location, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Location: loc, Message: message}
}

func (d *Diagnostic) WithSource(line string) *Diagnostic {
	d.SourceLine = line
	return d
}

func (d *Diagnostic) Error() string {
	head := fmt.Sprintf("%s: %s", d.Kind, d.Message)
	detail := fmt.Sprintf("at %s", d.Location)
	if d.SourceLine != "" {
		detail += fmt.Sprintf("\n%s\n%s^", d.SourceLine, strings.Repeat(" ", max(0, d.Location.Column-1)))
	}
	return head + "\n" + text.Indent(detail, "  ")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Stream accumulates diagnostics across a compilation run. It is never
// thrown as a Go exception; every phase described in SPEC_FULL.md §7
// appends to it and keeps going.
type Stream struct {
	entries []*Diagnostic
}

func (s *Stream) Add(d *Diagnostic) {
	s.entries = append(s.entries, d)
}

func (s *Stream) Lexf(loc Location, format string, args ...any) *Diagnostic {
	d := New(LexError, loc, fmt.Sprintf(format, args...))
	s.Add(d)
	return d
}

func (s *Stream) Syntaxf(loc Location, format string, args ...any) *Diagnostic {
	d := New(SyntaxError, loc, fmt.Sprintf(format, args...))
	s.Add(d)
	return d
}

func (s *Stream) Typef(loc Location, format string, args ...any) *Diagnostic {
	d := New(TypeError, loc, fmt.Sprintf(format, args...))
	s.Add(d)
	return d
}

func (s *Stream) Entries() []*Diagnostic { return s.entries }

func (s *Stream) HasErrors() bool { return len(s.entries) > 0 }

// Render formats the whole stream for a terminal, using color only when
// useColor is set (the caller decides this via UseColor).
func (s *Stream) Render(useColor bool) string {
	var b strings.Builder
	for i, d := range s.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		if useColor {
			b.WriteString(colorize(d))
		} else {
			b.WriteString(d.Error())
		}
	}
	return b.String()
}

func colorize(d *Diagnostic) string {
	const (
		red    = "\x1b[31m"
		yellow = "\x1b[33m"
		reset  = "\x1b[0m"
	)
	color := yellow
	if d.Kind == TypeError {
		color = red
	}
	return color + d.Error() + reset
}

// UseColor reports whether the file descriptor fd (e.g. os.Stderr.Fd())
// is a terminal, via mattn/go-isatty, the same guard the teacher's terminal
// tooling uses for colorized output.
func UseColor(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Wrap attaches a stack trace to an internal (non-diagnostic) error, per
// SPEC_FULL.md §7's distinction between source-program diagnostics and
// host/programmer-facing Go errors.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Errorf(format string, args ...any) error {
	return errors.Errorf(format, args...)
}
