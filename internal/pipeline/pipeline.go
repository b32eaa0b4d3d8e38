// Package pipeline orchestrates the lexer, parser, C-header parser, type
// declarer, layout optimizer, and type checker over a set of
// already-loaded module sources, the way the teacher's
// internal/module.ModuleLoader walks a search path and caches already
// processed files — except here the caller supplies every source up
// front (file I/O is out of scope, per SPEC §1) and the cache is simply
// "already discovered", since nothing is loaded twice.
//
// A Run starts from a main file, follows every ast.ImportDef and
// ast.CInclude reachable from it (including the parser's own implicit
// __builtins__ imports), declares every discovered module before
// resolving any of them (mutual recursion across files requires this
// ordering, exactly as internal/declare's own two-pass design requires
// it within one file), lays out every aggregate type, and finally
// type-checks every language module's function and global bodies.
package pipeline

import (
	"sort"

	"cedar/internal/ast"
	"cedar/internal/cheader"
	"cedar/internal/clog"
	"cedar/internal/declare"
	"cedar/internal/diag"
	"cedar/internal/ir"
	"cedar/internal/lexer"
	"cedar/internal/machine"
	"cedar/internal/parser"
	"cedar/internal/typecheck"
)

// Sources maps a filename (as named by an ast.ImportDef or ast.CInclude)
// to its already-read text. A header-suffixed name (see HeaderSuffix) is
// parsed by internal/cheader; everything else by internal/lexer and
// internal/parser.
type Sources map[string]string

// HeaderSuffix marks a filename as a C header, dispatched to
// internal/cheader instead of the source language's own lexer/parser.
const HeaderSuffix = ".h"

// Options configures one Run.
type Options struct {
	// Machine supplies every primitive's {alignment, size}. Required.
	Machine *machine.Description
	// IgnoreTokens is forwarded to every cheader.Parse call, skipping
	// vendor annotation macros (e.g. SDL's SDLCALL) the way a header's
	// own build normally does via the preprocessor.
	IgnoreTokens map[string]bool
	// Logger receives driver and layout-optimizer debug chatter. A nil
	// Logger is silent, matching clog.Logger's nil-receiver behavior.
	Logger *clog.Logger
}

// Result is everything a Run produced: every module that was
// successfully declared, keyed by filename, plus the aggregated
// diagnostics and a verdict on whether emission may proceed.
type Result struct {
	Modules map[string]*ir.ModuleDefinition
	Diags   *diag.Stream
	// OK is true when no diagnostic in Diags is an error-level entry,
	// i.e. emission may proceed. Internal (non-diagnostic) failures —
	// an import with no source, a layout that can't be computed — never
	// flip this on their own; they're logged via Logger. A module with
	// no source is absent from Modules; a module whose layout failed
	// stays in it.
	OK bool
}

// parsedModule is one discovered file's parse tree, tagged with which
// parser produced it so the declare/resolve passes can dispatch.
type parsedModule struct {
	lang   *ast.ModuleDef
	header *ast.CModuleDef
}

// Run discovers every module transitively reachable from main (an
// already-read source file named by the caller), then declares, lays
// out, and type-checks all of them together.
func Run(main string, srcs Sources, opts Options) *Result {
	diags := &diag.Stream{}
	logger := opts.Logger

	discovered := discover(main, srcs, opts, diags, logger)

	d := declare.New(opts.Machine)
	d.Logger = logger

	for _, fn := range sortedKeys(discovered) {
		pm := discovered[fn]
		if pm.header != nil {
			d.DeclareCHeader(pm.header)
		} else {
			d.DeclareModule(pm.lang)
		}
	}

	// d.ModuleNames, not the discovery order above, drives every pass
	// from here on: it's the declarer's own bookkeeping of what
	// successfully got a shell, which is what resolve/layout/typecheck
	// actually need to walk.
	order := d.ModuleNames()
	for _, fn := range order {
		pm := discovered[fn]
		if pm.header != nil {
			d.ResolveCHeader(pm.header, diags)
		} else {
			d.ResolveModule(pm.lang, diags)
		}
	}

	layoutAll(d, logger)

	checker := typecheck.New(d, diags)
	for _, fn := range order {
		pm := discovered[fn]
		if pm.lang != nil {
			checker.TypecheckModule(pm.lang)
		}
	}

	return &Result{Modules: d.Modules, Diags: diags, OK: !diags.HasErrors()}
}

// discover walks every ast.ImportDef/ast.CInclude reachable from main,
// parsing each newly-seen filename exactly once. A name absent from
// srcs (most commonly one of the parser's own implicit __builtins__
// imports, since no embedded builtin source ships in this package) is
// logged as a warning through Logger and skipped rather than treated as
// fatal; no diagnostic is recorded, and the rest of the compilation
// still proceeds.
func discover(main string, srcs Sources, opts Options, diags *diag.Stream, logger *clog.Logger) map[string]*parsedModule {
	out := map[string]*parsedModule{}
	queue := []string{main}
	seen := map[string]bool{main: true}

	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]

		src, ok := srcs[fn]
		if !ok {
			logger.Warnf("pipeline: no source provided for import %q, skipping", fn)
			continue
		}

		var imports []string
		if isHeader(fn) {
			cmod := cheader.Parse(fn, src, opts.IgnoreTokens, diags)
			out[fn] = &parsedModule{header: cmod}
			imports = headerIncludes(cmod)
		} else {
			toks := lexer.New(fn, src).All()
			mod := parser.New(toks).Parse(fn, fn == main)
			out[fn] = &parsedModule{lang: mod}
			imports = moduleImports(mod)
		}

		for _, imp := range imports {
			if !seen[imp] {
				seen[imp] = true
				queue = append(queue, imp)
			}
		}
	}
	return out
}

func isHeader(filename string) bool {
	return len(filename) > len(HeaderSuffix) && filename[len(filename)-len(HeaderSuffix):] == HeaderSuffix
}

func moduleImports(mod *ast.ModuleDef) []string {
	var names []string
	for _, node := range mod.Defs {
		switch n := node.(type) {
		case *ast.ImportDef:
			names = append(names, n.Filename)
		case *ast.CInclude:
			names = append(names, n.Filename)
		}
	}
	return names
}

func headerIncludes(cmod *ast.CModuleDef) []string {
	var names []string
	for _, node := range cmod.Defs {
		if n, ok := node.(*ast.CInclude); ok {
			names = append(names, n.Filename)
		}
	}
	return names
}

func sortedKeys(m map[string]*parsedModule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// layoutAll runs the layout optimizer eagerly over every resolved
// module's user types and C types, the way a real driver would need
// every aggregate's {alignment, size} available before emission. A
// failure here is an internal error (SPEC §7: "no storage class for a
// recursive value type without indirection" and friends), not a
// diagnostic on the program's own source, so it's reported through
// Logger rather than the diag.Stream.
func layoutAll(d *declare.Declarer, logger *clog.Logger) {
	for _, mod := range d.Modules {
		for _, ty := range mod.Types {
			if _, err := d.OptimizeLayout(ty); err != nil {
				logger.Warnf("pipeline: layout of %s.%s: %v", mod.Filename, ty.Name, err)
			}
		}
		for _, ct := range mod.CTypes {
			if _, err := d.OptimizeLayout(ct); err != nil {
				logger.Warnf("pipeline: layout of a C type in %s: %v", mod.Filename, err)
			}
		}
	}
}
