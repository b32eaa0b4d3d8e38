// Package declare implements the two-pass "declare, then resolve" type
// construction original_source/typecheck/declare.py performs before
// type-checking can run: every module's type definitions are first
// declared as uninitialized shells (so mutually-recursive types across
// files can reference each other), then every shell's body, function
// signature, and global-variable type is resolved against those shells.
package declare

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"cedar/internal/ast"
	"cedar/internal/clog"
	"cedar/internal/diag"
	"cedar/internal/ir"
	"cedar/internal/machine"
)

// Declarer carries the cross-module state needed to declare and resolve
// every module of a compilation together: the type shells built so far,
// keyed by filename, and the layout optimizer's cache.
type Declarer struct {
	Modules map[string]*ir.ModuleDefinition
	machine *machine.Description
	layout  *layoutCache

	// Logger receives layout debug-dump output when non-nil. Left unset
	// (nil, which clog.Logger.Debugf treats as silent) by New so callers
	// that don't care about driver chatter pay nothing for it.
	Logger *clog.Logger
}

func New(desc *machine.Description) *Declarer {
	return &Declarer{
		Modules: map[string]*ir.ModuleDefinition{},
		machine: desc,
		layout:  newLayoutCache(),
	}
}

// ModuleNames returns every declared module's filename, sorted, so a
// caller driving multiple modules together (internal/pipeline) can
// iterate them in a deterministic order without keeping its own
// parallel bookkeeping of what's been declared so far.
func (d *Declarer) ModuleNames() []string {
	names := maps.Keys(d.Modules)
	sort.Strings(names)
	return names
}

// DeclareModule runs pass one over a parsed module: every type
// definition becomes an uninitialized ir.TypeDefinition shell,
// registered by filename so later modules in the same compilation can
// already refer to it. C-side shells come from DeclareCHeader.
func (d *Declarer) DeclareModule(mod *ast.ModuleDef) *ir.ModuleDefinition {
	irMod := &ir.ModuleDefinition{Filename: mod.Filename, MainModule: mod.MainModule}
	for _, node := range mod.Defs {
		if n, ok := node.(*ast.TypeDef); ok {
			tagless := len(n.Constructors) == 0
			for _, ctor := range n.Constructors {
				if id, ok := ctor.TagValue.(*ast.IdentifierExpr); ok && id.Name == "void" {
					tagless = true
				}
			}
			irMod.Types = append(irMod.Types, &ir.TypeDefinition{
				Filename: mod.Filename, Name: n.Name, Exported: n.Export,
				Tagless: tagless, OptimizeLayout: true,
			})
			irMod.DeclOrder = append(irMod.DeclOrder, n.Name)
		}
	}
	d.Modules[mod.Filename] = irMod
	return irMod
}

// DeclareCHeader runs pass one over a parsed C header: every struct,
// union, enum, and typedef becomes an uninitialized IR shell, the same
// way DeclareModule handles the source language's type definitions,
// registered under the header's own filename so imports can find it.
func (d *Declarer) DeclareCHeader(cmod *ast.CModuleDef) *ir.ModuleDefinition {
	irMod := &ir.ModuleDefinition{Filename: cmod.Filename}
	for _, node := range cmod.Defs {
		switch n := node.(type) {
		case *ast.CStructDef:
			irMod.CTypes = append(irMod.CTypes, &ir.CStructDefinition{Filename: cmod.Filename, Name: n.Name})
			irMod.DeclOrder = append(irMod.DeclOrder, n.Name)
		case *ast.CUnionDef:
			irMod.CTypes = append(irMod.CTypes, &ir.CUnionDefinition{Filename: cmod.Filename, Name: n.Name})
			irMod.DeclOrder = append(irMod.DeclOrder, n.Name)
		case *ast.CEnumDef:
			irMod.CTypes = append(irMod.CTypes, &ir.CEnumDefinition{Filename: cmod.Filename, Name: n.Name, Enumerators: n.Enumerators})
			irMod.DeclOrder = append(irMod.DeclOrder, n.Name)
		case *ast.CTypedefDef:
			irMod.CTypes = append(irMod.CTypes, &ir.CTypedefDefinition{Filename: cmod.Filename, Name: n.Name})
			irMod.DeclOrder = append(irMod.DeclOrder, n.Name)
		}
	}
	d.Modules[cmod.Filename] = irMod
	return irMod
}

// findShell looks up a declared type shell by name within one module.
// The result may be a *ir.TypeDefinition (implements ir.Type directly)
// or a CType-family shell (implements ir.CType, not ir.Type) — callers
// distinguish with a type switch/assertion, since a language-side type
// reference and a C-side type reference resolve differently.
func (d *Declarer) findShell(filename, name string) (any, bool) {
	mod, ok := d.Modules[filename]
	if !ok {
		return nil, false
	}
	for _, t := range mod.Types {
		if t.Name == name {
			return t, true
		}
	}
	for _, ct := range mod.CTypes {
		switch c := ct.(type) {
		case *ir.CStructDefinition:
			if c.Name == name {
				return c, true
			}
		case *ir.CUnionDefinition:
			if c.Name == name {
				return c, true
			}
		case *ir.CEnumDefinition:
			if c.Name == name {
				return c, true
			}
		case *ir.CTypedefDefinition:
			if c.Name == name {
				return c, true
			}
		}
	}
	return nil, false
}

// lookupNamed finds a named type shell across a namespace's candidate
// filenames, preferring an exported, or same-module, match, matching
// lookup_type's visibility rule.
func (d *Declarer) lookupNamed(filenames []string, name, currentModule string) (any, error) {
	var found any
	var nonExported string
	for _, fn := range filenames {
		shell, ok := d.findShell(fn, name)
		if !ok {
			continue
		}
		switch t := shell.(type) {
		case *ir.CStructDefinition, *ir.CUnionDefinition, *ir.CEnumDefinition, *ir.CTypedefDefinition:
			found = shell
		case *ir.TypeDefinition:
			if t.Exported || fn == currentModule {
				found = shell
			} else {
				nonExported = fn + ":" + name
			}
		}
	}
	if found == nil && nonExported != "" {
		return nil, errors.Errorf("attempting to import non-exported type %s", nonExported)
	}
	if found == nil {
		return nil, errors.Errorf("unknown type %q", name)
	}
	return found, nil
}

var builtinPrimitives = map[string]ir.Type{
	"u8":    &ir.IntegerType{Bits: 8, Signed: false},
	"u16":   &ir.IntegerType{Bits: 16, Signed: false},
	"u32":   &ir.IntegerType{Bits: 32, Signed: false},
	"u64":   &ir.IntegerType{Bits: 64, Signed: false},
	"i8":    &ir.IntegerType{Bits: 8, Signed: true},
	"i16":   &ir.IntegerType{Bits: 16, Signed: true},
	"i32":   &ir.IntegerType{Bits: 32, Signed: true},
	"i64":   &ir.IntegerType{Bits: 64, Signed: true},
	"int":   &ir.IntegerType{Bits: 32, Signed: true},
	"uint":  &ir.IntegerType{Bits: 32, Signed: false},
	"byte":  &ir.IntegerType{Bits: 8, Signed: false},
	"float": &ir.FloatType{Bits: 32},
	"bool":  &ir.BoolType{},
	"void":  &ir.VoidType{},
}

// ResolveType turns an ast.TypeExpr into an ir.Type, resolving named
// references against already-declared shells. namespaces maps a
// namespace name to the ordered list of filenames it covers (the
// "implicit" namespace always includes currentModule).
func (d *Declarer) ResolveType(astType ast.TypeExpr, namespaces map[string][]string, currentModule string) (ir.Type, error) {
	switch t := astType.(type) {
	case *ast.NamedType:
		if t.Namespace == "" || t.Namespace == "implicit" {
			if prim, ok := builtinPrimitives[t.Name]; ok {
				return prim, nil
			}
		}
		ns := t.Namespace
		if ns == "" {
			ns = "implicit"
		}
		files, ok := namespaces[ns]
		if !ok {
			return nil, errors.Errorf("unknown namespace %q", ns)
		}
		shell, err := d.lookupNamed(files, t.Name, currentModule)
		if err != nil {
			return nil, err
		}
		ty, ok := shell.(ir.Type)
		if !ok {
			return nil, errors.Errorf("%q refers to a C type, not a value type", t.Name)
		}
		return ty, nil
	case *ast.PointerType:
		target, err := d.ResolveType(t.Target, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.PointerType{Target: target}, nil
	case *ast.ArraySliceType:
		elem, err := d.ResolveType(t.Elem, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayType{Elem: elem}, nil
	case *ast.OptionType:
		target, err := d.ResolveType(t.Target, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.OptionType{Target: target}, nil
	case *ast.TupleType:
		positional, err := d.resolveAll(t.Positional, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		named, err := d.resolveAll(t.Named, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.TupleType{Positional: positional, Named: named, Names: t.Names}, nil
	case *ast.UnionType:
		alts, err := d.resolveAll(t.Alternatives, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		sort.Slice(alts, func(i, j int) bool { return fmt.Sprint(alts[i]) < fmt.Sprint(alts[j]) })
		return &ir.UnionType{Types: alts}, nil
	case *ast.FunctionType:
		ret, err := d.ResolveType(t.ReturnType, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		args, err := d.resolveAll(t.ArgTypes, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.FunctionType{ReturnType: ret, ArgTypes: args, ArgNames: t.ArgNames}, nil
	case *ast.FailableType:
		// A failable type `T!` is sugar for a two-constructor sum type
		// resolved during type-checking, not here; declare only needs a
		// placeholder shape for signature purposes.
		target, err := d.ResolveType(t.Target, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.UnionType{Types: []ir.Type{target, &ir.UninferredType{}}}, nil
	default:
		return nil, errors.Errorf("declare: unsupported type expression %T", astType)
	}
}

func (d *Declarer) resolveAll(exprs []ast.TypeExpr, namespaces map[string][]string, currentModule string) ([]ir.Type, error) {
	out := make([]ir.Type, 0, len(exprs))
	for _, e := range exprs {
		ty, err := d.ResolveType(e, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		out = append(out, ty)
	}
	return out, nil
}

// ResolveModule runs pass two: fills in every declared shell's body, and
// collects the module's functions and global variables, resolving every
// type reference against shells now visible across the whole
// compilation (including other modules this one imports).
func (d *Declarer) ResolveModule(mod *ast.ModuleDef, diags *diag.Stream) {
	irMod := d.Modules[mod.Filename]
	namespaces := map[string][]string{"implicit": {mod.Filename}}
	for _, node := range mod.Defs {
		if n, ok := node.(*ast.ImportDef); ok {
			ns := n.Namespace
			if ns == "" {
				ns = "implicit"
			}
			namespaces[ns] = append(namespaces[ns], n.Filename)
		}
	}

	for _, node := range mod.Defs {
		switch n := node.(type) {
		case *ast.GlobalVarDef:
			ty, err := d.ResolveType(n.Type, namespaces, mod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			irMod.Variables = append(irMod.Variables, &ir.GlobalVariableDefinition{Filename: mod.Filename, Type: ty, Name: n.Name})

		case *ast.FunctionDef:
			retty, err := d.ResolveType(n.ReturnType, namespaces, mod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			argtys, err := d.resolveAll(n.ArgTypes, namespaces, mod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			argtysImplicit, err := d.resolveAll(n.ArgTypesImplicit, namespaces, mod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			irMod.Functions = append(irMod.Functions, &ir.FunctionDefinition{
				Filename: mod.Filename, ReturnType: retty, Name: n.Name,
				ArgTypesImplicit: argtysImplicit, ArgNamesImplicit: n.ArgNamesImplicit,
				ArgTypes: argtys, ArgNames: n.ArgNames, Exported: n.Export,
			})

		case *ast.TypeDef:
			shell, err := d.lookupNamed([]string{mod.Filename}, n.Name, mod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			tydef, ok := shell.(*ir.TypeDefinition)
			if !ok {
				continue
			}
			var ctors []*ir.TypeConstructor
			for idx, c := range n.Constructors {
				var ftys []ir.Type
				var fnames []string
				withoutArgs := c.FieldTypes == nil
				if !withoutArgs {
					ftys, err = d.resolveAll(c.FieldTypes, namespaces, mod.Filename)
					if err != nil {
						diags.Typef(c.Loc(), "%s", err)
						continue
					}
					fnames = c.FieldNames
				}
				tag := idx
				if c.TagValue != nil {
					if id, ok := c.TagValue.(*ast.IdentifierExpr); ok && id.Name == "void" {
						tag = idx
					} else if ie, ok := c.TagValue.(*ast.IntegerExpr); ok {
						tag = int(ie.Value)
					} else {
						diags.Typef(c.Loc(), "unsupported tag value for constructor %q", c.Name)
					}
				}
				ctors = append(ctors, &ir.TypeConstructor{
					Name: c.Name, FieldTypes: ftys, FieldNames: fnames,
					WithoutArgList: withoutArgs, TagValue: tag,
				})
			}
			tydef.Constructors = ctors

		case *ast.ImportDef:
			// namespace wiring already handled above; nothing else to do
			// at declare time.
		}
	}
}

// ResolveCHeader runs pass two over a parsed C header: fills in every
// struct/union/typedef shell's body and collects the header's function
// prototypes and global variable declarations.
func (d *Declarer) ResolveCHeader(cmod *ast.CModuleDef, diags *diag.Stream) {
	irMod := d.Modules[cmod.Filename]
	namespaces := map[string][]string{"implicit": {cmod.Filename}}
	for _, node := range cmod.Defs {
		if inc, ok := node.(*ast.CInclude); ok {
			namespaces["implicit"] = append(namespaces["implicit"], inc.Filename)
		}
	}

	for _, node := range cmod.Defs {
		switch n := node.(type) {
		case *ast.CStructDef:
			if n.FieldTypes == nil {
				continue
			}
			shell, err := d.lookupNamed([]string{cmod.Filename}, n.Name, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			cs, ok := shell.(*ir.CStructDefinition)
			if !ok {
				continue
			}
			ftys, err := d.resolveAllC(n.FieldTypes, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			cs.FieldTypes = ftys
			cs.FieldNames = n.FieldNames

		case *ast.CUnionDef:
			if n.FieldTypes == nil {
				continue
			}
			shell, err := d.lookupNamed([]string{cmod.Filename}, n.Name, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			cu, ok := shell.(*ir.CUnionDefinition)
			if !ok {
				continue
			}
			ftys, err := d.resolveAllC(n.FieldTypes, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			cu.FieldTypes = ftys
			cu.FieldNames = n.FieldNames

		case *ast.CTypedefDef:
			shell, err := d.lookupNamed([]string{cmod.Filename}, n.Name, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			def, err := d.resolveCType(n.Definition, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			if td, ok := shell.(*ir.CTypedefDefinition); ok {
				td.Definition = def
			}

		case *ast.CFunctionDef:
			retty, err := d.resolveCType(n.ReturnType, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			argtys, err := d.resolveAllC(n.ArgTypes, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			irMod.CFunctions = append(irMod.CFunctions, &ir.CFunctionDefinition{
				Filename: cmod.Filename, ReturnType: retty, Name: n.Name,
				ArgTypes: argtys, ArgNames: n.ArgNames, Varargs: n.Varargs,
			})

		case *ast.CGlobalVarDef:
			ty, err := d.resolveCType(n.Type, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			irMod.CVariables = append(irMod.CVariables, &ir.CGlobalVariableDefinition{
				Filename: cmod.Filename, Type: ty, Name: n.Name, HasAddress: true, Assignable: true,
			})

		case *ast.CVariableDef:
			ty, err := d.resolveCType(n.Type, namespaces, cmod.Filename)
			if err != nil {
				diags.Typef(n.Loc(), "%s", err)
				continue
			}
			irMod.CVariables = append(irMod.CVariables, &ir.CGlobalVariableDefinition{
				Filename: cmod.Filename, Type: ty, Name: n.Name, HasAddress: false, Assignable: false,
			})
		}
	}
}

// resolveCType resolves a C type expression, used for typedef bodies and
// struct/union field types.
func (d *Declarer) resolveCType(cty ast.CTypeExpr, namespaces map[string][]string, currentModule string) (ir.Type, error) {
	switch t := cty.(type) {
	case *ast.CNamedType:
		if t.TypeKind == "" {
			if _, ok := d.machine.Lookup(t.Name); ok {
				return &ir.CNamedType{Name: t.Name}, nil
			}
		}
		if _, err := d.lookupNamed(namespaces["implicit"], t.Name, currentModule); err != nil {
			return nil, err
		}
		return &ir.CNamedType{Name: t.Name, TypeKind: t.TypeKind}, nil
	case *ast.CPointerType:
		target, err := d.resolveCType(t.Target, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.PointerType{Target: target}, nil
	case *ast.CConstType:
		target, err := d.resolveCType(t.Target, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.CConstType{Target: target}, nil
	case *ast.CArrayType:
		elem, err := d.resolveCType(t.Elem, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.CArrayType{Elem: elem}, nil
	case *ast.CFunctionPointerType:
		ret, err := d.resolveCType(t.ReturnType, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		args, err := d.resolveAllC(t.ArgTypes, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		return &ir.CFunctionPointerType{ReturnType: ret, ArgTypes: args, ArgNames: t.ArgNames}, nil
	default:
		return nil, errors.Errorf("declare: unsupported C type expression %T", cty)
	}
}

func (d *Declarer) resolveAllC(exprs []ast.CTypeExpr, namespaces map[string][]string, currentModule string) ([]ir.Type, error) {
	out := make([]ir.Type, 0, len(exprs))
	for _, e := range exprs {
		ty, err := d.resolveCType(e, namespaces, currentModule)
		if err != nil {
			return nil, err
		}
		out = append(out, ty)
	}
	return out, nil
}
