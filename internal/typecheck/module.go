package typecheck

import (
	"github.com/pkg/errors"

	"cedar/internal/ast"
	"cedar/internal/ir"
)

// lookupFunction finds a function by name across the current module's
// "implicit" namespace (itself plus unqualified imports).
func (c *Checker) lookupFunction(name string) (*ir.FunctionDefinition, error) {
	return c.lookupFunctionIn(c.namespaces["implicit"], name)
}

func (c *Checker) lookupFunctionIn(files []string, name string) (*ir.FunctionDefinition, error) {
	for _, fn := range files {
		mod, ok := c.Declare.Modules[fn]
		if !ok {
			continue
		}
		for _, f := range mod.Functions {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return nil, errors.Errorf("unknown function %q", name)
}

// lookupCFunction finds a C function prototype by name across the
// current module's implicit namespace — the same namespace walk as
// lookupFunction, reading the CFunctions of each header module found
// there (internal/declare fills them in on the header's own module).
func (c *Checker) lookupCFunction(name string) (*ir.CFunctionDefinition, error) {
	for _, fn := range c.namespaces["implicit"] {
		mod, ok := c.Declare.Modules[fn]
		if !ok {
			continue
		}
		for _, f := range mod.CFunctions {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return nil, errors.Errorf("unknown C function %q", name)
}

func (c *Checker) lookupVariable(name string) (ir.Instruction, error) {
	return c.lookupVariableIn(c.namespaces["implicit"], name)
}

func (c *Checker) lookupVariableIn(files []string, name string) (ir.Instruction, error) {
	for _, fn := range files {
		mod, ok := c.Declare.Modules[fn]
		if !ok {
			continue
		}
		for _, v := range mod.Variables {
			if v.Name == name {
				lg := &ir.LoadGlobal{Filename: v.Filename, Name: v.Name}
				lg.Type = v.Type
				return lg, nil
			}
		}
	}
	return nil, errors.Errorf("unknown variable %q", name)
}

// lookupConstructor finds a sum-type constructor by name across the
// current module's implicit namespace, returning both the constructor
// and its owning type.
func (c *Checker) lookupConstructor(name string) (*ir.TypeConstructor, *ir.TypeDefinition, error) {
	return c.lookupConstructorIn(c.namespaces["implicit"], name)
}

func (c *Checker) lookupConstructorIn(files []string, name string) (*ir.TypeConstructor, *ir.TypeDefinition, error) {
	for _, fn := range files {
		mod, ok := c.Declare.Modules[fn]
		if !ok {
			continue
		}
		for _, t := range mod.Types {
			for _, ctor := range t.Constructors {
				if ctor.Name == name {
					return ctor, t, nil
				}
			}
		}
	}
	return nil, nil, errors.Errorf("unknown constructor %q", name)
}

// buildNamespaces mirrors declare.ResolveModule's namespace construction:
// "implicit" always covers the current module plus every unqualified
// import; a named import groups under its own namespace.
func buildNamespaces(mod *ast.ModuleDef) map[string][]string {
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
	return namespaces
}

// TypecheckModule lowers every function body and global-variable
// initializer in mod, filling in the ir.FunctionDefinition/
// ir.GlobalVariableDefinition shells internal/declare already built for
// it. Ports typecheck_module.
func (c *Checker) TypecheckModule(mod *ast.ModuleDef) {
	c.module = mod.Filename
	c.namespaces = buildNamespaces(mod)
	irMod, ok := c.Declare.Modules[mod.Filename]
	if !ok {
		c.Diags.Typef(mod.Loc(), "module %q was never declared", mod.Filename)
		return
	}

	for _, node := range mod.Defs {
		switch n := node.(type) {
		case *ast.FunctionDef:
			irFn := findFunction(irMod, n.Name)
			if irFn == nil {
				continue
			}
			c.TypecheckFunction(irFn, n)

		case *ast.GlobalVarDef:
			irVar := findVariable(irMod, n.Name)
			if irVar == nil {
				continue
			}
			fs := newFunctionState(irVar.Type)
			val := c.TypecheckExpr(fs, n.Value)
			irVar.Value = c.Coerce(irVar.Type, val, n.Loc())
		}
	}
}

func findFunction(mod *ir.ModuleDefinition, name string) *ir.FunctionDefinition {
	for _, f := range mod.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func findVariable(mod *ir.ModuleDefinition, name string) *ir.GlobalVariableDefinition {
	for _, v := range mod.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// TypecheckFunction lowers one function's body into irFn.Body, seeding
// FunctionState with its (possibly implicit) parameters.
func (c *Checker) TypecheckFunction(irFn *ir.FunctionDefinition, astFn *ast.FunctionDef) {
	fs := newFunctionState(irFn.ReturnType)
	for i, name := range irFn.ArgNames {
		fs.declareLocal(name, irFn.ArgTypes[i], false)
	}
	for i, name := range irFn.ArgNamesImplicit {
		fs.declareLocal(name, irFn.ArgTypesImplicit[i], true)
	}

	var body []ir.Instruction
	for _, s := range astFn.Body {
		body = append(body, c.TypecheckStmt(fs, s)...)
	}
	irFn.Body = body
}
