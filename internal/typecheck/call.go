package typecheck

import (
	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/ir"
)

// typecheckCall ports typecheck_expr_call/typecheck_expr_call_func: a
// call's callee can name a constructor (InitInstance), a plain function
// (CallFunction/CallFunctionPointer), a C function (CallCFunction), or
// one of the `cstring(...)`/`char(...)` literal-conversion intrinsics.
func (c *Checker) typecheckCall(fs *FunctionState, n *ast.CallExpr) ir.Instruction {
	loc := n.Loc()

	if id, ok := n.Func.(*ast.IdentifierExpr); ok {
		switch id.Name {
		case "cstring":
			return c.typecheckCStringIntrinsic(fs, n, loc)
		case "char":
			return c.typecheckCharIntrinsic(fs, n, loc)
		}
		if ctor, tydef, err := c.lookupConstructor(id.Name); err == nil {
			return c.typecheckConstructorCall(fs, tydef, ctor, n, loc)
		}
		if cfn, err := c.lookupCFunction(id.Name); err == nil {
			args := c.typecheckArgs(fs, cfn.ArgTypes, cfn.ArgNames, n.Args, loc)
			call := &ir.CallCFunction{Func: cfn, Arguments: args}
			call.Type = cfn.ReturnType
			call.SetLoc(loc)
			return call
		}
	}

	if mem, ok := n.Func.(*ast.MemberExpr); ok {
		if ns, ok := mem.Target.(*ast.IdentifierExpr); ok {
			if files, isNS := c.namespaces[ns.Name]; isNS {
				if ctor, tydef, err := c.lookupConstructorIn(files, mem.Member); err == nil {
					return c.typecheckConstructorCall(fs, tydef, ctor, n, loc)
				}
			}
		}
		if instr := c.typecheckArrayMethodCall(fs, mem, n, loc); instr != nil {
			return instr
		}
	}

	callee := c.TypecheckExpr(fs, n.Func)
	switch fnTy := resultType(callee).(type) {
	case *ir.FunctionType:
		if lf, ok := callee.(*ir.LoadFunction); ok {
			if fn, err := c.lookupFunction(lf.Name); err == nil {
				args := c.typecheckArgs(fs, fn.ArgTypes, fn.ArgNames, n.Args, loc)
				call := &ir.CallFunction{Func: fn, Arguments: args}
				call.Type = fn.ReturnType
				call.SetLoc(loc)
				return call
			}
		}
		args := c.typecheckArgs(fs, fnTy.ArgTypes, fnTy.ArgNames, n.Args, loc)
		call := &ir.CallFunctionPointer{Func: callee, Arguments: args}
		call.Type = fnTy.ReturnType
		call.SetLoc(loc)
		return call
	case *ir.CFunctionPointerType:
		args := c.typecheckArgs(fs, fnTy.ArgTypes, fnTy.ArgNames, n.Args, loc)
		call := &ir.CallFunctionPointer{Func: callee, Arguments: args}
		call.Type = fnTy.ReturnType
		call.SetLoc(loc)
		return call
	}
	return c.compileErrorf(loc, "cannot call a value of type %s", describe(resultType(callee)))
}

// typecheckArrayMethodCall handles `arr.append(x)`/`arr.pop()` call
// syntax against an array-typed target, lowering to ArrayAppend/
// ArrayPop instead of a member load + generic call. Returns nil when
// mem isn't one of these two names or its target isn't an array, so
// the caller falls through to ordinary member/namespace resolution.
func (c *Checker) typecheckArrayMethodCall(fs *FunctionState, mem *ast.MemberExpr, n *ast.CallExpr, loc diag.Location) ir.Instruction {
	if mem.Member != "append" && mem.Member != "pop" {
		return nil
	}
	target := c.TypecheckExpr(fs, mem.Target)
	arrTy, ok := resultType(target).(*ir.ArrayType)
	if !ok {
		return nil
	}
	switch mem.Member {
	case "append":
		if n.Args == nil || len(n.Args.Positional) != 1 {
			return c.compileErrorf(loc, "append(...) takes exactly one argument")
		}
		val := c.TypecheckExpr(fs, n.Args.Positional[0])
		ap := &ir.ArrayAppend{Array: target, Value: c.Coerce(arrTy.Elem, val, loc)}
		ap.Type = &ir.VoidType{}
		ap.SetLoc(loc)
		return ap
	default: // pop
		pop := &ir.ArrayPop{Array: target}
		pop.Type = arrTy.Elem
		pop.SetLoc(loc)
		return pop
	}
}

func (c *Checker) typecheckConstructorCall(fs *FunctionState, tydef *ir.TypeDefinition, ctor *ir.TypeConstructor, n *ast.CallExpr, loc diag.Location) ir.Instruction {
	args := c.typecheckArgs(fs, ctor.FieldTypes, ctor.FieldNames, n.Args, loc)
	rtti := &ir.MakeRtti{Target: tydef}
	rtti.Type = &ir.RttiType{}
	rtti.SetLoc(loc)
	init := &ir.InitInstance{Target: rtti, Ctor: ctor, Arguments: args}
	init.Type = tydef
	init.SetLoc(loc)
	return init
}

// typecheckArgs ports typecheck_args: positional args coerce against the
// declared parameter types in order; named args match by name among the
// remaining parameters. A call providing fewer/more arguments than
// declared, or an unknown named argument, is a compile error rather than
// a panic.
func (c *Checker) typecheckArgs(fs *FunctionState, paramTypes []ir.Type, paramNames []string, args *ast.TupleExpr, loc diag.Location) []ir.Instruction {
	out := make([]ir.Instruction, len(paramTypes))
	filled := make([]bool, len(paramTypes))
	if args == nil {
		return c.fillImplicitArgs(fs, paramTypes, out, filled, loc)
	}
	for i, e := range args.Positional {
		if i >= len(paramTypes) {
			c.compileErrorf(e.Loc(), "too many positional arguments")
			break
		}
		val := c.TypecheckExpr(fs, e)
		out[i] = c.Coerce(paramTypes[i], val, e.Loc())
		filled[i] = true
	}
	for i, name := range args.Names {
		slot := -1
		for j, pn := range paramNames {
			if pn == name {
				slot = j
			}
		}
		if slot < 0 {
			c.compileErrorf(args.Named[i].Loc(), "unknown argument %q", name)
			continue
		}
		val := c.TypecheckExpr(fs, args.Named[i])
		out[slot] = c.Coerce(paramTypes[slot], val, args.Named[i].Loc())
		filled[slot] = true
	}
	return c.fillImplicitArgs(fs, paramTypes, out, filled, loc)
}

// fillImplicitArgs supplies any still-unfilled parameter from the
// enclosing function's implicit-argument registry, keyed by the
// parameter's type.
func (c *Checker) fillImplicitArgs(fs *FunctionState, paramTypes []ir.Type, out []ir.Instruction, filled []bool, loc diag.Location) []ir.Instruction {
	for i, ty := range paramTypes {
		if filled[i] {
			continue
		}
		if instr, ok := fs.lookupImplicit(ty); ok {
			out[i] = instr
			continue
		}
		out[i] = c.compileErrorf(loc, "missing argument of type %s and no implicit in scope", describe(ty))
	}
	return out
}

func (c *Checker) typecheckCStringIntrinsic(fs *FunctionState, n *ast.CallExpr, loc diag.Location) ir.Instruction {
	if n.Args == nil || len(n.Args.Positional) != 1 {
		return c.compileErrorf(loc, "cstring(...) takes exactly one argument")
	}
	val := c.TypecheckExpr(fs, n.Args.Positional[0])
	if s, ok := hasStringLiteral(val); ok {
		cs := &ir.LoadCString{Value: s}
		cs.Type = cStringType()
		cs.SetLoc(loc)
		return cs
	}
	return c.Coerce(cStringType(), val, loc)
}

func (c *Checker) typecheckCharIntrinsic(fs *FunctionState, n *ast.CallExpr, loc diag.Location) ir.Instruction {
	if n.Args == nil || len(n.Args.Positional) != 1 {
		return c.compileErrorf(loc, "char(...) takes exactly one argument")
	}
	val := c.TypecheckExpr(fs, n.Args.Positional[0])
	ce := &ir.CastExpr{Expr: val}
	ce.Type = &ir.CNamedType{Name: "char"}
	ce.SetLoc(loc)
	return ce
}
