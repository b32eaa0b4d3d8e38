package typecheck

import (
	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/ir"
)

// TypecheckStmt lowers one ast.Stmt into zero or more ir.Instructions
// within fs's current scope. Ports typecheck_stmt's dispatch; a block
// statement expands into its member instructions rather than nesting,
// matching the flat ir.Instruction sequence internal/ir's
// FunctionDefinition.Body expects (a Scope node is only used where the
// lowering needs a nested block — see typecheckFor/typecheckWhile/
// typecheckBreak).
func (c *Checker) TypecheckStmt(fs *FunctionState, s ast.Stmt) []ir.Instruction {
	switch n := s.(type) {
	case *ast.BlockStmt:
		var out []ir.Instruction
		for _, sub := range n.Stmts {
			out = append(out, c.TypecheckStmt(fs, sub)...)
		}
		return out

	case *ast.PassStmt:
		return nil

	case *ast.BreakStmt:
		return []ir.Instruction{c.typecheckBreak(fs, n)}

	case *ast.ContinueStmt:
		ct := &ir.Goto{Label: "continue"}
		ct.SetLoc(n.Loc())
		return []ir.Instruction{ct}

	case *ast.ReturnStmt:
		if n.Value == nil {
			r := &ir.Return{}
			r.SetLoc(n.Loc())
			return []ir.Instruction{r}
		}
		val := c.TypecheckExpr(fs, n.Value)
		val = c.Coerce(fs.ReturnType, val, n.Loc())
		rv := &ir.ReturnValue{Value: val}
		rv.SetLoc(n.Loc())
		return []ir.Instruction{rv}

	case *ast.AssertStmt:
		val := c.TypecheckExpr(fs, n.Value)
		val = c.Coerce(&ir.BoolType{}, val, n.Loc())
		a := &ir.Assert{Value: val}
		a.SetLoc(n.Loc())
		return []ir.Instruction{a}

	case *ast.ExprStmt:
		val := c.TypecheckExpr(fs, n.Expr)
		iv := &ir.IgnoreValue{Value: val}
		iv.SetLoc(n.Loc())
		return []ir.Instruction{iv}

	case *ast.AssignStmt:
		return c.typecheckAssign(fs, n)

	default:
		return []ir.Instruction{c.compileErrorf(s.Loc(), "unsupported statement %T", s)}
	}
}

func (c *Checker) typecheckBreak(fs *FunctionState, n *ast.BreakStmt) ir.Instruction {
	if len(fs.loops) == 0 {
		return c.compileErrorf(n.Loc(), "break outside of a loop")
	}
	loop := fs.loops[len(fs.loops)-1]
	if n.Value != nil && loop.UsedAsExpr {
		val := c.TypecheckExpr(fs, n.Value)
		val = c.Coerce(loop.ResultType, val, n.Loc())
		store := &ir.StoreLocal{Name: loop.ResultVar, Value: val}
		store.SetLoc(n.Loc())
		goTo := &ir.Goto{Label: "break"}
		goTo.SetLoc(n.Loc())
		sc := &ir.Scope{Body: []ir.Instruction{store, goTo}}
		sc.SetLoc(n.Loc())
		return sc
	}
	g := &ir.Goto{Label: "break"}
	g.SetLoc(n.Loc())
	return g
}

// typeOfStmtBlock ports type_of_stmt_block: a statement block's
// expression-position type is derived from its last lowered
// instruction — an IgnoreValue's inner type, ExitType for a
// return/break/continue, VoidType otherwise.
func typeOfStmtBlock(instrs []ir.Instruction) ir.Type {
	if len(instrs) == 0 {
		return &ir.VoidType{}
	}
	switch last := instrs[len(instrs)-1].(type) {
	case *ir.IgnoreValue:
		return resultType(last.Value)
	case *ir.Return, *ir.ReturnValue, *ir.Goto:
		return &ir.ExitType{}
	default:
		return &ir.VoidType{}
	}
}

func (c *Checker) typecheckAssign(fs *FunctionState, n *ast.AssignStmt) []ir.Instruction {
	// `let name = rhs` / `let implicit name = rhs`: the fresh binding's
	// type is inferred from rhs.
	if newID, ok := n.LHS.(*ast.NewIdentifierExpr); ok {
		val := c.TypecheckExpr(fs, n.RHS)
		fs.declareLocal(newID.Name, resultType(val), newID.Implicit)
		store := &ir.StoreLocal{Name: newID.Name, Value: val}
		store.SetLoc(n.Loc())
		return []ir.Instruction{store}
	}

	// Tuple-destructuring assignment `(a, b) = rhs`, including fresh
	// bindings inside the tuple pattern.
	if tup, ok := n.LHS.(*ast.TupleExpr); ok {
		return c.typecheckTupleAssign(fs, tup, n.RHS, n.Loc())
	}

	val := c.TypecheckExpr(fs, n.RHS)

	switch lhs := n.LHS.(type) {
	case *ast.IdentifierExpr:
		declTy, hasDecl := fs.lookupDeclaredType(lhs.Name)
		if hasDecl {
			val = c.Coerce(declTy, val, n.Loc())
		}
		if tydef, ok := resultType(val).(*ir.TypeDefinition); ok {
			if fn, ok := c.lookupPackFunction(tydef); ok {
				load := &ir.LoadLocal{Name: lhs.Name}
				load.Type = tydef
				load.SetLoc(n.Loc())
				ao := &ir.AddressOf{Value: load}
				ao.Type = &ir.PointerType{Target: tydef}
				ao.SetLoc(n.Loc())
				call := &ir.CallFunction{Func: fn, Arguments: []ir.Instruction{val, ao}}
				call.Type = fn.ReturnType
				call.SetLoc(n.Loc())
				iv := &ir.IgnoreValue{Value: call}
				iv.SetLoc(n.Loc())
				return []ir.Instruction{iv}
			}
		}
		store := &ir.StoreLocal{Name: lhs.Name, Value: val}
		store.SetLoc(n.Loc())
		return []ir.Instruction{store}

	case *ast.IndexExpr:
		target := c.TypecheckExpr(fs, lhs.Target)
		if len(lhs.Indices) != 1 {
			return []ir.Instruction{c.compileErrorf(n.Loc(), "multi-dimensional indexing is not supported")}
		}
		idx := c.TypecheckExpr(fs, lhs.Indices[0])
		idx = c.Coerce(&ir.IntegerType{Bits: 64, Signed: true}, idx, n.Loc())
		arrTy, ok := resultType(target).(*ir.ArrayType)
		if !ok {
			return []ir.Instruction{c.compileErrorf(n.Loc(), "cannot index-assign a value of type %s", describe(resultType(target)))}
		}
		val = c.Coerce(arrTy.Elem, val, n.Loc())
		li := &ir.LoadArrayIndex{Target: target, Index: idx}
		li.Type = arrTy.Elem
		li.SetLoc(n.Loc())
		ao := &ir.AddressOf{Value: li}
		ao.Type = &ir.PointerType{Target: arrTy.Elem}
		ao.SetLoc(n.Loc())
		return []ir.Instruction{c.storeValue(ao, val, n.Loc())}

	case *ast.MemberExpr:
		member := c.typecheckMember(fs, lhs)
		val = c.Coerce(resultType(member), val, n.Loc())
		ao := &ir.AddressOf{Value: member}
		ao.Type = &ir.PointerType{Target: resultType(member)}
		ao.SetLoc(n.Loc())
		return []ir.Instruction{c.storeValue(ao, val, n.Loc())}

	case *ast.UnaryOpExpr:
		if lhs.Op == "*" {
			addr := c.TypecheckExpr(fs, lhs.Expr)
			ptrTy, ok := resultType(addr).(*ir.PointerType)
			if !ok {
				return []ir.Instruction{c.compileErrorf(n.Loc(), "cannot store through a non-pointer value")}
			}
			val = c.Coerce(ptrTy.Target, val, n.Loc())
			return []ir.Instruction{c.storeValue(addr, val, n.Loc())}
		}
	}
	return []ir.Instruction{c.compileErrorf(n.Loc(), "unsupported assignment target %T", n.LHS)}
}

// typecheckTupleAssign stores rhs in a temporary and assigns each
// positional slot, loaded with LoadTupleIndex, to its target local.
func (c *Checker) typecheckTupleAssign(fs *FunctionState, tup *ast.TupleExpr, rhsExpr ast.Expr, loc diag.Location) []ir.Instruction {
	rhs := c.TypecheckExpr(fs, rhsExpr)
	tmp := fs.newLocalTemp()
	fs.declareLocal(tmp, resultType(rhs), false)
	store := &ir.StoreLocal{Name: tmp, Value: rhs}
	store.SetLoc(loc)
	out := []ir.Instruction{store}
	load := &ir.LoadLocal{Name: tmp}
	load.Type = resultType(rhs)
	load.SetLoc(loc)

	for i, elem := range tup.Positional {
		idx := &ir.LoadTupleIndex{Target: load, Index: i}
		tty, ok := resultType(load).(*ir.TupleType)
		if ok && i < len(tty.Positional) {
			idx.Type = tty.Positional[i]
		} else {
			idx.Type = &ir.UninferredType{}
		}
		idx.SetLoc(loc)
		switch target := elem.(type) {
		case *ast.NewIdentifierExpr:
			fs.declareLocal(target.Name, idx.Type, target.Implicit)
			st := &ir.StoreLocal{Name: target.Name, Value: idx}
			st.SetLoc(loc)
			out = append(out, st)
		case *ast.IdentifierExpr:
			st := &ir.StoreLocal{Name: target.Name, Value: idx}
			st.SetLoc(loc)
			out = append(out, st)
		}
	}
	return out
}

func (fs *FunctionState) lookupDeclaredType(name string) (ir.Type, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if ty, ok := fs.locals[i][name]; ok {
			return ty, true
		}
	}
	return nil, false
}
