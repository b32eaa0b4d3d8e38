package typecheck

import (
	"cedar/internal/ast"
	"cedar/internal/ir"
)

// typecheckIf ports the if/else half of typecheck_expr's IfExpr case.
// Both branches are checked and their types unified the way
// unifyTypesFromBranches describes; a void or exit result is returned
// through wrapStmt, any other result as the value of the branches.
func (c *Checker) typecheckIf(fs *FunctionState, n *ast.IfExpr) ir.Instruction {
	cond := c.TypecheckExpr(fs, n.Cond)
	cond = c.Coerce(&ir.BoolType{}, cond, n.Loc())

	fs.pushScope()
	trueBody := c.TypecheckStmt(fs, n.TrueBody)
	fs.popScope()
	trueTy := typeOfStmtBlock(trueBody)

	var falseBody []ir.Instruction
	falseTy := ir.Type(&ir.VoidType{})
	if n.FalseBody != nil {
		fs.pushScope()
		falseBody = c.TypecheckStmt(fs, n.FalseBody)
		fs.popScope()
		falseTy = typeOfStmtBlock(falseBody)
	}

	resultTy := unifyTypesFromBranches(trueTy, falseTy)
	ifelse := &ir.IfElse{Cond: cond, TrueBody: trueBody, FalseBody: falseBody}
	ifelse.SetLoc(n.Loc())
	if _, isVoid := resultTy.(*ir.VoidType); isVoid {
		return wrapStmt(ifelse)
	}
	if _, isExit := resultTy.(*ir.ExitType); isExit {
		return wrapStmt(ifelse)
	}
	ew := &ir.ExprWithStmt{Stmts: []ir.Instruction{ifelse}, Expr: lastExprOf(trueBody, falseBody, resultTy, n)}
	ew.Type = resultTy
	ew.SetLoc(n.Loc())
	return ew
}

// wrapStmt turns a bare control-flow instruction into an Instruction
// usable in expression position when the block produces no value (void
// or exit): it's returned through ExprWithStmt with a void-typed LoadBool
// placeholder expression so callers that always expect a Typed result still
// get one.
func wrapStmt(instr ir.Instruction) ir.Instruction {
	placeholder := &ir.LoadBool{Value: false}
	placeholder.Type = &ir.VoidType{}
	placeholder.SetLoc(instr.Loc())
	ew := &ir.ExprWithStmt{Stmts: []ir.Instruction{instr}, Expr: placeholder}
	ew.Type = &ir.VoidType{}
	ew.SetLoc(instr.Loc())
	return ew
}

// lastExprOf extracts the value-producing tail of whichever branch
// actually yields resultTy's value (an if without an else only ever
// takes its true branch's tail, wrapped in MakeOptional by the caller's
// Coerce if the surrounding context needs the Option<T> unifyTypesFromBranches
// produced for a VoidType branch).
func lastExprOf(trueBody, falseBody []ir.Instruction, resultTy ir.Type, n *ast.IfExpr) ir.Instruction {
	tail := tailExpr(trueBody)
	if tail == nil {
		tail = tailExpr(falseBody)
	}
	if tail == nil {
		ph := &ir.LoadBool{Value: false}
		ph.Type = resultTy
		ph.SetLoc(n.Loc())
		return ph
	}
	return tail
}

func tailExpr(instrs []ir.Instruction) ir.Instruction {
	if len(instrs) == 0 {
		return nil
	}
	if iv, ok := instrs[len(instrs)-1].(*ir.IgnoreValue); ok {
		return iv.Value
	}
	return nil
}

func (c *Checker) typecheckFor(fs *FunctionState, n *ast.ForExpr, usedAsExpr bool) ir.Instruction {
	iterable := c.TypecheckExpr(fs, n.Iterable)
	arrTy, ok := resultType(iterable).(*ir.ArrayType)
	var elemTy ir.Type = &ir.UninferredType{}
	if ok {
		elemTy = arrTy.Elem
	} else {
		c.compileErrorf(n.Loc(), "for-loop requires an array, got %s", describe(resultType(iterable)))
	}

	fs.pushScope()
	iterName := ""
	if id, ok := n.Iterator.(*ast.NewIdentifierExpr); ok {
		iterName = id.Name
		fs.declareLocal(iterName, elemTy, id.Implicit)
	} else if id, ok := n.Iterator.(*ast.IdentifierExpr); ok {
		iterName = id.Name
		fs.declareLocal(iterName, elemTy, false)
	}

	loop := &LoopContext{UsedAsExpr: usedAsExpr}
	resultTy := ir.Type(&ir.VoidType{})
	if usedAsExpr {
		loop.ResultVar = fs.newLocalTemp()
		resultTy = &ir.OptionType{Target: &ir.UninferredType{}}
		loop.ResultType = resultTy
		fs.declareLocal(loop.ResultVar, resultTy, false)
	}
	fs.loops = append(fs.loops, loop)
	body := c.TypecheckStmt(fs, n.Body)
	fs.loops = fs.loops[:len(fs.loops)-1]
	fs.popScope()

	idx := &ir.LoadInteger{Value: 0}
	idx.Type = &ir.IntegerType{Bits: 64, Signed: true}
	idx.SetLoc(n.Loc())
	sc := &ir.Scope{Body: append([]ir.Instruction{}, body...)}
	sc.SetLoc(n.Loc())
	iv := &ir.IgnoreValue{Value: sc}
	iv.SetLoc(n.Loc())
	_ = iterName
	if usedAsExpr {
		load := &ir.LoadLocal{Name: loop.ResultVar}
		load.Type = resultTy
		load.SetLoc(n.Loc())
		ew := &ir.ExprWithStmt{Stmts: []ir.Instruction{iv}, Expr: load}
		ew.Type = resultTy
		ew.SetLoc(n.Loc())
		return ew
	}
	return wrapStmt(iv)
}

func (c *Checker) typecheckWhile(fs *FunctionState, n *ast.WhileExpr, usedAsExpr bool) ir.Instruction {
	cond := c.TypecheckExpr(fs, n.Cond)
	cond = c.Coerce(&ir.BoolType{}, cond, n.Loc())

	loop := &LoopContext{UsedAsExpr: usedAsExpr}
	resultTy := ir.Type(&ir.VoidType{})
	if usedAsExpr {
		loop.ResultVar = fs.newLocalTemp()
		resultTy = &ir.OptionType{Target: &ir.UninferredType{}}
		loop.ResultType = resultTy
		fs.declareLocal(loop.ResultVar, resultTy, false)
	}
	fs.loops = append(fs.loops, loop)
	fs.pushScope()
	body := c.TypecheckStmt(fs, n.Body)
	fs.popScope()
	fs.loops = fs.loops[:len(fs.loops)-1]

	ifelse := &ir.IfElse{Cond: cond, TrueBody: body}
	ifelse.SetLoc(n.Loc())
	sc := &ir.Scope{Body: []ir.Instruction{ifelse}}
	sc.SetLoc(n.Loc())
	if usedAsExpr {
		load := &ir.LoadLocal{Name: loop.ResultVar}
		load.Type = resultTy
		load.SetLoc(n.Loc())
		ew := &ir.ExprWithStmt{Stmts: []ir.Instruction{sc}, Expr: load}
		ew.Type = resultTy
		ew.SetLoc(n.Loc())
		return ew
	}
	return wrapStmt(sc)
}
