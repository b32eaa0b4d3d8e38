package typecheck

import (
	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/ir"
)

// deconstruction accumulates the three lists the pattern-match
// deconstructor builds (per SPEC_FULL.md's "Pattern matching"
// paragraph): equality/tag checks conjoined with && to form the guard
// condition, fresh-binding declarations, and the stores that populate
// them — both emitted into the true branch ahead of its own body.
type deconstruction struct {
	checks []ir.Instruction // each typed bool
	binds  []ir.Instruction // DeclareLocal
	stores []ir.Instruction // StoreLocal
}

func (d *deconstruction) addCheck(check ir.Instruction) { d.checks = append(d.checks, check) }

func (d *deconstruction) bind(name string, ty ir.Type, implicit bool, value ir.Instruction, fs *FunctionState, loc diag.Location) {
	fs.declareLocal(name, ty, implicit)
	dl := &ir.DeclareLocal{DeclareType: ty, Name: name}
	dl.SetLoc(loc)
	d.binds = append(d.binds, dl)
	st := &ir.StoreLocal{Name: name, Value: value}
	st.SetLoc(loc)
	d.stores = append(d.stores, st)
}

func boolAnd(checks []ir.Instruction, loc diag.Location) ir.Instruction {
	if len(checks) == 0 {
		v := &ir.LoadBool{Value: true}
		v.Type = &ir.BoolType{}
		v.SetLoc(loc)
		return v
	}
	cond := checks[0]
	for _, next := range checks[1:] {
		bo := &ir.BinaryOp{LHS: cond, Op: "and", RHS: next}
		bo.Type = &ir.BoolType{}
		bo.SetLoc(loc)
		cond = bo
	}
	return cond
}

// deconstructPattern ports deconstruct_pattern: given the scrutinee's
// already-typechecked value and a pattern expression, appends the
// pattern's checks, bindings and stores to d's three lists. It returns
// nothing; a bare new-identifier adds a binding and no check.
func (c *Checker) deconstructPattern(fs *FunctionState, scrutinee ir.Instruction, pattern ast.Expr, d *deconstruction) {
	loc := pattern.Loc()
	switch p := pattern.(type) {
	case *ast.NullExpr:
		optTy, ok := resultType(scrutinee).(*ir.OptionType)
		if !ok {
			c.compileErrorf(loc, "null pattern requires an optional scrutinee, got %s", describe(resultType(scrutinee)))
			return
		}
		_ = optTy
		check := &ir.OptionalIsEmpty{Value: scrutinee}
		check.Type = &ir.BoolType{}
		check.SetLoc(loc)
		d.addCheck(check)

	case *ast.NewIdentifierExpr:
		d.bind(p.Name, resultType(scrutinee), p.Implicit, scrutinee, fs, loc)

	case *ast.IdentifierExpr:
		if p.Name == "_" {
			return
		}
		existing := c.TypecheckExpr(fs, p)
		eq := &ir.BinaryOp{LHS: scrutinee, Op: "==", RHS: c.Coerce(resultType(scrutinee), existing, loc)}
		eq.Type = &ir.BoolType{}
		eq.SetLoc(loc)
		d.addCheck(eq)

	case *ast.TupleExpr:
		c.deconstructTuplePattern(fs, scrutinee, p, d)

	case *ast.RegexExpr:
		c.deconstructRegexPattern(fs, scrutinee, p, d)

	case *ast.CallExpr:
		c.deconstructCallPattern(fs, scrutinee, p, d)

	default:
		existing := c.TypecheckExpr(fs, pattern)
		eq := &ir.BinaryOp{LHS: scrutinee, Op: "==", RHS: c.Coerce(resultType(scrutinee), existing, loc)}
		eq.Type = &ir.BoolType{}
		eq.SetLoc(loc)
		d.addCheck(eq)
	}
}

func (c *Checker) deconstructTuplePattern(fs *FunctionState, scrutinee ir.Instruction, p *ast.TupleExpr, d *deconstruction) {
	loc := p.Loc()
	tty, ok := resultType(scrutinee).(*ir.TupleType)
	if !ok {
		c.compileErrorf(loc, "tuple pattern requires a tuple scrutinee, got %s", describe(resultType(scrutinee)))
		return
	}
	for i, sub := range p.Positional {
		if i >= len(tty.Positional) {
			break
		}
		idx := &ir.LoadTupleIndex{Target: scrutinee, Index: i}
		idx.Type = tty.Positional[i]
		idx.SetLoc(loc)
		c.deconstructPattern(fs, idx, sub, d)
	}
	for i, name := range p.Names {
		slot := -1
		for j, n2 := range tty.Names {
			if n2 == name {
				slot = j
			}
		}
		if slot < 0 || slot >= len(tty.Named) {
			continue
		}
		idx := &ir.LoadTupleIndex{Target: scrutinee, Index: len(tty.Positional) + slot}
		idx.Type = tty.Named[slot]
		idx.SetLoc(loc)
		c.deconstructPattern(fs, idx, p.Named[i], d)
	}
}

// deconstructCallPattern handles both CallExpr(IdentifierExpr(ctor), args)
// and CallExpr(MemberExpr(IdentifierExpr(ns), ctor), args): a sum-type
// constructor pattern, or the builtin Option `Some(x)` pattern.
func (c *Checker) deconstructCallPattern(fs *FunctionState, scrutinee ir.Instruction, p *ast.CallExpr, d *deconstruction) {
	loc := p.Loc()
	var ctorName, namespace string
	switch f := p.Func.(type) {
	case *ast.IdentifierExpr:
		ctorName = f.Name
	case *ast.MemberExpr:
		if id, ok := f.Target.(*ast.IdentifierExpr); ok {
			namespace = id.Name
			ctorName = f.Member
		}
	default:
		c.compileErrorf(loc, "unsupported pattern call target %T", p.Func)
		return
	}

	if ctorName == "Some" && namespace == "" {
		optTy, ok := resultType(scrutinee).(*ir.OptionType)
		if !ok {
			c.compileErrorf(loc, "Some(...) pattern requires an optional scrutinee, got %s", describe(resultType(scrutinee)))
			return
		}
		notEmpty := &ir.OptionalIsEmpty{Value: scrutinee}
		notEmpty.Type = &ir.BoolType{}
		notEmpty.SetLoc(loc)
		not := &ir.UnaryOp{Op: "not", Expr: notEmpty}
		not.Type = &ir.BoolType{}
		not.SetLoc(loc)
		d.addCheck(not)
		if p.Args != nil && len(p.Args.Positional) == 1 {
			get := &ir.OptionalGetValue{Value: scrutinee}
			get.Type = optTy.Target
			get.SetLoc(loc)
			c.deconstructPattern(fs, get, p.Args.Positional[0], d)
		}
		return
	}

	tydef, ok := resultType(scrutinee).(*ir.TypeDefinition)
	if !ok {
		c.compileErrorf(loc, "constructor pattern requires a declared-type scrutinee, got %s", describe(resultType(scrutinee)))
		return
	}
	var ctor *ir.TypeConstructor
	var ctorIdx int
	for i, cc := range tydef.Constructors {
		if cc.Name == ctorName {
			ctor = cc
			ctorIdx = i
		}
	}
	if ctor == nil {
		c.compileErrorf(loc, "unknown constructor %q on type %s", ctorName, describe(tydef))
		return
	}
	if !tydef.Tagless {
		tag := &ir.LoadTagValue{Target: scrutinee}
		tag.Type = &ir.IntegerType{Bits: 32, Signed: true}
		tag.SetLoc(loc)
		tagLit := &ir.LoadInteger{Value: int64(ctorIdx)}
		tagLit.Type = &ir.IntegerType{Bits: 32, Signed: true}
		tagLit.SetLoc(loc)
		eq := &ir.BinaryOp{LHS: tag, Op: "==", RHS: tagLit}
		eq.Type = &ir.BoolType{}
		eq.SetLoc(loc)
		d.addCheck(eq)
	}
	if p.Args == nil {
		return
	}
	for i, sub := range p.Args.Positional {
		if i >= len(ctor.FieldNames) {
			break
		}
		ls := &ir.LoadSubMember{Target: scrutinee, Member: ctor.FieldNames[i], Ctor: ctor}
		ls.Type = ctor.FieldTypes[i]
		ls.SetLoc(loc)
		c.deconstructPattern(fs, ls, sub, d)
	}
}

// deconstructRegexPattern ports the regex-as-pattern case: the regex is
// compiled and a matcher function generated; its result (bool when
// groupless, else Option<Tuple<...>>) both guards the branch and
// supplies named-group bindings loaded from the result tuple's named
// slot — not the scrutinee's own string type, correcting the mismatched
// type the distilled Python reference carries (see DESIGN.md).
func (c *Checker) deconstructRegexPattern(fs *FunctionState, scrutinee ir.Instruction, p *ast.RegexExpr, d *deconstruction) {
	loc := p.Loc()
	match, groupNames, groupTypes := c.emitRegexMatch(fs, scrutinee, p, loc)
	if len(groupNames) == 0 {
		d.addCheck(match)
		return
	}
	optTy := resultType(match).(*ir.OptionType)
	isEmpty := &ir.OptionalIsEmpty{Value: match}
	isEmpty.Type = &ir.BoolType{}
	isEmpty.SetLoc(loc)
	not := &ir.UnaryOp{Op: "not", Expr: isEmpty}
	not.Type = &ir.BoolType{}
	not.SetLoc(loc)
	d.addCheck(not)

	tmp := fs.newLocalTemp()
	fs.declareLocal(tmp, optTy.Target, false)
	dl := &ir.DeclareLocal{DeclareType: optTy.Target, Name: tmp}
	dl.SetLoc(loc)
	d.binds = append(d.binds, dl)
	get := &ir.OptionalGetValue{Value: match}
	get.Type = optTy.Target
	get.SetLoc(loc)
	st := &ir.StoreLocal{Name: tmp, Value: get}
	st.SetLoc(loc)
	d.stores = append(d.stores, st)

	tupleLoad := &ir.LoadLocal{Name: tmp}
	tupleLoad.Type = optTy.Target
	tupleLoad.SetLoc(loc)
	for i, name := range groupNames {
		idx := &ir.LoadTupleIndex{Target: tupleLoad, Index: i}
		idx.Type = groupTypes[i]
		idx.SetLoc(loc)
		d.bind(name, groupTypes[i], false, idx, fs, loc)
	}
}

// typecheckIfCase lowers `if cond case pattern { } else { }`: cond is
// typechecked as the scrutinee, the pattern is deconstructed against it,
// and the guard/binds/stores are spliced ahead of the true branch.
func (c *Checker) typecheckIfCase(fs *FunctionState, n *ast.IfCaseExpr) ir.Instruction {
	scrutinee := c.TypecheckExpr(fs, n.Cond)

	fs.pushScope()
	d := &deconstruction{}
	c.deconstructPattern(fs, scrutinee, n.Pattern, d)
	trueBody := append(append([]ir.Instruction{}, d.binds...), d.stores...)
	trueBody = append(trueBody, c.TypecheckStmt(fs, n.TrueBody)...)
	trueTy := typeOfStmtBlock(trueBody)
	fs.popScope()

	var falseBody []ir.Instruction
	falseTy := ir.Type(&ir.VoidType{})
	if n.FalseBody != nil {
		fs.pushScope()
		falseBody = c.TypecheckStmt(fs, n.FalseBody)
		fs.popScope()
		falseTy = typeOfStmtBlock(falseBody)
	}

	cond := boolAnd(d.checks, n.Loc())
	resultTy := unifyTypesFromBranches(trueTy, falseTy)
	ifelse := &ir.IfElse{Cond: cond, TrueBody: trueBody, FalseBody: falseBody}
	ifelse.SetLoc(n.Loc())
	if _, isVoid := resultTy.(*ir.VoidType); isVoid {
		return wrapStmt(ifelse)
	}
	if _, isExit := resultTy.(*ir.ExitType); isExit {
		return wrapStmt(ifelse)
	}
	ew := &ir.ExprWithStmt{Stmts: []ir.Instruction{ifelse}, Expr: lastExprOfBlocks(trueBody, falseBody, resultTy, n.Loc())}
	ew.Type = resultTy
	ew.SetLoc(n.Loc())
	return ew
}

func lastExprOfBlocks(trueBody, falseBody []ir.Instruction, resultTy ir.Type, loc diag.Location) ir.Instruction {
	tail := tailExpr(trueBody)
	if tail == nil {
		tail = tailExpr(falseBody)
	}
	if tail == nil {
		ph := &ir.LoadBool{Value: false}
		ph.Type = resultTy
		ph.SetLoc(loc)
		return ph
	}
	return tail
}
