package typecheck

import (
	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/ir"
)

// symbolType is the representation a `#ident` / `#"literal"` symbol
// literal carries. The source language's builtin `symbol` module is not
// materialized as a parsed file (no Non-goal forces this — there's
// simply nothing for a single-constructor interned-string type to
// resolve against), so this package synthesizes its shape directly
// rather than looking it up through internal/declare.
func symbolType() ir.Type {
	return &ir.TypeDefinition{Filename: "symbol", Name: "Symbol", Tagless: true, OptimizeLayout: true}
}

// TypecheckExpr lowers one ast.Expr into a typed ir.Instruction within
// fs's current scope. Ports typecheck_expr's dispatch.
func (c *Checker) TypecheckExpr(fs *FunctionState, e ast.Expr) ir.Instruction {
	switch n := e.(type) {
	case *ast.IntegerExpr:
		li := &ir.LoadInteger{Value: n.Value}
		li.Type = &ir.IntegerType{Bits: 32, Signed: true}
		li.SetLoc(n.Loc())
		return li

	case *ast.FloatExpr:
		lf := &ir.LoadFloat{Value: n.Text}
		lf.Type = &ir.FloatType{Bits: 64}
		lf.SetLoc(n.Loc())
		return lf

	case *ast.StringExpr:
		ls := &ir.LoadString{Value: n.Value}
		ls.Type = stringType()
		ls.SetLoc(n.Loc())
		return ls

	case *ast.BoolExpr:
		lb := &ir.LoadBool{Value: n.Value}
		lb.Type = &ir.BoolType{}
		lb.SetLoc(n.Loc())
		return lb

	case *ast.SymbolExpr:
		sym := &ir.LoadSymbol{Value: n.Value}
		sym.Type = symbolType()
		sym.SetLoc(n.Loc())
		return sym

	case *ast.NullExpr:
		un := &ir.UntypedNull{}
		un.SetLoc(n.Loc())
		return un

	case *ast.NoExpr:
		v := &ir.LoadBool{Value: false}
		v.Type = &ir.VoidType{}
		v.SetLoc(n.Loc())
		return v

	case *ast.RegexExpr:
		return c.compileRegexLiteral(fs, n)

	case *ast.IdentifierExpr:
		return c.typecheckIdentifier(fs, n.Name, n.Loc())

	case *ast.NewIdentifierExpr:
		// A bare new-identifier used as an ordinary expression (outside
		// pattern position) declares a local of unresolved type; callers
		// that know the target type (assignment, pattern match) coerce
		// afterward and back-fill it via declareLocal directly.
		fs.declareLocal(n.Name, &ir.UninferredType{}, n.Implicit)
		dl := &ir.DeclareLocal{DeclareType: &ir.UninferredType{}, Name: n.Name}
		dl.SetLoc(n.Loc())
		return dl

	case *ast.IndexExpr:
		return c.typecheckIndex(fs, n)

	case *ast.MemberExpr:
		return c.typecheckMember(fs, n)

	case *ast.WhereExpr:
		return c.typecheckWhere(fs, n)

	case *ast.TupleExpr:
		return c.typecheckTuple(fs, n)

	case *ast.ArrayExpr:
		return c.typecheckArray(fs, n)

	case *ast.ForExpr:
		return c.typecheckFor(fs, n, false)

	case *ast.WhileExpr:
		return c.typecheckWhile(fs, n, false)

	case *ast.IfExpr:
		return c.typecheckIf(fs, n)

	case *ast.IfCaseExpr:
		return c.typecheckIfCase(fs, n)

	case *ast.CallExpr:
		return c.typecheckCall(fs, n)

	case *ast.TypeOfExpr:
		inner := c.TypecheckExpr(fs, n.Expr)
		rt := &ir.MakeRtti{Target: resultType(inner)}
		rt.Type = &ir.RttiType{}
		rt.SetLoc(n.Loc())
		return rt

	case *ast.AllocateExpr:
		alloc := c.TypecheckExpr(fs, n.Allocator)
		data := c.TypecheckExpr(fs, n.Data)
		ptr := &ir.AddressOf{Value: data}
		ptr.Type = &ir.PointerType{Target: resultType(data)}
		ptr.SetLoc(n.Loc())
		_ = alloc
		return ptr

	case *ast.BinaryOpExpr:
		return c.typecheckBinaryOp(fs, n)

	case *ast.UnaryOpExpr:
		return c.typecheckUnaryOp(fs, n)

	case *ast.CastExpr:
		return c.typecheckCast(fs, n)

	case *ast.BinaryElseExpr:
		return c.typecheckBinaryElse(fs, n)

	default:
		return c.compileErrorf(e.Loc(), "unsupported expression %T", e)
	}
}

func (c *Checker) typecheckIdentifier(fs *FunctionState, name string, loc diag.Location) ir.Instruction {
	if instr, ok := fs.lookupLocal(name, loc); ok {
		return instr
	}
	if instr, err := c.lookupVariable(name); err == nil {
		return instr
	}
	if fn, err := c.lookupFunction(name); err == nil {
		lf := &ir.LoadFunction{Name: fn.Name}
		lf.Type = &ir.FunctionType{ReturnType: fn.ReturnType, ArgTypes: fn.ArgTypes, ArgNames: fn.ArgNames}
		lf.SetLoc(loc)
		return lf
	}
	return c.compileErrorf(loc, "undefined identifier %q", name)
}

func (c *Checker) typecheckIndex(fs *FunctionState, n *ast.IndexExpr) ir.Instruction {
	target := c.TypecheckExpr(fs, n.Target)
	if len(n.Indices) != 1 {
		return c.compileErrorf(n.Loc(), "multi-dimensional indexing is not supported")
	}
	idx := c.TypecheckExpr(fs, n.Indices[0])
	idx = c.Coerce(&ir.IntegerType{Bits: 64, Signed: true}, idx, n.Loc())
	arrTy, ok := resultType(target).(*ir.ArrayType)
	if !ok {
		return c.compileErrorf(n.Loc(), "cannot index a value of type %s", describe(resultType(target)))
	}
	li := &ir.LoadArrayIndex{Target: target, Index: idx}
	li.Type = arrTy.Elem
	li.SetLoc(n.Loc())
	return li
}

func (c *Checker) typecheckMember(fs *FunctionState, n *ast.MemberExpr) ir.Instruction {
	// Namespace-qualified reference: Target is a bare identifier naming
	// an imported namespace, not a value.
	if id, ok := n.Target.(*ast.IdentifierExpr); ok {
		if _, isLocal := fs.lookupLocal(id.Name, n.Loc()); !isLocal {
			if _, ok := c.namespaces[id.Name]; ok {
				return c.typecheckNamespacedRef(id.Name, n.Member, n.Loc())
			}
		}
	}
	target := c.TypecheckExpr(fs, n.Target)
	ty := resultType(target)
	if ptrTy, ok := ty.(*ir.PointerType); ok {
		target = c.dereferencePointer(target, n.Loc())
		ty = ptrTy.Target
	}
	tydef, ok := ty.(*ir.TypeDefinition)
	if !ok {
		return c.compileErrorf(n.Loc(), "cannot access member %q of type %s", n.Member, describe(ty))
	}
	for _, common := range tydef.CommonNames {
		if common == n.Member {
			fieldTy := fieldTypeByName(tydef, n.Member)
			lm := &ir.LoadCommonMember{Target: target, Member: n.Member}
			lm.Type = fieldTy
			lm.SetLoc(n.Loc())
			return lm
		}
	}
	if len(tydef.Constructors) == 1 {
		ctor := tydef.Constructors[0]
		for i, fname := range ctor.FieldNames {
			if fname == n.Member {
				ls := &ir.LoadSubMember{Target: target, Member: n.Member, Ctor: ctor}
				ls.Type = ctor.FieldTypes[i]
				ls.SetLoc(n.Loc())
				return ls
			}
		}
	}
	lm := &ir.LoadMember{Target: target, Member: n.Member}
	lm.Type = &ir.UninferredType{}
	lm.SetLoc(n.Loc())
	return lm
}

func fieldTypeByName(tydef *ir.TypeDefinition, name string) ir.Type {
	for _, ctor := range tydef.Constructors {
		for i, fname := range ctor.FieldNames {
			if fname == name {
				return ctor.FieldTypes[i]
			}
		}
	}
	return &ir.UninferredType{}
}

func (c *Checker) typecheckNamespacedRef(namespace, member string, loc diag.Location) ir.Instruction {
	files := c.namespaces[namespace]
	if fn, err := c.lookupFunctionIn(files, member); err == nil {
		lf := &ir.LoadFunction{Name: fn.Name}
		lf.Type = &ir.FunctionType{ReturnType: fn.ReturnType, ArgTypes: fn.ArgTypes, ArgNames: fn.ArgNames}
		lf.SetLoc(loc)
		return lf
	}
	if instr, err := c.lookupVariableIn(files, member); err == nil {
		return instr
	}
	return c.compileErrorf(loc, "unknown name %q in namespace %q", member, namespace)
}

func (c *Checker) typecheckWhere(fs *FunctionState, n *ast.WhereExpr) ir.Instruction {
	fs.pushScope()
	defer fs.popScope()
	var stmts []ir.Instruction
	for _, s := range n.Stmts {
		stmts = append(stmts, c.TypecheckStmt(fs, s)...)
	}
	inner := c.TypecheckExpr(fs, n.Expr)
	ew := &ir.ExprWithStmt{Stmts: stmts, Expr: inner}
	ew.Type = resultType(inner)
	ew.SetLoc(n.Loc())
	return ew
}

func (c *Checker) typecheckTuple(fs *FunctionState, n *ast.TupleExpr) ir.Instruction {
	positional := make([]ir.Instruction, len(n.Positional))
	posTypes := make([]ir.Type, len(n.Positional))
	for i, e := range n.Positional {
		positional[i] = c.TypecheckExpr(fs, e)
		posTypes[i] = resultType(positional[i])
	}
	named := make([]ir.Instruction, len(n.Named))
	namedTypes := make([]ir.Type, len(n.Named))
	for i, e := range n.Named {
		named[i] = c.TypecheckExpr(fs, e)
		namedTypes[i] = resultType(named[i])
	}
	tty := &ir.TupleType{Positional: posTypes, Named: namedTypes, Names: n.Names}
	rtti := &ir.MakeRtti{Target: tty}
	rtti.Type = &ir.RttiType{}
	rtti.SetLoc(n.Loc())
	it := &ir.InitTuple{Target: rtti, Positional: positional, Named: named, Names: n.Names}
	it.Type = tty
	it.SetLoc(n.Loc())
	return it
}

func (c *Checker) typecheckArray(fs *FunctionState, n *ast.ArrayExpr) ir.Instruction {
	elems := make([]ir.Instruction, len(n.Elems))
	var elemTy ir.Type = &ir.UninferredType{}
	for i, e := range n.Elems {
		elems[i] = c.TypecheckExpr(fs, e)
		if i == 0 {
			elemTy = resultType(elems[0])
		} else {
			elems[i] = c.Coerce(elemTy, elems[i], e.Loc())
		}
	}
	ma := &ir.MakeArray{Elems: elems}
	ma.Type = &ir.ArrayType{Elem: elemTy}
	ma.SetLoc(n.Loc())
	return ma
}

func (c *Checker) typecheckBinaryOp(fs *FunctionState, n *ast.BinaryOpExpr) ir.Instruction {
	lhs := c.TypecheckExpr(fs, n.LHS)
	rhs := c.TypecheckExpr(fs, n.RHS)
	lty, rty := resultType(lhs), resultType(rhs)
	switch n.Op {
	case "==", "!=", "<", "<=", ">", ">=", "and", "or":
		if !typesEqual(lty, rty) {
			rhs = c.Coerce(lty, rhs, n.Loc())
		}
		bo := &ir.BinaryOp{LHS: lhs, Op: n.Op, RHS: rhs}
		bo.Type = &ir.BoolType{}
		bo.SetLoc(n.Loc())
		return bo
	default:
		if !typesEqual(lty, rty) {
			rhs = c.Coerce(lty, rhs, n.Loc())
		}
		bo := &ir.BinaryOp{LHS: lhs, Op: n.Op, RHS: rhs}
		bo.Type = lty
		bo.SetLoc(n.Loc())
		return bo
	}
}

func (c *Checker) typecheckUnaryOp(fs *FunctionState, n *ast.UnaryOpExpr) ir.Instruction {
	inner := c.TypecheckExpr(fs, n.Expr)
	uo := &ir.UnaryOp{Op: n.Op, Expr: inner}
	if n.Op == "not" {
		uo.Type = &ir.BoolType{}
	} else {
		uo.Type = resultType(inner)
	}
	uo.SetLoc(n.Loc())
	return uo
}

func (c *Checker) typecheckCast(fs *FunctionState, n *ast.CastExpr) ir.Instruction {
	inner := c.TypecheckExpr(fs, n.Expr)
	ty, err := c.Declare.ResolveType(n.Type, c.namespaces, c.module)
	if err != nil {
		return c.compileErrorf(n.Loc(), "%s", err)
	}
	ce := &ir.CastExpr{Expr: inner}
	ce.Type = ty
	ce.SetLoc(n.Loc())
	return ce
}

func (c *Checker) typecheckBinaryElse(fs *FunctionState, n *ast.BinaryElseExpr) ir.Instruction {
	lhs := c.TypecheckExpr(fs, n.LHS)
	optTy, ok := resultType(lhs).(*ir.OptionType)
	if !ok {
		return c.compileErrorf(n.Loc(), "binary-else requires an optional left-hand side, got %s", describe(resultType(lhs)))
	}
	fs.pushScope()
	var body []ir.Instruction
	for _, s := range n.Stmt.Stmts {
		body = append(body, c.TypecheckStmt(fs, s)...)
	}
	fs.popScope()
	tmp := fs.newLocalTemp()
	fs.declareLocal(tmp, optTy.Target, false)
	isEmpty := &ir.OptionalIsEmpty{Value: lhs}
	isEmpty.Type = &ir.BoolType{}
	isEmpty.SetLoc(n.Loc())
	ifelse := &ir.IfElse{Cond: isEmpty, TrueBody: body}
	ifelse.SetLoc(n.Loc())
	getVal := &ir.OptionalGetValue{Value: lhs}
	getVal.Type = optTy.Target
	getVal.SetLoc(n.Loc())
	store := &ir.StoreLocalExpr{Name: tmp, Value: getVal}
	store.Type = optTy.Target
	store.SetLoc(n.Loc())
	ew := &ir.ExprWithStmt{Stmts: []ir.Instruction{ifelse}, Expr: store}
	ew.Type = optTy.Target
	ew.SetLoc(n.Loc())
	return ew
}
