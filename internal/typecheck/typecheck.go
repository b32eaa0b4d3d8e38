// Package typecheck lowers a parsed, declared module's function and
// global-variable bodies into typed IR, filling in the
// ir.FunctionDefinition/ir.GlobalVariableDefinition shells
// internal/declare already built. Grounded node-for-node on
// original_source/typecheck/typecheck.py: the coercion-rule chain
// (typecheckInstr), branch-type unification, the FunctionState/loop
// stack, the __unpack__ custom-dereference convention, and the
// constructor/tuple/regex pattern deconstructor all port that file's
// shape, translating its Python match/case dispatch to Go type switches
// the way internal/declare and internal/ast already do.
//
// Unlike the Python reference, a coercion or lookup failure never
// aborts (no `assert False`): every failure records a diagnostic on the
// stream and substitutes an ir.CompileError so checking can continue
// and report every error from one run, matching the "never abort"
// style internal/declare established for its own resolve pass.
package typecheck

import (
	"fmt"
	"sort"

	"cedar/internal/ast"
	"cedar/internal/declare"
	"cedar/internal/diag"
	"cedar/internal/ir"
)

// Checker carries the state shared across every module typechecked in
// one compilation run: the declarer that already built every type
// shell and function/global signature, and the diagnostic stream every
// failure is recorded to.
type Checker struct {
	Declare *declare.Declarer
	Diags   *diag.Stream

	module     string
	namespaces map[string][]string

	// regexCache dedupes one generated matcher function per distinct
	// compiled regex (keyed by its bytecode) across the whole compilation run —
	// SPEC_FULL.md's "each distinct regex literal gets one generated
	// matcher function", keyed here rather than per-function since the
	// same pattern can recur in unrelated functions.
	regexCache map[string]*ir.FunctionDefinition
}

func New(d *declare.Declarer, diags *diag.Stream) *Checker {
	return &Checker{Declare: d, Diags: diags, regexCache: map[string]*ir.FunctionDefinition{}}
}

// scope is one block's local symbol table: declared name -> type.
type scope map[string]ir.Type

// LoopContext tracks the enclosing loop's break/continue destination
// when a for/while is used as an expression (its `break value` supplies
// the loop expression's result).
type LoopContext struct {
	ResultVar  string
	ResultType ir.Type
	UsedAsExpr bool
}

// FunctionState is the per-function checker state: the declared return
// type, a stack of local-symbol scopes (innermost last), a parallel
// stack of access overrides (a local name rebound to a specific
// instruction rather than a plain LoadLocal; no code in this package
// installs one, so every lookup resolves to the plain local), a stack of
// implicit-argument registries keyed by the bound type's identity, and
// the enclosing loop stack. Generated regex matchers are cached on the
// Checker, not here.
type FunctionState struct {
	ReturnType ir.Type

	locals        []scope
	accessLocals  []map[string]ir.Instruction
	implicitTypes []map[ir.Type]ir.Instruction
	loops         []*LoopContext

	tempCounter int
}

func newFunctionState(retty ir.Type) *FunctionState {
	return &FunctionState{
		ReturnType:    retty,
		locals:        []scope{{}},
		accessLocals:  []map[string]ir.Instruction{{}},
		implicitTypes: []map[ir.Type]ir.Instruction{{}},
	}
}

func (fs *FunctionState) pushScope() {
	fs.locals = append(fs.locals, scope{})
	fs.accessLocals = append(fs.accessLocals, map[string]ir.Instruction{})
	fs.implicitTypes = append(fs.implicitTypes, map[ir.Type]ir.Instruction{})
}

func (fs *FunctionState) popScope() {
	fs.locals = fs.locals[:len(fs.locals)-1]
	fs.accessLocals = fs.accessLocals[:len(fs.accessLocals)-1]
	fs.implicitTypes = fs.implicitTypes[:len(fs.implicitTypes)-1]
}

func (fs *FunctionState) declareLocal(name string, ty ir.Type, implicit bool) {
	fs.locals[len(fs.locals)-1][name] = ty
	if implicit {
		ld := &ir.LoadLocal{Name: name}
		ld.Type = ty
		fs.implicitTypes[len(fs.implicitTypes)-1][ty] = ld
	}
}

// lookupLocal walks the scope stack innermost-out. An access override
// takes priority over a plain LoadLocal; no code in this package
// installs one, so lookups resolve to the plain local.
func (fs *FunctionState) lookupLocal(name string, loc diag.Location) (ir.Instruction, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if override, ok := fs.accessLocals[i][name]; ok {
			return override, true
		}
		if ty, ok := fs.locals[i][name]; ok {
			ld := &ir.LoadLocal{Name: name}
			ld.Type = ty
			ld.SetLoc(loc)
			return ld, true
		}
	}
	return nil, false
}

// lookupImplicit walks the implicit-argument registry stack innermost-out,
// keyed by the target type's identity (pointer identity of the interned
// IR type, per SPEC_FULL.md §on implicit arguments), not by name.
func (fs *FunctionState) lookupImplicit(ty ir.Type) (ir.Instruction, bool) {
	for i := len(fs.implicitTypes) - 1; i >= 0; i-- {
		if instr, ok := fs.implicitTypes[i][ty]; ok {
			return instr, true
		}
	}
	return nil, false
}

// newLocalTemp synthesizes a fresh __tempN__ name, counting every local
// currently declared across all open scopes so nested temporaries never
// collide with a sibling block's.
func (fs *FunctionState) newLocalTemp() string {
	for {
		fs.tempCounter++
		name := fmt.Sprintf("__temp%d__", fs.tempCounter)
		collision := false
		for _, sc := range fs.locals {
			if _, ok := sc[name]; ok {
				collision = true
				break
			}
		}
		if !collision {
			return name
		}
	}
}

// ---- type description / equality ----

// describe renders a Type the way the Python reference's describe()
// does, for diagnostic messages. It doubles as this package's
// structural-equality key: two Type values with identical descriptions
// are treated as the same type for coercion purposes, since declare
// resolves every named reference to a shared shell but literal
// composite types (pointer-of, option-of, ...) are rebuilt fresh at
// each occurrence and so can't be compared by Go identity.
func describe(ty ir.Type) string {
	switch t := ty.(type) {
	case nil:
		return "<nil>"
	case *ir.UninferredType:
		return "<uninferred>"
	case *ir.IntegerType:
		sign := "i"
		if !t.Signed {
			sign = "u"
		}
		return fmt.Sprintf("%s%d", sign, t.Bits)
	case *ir.FloatType:
		return fmt.Sprintf("f%d", t.Bits)
	case *ir.BoolType:
		return "bool"
	case *ir.VoidType:
		return "void"
	case *ir.ExitType:
		return "<exit>"
	case *ir.PointerType:
		return "*" + describe(t.Target)
	case *ir.OptionType:
		return describe(t.Target) + "?"
	case *ir.UnionType:
		parts := make([]string, len(t.Types))
		for i, alt := range t.Types {
			parts[i] = describe(alt)
		}
		sort.Strings(parts)
		return "(" + joinPipe(parts) + ")"
	case *ir.ArrayType:
		return "[]" + describe(t.Elem)
	case *ir.TupleType:
		parts := make([]string, 0, len(t.Positional)+len(t.Named))
		for _, p := range t.Positional {
			parts = append(parts, describe(p))
		}
		for i, n := range t.Named {
			parts = append(parts, t.Names[i]+": "+describe(n))
		}
		return "{" + joinComma(parts) + "}"
	case *ir.FunctionType:
		args := make([]string, len(t.ArgTypes))
		for i, a := range t.ArgTypes {
			args[i] = describe(a)
		}
		return "fn(" + joinComma(args) + ") " + describe(t.ReturnType)
	case *ir.TypeDefinition:
		return t.Filename + "." + t.Name
	case *ir.RttiType:
		return "<rtti>"
	case *ir.CNamedType:
		return "c:" + t.TypeKind + " " + t.Name
	case *ir.CArrayType:
		return "c:[]" + describe(t.Elem)
	case *ir.CFunctionPointerType:
		return "c:fnptr"
	case *ir.CUnknownType:
		return "c:unknown " + t.Name
	case *ir.CConstType:
		return "const " + describe(t.Target)
	case *ir.CStructDefinition:
		return t.Filename + ".struct " + t.Name
	case *ir.CUnionDefinition:
		return t.Filename + ".union " + t.Name
	case *ir.CEnumDefinition:
		return t.Filename + ".enum " + t.Name
	case *ir.CTypedefDefinition:
		return t.Filename + ".typedef " + t.Name
	default:
		return fmt.Sprintf("%T", ty)
	}
}

func joinComma(parts []string) string { return join(parts, ", ") }
func joinPipe(parts []string) string  { return join(parts, " | ") }

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func typesEqual(a, b ir.Type) bool { return describe(a) == describe(b) }

// stringType is the representation every string literal, scrutinee
// check, and regex-generated string-slice field uses: a byte array, the
// same shape LoadString's value is checked against.
func stringType() ir.Type { return &ir.ArrayType{Elem: &ir.IntegerType{Bits: 8, Signed: false}} }

func cStringType() ir.Type {
	return &ir.PointerType{Target: &ir.CConstType{Target: &ir.CNamedType{Name: "char"}}}
}

func resultType(instr ir.Instruction) ir.Type {
	if t, ok := instr.(ir.Typed); ok {
		return t.ResultType()
	}
	return &ir.VoidType{}
}

func hasStringLiteral(instr ir.Instruction) (string, bool) {
	switch s := instr.(type) {
	case *ir.LoadString:
		return s.Value, true
	}
	return "", false
}

// compileErrorf records a diagnostic and returns an ir.CompileError
// carrying the same message, so a checking pass that failed at this
// node can keep going instead of aborting.
func (c *Checker) compileErrorf(loc diag.Location, format string, args ...any) ir.Instruction {
	msg := fmt.Sprintf(format, args...)
	c.Diags.Typef(loc, "%s", msg)
	ce := &ir.CompileError{Description: msg}
	ce.SetLoc(loc)
	return ce
}

// Coerce ports typecheck_instr's ordered coercion-rule chain: given a
// target type and an already-checked instruction, either accept it
// as-is, rewrap it in the node the target type's shape demands, or fail
// with a diagnostic (returning an ir.CompileError rather than aborting).
// loc is used only for the diagnostic if coercion fails.
func (c *Checker) Coerce(ty ir.Type, instr ir.Instruction, loc diag.Location) ir.Instruction {
	if ce, ok := instr.(*ir.CompileError); ok {
		return ce
	}
	instrTy := resultType(instr)

	// Exact match passes through unchanged.
	if typesEqual(ty, instrTy) {
		return instr
	}

	// Integer literal range check against the target's bit width/sign: a
	// literal still carries its default i32 type until something coerces
	// it, so any target integer type gets a range check instead of the
	// plain widening rule further down.
	if want, ok := ty.(*ir.IntegerType); ok {
		if lit, ok := instr.(*ir.LoadInteger); ok && isDefaultIntType(instrTy) {
			if !integerFits(lit.Value, want.Bits, want.Signed) {
				return c.compileErrorf(loc, "integer literal %d does not fit in %s", lit.Value, describe(want))
			}
			out := &ir.LoadInteger{Value: lit.Value}
			out.Type = want
			out.SetLoc(lit.Loc())
			return out
		}
	}

	// `null` coerces to an Option or Pointer of any target.
	if _, isNull := instr.(*ir.UntypedNull); isNull {
		switch ty.(type) {
		case *ir.OptionType, *ir.PointerType:
			n := &ir.Null{}
			n.Type = ty
			n.SetLoc(loc)
			return n
		}
	}

	// Implicit address-of: target wants *T, the instruction already
	// produces a T.
	if want, ok := ty.(*ir.PointerType); ok && typesEqual(want.Target, instrTy) {
		ao := &ir.AddressOf{Value: instr}
		ao.Type = ty
		ao.SetLoc(loc)
		return ao
	}

	// Union membership.
	if want, ok := ty.(*ir.UnionType); ok {
		for _, alt := range want.Types {
			if typesEqual(alt, instrTy) {
				mu := &ir.MakeUnion{Value: instr}
				mu.Type = ty
				mu.SetLoc(loc)
				return mu
			}
		}
	}

	// Option wrap: target wants T?, instruction already produces a T.
	if want, ok := ty.(*ir.OptionType); ok && typesEqual(want.Target, instrTy) {
		mo := &ir.MakeOptional{Value: instr}
		mo.Type = ty
		mo.SetLoc(loc)
		return mo
	}

	// size_t / plain C `int` accept any integer (ABI alias coercion).
	if td, ok := ty.(*ir.CTypedefDefinition); ok && td.Name == "size_t" {
		if _, isInt := instrTy.(*ir.IntegerType); isInt {
			return instr
		}
	}
	if cn, ok := ty.(*ir.CNamedType); ok && cn.Name == "int" && cn.TypeKind == "" {
		if _, isInt := instrTy.(*ir.IntegerType); isInt {
			return instr
		}
	}

	// Back-fill an array literal's uninferred element type.
	if want, ok := ty.(*ir.ArrayType); ok {
		if got, ok := instrTy.(*ir.ArrayType); ok {
			if _, uninferred := got.Elem.(*ir.UninferredType); uninferred {
				got.Elem = want.Elem
				return instr
			}
		}
	}

	// Integer widening within the same signedness family.
	if want, ok := ty.(*ir.IntegerType); ok {
		if got, ok := instrTy.(*ir.IntegerType); ok && got.Signed == want.Signed && got.Bits <= want.Bits {
			return instr
		}
	}

	// A string literal at a C-string-typed target becomes a C string.
	if typesEqual(ty, cStringType()) {
		if s, ok := hasStringLiteral(instr); ok {
			cs := &ir.LoadCString{Value: s}
			cs.Type = ty
			cs.SetLoc(loc)
			return cs
		}
	}

	return c.compileErrorf(loc, "cannot use a value of type %s where %s is expected", describe(instrTy), describe(ty))
}

// isDefaultIntType reports whether ty is the default literal-integer
// type an un-coerced LoadInteger carries (i32), so Coerce's range-check
// rule only fires for an actual literal still at its default width, not
// an already-widened one.
func isDefaultIntType(ty ir.Type) bool {
	it, ok := ty.(*ir.IntegerType)
	return ok && it.Bits == 32 && it.Signed
}

func integerFits(v int64, bits int, signed bool) bool {
	if signed {
		min := -(int64(1) << (bits - 1))
		max := int64(1)<<(bits-1) - 1
		return v >= min && v <= max
	}
	if v < 0 {
		return false
	}
	if bits >= 64 {
		return true
	}
	return uint64(v) < uint64(1)<<bits
}

// unifyTypesFromBranches ports unify_types_from_branches: the two arms
// of an if/for/while used as an expression don't need identical types,
// only a common one built the same way the source branches merge.
func unifyTypesFromBranches(ty0, ty1 ir.Type) ir.Type {
	if typesEqual(ty0, ty1) {
		return ty0
	}
	if _, ok := ty0.(*ir.ExitType); ok {
		return ty1
	}
	if _, ok := ty1.(*ir.ExitType); ok {
		return ty0
	}
	if _, ok := ty0.(*ir.VoidType); ok {
		return &ir.OptionType{Target: ty1}
	}
	if _, ok := ty1.(*ir.VoidType); ok {
		return &ir.OptionType{Target: ty0}
	}
	u0, ok0 := ty0.(*ir.UnionType)
	u1, ok1 := ty1.(*ir.UnionType)
	if ok0 && ok1 {
		return &ir.UnionType{Types: append(append([]ir.Type{}, u0.Types...), u1.Types...)}
	}
	return &ir.UnionType{Types: []ir.Type{ty0, ty1}}
}

// dereferencePointer ports dereference_pointer's __unpack__ convention:
// dereferencing a pointer to a declared type first checks whether that
// type's module defines a function literally named __unpack__ whose
// return type matches, and calls it instead of emitting a raw pointer
// dereference if so.
func (c *Checker) dereferencePointer(value ir.Instruction, loc diag.Location) ir.Instruction {
	ptrTy, ok := resultType(value).(*ir.PointerType)
	if !ok {
		return c.compileErrorf(loc, "cannot dereference a non-pointer value of type %s", describe(resultType(value)))
	}
	if tydef, ok := ptrTy.Target.(*ir.TypeDefinition); ok {
		if mod, ok := c.Declare.Modules[tydef.Filename]; ok {
			for _, fn := range mod.Functions {
				if fn.Name == "__unpack__" && len(fn.ArgTypes) == 1 && typesEqual(fn.ArgTypes[0], ptrTy) && typesEqual(fn.ReturnType, tydef) {
					call := &ir.CallFunction{Func: fn, Arguments: []ir.Instruction{value}}
					call.Type = fn.ReturnType
					call.SetLoc(loc)
					return call
				}
			}
		}
	}
	dp := &ir.DereferencePointer{Value: value}
	dp.Type = ptrTy.Target
	dp.SetLoc(loc)
	return dp
}

// lookupPackFunction finds a module-defined `__pack__(src, dstptr)`
// function for a sum type, the store-side counterpart of
// dereferencePointer's __unpack__ convention: SPEC_FULL.md's assignment
// forms route a store to a sum-typed target through it when present.
func (c *Checker) lookupPackFunction(tydef *ir.TypeDefinition) (*ir.FunctionDefinition, bool) {
	mod, ok := c.Declare.Modules[tydef.Filename]
	if !ok {
		return nil, false
	}
	for _, fn := range mod.Functions {
		if fn.Name == "__pack__" && len(fn.ArgTypes) == 2 && typesEqual(fn.ArgTypes[0], tydef) {
			if ptr, ok := fn.ArgTypes[1].(*ir.PointerType); ok && typesEqual(ptr.Target, tydef) {
				return fn, true
			}
		}
	}
	return nil, false
}

// storeValue emits the instruction(s) that store val into the address
// given by addr (already an AddressOf-typed instruction), routing
// through __pack__ when val's type is a sum type that defines one.
func (c *Checker) storeValue(addr, val ir.Instruction, loc diag.Location) ir.Instruction {
	if tydef, ok := resultType(val).(*ir.TypeDefinition); ok {
		if fn, ok := c.lookupPackFunction(tydef); ok {
			call := &ir.CallFunction{Func: fn, Arguments: []ir.Instruction{val, addr}}
			call.Type = fn.ReturnType
			call.SetLoc(loc)
			iv := &ir.IgnoreValue{Value: call}
			iv.SetLoc(loc)
			return iv
		}
	}
	st := &ir.StoreAtAddress{Address: addr, Value: val}
	st.SetLoc(loc)
	return st
}
