package typecheck

import (
	"github.com/google/uuid"

	"cedar/internal/ast"
	"cedar/internal/diag"
	"cedar/internal/ir"
	"cedar/internal/rx"
)

// compileRegexLiteral handles a regex literal encountered outside
// pattern position. The grammar's pattern-expression form (SPEC_FULL.md
// §4.2) is the only place a regex is actually matched against
// something; a bare `/.../` elsewhere has no implied scrutinee.
func (c *Checker) compileRegexLiteral(fs *FunctionState, n *ast.RegexExpr) ir.Instruction {
	return c.compileErrorf(n.Loc(), "a regex literal is only valid as a pattern in `if ... case /.../`")
}

// emitRegexMatch compiles pattern's regex AST, materializes (or reuses)
// its generated matcher function, and returns a call to it against
// scrutinee, along with the sorted named-group bindings the caller's
// pattern deconstruction needs: groupNames/groupTypes describe the
// result tuple's named slots (always string-slice typed, per the
// regex-named-group pattern-binding fix in DESIGN.md).
func (c *Checker) emitRegexMatch(fs *FunctionState, scrutinee ir.Instruction, pattern *ast.RegexExpr, loc diag.Location) (ir.Instruction, []string, []ir.Type) {
	compiled, err := rx.Compile(pattern.Value)
	if err != nil {
		return c.compileErrorf(loc, "regex compile error: %s", err), nil, nil
	}
	key := string(compiled.Code)
	fn, ok := c.regexCache[key]
	if !ok {
		fn = c.buildRegexMatchFunction(compiled)
		c.regexCache[key] = fn
		if mod, ok := c.Declare.Modules[c.module]; ok {
			mod.Functions = append(mod.Functions, fn)
		}
	}

	call := &ir.CallFunction{Func: fn, Arguments: []ir.Instruction{scrutinee}}
	call.Type = fn.ReturnType
	call.SetLoc(loc)

	groupNames := rx.SortedGroupNames(compiled.Groups)
	if len(groupNames) == 0 {
		return call, nil, nil
	}
	groupTypes := make([]ir.Type, len(groupNames))
	for i := range groupTypes {
		groupTypes[i] = stringType()
	}
	return call, groupNames, groupTypes
}

// buildRegexMatchFunction ports compile_regex_function: wraps a
// compiled regex's bytecode and group table in a standalone function
// taking one string argument, so every call site shares the same
// generated matcher rather than inlining the bytecode per use. Its name
// is uuid-suffixed (github.com/google/uuid) so two regexes compiled
// while checking unrelated functions never collide without requiring a
// shared, order-sensitive sequence counter.
func (c *Checker) buildRegexMatchFunction(compiled *rx.Compiled) *ir.FunctionDefinition {
	groupNames := rx.SortedGroupNames(compiled.Groups)
	var retTy ir.Type = &ir.BoolType{}
	var mappings []string
	if len(groupNames) > 0 {
		fieldTypes := make([]ir.Type, len(groupNames))
		for i := range fieldTypes {
			fieldTypes[i] = stringType()
		}
		retTy = &ir.OptionType{Target: &ir.TupleType{Named: fieldTypes, Names: groupNames}}
		mappings = groupNames
	}

	argLoad := &ir.LoadLocal{Name: "s"}
	argLoad.Type = stringType()

	match := &ir.RegexMatch{
		Target:        argLoad,
		Bytecode:      compiled.Code,
		NumGroups:     len(compiled.Groups),
		GroupMappings: mappings,
	}
	match.Type = retTy

	ret := &ir.ReturnValue{Value: match}

	return &ir.FunctionDefinition{
		Filename:   c.module,
		Name:       "__regex_match_" + uuid.NewString(),
		ReturnType: retTy,
		ArgTypes:   []ir.Type{stringType()},
		ArgNames:   []string{"s"},
		Body:       []ir.Instruction{ret},
	}
}
