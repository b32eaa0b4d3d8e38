// Package ir defines the typed intermediate representation produced by
// internal/declare and internal/typecheck: type descriptors, top-level
// definitions, and an SSA-flavored instruction set. Grounded node-for-node
// on original_source/backend/ir.py's frozen dataclasses, translated to Go
// structs implementing small marker interfaces (Type, CType, Instruction)
// the way internal/ast does for the untyped tree.
package ir

import "cedar/internal/diag"

// ---- Types ----

type Type interface{ irType() }
type typeBase struct{}

func (typeBase) irType() {}

// CType is the separate C-type-system family (structs/unions/enums come
// from a header, not the source language's own type grammar).
type CType interface{ irCType() }
type cTypeBase struct{}

func (cTypeBase) irCType() {}

type UninferredType struct{ typeBase }

// PaddingType marks an explicit padding field inserted by the layout
// optimizer; every byte of a value's storage is initialized, so padding
// bytes need a real type the backend can emit zero-fill for.
type PaddingType struct {
	typeBase
	Bytes int
}

type IntegerType struct {
	typeBase
	Bits   int
	Signed bool
}

type FloatType struct {
	typeBase
	Bits int
}

type BoolType struct{ typeBase }
type VoidType struct{ typeBase }

// ExitType is the type of an instruction sequence that never yields a
// value because control leaves it: return/break/continue.
type ExitType struct{ typeBase }

type PointerType struct {
	typeBase
	Target Type
}

type OptionType struct {
	typeBase
	Target Type
}

type UnionType struct {
	typeBase
	Types []Type
}

type ArrayType struct {
	typeBase
	Elem Type
}

// TupleType's Layout{Types,Names} hold the padding-expanded field list,
// in declared order; Positional/Named/Names hold the surface shape.
type TupleType struct {
	typeBase
	Positional  []Type
	Named       []Type
	Names       []string
	LayoutTypes []Type
	LayoutNames []string
}

type FunctionType struct {
	typeBase
	ReturnType Type
	ArgTypes   []Type
	ArgNames   []string
}

type RttiType struct{ typeBase }

type CNamedType struct {
	typeBase
	Name     string
	TypeKind string
}

type CArrayType struct {
	typeBase
	Elem Type
}

type CFunctionPointerType struct {
	typeBase
	ReturnType Type
	ArgTypes   []Type
	ArgNames   []string
	Varargs    bool
}

// CUnknownType stands in for a C type reference that could not be
// resolved. internal/declare does not produce it: an unresolved C type
// name is reported as an error instead.
type CUnknownType struct {
	typeBase
	Name     string
	TypeKind string
}

type CConstType struct {
	typeBase
	Target Type
}

// ---- Type / C-type definitions ----

// TypeConstructor is one sum-type arm: its surface field list plus the
// layout optimizer's padding-expanded, possibly-reordered placement.
type TypeConstructor struct {
	Name           string
	FieldTypes     []Type
	FieldNames     []string
	WithoutArgList bool
	LayoutTypes    []Type
	LayoutNames    []string
	TagValue       int
}

// TypeDefinition is a (possibly sum-) type: Tagless when it has no
// constructors or a constructor with an explicit void tag, meaning no discriminant byte
// is stored. CommonNames lists fields shared verbatim, by (type, name),
// across every constructor — these can be loaded without a tag check.
type TypeDefinition struct {
	typeBase
	Filename       string
	Name           string
	Constructors   []*TypeConstructor
	CommonNames    []string
	Exported       bool
	Tagless        bool
	OptimizeLayout bool
}

type CStructDefinition struct {
	cTypeBase
	Filename    string
	Name        string
	FieldTypes  []Type
	FieldNames  []string // nil when only forward-declared
	LayoutTypes []Type
	LayoutNames []string
}

// CTypedefDefinition's Definition is a Type reference (e.g. a CNamedType
// naming the struct/union/enum/primitive the alias stands for), not
// another CType shell — a typedef never owns a definition body, only
// points at one.
type CTypedefDefinition struct {
	cTypeBase
	Filename   string
	Name       string
	Definition Type
}

type CUnionDefinition struct {
	cTypeBase
	Filename   string
	Name       string
	FieldTypes []Type
	FieldNames []string
}

// CEnumDefinition holds an enum's enumerator names directly, unlike the
// Python reference, which constructs a CStructDefinition for enums too
// (reusing the wrong shape — enumerators were stuffed into the
// FieldTypes slot). See SPEC_FULL.md §12 / DESIGN.md.
type CEnumDefinition struct {
	cTypeBase
	Filename    string
	Name        string
	Enumerators []string
}

type CFunctionDefinition struct {
	Filename   string
	ReturnType Type
	Name       string
	ArgTypes   []Type
	ArgNames   []string
	Varargs    bool
}

type CGlobalVariableDefinition struct {
	Filename   string
	Type       Type
	Name       string
	HasAddress bool
	Assignable bool
}

type FunctionDefinition struct {
	Filename         string
	ReturnType       Type
	Name             string
	ArgTypesImplicit []Type
	ArgNamesImplicit []string
	ArgTypes         []Type
	ArgNames         []string
	Body             []Instruction
	Exported         bool
}

type GlobalVariableDefinition struct {
	Filename string
	Type     Type
	Name     string
	Value    Instruction
}

type Namespace struct {
	Name    string
	Modules []*ModuleDefinition
}

// ModuleDefinition splits Types/CTypes where the Python reference kept
// one heterogeneous `types` list (TypeDefinition and the C-type family
// mixed together) — Go's Type/CType stay separate marker interfaces, so
// declaration order across both is tracked in DeclOrder instead.
type ModuleDefinition struct {
	Filename  string
	Functions []*FunctionDefinition
	Variables []*GlobalVariableDefinition
	Types     []*TypeDefinition
	CTypes    []CType
	// CFunctions/CVariables hold declarations parsed from a C header
	// rather than the source language — populated only for a module that
	// is itself a header (internal/cheader's tree); other modules reach
	// them through a namespace that imports the header.
	CFunctions []*CFunctionDefinition
	CVariables []*CGlobalVariableDefinition
	DeclOrder  []string // names, in the order their declarations appeared
	Namespaces []*Namespace
	MainModule bool
}

// ---- Instructions ----

type Instruction interface {
	irInstr()
	Loc() diag.Location
}

type instrBase struct{ Location diag.Location }

func (instrBase) irInstr()              {}
func (b instrBase) Loc() diag.Location  { return b.Location }
func (b *instrBase) SetLoc(l diag.Location) { b.Location = l }

// typedBase is embedded by every instruction that also yields a value.
type typedBase struct {
	instrBase
	Type Type
}

// Typed is implemented by every instruction that yields a value (i.e.
// every instruction except the purely imperative ones: StoreLocal,
// Return, Goto, Label, ...). internal/typecheck uses ResultType to read
// an already-built instruction's inferred type back out through the
// bare Instruction interface, since a promoted field can't be named in
// another package's type switch.
type Typed interface {
	Instruction
	ResultType() Type
}

func (t typedBase) ResultType() Type { return t.Type }

// UntypedNull appears only mid-typecheck (the literal `null` before its
// target type is known); it never survives into checked IR.
type UntypedNull struct{ instrBase }

// CompileError marks a point where type-checking failed; the pass
// records a diagnostic and substitutes this node instead of aborting, so
// checking continues and collects every error in one run.
type CompileError struct {
	instrBase
	Description string
}

type DeclareLocal struct {
	instrBase
	DeclareType Type
	Name        string
}

type StoreLocal struct {
	instrBase
	Name  string
	Value Instruction
}

type StoreAtAddress struct {
	instrBase
	Address Instruction
	Value   Instruction
}

type ReturnValue struct {
	instrBase
	Value Instruction
}

type Return struct{ instrBase }

type Assert struct {
	instrBase
	Value Instruction
}

type IgnoreValue struct {
	instrBase
	Value Instruction
}

type Scope struct {
	instrBase
	Body []Instruction
}

type IfElse struct {
	instrBase
	Cond      Instruction
	TrueBody  []Instruction
	FalseBody []Instruction
}

type Goto struct {
	instrBase
	Label string
}

type Label struct {
	instrBase
	Name string
}

type LoadInteger struct {
	typedBase
	Value int64
}

type LoadSymbol struct {
	typedBase
	Value string
}

type LoadBool struct {
	typedBase
	Value bool
}

type LoadFloat struct {
	typedBase
	Value string
}

type LoadCString struct {
	typedBase
	Value string
}

type LoadString struct {
	typedBase
	Value string
}

type LoadCGlobal struct {
	typedBase
	Var *CGlobalVariableDefinition
}

type Null struct{ typedBase }

type LoadLocal struct {
	typedBase
	Name string
}

type LoadGlobal struct {
	typedBase
	Filename string
	Name     string
}

type LoadFunction struct {
	typedBase
	Name string
}

type StoreLocalExpr struct {
	typedBase
	Name  string
	Value Instruction
}

// TypeDowncast narrows a sum-type value to one constructor's arm after a
// tag check has already established it's safe to do so.
type TypeDowncast struct {
	typedBase
	Target Instruction
	Ctor   *TypeConstructor
}

type CastExpr struct {
	typedBase
	Expr Instruction
}

type LoadTupleIndex struct {
	typedBase
	Target Instruction
	Index  int
}

type LoadArrayIndex struct {
	typedBase
	Target Instruction
	Index  Instruction
}

type ArrayAppend struct {
	typedBase
	Array Instruction
	Value Instruction
}

type ArrayPop struct {
	typedBase
	Array Instruction
}

type LoadMember struct {
	typedBase
	Target Instruction
	Member string
}

// LoadSubMember loads a field specific to one constructor arm, once the
// tag check has narrowed the value to that arm.
type LoadSubMember struct {
	typedBase
	Target Instruction
	Member string
	Ctor   *TypeConstructor
}

type LoadTagValue struct {
	typedBase
	Target Instruction
}

// LoadCommonMember loads a field present, with the same declared type,
// on every constructor of a sum type — no tag check required. The
// field's offset can differ from one constructor to another.
type LoadCommonMember struct {
	typedBase
	Target Instruction
	Member string
}

type Cast struct {
	typedBase
	Value Instruction
}

type AddressOf struct {
	typedBase
	Value Instruction
}

type DereferencePointer struct {
	typedBase
	Value Instruction
}

type BinaryOp struct {
	typedBase
	LHS Instruction
	Op  string
	RHS Instruction
}

type UnaryOp struct {
	typedBase
	Op   string
	Expr Instruction
}

// MakeRtti materializes a runtime-type-info descriptor for Target,
// needed where a union value must carry its concrete type at runtime.
type MakeRtti struct {
	typedBase
	Target Type
}

type InitInstance struct {
	typedBase
	Target    Instruction
	Ctor      *TypeConstructor
	Arguments []Instruction
}

type InitCInstance struct {
	typedBase
	Target    Instruction
	Arguments []Instruction
}

type CallFunction struct {
	typedBase
	Func      *FunctionDefinition
	Arguments []Instruction
}

type CallCFunction struct {
	typedBase
	Func      *CFunctionDefinition
	Arguments []Instruction
}

type CallFunctionPointer struct {
	typedBase
	Func      Instruction
	Arguments []Instruction
}

type InitTuple struct {
	typedBase
	Target     Instruction
	Positional []Instruction
	Named      []Instruction
	Names      []string
}

type MakeUnion struct {
	typedBase
	Value Instruction
}

type MakeOptional struct {
	typedBase
	Value Instruction
}

type OptionalIsEmpty struct {
	typedBase
	Value Instruction
}

type OptionalGetValue struct {
	typedBase
	Value Instruction
}

type MakeArray struct {
	typedBase
	Elems []Instruction
}

type MakeArrayFromPointer struct {
	typedBase
	Length  int
	Pointer Instruction
}

type MakePointerFromArray struct {
	typedBase
	Array Instruction
}

// ExprWithStmt is an expression that needs statements run first to
// produce its value — e.g. a where-expression's block, or pattern-match
// deconstruction's let-bindings ahead of the matched value.
type ExprWithStmt struct {
	typedBase
	Stmts []Instruction
	Expr  Instruction
}

// RegexMatch invokes a compiled regex's generated matcher function.
// GroupMappings gives, for each capture, where its matched text is
// stored in the result tuple (see internal/rx.SortedGroupNames).
type RegexMatch struct {
	typedBase
	Target        Instruction
	Bytecode      []byte
	NumGroups     int
	GroupMappings []string
}
