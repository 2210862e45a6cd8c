package compiler

// ---------------------------------------------------------------------------
// AST: parse tree for a single script
// ---------------------------------------------------------------------------
//
// The tree is produced once per compilation and never mutated afterwards.

// Script is one function signature plus an ordered statement sequence.
type Script struct {
	Args  []TypedArgument
	Stmts []Statement
}

// TypedArgument is a named input argument with its declared type.
type TypedArgument struct {
	Name string
	Type TypeDecl
}

// TypeDecl names a type, optionally marked as a reference.
type TypeDecl struct {
	Name  string
	IsRef bool // leading '&'
}

// Statement is the interface for top-level statement nodes.
type Statement interface {
	stmt() // marker method
}

// Assignment writes an rvalue into an lvalue, optionally declaring its
// type on first definition.
type Assignment struct {
	Left  LValue
	Decl  *TypeDecl // nil when no ':' type annotation was written
	Right RValue
}

func (*Assignment) stmt() {}

// FunctionCall invokes a cataloged helper. It appears both as a statement
// and as an rvalue.
type FunctionCall struct {
	Name string
	Args []RValue
}

func (*FunctionCall) stmt() {}
func (*FunctionCall) rval() {}

// Return terminates the program, optionally with a value.
type Return struct {
	Value RValue // nil for a bare return
}

func (*Return) stmt() {}

// RValue is the interface for assignment sources and argument expressions.
type RValue interface {
	rval() // marker method
}

// Immediate is an unsigned decimal literal, kept as text until the target
// width is known.
type Immediate string

func (Immediate) rval() {}

// Prefix marks an lvalue as a reference or dereference expression.
type Prefix int

const (
	NoPrefix    Prefix = iota
	RefPrefix          // &x
	DerefPrefix        // *x
)

// LValue names a variable with an optional prefix and a dereference chain.
type LValue struct {
	Prefix Prefix
	Name   string
	Derefs []Deref
}

func (*LValue) rval() {}

// Deref is one step of a dereference chain.
type Deref interface {
	deref() // marker method
}

// MemberAccess selects a struct member by name.
type MemberAccess struct {
	Name string
}

func (MemberAccess) deref() {}

// ArrayIndex selects an array element by decimal literal index.
type ArrayIndex struct {
	Index string
}

func (ArrayIndex) deref() {}

// Comparator is a comparison operator token. The grammar defines these and
// the Condition production, but no statement form consumes them yet; they
// are reserved surface syntax.
type Comparator int

const (
	CmpEq Comparator = iota
	CmpNe
	CmpLt
	CmpGt
	CmpLe
	CmpGe
)

// Condition is a comparison between an lvalue and an rvalue. Reserved for a
// future conditional construct.
type Condition struct {
	Left  LValue
	Op    Comparator
	Right RValue
}
