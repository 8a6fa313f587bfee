// Package ast holds the desugared syntax tree the checker consumes. The
// tree is deliberately small: the parser lowers surface sugar (short-circuit
// operators, safe navigation, unless, elsif chains) before anything here is
// built.
package ast

import "github.com/viant/strictly/core"

// Node is any tree node; every node carries its source range.
type Node interface {
	NodeLoc() core.Loc
}

type base struct {
	Loc core.Loc
}

func (b base) NodeLoc() core.Loc { return b.Loc }

// Program is one parsed file.
type Program struct {
	base
	File  core.FileRef
	Stmts []Node
}

// ClassDef declares or reopens a class or module.
type ClassDef struct {
	base
	Name       []string // constant path segments
	Superclass []string // empty when none named
	IsModule   bool
	Body       []Node
}

// MethodDef declares a method; Sig is nil when the method is unannotated.
type MethodDef struct {
	base
	Name      string
	SelfDef   bool // def self.name
	Params    []Param
	Sig       *Signature
	Body      []Node
	IsPrivate bool
}

// ParamKind discriminates the parameter forms.
type ParamKind uint8

const (
	ParamRequired ParamKind = iota
	ParamOptional
	ParamRest
	ParamKeyword
	ParamKeywordOptional
	ParamBlock
)

// Param is one declared parameter.
type Param struct {
	Name    string
	Kind    ParamKind
	Default Node // optional params only
	Loc     core.Loc
}

// Signature is the lowered sig-block contract attached to the following
// method definition.
type Signature struct {
	base
	Params      []SigParam
	Return      TypeExpr // nil when Void
	Void        bool
	Abstract    bool
	Override    bool
	Overridable bool
	Final       bool
	TypeParams  []string
	Bind        TypeExpr
}

// SigParam pairs a declared parameter name with its type expression.
type SigParam struct {
	Name string
	Type TypeExpr
	Loc  core.Loc
}

// TypeExpr is an unresolved type annotation; the resolver turns it into a
// core.Type.
type TypeExpr interface {
	Node
	typeExpr()
}

// TypeConst names a constant path, e.g. Integer or Foo::Bar.
type TypeConst struct {
	base
	Path []string
}

func (*TypeConst) typeExpr() {}

// TypeApply applies type arguments to a generic constant, e.g.
// T::Array[Integer].
type TypeApply struct {
	base
	Base *TypeConst
	Args []TypeExpr
}

func (*TypeApply) typeExpr() {}

// TypeNilable is T.nilable(X).
type TypeNilable struct {
	base
	Inner TypeExpr
}

func (*TypeNilable) typeExpr() {}

// TypeAny is T.any(A, B, ...).
type TypeAny struct {
	base
	Options []TypeExpr
}

func (*TypeAny) typeExpr() {}

// TypeAll is T.all(A, B, ...).
type TypeAll struct {
	base
	Options []TypeExpr
}

func (*TypeAll) typeExpr() {}

// TypeUntyped is T.untyped.
type TypeUntyped struct{ base }

func (*TypeUntyped) typeExpr() {}

// TypeSelf is T.self_type.
type TypeSelf struct{ base }

func (*TypeSelf) typeExpr() {}

// TypeNoReturn is T.noreturn.
type TypeNoReturn struct{ base }

func (*TypeNoReturn) typeExpr() {}

// TypeBoolean is T::Boolean.
type TypeBoolean struct{ base }

func (*TypeBoolean) typeExpr() {}

// TypeTuple is a fixed-length array annotation, e.g. [Integer, String].
type TypeTuple struct {
	base
	Elems []TypeExpr
}

func (*TypeTuple) typeExpr() {}

// TypeShape is a fixed-key hash annotation, e.g. {name: String}.
type TypeShape struct {
	base
	Keys   []string
	Values []TypeExpr
}

func (*TypeShape) typeExpr() {}

// TypeVarRef names a method-level type parameter declared via
// type_parameters.
type TypeVarRef struct {
	base
	Name string
}

func (*TypeVarRef) typeExpr() {}

// ---- statements and expressions ----

// Assign binds Value to a target: a local, an instance variable or a
// constant.
type Assign struct {
	base
	Target Node // *Local, *IVar or *ConstRef
	Value  Node
}

// Local references a local variable or names an assignment target.
type Local struct {
	base
	Name string
}

// IVar references an instance variable.
type IVar struct {
	base
	Name string
}

// ConstRef references a constant path in expression position.
type ConstRef struct {
	base
	Path []string
}

// Self is the receiver reference.
type Self struct{ base }

// Nil, True and False literals.
type Nil struct{ base }
type True struct{ base }
type False struct{ base }

// IntLit, FloatLit, StringLit, SymbolLit are primitive literals.
type IntLit struct {
	base
	Value int64
}

type FloatLit struct {
	base
	Value float64
}

type StringLit struct {
	base
	Value string
}

type SymbolLit struct {
	base
	Value string
}

// ArrayLit is [a, b, c].
type ArrayLit struct {
	base
	Elems []Node
}

// HashLit is {k => v, ...}; Keys hold literal nodes.
type HashLit struct {
	base
	Keys   []Node
	Values []Node
}

// Send is a method call. Keyword arguments travel separately from
// positional ones; Block carries an attached literal block if any.
type Send struct {
	base
	Recv     Node // nil means implicit self
	Method   string
	Args     []Node
	KwNames  []string
	KwValues []Node
	Block    *BlockLit
	SafeNav  bool // &. call
	// MethodLoc is the span of the method name alone, for diagnostics.
	MethodLoc core.Loc
}

// BlockLit is a literal block argument.
type BlockLit struct {
	base
	Params []Param
	Body   []Node
}

// If covers if/unless/elsif chains and lowered short-circuit operators.
type If struct {
	base
	Cond Node
	Then []Node
	Else []Node
}

// While is a while or until loop (until arrives with a negated condition).
type While struct {
	base
	Cond Node
	Body []Node
}

// CaseWhen is one arm of a case statement.
type CaseWhen struct {
	// Patterns are class constants or literals tested with ===.
	Patterns []Node
	Body     []Node
	Loc      core.Loc
}

// Case is a case/when/else statement over a scrutinee expression.
type Case struct {
	base
	Scrutinee Node
	Whens     []CaseWhen
	Else      []Node
	HasElse   bool
}

// Rescue is one rescue arm.
type Rescue struct {
	Classes []Node // constant refs; empty catches StandardError
	Binder  string // exception variable, "" when absent
	Body    []Node
	Loc     core.Loc
}

// Begin is begin/rescue/ensure/end.
type Begin struct {
	base
	Body    []Node
	Rescues []Rescue
	Ensure  []Node
}

// Return exits the method.
type Return struct {
	base
	Value Node // nil for bare return
}

// Next exits the current block iteration.
type Next struct {
	base
	Value Node
}

// Break exits the enclosing loop.
type Break struct {
	base
	Value Node
}

// CastKind discriminates the T cast helpers.
type CastKind uint8

const (
	CastLet CastKind = iota + 1
	CastCast
	CastMust
	CastAssertType
	CastUnsafe
)

// Cast is T.let / T.cast / T.must / T.assert_type! / T.unsafe.
type Cast struct {
	base
	Value Node
	Type  TypeExpr // nil for must/unsafe
	Kind  CastKind
}

// Absurd is T.absurd(x): asserts the scrutinee is unreachable.
type Absurd struct {
	base
	Value Node
}

// Unanalyzable marks constructs the desugarer gave up on; inference types
// them untyped.
type Unanalyzable struct {
	base
	Reason string
}
