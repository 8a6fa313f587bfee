package core

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the sealed sum of type shapes. Variants are the structs in this
// file; exhaustive switches over them are the dispatch mechanism everywhere
// in the checker.
type Type interface {
	typeMarker()
	// Show renders the type for diagnostics.
	Show(gs *GlobalState) string
}

// GroundKind enumerates the distinguished lattice constants.
type GroundKind uint8

const (
	GroundTop GroundKind = iota + 1
	GroundBottom
	GroundUntyped
	GroundVoid
)

// GroundType is one of the distinguished constants; use the package-level
// singletons rather than constructing values.
type GroundType struct{ Kind GroundKind }

var (
	// Top is the maximum of the lattice.
	Top Type = &GroundType{GroundTop}
	// Bottom is the minimum of the lattice; a value of this type cannot
	// exist.
	Bottom Type = &GroundType{GroundBottom}
	// Untyped is the dynamic escape hatch: both a subtype and a supertype of
	// everything. Failure paths deliberately produce it rather than
	// poisoning downstream inference.
	Untyped Type = &GroundType{GroundUntyped}
	// Void marks a method whose result is usable only for control flow.
	Void Type = &GroundType{GroundVoid}
)

func (*GroundType) typeMarker() {}

func (t *GroundType) Show(*GlobalState) string {
	switch t.Kind {
	case GroundTop:
		return "T.anything"
	case GroundBottom:
		return "T.noreturn"
	case GroundUntyped:
		return "T.untyped"
	case GroundVoid:
		return "void"
	}
	return "<ground?>"
}

// ClassType is a plain reference to a class or module.
type ClassType struct{ Symbol SymbolRef }

func (*ClassType) typeMarker() {}

func (t *ClassType) Show(gs *GlobalState) string { return gs.ShowSymbol(t.Symbol) }

// MakeClassType wraps a symbol.
func MakeClassType(sym SymbolRef) Type { return &ClassType{Symbol: sym} }

// AppliedType is a generic class applied to type arguments, one per declared
// type member, in declaration order.
type AppliedType struct {
	Class SymbolRef
	Args  []Type
}

func (*AppliedType) typeMarker() {}

func (t *AppliedType) Show(gs *GlobalState) string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.Show(gs)
	}
	return fmt.Sprintf("%s[%s]", gs.ShowSymbol(t.Class), strings.Join(parts, ", "))
}

// LiteralKind discriminates literal payloads.
type LiteralKind uint8

const (
	LiteralInteger LiteralKind = iota + 1
	LiteralFloat
	LiteralString
	LiteralSymbol
	LiteralBoolean
)

// LiteralType is a singleton type for one primitive value; its underlying
// class is the coarser type it proxies.
type LiteralType struct {
	Kind     LiteralKind
	IntVal   int64
	FloatVal float64
	// StrVal holds the interned payload for string and symbol literals.
	StrVal NameRef
	// BoolVal holds the payload for boolean literals.
	BoolVal bool
}

func (*LiteralType) typeMarker() {}

func (t *LiteralType) Show(gs *GlobalState) string {
	switch t.Kind {
	case LiteralInteger:
		return fmt.Sprintf("Integer(%d)", t.IntVal)
	case LiteralFloat:
		return fmt.Sprintf("Float(%g)", t.FloatVal)
	case LiteralString:
		return fmt.Sprintf("String(%q)", gs.ShowName(t.StrVal))
	case LiteralSymbol:
		return fmt.Sprintf("Symbol(:%s)", gs.ShowName(t.StrVal))
	case LiteralBoolean:
		if t.BoolVal {
			return "TrueClass"
		}
		return "FalseClass"
	}
	return "<literal?>"
}

// UnderlyingClass returns the class the literal proxies.
func (t *LiteralType) UnderlyingClass() SymbolRef {
	switch t.Kind {
	case LiteralInteger:
		return SymbolInteger
	case LiteralFloat:
		return SymbolFloat
	case LiteralString:
		return SymbolString
	case LiteralSymbol:
		return SymbolSymbol
	case LiteralBoolean:
		if t.BoolVal {
			return SymbolTrueClass
		}
		return SymbolFalseClass
	}
	return SymbolObject
}

// TupleType is an ordered heterogeneous sequence; it proxies Array.
type TupleType struct{ Elems []Type }

func (*TupleType) typeMarker() {}

func (t *TupleType) Show(gs *GlobalState) string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.Show(gs)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ShapeType is a fixed-key hash; Keys and Values run in parallel. It proxies
// Hash.
type ShapeType struct {
	Keys   []*LiteralType
	Values []Type
}

func (*ShapeType) typeMarker() {}

func (t *ShapeType) Show(gs *GlobalState) string {
	parts := make([]string, len(t.Keys))
	for i := range t.Keys {
		parts[i] = fmt.Sprintf("%s => %s", t.Keys[i].Show(gs), t.Values[i].Show(gs))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// OrType is a union. Normal form: Left is never an OrType; the right spine
// carries the rest. Build with MakeOr, never directly.
type OrType struct{ Left, Right Type }

func (*OrType) typeMarker() {}

func (t *OrType) Show(gs *GlobalState) string {
	return fmt.Sprintf("T.any(%s)", strings.Join(showFlattened(gs, flattenOr(t)), ", "))
}

// AndType is an intersection, normalized like OrType. Build with MakeAnd.
type AndType struct{ Left, Right Type }

func (*AndType) typeMarker() {}

func (t *AndType) Show(gs *GlobalState) string {
	return fmt.Sprintf("T.all(%s)", strings.Join(showFlattened(gs, flattenAnd(t)), ", "))
}

func showFlattened(gs *GlobalState, parts []Type) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.Show(gs)
	}
	sort.Strings(out)
	return out
}

// ProxyType carries a more-specific type over a coarser underlying view.
// Subtyping looks through to Underlying on both sides; dispatch does the
// same. Runtime-checked assertions produce these: the wrapped form records
// what flowed in, the underlying what was asserted. Build with MakeProxy.
type ProxyType struct {
	Wrapped    Type
	Underlying Type
}

func (*ProxyType) typeMarker() {}

func (t *ProxyType) Show(gs *GlobalState) string {
	return t.Underlying.Show(gs)
}

// MakeProxy wraps a specific type over a coarser view, collapsing the
// degenerate cases where the proxy would add nothing.
func MakeProxy(gs *GlobalState, wrapped, underlying Type) Type {
	if IsUntyped(wrapped) || IsUntyped(underlying) {
		return underlying
	}
	if TypeEqual(wrapped, underlying) {
		return underlying
	}
	return &ProxyType{Wrapped: wrapped, Underlying: underlying}
}

// SelfType is the marker replaced by ReplaceSelfType at dispatch time.
type SelfType struct{}

func (*SelfType) typeMarker() {}

func (*SelfType) Show(*GlobalState) string { return "T.self_type" }

// SelfTypeSingleton is the shared SelfType instance.
var SelfTypeSingleton Type = &SelfType{}

// TypeVar is a unification variable scoped to one constraint.
type TypeVar struct{ ID int }

func (*TypeVar) typeMarker() {}

func (t *TypeVar) Show(*GlobalState) string { return fmt.Sprintf("T.type_var(%d)", t.ID) }

// TypeMemberRef mentions a class's declared type member; substituted by
// ResultTypeAsSeenFrom and Instantiate.
type TypeMemberRef struct{ Symbol SymbolRef }

func (*TypeMemberRef) typeMarker() {}

func (t *TypeMemberRef) Show(gs *GlobalState) string { return gs.ShowSymbol(t.Symbol) }

// MetaType is the type of a type literal (a bare constant in value
// position).
type MetaType struct{ Wrapped Type }

func (*MetaType) typeMarker() {}

func (t *MetaType) Show(gs *GlobalState) string {
	return fmt.Sprintf("T.class_of(%s)", t.Wrapped.Show(gs))
}

// AliasType defers to the result type of an alias symbol.
type AliasType struct{ Target SymbolRef }

func (*AliasType) typeMarker() {}

func (t *AliasType) Show(gs *GlobalState) string {
	return fmt.Sprintf("<alias %s>", gs.ShowSymbol(t.Target))
}

// DealiasType resolves alias chains to the underlying type.
func DealiasType(gs *GlobalState, t Type) Type {
	for {
		alias, ok := t.(*AliasType)
		if !ok {
			return t
		}
		next := gs.Symbol(alias.Target).ResultType
		if next == nil {
			return Untyped
		}
		t = next
	}
}

// proxyType is implemented by variants that wrap a coarser underlying type:
// literals, tuples and shapes.
type proxyType interface {
	Type
	underlying(gs *GlobalState) Type
}

func (t *LiteralType) underlying(*GlobalState) Type {
	return MakeClassType(t.UnderlyingClass())
}

func (t *TupleType) underlying(gs *GlobalState) Type {
	elem := Type(Bottom)
	for _, e := range t.Elems {
		elem = Join(gs, elem, e)
	}
	if len(t.Elems) == 0 {
		elem = Untyped
	}
	return &AppliedType{Class: SymbolArray, Args: []Type{elem}}
}

func (t *ShapeType) underlying(gs *GlobalState) Type {
	key, val := Type(Bottom), Type(Bottom)
	for i := range t.Keys {
		key = Join(gs, key, t.Keys[i])
		val = Join(gs, val, t.Values[i])
	}
	if len(t.Keys) == 0 {
		key, val = Untyped, Untyped
	}
	return &AppliedType{Class: SymbolHash, Args: []Type{key, val}}
}

// NilType returns the NilClass class type.
func NilType() Type { return MakeClassType(SymbolNilClass) }

// BooleanType returns the Boolean module type.
func BooleanType() Type { return MakeClassType(SymbolBoolean) }

// IsUntyped reports whether t is the dynamic type.
func IsUntyped(t Type) bool {
	g, ok := t.(*GroundType)
	return ok && g.Kind == GroundUntyped
}

// IsBottom reports whether t is the empty type.
func IsBottom(t Type) bool {
	g, ok := t.(*GroundType)
	return ok && g.Kind == GroundBottom
}

// IsTop reports whether t is the maximum type.
func IsTop(t Type) bool {
	g, ok := t.(*GroundType)
	return ok && g.Kind == GroundTop
}

// IsVoid reports whether t is the void marker.
func IsVoid(t Type) bool {
	g, ok := t.(*GroundType)
	return ok && g.Kind == GroundVoid
}

func flattenOr(t Type) []Type {
	if or, ok := t.(*OrType); ok {
		return append(flattenOr(or.Left), flattenOr(or.Right)...)
	}
	return []Type{t}
}

func flattenAnd(t Type) []Type {
	if and, ok := t.(*AndType); ok {
		return append(flattenAnd(and.Left), flattenAnd(and.Right)...)
	}
	return []Type{t}
}

// TypeEqual is structural equality on normalized forms.
func TypeEqual(a, b Type) bool {
	if a == b {
		return true
	}
	switch at := a.(type) {
	case *GroundType:
		bt, ok := b.(*GroundType)
		return ok && at.Kind == bt.Kind
	case *ClassType:
		bt, ok := b.(*ClassType)
		return ok && at.Symbol == bt.Symbol
	case *AppliedType:
		bt, ok := b.(*AppliedType)
		if !ok || at.Class != bt.Class || len(at.Args) != len(bt.Args) {
			return false
		}
		for i := range at.Args {
			if !TypeEqual(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case *LiteralType:
		bt, ok := b.(*LiteralType)
		return ok && *at == *bt
	case *TupleType:
		bt, ok := b.(*TupleType)
		if !ok || len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !TypeEqual(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return true
	case *ShapeType:
		bt, ok := b.(*ShapeType)
		if !ok || len(at.Keys) != len(bt.Keys) {
			return false
		}
		for i := range at.Keys {
			if !TypeEqual(at.Keys[i], bt.Keys[i]) || !TypeEqual(at.Values[i], bt.Values[i]) {
				return false
			}
		}
		return true
	case *OrType:
		bt, ok := b.(*OrType)
		return ok && TypeEqual(at.Left, bt.Left) && TypeEqual(at.Right, bt.Right)
	case *AndType:
		bt, ok := b.(*AndType)
		return ok && TypeEqual(at.Left, bt.Left) && TypeEqual(at.Right, bt.Right)
	case *ProxyType:
		bt, ok := b.(*ProxyType)
		return ok && TypeEqual(at.Wrapped, bt.Wrapped) && TypeEqual(at.Underlying, bt.Underlying)
	case *SelfType:
		_, ok := b.(*SelfType)
		return ok
	case *TypeVar:
		bt, ok := b.(*TypeVar)
		return ok && at.ID == bt.ID
	case *TypeMemberRef:
		bt, ok := b.(*TypeMemberRef)
		return ok && at.Symbol == bt.Symbol
	case *MetaType:
		bt, ok := b.(*MetaType)
		return ok && TypeEqual(at.Wrapped, bt.Wrapped)
	case *AliasType:
		bt, ok := b.(*AliasType)
		return ok && at.Target == bt.Target
	}
	return false
}
