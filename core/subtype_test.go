package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classFixture(t *testing.T) (*GlobalState, SymbolRef, SymbolRef, SymbolRef) {
	t.Helper()
	gs := NewGlobalState()
	bar := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Bar")))
	foo1 := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Foo1")))
	foo2 := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Foo2")))
	gs.Symbol(foo1).Superclass = bar
	gs.Symbol(foo2).Superclass = bar
	return gs, bar, foo1, foo2
}

func TestSubtypeOnClassHierarchy(t *testing.T) {
	gs, bar, foo1, _ := classFixture(t)
	fooT := MakeClassType(foo1)
	barT := MakeClassType(bar)

	assert.True(t, IsSubType(gs, fooT, barT))
	assert.False(t, IsSubType(gs, barT, fooT))
	assert.True(t, IsSubType(gs, fooT, MakeClassType(SymbolObject)))
}

func TestJoinMeetSiblings(t *testing.T) {
	gs, bar, foo1, foo2 := classFixture(t)
	a := MakeClassType(foo1)
	b := MakeClassType(foo2)

	joined := Join(gs, a, b)
	require.IsType(t, &ClassType{}, joined)
	assert.Equal(t, bar, joined.(*ClassType).Symbol)

	met := Meet(gs, a, b)
	assert.True(t, IsBottom(met))
}

func TestSubtypeRules(t *testing.T) {
	gs, bar, foo1, foo2 := classFixture(t)
	barT := MakeClassType(bar)
	foo1T := MakeClassType(foo1)
	foo2T := MakeClassType(foo2)
	intT := MakeClassType(SymbolInteger)
	strT := MakeClassType(SymbolString)

	tests := []struct {
		description string
		left, right Type
		want        bool
	}{
		{"untyped below everything", Untyped, strT, true},
		{"untyped above everything", strT, Untyped, true},
		{"bottom below top", Bottom, Top, true},
		{"top not below bottom", Top, Bottom, false},
		{"literal below its class", &LiteralType{Kind: LiteralInteger, IntVal: 3}, intT, true},
		{"literal below Numeric", &LiteralType{Kind: LiteralInteger, IntVal: 3}, MakeClassType(SymbolNumeric), true},
		{"unequal literals unrelated", &LiteralType{Kind: LiteralInteger, IntVal: 3}, &LiteralType{Kind: LiteralInteger, IntVal: 4}, false},
		{"equal literals subtype", &LiteralType{Kind: LiteralString, StrVal: gs.EnterNameUTF8("a")}, &LiteralType{Kind: LiteralString, StrVal: gs.EnterNameUTF8("a")}, true},
		{"union left splits", MakeOr(gs, foo1T, foo2T), barT, true},
		{"union left fails when one escapes", MakeOr(gs, foo1T, intT), barT, false},
		{"member below union", foo1T, MakeOr(gs, foo1T, intT), true},
		{"intersection right needs both", foo1T, MakeAnd(gs, barT, MakeClassType(SymbolObject)), true},
		{"intersection left any component", MakeAnd(gs, foo1T, intT), intT, true},
		{"tuple elementwise", &TupleType{Elems: []Type{foo1T, intT}}, &TupleType{Elems: []Type{barT, intT}}, true},
		{"tuple length mismatch", &TupleType{Elems: []Type{foo1T}}, &TupleType{Elems: []Type{foo1T, foo1T}}, false},
		{"tuple below array", &TupleType{Elems: []Type{intT, intT}}, &AppliedType{Class: SymbolArray, Args: []Type{intT}}, true},
		{"applied covariant arg", &AppliedType{Class: SymbolArray, Args: []Type{foo1T}}, &AppliedType{Class: SymbolArray, Args: []Type{barT}}, true},
		{"applied covariant arg fails", &AppliedType{Class: SymbolArray, Args: []Type{barT}}, &AppliedType{Class: SymbolArray, Args: []Type{foo1T}}, false},
		{"nil below nilable", MakeClassType(SymbolNilClass), MakeOr(gs, strT, MakeClassType(SymbolNilClass)), true},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSubType(gs, tc.left, tc.right),
				"%s <= %s", tc.left.Show(gs), tc.right.Show(gs))
		})
	}
}

func TestShapeSubtyping(t *testing.T) {
	gs, _, _, _ := classFixture(t)
	name := gs.EnterNameUTF8("name")
	key := &LiteralType{Kind: LiteralSymbol, StrVal: name}
	shapeA := &ShapeType{Keys: []*LiteralType{key}, Values: []Type{MakeClassType(SymbolString)}}
	shapeB := &ShapeType{Keys: []*LiteralType{key}, Values: []Type{MakeClassType(SymbolObject)}}
	other := &ShapeType{Keys: []*LiteralType{{Kind: LiteralSymbol, StrVal: gs.EnterNameUTF8("age")}}, Values: []Type{MakeClassType(SymbolString)}}

	assert.True(t, IsSubType(gs, shapeA, shapeB))
	assert.False(t, IsSubType(gs, shapeB, shapeA))
	assert.False(t, IsSubType(gs, shapeA, other))
	assert.True(t, IsSubType(gs, shapeA, &AppliedType{Class: SymbolHash, Args: []Type{MakeClassType(SymbolSymbol), MakeClassType(SymbolString)}}))
}

func TestProxyTypeLooksThrough(t *testing.T) {
	gs, bar, foo1, _ := classFixture(t)
	lit := &LiteralType{Kind: LiteralInteger, IntVal: 41}
	proxy := MakeProxy(gs, lit, MakeClassType(SymbolInteger))
	require.IsType(t, &ProxyType{}, proxy)

	// Proxy <= R iff its underlying <= R, and symmetrically on the right.
	assert.True(t, IsSubType(gs, proxy, MakeClassType(SymbolInteger)))
	assert.True(t, IsSubType(gs, proxy, MakeClassType(SymbolNumeric)))
	assert.False(t, IsSubType(gs, proxy, MakeClassType(SymbolString)))
	assert.True(t, IsSubType(gs, MakeClassType(SymbolInteger), proxy))
	assert.False(t, IsSubType(gs, MakeClassType(SymbolString), proxy))
	assert.True(t, IsSubType(gs, proxy, proxy))

	classProxy := MakeProxy(gs, MakeClassType(foo1), MakeClassType(bar))
	assert.True(t, IsSubType(gs, classProxy, MakeClassType(bar)))
	assert.True(t, IsSubType(gs, classProxy, MakeClassType(SymbolObject)))

	// Degenerate proxies collapse to their underlying view.
	assert.True(t, TypeEqual(MakeProxy(gs, Untyped, MakeClassType(bar)), MakeClassType(bar)))
	assert.True(t, TypeEqual(MakeProxy(gs, MakeClassType(bar), MakeClassType(bar)), MakeClassType(bar)))
}

func TestOrNormalization(t *testing.T) {
	gs, bar, foo1, _ := classFixture(t)
	// Subsumed members collapse.
	or := MakeOr(gs, MakeClassType(foo1), MakeClassType(bar))
	assert.True(t, TypeEqual(or, MakeClassType(bar)))

	// The left operand of a normalized union is never itself a union.
	three := MakeOr(gs, MakeOr(gs, MakeClassType(SymbolInteger), MakeClassType(SymbolString)), MakeClassType(SymbolFloat))
	if orT, ok := three.(*OrType); ok {
		_, leftIsOr := orT.Left.(*OrType)
		assert.False(t, leftIsOr)
	} else {
		t.Fatalf("expected an OrType, got %s", three.Show(gs))
	}

	// Untyped absorbs.
	assert.True(t, IsUntyped(MakeOr(gs, Untyped, MakeClassType(bar))))
}

func TestMeetDistributesOverUnion(t *testing.T) {
	gs, _, _, _ := classFixture(t)
	intT := MakeClassType(SymbolInteger)
	strT := MakeClassType(SymbolString)
	union := MakeOr(gs, intT, strT)

	met := Meet(gs, union, intT)
	assert.True(t, TypeEqual(met, intT), "got %s", met.Show(gs))
}

func TestInstantiateSolvedConstraint(t *testing.T) {
	gs := NewGlobalState()
	constr := NewConstraint()
	tv := constr.FreshVar()
	constr.AddLower(tv, MakeClassType(SymbolInteger))
	constr.Solve(gs)

	applied := &AppliedType{Class: SymbolArray, Args: []Type{tv}}
	out := Instantiate(gs, applied, constr)
	want := &AppliedType{Class: SymbolArray, Args: []Type{MakeClassType(SymbolInteger)}}
	assert.True(t, TypeEqual(out, want), "got %s", out.Show(gs))

	// Idempotent on fully-solved inputs.
	again := Instantiate(gs, out, constr)
	assert.True(t, TypeEqual(out, again))
}

func TestConstraintMeetOfUppers(t *testing.T) {
	gs, bar, foo1, _ := classFixture(t)
	constr := NewConstraint()
	tv := constr.FreshVar()
	constr.AddUpper(tv, MakeClassType(bar))
	constr.AddUpper(tv, MakeClassType(foo1))
	constr.Solve(gs)
	solved, ok := constr.Solution(tv.ID)
	require.True(t, ok)
	assert.True(t, TypeEqual(solved, MakeClassType(foo1)), "got %s", solved.Show(gs))
}

func TestReplaceSelfType(t *testing.T) {
	gs, bar, _, _ := classFixture(t)
	out := ReplaceSelfType(gs, MakeOr(gs, SelfTypeSingleton, MakeClassType(SymbolNilClass)), MakeClassType(bar))
	want := MakeOr(gs, MakeClassType(bar), MakeClassType(SymbolNilClass))
	assert.True(t, TypeEqual(out, want), "got %s", out.Show(gs))
}

func TestResultTypeAsSeenFrom(t *testing.T) {
	gs := NewGlobalState()
	elem := gs.Symbol(SymbolArray).TypeParams[0]
	seen := ResultTypeAsSeenFrom(gs, &TypeMemberRef{Symbol: elem}, SymbolArray, SymbolArray, []Type{MakeClassType(SymbolInteger)})
	assert.True(t, TypeEqual(seen, MakeClassType(SymbolInteger)))
}
