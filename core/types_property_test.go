package core

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// typePopulation builds a deterministic population of normalized types over
// a small class hierarchy; the algebraic properties sample from it.
func typePopulation(gs *GlobalState, classes []SymbolRef) []Type {
	var base []Type
	for _, ref := range classes {
		base = append(base, MakeClassType(ref))
	}
	base = append(base,
		Untyped,
		Top,
		Bottom,
		MakeClassType(SymbolNilClass),
		&LiteralType{Kind: LiteralInteger, IntVal: 7},
		&LiteralType{Kind: LiteralString, StrVal: gs.EnterNameUTF8("lit")},
		&TupleType{Elems: []Type{MakeClassType(SymbolInteger), MakeClassType(SymbolString)}},
		&AppliedType{Class: SymbolArray, Args: []Type{MakeClassType(SymbolInteger)}},
		MakeProxy(gs, &LiteralType{Kind: LiteralInteger, IntVal: 3}, MakeClassType(SymbolInteger)),
	)
	var out []Type
	out = append(out, base...)
	for i := 0; i < len(base); i++ {
		for j := i + 1; j < len(base); j++ {
			out = append(out, MakeOr(gs, base[i], base[j]))
			out = append(out, MakeAnd(gs, base[i], base[j]))
		}
	}
	return out
}

func propertyFixture() (*GlobalState, []Type, []SymbolRef) {
	gs := NewGlobalState()
	animal := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Animal")))
	cat := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Cat")))
	dog := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Dog")))
	poodle := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Poodle")))
	gs.Symbol(cat).Superclass = animal
	gs.Symbol(dog).Superclass = animal
	gs.Symbol(poodle).Superclass = dog
	classes := []SymbolRef{animal, cat, dog, poodle, SymbolInteger, SymbolString, SymbolNumeric}
	return gs, typePopulation(gs, classes), classes
}

func TestSubtypeReflexivity(t *testing.T) {
	gs, population, _ := propertyFixture()
	for _, typ := range population {
		if !IsSubType(gs, typ, typ) {
			t.Errorf("reflexivity failed for %s", typ.Show(gs))
		}
	}
}

func TestSubtypeTransitivitySampled(t *testing.T) {
	gs, population, _ := propertyFixture()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	indexGen := gen.IntRange(0, len(population)-1)
	properties.Property("A<=B and B<=C implies A<=C", prop.ForAll(
		func(i, j, k int) bool {
			a, b, c := population[i], population[j], population[k]
			// untyped is deliberately both top and bottom; a dynamic middle
			// cannot witness transitivity.
			if IsUntyped(b) {
				return true
			}
			if IsSubType(gs, a, b) && IsSubType(gs, b, c) {
				return IsSubType(gs, a, c)
			}
			return true
		},
		indexGen, indexGen, indexGen,
	))
	properties.TestingRun(t)
}

func TestJoinMeetBoundsSampled(t *testing.T) {
	gs, population, _ := propertyFixture()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	indexGen := gen.IntRange(0, len(population)-1)
	properties.Property("join is an upper bound", prop.ForAll(
		func(i, j int) bool {
			a, b := population[i], population[j]
			joined := Join(gs, a, b)
			return IsSubType(gs, a, joined) && IsSubType(gs, b, joined)
		},
		indexGen, indexGen,
	))
	properties.Property("meet is a lower bound", prop.ForAll(
		func(i, j int) bool {
			a, b := population[i], population[j]
			met := Meet(gs, a, b)
			return IsSubType(gs, met, a) && IsSubType(gs, met, b)
		},
		indexGen, indexGen,
	))
	properties.Property("join is commutative up to equivalence", prop.ForAll(
		func(i, j int) bool {
			a, b := population[i], population[j]
			ab := Join(gs, a, b)
			ba := Join(gs, b, a)
			return IsSubType(gs, ab, ba) && IsSubType(gs, ba, ab)
		},
		indexGen, indexGen,
	))
	properties.Property("join is idempotent", prop.ForAll(
		func(i int) bool {
			a := population[i]
			return TypeEqual(Join(gs, a, a), a)
		},
		indexGen,
	))
	properties.TestingRun(t)
}

func TestUntypedAbsorption(t *testing.T) {
	gs, population, _ := propertyFixture()
	for _, typ := range population {
		if !IsSubType(gs, Untyped, typ) || !IsSubType(gs, typ, Untyped) {
			t.Errorf("untyped absorption failed for %s", typ.Show(gs))
		}
	}
}

func TestClassJoinIsLCA(t *testing.T) {
	gs, _, classes := propertyFixture()
	animal, cat, dog, poodle := classes[0], classes[1], classes[2], classes[3]

	tests := []struct {
		a, b, lca SymbolRef
	}{
		{cat, dog, animal},
		{poodle, cat, animal},
		{poodle, dog, dog},
		{cat, cat, cat},
	}
	for _, tc := range tests {
		joined := Join(gs, MakeClassType(tc.a), MakeClassType(tc.b))
		want := MakeClassType(tc.lca)
		if !TypeEqual(joined, want) {
			t.Errorf("join(%s, %s) = %s, want %s",
				gs.ShowSymbol(tc.a), gs.ShowSymbol(tc.b), joined.Show(gs), want.Show(gs))
		}
	}

	// Meet of comparable classes is the more-derived; of unrelated, bottom.
	if !TypeEqual(Meet(gs, MakeClassType(poodle), MakeClassType(dog)), MakeClassType(poodle)) {
		t.Error("meet of comparable classes should pick the more-derived")
	}
	if !IsBottom(Meet(gs, MakeClassType(cat), MakeClassType(dog))) {
		t.Error("meet of unrelated concrete classes should be bottom")
	}
}
