package core

// Join computes the least upper bound of two types. Commutative,
// associative, idempotent; absorbs untyped.
func Join(gs *GlobalState, a, b Type) Type {
	a = DealiasType(gs, a)
	b = DealiasType(gs, b)
	if IsUntyped(a) || IsUntyped(b) {
		return Untyped
	}
	if IsSubType(gs, a, b) {
		return b
	}
	if IsSubType(gs, b, a) {
		return a
	}
	ca, aok := classOf(a)
	cb, bok := classOf(b)
	if aok && bok {
		if lca, ok := nearestCommonAncestor(gs, ca, cb); ok && lca != SymbolBasicObject && lca != SymbolObject {
			return MakeClassType(lca)
		}
	}
	return MakeOr(gs, a, b)
}

// Meet computes the greatest lower bound of two types, dual to Join.
func Meet(gs *GlobalState, a, b Type) Type {
	a = DealiasType(gs, a)
	b = DealiasType(gs, b)
	if IsUntyped(a) || IsUntyped(b) {
		return Untyped
	}
	if IsSubType(gs, a, b) {
		return a
	}
	if IsSubType(gs, b, a) {
		return b
	}
	if or, ok := a.(*OrType); ok {
		return Join(gs, Meet(gs, or.Left, b), Meet(gs, or.Right, b))
	}
	if or, ok := b.(*OrType); ok {
		return Join(gs, Meet(gs, a, or.Left), Meet(gs, a, or.Right))
	}
	ca, aok := classOf(a)
	cb, bok := classOf(b)
	if aok && bok {
		// Unrelated concrete classes cannot both be the runtime class of a
		// value; modules may still intersect.
		aModule := gs.Symbol(ca).Flags&FlagModule != 0
		bModule := gs.Symbol(cb).Flags&FlagModule != 0
		if !aModule && !bModule {
			return Bottom
		}
	}
	return MakeAnd(gs, a, b)
}

func classOf(t Type) (SymbolRef, bool) {
	switch tt := t.(type) {
	case *ClassType:
		return tt.Symbol, true
	case *AppliedType:
		return tt.Class, true
	}
	return 0, false
}

// nearestCommonAncestor walks a's linearization in order and returns the
// first entry that also appears in b's.
func nearestCommonAncestor(gs *GlobalState, a, b SymbolRef) (SymbolRef, bool) {
	inB := map[SymbolRef]bool{}
	for _, ref := range gs.Linearization(b) {
		inB[ref] = true
	}
	for _, ref := range gs.Linearization(a) {
		if inB[ref] {
			return ref, true
		}
	}
	return 0, false
}
