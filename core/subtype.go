package core

// MakeOr builds a normalized union: operands are flattened onto the right
// spine, duplicates and subsumed members dropped.
func MakeOr(gs *GlobalState, a, b Type) Type {
	parts := append(flattenOr(DealiasType(gs, a)), flattenOr(DealiasType(gs, b))...)
	var kept []Type
	for _, p := range parts {
		if IsBottom(p) {
			continue
		}
		if IsUntyped(p) || IsTop(p) {
			return p
		}
		subsumed := false
		for i, k := range kept {
			if IsSubType(gs, p, k) {
				subsumed = true
				break
			}
			if IsSubType(gs, k, p) {
				kept[i] = p
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return Bottom
	case 1:
		return kept[0]
	}
	out := kept[len(kept)-1]
	for i := len(kept) - 2; i >= 0; i-- {
		out = &OrType{Left: kept[i], Right: out}
	}
	return out
}

// MakeAnd builds a normalized intersection, dual to MakeOr.
func MakeAnd(gs *GlobalState, a, b Type) Type {
	parts := append(flattenAnd(DealiasType(gs, a)), flattenAnd(DealiasType(gs, b))...)
	var kept []Type
	for _, p := range parts {
		if IsTop(p) {
			continue
		}
		if IsUntyped(p) || IsBottom(p) {
			return p
		}
		subsumed := false
		for i, k := range kept {
			if IsSubType(gs, k, p) {
				subsumed = true
				break
			}
			if IsSubType(gs, p, k) {
				kept[i] = p
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return Top
	case 1:
		return kept[0]
	}
	out := kept[len(kept)-1]
	for i := len(kept) - 2; i >= 0; i-- {
		out = &AndType{Left: kept[i], Right: out}
	}
	return out
}

// IsSubType decides L <= R on normalized forms. The rules apply in priority
// order; earlier rules win.
func IsSubType(gs *GlobalState, l, r Type) bool {
	l = DealiasType(gs, l)
	r = DealiasType(gs, r)

	// untyped on either side short-circuits everything.
	if IsUntyped(l) || IsUntyped(r) {
		return true
	}
	if IsTop(r) || IsBottom(l) {
		return true
	}
	if IsTop(l) {
		return IsTop(r)
	}
	if IsBottom(r) {
		return IsBottom(l)
	}
	if IsVoid(l) || IsVoid(r) {
		return IsVoid(l) && IsVoid(r)
	}
	if TypeEqual(l, r) {
		return true
	}

	// A proxy compares through its underlying coarser view, on either side;
	// unwrapping before the union rules keeps a union-shaped underlying
	// comparable.
	if proxy, ok := l.(*ProxyType); ok {
		return IsSubType(gs, proxy.Underlying, r)
	}
	if proxy, ok := r.(*ProxyType); ok {
		return IsSubType(gs, l, proxy.Underlying)
	}

	// Unions and intersections distribute before any shape comparison. The
	// left-side rules go first so OrType <= OrType splits the left operand.
	if or, ok := l.(*OrType); ok {
		return IsSubType(gs, or.Left, r) && IsSubType(gs, or.Right, r)
	}
	if and, ok := r.(*AndType); ok {
		return IsSubType(gs, l, and.Left) && IsSubType(gs, l, and.Right)
	}
	if or, ok := r.(*OrType); ok {
		if IsSubType(gs, l, or.Left) || IsSubType(gs, l, or.Right) {
			return true
		}
		// fall through: an AndType left operand may still satisfy the union
		// through one of its components.
	}
	if and, ok := l.(*AndType); ok {
		return IsSubType(gs, and.Left, r) || IsSubType(gs, and.Right, r)
	}
	if _, ok := r.(*OrType); ok {
		return false
	}

	// Type variables compare equal only to themselves (handled by TypeEqual
	// above); against anything else the relation is unknown and answered
	// permissively during constraint collection, strictly here.
	if _, ok := l.(*TypeVar); ok {
		return false
	}
	if _, ok := r.(*TypeVar); ok {
		return false
	}

	switch lt := l.(type) {
	case *LiteralType:
		// literal <= literal only when equal (caught above); otherwise
		// compare through the underlying class.
		return IsSubType(gs, lt.underlying(gs), r)
	case *TupleType:
		if rt, ok := r.(*TupleType); ok {
			if len(lt.Elems) != len(rt.Elems) {
				return false
			}
			// Tuples subtype pointwise and covariantly.
			for i := range lt.Elems {
				if !IsSubType(gs, lt.Elems[i], rt.Elems[i]) {
					return false
				}
			}
			return true
		}
		return IsSubType(gs, lt.underlying(gs), r)
	case *ShapeType:
		if rt, ok := r.(*ShapeType); ok {
			if len(lt.Keys) != len(rt.Keys) {
				return false
			}
			// Same key set, value-wise covariant.
			for i := range rt.Keys {
				li := shapeIndex(lt, rt.Keys[i])
				if li < 0 || !IsSubType(gs, lt.Values[li], rt.Values[i]) {
					return false
				}
			}
			return true
		}
		return IsSubType(gs, lt.underlying(gs), r)
	case *AppliedType:
		switch rt := r.(type) {
		case *AppliedType:
			if !gs.DerivesFrom(lt.Class, rt.Class) {
				return false
			}
			args := lt.Args
			if lt.Class != rt.Class {
				args = translateTypeArgs(gs, lt, rt.Class)
			}
			if len(args) != len(rt.Args) {
				return false
			}
			params := gs.Symbol(rt.Class).TypeParams
			for i := range args {
				variance := SymbolFlags(0)
				if i < len(params) {
					variance = gs.Symbol(params[i]).Flags & (FlagCovariant | FlagContravariant)
				}
				switch variance {
				case FlagCovariant:
					if !IsSubType(gs, args[i], rt.Args[i]) {
						return false
					}
				case FlagContravariant:
					if !IsSubType(gs, rt.Args[i], args[i]) {
						return false
					}
				default:
					if !TypeEqual(args[i], rt.Args[i]) && !IsUntyped(args[i]) && !IsUntyped(rt.Args[i]) {
						return false
					}
				}
			}
			return true
		case *ClassType:
			return gs.DerivesFrom(lt.Class, rt.Symbol)
		}
		return false
	case *ClassType:
		switch rt := r.(type) {
		case *ClassType:
			return gs.DerivesFrom(lt.Symbol, rt.Symbol)
		case *AppliedType:
			// A bare class reference to a generic behaves as applied with
			// untyped arguments.
			if !gs.DerivesFrom(lt.Symbol, rt.Class) {
				return false
			}
			return true
		}
		return false
	case *MetaType:
		rt, ok := r.(*MetaType)
		return ok && IsSubType(gs, lt.Wrapped, rt.Wrapped)
	case *SelfType:
		return false
	case *TypeMemberRef:
		// An unresolved member reference is only below its upper bound.
		upper := gs.Symbol(lt.Symbol).ResultType
		return upper != nil && IsSubType(gs, upper, r)
	}
	return false
}

func shapeIndex(shape *ShapeType, key *LiteralType) int {
	for i, k := range shape.Keys {
		if TypeEqual(k, key) {
			return i
		}
	}
	return -1
}

// translateTypeArgs re-expresses lt's type arguments in ancestor's
// coordinate system by substituting lt.Class's members into the ancestor's
// declared member references.
func translateTypeArgs(gs *GlobalState, lt *AppliedType, ancestor SymbolRef) []Type {
	anc := gs.Symbol(ancestor)
	out := make([]Type, len(anc.TypeParams))
	own := gs.Symbol(lt.Class).TypeParams
	for i, param := range anc.TypeParams {
		// A subclass redeclares each inherited member under the same name.
		name := gs.Symbol(param).Name
		out[i] = Untyped
		for j, mine := range own {
			if gs.Symbol(mine).Name == name && j < len(lt.Args) {
				out[i] = lt.Args[j]
				break
			}
		}
	}
	return out
}
