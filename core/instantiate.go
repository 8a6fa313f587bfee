package core

// typeMap applies fn to every node of t bottom-up, rebuilding only the
// spines that change.
func typeMap(gs *GlobalState, t Type, fn func(Type) Type) Type {
	switch tt := t.(type) {
	case *AppliedType:
		args := make([]Type, len(tt.Args))
		changed := false
		for i, a := range tt.Args {
			args[i] = typeMap(gs, a, fn)
			changed = changed || args[i] != tt.Args[i]
		}
		if changed {
			t = &AppliedType{Class: tt.Class, Args: args}
		}
	case *TupleType:
		elems := make([]Type, len(tt.Elems))
		changed := false
		for i, e := range tt.Elems {
			elems[i] = typeMap(gs, e, fn)
			changed = changed || elems[i] != tt.Elems[i]
		}
		if changed {
			t = &TupleType{Elems: elems}
		}
	case *ShapeType:
		values := make([]Type, len(tt.Values))
		changed := false
		for i, v := range tt.Values {
			values[i] = typeMap(gs, v, fn)
			changed = changed || values[i] != tt.Values[i]
		}
		if changed {
			t = &ShapeType{Keys: tt.Keys, Values: values}
		}
	case *OrType:
		left := typeMap(gs, tt.Left, fn)
		right := typeMap(gs, tt.Right, fn)
		if left != tt.Left || right != tt.Right {
			t = MakeOr(gs, left, right)
		}
	case *AndType:
		left := typeMap(gs, tt.Left, fn)
		right := typeMap(gs, tt.Right, fn)
		if left != tt.Left || right != tt.Right {
			t = MakeAnd(gs, left, right)
		}
	case *ProxyType:
		wrapped := typeMap(gs, tt.Wrapped, fn)
		underlying := typeMap(gs, tt.Underlying, fn)
		if wrapped != tt.Wrapped || underlying != tt.Underlying {
			t = MakeProxy(gs, wrapped, underlying)
		}
	case *MetaType:
		wrapped := typeMap(gs, tt.Wrapped, fn)
		if wrapped != tt.Wrapped {
			t = &MetaType{Wrapped: wrapped}
		}
	}
	return fn(t)
}

// Instantiate substitutes solved type variables by their bounds, leaving
// unsolved variables intact. Idempotent on fully-solved inputs.
func Instantiate(gs *GlobalState, t Type, constr *TypeConstraint) Type {
	if constr == nil {
		return t
	}
	return typeMap(gs, t, func(node Type) Type {
		if tv, ok := node.(*TypeVar); ok {
			if solved, ok := constr.Solution(tv.ID); ok {
				return solved
			}
		}
		return node
	})
}

// ReplaceSelfType substitutes the self-type marker with self.
func ReplaceSelfType(gs *GlobalState, t Type, self Type) Type {
	return typeMap(gs, t, func(node Type) Type {
		if _, ok := node.(*SelfType); ok {
			return self
		}
		return node
	})
}

// ResultTypeAsSeenFrom re-expresses a type inherited from `from` in the
// coordinate system of `to`, substituting from's type members with
// typeArgs.
func ResultTypeAsSeenFrom(gs *GlobalState, t Type, from, to SymbolRef, typeArgs []Type) Type {
	params := gs.Symbol(from).TypeParams
	t = typeMap(gs, t, func(node Type) Type {
		ref, ok := node.(*TypeMemberRef)
		if !ok {
			return node
		}
		for i, param := range params {
			if param == ref.Symbol {
				if i < len(typeArgs) {
					return typeArgs[i]
				}
				return Untyped
			}
		}
		return node
	})
	return ReplaceSelfType(gs, t, MakeClassType(to))
}
