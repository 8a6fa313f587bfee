package core

// enterIntrinsics declares the minimal built-in method surface the checker
// assumes: arithmetic, predicates and Kernel helpers. User payloads may
// re-open any of these classes with richer signatures.
func (gs *GlobalState) enterIntrinsics() {
	method := func(owner SymbolRef, name string, result Type, args ...ArgInfo) SymbolRef {
		ref := gs.EnterMethodSymbol(LocNone, owner, gs.EnterNameUTF8(name))
		sym := gs.Symbol(ref)
		sym.Arguments = args
		sym.ResultType = result
		return ref
	}
	arg := func(name string, t Type) ArgInfo {
		return ArgInfo{Name: gs.EnterNameUTF8(name), Type: t}
	}

	object := MakeClassType(SymbolObject)
	boolean := BooleanType()
	integer := MakeClassType(SymbolInteger)
	float := MakeClassType(SymbolFloat)
	str := MakeClassType(SymbolString)
	sym := MakeClassType(SymbolSymbol)
	nilT := NilType()

	// Names the checker mints during inference must exist even when the
	// name table is frozen.
	gs.EnterNameUTF8("initialize")
	gs.EnterNameUTF8("self")
	gs.EnterNameUTF8("<tmp>")

	// BasicObject / Object predicates.
	method(SymbolBasicObject, "==", boolean, arg("other", Top))
	method(SymbolBasicObject, "===", boolean, arg("other", Top))
	method(SymbolBasicObject, "!=", boolean, arg("other", Top))
	method(SymbolBasicObject, "!", boolean)
	method(SymbolObject, "nil?", boolean)
	method(SymbolObject, "is_a?", boolean, arg("type", &MetaType{Wrapped: Top}))
	method(SymbolObject, "kind_of?", boolean, arg("type", &MetaType{Wrapped: Top}))
	method(SymbolObject, "class", &MetaType{Wrapped: SelfTypeSingleton})
	method(SymbolObject, "to_s", str)
	method(SymbolObject, "inspect", str)
	method(SymbolObject, "freeze", SelfTypeSingleton)
	method(SymbolObject, "dup", SelfTypeSingleton)
	method(SymbolObject, "hash", integer)
	method(SymbolNilClass, "nil?", &LiteralType{Kind: LiteralBoolean, BoolVal: true})
	method(SymbolNilClass, "to_s", str)

	// Kernel.
	method(SymbolKernel, "puts", nilT, ArgInfo{Name: gs.EnterNameUTF8("args"), Type: Top, Repeated: true})
	method(SymbolKernel, "print", nilT, ArgInfo{Name: gs.EnterNameUTF8("args"), Type: Top, Repeated: true})
	method(SymbolKernel, "p", Untyped, ArgInfo{Name: gs.EnterNameUTF8("args"), Type: Top, Repeated: true})
	method(SymbolKernel, "raise", Bottom, ArgInfo{Name: gs.EnterNameUTF8("args"), Type: Top, Repeated: true})
	method(SymbolKernel, "rand", float, ArgInfo{Name: gs.EnterNameUTF8("max"), Type: MakeOr(gs, integer, float), Optional: true})

	// Numeric tower.
	method(SymbolInteger, "+", integer, arg("other", integer))
	method(SymbolInteger, "-", integer, arg("other", integer))
	method(SymbolInteger, "*", integer, arg("other", integer))
	method(SymbolInteger, "/", integer, arg("other", integer))
	method(SymbolInteger, "%", integer, arg("other", integer))
	method(SymbolInteger, "to_f", float)
	method(SymbolInteger, "to_s", str)
	method(SymbolInteger, "zero?", boolean)
	method(SymbolFloat, "+", float, arg("other", MakeClassType(SymbolNumeric)))
	method(SymbolFloat, "-", float, arg("other", MakeClassType(SymbolNumeric)))
	method(SymbolFloat, "*", float, arg("other", MakeClassType(SymbolNumeric)))
	method(SymbolFloat, "/", float, arg("other", MakeClassType(SymbolNumeric)))
	method(SymbolFloat, "to_i", integer)
	method(SymbolComparable, "<", boolean, arg("other", object))
	method(SymbolComparable, ">", boolean, arg("other", object))
	method(SymbolComparable, "<=", boolean, arg("other", object))
	method(SymbolComparable, ">=", boolean, arg("other", object))
	method(SymbolComparable, "<=>", MakeOr(gs, integer, nilT), arg("other", object))

	// String.
	method(SymbolString, "+", str, arg("other", str))
	method(SymbolString, "*", str, arg("count", integer))
	method(SymbolString, "length", integer)
	method(SymbolString, "size", integer)
	method(SymbolString, "empty?", boolean)
	method(SymbolString, "upcase", str)
	method(SymbolString, "downcase", str)
	method(SymbolString, "to_sym", sym)
	method(SymbolString, "to_i", integer)

	// Generic containers: Array[Elem], Hash[K, V].
	gs.UnfreezeSymbolTable(func() {
		elem := gs.EnterTypeMember(LocNone, SymbolArray, gs.EnterNameUTF8("Elem"))
		gs.Symbol(elem).Flags |= FlagCovariant
		k := gs.EnterTypeMember(LocNone, SymbolHash, gs.EnterNameUTF8("K"))
		v := gs.EnterTypeMember(LocNone, SymbolHash, gs.EnterNameUTF8("V"))
		gs.Symbol(k).Flags |= FlagCovariant
		gs.Symbol(v).Flags |= FlagCovariant

		elemRef := &TypeMemberRef{Symbol: elem}
		method(SymbolArray, "length", integer)
		method(SymbolArray, "size", integer)
		method(SymbolArray, "empty?", boolean)
		method(SymbolArray, "first", MakeOr(gs, elemRef, nilT))
		method(SymbolArray, "last", MakeOr(gs, elemRef, nilT))
		method(SymbolArray, "[]", MakeOr(gs, elemRef, nilT), arg("index", integer))
		method(SymbolArray, "push", SelfTypeSingleton, arg("item", elemRef))
		method(SymbolArray, "<<", SelfTypeSingleton, arg("item", elemRef))
		method(SymbolArray, "include?", boolean, arg("item", Top))

		kRef := &TypeMemberRef{Symbol: k}
		vRef := &TypeMemberRef{Symbol: v}
		method(SymbolHash, "[]", MakeOr(gs, vRef, nilT), arg("key", kRef))
		method(SymbolHash, "[]=", vRef, arg("key", kRef), arg("value", vRef))
		method(SymbolHash, "key?", boolean, arg("key", kRef))
		method(SymbolHash, "size", integer)
		method(SymbolHash, "empty?", boolean)
	})
}
