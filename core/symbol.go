package core

import (
	"fmt"
	"sort"
)

// SymbolRef identifies an interned symbol. Symbol refs are required to be
// identical across deep-copied states.
type SymbolRef uint32

// Well-known symbols, entered at construction in this order so their refs
// are stable before any payload or user code loads.
const (
	SymbolRoot SymbolRef = iota
	SymbolBasicObject
	SymbolObject
	SymbolKernel
	SymbolComparable
	SymbolNumeric
	SymbolInteger
	SymbolFloat
	SymbolString
	SymbolSymbol
	SymbolNilClass
	SymbolTrueClass
	SymbolFalseClass
	SymbolBoolean
	SymbolArray
	SymbolHash
	SymbolProc
	SymbolStandardError
	SymbolT
	SymbolVoidSingleton

	wellKnownSymbolCount
)

// SymbolKind discriminates what a symbol declares.
type SymbolKind uint8

const (
	SymbolClassOrModule SymbolKind = iota + 1
	SymbolMethod
	SymbolField
	SymbolStaticField
	SymbolTypeMember
	SymbolTypeArgument
	SymbolLocalVariable
)

// SymbolFlags carries declaration modifiers.
type SymbolFlags uint16

const (
	FlagAbstract SymbolFlags = 1 << iota
	FlagFinal
	FlagPrivate
	FlagProtected
	FlagOverride
	FlagOverridable
	FlagModule
	FlagVoidResult
	FlagCovariant
	FlagContravariant
)

// ArgInfo describes one declared method argument.
type ArgInfo struct {
	Name     NameRef
	Type     Type
	Loc      Loc
	Keyword  bool
	Optional bool
	Repeated bool
	Block    bool
}

// Symbol is one entry of the symbol table.
type Symbol struct {
	Kind  SymbolKind
	Owner SymbolRef
	Name  NameRef
	Flags SymbolFlags

	// Locs collects every definition site; classes reopened in several files
	// accumulate one loc per definition.
	Locs []Loc

	Superclass SymbolRef
	Mixins     []SymbolRef
	TypeParams []SymbolRef

	// Arguments is populated for methods only; a method symbol owns its
	// argument symbols.
	Arguments []ArgInfo

	ResultType Type

	members map[NameRef]SymbolRef

	// linearization is computed once and then frozen for dispatch.
	linearization []SymbolRef
}

// Member returns the owned symbol for name, if any.
func (s *Symbol) Member(name NameRef) (SymbolRef, bool) {
	ref, ok := s.members[name]
	return ref, ok
}

// MemberNames returns the member keys in table order for deterministic
// iteration.
func (s *Symbol) MemberNames() []NameRef {
	out := make([]NameRef, 0, len(s.members))
	for name := range s.members {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsClassOrModule reports whether the symbol declares a namespace.
func (s *Symbol) IsClassOrModule() bool { return s.Kind == SymbolClassOrModule }

// IsMethod reports whether the symbol declares a method.
func (s *Symbol) IsMethod() bool { return s.Kind == SymbolMethod }

// Symbol returns the entry for ref.
func (gs *GlobalState) Symbol(ref SymbolRef) *Symbol {
	return &gs.symbols[ref]
}

// SymbolCount reports the number of interned symbols.
func (gs *GlobalState) SymbolCount() int {
	return len(gs.symbols)
}

func (gs *GlobalState) enterSymbol(loc Loc, owner SymbolRef, name NameRef, kind SymbolKind) SymbolRef {
	ownerSym := &gs.symbols[owner]
	if existing, ok := ownerSym.members[name]; ok && gs.symbols[existing].Kind == kind {
		if loc.Exists() {
			gs.ensureSymbolsUnfrozen()
			gs.symbols[existing].Locs = appendLoc(gs.symbols[existing].Locs, loc)
		}
		return existing
	}
	gs.ensureSymbolsUnfrozen()
	ref := SymbolRef(len(gs.symbols))
	sym := Symbol{
		Kind:       kind,
		Owner:      owner,
		Name:       name,
		Superclass: SymbolRoot,
		members:    map[NameRef]SymbolRef{},
	}
	if kind == SymbolClassOrModule {
		// Object is the implicit superclass until a definition names one.
		sym.Superclass = SymbolObject
	}
	if loc.Exists() {
		sym.Locs = []Loc{loc}
	}
	gs.symbols = append(gs.symbols, sym)
	gs.symbols[owner].members[name] = ref
	return ref
}

func appendLoc(locs []Loc, loc Loc) []Loc {
	for i, l := range locs {
		if l.File == loc.File {
			locs[i] = l.Join(loc)
			return locs
		}
	}
	return append(locs, loc)
}

// EnterClassSymbol creates or reopens a class or module under owner.
func (gs *GlobalState) EnterClassSymbol(loc Loc, owner SymbolRef, name NameRef) SymbolRef {
	return gs.enterSymbol(loc, owner, name, SymbolClassOrModule)
}

// EnterMethodSymbol creates or redefines a method under owner.
func (gs *GlobalState) EnterMethodSymbol(loc Loc, owner SymbolRef, name NameRef) SymbolRef {
	return gs.enterSymbol(loc, owner, name, SymbolMethod)
}

// EnterFieldSymbol creates an instance-variable slot under owner.
func (gs *GlobalState) EnterFieldSymbol(loc Loc, owner SymbolRef, name NameRef) SymbolRef {
	return gs.enterSymbol(loc, owner, name, SymbolField)
}

// EnterStaticFieldSymbol creates a class-level slot under owner.
func (gs *GlobalState) EnterStaticFieldSymbol(loc Loc, owner SymbolRef, name NameRef) SymbolRef {
	return gs.enterSymbol(loc, owner, name, SymbolStaticField)
}

// EnterTypeMember declares a generic type member on a class.
func (gs *GlobalState) EnterTypeMember(loc Loc, owner SymbolRef, name NameRef) SymbolRef {
	ref := gs.enterSymbol(loc, owner, name, SymbolTypeMember)
	owning := &gs.symbols[owner]
	for _, tp := range owning.TypeParams {
		if tp == ref {
			return ref
		}
	}
	owning.TypeParams = append(owning.TypeParams, ref)
	return ref
}

// EnterTypeArgument declares a generic type parameter on a method.
func (gs *GlobalState) EnterTypeArgument(loc Loc, owner SymbolRef, name NameRef) SymbolRef {
	ref := gs.enterSymbol(loc, owner, name, SymbolTypeArgument)
	owning := &gs.symbols[owner]
	for _, tp := range owning.TypeParams {
		if tp == ref {
			return ref
		}
	}
	owning.TypeParams = append(owning.TypeParams, ref)
	return ref
}

// EnterMethodArgument records a declared argument on a method symbol.
func (gs *GlobalState) EnterMethodArgument(method SymbolRef, arg ArgInfo) {
	gs.ensureSymbolsUnfrozen()
	gs.symbols[method].Arguments = append(gs.symbols[method].Arguments, arg)
}

// FindMemberTransitive walks the linearization of klass looking for name.
func (gs *GlobalState) FindMemberTransitive(klass SymbolRef, name NameRef) (SymbolRef, bool) {
	for _, ancestor := range gs.Linearization(klass) {
		if ref, ok := gs.symbols[ancestor].members[name]; ok {
			return ref, ok
		}
	}
	return 0, false
}

// Linearization returns the frozen flattened ancestor list for klass, most
// specific first, computing it on first use.
func (gs *GlobalState) Linearization(klass SymbolRef) []SymbolRef {
	sym := &gs.symbols[klass]
	if sym.linearization != nil {
		return sym.linearization
	}
	seen := map[SymbolRef]bool{}
	var out []SymbolRef
	var walk func(SymbolRef)
	walk = func(ref SymbolRef) {
		if seen[ref] {
			return
		}
		seen[ref] = true
		out = append(out, ref)
		cur := &gs.symbols[ref]
		for i := len(cur.Mixins) - 1; i >= 0; i-- {
			walk(cur.Mixins[i])
		}
		if ref == SymbolRoot || ref == SymbolBasicObject || cur.Flags&FlagModule != 0 {
			return
		}
		if cur.Superclass != SymbolRoot {
			walk(cur.Superclass)
		}
	}
	walk(klass)
	sym.linearization = out
	return out
}

// DerivesFrom reports whether klass's linearization contains ancestor.
func (gs *GlobalState) DerivesFrom(klass, ancestor SymbolRef) bool {
	for _, ref := range gs.Linearization(klass) {
		if ref == ancestor {
			return true
		}
	}
	return false
}

// ShowSymbol renders the fully-qualified symbol name.
func (gs *GlobalState) ShowSymbol(ref SymbolRef) string {
	if ref == SymbolRoot {
		return "<root>"
	}
	sym := &gs.symbols[ref]
	if sym.Owner == SymbolRoot {
		return gs.ShowName(sym.Name)
	}
	sep := "::"
	if sym.Kind == SymbolMethod {
		sep = "#"
	}
	return fmt.Sprintf("%s%s%s", gs.ShowSymbol(sym.Owner), sep, gs.ShowName(sym.Name))
}
