package core

import (
	"fmt"
)

// NameRef identifies an interned name inside a GlobalState. Equality of refs
// is equality of names within the same state.
type NameRef uint32

// NoName is the zero name, interned at construction time.
const NoName NameRef = 0

// NameKind discriminates the name variants.
type NameKind uint8

const (
	NameUtf8 NameKind = iota + 1
	NameConstant
	NameUnique
)

// UniqueKind tags the origin of a synthetic name.
type UniqueKind uint8

const (
	UniqueTemp UniqueKind = iota + 1
	UniqueMangleRename
	UniqueDefaultArg
	UniqueOverload
	UniqueBlock
)

// Name is one entry of the name table. Exactly the fields of its kind are
// meaningful.
type Name struct {
	Kind NameKind

	// Raw holds the byte content for NameUtf8.
	Raw string

	// Cnst holds the wrapped identifier for NameConstant.
	Cnst NameRef

	// Original, UKind and Num describe a NameUnique.
	Original NameRef
	UKind    UniqueKind
	Num      uint32
}

// EnterNameUTF8 interns bytes, returning the existing ref when present.
func (gs *GlobalState) EnterNameUTF8(raw string) NameRef {
	if ref, ok := gs.namesByUTF8[raw]; ok {
		return ref
	}
	gs.ensureNamesUnfrozen()
	ref := NameRef(len(gs.names))
	gs.names = append(gs.names, Name{Kind: NameUtf8, Raw: raw})
	gs.namesByUTF8[raw] = ref
	return ref
}

// EnterNameConstant interns the constant variant wrapping name.
func (gs *GlobalState) EnterNameConstant(name NameRef) NameRef {
	if ref, ok := gs.namesByConstant[name]; ok {
		return ref
	}
	gs.ensureNamesUnfrozen()
	ref := NameRef(len(gs.names))
	gs.names = append(gs.names, Name{Kind: NameConstant, Cnst: name})
	gs.namesByConstant[name] = ref
	return ref
}

// FreshNameUnique interns the (kind, original, counter) triple: a triple seen
// before returns its existing name and does not mint a second one, so a new
// name needs a new counter (see FreshUniqueCounter). The triple makes names
// reproducible across identically-driven states.
func (gs *GlobalState) FreshNameUnique(kind UniqueKind, original NameRef, num uint32) NameRef {
	key := uniqueNameKey{kind: kind, original: original, num: num}
	if ref, ok := gs.namesByUnique[key]; ok {
		return ref
	}
	gs.ensureNamesUnfrozen()
	ref := NameRef(len(gs.names))
	gs.names = append(gs.names, Name{Kind: NameUnique, Original: original, UKind: kind, Num: num})
	gs.namesByUnique[key] = ref
	return ref
}

type uniqueNameKey struct {
	kind     UniqueKind
	original NameRef
	num      uint32
}

// NameData returns the interned entry for ref.
func (gs *GlobalState) NameData(ref NameRef) Name {
	return gs.names[ref]
}

// LookupNameUTF8 returns the ref for raw without interning; ok reports
// whether it was present.
func (gs *GlobalState) LookupNameUTF8(raw string) (NameRef, bool) {
	ref, ok := gs.namesByUTF8[raw]
	return ref, ok
}

// ShowName renders a name for diagnostics.
func (gs *GlobalState) ShowName(ref NameRef) string {
	n := gs.names[ref]
	switch n.Kind {
	case NameUtf8:
		return n.Raw
	case NameConstant:
		return gs.ShowName(n.Cnst)
	case NameUnique:
		return fmt.Sprintf("%s$%d", gs.ShowName(n.Original), n.Num)
	default:
		return "<none>"
	}
}
