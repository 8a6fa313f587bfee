package core

import (
	"encoding/gob"
	"fmt"
	"io"

	"golang.org/x/mod/semver"
)

// PayloadVersion tags the snapshot wire format. Only round-trip
// compatibility within a major version is promised.
const PayloadVersion = "v1.2.0"

type payloadHeader struct {
	Magic   string
	Version string
}

const payloadMagic = "strictly-payload"

type payloadSymbol struct {
	Kind       SymbolKind
	Owner      SymbolRef
	Name       NameRef
	Flags      SymbolFlags
	Locs       []Loc
	Superclass SymbolRef
	Mixins     []SymbolRef
	TypeParams []SymbolRef
	Arguments  []ArgInfo
	ResultType Type
	Members    map[NameRef]SymbolRef
}

type payloadBody struct {
	Names         []Name
	Symbols       []payloadSymbol
	Files         []File
	UniqueCounter uint32
}

func init() {
	gob.Register(&GroundType{})
	gob.Register(&ClassType{})
	gob.Register(&AppliedType{})
	gob.Register(&LiteralType{})
	gob.Register(&TupleType{})
	gob.Register(&ShapeType{})
	gob.Register(&OrType{})
	gob.Register(&AndType{})
	gob.Register(&ProxyType{})
	gob.Register(&SelfType{})
	gob.Register(&TypeVar{})
	gob.Register(&TypeMemberRef{})
	gob.Register(&MetaType{})
	gob.Register(&AliasType{})
}

// WritePayload serializes the name, symbol and file tables as one opaque
// versioned stream.
func (gs *GlobalState) WritePayload(w io.Writer) error {
	gs.SanityCheck()
	enc := gob.NewEncoder(w)
	if err := enc.Encode(payloadHeader{Magic: payloadMagic, Version: PayloadVersion}); err != nil {
		return fmt.Errorf("write payload header: %w", err)
	}
	body := payloadBody{
		Names:         gs.names,
		Files:         gs.files,
		UniqueCounter: gs.uniqueCounter,
	}
	for i := range gs.symbols {
		s := &gs.symbols[i]
		body.Symbols = append(body.Symbols, payloadSymbol{
			Kind:       s.Kind,
			Owner:      s.Owner,
			Name:       s.Name,
			Flags:      s.Flags,
			Locs:       s.Locs,
			Superclass: s.Superclass,
			Mixins:     s.Mixins,
			TypeParams: s.TypeParams,
			Arguments:  s.Arguments,
			ResultType: s.ResultType,
			Members:    s.members,
		})
	}
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("write payload body: %w", err)
	}
	return nil
}

// LoadPayload builds a new state from a previously serialized snapshot.
// Payload-sourced files keep their SourcePayload tag.
func LoadPayload(r io.Reader) (*GlobalState, error) {
	dec := gob.NewDecoder(r)
	var header payloadHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("read payload header: %w", err)
	}
	if header.Magic != payloadMagic {
		return nil, fmt.Errorf("not a payload stream (magic %q)", header.Magic)
	}
	if !semver.IsValid(header.Version) || semver.Major(header.Version) != semver.Major(PayloadVersion) {
		return nil, fmt.Errorf("incompatible payload version %s, want %s", header.Version, semver.Major(PayloadVersion))
	}
	var body payloadBody
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("read payload body: %w", err)
	}
	gs := &GlobalState{
		names:           body.Names,
		namesByUTF8:     map[string]NameRef{},
		namesByConstant: map[NameRef]NameRef{},
		namesByUnique:   map[uniqueNameKey]NameRef{},
		files:           body.Files,
		filesByPath:     map[string]FileRef{},
		Errors:          &ErrorQueue{},
		uniqueCounter:   body.UniqueCounter,
	}
	for i, n := range body.Names {
		switch n.Kind {
		case NameUtf8:
			gs.namesByUTF8[n.Raw] = NameRef(i)
		case NameConstant:
			gs.namesByConstant[n.Cnst] = NameRef(i)
		case NameUnique:
			gs.namesByUnique[uniqueNameKey{kind: n.UKind, original: n.Original, num: n.Num}] = NameRef(i)
		}
	}
	for i, f := range body.Files {
		if i == 0 {
			continue
		}
		gs.filesByPath[f.Path] = FileRef(i)
	}
	for _, ps := range body.Symbols {
		members := ps.Members
		if members == nil {
			members = map[NameRef]SymbolRef{}
		}
		gs.symbols = append(gs.symbols, Symbol{
			Kind:       ps.Kind,
			Owner:      ps.Owner,
			Name:       ps.Name,
			Flags:      ps.Flags,
			Locs:       ps.Locs,
			Superclass: ps.Superclass,
			Mixins:     ps.Mixins,
			TypeParams: ps.TypeParams,
			Arguments:  ps.Arguments,
			ResultType: ps.ResultType,
			members:    members,
		})
	}
	gs.SanityCheck()
	return gs, nil
}
