package core

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrFrozen is raised (as a panic payload) when an enter operation hits a
// frozen table; it indicates a missing unfreeze scope in the caller.
var ErrFrozen = errors.New("table is frozen")

// ErrDoesNotExist reports a required lookup that failed; fatal for the
// pipeline step that performed it.
var ErrDoesNotExist = errors.New("symbol does not exist")

var lineageCounter atomic.Uint64

// lineage records the snapshot point shared between a state and its deep
// copies; the substitution fast path compares against it.
type lineage struct {
	id          uint64
	nameCount   int
	symbolCount int
	fileCount   int
}

// GlobalState is the single source of truth for names, symbols and files.
// It is single-writer: only the owning goroutine mutates it; read-only views
// may be shared during worker fan-out.
type GlobalState struct {
	names           []Name
	namesByUTF8     map[string]NameRef
	namesByConstant map[NameRef]NameRef
	namesByUnique   map[uniqueNameKey]NameRef

	symbols []Symbol
	files   []File

	filesByPath map[string]FileRef

	Errors *ErrorQueue

	namesFrozen   bool
	symbolsFrozen bool
	filesFrozen   bool

	parent *lineage

	uniqueCounter uint32
}

// NewGlobalState builds a state with the well-known names and symbols
// entered, all tables unfrozen.
func NewGlobalState() *GlobalState {
	gs := &GlobalState{
		namesByUTF8:     map[string]NameRef{},
		namesByConstant: map[NameRef]NameRef{},
		namesByUnique:   map[uniqueNameKey]NameRef{},
		filesByPath:     map[string]FileRef{},
		Errors:          &ErrorQueue{},
	}
	// Reserve ref 0 in each table.
	gs.names = append(gs.names, Name{})
	gs.files = append(gs.files, File{Path: "", Type: SourceTombStone})

	root := Symbol{Kind: SymbolClassOrModule, Owner: SymbolRoot, Name: gs.EnterNameUTF8("<root>"), members: map[NameRef]SymbolRef{}}
	gs.symbols = append(gs.symbols, root)

	wellKnown := []struct {
		ref   SymbolRef
		name  string
		super SymbolRef
		flags SymbolFlags
	}{
		{SymbolBasicObject, "BasicObject", SymbolRoot, 0},
		{SymbolObject, "Object", SymbolBasicObject, 0},
		{SymbolKernel, "Kernel", SymbolRoot, FlagModule},
		{SymbolComparable, "Comparable", SymbolRoot, FlagModule},
		{SymbolNumeric, "Numeric", SymbolObject, 0},
		{SymbolInteger, "Integer", SymbolNumeric, 0},
		{SymbolFloat, "Float", SymbolNumeric, 0},
		{SymbolString, "String", SymbolObject, 0},
		{SymbolSymbol, "Symbol", SymbolObject, 0},
		{SymbolNilClass, "NilClass", SymbolObject, 0},
		{SymbolTrueClass, "TrueClass", SymbolObject, 0},
		{SymbolFalseClass, "FalseClass", SymbolObject, 0},
		{SymbolBoolean, "Boolean", SymbolObject, FlagModule},
		{SymbolArray, "Array", SymbolObject, 0},
		{SymbolHash, "Hash", SymbolObject, 0},
		{SymbolProc, "Proc", SymbolObject, 0},
		{SymbolStandardError, "StandardError", SymbolObject, 0},
		{SymbolT, "T", SymbolRoot, FlagModule},
		{SymbolVoidSingleton, "<void>", SymbolRoot, 0},
	}
	for _, wk := range wellKnown {
		name := gs.EnterNameUTF8(wk.name)
		cname := gs.EnterNameConstant(name)
		ref := SymbolRef(len(gs.symbols))
		if ref != wk.ref {
			panic(fmt.Sprintf("core: well-known symbol %s allocated ref %d, want %d", wk.name, ref, wk.ref))
		}
		gs.symbols = append(gs.symbols, Symbol{
			Kind:       SymbolClassOrModule,
			Owner:      SymbolRoot,
			Name:       cname,
			Superclass: wk.super,
			Flags:      wk.flags,
			members:    map[NameRef]SymbolRef{},
		})
		gs.symbols[SymbolRoot].members[cname] = ref
	}
	gs.symbols[SymbolTrueClass].Mixins = []SymbolRef{SymbolBoolean}
	gs.symbols[SymbolFalseClass].Mixins = []SymbolRef{SymbolBoolean}
	gs.symbols[SymbolObject].Mixins = []SymbolRef{SymbolKernel}
	gs.symbols[SymbolInteger].Mixins = []SymbolRef{SymbolComparable}
	gs.symbols[SymbolFloat].Mixins = []SymbolRef{SymbolComparable}
	gs.symbols[SymbolString].Mixins = []SymbolRef{SymbolComparable}

	gs.enterIntrinsics()
	return gs
}

// NameCount reports the number of interned names.
func (gs *GlobalState) NameCount() int { return len(gs.names) }

// FreshUniqueCounter mints a monotonically increasing counter for unique
// names.
func (gs *GlobalState) FreshUniqueCounter() uint32 {
	gs.uniqueCounter++
	return gs.uniqueCounter
}

func (gs *GlobalState) ensureNamesUnfrozen() {
	if gs.namesFrozen {
		panic(fmt.Errorf("core: enter name: %w", ErrFrozen))
	}
}

func (gs *GlobalState) ensureSymbolsUnfrozen() {
	if gs.symbolsFrozen {
		panic(fmt.Errorf("core: enter symbol: %w", ErrFrozen))
	}
}

func (gs *GlobalState) ensureFilesUnfrozen() {
	if gs.filesFrozen {
		panic(fmt.Errorf("core: enter file: %w", ErrFrozen))
	}
}

// Freeze freezes all three tables.
func (gs *GlobalState) Freeze() {
	gs.namesFrozen = true
	gs.symbolsFrozen = true
	gs.filesFrozen = true
}

// UnfreezeNameTable runs fn with the name table writable, re-freezing on all
// exit paths.
func (gs *GlobalState) UnfreezeNameTable(fn func()) {
	prev := gs.namesFrozen
	gs.namesFrozen = false
	defer func() { gs.namesFrozen = prev }()
	fn()
}

// UnfreezeSymbolTable runs fn with the symbol table writable.
func (gs *GlobalState) UnfreezeSymbolTable(fn func()) {
	prev := gs.symbolsFrozen
	gs.symbolsFrozen = false
	defer func() { gs.symbolsFrozen = prev }()
	fn()
}

// UnfreezeFileTable runs fn with the file table writable.
func (gs *GlobalState) UnfreezeFileTable(fn func()) {
	prev := gs.filesFrozen
	gs.filesFrozen = false
	defer func() { gs.filesFrozen = prev }()
	fn()
}

// UnfreezeAll runs fn with every table writable; used by resolution and file
// ingest.
func (gs *GlobalState) UnfreezeAll(fn func()) {
	gs.UnfreezeNameTable(func() {
		gs.UnfreezeSymbolTable(func() {
			gs.UnfreezeFileTable(fn)
		})
	})
}

// DeepCopy produces an independent state with identical symbol refs and
// possibly extended name/file refs later. Both states record the copy point
// as their common parent.
func (gs *GlobalState) DeepCopy() *GlobalState {
	out := &GlobalState{
		names:           append([]Name(nil), gs.names...),
		namesByUTF8:     make(map[string]NameRef, len(gs.namesByUTF8)),
		namesByConstant: make(map[NameRef]NameRef, len(gs.namesByConstant)),
		namesByUnique:   make(map[uniqueNameKey]NameRef, len(gs.namesByUnique)),
		symbols:         make([]Symbol, len(gs.symbols)),
		files:           append([]File(nil), gs.files...),
		filesByPath:     make(map[string]FileRef, len(gs.filesByPath)),
		Errors:          &ErrorQueue{},
		namesFrozen:     gs.namesFrozen,
		symbolsFrozen:   gs.symbolsFrozen,
		filesFrozen:     gs.filesFrozen,
		uniqueCounter:   gs.uniqueCounter,
	}
	for k, v := range gs.namesByUTF8 {
		out.namesByUTF8[k] = v
	}
	for k, v := range gs.namesByConstant {
		out.namesByConstant[k] = v
	}
	for k, v := range gs.namesByUnique {
		out.namesByUnique[k] = v
	}
	for k, v := range gs.filesByPath {
		out.filesByPath[k] = v
	}
	for i := range gs.symbols {
		src := &gs.symbols[i]
		dst := *src
		dst.Locs = append([]Loc(nil), src.Locs...)
		dst.Mixins = append([]SymbolRef(nil), src.Mixins...)
		dst.TypeParams = append([]SymbolRef(nil), src.TypeParams...)
		dst.Arguments = append([]ArgInfo(nil), src.Arguments...)
		dst.linearization = append([]SymbolRef(nil), src.linearization...)
		dst.members = make(map[NameRef]SymbolRef, len(src.members))
		for k, v := range src.members {
			dst.members[k] = v
		}
		out.symbols[i] = dst
	}
	shared := &lineage{
		id:          lineageCounter.Add(1),
		nameCount:   len(gs.names),
		symbolCount: len(gs.symbols),
		fileCount:   len(gs.files),
	}
	gs.parent = shared
	out.parent = shared
	return out
}

// SanityCheck verifies table invariants; called at snapshot boundaries.
// Violations are programmer errors and panic.
func (gs *GlobalState) SanityCheck() {
	if len(gs.symbols) == 0 || gs.symbols[SymbolRoot].Owner != SymbolRoot {
		panic("core: root symbol must own itself")
	}
	for raw, ref := range gs.namesByUTF8 {
		if int(ref) >= len(gs.names) || gs.names[ref].Raw != raw {
			panic(fmt.Sprintf("core: name table corrupt at %q", raw))
		}
	}
	for i := 1; i < len(gs.symbols); i++ {
		sym := &gs.symbols[i]
		if int(sym.Owner) >= len(gs.symbols) {
			panic(fmt.Sprintf("core: symbol %d has dangling owner", i))
		}
		for _, arg := range sym.Arguments {
			if int(arg.Name) >= len(gs.names) {
				panic(fmt.Sprintf("core: symbol %d argument has dangling name", i))
			}
		}
	}
	for path, ref := range gs.filesByPath {
		if int(ref) >= len(gs.files) || gs.files[ref].Path != path {
			panic(fmt.Sprintf("core: file table corrupt at %q", path))
		}
	}
}
