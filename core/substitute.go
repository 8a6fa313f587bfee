package core

import "fmt"

// NameSubstitution migrates NameRefs minted in one state into another. The
// two states must agree on symbol refs; only names and files may differ.
type NameSubstitution struct {
	from *GlobalState
	to   *GlobalState

	// fastPath is set when both states share a recorded common parent and
	// neither has grown its name table past it; substitution is then the
	// identity.
	fastPath bool

	mapping []NameRef
}

// NewSubstitution scans to's file table, copying over any file it has not
// yet read, then precomputes the name mapping unless the fast path holds.
func NewSubstitution(from, to *GlobalState) *NameSubstitution {
	if from.SymbolCount() != to.SymbolCount() {
		panic(fmt.Sprintf("core: substitution requires identical symbol tables: %d != %d",
			from.SymbolCount(), to.SymbolCount()))
	}
	s := &NameSubstitution{from: from, to: to}

	to.UnfreezeFileTable(func() {
		for i := 1; i < len(from.files); i++ {
			f := from.files[i]
			if f.Type == SourceTombStone || f.Type == SourceNotYetRead {
				continue
			}
			if ref, ok := to.filesByPath[f.Path]; !ok || to.files[ref].Type == SourceNotYetRead {
				to.EnterFile(f)
			}
		}
	})

	if from.parent != nil && from.parent == to.parent &&
		len(from.names) == from.parent.nameCount &&
		len(to.names) == to.parent.nameCount &&
		len(from.files) == from.parent.fileCount &&
		len(to.files) == to.parent.fileCount {
		s.fastPath = true
		return s
	}

	s.mapping = make([]NameRef, len(from.names))
	to.UnfreezeNameTable(func() {
		for i := 1; i < len(from.names); i++ {
			n := from.names[i]
			switch n.Kind {
			case NameUtf8:
				s.mapping[i] = to.EnterNameUTF8(n.Raw)
			case NameConstant:
				s.mapping[i] = to.EnterNameConstant(s.mapping[n.Cnst])
			case NameUnique:
				s.mapping[i] = to.FreshNameUnique(n.UKind, s.mapping[n.Original], n.Num)
			}
		}
	})
	return s
}

// UseFastPath reports whether the substitution is the identity.
func (s *NameSubstitution) UseFastPath() bool { return s.fastPath }

// Substitute maps a source-state ref to the destination state. Total after
// construction.
func (s *NameSubstitution) Substitute(ref NameRef) NameRef {
	if s.fastPath {
		return ref
	}
	if int(ref) >= len(s.mapping) {
		panic(fmt.Sprintf("core: substitute of unknown name ref %d", ref))
	}
	return s.mapping[ref]
}
