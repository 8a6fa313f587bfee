package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitutionFastPath(t *testing.T) {
	gs := NewGlobalState()
	shared := gs.EnterNameUTF8("shared_method")
	child := gs.DeepCopy()

	subst := NewSubstitution(child, gs)
	require.True(t, subst.UseFastPath())

	// On the fast path substitution is the identity.
	assert.Equal(t, shared, subst.Substitute(shared))
	for ref := NameRef(1); int(ref) < child.NameCount(); ref++ {
		assert.Equal(t, ref, subst.Substitute(ref))
	}
}

func TestSubstitutionSlowPathAfterGrowth(t *testing.T) {
	gs := NewGlobalState()
	child := gs.DeepCopy()

	// Any name-table write between parent and child forces the slow path.
	grown := child.EnterNameUTF8("only_in_child")
	subst := NewSubstitution(child, gs)
	require.False(t, subst.UseFastPath())

	migrated := subst.Substitute(grown)
	assert.Equal(t, "only_in_child", gs.NameData(migrated).Raw)

	// Shared prefixes keep their identity.
	shared := child.EnterNameUTF8("Integer")
	assert.Equal(t, shared, subst.Substitute(shared))
}

func TestSubstitutionMigratesConstantAndUniqueNames(t *testing.T) {
	gs := NewGlobalState()
	child := gs.DeepCopy()

	raw := child.EnterNameUTF8("Widget")
	cnst := child.EnterNameConstant(raw)
	uniq := child.FreshNameUnique(UniqueTemp, raw, 42)

	subst := NewSubstitution(child, gs)
	require.False(t, subst.UseFastPath())

	gotCnst := gs.NameData(subst.Substitute(cnst))
	assert.Equal(t, NameConstant, gotCnst.Kind)
	assert.Equal(t, "Widget", gs.NameData(gotCnst.Cnst).Raw)

	gotUniq := gs.NameData(subst.Substitute(uniq))
	assert.Equal(t, NameUnique, gotUniq.Kind)
	assert.Equal(t, uint32(42), gotUniq.Num)
}

func TestSubstitutionCopiesUnreadFiles(t *testing.T) {
	gs := NewGlobalState()
	child := gs.DeepCopy()
	child.EnterFile(File{Path: "new.rb", Source: "x = 1\n", Type: SourceNormal})

	NewSubstitution(child, gs)
	ref, ok := gs.FindFileByPath("new.rb")
	require.True(t, ok)
	assert.Equal(t, "x = 1\n", gs.File(ref).Source)
}

func TestSubstitutionRequiresEqualSymbolTables(t *testing.T) {
	gs := NewGlobalState()
	child := gs.DeepCopy()
	child.EnterClassSymbol(LocNone, SymbolRoot, child.EnterNameConstant(child.EnterNameUTF8("Extra")))
	assert.Panics(t, func() { NewSubstitution(child, gs) })
}

func TestPayloadRoundTrip(t *testing.T) {
	gs := NewGlobalState()
	widget := gs.EnterClassSymbol(LocNone, SymbolRoot, gs.EnterNameConstant(gs.EnterNameUTF8("Widget")))
	method := gs.EnterMethodSymbol(LocNone, widget, gs.EnterNameUTF8("price"))
	gs.Symbol(method).ResultType = MakeOr(gs, MakeClassType(SymbolInteger), NilType())
	gs.EnterFile(File{Path: "widget.rb", Source: "class Widget; end\n", Type: SourcePayload})

	var buf bytes.Buffer
	require.NoError(t, gs.WritePayload(&buf))

	loaded, err := LoadPayload(&buf)
	require.NoError(t, err)
	assert.Equal(t, gs.SymbolCount(), loaded.SymbolCount())
	assert.Equal(t, gs.NameCount(), loaded.NameCount())

	name, ok := loaded.LookupNameUTF8("price")
	require.True(t, ok)
	ref, ok := loaded.Symbol(widget).Member(name)
	require.True(t, ok)
	got := loaded.Symbol(ref).ResultType
	assert.True(t, TypeEqual(got, MakeOr(loaded, MakeClassType(SymbolInteger), NilType())),
		"got %s", got.Show(loaded))

	fileRef, ok := loaded.FindFileByPath("widget.rb")
	require.True(t, ok)
	assert.Equal(t, SourcePayload, loaded.File(fileRef).Type)
}

func TestPayloadRejectsCorruptStream(t *testing.T) {
	var buf bytes.Buffer
	gs := NewGlobalState()
	require.NoError(t, gs.WritePayload(&buf))

	// A truncated stream is detected before any table decodes.
	data := buf.Bytes()
	_, err := LoadPayload(bytes.NewReader(data[:8]))
	assert.Error(t, err)
}
