package core

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestEnterNameUTF8Interning(t *testing.T) {
	gs := NewGlobalState()
	a := gs.EnterNameUTF8("foo")
	b := gs.EnterNameUTF8("foo")
	c := gs.EnterNameUTF8("bar")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "foo", gs.NameData(a).Raw)
}

// Two calls with the same bytes always return equal refs whose data round
// trips.
func TestInterningProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	gs := NewGlobalState()
	properties.Property("intern twice yields the same ref and data", prop.ForAll(
		func(s string) bool {
			first := gs.EnterNameUTF8(s)
			second := gs.EnterNameUTF8(s)
			return first == second && gs.NameData(first).Raw == s
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}

func TestEnterNameConstant(t *testing.T) {
	gs := NewGlobalState()
	id := gs.EnterNameUTF8("Widget")
	a := gs.EnterNameConstant(id)
	b := gs.EnterNameConstant(id)
	assert.Equal(t, a, b)
	assert.Equal(t, NameConstant, gs.NameData(a).Kind)
	assert.Equal(t, "Widget", gs.ShowName(a))
}

func TestFreshNameUnique(t *testing.T) {
	gs := NewGlobalState()
	orig := gs.EnterNameUTF8("tmp")
	a := gs.FreshNameUnique(UniqueTemp, orig, 1)
	b := gs.FreshNameUnique(UniqueTemp, orig, 2)
	again := gs.FreshNameUnique(UniqueTemp, orig, 1)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
}

func TestFrozenNameTablePanics(t *testing.T) {
	gs := NewGlobalState()
	gs.Freeze()
	assert.Panics(t, func() { gs.EnterNameUTF8("brand-new") })
	// Existing names still intern without mutation.
	assert.NotPanics(t, func() { gs.EnterNameUTF8("Integer") })
	gs.UnfreezeNameTable(func() {
		assert.NotPanics(t, func() { gs.EnterNameUTF8("brand-new") })
	})
	assert.Panics(t, func() { gs.EnterNameUTF8("another-new") })
}

func TestDeepCopyPreservesRefs(t *testing.T) {
	gs := NewGlobalState()
	name := gs.EnterNameUTF8("shared")
	copied := gs.DeepCopy()
	assert.Equal(t, name, copied.EnterNameUTF8("shared"))
	assert.Equal(t, gs.SymbolCount(), copied.SymbolCount())

	// Growing the copy leaves the original untouched.
	grown := copied.EnterNameUTF8("only-in-copy")
	_, ok := gs.LookupNameUTF8("only-in-copy")
	assert.False(t, ok)
	assert.Greater(t, int(grown), 0)

	copied.SanityCheck()
	gs.SanityCheck()
}

func TestLocJoinAndDetail(t *testing.T) {
	gs := NewGlobalState()
	ref := gs.EnterFile(File{Path: "a.rb", Source: "abc\ndef\n", Type: SourceNormal})

	a := MakeLoc(ref, 0, 3)
	b := MakeLoc(ref, 4, 7)
	joined := a.Join(b)
	assert.Equal(t, uint32(0), joined.Begin)
	assert.Equal(t, uint32(7), joined.End)

	begin, end := b.Detail(gs)
	assert.Equal(t, 2, begin.Line)
	assert.Equal(t, 0, begin.Column)
	assert.Equal(t, 2, end.Line)
	assert.Equal(t, 3, end.Column)

	assert.False(t, LocNone.Exists())
	assert.Equal(t, b, LocNone.Join(b))
}

func TestTombStoneKeepsRef(t *testing.T) {
	gs := NewGlobalState()
	ref := gs.EnterFile(File{Path: "gone.rb", Source: "x = 1\n", Type: SourceNormal})
	before := gs.FileCount()
	gs.TombStoneFile(ref)
	assert.Equal(t, before, gs.FileCount())
	for _, live := range gs.LiveFiles() {
		assert.NotEqual(t, ref, live)
	}
}
