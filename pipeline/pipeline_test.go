package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/viant/strictly/core"
)

// workspace fixtures are txtar archives: one file per section.
const demoWorkspace = `-- lib/bar.rb --
# typed: true
class Bar
  sig { returns(Integer) }
  def base
    1
  end
end
-- lib/foo.rb --
# typed: true
class Foo < Bar
  sig { returns(Integer) }
  def double
    base + base
  end

  sig { returns(String) }
  def broken
    return 42
  end
end
-- lib/ignored.rb --
# typed: ignore
class Junk
  def anything
    1 + "nope"
  end
end
`

func loadFixture(t *testing.T, archive string) *core.GlobalState {
	t.Helper()
	gs := core.NewGlobalState()
	for _, file := range txtar.Parse([]byte(archive)).Files {
		EnterSource(gs, file.Name, string(file.Data), core.StrictnessFalse)
	}
	return gs
}

func TestRunWorkspace(t *testing.T) {
	gs := loadFixture(t, demoWorkspace)
	result, err := Run(context.Background(), gs, Options{MaxThreads: 2})
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	diag := result.Diagnostics[0]
	assert.Equal(t, core.ErrReturnTypeMismatch, diag.Class)
	assert.Equal(t, "lib/foo.rb", gs.File(diag.Loc.File).Path)
}

func TestIgnoredFilesProduceNoDiagnostics(t *testing.T) {
	gs := loadFixture(t, demoWorkspace)
	result, err := Run(context.Background(), gs, Options{MaxThreads: 1})
	require.NoError(t, err)
	for _, diag := range result.Diagnostics {
		assert.NotEqual(t, "lib/ignored.rb", gs.File(diag.Loc.File).Path)
	}
}

func TestStopAfterSkipsLaterPhases(t *testing.T) {
	gs := loadFixture(t, demoWorkspace)
	result, err := Run(context.Background(), gs, Options{MaxThreads: 1, StopAfter: PhaseResolve})
	require.NoError(t, err)
	assert.Empty(t, result.CFGs)
	// The broken return is an inference diagnostic; stopping earlier means
	// it never fires.
	for _, diag := range result.Diagnostics {
		assert.NotEqual(t, core.ErrReturnTypeMismatch, diag.Class)
	}
}

// Diagnostics determinism: identical inputs produce byte-identical rendered
// output after per-file sorting.
func TestDiagnosticsDeterministic(t *testing.T) {
	render := func() string {
		gs := loadFixture(t, demoWorkspace)
		result, err := Run(context.Background(), gs, Options{MaxThreads: 4})
		require.NoError(t, err)
		var sb strings.Builder
		for _, diag := range result.Diagnostics {
			fmt.Fprintf(&sb, "%s:%d-%d %d %s\n",
				gs.File(diag.Loc.File).Path, diag.Loc.Begin, diag.Loc.End, diag.Class.Code, diag.Message)
		}
		return sb.String()
	}
	first := render()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, render(), "run %d diverged", i)
	}
}

func TestSummarizeDistinguishesBodyAndSignatureEdits(t *testing.T) {
	base := `# typed: true
class Foo
  sig { returns(Integer) }
  def pick
    1
  end

  sig { returns(Integer) }
  def other
    2
  end
end
`
	bodyEdit := strings.Replace(base, "    1\n", "    41\n", 1)
	sigEdit := strings.Replace(base, "sig { returns(Integer) }\n  def pick", "sig { returns(String) }\n  def pick", 1)

	summarize := func(src string) *FileSummary {
		gs := core.NewGlobalState()
		ref := EnterSource(gs, "foo.rb", src, core.StrictnessTrue)
		result, err := Run(context.Background(), gs, Options{MaxThreads: 1, StopAfter: PhaseIndex})
		require.NoError(t, err)
		return result.Summaries[ref]
	}

	before := summarize(base)
	afterBody := summarize(bodyEdit)
	afterSig := summarize(sigEdit)

	changed, ok := OnlyBodiesChanged(before, afterBody)
	require.True(t, ok)
	assert.Equal(t, []string{"Foo#pick"}, changed)

	_, ok = OnlyBodiesChanged(before, afterSig)
	assert.False(t, ok, "signature edits must force the slow path")

	same, ok := OnlyBodiesChanged(before, summarize(base))
	require.True(t, ok)
	assert.Empty(t, same)
}

func TestHashStability(t *testing.T) {
	a, err := Hash([]byte("payload"))
	require.NoError(t, err)
	b, err := Hash([]byte("payload"))
	require.NoError(t, err)
	c, err := Hash([]byte("payload!"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEnterSourceSniffsStrictness(t *testing.T) {
	gs := core.NewGlobalState()
	ref := EnterSource(gs, "a.rb", "# typed: strict\nclass A; end\n", core.StrictnessFalse)
	assert.Equal(t, core.StrictnessStrict, gs.File(ref).Strictness)
	assert.NotZero(t, gs.File(ref).Hash)

	ref = EnterSource(gs, "b.rb", "class B; end\n", core.StrictnessFalse)
	assert.Equal(t, core.StrictnessFalse, gs.File(ref).Strictness)
}
