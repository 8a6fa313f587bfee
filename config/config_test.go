package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/strictly/core"
)

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, core.StrictnessFalse, cfg.DefaultLevel())
	assert.False(t, cfg.DisableWatchman)
}

func TestLoadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strictly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`defaultStrictness: strict
maxThreads: 3
disableWatchman: true
ignore:
  - vendor/
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, core.StrictnessStrict, cfg.DefaultLevel())
	assert.Equal(t, 3, cfg.Threads())
	assert.True(t, cfg.DisableWatchman)
	assert.Equal(t, []string{"vendor/"}, cfg.Ignore)
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strictly.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultStrictness: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSniffStrictness(t *testing.T) {
	tests := []struct {
		source string
		want   core.StrictnessLevel
	}{
		{"# typed: true\nclass A; end\n", core.StrictnessTrue},
		{"# typed: strict\n", core.StrictnessStrict},
		{"#typed: strong\n", core.StrictnessStrong},
		{"# typed: ignore\n", core.StrictnessIgnore},
		{"class A; end\n", core.StrictnessFalse},
		{"# typed: bogus\n", core.StrictnessFalse},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SniffStrictness(tc.source, core.StrictnessFalse), "source %q", tc.source)
	}
}
