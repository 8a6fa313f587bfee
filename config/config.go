// Package config loads workspace configuration and per-file strictness
// sigils.
package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/viant/strictly/core"
)

// Config is the strictly.yaml workspace configuration.
type Config struct {
	// DefaultStrictness applies to files without a `# typed:` sigil.
	DefaultStrictness string `yaml:"defaultStrictness"`
	// PayloadPath points at a serialized stdlib snapshot, empty for none.
	PayloadPath string `yaml:"payloadPath"`
	// MaxThreads caps the worker pool; zero means NumCPU.
	MaxThreads int `yaml:"maxThreads"`
	// DisableWatchman turns off filesystem watching.
	DisableWatchman bool `yaml:"disableWatchman"`
	// Ignore lists path prefixes excluded from indexing.
	Ignore []string `yaml:"ignore"`
}

// Default returns the zero configuration with usable values.
func Default() *Config {
	return &Config{DefaultStrictness: "false"}
}

// Load reads a YAML config file; a missing file yields the default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Threads resolves the worker pool size.
func (c *Config) Threads() int {
	if c.MaxThreads > 0 {
		return c.MaxThreads
	}
	return runtime.NumCPU()
}

// DefaultLevel parses the configured default strictness.
func (c *Config) DefaultLevel() core.StrictnessLevel {
	if level, ok := ParseStrictness(c.DefaultStrictness); ok {
		return level
	}
	return core.StrictnessFalse
}

var sigilPattern = regexp.MustCompile(`(?m)^#\s*typed:\s*(ignore|false|true|strict|strong)\s*$`)

// ParseStrictness maps a sigil word to its level.
func ParseStrictness(word string) (core.StrictnessLevel, bool) {
	switch word {
	case "ignore":
		return core.StrictnessIgnore, true
	case "false":
		return core.StrictnessFalse, true
	case "true":
		return core.StrictnessTrue, true
	case "strict":
		return core.StrictnessStrict, true
	case "strong":
		return core.StrictnessStrong, true
	}
	return 0, false
}

// SniffStrictness finds the `# typed:` magic comment in source, falling
// back to fallback.
func SniffStrictness(source string, fallback core.StrictnessLevel) core.StrictnessLevel {
	match := sigilPattern.FindStringSubmatch(source)
	if match == nil {
		return fallback
	}
	level, _ := ParseStrictness(match[1])
	return level
}
