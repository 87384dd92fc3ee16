package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are tried in order when no config path is given.
var DefaultFiles = []string{".buildmatrix.yml", ".buildmatrix.yaml", ".buildmatrix.toml"}

// Config is the top-level buildmatrix configuration.
type Config struct {
	// Manifest is the compose build manifest. Default: build.yaml.
	Manifest string `yaml:"manifest" toml:"manifest"`

	// Parallel is the number of concurrent builds. Default: 1.
	Parallel int `yaml:"parallel" toml:"parallel"`

	// Strict treats skipped targets as failures.
	Strict bool `yaml:"strict" toml:"strict"`

	// EnvFiles are dotenv files layered into the resolution context.
	// Relative paths resolve against the config file's directory.
	EnvFiles []string `yaml:"env_files" toml:"env_files"`

	// Variables are the lowest-priority explicit placeholder values.
	Variables map[string]string `yaml:"variables" toml:"variables"`

	// TagFromGit sets TAG from the checked-out git version.
	TagFromGit bool `yaml:"tag_from_git" toml:"tag_from_git"`

	Builder BuilderConfig `yaml:"builder" toml:"builder"`
	Log     LogConfig     `yaml:"log" toml:"log"`

	// Source is the file the config was read from, "" for defaults.
	Source string `yaml:"-" toml:"-"`
}

// BuilderConfig selects and tunes the external builder.
type BuilderConfig struct {
	// Kind is the builder type. Supported: "docker".
	Kind string `yaml:"kind" toml:"kind"`

	// Executable is the docker CLI binary. Default: docker.
	Executable string `yaml:"executable" toml:"executable"`

	Platforms []string `yaml:"platforms" toml:"platforms"`
	Push      bool     `yaml:"push" toml:"push"`
	NoCache   bool     `yaml:"no_cache" toml:"no_cache"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads configuration from path. If path is empty, the default files
// are tried in the working directory and defaults are returned when none
// exists. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	for _, candidate := range DefaultFiles {
		cfg, err := LoadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return Defaults(), nil
}

// LoadFile reads one config file. The format follows the extension:
// .toml is TOML, anything else YAML. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.Source = path
	cfg.anchor(filepath.Dir(path))
	return cfg, nil
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Parallel: 1,
		Builder: BuilderConfig{
			Kind:       "docker",
			Executable: "docker",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// anchor makes relative file references relative to dir.
func (c *Config) anchor(dir string) {
	if c.Manifest != "" && !filepath.IsAbs(c.Manifest) {
		c.Manifest = filepath.Join(dir, c.Manifest)
	}
	for i, f := range c.EnvFiles {
		if !filepath.IsAbs(f) {
			c.EnvFiles[i] = filepath.Join(dir, f)
		}
	}
}
