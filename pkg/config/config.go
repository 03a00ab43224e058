// Package config reads the optional jackc.toml project file and encodes
// build reports.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the project file looked up in the source directory.
const FileName = "jackc.toml"

var ErrInvalidJobs = errors.New("jobs must not be negative")

// Config holds build settings. Zero values mean "use the default".
type Config struct {
	OutDir             string `toml:"out_dir"`
	Jobs               int    `toml:"jobs"`
	AllowRedeclaration bool   `toml:"allow_redeclaration"`
	KeepGoing          bool   `toml:"keep_going"`
	Report             bool   `toml:"report"`
}

// Default returns the settings used when no project file exists.
func Default() Config {
	return Config{Report: true}
}

// Load reads dir/jackc.toml over the defaults. A missing file is not an
// error. Unknown keys are rejected.
func Load(dir string) (Config, error) {
	cfg := Default()
	p := filepath.Join(dir, FileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", p, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", p, err)
	}
	return cfg, nil
}

// Save writes cfg to dir/jackc.toml.
func Save(dir string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Jobs < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs)
	}
	return nil
}

// Workers returns the number of parallel compilations to run.
func (c Config) Workers() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.GOMAXPROCS(0)
}
