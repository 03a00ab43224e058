package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Report summarises one build.
type Report struct {
	BuildID  string       `toml:"build_id"`
	Started  time.Time    `toml:"started"`
	Duration string       `toml:"duration"`
	Files    []FileReport `toml:"files"`
}

// FileReport is the outcome for one source file.
type FileReport struct {
	Name         string `toml:"name"`
	Class        string `toml:"class,omitempty"`
	Output       string `toml:"output,omitempty"`
	Instructions int    `toml:"instructions"`
	Functions    int    `toml:"functions"`
	Error        string `toml:"error,omitempty"`
}

// Failed returns the number of files that did not compile.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

func EncodeReport(r *Report) ([]byte, error) {
	data, err := toml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
