package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if !cfg.Report {
		t.Errorf("report should default to true")
	}
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
out_dir = "build"
jobs = 3
allow_redeclaration = true
keep_going = true
report = false
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Config{OutDir: "build", Jobs: 3, AllowRedeclaration: true, KeepGoing: true, Report: false}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
	if cfg.Workers() != 3 {
		t.Errorf("Workers: expected 3, got %d", cfg.Workers())
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	dir := writeConfig(t, `jobs = 2`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Report || cfg.Jobs != 2 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("UnknownKey", func(t *testing.T) {
		_, err := Load(writeConfig(t, `threads = 4`))
		var strict *toml.StrictMissingError
		if !errors.As(err, &strict) {
			t.Errorf("expected StrictMissingError, got %v", err)
		}
	})
	t.Run("Syntax", func(t *testing.T) {
		if _, err := Load(writeConfig(t, `jobs = `)); err == nil {
			t.Errorf("expected parse error")
		}
	})
	t.Run("NegativeJobs", func(t *testing.T) {
		_, err := Load(writeConfig(t, `jobs = -1`))
		if !errors.Is(err, ErrInvalidJobs) {
			t.Errorf("expected ErrInvalidJobs, got %v", err)
		}
	})
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{OutDir: "out", Jobs: 8, KeepGoing: true, Report: true}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != cfg {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
}

func TestWorkersDefault(t *testing.T) {
	if (Config{}).Workers() < 1 {
		t.Errorf("Workers must be at least 1")
	}
}

func TestReport(t *testing.T) {
	r := &Report{
		BuildID:  "5f0c6a38-9a43-4b0e-8c4f-2d3b0f1f7c11",
		Started:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration: "12ms",
		Files: []FileReport{
			{Name: "Main.jack", Class: "Main", Output: "Main.vm", Instructions: 12, Functions: 1},
			{Name: "Bad.jack", Error: "syntax error on line 3"},
		},
	}
	data, err := EncodeReport(r)
	if err != nil {
		t.Fatalf("EncodeReport failed: %v", err)
	}
	got, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport failed: %v\n%s", err, data)
	}
	if got.BuildID != r.BuildID || !got.Started.Equal(r.Started) || len(got.Files) != 2 {
		t.Errorf("decoded report differs: %+v", got)
	}
	if got.Files[1].Error != "syntax error on line 3" || got.Files[0].Instructions != 12 {
		t.Errorf("file entries differ: %+v", got.Files)
	}
	if got.Failed() != 1 {
		t.Errorf("Failed: expected 1, got %d", got.Failed())
	}
}
