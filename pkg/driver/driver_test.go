package driver

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"

	"gojack/pkg/compiler"
	"gojack/pkg/config"
	"gojack/pkg/vfs"
)

const mainSrc = `
class Main {
	function void main() {
		var Counter c;
		let c = Counter.new(40);
		do c.bump();
		do c.bump();
		do Output.printInt(c.get());
		return;
	}
}`

const counterSrc = `
class Counter {
	field int n;
	constructor Counter new(int start) { let n = start; return this; }
	method void bump() { let n = n + 1; return; }
	method int get() { return n; }
}`

func workspace(t *testing.T, files map[string]string) *vfs.Workspace {
	t.Helper()
	ws := vfs.NewWorkspace()
	for name, src := range files {
		if err := ws.Write(name, []byte(src)); err != nil {
			t.Fatalf("Write(%s) failed: %v", name, err)
		}
	}
	return ws
}

func TestBuild(t *testing.T) {
	ws := workspace(t, map[string]string{"Main.jack": mainSrc, "Counter.jack": counterSrc})
	var logBuf bytes.Buffer
	d := New(config.Config{Jobs: 2, Report: true}, log.New(&logBuf, "", 0))

	report, err := d.Build(context.Background(), ws)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := uuid.Parse(report.BuildID); err != nil {
		t.Errorf("BuildID %q is not a UUID: %v", report.BuildID, err)
	}
	if len(report.Files) != 2 || report.Failed() != 0 {
		t.Fatalf("unexpected report: %+v", report.Files)
	}
	// Files are reported in name order.
	if report.Files[0].Name != "Counter.jack" || report.Files[0].Functions != 3 {
		t.Errorf("Counter entry: %+v", report.Files[0])
	}

	for _, name := range []string{"Main.vm", "Counter.vm", vfs.ReportName} {
		if _, err := ws.Read(name); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	want, _ := compiler.Compile(counterSrc)
	got, _ := ws.Read("Counter.vm")
	if string(got) != want {
		t.Errorf("Counter.vm differs from a direct compile:\n%s\n---\n%s", got, want)
	}
	if !strings.Contains(logBuf.String(), "Main.jack -> Main.vm") {
		t.Errorf("missing progress log:\n%s", logBuf.String())
	}

	data, _ := ws.Read(vfs.ReportName)
	decoded, err := config.DecodeReport(data)
	if err != nil {
		t.Fatalf("report does not decode: %v", err)
	}
	if decoded.BuildID != report.BuildID {
		t.Errorf("stored report has build id %q, want %q", decoded.BuildID, report.BuildID)
	}
}

func TestBuild_NoReport(t *testing.T) {
	ws := workspace(t, map[string]string{"Counter.jack": counterSrc})
	if _, err := New(config.Config{}, nil).Build(context.Background(), ws); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := ws.Read(vfs.ReportName); !errors.Is(err, vfs.ErrFileNotFound) {
		t.Errorf("report written although disabled: %v", err)
	}
}

func TestBuild_NoSources(t *testing.T) {
	_, err := New(config.Default(), nil).Build(context.Background(), vfs.NewWorkspace())
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
}

func TestBuild_FailFast(t *testing.T) {
	ws := workspace(t, map[string]string{
		"Bad.jack":     `class Bad { function void f() { let = 1; } }`,
		"Counter.jack": counterSrc,
	})
	d := New(config.Config{Jobs: 1}, nil)
	report, err := d.Build(context.Background(), ws)

	var synErr *compiler.SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Bad.jack: ") {
		t.Errorf("error not prefixed with file name: %v", err)
	}
	if report.Files[0].Error == "" {
		t.Errorf("Bad.jack should be reported as failed")
	}
	if _, err := ws.Read("Bad.vm"); err == nil {
		t.Errorf("failed file produced output")
	}
}

func TestBuild_KeepGoing(t *testing.T) {
	ws := workspace(t, map[string]string{
		"Bad.jack":     `class Bad { function void f() { let x = 1; return; } }`,
		"Worse.jack":   `class Worse { function void f() { return 99999; } }`,
		"Counter.jack": counterSrc,
	})
	d := New(config.Config{Jobs: 1, KeepGoing: true}, nil)
	report, err := d.Build(context.Background(), ws)
	if err == nil {
		t.Fatalf("expected joined errors")
	}
	if !errors.Is(err, compiler.ErrUndeclaredVariable) {
		t.Errorf("missing scope error in %v", err)
	}
	var lexErr *compiler.LexError
	if !errors.As(err, &lexErr) {
		t.Errorf("missing lex error in %v", err)
	}
	if report.Failed() != 2 {
		t.Errorf("Failed: expected 2, got %d", report.Failed())
	}
	if _, err := ws.Read("Counter.vm"); err != nil {
		t.Errorf("good file not compiled: %v", err)
	}
}

func TestBuild_ClassNameMismatch(t *testing.T) {
	ws := workspace(t, map[string]string{"Main.jack": counterSrc})
	_, err := New(config.Config{}, nil).Build(context.Background(), ws)
	if !errors.Is(err, ErrClassNameMismatch) {
		t.Errorf("expected ErrClassNameMismatch, got %v", err)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ws := workspace(t, map[string]string{"Counter.jack": counterSrc})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := New(config.Config{}, nil).Build(ctx, ws)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if report.Files[0].Error != skipped {
		t.Errorf("expected skipped entry, got %+v", report.Files[0])
	}
}

func TestBuild_AllowRedeclaration(t *testing.T) {
	src := `class Dup { function int f() { var int a; var int a; let a = 3; return a; } }`
	ws := workspace(t, map[string]string{"Dup.jack": src})
	if _, err := New(config.Config{}, nil).Build(context.Background(), ws); !errors.Is(err, compiler.ErrDuplicateDeclaration) {
		t.Fatalf("expected ErrDuplicateDeclaration, got %v", err)
	}
	if _, err := New(config.Config{AllowRedeclaration: true}, nil).Build(context.Background(), ws); err != nil {
		t.Fatalf("Build with redeclaration failed: %v", err)
	}
}

func TestRun(t *testing.T) {
	ws := workspace(t, map[string]string{"Main.jack": mainSrc, "Counter.jack": counterSrc})
	d := New(config.Config{}, nil)
	if _, err := d.Build(context.Background(), ws); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var out bytes.Buffer
	if _, err := d.Run(ws, "Main.main", &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "42" {
		t.Errorf("expected output 42, got %q", out.String())
	}
}

func TestBuild_RemovesStaleOutput(t *testing.T) {
	ws := workspace(t, map[string]string{
		"Bad.jack": `class Bad { function void f() { let = 1; } }`,
		"Bad.vm":   "function Bad.f 0\npush constant 0\nreturn\n",
	})
	if _, err := New(config.Config{}, nil).Build(context.Background(), ws); err == nil {
		t.Fatalf("expected build error")
	}
	if _, err := ws.Read("Bad.vm"); !errors.Is(err, vfs.ErrFileNotFound) {
		t.Errorf("stale Bad.vm kept after failed compile: %v", err)
	}
}
