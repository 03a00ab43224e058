// Package driver compiles a workspace of Jack classes in parallel and links
// the results for the emulator.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gojack/pkg/compiler"
	"gojack/pkg/config"
	"gojack/pkg/vfs"
	"gojack/pkg/vm"
	"gojack/pkg/vmemu"
)

var (
	ErrNoSources         = errors.New("no .jack files to compile")
	ErrClassNameMismatch = errors.New("class name does not match file name")
)

// skipped marks files not compiled because the build was cancelled.
const skipped = "skipped"

// Driver runs builds with one configuration.
type Driver struct {
	Config config.Config
	Log    *log.Logger
}

func New(cfg config.Config, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Driver{Config: cfg, Log: logger}
}

func (d *Driver) logf(format string, args ...any) {
	if d.Log != nil {
		d.Log.Printf(format, args...)
	}
}

// Build compiles every .jack file of ws and stores Class.vm next to it.
// Each file is compiled independently on its own goroutine. Without
// KeepGoing the first failure cancels the files not yet started; with it
// all failures are joined.
func (d *Driver) Build(ctx context.Context, ws *vfs.Workspace) (*config.Report, error) {
	names := ws.Glob(".jack")
	if len(names) == 0 {
		return nil, ErrNoSources
	}

	report := &config.Report{
		BuildID: uuid.NewString(),
		Started: time.Now(),
		Files:   make([]config.FileReport, len(names)),
	}
	d.logf("build %s: %d files (%d bytes), %d workers", report.BuildID, len(names), ws.Used(), d.Config.Workers())

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Config.Workers())

	for i, name := range names {
		i, name := i, name
		report.Files[i] = config.FileReport{Name: name, Error: skipped}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, err := d.compileFile(ws, name)
			report.Files[i] = fr
			if err == nil {
				d.logf("%s -> %s (%d instructions)", name, fr.Output, fr.Instructions)
				return nil
			}
			err = fmt.Errorf("%s: %w", name, err)
			d.logf("%v", err)
			if !d.Config.KeepGoing {
				return err
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}

	buildErr := g.Wait()
	if buildErr == nil {
		buildErr = errors.Join(errs...)
	}
	report.Duration = time.Since(report.Started).Round(time.Millisecond).String()

	if d.Config.Report {
		data, err := config.EncodeReport(report)
		if err != nil {
			return report, errors.Join(buildErr, err)
		}
		if err := ws.Write(vfs.ReportName, data); err != nil {
			return report, errors.Join(buildErr, err)
		}
	}
	return report, buildErr
}

func (d *Driver) compileFile(ws *vfs.Workspace, name string) (config.FileReport, error) {
	fr := config.FileReport{Name: name}
	stem := strings.TrimSuffix(path.Base(name), ".jack")
	fail := func(err error) (config.FileReport, error) {
		// Output of an earlier build must not outlive a failed compile.
		if derr := ws.Delete(stem + ".vm"); derr != nil && !errors.Is(derr, vfs.ErrFileNotFound) {
			err = errors.Join(err, derr)
		}
		fr.Error = err.Error()
		return fr, err
	}

	src, err := ws.Read(name)
	if err != nil {
		return fail(err)
	}
	out, err := compiler.CompileClass(string(src), compiler.Options{
		AllowRedeclaration: d.Config.AllowRedeclaration,
	})
	if err != nil {
		return fail(err)
	}
	fr.Class = out.ClassName
	if stem != out.ClassName {
		return fail(fmt.Errorf("%w: class %s in %s", ErrClassNameMismatch, out.ClassName, name))
	}

	text := out.String()
	if _, err := vm.Parse(text); err != nil {
		return fail(fmt.Errorf("generated code rejected: %w", err))
	}
	fr.Output = out.ClassName + ".vm"
	if err := ws.Write(fr.Output, []byte(text)); err != nil {
		return fail(err)
	}
	fr.Instructions = len(out.Lines)
	fr.Functions = out.Functions
	return fr, nil
}

// Link parses every .vm file of ws and links them into one program.
func (d *Driver) Link(ws *vfs.Workspace) (*vm.Program, error) {
	var progs []*vm.Program
	for _, name := range ws.Glob(".vm") {
		src, err := ws.Read(name)
		if err != nil {
			return nil, err
		}
		p, err := vm.Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		progs = append(progs, p)
	}
	return vm.Link(progs...)
}

// Run links ws and calls entry on a fresh emulator writing to out.
func (d *Driver) Run(ws *vfs.Workspace, entry string, out io.Writer) (int16, error) {
	prog, err := d.Link(ws)
	if err != nil {
		return 0, err
	}
	m, err := vmemu.NewMachine(prog)
	if err != nil {
		return 0, err
	}
	m.Output = out
	d.logf("run %s (%d instructions)", entry, len(prog.Instructions))
	return m.Call(entry)
}
