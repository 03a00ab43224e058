// Command jackc compiles Jack classes to stack-VM code.
//
//	jackc [-out dir] [-j n] [-keep-going] [-allow-redeclaration] [-run] [-entry Main.main] [-v] <file.jack|dir>
//	jackc -init [flags] <dir>
//
// Settings are read from jackc.toml in the source directory; flags given on
// the command line take precedence. -init writes that file from the
// defaults and the given flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/samber/do"

	"gojack/pkg/config"
	"gojack/pkg/driver"
	"gojack/pkg/utils"
	"gojack/pkg/vfs"
)

// options are the parsed command line.
type options struct {
	input       string
	outDir      string
	jobs        int
	keepGoing   bool
	allowRedecl bool
	noReport    bool
	run         bool
	entry       string
	verbose     bool
	init        bool
	set         map[string]bool // flags given explicitly
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("jackc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.outDir, "out", "", "output directory for .vm files (default: next to the sources)")
	fs.IntVar(&opts.jobs, "j", 0, "parallel compilations (0 = GOMAXPROCS)")
	fs.BoolVar(&opts.keepGoing, "keep-going", false, "compile remaining files after a failure")
	fs.BoolVar(&opts.allowRedecl, "allow-redeclaration", false, "let a repeated declaration overwrite the earlier one")
	fs.BoolVar(&opts.noReport, "no-report", false, "do not write "+vfs.ReportName)
	fs.BoolVar(&opts.run, "run", false, "run the compiled program on the emulator")
	fs.StringVar(&opts.entry, "entry", "Main.main", "function called by -run")
	fs.BoolVar(&opts.verbose, "v", false, "log per-file progress")
	fs.BoolVar(&opts.init, "init", false, "write "+config.FileName+" into the source directory and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: jackc [flags] <file.jack|dir>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one input path")
	}
	opts.input = fs.Arg(0)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// apply overlays explicitly given flags on cfg.
func (o *options) apply(cfg config.Config) config.Config {
	if o.set["out"] {
		// Relative to the working directory, unlike out_dir in jackc.toml.
		cfg.OutDir = o.outDir
		if abs, err := filepath.Abs(o.outDir); err == nil {
			cfg.OutDir = abs
		}
	}
	if o.set["j"] {
		cfg.Jobs = o.jobs
	}
	if o.set["keep-going"] {
		cfg.KeepGoing = o.keepGoing
	}
	if o.set["allow-redeclaration"] {
		cfg.AllowRedeclaration = o.allowRedecl
	}
	if o.set["no-report"] {
		cfg.Report = !o.noReport
	}
	return cfg
}

// source is the resolved input location.
type source struct {
	path  string
	dir   string
	isDir bool
}

func newInjector(opts *options, stderr io.Writer) *do.Injector {
	i := do.New()

	do.ProvideValue(i, opts)
	do.Provide(i, func(i *do.Injector) (*log.Logger, error) {
		return log.New(stderr, "jackc: ", 0), nil
	})
	do.Provide(i, func(i *do.Injector) (*source, error) {
		o := do.MustInvoke[*options](i)
		full, dir, isDir, err := utils.GetPathInfo(o.input)
		if err != nil {
			return nil, err
		}
		return &source{path: full, dir: dir, isDir: isDir}, nil
	})
	do.Provide(i, func(i *do.Injector) (config.Config, error) {
		src, err := do.Invoke[*source](i)
		if err != nil {
			return config.Config{}, err
		}
		cfg, err := config.Load(src.dir)
		if err != nil {
			return cfg, err
		}
		cfg = do.MustInvoke[*options](i).apply(cfg)
		return cfg, cfg.Validate()
	})
	do.Provide(i, func(i *do.Injector) (*vfs.Workspace, error) {
		src, err := do.Invoke[*source](i)
		if err != nil {
			return nil, err
		}
		ws := vfs.NewWorkspace()
		if src.isDir {
			err = ws.LoadFrom(src.dir)
		} else {
			err = ws.LoadFile(src.path)
		}
		return ws, err
	})
	do.Provide(i, func(i *do.Injector) (*driver.Driver, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}
		var progress *log.Logger
		if do.MustInvoke[*options](i).verbose {
			progress = do.MustInvoke[*log.Logger](i)
		}
		return driver.New(cfg, progress), nil
	})
	return i
}

// run executes one jackc invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	i := newInjector(opts, stderr)
	defer i.Shutdown()
	logger := do.MustInvoke[*log.Logger](i)

	if opts.init {
		if err := writeConfig(i); err != nil {
			logger.Println(err)
			return 1
		}
		return 0
	}

	d, err := do.Invoke[*driver.Driver](i)
	if err != nil {
		logger.Println(err)
		return 1
	}
	ws, err := do.Invoke[*vfs.Workspace](i)
	if err != nil {
		logger.Println(err)
		return 1
	}
	src := do.MustInvoke[*source](i)

	report, buildErr := d.Build(ctx, ws)
	if buildErr != nil {
		logger.Println(buildErr)
	}

	outDir := utils.ResolveDir(src.dir, d.Config.OutDir)
	if opts.verbose {
		for _, name := range ws.Dirty() {
			logger.Printf("sync %s", filepath.Join(outDir, name))
		}
	}
	if err := ws.PersistTo(outDir); err != nil {
		logger.Printf("failed to write outputs to %s: %v", outDir, err)
		return 1
	}
	if buildErr != nil {
		return 1
	}
	if report != nil {
		logger.Printf("compiled %d files -> %s", len(report.Files), outDir)
	}

	if opts.run {
		if _, err := d.Run(ws, opts.entry, stdout); err != nil {
			logger.Printf("run failed: %v", err)
			return 1
		}
	}
	return 0
}

// writeConfig creates jackc.toml in the source directory. An existing file
// is left alone.
func writeConfig(i *do.Injector) error {
	src, err := do.Invoke[*source](i)
	if err != nil {
		return err
	}
	if !src.isDir {
		return fmt.Errorf("-init needs a directory, got %s", src.path)
	}
	p := filepath.Join(src.dir, config.FileName)
	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("%s already exists", p)
	}
	opts := do.MustInvoke[*options](i)
	cfg := opts.apply(config.Default())
	if opts.set["out"] {
		// out_dir in the file is relative to the sources.
		cfg.OutDir = opts.outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(src.dir, cfg); err != nil {
		return err
	}
	do.MustInvoke[*log.Logger](i).Printf("wrote %s", p)
	return nil
}
