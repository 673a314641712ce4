// loomc - the Loom project compiler
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/loom/build"
	"github.com/chazu/loom/diag"
	"github.com/chazu/loom/manifest"
	"github.com/chazu/loom/pkg/bytecode"
)

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error {
	*v++
	return nil
}

// list collects a repeatable string flag.
type list []string

func (l *list) String() string { return strings.Join(*l, ",") }
func (l *list) Set(s string) error {
	*l = append(*l, s)
	return nil
}

func main() {
	var verbose verbosity
	var include, defines list
	flag.Var(&verbose, "v", "Verbose output (repeat for more)")
	flag.Var(&include, "I", "Import search directory (repeatable)")
	flag.Var(&defines, "D", "Preprocessor define (repeatable)")
	projectDir := flag.String("C", ".", "Directory to search for loom.toml")
	output := flag.String("o", "", "Artifact output path")
	cacheDir := flag.String("cache", "", "Cache directory")
	workers := flag.Int("j", 0, "Parse and compile workers (0 = one per CPU)")
	deterministic := flag.Bool("deterministic", false, "Order artifact modules by file path")
	encoding := flag.String("encoding", "", "Module encoding: raw, lz4 or ref")
	errorFile := flag.String("error-file", "", "Write diagnostics as JSON lines ('-' for stderr)")
	disasm := flag.Bool("disasm", false, "Disassemble the given artifacts instead of building")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loomc [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Builds a Loom project into a single artifact. Settings come from the\n")
		fmt.Fprintf(os.Stderr, "nearest loom.toml; flags and file arguments override them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loomc                          # Build the project in this directory\n")
		fmt.Fprintf(os.Stderr, "  loomc -o game.lmod -I src src/main.loom\n")
		fmt.Fprintf(os.Stderr, "  loomc -encoding lz4 -D DEBUG -v\n")
		fmt.Fprintf(os.Stderr, "  loomc -disasm out/game.lmod    # Print the compiled bytecode\n")
	}
	flag.Parse()

	commonlog.Configure(int(verbose), nil)

	if *disasm {
		if err := disassemble(os.Stdout, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	conf, err := loadConfig(*projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the manifest.
	if args := flag.Args(); len(args) > 0 {
		conf.Files = args
	}
	if len(include) > 0 {
		conf.Include = include
	}
	if *output != "" {
		conf.Output = *output
	}
	if *cacheDir != "" {
		conf.CacheDir = *cacheDir
	}
	if *workers > 0 {
		conf.Workers = *workers
	}
	if *deterministic {
		conf.Deterministic = true
	}
	if *encoding != "" {
		if conf.Encoding, err = build.ParseEncoding(*encoding); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}
	if *errorFile != "" {
		conf.ErrorFile = *errorFile
	}
	if len(defines) > 0 {
		if conf.Defines == nil {
			conf.Defines = make(map[string]bool, len(defines))
		}
		for _, d := range defines {
			conf.Defines[d] = true
		}
	}

	if len(conf.Files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no source files (no loom.toml found and none given)\n")
		flag.Usage()
		os.Exit(2)
	}

	result, err := build.NewExecutor(*conf).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if result.Diagnostics.HasErrors() {
		printDiagnostics(os.Stderr, result.Diagnostics)
		os.Exit(1)
	}
	if verbose > 0 {
		s := result.Stats
		fmt.Printf("Built %d modules (%d compiled, %d from cache)\n", len(result.Modules), s.Compiled, s.Cached)
		if result.Artifact != "" {
			fmt.Printf("Wrote %s\n", result.Artifact)
		}
	}
}

// loadConfig builds the configuration from the nearest loom.toml, or an
// empty one when there is none.
func loadConfig(dir string) (*build.Config, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &build.Config{}, nil
	}
	return m.BuildConfig()
}

// printDiagnostics writes one line per diagnostic, colouring the kind when
// w is a terminal.
func printDiagnostics(w io.Writer, list diag.List) {
	out := termenv.NewOutput(w)
	for _, d := range list {
		var loc string
		if d.File != "" {
			loc = d.File
			if !d.Range.IsEmpty() {
				loc += fmt.Sprintf(":%d:%d", d.Range.Start.Line, d.Range.Start.Column)
			}
			loc += ": "
		}
		kind := out.String(d.Kind.String()).Bold()
		switch d.Kind {
		case diag.SymbolCollision:
			kind = kind.Foreground(out.Color("3"))
		default:
			kind = kind.Foreground(out.Color("1"))
		}
		fmt.Fprintf(w, "%s%s: %s\n", loc, kind, d.Message)
	}
	fmt.Fprintf(w, "%d error(s)\n", len(list))
}

func disassemble(w io.Writer, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("-disasm needs an artifact path")
	}
	for _, path := range paths {
		a, err := build.ReadArtifact(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, entry := range a.Modules {
			m, err := entry.Module()
			if err != nil {
				return fmt.Errorf("%s: module %s: %w", path, entry.Name, err)
			}
			fmt.Fprintf(w, "== %s (%s) ==\n", entry.Name, entry.Encoding)
			fmt.Fprint(w, bytecode.Disassemble(m))
		}
	}
	return nil
}
