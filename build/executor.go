// Package build runs whole-project Loom builds: it parses and compiles
// source files on worker partitions, reuses cached modules whose inputs
// are unchanged, checks cross-file symbol uniqueness and writes one
// multi-module artifact.
//
// A build proceeds in stages separated by barriers:
//
//  1. scan: stat every file and read its imports, from the imports cache
//     or by scanning the source tokens
//  2. freshness: decide which module caches are newer than the file, its
//     transitive imports and the compiler binary
//  3. load: parse stale files and load fresh modules from cache
//  4. analyze: run every analyzer phase across all files
//  5. compile: compile fresh files and refresh their caches
//  6. merge: check that no two files declare the same exported symbol
//  7. write the artifact
//
// Stages 1, 3 and 5 run on disjoint partitions of the file list, one
// goroutine per partition; each worker only touches its own files.
package build

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/loom/analyzer"
	"github.com/chazu/loom/diag"
	"github.com/chazu/loom/pkg/bytecode"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

var log = commonlog.GetLogger("loom.build")

// Stats counts what a build did per file.
type Stats struct {
	Files       int // source files in the build
	ImportScans int // import lists read from source rather than cache
	Parsed      int // files parsed
	Cached      int // modules loaded from the module cache
	Compiled    int // modules compiled
}

// Result is the outcome of a build. Artifact is empty when the build
// produced diagnostics.
type Result struct {
	Artifact    string
	Modules     []string // module names in artifact order
	Diagnostics diag.List
	Stats       Stats
}

// Executor runs builds for one configuration.
type Executor struct {
	conf Config
	reg  *types.Registry
}

// NewExecutor creates an executor.
func NewExecutor(conf Config) *Executor {
	reg := conf.Registry
	if reg == nil {
		reg = types.NewStdRegistry()
	}
	return &Executor{conf: conf, reg: reg}
}

// fileState is everything known about one source file during a build.
// Only the worker owning the file's partition writes to it while a stage
// runs.
type fileState struct {
	path  string // as configured, cleaned
	abs   string
	name  string // module name
	cache cachePaths

	mtime   time.Time
	src     string   // preprocessed source, when read
	imports []string // import paths as written
	scanned bool     // imports came from the source
	deps    []string // absolute paths of imported project files

	fresh       bool // module cache is usable
	tree        *syntax.File
	cachedBytes []byte
	cached      *bytecode.CompiledModule
	unit        analyzer.Unit
	result      *analyzer.Result
	payload     []byte
	compiled    bool

	diags diag.List
}

// Build runs one build. Problems in the sources come back as diagnostics
// in the result; the error is for failures of the build itself, such as
// an unwritable output.
func (e *Executor) Build() (*Result, error) {
	if err := e.conf.validate(); err != nil {
		return nil, err
	}
	id := uuid.New()
	start := time.Now()

	files, err := e.files()
	if err != nil {
		return nil, err
	}
	if e.conf.CacheDir != "" {
		if err := os.MkdirAll(e.conf.CacheDir, 0o755); err != nil {
			return nil, err
		}
	}
	res, err := newResolver(e.reg, e.conf.Include, files)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		f.name = res.names[f.abs]
	}
	workers := e.conf.workers(len(files))
	log.Infof("build %s: %d files on %d workers", id, len(files), workers)

	if err := e.stage("scan", files, workers, e.scan); err != nil {
		return nil, err
	}
	e.freshness(files, res)
	if err := e.stage("load", files, workers, e.load); err != nil {
		return nil, err
	}

	result := &Result{Stats: stats(files)}
	if e.collect(files, result) {
		e.analyze(files, res)
		if e.collect(files, result) {
			if err := e.stage("compile", files, workers, e.compile); err != nil {
				return nil, err
			}
			if e.collect(files, result) {
				checkCollisions(files, result)
			}
		}
	}
	result.Stats = stats(files)

	if result.Diagnostics.HasErrors() {
		result.Diagnostics.Sort()
		log.Errorf("build %s: %d diagnostics", id, result.Diagnostics.Len())
		if e.conf.ErrorFile != "" {
			if err := diag.WriteFile(e.conf.ErrorFile, result.Diagnostics); err != nil {
				return result, err
			}
		}
		return result, nil
	}

	ordered := e.order(files)
	for _, f := range ordered {
		result.Modules = append(result.Modules, f.name)
	}
	if e.conf.Output != "" {
		size, err := e.writeArtifact(ordered)
		if err != nil {
			return result, err
		}
		result.Artifact = e.conf.Output
		log.Infof("build %s: wrote %s (%s)", id, e.conf.Output, humanize.Bytes(uint64(size)))
	}
	log.Infof("build %s: %d parsed, %d cached, %d compiled in %s",
		id, result.Stats.Parsed, result.Stats.Cached, result.Stats.Compiled, time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (e *Executor) files() ([]*fileState, error) {
	files := make([]*fileState, 0, len(e.conf.Files))
	for _, p := range e.conf.Files {
		path := filepath.Clean(p)
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		files = append(files, &fileState{
			path:  path,
			abs:   abs,
			cache: newCachePaths(e.conf.CacheDir, abs),
		})
	}
	return files, nil
}

// stage runs fn over every file, one goroutine per partition, and waits
// for all of them. A panic in fn becomes a build error for that file.
func (e *Executor) stage(name string, files []*fileState, workers int, fn func(*fileState) error) error {
	parts := partition(len(files), workers)
	log.Debugf("stage %s: %d partitions", name, len(parts))
	var g errgroup.Group
	for _, p := range parts {
		part := files[p[0]:p[1]]
		g.Go(func() error {
			for _, f := range part {
				if err := guard(f, fn); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func guard(f *fileState, fn func(*fileState) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s: panic: %v", f.path, r)
			f.diags.Add(diag.FromPanic(f.path, r))
		}
	}()
	return fn(f)
}

// partition splits n items into at most workers contiguous ranges.
func partition(n, workers int) [][2]int {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	out := make([][2]int, 0, workers)
	size, rest := n/workers, n%workers
	start := 0
	for i := 0; i < workers; i++ {
		end := start + size
		if i < rest {
			end++
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

// ---------------------------------------------------------------------------
// Stage 1: imports
// ---------------------------------------------------------------------------

func (e *Executor) scan(f *fileState) error {
	info, err := os.Stat(f.path)
	if err != nil {
		f.diags.Add(diag.FromError(f.path, err))
		return nil
	}
	f.mtime = info.ModTime()

	if f.cache.enabled() {
		imports, err := readImportsCache(f.cache.imports, f.mtime)
		if err == nil {
			f.imports = imports
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrStaleCache) {
			log.Warningf("%s: imports cache: %v", f.path, err)
		}
	}

	if !e.read(f) {
		return nil
	}
	f.imports = scanImports(f.src)
	f.scanned = true
	if f.cache.enabled() {
		if err := writeImportsCache(f.cache.imports, f.imports); err != nil {
			log.Warningf("%s: %v", f.path, err)
		}
	}
	return nil
}

// read loads and preprocesses f's source once.
func (e *Executor) read(f *fileState) bool {
	if f.src != "" {
		return true
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.diags.Add(diag.FromError(f.path, err))
		return false
	}
	src, err := syntax.Preprocess(string(data), e.conf.Defines)
	if err != nil {
		f.diags.Addf(diag.SyntaxError, f.path, diag.Range{}, "%v", err)
		return false
	}
	f.src = src
	return true
}

// ---------------------------------------------------------------------------
// Stage 2: freshness
// ---------------------------------------------------------------------------

// freshness marks the files whose module cache is newer than the source,
// every transitively imported source and the compiler binary.
func (e *Executor) freshness(files []*fileState, res *resolver) {
	byAbs := make(map[string]*fileState, len(files))
	for _, f := range files {
		byAbs[f.abs] = f
	}
	resolvable := make(map[*fileState]bool, len(files))
	for _, f := range files {
		deps, ok := res.dependencies(f)
		f.deps = deps
		resolvable[f] = ok
	}

	binary := e.binaryTime()
	for _, f := range files {
		if !f.cache.enabled() || f.diags.HasErrors() || !resolvable[f] {
			continue
		}
		cacheTime := moduleCacheTime(f.cache.module)
		if cacheTime.IsZero() || f.mtime.After(cacheTime) || binary.After(cacheTime) {
			continue
		}
		f.fresh = true
		for _, dep := range closure(f, byAbs) {
			if !resolvable[dep] || dep.mtime.IsZero() || dep.mtime.After(cacheTime) {
				log.Debugf("%s: stale through %s", f.path, dep.path)
				f.fresh = false
				break
			}
		}
	}
}

// closure returns every project file f imports, directly or not.
func closure(f *fileState, byAbs map[string]*fileState) []*fileState {
	seen := map[*fileState]bool{f: true}
	var out []*fileState
	stack := []*fileState{f}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range cur.deps {
			dep, ok := byAbs[d]
			if !ok || seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			stack = append(stack, dep)
		}
	}
	return out
}

func (e *Executor) binaryTime() time.Time {
	path := e.conf.CompilerPath
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Warningf("cannot locate compiler binary: %v", err)
			return time.Now()
		}
		path = exe
	}
	info, err := os.Stat(path)
	if err != nil {
		log.Warningf("cannot stat compiler binary: %v", err)
		return time.Now()
	}
	return info.ModTime()
}

// ---------------------------------------------------------------------------
// Stage 3: parse or load
// ---------------------------------------------------------------------------

func (e *Executor) load(f *fileState) error {
	if f.diags.HasErrors() {
		return nil
	}
	if f.fresh {
		if e.loadCached(f) {
			log.Debugf("%s: cache hit", f.path)
			return nil
		}
		f.fresh = false
	}
	log.Debugf("%s: cache miss", f.path)
	if !e.read(f) {
		return nil
	}
	tree, errs := syntax.Parse(f.path, f.src)
	f.tree = tree
	f.diags = append(f.diags, errs...)
	return nil
}

func (e *Executor) loadCached(f *fileState) bool {
	data, err := os.ReadFile(f.cache.module)
	if err != nil {
		log.Warningf("%s: %v", f.path, err)
		return false
	}
	m, err := bytecode.UnmarshalModule(data)
	if err != nil {
		log.Warningf("%s: %v", f.path, err)
		return false
	}
	if m.Name != f.name {
		return false
	}
	f.cachedBytes = data
	f.cached = m
	return true
}

// ---------------------------------------------------------------------------
// Stage 4: analysis
// ---------------------------------------------------------------------------

// analyze runs the analyzer phases over the whole project. Cached modules
// take part in symbol lookup only.
func (e *Executor) analyze(files []*fileState, res *resolver) {
	seen := make(map[string]*fileState, len(files))
	units := make([]analyzer.Unit, 0, len(files))
	for _, f := range files {
		if other, dup := seen[f.name]; dup {
			f.diags.Addf(diag.BuildError, f.path, diag.Range{},
				"module '%s' is also defined by %s", f.name, other.path)
			continue
		}
		seen[f.name] = f
		mod := types.NewModule(e.reg, f.name, f.path)
		if f.fresh {
			f.unit = analyzer.NewCached(f.path, mod, f.cached.Namespace, f.cached.Imports)
		} else {
			f.unit = analyzer.New(f.path, f.tree, mod, e.reg)
		}
		units = append(units, f.unit)
	}
	log.Debugf("analyzing %d units", len(units))
	analyzer.RunPhases(e.reg, units, res)
	for _, f := range files {
		if f.unit == nil {
			continue
		}
		f.result = f.unit.Result()
		if f.result != nil {
			f.diags = append(f.diags, f.result.Diagnostics...)
		}
	}
}

// ---------------------------------------------------------------------------
// Stage 5: compile
// ---------------------------------------------------------------------------

func (e *Executor) compile(f *fileState) error {
	if f.fresh {
		f.payload = f.cachedBytes
		return nil
	}
	if e.conf.PostProcess != nil {
		if err := e.conf.PostProcess(f.result); err != nil {
			f.diags.Add(diag.FromError(f.path, err))
			return nil
		}
	}
	m := bytecode.Compile(f.result.Module, f.result.AST)
	data, err := m.Marshal()
	if err != nil {
		f.diags.Add(diag.FromError(f.path, err))
		return nil
	}
	f.payload = data
	f.compiled = true

	if f.cache.enabled() {
		if err := writeAtomic(f.cache.module, data); err != nil {
			if e.conf.Encoding == EncodingRef {
				return err
			}
			log.Warningf("%s: %v", f.path, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Stage 6: symbol uniqueness
// ---------------------------------------------------------------------------

// checkCollisions merges every module's namespace into one project
// namespace. Each clash of two exported symbols is reported against the
// file that declared the second one.
func checkCollisions(files []*fileState, result *Result) {
	byModule := make(map[string]string, len(files))
	for _, f := range files {
		byModule[f.name] = f.path
	}
	project := types.NewNamespace("", "", "")
	for _, f := range files {
		for _, c := range types.MergeNamespaces(project, f.result.Module.NS) {
			first := byModule[types.OwnerModule(c.First)]
			result.Diagnostics.Addf(diag.SymbolCollision, f.path, diag.Range{},
				"symbol '%s' is already declared in %s", c.Name, first)
		}
	}
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// collect appends the files' diagnostics to the result and reports
// whether the build may go on.
func (e *Executor) collect(files []*fileState, result *Result) bool {
	for _, f := range files {
		result.Diagnostics = append(result.Diagnostics, f.diags...)
		f.diags = nil
	}
	return !result.Diagnostics.HasErrors()
}

func stats(files []*fileState) Stats {
	s := Stats{Files: len(files)}
	for _, f := range files {
		if f.scanned {
			s.ImportScans++
		}
		if f.tree != nil {
			s.Parsed++
		}
		if f.cached != nil && f.fresh {
			s.Cached++
		}
		if f.compiled {
			s.Compiled++
		}
	}
	return s
}

func (e *Executor) order(files []*fileState) []*fileState {
	ordered := append([]*fileState(nil), files...)
	if e.conf.Deterministic {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].path < ordered[j].path
		})
	}
	return ordered
}

func (e *Executor) writeArtifact(files []*fileState) (int, error) {
	entries := make([]artifactEntry, len(files))
	for i, f := range files {
		entries[i] = artifactEntry{name: f.name, payload: f.payload, ref: f.cache.module}
	}
	data, err := encodeArtifact(entries, e.conf.Encoding)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(e.conf.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := writeAtomic(e.conf.Output, data); err != nil {
		return 0, err
	}
	return len(data), nil
}
