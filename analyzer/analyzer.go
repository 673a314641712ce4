// Package analyzer turns Loom parse trees into typed ASTs. Analysis runs
// in phases, and every phase completes for all files of a project before
// the next one starts, so later phases can see every file's declarations.
package analyzer

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/diag"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

var log = commonlog.GetLogger("loom.analyzer")

// Phase identifies one analysis step.
type Phase int

const (
	PhaseOutline Phase = iota
	PhaseLinkImports1
	PhaseLinkImports2
	PhaseParseTypes1
	PhaseParseTypes2
	PhaseParseFuncBodies
	PhaseFinalize
)

var phaseNames = [...]string{
	"outline", "link imports 1", "link imports 2",
	"parse types 1", "parse types 2", "parse func bodies", "finalize",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Result is the immutable outcome of analyzing one file.
type Result struct {
	File        string
	Module      *types.Module
	AST         *ast.Module // nil for cached modules
	Diagnostics diag.List
}

// ImportResolver maps an import path written in a file to the logical
// name of the module it refers to.
type ImportResolver interface {
	ResolveImport(fromFile, path string) (string, error)
}

// Unit is one file taking part in a project analysis: either a fresh
// Analyzer or an already compiled module loaded from cache.
type Unit interface {
	File() string
	Module() *types.Module
	Result() *Result
	runPhase(p Phase, proj *project)
	fail(d *diag.Diagnostic)
}

// project is the state shared by units during one RunPhases call.
type project struct {
	reg      *types.Registry
	resolver ImportResolver
	modules  map[string]*types.Module
}

// lookup finds a module by import path: native modules first, then
// project modules by resolved name.
func (p *project) lookup(fromFile, path string) (string, *types.Namespace, error) {
	if ns, ok := p.reg.LookupModule(path); ok {
		return path, ns, nil
	}
	if p.resolver == nil {
		return "", nil, fmt.Errorf("no import resolver")
	}
	name, err := p.resolver.ResolveImport(fromFile, path)
	if err != nil {
		return "", nil, err
	}
	m, ok := p.modules[name]
	if !ok {
		return "", nil, fmt.Errorf("module '%s' not found", name)
	}
	return name, m.NS, nil
}

// RunPhases analyzes units together. Each phase runs over every unit
// before the next phase starts. A unit that panics gets a build error and
// sits out the remaining phases; its siblings carry on.
func RunPhases(reg *types.Registry, units []Unit, resolver ImportResolver) {
	proj := &project{
		reg:      reg,
		resolver: resolver,
		modules:  make(map[string]*types.Module, len(units)),
	}
	for _, u := range units {
		proj.modules[u.Module().Name] = u.Module()
	}

	failed := make([]bool, len(units))
	for p := PhaseOutline; p <= PhaseFinalize; p++ {
		log.Debugf("phase %s: %d units", p, len(units))
		for i, u := range units {
			if failed[i] && p != PhaseFinalize {
				continue
			}
			if !runGuarded(u, p, proj) {
				failed[i] = true
			}
		}
	}
}

func runGuarded(u Unit, p Phase, proj *project) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s: panic during %s: %v", u.File(), p, r)
			u.fail(diag.FromPanic(u.File(), r))
			ok = false
		}
	}()
	u.runPhase(p, proj)
	return true
}

// Analyze runs every phase for a single unit. Imports can only refer to
// native modules.
func Analyze(reg *types.Registry, u Unit) *Result {
	RunPhases(reg, []Unit{u}, nil)
	return u.Result()
}

// ---------------------------------------------------------------------------
// cachedUnit: a module loaded from the compiled-module cache
// ---------------------------------------------------------------------------

type cachedUnit struct {
	file    string
	mod     *types.Module
	rec     *types.NamespaceRecord
	imports []string
	mt      *types.Materializer
	diags   diag.List
	result  *Result
}

// NewCached wraps a previously compiled module so it takes part in symbol
// lookup without being analyzed again. imports are module names.
func NewCached(file string, mod *types.Module, rec *types.NamespaceRecord, imports []string) Unit {
	return &cachedUnit{file: file, mod: mod, rec: rec, imports: imports}
}

func (c *cachedUnit) File() string             { return c.file }
func (c *cachedUnit) Module() *types.Module    { return c.mod }
func (c *cachedUnit) Result() *Result          { return c.result }
func (c *cachedUnit) fail(d *diag.Diagnostic) { c.diags.Add(d) }

func (c *cachedUnit) runPhase(p Phase, proj *project) {
	switch p {
	case PhaseOutline:
		mt, err := types.Declare(c.mod, c.rec)
		if err != nil {
			c.diags.Add(diag.New(diag.BuildError, c.file, diag.Range{}, "corrupt cached module: %v", err))
			return
		}
		c.mt = mt

	case PhaseLinkImports2:
		for _, name := range c.imports {
			if ns, ok := proj.reg.LookupModule(name); ok {
				c.mod.AddImport(name, ns)
				continue
			}
			m, ok := proj.modules[name]
			if !ok {
				c.diags.Add(diag.New(diag.BuildError, c.file, diag.Range{}, "cached module imports missing module '%s'", name))
				continue
			}
			c.mod.AddImport(name, m.NS)
		}

	case PhaseParseTypes1:
		if c.mt == nil {
			return
		}
		for _, err := range c.mt.Resolve() {
			c.diags.Add(diag.New(diag.BuildError, c.file, diag.Range{}, "cached module is out of date: %v", err))
		}

	case PhaseFinalize:
		c.result = &Result{File: c.file, Module: c.mod, Diagnostics: c.diags}
	}
}

// ---------------------------------------------------------------------------
// Analyzer: a fresh file
// ---------------------------------------------------------------------------

// Analyzer analyzes one parsed file.
type Analyzer struct {
	file   string
	tree   *syntax.File
	reg    *types.Registry
	mod    *types.Module
	diags  diag.List
	root   *ast.Module
	passes []*pass
	result *Result

	imports []*importPass

	// yieldChains are chains written as `yield call()`.
	yieldChains map[*ast.Chain]bool
	calls       map[*ast.Call]callInfo
}

// callInfo remembers where a call was written and whether its callee is
// a coroutine, for the final coroutine call check.
type callInfo struct {
	span syntax.Span
	name string
	coro bool
}

// New creates an analyzer for tree. mod must be freshly created for this
// file.
func New(file string, tree *syntax.File, mod *types.Module, reg *types.Registry) *Analyzer {
	return &Analyzer{
		file:        file,
		tree:        tree,
		reg:         reg,
		mod:         mod,
		root:        &ast.Module{Name: mod.Name},
		yieldChains: make(map[*ast.Chain]bool),
		calls:       make(map[*ast.Call]callInfo),
	}
}

func (a *Analyzer) File() string          { return a.file }
func (a *Analyzer) Module() *types.Module { return a.mod }
func (a *Analyzer) Result() *Result       { return a.result }

func (a *Analyzer) fail(d *diag.Diagnostic) { a.diags.Add(d) }

func (a *Analyzer) runPhase(p Phase, proj *project) {
	switch p {
	case PhaseOutline:
		a.outline()
	case PhaseLinkImports1:
		a.linkImports1(proj)
	case PhaseLinkImports2:
		a.linkImports2()
	case PhaseParseTypes1:
		a.parseTypes1()
	case PhaseParseTypes2:
		a.parseTypes2()
	case PhaseParseFuncBodies:
		a.parseFuncBodies()
	case PhaseFinalize:
		a.finalize()
	}
}

func (a *Analyzer) finalize() {
	a.passes = nil
	a.imports = nil
	a.yieldChains = nil
	a.calls = nil
	a.result = &Result{
		File:        a.file,
		Module:      a.mod,
		AST:         a.root,
		Diagnostics: a.diags,
	}
}

// errorf records a semantic error at node.
func (a *Analyzer) errorf(node syntax.Node, format string, args ...any) {
	var rng diag.Range
	if node != nil {
		rng = node.Span().Range()
	}
	a.diags.Addf(diag.SemanticError, a.file, rng, format, args...)
}

// errorAtSpan records a semantic error at span.
func (a *Analyzer) errorAtSpan(span syntax.Span, format string, args ...any) {
	a.diags.Addf(diag.SemanticError, a.file, span.Range(), format, args...)
}
