package build

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

// SourceExt is the extension of Loom source files.
const SourceExt = ".loom"

// scanImports lists the import paths written in src without parsing it.
// `import` is a keyword, so every occurrence starts an import statement.
func scanImports(src string) []string {
	toks := syntax.Tokenize(src)
	var out []string
	for i := 0; i+1 < len(toks); i++ {
		if toks[i].Type == syntax.TokenImport && toks[i+1].Type == syntax.TokenString {
			out = append(out, toks[i+1].Literal)
		}
	}
	return out
}

// resolver maps import paths to project files and module names. It is
// built once the file list is known and is read-only afterwards, so
// workers share it freely.
type resolver struct {
	reg     *types.Registry
	include []string          // absolute include directories
	names   map[string]string // absolute file path -> module name
	abs     map[string]string // file as given -> absolute path
}

func newResolver(reg *types.Registry, include []string, files []*fileState) (*resolver, error) {
	r := &resolver{
		reg:   reg,
		names: make(map[string]string, len(files)),
		abs:   make(map[string]string, len(files)),
	}
	for _, dir := range include {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("include dir %s: %w", dir, err)
		}
		r.include = append(r.include, abs)
	}
	for _, f := range files {
		r.abs[f.path] = f.abs
		r.names[f.abs] = r.moduleName(f.path, f.abs)
	}
	return r, nil
}

// moduleName is the file's path relative to the first include directory
// holding it, without extension and with forward slashes.
func (r *resolver) moduleName(path, abs string) string {
	for _, dir := range r.include {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return strings.TrimSuffix(filepath.ToSlash(rel), SourceExt)
	}
	return strings.TrimSuffix(filepath.ToSlash(filepath.Clean(path)), SourceExt)
}

// native reports whether path names a native module.
func (r *resolver) native(path string) bool {
	_, ok := r.reg.LookupModule(path)
	return ok
}

// resolveFile finds the project file an import refers to. Paths starting
// with ./ or ../ are relative to the importing file, anything else is
// searched in the include directories.
func (r *resolver) resolveFile(fromFile, path string) (string, error) {
	rel := filepath.FromSlash(path)
	if !strings.HasSuffix(rel, SourceExt) {
		rel += SourceExt
	}

	var candidates []string
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		from, ok := r.abs[fromFile]
		if !ok {
			var err error
			if from, err = filepath.Abs(fromFile); err != nil {
				return "", err
			}
		}
		candidates = append(candidates, filepath.Join(filepath.Dir(from), rel))
	} else {
		for _, dir := range r.include {
			candidates = append(candidates, filepath.Join(dir, rel))
		}
	}
	for _, c := range candidates {
		if _, ok := r.names[c]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("no project file for import %q", path)
}

// ResolveImport implements analyzer.ImportResolver.
func (r *resolver) ResolveImport(fromFile, path string) (string, error) {
	file, err := r.resolveFile(fromFile, path)
	if err != nil {
		return "", err
	}
	return r.names[file], nil
}

// dependencies resolves f's imports to project files. Native modules are
// skipped. ok is false when some import names no project file.
func (r *resolver) dependencies(f *fileState) (deps []string, ok bool) {
	ok = true
	for _, path := range f.imports {
		if r.native(path) {
			continue
		}
		file, err := r.resolveFile(f.path, path)
		if err != nil {
			ok = false
			continue
		}
		deps = append(deps, file)
	}
	return deps, ok
}
