package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents). A dependency
// reached twice through different projects is loaded once.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	resolved := make(map[string]*ResolvedDep)
	active := map[string]bool{r.manifest.Dir: true}
	return r.resolveAll(r.manifest, resolved, active, nil)
}

// resolveAll resolves the dependencies of m recursively. resolved is keyed
// by local path; active holds the projects on the current path, so a
// dependency cycle is reported instead of followed.
func (r *Resolver) resolveAll(m *Manifest, resolved map[string]*ResolvedDep, active map[string]bool, trail []string) ([]ResolvedDep, error) {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		rd, err := resolveOne(m, name, m.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		if active[rd.LocalPath] {
			return nil, fmt.Errorf("dependency cycle: %s", strings.Join(append(trail, name), " -> "))
		}
		if _, ok := resolved[rd.LocalPath]; ok {
			continue // already resolved
		}

		active[rd.LocalPath] = true
		transitive, err := r.resolveAll(rd.Manifest, resolved, active, append(trail, name))
		delete(active, rd.LocalPath)
		if err != nil {
			return nil, err
		}
		resolved[rd.LocalPath] = rd
		order = append(order, transitive...)
		order = append(order, *rd)
	}

	return order, nil
}

// resolveOne resolves a single dependency of m.
func resolveOne(m *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}

	localPath, err := filepath.Abs(m.path(dep.Path))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}

	// Verify it exists
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	depManifest, err := Load(localPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// A bare directory of sources.
		depManifest = &Manifest{
			Project: Project{Name: name},
			Source:  Source{Dirs: []string{"."}, Include: []string{"."}},
			Dir:     localPath,
		}
	}

	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Manifest:  depManifest,
	}, nil
}
