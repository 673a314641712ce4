// Package manifest handles loom.toml project configuration.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/loom/build"
)

// FileName is the manifest file looked up in project directories.
const FileName = "loom.toml"

// Manifest represents a loom.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Build        Build                 `toml:"build"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the loom.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations. Files are taken as listed;
// Dirs are walked for .loom files. Include lists the import search
// directories and defaults to Dirs.
type Source struct {
	Files   []string `toml:"files"`
	Dirs    []string `toml:"dirs"`
	Include []string `toml:"include"`
}

// Build configures the executor.
type Build struct {
	CacheDir      string   `toml:"cache-dir"`
	Workers       int      `toml:"workers"`
	Deterministic bool     `toml:"deterministic"`
	Output        string   `toml:"output"`
	Encoding      string   `toml:"encoding"`
	ErrorFile     string   `toml:"error-file"`
	Defines       []string `toml:"defines"`
}

// Dependency is another Loom project on the local filesystem. Its source
// files are built together with the project's own.
type Dependency struct {
	Path string `toml:"path"`
}

// Load parses a loom.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 && len(m.Source.Files) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if len(m.Source.Include) == 0 {
		m.Source.Include = m.Source.Dirs
	}
	if _, err := build.ParseEncoding(m.Build.Encoding); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a loom.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// path resolves p against the manifest directory.
func (m *Manifest) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.path(d))
	}
	return paths
}

// IncludePaths returns absolute paths for the import search directories.
func (m *Manifest) IncludePaths() []string {
	var paths []string
	for _, d := range m.Source.Include {
		paths = append(paths, m.path(d))
	}
	return paths
}

// SourceFiles lists the project's own source files: the listed files
// first, then every .loom file under the source directories in lexical
// order. A file is listed once.
func (m *Manifest) SourceFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, f := range m.Source.Files {
		add(m.path(f))
	}
	for _, dir := range m.SourceDirPaths() {
		var found []string
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == build.SourceExt {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}

// BuildConfig produces the executor configuration for the project and its
// resolved dependencies. Dependencies come first in the file list, so
// their modules precede the project's in the artifact.
func (m *Manifest) BuildConfig() (*build.Config, error) {
	enc, err := build.ParseEncoding(m.Build.Encoding)
	if err != nil {
		return nil, err
	}
	conf := &build.Config{
		CacheDir:      m.path(m.Build.CacheDir),
		Output:        m.path(m.Build.Output),
		Workers:       m.Build.Workers,
		Deterministic: m.Build.Deterministic,
		Encoding:      enc,
		ErrorFile:     m.Build.ErrorFile,
	}
	if conf.ErrorFile != "-" {
		conf.ErrorFile = m.path(conf.ErrorFile)
	}
	if len(m.Build.Defines) > 0 {
		conf.Defines = make(map[string]bool, len(m.Build.Defines))
		for _, d := range m.Build.Defines {
			conf.Defines[d] = true
		}
	}

	deps, err := NewResolver(m).Resolve()
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		files, err := dep.Manifest.SourceFiles()
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", dep.Name, err)
		}
		conf.Files = append(conf.Files, files...)
		conf.Include = append(conf.Include, dep.Manifest.IncludePaths()...)
	}

	files, err := m.SourceFiles()
	if err != nil {
		return nil, err
	}
	conf.Files = append(conf.Files, files...)
	conf.Include = append(m.IncludePaths(), conf.Include...)
	return conf, nil
}
