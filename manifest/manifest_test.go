package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/loom/build"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
[project]
name = "arena"
version = "0.1.0"

[source]
files = ["boot.loom"]
dirs = ["src", "lib"]
include = ["src"]

[build]
cache-dir = ".loom/cache"
workers = 3
deterministic = true
output = "out/arena.lmod"
encoding = "lz4"
error-file = "-"
defines = ["DEBUG", "EDITOR"]

[dependencies]
helper = { path = "../helper" }
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "arena" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if len(m.Source.Files) != 1 || len(m.Source.Dirs) != 2 || len(m.Source.Include) != 1 {
		t.Errorf("source = %+v", m.Source)
	}
	if m.Build.CacheDir != ".loom/cache" || m.Build.Workers != 3 || !m.Build.Deterministic {
		t.Errorf("build = %+v", m.Build)
	}
	if m.Build.Encoding != "lz4" || m.Build.ErrorFile != "-" || len(m.Build.Defines) != 2 {
		t.Errorf("build = %+v", m.Build)
	}
	if dep, ok := m.Dependencies["helper"]; !ok || dep.Path != "../helper" {
		t.Errorf("helper dep = %v, want path ../helper", m.Dependencies["helper"])
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "[project]\nname = \"minimal\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Default source dir should be "src", and include follows it.
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("default source dirs = %v, want [src]", m.Source.Dirs)
	}
	if len(m.Source.Include) != 1 || m.Source.Include[0] != "src" {
		t.Errorf("default include = %v, want [src]", m.Source.Include)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[project\nname = 1"},
		{"wrong type", "[build]\nworkers = \"many\""},
		{"unknown encoding", "[build]\nencoding = \"zip\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, FileName), tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, FileName), "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no loom.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"src", "/abs/lib"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/src" {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/abs/lib" {
		t.Errorf("paths[1] = %q, want /abs/lib", paths[1])
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "main.loom"), "")
	writeFile(t, filepath.Join(dir, "src", "game", "units.loom"), "")
	writeFile(t, filepath.Join(dir, "src", "README.md"), "")
	writeFile(t, filepath.Join(dir, "boot.loom"), "")

	m := &Manifest{
		Dir:    dir,
		Source: Source{Files: []string{"boot.loom", "src/main.loom"}, Dirs: []string{"src"}},
	}
	files, err := m.SourceFiles()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "boot.loom"),
		filepath.Join(dir, "src", "main.loom"),
		filepath.Join(dir, "src", "game", "units.loom"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestBuildConfig(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeFile(t, filepath.Join(app, FileName), `
[build]
cache-dir = "cache"
output = "out/app.lmod"
encoding = "ref"
error-file = "errors.jsonl"
defines = ["DEBUG"]

[dependencies]
helper = { path = "../helper" }
`)
	writeFile(t, filepath.Join(app, "src", "main.loom"), "")
	writeFile(t, filepath.Join(root, "helper", "util.loom"), "")

	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	conf, err := m.BuildConfig()
	if err != nil {
		t.Fatal(err)
	}

	if conf.Encoding != build.EncodingRef {
		t.Errorf("encoding = %v", conf.Encoding)
	}
	if conf.CacheDir != filepath.Join(app, "cache") || conf.Output != filepath.Join(app, "out", "app.lmod") {
		t.Errorf("cache = %q, output = %q", conf.CacheDir, conf.Output)
	}
	if conf.ErrorFile != filepath.Join(app, "errors.jsonl") {
		t.Errorf("error file = %q", conf.ErrorFile)
	}
	if !conf.Defines["DEBUG"] || len(conf.Defines) != 1 {
		t.Errorf("defines = %v", conf.Defines)
	}

	wantFiles := []string{
		filepath.Join(root, "helper", "util.loom"),
		filepath.Join(app, "src", "main.loom"),
	}
	if len(conf.Files) != 2 || conf.Files[0] != wantFiles[0] || conf.Files[1] != wantFiles[1] {
		t.Errorf("files = %v, want %v", conf.Files, wantFiles)
	}
	wantInclude := []string{filepath.Join(app, "src"), filepath.Join(root, "helper")}
	if len(conf.Include) != 2 || conf.Include[0] != wantInclude[0] || conf.Include[1] != wantInclude[1] {
		t.Errorf("include = %v, want %v", conf.Include, wantInclude)
	}
}
