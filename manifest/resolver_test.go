package manifest

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", FileName), `
[dependencies]
ui = { path = "../ui" }
core = { path = "../core" }
`)
	writeFile(t, filepath.Join(root, "ui", FileName), `
[dependencies]
core = { path = "../core" }
`)
	writeFile(t, filepath.Join(root, "core", "point.loom"), "")

	m, err := Load(filepath.Join(root, "app"))
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, d := range deps {
		names = append(names, d.Name)
	}
	if strings.Join(names, ",") != "core,ui" {
		t.Errorf("load order = %v, want [core ui]", names)
	}
	// core has no manifest and is taken as a bare source directory.
	if got := deps[0].Manifest.SourceDirPaths(); len(got) != 1 || got[0] != filepath.Join(root, "core") {
		t.Errorf("core source dirs = %v", got)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "missing path",
			files: map[string]string{"app/" + FileName: "[dependencies]\nx = { path = \"../nowhere\" }\n"},
			want:  "not found",
		},
		{
			name:  "no path",
			files: map[string]string{"app/" + FileName: "[dependencies]\nx = {}\n"},
			want:  "no path",
		},
		{
			name: "cycle",
			files: map[string]string{
				"app/" + FileName: "[dependencies]\na = { path = \"../a\" }\n",
				"a/" + FileName:   "[dependencies]\nb = { path = \"../b\" }\n",
				"b/" + FileName:   "[dependencies]\na = { path = \"../a\" }\n",
			},
			want: "dependency cycle: a -> b -> a",
		},
		{
			name: "cycle through the project",
			files: map[string]string{
				"app/" + FileName: "[dependencies]\na = { path = \"../a\" }\n",
				"a/" + FileName:   "[dependencies]\napp = { path = \"../app\" }\n",
			},
			want: "dependency cycle: a -> app",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
			}
			m, err := Load(filepath.Join(root, "app"))
			if err != nil {
				t.Fatal(err)
			}
			_, err = NewResolver(m).Resolve()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
