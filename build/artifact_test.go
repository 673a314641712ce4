package build

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "b.module")
	if err := os.WriteFile(ref, []byte("module b"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries := []artifactEntry{
		{name: "a", payload: bytes.Repeat([]byte("module a "), 50)},
		{name: "b", payload: []byte("module b"), ref: ref},
	}

	for _, enc := range []Encoding{EncodingRaw, EncodingLZ4, EncodingRef} {
		t.Run(enc.String(), func(t *testing.T) {
			if enc == EncodingRef {
				entries[0].ref = ref
			}
			data, err := encodeArtifact(entries, enc)
			if err != nil {
				t.Fatal(err)
			}
			if data[0] != ArtifactTag {
				t.Errorf("tag = 0x%02X", data[0])
			}
			a, err := DecodeArtifact(data)
			if err != nil {
				t.Fatal(err)
			}
			if len(a.Modules) != 2 || a.Modules[0].Name != "a" || a.Modules[1].Name != "b" {
				t.Fatalf("modules = %+v", a.Modules)
			}
			for i, m := range a.Modules {
				want := entries[i].payload
				if enc == EncodingRef {
					want = []byte("module b")
				}
				if !bytes.Equal(m.Data, want) {
					t.Errorf("%s data = %q", m.Name, m.Data)
				}
			}
		})
	}
}

func TestLZ4Shrinks(t *testing.T) {
	payload := bytes.Repeat([]byte("CONSTANT GET_VAR "), 200)
	raw, err := encodeArtifact([]artifactEntry{{name: "m", payload: payload}}, EncodingRaw)
	if err != nil {
		t.Fatal(err)
	}
	packed, err := encodeArtifact([]artifactEntry{{name: "m", payload: payload}}, EncodingLZ4)
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) >= len(raw) {
		t.Errorf("lz4 artifact is %d bytes, raw %d", len(packed), len(raw))
	}
}

func TestDecodeArtifactErrors(t *testing.T) {
	good, err := encodeArtifact([]artifactEntry{{name: "m", payload: []byte{1, 2, 3}}}, EncodingRaw)
	if err != nil {
		t.Fatal(err)
	}
	badVersion := append([]byte(nil), good...)
	badVersion[1] = 9

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrUnexpectedEOF},
		{"wrong tag", []byte{0x00, 1, 0, 0, 0}, ErrBadArtifact},
		{"wrong version", badVersion, ErrArtifactVersion},
		{"truncated", good[:len(good)-1], ErrUnexpectedEOF},
		{"trailing bytes", append(append([]byte(nil), good...), 0), ErrBadArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeArtifact(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	for _, name := range []string{"", "raw", "lz4", "ref"} {
		if _, err := ParseEncoding(name); err != nil {
			t.Errorf("ParseEncoding(%q): %v", name, err)
		}
	}
	if _, err := ParseEncoding("zip"); err == nil {
		t.Error("zip should not parse")
	}
}
