package diag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// maxTraceLines bounds the internal trace attached to a build error.
const maxTraceLines = 16

// record is the JSON shape of one diagnostic line.
type record struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Range   *Range `json:"range,omitempty"`
	Message string `json:"message"`
}

// WriteJSONLines writes one JSON object per diagnostic, newline separated.
func WriteJSONLines(w io.Writer, list List) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, d := range list {
		rec := record{Kind: d.Kind.String(), File: d.File, Message: d.Message}
		if !d.Range.IsEmpty() {
			rng := d.Range
			rec.Range = &rng
		}
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("encoding diagnostic: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile writes diagnostics as JSON lines to path. The path "-" means
// standard error.
func WriteFile(path string, list List) error {
	if path == "-" {
		return WriteJSONLines(os.Stderr, list)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create error file %s: %w", path, err)
	}
	if err := WriteJSONLines(f, list); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FromPanic converts a recovered panic value into a build error for file.
// It must be called from the deferred function that recovered, so the
// captured stack still contains the panicking frames.
func FromPanic(file string, recovered any) *Diagnostic {
	var err error
	switch v := recovered.(type) {
	case error:
		err = errors.WithStack(v)
	default:
		err = errors.Errorf("%v", v)
	}
	return FromError(file, err)
}

// FromError converts an unexpected error into a build error, attaching a
// truncated trace when the error carries one.
func FromError(file string, err error) *Diagnostic {
	trace := fmt.Sprintf("%+v", err)
	lines := strings.Split(trace, "\n")
	if len(lines) > maxTraceLines {
		lines = append(lines[:maxTraceLines], "\t...")
	}
	return &Diagnostic{
		Kind:    BuildError,
		File:    file,
		Message: strings.Join(lines, "\n"),
	}
}
