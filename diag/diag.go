// Package diag holds the diagnostics produced by every stage of the Loom
// pipeline. A diagnostic is a user-facing problem tied to a file and a
// source range; stages accumulate them instead of failing fast.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// SyntaxError is malformed input at the tokenizer/parser boundary.
	SyntaxError Kind = iota
	// SemanticError is a name/type resolution failure or an illegal construct.
	SemanticError
	// BuildError wraps an unexpected internal failure for one file.
	BuildError
	// SymbolCollision reports two files declaring the same non-local symbol.
	SymbolCollision
)

var kindNames = map[Kind]string{
	SyntaxError:     "syntax error",
	SemanticError:   "semantic error",
	BuildError:      "build error",
	SymbolCollision: "symbol collision",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a 1-based line/column location. The zero Pos means "unknown".
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a source range. An empty range has zero Start and End.
type Range struct {
	Start Pos `json:"start"`
	End   Pos `json:"end"`
}

// IsEmpty reports whether the range carries no location.
func (r Range) IsEmpty() bool {
	return r.Start.Line == 0 && r.End.Line == 0
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Kind    Kind
	File    string
	Range   Range
	Message string
}

// New creates a diagnostic.
func New(kind Kind, file string, rng Range, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		File:    file,
		Range:   rng,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements error so a diagnostic can travel through error returns.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		if !d.Range.IsEmpty() {
			fmt.Fprintf(&b, ":%d:%d", d.Range.Start.Line, d.Range.Start.Column)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Kind.String())
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// List is an ordered list of diagnostics.
type List []*Diagnostic

// Add appends a diagnostic.
func (l *List) Add(d *Diagnostic) {
	*l = append(*l, d)
}

// Addf builds and appends a diagnostic.
func (l *List) Addf(kind Kind, file string, rng Range, format string, args ...any) {
	l.Add(New(kind, file, rng, format, args...))
}

// Len returns the number of diagnostics.
func (l List) Len() int { return len(l) }

// HasErrors reports whether the list holds any diagnostic.
func (l List) HasErrors() bool { return len(l) > 0 }

// Count returns how many diagnostics have the given kind.
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Sort orders diagnostics by file, then position. The sort is stable so
// diagnostics at the same location keep their discovery order.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Range.Start.Line != b.Range.Start.Line {
			return a.Range.Start.Line < b.Range.Start.Line
		}
		return a.Range.Start.Column < b.Range.Start.Column
	})
}

// Error joins all diagnostics, one per line.
func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, d := range l {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}
