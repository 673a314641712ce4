package types

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// SymbolTable: ordered name → symbol map
// ---------------------------------------------------------------------------

// SymbolTable keeps symbols in declaration order.
type SymbolTable struct {
	names []string
	syms  map[string]Symbol
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{syms: make(map[string]Symbol)}
}

// AlreadyDefinedError is returned when a name is declared twice in the
// same scope.
type AlreadyDefinedError struct {
	Name     string
	Existing Symbol
}

func (e *AlreadyDefinedError) Error() string {
	return fmt.Sprintf("symbol '%s' is already defined", e.Name)
}

// Define adds sym, failing with *AlreadyDefinedError on a duplicate.
func (t *SymbolTable) Define(sym Symbol) error {
	if existing, ok := t.syms[sym.Name()]; ok {
		return &AlreadyDefinedError{Name: sym.Name(), Existing: existing}
	}
	t.names = append(t.names, sym.Name())
	t.syms[sym.Name()] = sym
	return nil
}

// Get returns the symbol for name, or nil.
func (t *SymbolTable) Get(name string) Symbol {
	return t.syms[name]
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int { return len(t.names) }

// All returns symbols in declaration order.
func (t *SymbolTable) All() []Symbol {
	out := make([]Symbol, len(t.names))
	for i, n := range t.names {
		out[i] = t.syms[n]
	}
	return out
}

// ---------------------------------------------------------------------------
// Namespace
// ---------------------------------------------------------------------------

// Namespace is a named scope of declarations. A module's root namespace
// has an empty name. Linked namespaces (imports and builtins) are searched
// after the namespace's own members, and only for exported symbols.
type Namespace struct {
	name    string
	Path    string
	Module  string
	Members *SymbolTable
	links   []*Namespace
}

// NewNamespace creates a namespace. path is the dotted path of the
// namespace itself ("" for a module root).
func NewNamespace(name, path, module string) *Namespace {
	return &Namespace{name: name, Path: path, Module: module, Members: NewSymbolTable()}
}

func (n *Namespace) Name() string       { return n.name }
func (n *Namespace) ModuleName() string { return n.Module }
func (n *Namespace) IsLocal() bool      { return false }
func (n *Namespace) isSymbol()          {}

// Define declares sym in this namespace.
func (n *Namespace) Define(sym Symbol) error {
	return n.Members.Define(sym)
}

// Child returns the nested namespace called name, creating it when absent.
// It fails if name is taken by something that is not a namespace.
func (n *Namespace) Child(name string) (*Namespace, error) {
	switch existing := n.Members.Get(name).(type) {
	case nil:
		child := NewNamespace(name, QualifiedName(n.Path, name), n.Module)
		n.Members.Define(child)
		return child, nil
	case *Namespace:
		return existing, nil
	default:
		return nil, &AlreadyDefinedError{Name: name, Existing: existing}
	}
}

// Link makes other's exported symbols visible from n.
func (n *Namespace) Link(other *Namespace) {
	for _, l := range n.links {
		if l == other {
			return
		}
	}
	n.links = append(n.links, other)
}

// Links returns the linked namespaces in link order.
func (n *Namespace) Links() []*Namespace {
	return n.links
}

// ResolveLocal looks only at n's own members.
func (n *Namespace) ResolveLocal(name string) Symbol {
	return n.Members.Get(name)
}

// resolveExported looks at n's own members, hiding file-local symbols.
func (n *Namespace) resolveExported(name string) Symbol {
	sym := n.Members.Get(name)
	if sym == nil || IsLocal(sym) {
		return nil
	}
	return sym
}

// Resolve looks up name in n and then in its links. Same-named nested
// namespaces found in several places are merged into one view.
func (n *Namespace) Resolve(name string) Symbol {
	var found []*Namespace
	own := false
	if sym := n.Members.Get(name); sym != nil {
		ns, ok := sym.(*Namespace)
		if !ok {
			return sym
		}
		found = append(found, ns)
		own = true
	}
	for _, l := range n.links {
		sym := l.resolveExported(name)
		if sym == nil {
			continue
		}
		ns, ok := sym.(*Namespace)
		if !ok {
			if len(found) == 0 {
				return sym
			}
			continue
		}
		found = append(found, ns)
	}
	switch len(found) {
	case 0:
		return nil
	case 1:
		return found[0]
	}
	view := NewNamespace(name, found[0].Path, found[0].Module)
	if own {
		view.Members = found[0].Members
		found = found[1:]
	}
	for _, ns := range found {
		view.Link(ns)
	}
	return view
}

// ResolvePath resolves a dotted path such as a.b.C starting at scope.
// Every segment but the last must name a namespace.
func ResolvePath(scope Scope, path []string) (Symbol, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	sym := scope.Resolve(path[0])
	for i, seg := range path[1:] {
		if sym == nil {
			break
		}
		ns, ok := sym.(*Namespace)
		if !ok {
			return nil, fmt.Errorf("'%s' is not a namespace", strings.Join(path[:i+1], "."))
		}
		sym = ns.Resolve(seg)
	}
	if sym == nil {
		return nil, fmt.Errorf("symbol '%s' not resolved", strings.Join(path, "."))
	}
	return sym, nil
}

// ResolveType resolves a dotted path that must name a type.
func ResolveType(scope Scope, path []string) (Type, error) {
	sym, err := ResolvePath(scope, path)
	if err != nil {
		return nil, err
	}
	t, ok := sym.(Type)
	if !ok || t == Null {
		return nil, fmt.Errorf("'%s' is not a type", strings.Join(path, "."))
	}
	return t, nil
}

// Walk calls fn for every symbol in n, descending into nested namespaces.
func (n *Namespace) Walk(fn func(sym Symbol)) {
	for _, sym := range n.Members.All() {
		fn(sym)
		if child, ok := sym.(*Namespace); ok {
			child.Walk(fn)
		}
	}
}
