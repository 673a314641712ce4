package types

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Registry: builtins and native bindings
// ---------------------------------------------------------------------------

// Registry holds the builtin global namespace and the natively bound
// modules a program may import.
type Registry struct {
	Global  *Namespace
	modules map[string]*Namespace
	natives []*FuncSymbol
}

// NewRegistry creates a registry holding only the builtin types.
func NewRegistry() *Registry {
	r := &Registry{
		Global:  NewNamespace("", "", ""),
		modules: make(map[string]*Namespace),
	}
	for _, b := range Builtins {
		r.Global.Define(b)
	}
	return r
}

// NewStdRegistry creates a registry with the standard natives: the global
// `trace` and `start` functions and the "std/math" module.
func NewStdRegistry() *Registry {
	r := NewRegistry()
	r.MustDefineFunc(r.Global, "trace", NewFuncSignature(Void, String), "msg")
	task := NewFuncSignature(Void)
	task.Coro = true
	r.MustDefineFunc(r.Global, "start", NewFuncSignature(Int, task), "fn")

	coroSleep := NewFuncSignature(Void, Float)
	coroSleep.Coro = true
	r.MustDefineFunc(r.Global, "wait", coroSleep, "secs")

	math := r.Module("std/math")
	r.MustDefineFunc(math, "Sqrt", NewFuncSignature(Float, Float), "x")
	r.MustDefineFunc(math, "Abs", NewFuncSignature(Int, Int), "x")
	r.MustDefineFunc(math, "Random", NewFuncSignature(Float))
	return r
}

// Module returns the native module bound to path, creating it.
func (r *Registry) Module(path string) *Namespace {
	if ns, ok := r.modules[path]; ok {
		return ns
	}
	ns := NewNamespace("", "", path)
	r.modules[path] = ns
	return ns
}

// LookupModule returns the native module for an import path.
func (r *Registry) LookupModule(path string) (*Namespace, bool) {
	ns, ok := r.modules[path]
	return ns, ok
}

// DefineFunc binds a native function in ns. Native functions are numbered
// in registration order.
func (r *Registry) DefineFunc(ns *Namespace, name string, sig *FuncSignature, params ...string) (*FuncSymbol, error) {
	if len(params) != len(sig.Params) {
		return nil, fmt.Errorf("native func %s: %d parameter names for %d parameters", name, len(params), len(sig.Params))
	}
	f := NewFunc(name, sig, params...)
	f.Native = true
	f.Module = ns.Module
	f.Path = ns.Path
	f.Index = len(r.natives)
	if err := ns.Define(f); err != nil {
		return nil, err
	}
	r.natives = append(r.natives, f)
	return f, nil
}

// MustDefineFunc is DefineFunc that panics on error, for static setup.
func (r *Registry) MustDefineFunc(ns *Namespace, name string, sig *FuncSignature, params ...string) *FuncSymbol {
	f, err := r.DefineFunc(ns, name, sig, params...)
	if err != nil {
		panic(err)
	}
	return f
}

// DefineClass binds a native class in ns.
func (r *Registry) DefineClass(ns *Namespace, c *ClassSymbol) error {
	c.Native = true
	c.Module = ns.Module
	c.Path = ns.Path
	return ns.Define(c)
}

// Natives returns native functions in binding order.
func (r *Registry) Natives() []*FuncSymbol {
	return r.natives
}

// ---------------------------------------------------------------------------
// Builtin collection members
// ---------------------------------------------------------------------------

// Native member slots of the builtin collections.
const (
	ArrayCount = iota
	ArrayAdd
	ArrayRemoveAt
	ArrayIndexOf
)

const (
	MapCount = iota
	MapContains
	MapRemove
)

// ArrayMember returns the builtin member name of []elem, or nil.
func ArrayMember(a *ArrayType, name string) Symbol {
	switch name {
	case "Count":
		return &FieldSymbol{name: name, Type: Int, Index: ArrayCount, Native: true}
	case "Add":
		return nativeMethod(name, ArrayAdd, NewFuncSignature(Void, a.Elem), "o")
	case "RemoveAt":
		return nativeMethod(name, ArrayRemoveAt, NewFuncSignature(Void, Int), "idx")
	case "IndexOf":
		return nativeMethod(name, ArrayIndexOf, NewFuncSignature(Int, a.Elem), "o")
	}
	return nil
}

// MapMember returns the builtin member name of [key]value, or nil.
func MapMember(m *MapType, name string) Symbol {
	switch name {
	case "Count":
		return &FieldSymbol{name: name, Type: Int, Index: MapCount, Native: true}
	case "Contains":
		return nativeMethod(name, MapContains, NewFuncSignature(Bool, m.Key), "key")
	case "Remove":
		return nativeMethod(name, MapRemove, NewFuncSignature(Void, m.Key), "key")
	}
	return nil
}

func nativeMethod(name string, index int, sig *FuncSignature, params ...string) *FuncSymbol {
	f := NewFunc(name, sig, params...)
	f.Native = true
	f.Index = index
	f.Owner = Any
	return f
}

// ---------------------------------------------------------------------------
// Module
// ---------------------------------------------------------------------------

// Module is one compilation unit's symbol state: its root namespace, the
// modules it imports and its global variable table.
type Module struct {
	Name    string
	File    string
	NS      *Namespace
	Imports []string
	Globals []*GlobalVar
}

// NewModule creates a module whose namespace sees the registry builtins.
func NewModule(reg *Registry, name, file string) *Module {
	m := &Module{
		Name: name,
		File: file,
		NS:   NewNamespace("", "", name),
	}
	m.NS.Link(reg.Global)
	return m
}

// AddGlobal assigns the next global index to g and records it.
func (m *Module) AddGlobal(g *GlobalVar) {
	g.Module = m.Name
	g.Index = len(m.Globals)
	m.Globals = append(m.Globals, g)
}

// AddImport records an imported module name and links its namespace.
// It reports false when name was already imported.
func (m *Module) AddImport(name string, ns *Namespace) bool {
	for _, imp := range m.Imports {
		if imp == name {
			return false
		}
	}
	m.Imports = append(m.Imports, name)
	m.NS.Link(ns)
	return true
}
