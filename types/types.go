// Package types is the Loom symbol and type system: builtin types,
// namespaces, classes, interfaces, enums, functions, variables, the type
// constructors for arrays, maps, tuples and function signatures, and the
// compatibility checks the analyzer relies on.
package types

import (
	"strings"
)

// Type is anything a value can have.
type Type interface {
	TypeName() string
	isType()
}

// Symbol is anything that can be declared in a scope.
type Symbol interface {
	Name() string
	isSymbol()
}

// Scope resolves names.
type Scope interface {
	Resolve(name string) Symbol
}

// ---------------------------------------------------------------------------
// Builtin types
// ---------------------------------------------------------------------------

// BuiltinType is one of the primitive types. Builtins are both types and
// symbols so they can be found by name.
type BuiltinType struct {
	name string
}

func (b *BuiltinType) Name() string     { return b.name }
func (b *BuiltinType) TypeName() string { return b.name }
func (b *BuiltinType) isType()          {}
func (b *BuiltinType) isSymbol()        {}

var (
	Int    = &BuiltinType{"int"}
	Float  = &BuiltinType{"float"}
	String = &BuiltinType{"string"}
	Bool   = &BuiltinType{"bool"}
	Any    = &BuiltinType{"any"}
	Void   = &BuiltinType{"void"}
	// Null is the type of the null literal. It cannot be named in source.
	Null = &BuiltinType{"null"}
)

// Builtins lists the named builtin types.
var Builtins = []*BuiltinType{Int, Float, String, Bool, Any, Void}

// IsNumeric reports whether t is int or float.
func IsNumeric(t Type) bool {
	return t == Int || t == Float
}

// IsVoid reports whether t denotes "no value".
func IsVoid(t Type) bool {
	return t == nil || t == Void
}

// ---------------------------------------------------------------------------
// Constructed types
// ---------------------------------------------------------------------------

// ArrayType is `[]Elem`.
type ArrayType struct {
	Elem Type
}

// NewArray constructs `[]elem`.
func NewArray(elem Type) *ArrayType { return &ArrayType{Elem: elem} }

func (a *ArrayType) TypeName() string { return "[]" + a.Elem.TypeName() }
func (a *ArrayType) isType()          {}

// MapType is `[Key]Value`.
type MapType struct {
	Key   Type
	Value Type
}

// NewMap constructs `[key]value`.
func NewMap(key, value Type) *MapType { return &MapType{Key: key, Value: value} }

func (m *MapType) TypeName() string {
	return "[" + m.Key.TypeName() + "]" + m.Value.TypeName()
}
func (m *MapType) isType() {}

// TupleType is the type of a multi-value return.
type TupleType struct {
	Items []Type
}

// NewTuple constructs a tuple. A single item collapses to that item and no
// items collapse to void.
func NewTuple(items ...Type) Type {
	switch len(items) {
	case 0:
		return Void
	case 1:
		return items[0]
	}
	return &TupleType{Items: items}
}

func (t *TupleType) TypeName() string {
	names := make([]string, len(t.Items))
	for i, it := range t.Items {
		names[i] = it.TypeName()
	}
	return strings.Join(names, ",")
}
func (t *TupleType) isType() {}

// FuncSignature is the type of a function value.
type FuncSignature struct {
	Returns  Type   // Void, a single type or a *TupleType
	Params   []Type // declared parameter types
	Refs     []bool // which parameters are passed by reference
	Defaults int    // number of trailing parameters with default values
	Coro     bool
}

// NewFuncSignature constructs a signature with no ref parameters.
func NewFuncSignature(ret Type, params ...Type) *FuncSignature {
	if ret == nil {
		ret = Void
	}
	return &FuncSignature{Returns: ret, Params: params, Refs: make([]bool, len(params))}
}

// Required returns the number of parameters a caller must pass.
func (s *FuncSignature) Required() int {
	return len(s.Params) - s.Defaults
}

func (s *FuncSignature) TypeName() string {
	var b strings.Builder
	if s.Coro {
		b.WriteString("coro ")
	}
	b.WriteString("func ")
	b.WriteString(s.Returns.TypeName())
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(",")
		}
		if s.Refs[i] {
			b.WriteString("ref ")
		}
		b.WriteString(p.TypeName())
	}
	b.WriteString(")")
	return b.String()
}
func (s *FuncSignature) isType() {}

// Identical reports whether a and b denote the same type.
func Identical(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	// Named types are singletons; structural types compare by shape.
	switch a.(type) {
	case *ArrayType, *MapType, *TupleType, *FuncSignature:
		return a.TypeName() == b.TypeName()
	}
	return false
}
