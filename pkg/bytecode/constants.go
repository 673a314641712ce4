package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// ConstKind tags a constant pool entry.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstBool
	ConstNull
	ConstFunc   // Str is the qualified function name, Module its module
	ConstType   // Str is the qualified type name, Module its module
	ConstModule // Str is a module name
)

var constKindNames = [...]string{"int", "float", "string", "bool", "null", "func", "type", "module"}

func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", k)
}

// Constant is one pool entry.
type Constant struct {
	Kind   ConstKind `cbor:"1,keyasint"`
	Int    int64     `cbor:"2,keyasint,omitempty"`
	Float  float64   `cbor:"3,keyasint,omitempty"`
	Str    string    `cbor:"4,keyasint,omitempty"`
	Module string    `cbor:"5,keyasint,omitempty"`
}

func IntConst(v int64) Constant     { return Constant{Kind: ConstInt, Int: v} }
func FloatConst(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }
func StringConst(s string) Constant { return Constant{Kind: ConstString, Str: s} }
func NullConst() Constant           { return Constant{Kind: ConstNull} }

func BoolConst(v bool) Constant {
	c := Constant{Kind: ConstBool}
	if v {
		c.Int = 1
	}
	return c
}

// FuncConst refers to a compiled function by module and qualified name.
func FuncConst(module, name string) Constant {
	return Constant{Kind: ConstFunc, Str: name, Module: module}
}

// TypeConst refers to a type by module and qualified name. Builtin and
// composite types have an empty module.
func TypeConst(module, name string) Constant {
	return Constant{Kind: ConstType, Str: name, Module: module}
}

// ModuleConst refers to a module by name.
func ModuleConst(name string) Constant {
	return Constant{Kind: ConstModule, Str: name}
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstBool:
		return strconv.FormatBool(c.Int != 0)
	case ConstNull:
		return "null"
	case ConstFunc, ConstType:
		if c.Module == "" {
			return c.Kind.String() + " " + c.Str
		}
		return c.Kind.String() + " " + c.Module + ":" + c.Str
	}
	return c.Kind.String() + " " + c.Str
}

// constKey compares floats bitwise so 0.0 and -0.0 stay distinct.
type constKey struct {
	kind   ConstKind
	i      int64
	f      uint64
	s, mod string
}

func keyOf(c Constant) constKey {
	return constKey{kind: c.Kind, i: c.Int, f: math.Float64bits(c.Float), s: c.Str, mod: c.Module}
}

// ---------------------------------------------------------------------------
// ConstantPool
// ---------------------------------------------------------------------------

// ConstantPool is a de-duplicating list of constants. Each Add counts as
// one use; Release drops a use and Compact removes unused entries.
type ConstantPool struct {
	entries []Constant
	refs    []int
	index   map[constKey]int
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[constKey]int)}
}

// Add returns the index of c, appending it if no equal entry exists.
func (p *ConstantPool) Add(c Constant) int {
	k := keyOf(c)
	if i, ok := p.index[k]; ok {
		p.refs[i]++
		return i
	}
	i := len(p.entries)
	p.entries = append(p.entries, c)
	p.refs = append(p.refs, 1)
	p.index[k] = i
	return i
}

// Release drops one use of entry i.
func (p *ConstantPool) Release(i int) {
	if i < 0 || i >= len(p.entries) || p.refs[i] == 0 {
		invariant("release of unused constant %d", i)
	}
	p.refs[i]--
}

// Get returns entry i.
func (p *ConstantPool) Get(i int) Constant {
	if i < 0 || i >= len(p.entries) {
		invariant("constant %d out of range", i)
	}
	return p.entries[i]
}

// Len returns the number of entries.
func (p *ConstantPool) Len() int { return len(p.entries) }

// Entries returns the pool contents in index order.
func (p *ConstantPool) Entries() []Constant { return p.entries }

// Compact removes entries nobody uses and returns the old to new index
// map; removed entries map to -1.
func (p *ConstantPool) Compact() []int {
	remap := make([]int, len(p.entries))
	var entries []Constant
	var refs []int
	index := make(map[constKey]int)
	for i, c := range p.entries {
		if p.refs[i] == 0 {
			remap[i] = -1
			continue
		}
		remap[i] = len(entries)
		index[keyOf(c)] = len(entries)
		entries = append(entries, c)
		refs = append(refs, p.refs[i])
	}
	p.entries, p.refs, p.index = entries, refs, index
	return remap
}
