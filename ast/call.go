package ast

import (
	"fmt"

	"github.com/chazu/loom/types"
)

// CallKind is the access a Call node performs. It alone decides which
// instruction the compiler emits.
type CallKind uint8

const (
	ReadVar       CallKind = iota // push a local
	WriteVar                      // pop into a local
	ReadGlobal                    // push a global
	WriteGlobal                   // pop into a global
	ReadField                     // replace an instance with its field
	WriteField                    // store into an instance's field
	InitField                     // store into the instance being constructed
	Func                          // call a function by symbol
	FuncRef                       // push a function value
	Method                        // call a method, statically bound
	MethodVirtual                 // call a virtual method
	MethodIface                   // call through an interface
	ArrIdx                        // index an array
	ArrIdxW                       // store into an array slot
	MapIdx                        // index a map
	MapIdxW                       // store into a map entry
	FuncPtr                       // call the function value on the stack
	VarRef                        // push a reference to a local
)

var callKindNames = [...]string{
	ReadVar:       "read_var",
	WriteVar:      "write_var",
	ReadGlobal:    "read_global",
	WriteGlobal:   "write_global",
	ReadField:     "read_field",
	WriteField:    "write_field",
	InitField:     "init_field",
	Func:          "func",
	FuncRef:       "func_ref",
	Method:        "method",
	MethodVirtual: "method_virtual",
	MethodIface:   "method_iface",
	ArrIdx:        "arr_idx",
	ArrIdxW:       "arr_idx_w",
	MapIdx:        "map_idx",
	MapIdxW:       "map_idx_w",
	FuncPtr:       "func_ptr",
	VarRef:        "var_ref",
}

func (k CallKind) String() string {
	if int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return fmt.Sprintf("CallKind(%d)", k)
}

// IsWrite reports whether k stores a value.
func (k CallKind) IsWrite() bool {
	switch k {
	case WriteVar, WriteGlobal, WriteField, InitField, ArrIdxW, MapIdxW:
		return true
	}
	return false
}

// IsCall reports whether k invokes a function.
func (k CallKind) IsCall() bool {
	switch k {
	case Func, Method, MethodVirtual, MethodIface, FuncPtr:
		return true
	}
	return false
}

// Call is one resolved access. Arguments, indexes and written values are
// its children; for writes the value comes last. A write with no value
// child stores whatever is already on the stack.
type Call struct {
	Base
	Kind   CallKind
	Name   string
	Symbol types.Symbol
	Type   types.Type // type of the pushed value, if any
	Args   ArgsBits
}

// ---------------------------------------------------------------------------
// ArgsBits: packed call argument info
// ---------------------------------------------------------------------------

// ArgsBits packs the number of pushed arguments (low 6 bits) and a mask
// of default parameters the callee must compute itself (remaining bits,
// one per default parameter in declaration order).
type ArgsBits uint32

const (
	argsCountBits = 6
	// MaxArgs is the largest argument count ArgsBits can hold.
	MaxArgs = 1<<argsCountBits - 1
	// MaxDefaults is the largest number of default parameters.
	MaxDefaults = 32 - argsCountBits
)

// Count returns the number of arguments pushed by the caller.
func (a ArgsBits) Count() int { return int(a & MaxArgs) }

// WithCount returns a with the argument count set.
func (a ArgsBits) WithCount(n int) ArgsBits {
	if n < 0 || n > MaxArgs {
		panic(fmt.Sprintf("argument count %d out of range", n))
	}
	return a&^MaxArgs | ArgsBits(n)
}

// UseDefault returns a with default parameter i marked as not passed.
func (a ArgsBits) UseDefault(i int) ArgsBits {
	if i < 0 || i >= MaxDefaults {
		panic(fmt.Sprintf("default argument index %d out of range", i))
	}
	return a | 1<<(argsCountBits+i)
}

// DefaultUsed reports whether default parameter i was not passed.
func (a ArgsBits) DefaultUsed(i int) bool {
	if i < 0 || i >= MaxDefaults {
		return false
	}
	return a&(1<<(argsCountBits+i)) != 0
}
