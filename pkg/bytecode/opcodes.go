package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack and constants (0x00-0x0F)
	// ========================================================================

	OpMark     Opcode = 0x00 // Zero-size jump target, never encoded
	OpPop      Opcode = 0x01 // Pop top of stack
	OpConstant Opcode = 0x02 // Push constant from pool: <index:3>

	// ========================================================================
	// Arithmetic and comparison (0x10-0x1F)
	// ========================================================================

	OpAdd      Opcode = 0x10 // Pop two, push sum
	OpSub      Opcode = 0x11 // Pop two, push difference
	OpMul      Opcode = 0x12 // Pop two, push product
	OpDiv      Opcode = 0x13 // Pop two, push quotient
	OpMod      Opcode = 0x14 // Pop two, push remainder
	OpLt       Opcode = 0x15 // Pop two, push a < b
	OpLe       Opcode = 0x16 // Pop two, push a <= b
	OpGt       Opcode = 0x17 // Pop two, push a > b
	OpGe       Opcode = 0x18 // Pop two, push a >= b
	OpEq       Opcode = 0x19 // Pop two, push a == b
	OpNe       Opcode = 0x1A // Pop two, push a != b
	OpNot      Opcode = 0x1B // Logical NOT
	OpUnaryNeg Opcode = 0x1C // Negate top of stack

	// ========================================================================
	// Frame variables (0x20-0x2F)
	// ========================================================================

	OpGetVar  Opcode = 0x20 // Push local: <slot:1>
	OpSetVar  Opcode = 0x21 // Pop into local: <slot:1>
	OpDeclVar Opcode = 0x22 // Zero-initialise local: <slot:1> <type:2>
	OpArgVar  Opcode = 0x23 // Pop argument into slot: <slot:1>
	OpArgRef  Opcode = 0x24 // Pop reference argument into slot: <slot:1>
	OpRefVar  Opcode = 0x25 // Push a reference to a local: <slot:1>

	// ========================================================================
	// Globals (0x30-0x3F)
	// ========================================================================

	OpGetGVar         Opcode = 0x30 // Push global: <index:3>
	OpSetGVar         Opcode = 0x31 // Pop into global: <index:3>
	OpGetGVarImported Opcode = 0x32 // Push imported global: <module:2> <index:3>
	OpSetGVarImported Opcode = 0x33 // Pop into imported global: <module:2> <index:3>

	// ========================================================================
	// Fields, indexing and collections (0x40-0x4F)
	// ========================================================================

	OpGetAttr        Opcode = 0x40 // Replace instance with field: <field:2>
	OpSetAttr        Opcode = 0x41 // Pop value and instance, store field: <field:2>
	OpSetAttrInplace Opcode = 0x42 // Pop value, store into instance kept on stack: <field:2>
	OpArrIdx         Opcode = 0x43 // Pop index and array, push element
	OpArrIdxW        Opcode = 0x44 // Pop value, index and array, store element
	OpMapIdx         Opcode = 0x45 // Pop key and map, push value
	OpMapIdxW        Opcode = 0x46 // Pop value, key and map, store entry
	OpArrAddInplace  Opcode = 0x47 // Pop value, append to array kept on stack
	OpMapAddInplace  Opcode = 0x48 // Pop value and key, add to map kept on stack

	// ========================================================================
	// Types (0x50-0x5F)
	// ========================================================================

	OpNew      Opcode = 0x50 // Push new instance: <type:3>
	OpTypeCast Opcode = 0x51 // Checked conversion: <type:3>
	OpTypeAs   Opcode = 0x52 // Conversion or null: <type:3>
	OpTypeIs   Opcode = 0x53 // Push type test result: <type:3>

	// ========================================================================
	// Calls (0x60-0x6F)
	// ========================================================================

	OpCall             Opcode = 0x60 // Call same-module function: <ip:3> <args:4>
	OpCallNative       Opcode = 0x61 // Call native function: <native:3> <args:4>
	OpGetFunc          Opcode = 0x62 // Push function value: <func:3>
	OpGetFuncNative    Opcode = 0x63 // Push native function value: <native:3>
	OpCallMethod       Opcode = 0x64 // Statically bound method call: <func:2> <args:4>
	OpCallMethodNative Opcode = 0x65 // Builtin member call: <member:2> <args:4>
	OpCallMethodVirt   Opcode = 0x66 // Virtual call: <slot:2> <args:4>
	OpCallMethodIface  Opcode = 0x67 // Interface call: <slot:2> <iface:3> <args:4>
	OpCallPtr          Opcode = 0x68 // Call function value below the arguments: <args:4>
	OpLambda           Opcode = 0x69 // Push closure, skip its body: <skip:2>
	OpUseUpval         Opcode = 0x6A // Capture into closure: <src:1> <dst:1> <mode:1>
	OpInitFrame        Opcode = 0x6B // Allocate frame: <locals:1>
	OpReturn           Opcode = 0x6C // Return from frame
	OpReturnVal        Opcode = 0x6D // Return values: <count:1>
	OpDefArg           Opcode = 0x6E // Skip default computation if passed: <default:1> <skip:2>

	// ========================================================================
	// Control flow (0x70-0x7F)
	// ========================================================================

	OpJump       Opcode = 0x70 // Unconditional jump: <offset:2>
	OpJumpZ      Opcode = 0x71 // Pop, jump if false: <offset:2>
	OpJumpPeekZ  Opcode = 0x72 // Jump keeping top if false, else pop: <offset:2>
	OpJumpPeekNZ Opcode = 0x73 // Jump keeping top if true, else pop: <offset:2>
	OpBreak      Opcode = 0x74 // Leave loop, unwinding blocks: <offset:2>
	OpContinue   Opcode = 0x75 // Continue loop, unwinding blocks: <offset:2>
	OpBlock      Opcode = 0x76 // Block header: <kind:1> <size:2>
	OpYield      Opcode = 0x77 // Suspend the coroutine once

	// ========================================================================
	// Modules (0xF0-0xFF)
	// ========================================================================

	OpImport Opcode = 0xF0 // Initialise imported module: <module:3>
)

// OpcodeInfo provides metadata about each opcode for encoding and validation.
type OpcodeInfo struct {
	Name   string // Human-readable name
	Widths []int  // Byte width of each operand
	// Pool is the operand holding a constant pool index, or -1.
	Pool int
}

// Size returns the encoded size of an instruction, opcode byte included.
func (i OpcodeInfo) Size() int {
	n := 1
	for _, w := range i.Widths {
		n += w
	}
	return n
}

func info(name string, pool int, widths ...int) OpcodeInfo {
	return OpcodeInfo{Name: name, Widths: widths, Pool: pool}
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpMark:     info("MARK", -1),
	OpPop:      info("POP", -1),
	OpConstant: info("CONSTANT", 0, 3),

	OpAdd:      info("ADD", -1),
	OpSub:      info("SUB", -1),
	OpMul:      info("MUL", -1),
	OpDiv:      info("DIV", -1),
	OpMod:      info("MOD", -1),
	OpLt:       info("LT", -1),
	OpLe:       info("LE", -1),
	OpGt:       info("GT", -1),
	OpGe:       info("GE", -1),
	OpEq:       info("EQ", -1),
	OpNe:       info("NE", -1),
	OpNot:      info("NOT", -1),
	OpUnaryNeg: info("UNARY_NEG", -1),

	OpGetVar:  info("GET_VAR", -1, 1),
	OpSetVar:  info("SET_VAR", -1, 1),
	OpDeclVar: info("DECL_VAR", 1, 1, 2),
	OpArgVar:  info("ARG_VAR", -1, 1),
	OpArgRef:  info("ARG_REF", -1, 1),
	OpRefVar:  info("REF_VAR", -1, 1),

	OpGetGVar:         info("GET_GVAR", -1, 3),
	OpSetGVar:         info("SET_GVAR", -1, 3),
	OpGetGVarImported: info("GET_GVAR_IMPORTED", 0, 2, 3),
	OpSetGVarImported: info("SET_GVAR_IMPORTED", 0, 2, 3),

	OpGetAttr:        info("GET_ATTR", -1, 2),
	OpSetAttr:        info("SET_ATTR", -1, 2),
	OpSetAttrInplace: info("SET_ATTR_INPLACE", -1, 2),
	OpArrIdx:         info("ARR_IDX", -1),
	OpArrIdxW:        info("ARR_IDX_W", -1),
	OpMapIdx:         info("MAP_IDX", -1),
	OpMapIdxW:        info("MAP_IDX_W", -1),
	OpArrAddInplace:  info("ARR_ADD_INPLACE", -1),
	OpMapAddInplace:  info("MAP_ADD_INPLACE", -1),

	OpNew:      info("NEW", 0, 3),
	OpTypeCast: info("TYPE_CAST", 0, 3),
	OpTypeAs:   info("TYPE_AS", 0, 3),
	OpTypeIs:   info("TYPE_IS", 0, 3),

	OpCall:             info("CALL", -1, 3, 4),
	OpCallNative:       info("CALL_NATIVE", -1, 3, 4),
	OpGetFunc:          info("GET_FUNC", 0, 3),
	OpGetFuncNative:    info("GET_FUNC_NATIVE", -1, 3),
	OpCallMethod:       info("CALL_METHOD", 0, 2, 4),
	OpCallMethodNative: info("CALL_METHOD_NATIVE", -1, 2, 4),
	OpCallMethodVirt:   info("CALL_METHOD_VIRT", -1, 2, 4),
	OpCallMethodIface:  info("CALL_METHOD_IFACE", 1, 2, 3, 4),
	OpCallPtr:          info("CALL_PTR", -1, 4),
	OpLambda:           info("LAMBDA", -1, 2),
	OpUseUpval:         info("USE_UPVAL", -1, 1, 1, 1),
	OpInitFrame:        info("INIT_FRAME", -1, 1),
	OpReturn:           info("RETURN", -1),
	OpReturnVal:        info("RETURN_VAL", -1, 1),
	OpDefArg:           info("DEF_ARG", -1, 1, 2),

	OpJump:       info("JUMP", -1, 2),
	OpJumpZ:      info("JUMP_Z", -1, 2),
	OpJumpPeekZ:  info("JUMP_PEEK_Z", -1, 2),
	OpJumpPeekNZ: info("JUMP_PEEK_NZ", -1, 2),
	OpBreak:      info("BREAK", -1, 2),
	OpContinue:   info("CONTINUE", -1, 2),
	OpBlock:      info("BLOCK", -1, 1, 2),
	OpYield:      info("YIELD", -1),

	OpImport: info("IMPORT", 0, 3),
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), Pool: -1}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is in the catalog.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Size returns the encoded length of the instruction. Markers take no space.
func (op Opcode) Size() int {
	if op == OpMark {
		return 0
	}
	return GetOpcodeInfo(op).Size()
}

// IsJump returns true if the first operand of op is a relative offset.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump, OpJumpZ, OpJumpPeekZ, OpJumpPeekNZ, OpBreak, OpContinue, OpLambda:
		return true
	}
	return false
}

// IsReturn returns true if this opcode leaves the frame.
func (op Opcode) IsReturn() bool {
	return op == OpReturn || op == OpReturnVal
}

// IsCall returns true if this opcode invokes a function.
func (op Opcode) IsCall() bool {
	return op >= OpCall && op <= OpCallPtr && op != OpGetFunc && op != OpGetFuncNative
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// ---------------------------------------------------------------------------
// Operand ranges
// ---------------------------------------------------------------------------

// OperandRange returns the inclusive signed range of an operand width.
func OperandRange(width int) (lo, hi int64) {
	bits := uint(8*width - 1)
	return -(1 << bits), 1<<bits - 1
}

// FitsWidth reports whether v can be encoded in width bytes.
func FitsWidth(v int64, width int) bool {
	lo, hi := OperandRange(width)
	return v >= lo && v <= hi
}
