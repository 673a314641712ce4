package bytecode

import (
	"fmt"
)

// InvariantError reports a compiler bug: an operand that does not fit its
// width, a wrong operand count, or a reference to an instruction that was
// never emitted. It is raised with panic and is not meant to be recovered
// by callers of Compile.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "bytecode invariant violated: " + e.Msg
}

func invariant(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one opcode with its operands. Pos is the absolute byte
// position and is only valid once the owning stream has been resolved.
type Instruction struct {
	Op       Opcode
	Operands []int64
	Line     int
	Pos      int
}

// SetOperand stores v in operand i, checking it against the opcode's
// declared width.
func (in *Instruction) SetOperand(i int, v int64) {
	widths := GetOpcodeInfo(in.Op).Widths
	if i < 0 || i >= len(widths) {
		invariant("%s has no operand %d", in.Op, i)
	}
	if !FitsWidth(v, widths[i]) {
		lo, hi := OperandRange(widths[i])
		invariant("%s operand %d: %d is outside [%d, %d]", in.Op, i, v, lo, hi)
	}
	in.Operands[i] = v
}

// Operand returns operand i.
func (in *Instruction) Operand(i int) int64 {
	if i < 0 || i >= len(in.Operands) {
		invariant("%s has no operand %d", in.Op, i)
	}
	return in.Operands[i]
}

// Rewrite replaces the opcode and operands in place. Offset requests and
// patch callbacks registered against in stay attached.
func (in *Instruction) Rewrite(op Opcode, operands ...int64) {
	widths := GetOpcodeInfo(op).Widths
	if !op.Valid() || len(operands) != len(widths) {
		invariant("%s takes %d operands, got %d", op, len(widths), len(operands))
	}
	in.Op = op
	in.Operands = make([]int64, len(widths))
	for i, v := range operands {
		in.SetOperand(i, v)
	}
}

// Size returns the encoded length of the instruction.
func (in *Instruction) Size() int {
	return in.Op.Size()
}

func (in *Instruction) String() string {
	return fmt.Sprintf("%s %v", in.Op, in.Operands)
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

// LinePos maps a byte position to the source line of the instruction
// starting there. Entries are only recorded when the line changes.
type LinePos struct {
	Pos  int `cbor:"1,keyasint"`
	Line int `cbor:"2,keyasint"`
}

type offsetRequest struct {
	src, dst *Instruction
	operand  int
}

// Stream is an append-only list of instructions. Jumps are emitted with a
// zero operand and an offset request; Resolve assigns positions and then
// rewrites every requested operand as dst.Pos - src.Pos. Patch callbacks
// run after that, for values known only once the whole stream is laid out.
type Stream struct {
	instrs   []*Instruction
	owned    map[*Instruction]bool
	requests []offsetRequest
	patches  []func()
	resolved bool
	size     int
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{owned: make(map[*Instruction]bool)}
}

// Emit appends an instruction. The number of operands must match the
// opcode's declaration.
func (s *Stream) Emit(op Opcode, line int, operands ...int64) *Instruction {
	if s.resolved {
		invariant("emit %s into a resolved stream", op)
	}
	if !op.Valid() {
		invariant("unknown opcode 0x%02X", byte(op))
	}
	widths := GetOpcodeInfo(op).Widths
	if len(operands) != len(widths) {
		invariant("%s takes %d operands, got %d", op, len(widths), len(operands))
	}
	in := &Instruction{Op: op, Operands: make([]int64, len(widths)), Line: line, Pos: -1}
	for i, v := range operands {
		in.SetOperand(i, v)
	}
	s.instrs = append(s.instrs, in)
	s.owned[in] = true
	return in
}

// Mark appends a zero-size jump target.
func (s *Stream) Mark(line int) *Instruction {
	return s.Emit(OpMark, line)
}

// Len returns the number of instructions, markers included.
func (s *Stream) Len() int { return len(s.instrs) }

// Instructions returns the emitted instructions in order.
func (s *Stream) Instructions() []*Instruction { return s.instrs }

// Last returns the last real (non-marker) instruction, or nil.
func (s *Stream) Last() *Instruction {
	for i := len(s.instrs) - 1; i >= 0; i-- {
		if s.instrs[i].Op != OpMark {
			return s.instrs[i]
		}
	}
	return nil
}

// Contains reports whether in was emitted into s.
func (s *Stream) Contains(in *Instruction) bool { return s.owned[in] }

// RequestOffset asks Resolve to store dst.Pos - src.Pos in src's operand.
func (s *Stream) RequestOffset(src, dst *Instruction, operand int) {
	if !s.owned[src] {
		invariant("offset source %v was never emitted", src)
	}
	if !s.owned[dst] {
		invariant("offset destination %v was never emitted", dst)
	}
	if operand < 0 || operand >= len(src.Operands) {
		invariant("%s has no operand %d", src.Op, operand)
	}
	s.requests = append(s.requests, offsetRequest{src: src, dst: dst, operand: operand})
}

// OnResolve registers a patch callback run after offsets are applied.
func (s *Stream) OnResolve(fn func()) {
	s.patches = append(s.patches, fn)
}

// Resolve assigns positions, applies offset requests and runs patch
// callbacks. It may only run once.
func (s *Stream) Resolve() {
	if s.resolved {
		invariant("stream resolved twice")
	}
	s.resolved = true
	pos := 0
	for _, in := range s.instrs {
		in.Pos = pos
		pos += in.Size()
	}
	s.size = pos
	for _, r := range s.requests {
		r.src.SetOperand(r.operand, int64(r.dst.Pos-r.src.Pos))
	}
	for _, fn := range s.patches {
		fn()
	}
}

// Resolved reports whether positions are valid.
func (s *Stream) Resolved() bool { return s.resolved }

// Bytes encodes the resolved stream. Operands are little-endian two's
// complement in their declared width.
func (s *Stream) Bytes() []byte {
	if !s.resolved {
		invariant("encoding an unresolved stream")
	}
	out := make([]byte, 0, s.size)
	for _, in := range s.instrs {
		if in.Op == OpMark {
			continue
		}
		out = append(out, byte(in.Op))
		widths := GetOpcodeInfo(in.Op).Widths
		for i, w := range widths {
			out = appendOperand(out, in.Operands[i], w)
		}
	}
	return out
}

// Lines returns the position to line map of the resolved stream.
func (s *Stream) Lines() []LinePos {
	if !s.resolved {
		invariant("line map of an unresolved stream")
	}
	var out []LinePos
	last := -1
	for _, in := range s.instrs {
		if in.Op == OpMark || in.Line == last {
			continue
		}
		out = append(out, LinePos{Pos: in.Pos, Line: in.Line})
		last = in.Line
	}
	return out
}

// Each calls fn for every instruction, markers included.
func (s *Stream) Each(fn func(*Instruction)) {
	for _, in := range s.instrs {
		fn(in)
	}
}

func appendOperand(out []byte, v int64, width int) []byte {
	u := uint64(v)
	for i := 0; i < width; i++ {
		out = append(out, byte(u>>(8*i)))
	}
	return out
}

func readOperand(code []byte, width int) int64 {
	var u uint64
	for i := 0; i < width; i++ {
		u |= uint64(code[i]) << (8 * i)
	}
	shift := uint(64 - 8*width)
	return int64(u<<shift) >> shift
}
