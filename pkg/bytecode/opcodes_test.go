package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	// Ensure every defined opcode has metadata
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if len(info.Widths) > 3 {
			t.Errorf("%s has %d operands, want at most 3", op, len(info.Widths))
		}
		for _, w := range info.Widths {
			if w < 1 || w > 4 {
				t.Errorf("%s has operand width %d", op, w)
			}
		}
		if info.Pool >= len(info.Widths) {
			t.Errorf("%s pool operand %d out of range", op, info.Pool)
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	count := OpcodeCount()
	if count < 50 {
		t.Errorf("Expected at least 50 opcodes, got %d", count)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpPop, "POP"},
		{OpConstant, "CONSTANT"},
		{OpAdd, "ADD"},
		{OpJumpZ, "JUMP_Z"},
		{OpCallMethodIface, "CALL_METHOD_IFACE"},
		{OpUseUpval, "USE_UPVAL"},
		{OpBlock, "BLOCK"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE) // Not defined
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if op.Valid() {
		t.Error("0xEE should not be valid")
	}
}

func TestOpcodeSize(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpMark, 0},
		{OpPop, 1},
		{OpConstant, 4},
		{OpGetVar, 2},
		{OpDeclVar, 4},
		{OpGetGVarImported, 6},
		{OpCall, 8},
		{OpCallMethodIface, 10},
		{OpUseUpval, 4},
		{OpBlock, 4},
		{OpJump, 3},
	}

	for _, tt := range tests {
		if got := tt.op.Size(); got != tt.want {
			t.Errorf("%s.Size() = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestOperandRange(t *testing.T) {
	tests := []struct {
		width  int
		lo, hi int64
	}{
		{1, -128, 127},
		{2, -32768, 32767},
		{3, -8388608, 8388607},
		{4, -2147483648, 2147483647},
	}
	for _, tt := range tests {
		lo, hi := OperandRange(tt.width)
		if lo != tt.lo || hi != tt.hi {
			t.Errorf("OperandRange(%d) = [%d, %d], want [%d, %d]", tt.width, lo, hi, tt.lo, tt.hi)
		}
	}
}
