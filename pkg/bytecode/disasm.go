package bytecode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTruncated is returned when code ends inside an instruction.
var ErrTruncated = errors.New("bytecode: truncated instruction")

// Decoded is one instruction read back from encoded code.
type Decoded struct {
	Pos      int
	Op       Opcode
	Operands []int64
}

// Target returns the absolute destination of a jump, lambda skip or block
// end.
func (d Decoded) Target() (int, bool) {
	switch {
	case d.Op.IsJump():
		return d.Pos + int(d.Operands[0]), true
	case d.Op == OpDefArg, d.Op == OpBlock:
		return d.Pos + int(d.Operands[1]), true
	}
	return 0, false
}

// Decode splits encoded code into instructions.
func Decode(code []byte) ([]Decoded, error) {
	var out []Decoded
	for pos := 0; pos < len(code); {
		op := Opcode(code[pos])
		if !op.Valid() || op == OpMark {
			return out, fmt.Errorf("bytecode: unknown opcode 0x%02X at %d", byte(op), pos)
		}
		info := GetOpcodeInfo(op)
		if pos+info.Size() > len(code) {
			return out, fmt.Errorf("%w: %s at %d", ErrTruncated, op, pos)
		}
		d := Decoded{Pos: pos, Op: op, Operands: make([]int64, len(info.Widths))}
		at := pos + 1
		for i, w := range info.Widths {
			d.Operands[i] = readOperand(code[at:], w)
			at += w
		}
		out = append(out, d)
		pos = at
	}
	return out, nil
}

// Disassemble returns a human-readable listing of the module.
func Disassemble(m *CompiledModule) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; === %s ===\n", m.Name))
	sb.WriteString(fmt.Sprintf("; Loom Bytecode v%d\n", m.Version))
	if len(m.Imports) > 0 {
		sb.WriteString("; Imports: " + strings.Join(m.Imports, ", ") + "\n")
	}
	sb.WriteString("\n")

	// Constants
	if len(m.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range m.Constants {
			display := c.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("; Init:\n")
	disassembleCode(&sb, m, m.Init, m.InitLines, nil)

	labels := make(map[int]string, len(m.Funcs))
	for _, f := range m.Funcs {
		labels[f.Pos] = f.Name
	}
	sb.WriteString("\n; Code:\n")
	disassembleCode(&sb, m, m.Code, m.Lines, labels)
	return sb.String()
}

func disassembleCode(sb *strings.Builder, m *CompiledModule, code []byte, lines []LinePos, labels map[int]string) {
	ins, err := Decode(code)
	lastLine := 0
	for _, d := range ins {
		if name, ok := labels[d.Pos]; ok {
			sb.WriteString(fmt.Sprintf("%s:\n", name))
		}
		text := formatInstruction(m, d)
		if line := LineAt(lines, d.Pos); line != lastLine {
			sb.WriteString(fmt.Sprintf("%04X  %-40s ; line %d\n", d.Pos, text, line))
			lastLine = line
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", d.Pos, text))
		}
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf("; error: %v\n", err))
	}
}

// formatInstruction renders one instruction, annotating jump targets and
// constant pool operands.
func formatInstruction(m *CompiledModule, d Decoded) string {
	var sb strings.Builder
	sb.WriteString(d.Op.String())
	for _, v := range d.Operands {
		sb.WriteString(fmt.Sprintf(" %d", v))
	}
	if target, ok := d.Target(); ok {
		sb.WriteString(fmt.Sprintf(" -> %04X", target))
	}
	if p := GetOpcodeInfo(d.Op).Pool; p >= 0 {
		idx := int(d.Operands[p])
		if idx >= 0 && idx < len(m.Constants) {
			sb.WriteString(" ; " + m.Constants[idx].String())
		}
	}
	return sb.String()
}
