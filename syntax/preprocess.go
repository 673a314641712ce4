package syntax

import (
	"fmt"
	"strings"
)

// Preprocess strips `#if NAME` / `#else` / `#endif` blocks according to
// defines. Directive lines and inactive lines are blanked rather than
// removed so line numbers in the output match the input.
func Preprocess(src string, defines map[string]bool) (string, error) {
	if !strings.Contains(src, "#") {
		return src, nil
	}

	type frame struct {
		active   bool // this branch is being kept
		parent   bool // enclosing context is active
		seenElse bool
	}

	lines := strings.Split(src, "\n")
	var stack []frame
	active := true

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#if "):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "#if "))
			negate := strings.HasPrefix(name, "!")
			name = strings.TrimPrefix(name, "!")
			cond := defines[name] != negate
			stack = append(stack, frame{active: active && cond, parent: active})
			active = active && cond
			lines[i] = ""
		case trimmed == "#else":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #else without #if", i+1)
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return "", fmt.Errorf("line %d: duplicate #else", i+1)
			}
			top.seenElse = true
			top.active = top.parent && !top.active
			active = top.active
			lines[i] = ""
		case trimmed == "#endif":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #endif without #if", i+1)
			}
			active = stack[len(stack)-1].parent
			stack = stack[:len(stack)-1]
			lines[i] = ""
		default:
			if !active {
				lines[i] = ""
			}
		}
	}

	if len(stack) > 0 {
		return "", fmt.Errorf("unterminated #if")
	}
	return strings.Join(lines, "\n"), nil
}
