package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/loom/types"
)

// FormatVersion is the compiled module format version.
// Increment when making incompatible changes to the format.
const FormatVersion = 1

// ErrVersion is returned when a module was written by another format
// version.
var ErrVersion = errors.New("bytecode: unsupported module version")

// FuncAddr is the entry position of a compiled function in Code.
type FuncAddr struct {
	Name string `cbor:"1,keyasint"`
	Pos  int    `cbor:"2,keyasint"`
}

// CompiledModule is the output of Compile for one source file. It
// round-trips unchanged through Marshal and UnmarshalModule.
type CompiledModule struct {
	Version   int                    `cbor:"1,keyasint"`
	Name      string                 `cbor:"2,keyasint"`
	File      string                 `cbor:"3,keyasint,omitempty"`
	Imports   []string               `cbor:"4,keyasint,omitempty"`
	Namespace *types.NamespaceRecord `cbor:"5,keyasint,omitempty"`
	Constants []Constant             `cbor:"6,keyasint,omitempty"`
	Init      []byte                 `cbor:"7,keyasint,omitempty"`
	Code      []byte                 `cbor:"8,keyasint,omitempty"`
	InitLines []LinePos              `cbor:"9,keyasint,omitempty"`
	Lines     []LinePos              `cbor:"10,keyasint,omitempty"`
	Funcs     []FuncAddr             `cbor:"11,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("bytecode: cbor enc mode: " + err.Error())
	}
	cborEncMode = em
}

// Marshal encodes m as canonical CBOR, so equal modules encode to equal
// bytes.
func (m *CompiledModule) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalModule decodes a module written by Marshal.
func UnmarshalModule(data []byte) (*CompiledModule, error) {
	var m CompiledModule
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, m.Version)
	}
	return &m, nil
}

// FuncPos returns the entry position of the named function.
func (m *CompiledModule) FuncPos(name string) (int, bool) {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f.Pos, true
		}
	}
	return 0, false
}

// LineAt returns the source line of the code byte at pos, or 0.
func LineAt(lines []LinePos, pos int) int {
	line := 0
	for _, lp := range lines {
		if lp.Pos > pos {
			break
		}
		line = lp.Line
	}
	return line
}
