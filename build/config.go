package build

import (
	"fmt"
	"runtime"

	"github.com/chazu/loom/analyzer"
	"github.com/chazu/loom/types"
)

// Encoding selects how a module's bytes are stored in the artifact.
type Encoding uint8

const (
	// EncodingRaw stores the compiled module bytes as they are.
	EncodingRaw Encoding = iota
	// EncodingLZ4 stores an LZ4 frame of the module bytes.
	EncodingLZ4
	// EncodingRef stores the path of the module's cache file.
	EncodingRef
)

var encodingNames = [...]string{"raw", "lz4", "ref"}

func (e Encoding) String() string {
	if int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// ParseEncoding parses an encoding name. The empty string means raw.
func ParseEncoding(s string) (Encoding, error) {
	if s == "" {
		return EncodingRaw, nil
	}
	for i, name := range encodingNames {
		if name == s {
			return Encoding(i), nil
		}
	}
	return 0, fmt.Errorf("unknown encoding %q (want raw, lz4 or ref)", s)
}

// Config describes one project build.
type Config struct {
	// Files are the source files, in artifact order.
	Files []string

	// Include lists the directories imports are searched in. Module names
	// are file paths relative to the first include directory holding
	// the file.
	Include []string

	// CacheDir holds the per-file imports and module caches. Empty
	// disables caching.
	CacheDir string

	// Output is the artifact path. Empty skips writing an artifact.
	Output string

	// Workers bounds the number of parse and compile partitions. Zero
	// means one per CPU.
	Workers int

	// Deterministic orders artifact modules by file path instead of the
	// order of Files.
	Deterministic bool

	Encoding Encoding

	// Defines is the preprocessor define set.
	Defines map[string]bool

	// ErrorFile receives the diagnostics as JSON lines when the build
	// fails; "-" means stderr.
	ErrorFile string

	// Registry holds the native functions. Nil means the standard one.
	Registry *types.Registry

	// PostProcess, when set, sees every freshly analyzed file before it
	// is compiled. An error becomes a build error for that file.
	PostProcess func(res *analyzer.Result) error

	// CompilerPath is the binary whose modification time invalidates the
	// module cache. Empty means the running executable.
	CompilerPath string
}

func (c *Config) workers(files int) int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > files {
		n = files
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Config) validate() error {
	if c.Encoding > EncodingRef {
		return fmt.Errorf("invalid encoding %d", c.Encoding)
	}
	if c.Encoding == EncodingRef && c.CacheDir == "" {
		return fmt.Errorf("encoding %s needs a cache directory", c.Encoding)
	}
	return nil
}
