package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// ErrStaleCache is returned when a cache file is older than what it was
// derived from.
var ErrStaleCache = errors.New("stale cache entry")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("build: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// cachePaths are the two cache files of one source file. Both are named
// after a hash of the source's absolute path.
type cachePaths struct {
	imports string
	module  string
}

func newCachePaths(dir, abs string) cachePaths {
	if dir == "" {
		return cachePaths{}
	}
	key := fmt.Sprintf("%016x", xxh3.HashString(abs))
	return cachePaths{
		imports: filepath.Join(dir, key+".imports"),
		module:  filepath.Join(dir, key+".module"),
	}
}

func (c cachePaths) enabled() bool { return c.module != "" }

// importsRecord is the content of an imports cache file.
type importsRecord struct {
	Imports []string `cbor:"1,keyasint,omitempty"`
}

// readImportsCache returns the import paths cached for a source modified
// at srcTime.
func readImportsCache(path string, srcTime time.Time) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if srcTime.After(info.ModTime()) {
		return nil, ErrStaleCache
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec importsRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec.Imports, nil
}

func writeImportsCache(path string, imports []string) error {
	data, err := cborEncMode.Marshal(&importsRecord{Imports: imports})
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// moduleCacheTime returns the modification time of a module cache file,
// or the zero time when there is none.
func moduleCacheTime(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// writeAtomic writes data next to path and renames it into place, so
// readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
