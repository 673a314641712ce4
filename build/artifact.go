package build

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/chazu/loom/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Artifact Format
// ---------------------------------------------------------------------------
//
//	tag:8 version:32 count:32
//	count x [ encoding:8 name:string payload:bytes ]
//
// Strings and byte payloads are [length:32 | bytes]. Integers are little
// endian. A ref payload is the path of the module cache file.

// ArtifactTag is the first byte of every artifact.
const ArtifactTag byte = 0x4C // 'L'

// ArtifactVersion is the artifact layout version.
const ArtifactVersion uint32 = 1

var (
	ErrBadArtifact     = errors.New("invalid artifact")
	ErrArtifactVersion = errors.New("artifact version mismatch")
	ErrUnexpectedEOF   = errors.New("unexpected end of artifact data")
	ErrUnknownEncoding = errors.New("unknown module encoding")
)

// Artifact is a decoded multi-module artifact.
type Artifact struct {
	Version uint32
	Modules []ArtifactModule
}

// ArtifactModule is one module entry. Data holds the compiled module
// bytes whatever the encoding; Ref is the cache path of a ref entry.
type ArtifactModule struct {
	Name     string
	Encoding Encoding
	Ref      string
	Data     []byte
}

// Module decodes the entry's compiled module.
func (m *ArtifactModule) Module() (*bytecode.CompiledModule, error) {
	return bytecode.UnmarshalModule(m.Data)
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// artifactEntry is one module handed to the writer.
type artifactEntry struct {
	name    string
	payload []byte // compiled module bytes
	ref     string // module cache path
}

func encodeArtifact(entries []artifactEntry, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(ArtifactTag)
	writeUint32(&buf, ArtifactVersion)
	writeUint32(&buf, uint32(len(entries)))

	for _, e := range entries {
		buf.WriteByte(byte(enc))
		writeBytes(&buf, []byte(e.name))
		switch enc {
		case EncodingRaw:
			writeBytes(&buf, e.payload)
		case EncodingLZ4:
			packed, err := compressLZ4(e.payload)
			if err != nil {
				return nil, fmt.Errorf("compress %s: %w", e.name, err)
			}
			writeBytes(&buf, packed)
		case EncodingRef:
			if e.ref == "" {
				return nil, fmt.Errorf("module %s has no cache file to refer to", e.name)
			}
			writeBytes(&buf, []byte(e.ref))
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownEncoding, enc)
		}
	}
	return buf.Bytes(), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// ReadArtifact reads and decodes the artifact at path. LZ4 entries are
// decompressed and ref entries are loaded from their cache files.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return DecodeArtifact(data)
}

// DecodeArtifact decodes artifact bytes.
func DecodeArtifact(data []byte) (*Artifact, error) {
	r := &artifactReader{data: data}
	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if tag != ArtifactTag {
		return nil, fmt.Errorf("%w: tag 0x%02X", ErrBadArtifact, tag)
	}
	version, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if version != ArtifactVersion {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrArtifactVersion, ArtifactVersion, version)
	}
	count, err := r.readUint32()
	if err != nil {
		return nil, err
	}

	a := &Artifact{Version: version}
	for i := uint32(0); i < count; i++ {
		m, err := r.readModule()
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		a.Modules = append(a.Modules, m)
	}
	if r.offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadArtifact, len(data)-r.offset)
	}
	return a, nil
}

type artifactReader struct {
	data   []byte
	offset int
}

func (r *artifactReader) readByte() (byte, error) {
	if r.offset >= len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *artifactReader) readUint32() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

// readBytes reads a length-prefixed byte string.
func (r *artifactReader) readBytes() ([]byte, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if r.offset+int(n) > len(r.data) {
		return nil, ErrUnexpectedEOF
	}
	b := r.data[r.offset : r.offset+int(n)]
	r.offset += int(n)
	return b, nil
}

func (r *artifactReader) readModule() (ArtifactModule, error) {
	var m ArtifactModule
	enc, err := r.readByte()
	if err != nil {
		return m, err
	}
	m.Encoding = Encoding(enc)
	name, err := r.readBytes()
	if err != nil {
		return m, err
	}
	m.Name = string(name)
	payload, err := r.readBytes()
	if err != nil {
		return m, err
	}

	switch m.Encoding {
	case EncodingRaw:
		m.Data = payload
	case EncodingLZ4:
		if m.Data, err = decompressLZ4(payload); err != nil {
			return m, fmt.Errorf("decompress %s: %w", m.Name, err)
		}
	case EncodingRef:
		m.Ref = string(payload)
		if m.Data, err = os.ReadFile(m.Ref); err != nil {
			return m, fmt.Errorf("load %s: %w", m.Name, err)
		}
	default:
		return m, fmt.Errorf("%w: %d", ErrUnknownEncoding, enc)
	}
	return m, nil
}
