// Package compression is the facade over the codecs the library stores
// documents under: format detection, streaming encode/decode, in-memory
// helpers, and a peekable reader supporting a decide-then-stream
// workflow.
package compression

import (
	"bytes"
	"strings"
)

// Format identifies a compression codec. The zero value is None.
type Format int

const (
	// None indicates the bytes are stored uncompressed.
	None Format = iota
	// Gzip is fully supported for both compression and decompression.
	Gzip
	// Bzip2 is decode-only: no actively maintained pure-Go bzip2 encoder
	// appears anywhere in the library's dependency pack, so Compress
	// returns an ErrorKindDisabledFormat error for this format. See
	// DESIGN.md.
	Bzip2
	// Zstd is fully supported for both compression and decompression.
	Zstd
	// Xz is fully supported for both compression and decompression.
	Xz
)

// String returns the canonical lowercase name of the format.
func (f Format) String() string {
	switch f {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Zstd:
		return "zstd"
	case Xz:
		return "xz"
	default:
		return "unknown"
	}
}

// Extension returns the file extension suffix (including the leading dot)
// that this format appends to a base filename, or the empty string for
// None.
func (f Format) Extension() string {
	switch f {
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	case Zstd:
		return ".zst"
	case Xz:
		return ".xz"
	default:
		return ""
	}
}

// formatsByExtension maps a recognized suffix to its format. No key is a
// suffix of another, so the order in which DetectFromPath ranges over
// the map does not affect the result.
var formatsByExtension = map[string]Format{
	".gz":  Gzip,
	".bz2": Bzip2,
	".zst": Zstd,
	".xz":  Xz,
}

// DetectFromPath inspects a path's trailing extension and returns the
// detected format, the base path with the compression suffix stripped, and
// whether a known suffix was found. An unrecognized suffix is reported as
// None with the path unchanged.
func DetectFromPath(path string) (format Format, base string, matched bool) {
	for ext, f := range formatsByExtension {
		if strings.HasSuffix(path, ext) {
			return f, strings.TrimSuffix(path, ext), true
		}
	}
	return None, path, false
}

// magicSignatures maps the leading bytes of a compressed stream to its
// format. Order matters only in that no signature here is a prefix of
// another.
var magicSignatures = []struct {
	format Format
	magic  []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Bzip2, []byte("BZh")},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{Xz, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
}

// DetectFromMagic inspects up to the first few bytes of a stream (as
// produced by Backend.ReadHead) and returns the detected format. It returns
// None if no known signature matches, which is a legitimate outcome for
// uncompressed content and is not itself an error.
func DetectFromMagic(head []byte) Format {
	for _, sig := range magicSignatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.format
		}
	}
	return None
}
