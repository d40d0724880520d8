// Package fileinfo models the physical-file descriptor and its
// typestate-tracked hash-computation progress.
//
// Go has no compile-time typestate mechanism, so the three stages
// (Discovered, Read, Processed) are represented as three distinct record
// types, with one-way conversion functions between them, preferring small
// explicit types over a single type with optional fields. A caller that
// wants to accept "any stage" takes a Meta value (the shared base) rather
// than an interface.
package fileinfo

import (
	"time"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/pathutil"
	"github.com/pkg/errors"
)

// Meta is the physical file descriptor shared by every stage.
type Meta struct {
	// Target is the name of the backend the file belongs to.
	Target string
	// Path is the file's validated, relative path within the backend.
	Path string
	// Compression is the format the file's bytes are stored under.
	Compression compression.Format
	// Size is the size in bytes of the file's stored (compressed) bytes.
	Size int64
	// DiscoveredAt is when this descriptor was produced.
	DiscoveredAt time.Time
}

// NewMeta constructs a Meta, validating Path.
func NewMeta(target, path string, format compression.Format, size int64, discoveredAt time.Time) (Meta, error) {
	validated, err := pathutil.Validate(path)
	if err != nil {
		return Meta{}, errors.Wrap(err, "fileinfo: invalid path")
	}
	return Meta{
		Target:       target,
		Path:         validated,
		Compression:  format,
		Size:         size,
		DiscoveredAt: discoveredAt,
	}, nil
}

// Discovered is a file known only from a backend listing: no hashes have
// been computed.
type Discovered struct {
	Meta
}

// Read is a Discovered file whose compressed bytes have been hashed.
type Read struct {
	Meta
	// FileHash is the BLAKE3 hex digest of the file's stored (compressed)
	// bytes. It is always 64 lowercase hex characters.
	FileHash string
}

// Processed is a Read file whose decompressed content has also been hashed
// and identified against a Version.
type Processed struct {
	Meta
	FileHash string
	// ContentHash is the BLAKE3 hex digest of the decompressed document
	// bytes; it is the identity of the associated Version.
	ContentHash string
}

// ToRead advances a Discovered file to Read by attaching a file hash. The
// input is consumed (by value receiver semantics this just means the
// caller should not continue to use the Discovered value as current).
func (d Discovered) ToRead(fileHash string) Read {
	return Read{Meta: d.Meta, FileHash: fileHash}
}

// ToProcessed advances a Read file to Processed by attaching a content
// hash.
func (r Read) ToProcessed(contentHash string) Processed {
	return Processed{Meta: r.Meta, FileHash: r.FileHash, ContentHash: contentHash}
}

// StripHashes reverts a Processed file to Discovered, discarding both
// hashes. This is used whenever a file is about to be re-scanned from
// scratch, so that stale hash fields can never leak into logic that
// assumes they reflect the current bytes.
func (p Processed) StripHashes() Discovered {
	return Discovered{Meta: p.Meta}
}

// StripHashes reverts a Read file to Discovered, discarding the file hash.
func (r Read) StripHashes() Discovered {
	return Discovered{Meta: r.Meta}
}
