// Package storage defines the uniform storage-backend capability consumed
// by the scan and organize pipelines, along with a local-filesystem
// implementation, an S3-compatible implementation, and read-only /
// extension-filter decorators.
package storage

import (
	"context"
	"io"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/fileinfo"
)

// Entry is one item yielded by a streaming list operation. Err is set
// (with Info left zero) when this particular item could not be produced;
// the stream continues after a non-fatal error.
type Entry struct {
	Info fileinfo.Discovered
	Err  error
}

// Backend is the uniform storage capability implemented by the local
// filesystem and S3-compatible backends, and by the read-only and
// extension-filter decorators that wrap them.
//
// Every path argument is validated against pathutil rules before use; a
// validation failure is returned as an *Error with Kind ErrorKindInvalidPath
// without reaching the underlying transport.
type Backend interface {
	// Name returns a stable identifier for this backend, used as the
	// "target" qualifier in cache rows.
	Name() string

	// ListStream lazily lists files under prefix (or the whole backend if
	// prefix is empty), sending one Entry per discovered file. The channel
	// is closed when listing completes or the context is cancelled. A
	// missing prefix yields an empty, successfully-closed stream rather
	// than an error.
	ListStream(ctx context.Context, prefix string) <-chan Entry

	// List materializes ListStream into a slice.
	List(ctx context.Context, prefix string) ([]fileinfo.Discovered, error)

	// Exists reports whether path refers to an existing object.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the full contents at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// ReadHead returns up to n leading bytes at path, for magic-byte
	// sniffing. It is not valid input to a decompressor on its own.
	ReadHead(ctx context.Context, path string, n int) ([]byte, error)

	// Reader returns a synchronous reader over path's bytes.
	Reader(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores data at path, creating parent directories/prefixes as
	// needed and overwriting any existing object.
	Write(ctx context.Context, path string, data []byte) error

	// Writer returns a synchronous writer over path. The caller must
	// Close it to finalize the write; some implementations (S3) only
	// upload on Close.
	Writer(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes path.
	Delete(ctx context.Context, path string) error

	// Rename moves the object at from to to, overwriting any existing
	// object at to. On object stores this is copy-then-delete and is not
	// atomic; see the S3 implementation for the delete-failure policy.
	Rename(ctx context.Context, from, to string) error

	// Stat returns a Discovered descriptor for path without reading its
	// contents.
	Stat(ctx context.Context, path string) (fileinfo.Discovered, error)
}

// detectCompression chooses the Format to record on a freshly-discovered
// file purely from its path's extension, falling back to None.
func detectCompression(path string) compression.Format {
	format, _, _ := compression.DetectFromPath(path)
	return format
}
