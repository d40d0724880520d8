// Package scan implements the concurrent discover-hash-extract pipeline
// that reconciles on-backend reality with the cache: a single-file scan
// primitive, and a streaming scan that runs discovery and bounded
// concurrent processing side by side over a backend's listing.
package scan

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind names a stable scan failure category. Scan errors wrap the
// lower layer's own error as Cause.
type ErrorKind int

const (
	// ErrStorage wraps a storage.Error encountered while reading or
	// probing the backend.
	ErrStorage ErrorKind = iota
	// ErrCache wraps a cache.Error encountered while querying or
	// upserting.
	ErrCache
	// ErrCompression wraps a compression.Error encountered while
	// decompressing a file's bytes.
	ErrCompression
	// ErrExtract wraps an extract.Error encountered while parsing a
	// document's metadata.
	ErrExtract
	// ErrScanFailed is a generic wrapper for a scan that could not
	// complete for a reason not captured by the other kinds.
	ErrScanFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStorage:
		return "storage"
	case ErrCache:
		return "cache"
	case ErrCompression:
		return "compression"
	case ErrExtract:
		return "extract"
	case ErrScanFailed:
		return "scan_failed"
	default:
		return "unknown"
	}
}

// Error is the scan package's error type. Path identifies the file being
// scanned when known.
type Error struct {
	Kind  ErrorKind
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("scan: %s (path %q): %v", e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("scan: %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrapStorage(path string, cause error) error {
	return &Error{Kind: ErrStorage, Path: path, Cause: errors.WithStack(cause)}
}

func wrapCache(path string, cause error) error {
	return &Error{Kind: ErrCache, Path: path, Cause: errors.WithStack(cause)}
}

func wrapCompression(path string, cause error) error {
	return &Error{Kind: ErrCompression, Path: path, Cause: errors.WithStack(cause)}
}

func wrapExtract(path string, cause error) error {
	return &Error{Kind: ErrExtract, Path: path, Cause: errors.WithStack(cause)}
}
