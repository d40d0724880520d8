// Package organize implements the pipeline that relocates cached files to
// their template-derived correct paths, with recursive conflict
// resolution and optional compression transcoding.
package organize

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind names a stable organize failure category.
type ErrorKind int

const (
	// ErrStorage wraps a storage.Error, including the file/backend target
	// mismatch check at the top of organize_file.
	ErrStorage ErrorKind = iota
	// ErrCache wraps a cache.Error.
	ErrCache
	// ErrTemplate wraps a template.Error encountered rendering the
	// correct path.
	ErrTemplate
	// ErrCompression wraps a compression.Error encountered transcoding.
	ErrCompression
	// ErrScan wraps a scan.Error from the recursive single-file scan
	// invoked to populate a missing cache entry.
	ErrScan
	// ErrConflict indicates the target path is occupied by a file that
	// cannot be reconciled with the incoming one: a cycle or
	// over-depth recursion, or an existing occupant that already claims
	// the slot.
	ErrConflict
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStorage:
		return "storage"
	case ErrCache:
		return "cache"
	case ErrTemplate:
		return "template"
	case ErrCompression:
		return "compression"
	case ErrScan:
		return "scan"
	case ErrConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the organize package's error type.
type Error struct {
	Kind  ErrorKind
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("organize: %s (path %q): %v", e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("organize: %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrapStorage(path string, cause error) error {
	return &Error{Kind: ErrStorage, Path: path, Cause: errors.WithStack(cause)}
}

func wrapCache(path string, cause error) error {
	return &Error{Kind: ErrCache, Path: path, Cause: errors.WithStack(cause)}
}

func wrapTemplate(path string, cause error) error {
	return &Error{Kind: ErrTemplate, Path: path, Cause: errors.WithStack(cause)}
}

func wrapCompression(path string, cause error) error {
	return &Error{Kind: ErrCompression, Path: path, Cause: errors.WithStack(cause)}
}

func wrapScan(path string, cause error) error {
	return &Error{Kind: ErrScan, Path: path, Cause: errors.WithStack(cause)}
}

func conflictError(path string, cause error) error {
	return &Error{Kind: ErrConflict, Path: path, Cause: errors.WithStack(cause)}
}

type organizeError string

func (e organizeError) Error() string { return string(e) }

var (
	errTargetMismatch = organizeError("file's target does not match backend name")
	errCycle          = organizeError("conflict chain revisits a path already in the depth stack")
	errTooDeep        = organizeError("conflict chain exceeds the maximum recursion depth")
	errSlotClaimed    = organizeError("existing occupant already claims this target path")
)
