package storage

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind enumerates the stable error categories for storage backends.
type ErrorKind int

const (
	// ErrorKindNotFound indicates the requested path does not exist.
	ErrorKindNotFound ErrorKind = iota
	// ErrorKindPermissionDenied indicates the backend rejected the
	// operation for lack of authorization.
	ErrorKindPermissionDenied
	// ErrorKindAlreadyExists indicates a create-only operation found an
	// existing object at the target path.
	ErrorKindAlreadyExists
	// ErrorKindIO indicates a local I/O failure (disk, file handle).
	ErrorKindIO
	// ErrorKindNetwork indicates a transport-level failure talking to a
	// remote backend.
	ErrorKindNetwork
	// ErrorKindBackendSpecific indicates a failure reported by the
	// backend's SDK that doesn't map cleanly onto another category.
	ErrorKindBackendSpecific
	// ErrorKindInvalidPath indicates the path failed pathutil validation.
	ErrorKindInvalidPath
	// ErrorKindFilteredPath indicates the extension-filter decorator
	// rejected the path.
	ErrorKindFilteredPath
)

// Error is the storage package's error type. Every backend operation that
// fails returns one of these (or wraps one), with Target and Path set
// whenever known.
type Error struct {
	Kind   ErrorKind
	Target string
	Path   string
	Cause  error
}

// Error implements error.Error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("storage[%s]: %s", e.Target, e.kindString())
	if e.Path != "" {
		msg += fmt.Sprintf(" (path %q)", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) kindString() string {
	switch e.Kind {
	case ErrorKindNotFound:
		return "not found"
	case ErrorKindPermissionDenied:
		return "permission denied"
	case ErrorKindAlreadyExists:
		return "already exists"
	case ErrorKindIO:
		return "i/o error"
	case ErrorKindNetwork:
		return "network error"
	case ErrorKindBackendSpecific:
		return "backend error"
	case ErrorKindInvalidPath:
		return "invalid path"
	case ErrorKindFilteredPath:
		return "filtered path"
	default:
		return "unknown error"
	}
}

// breadcrumb annotates cause with the raise site's stack before it is
// attached to an *Error, so a failure surfaced through several pipeline
// layers still names the backend call that produced it.
func breadcrumb(cause error) error {
	if cause == nil {
		return nil
	}
	return pkgerrors.WithStack(cause)
}

// IsNotFound reports whether err (or something it wraps) is a storage
// not-found error.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrorKindNotFound
}

// IsRetryable reports whether the error's category is worth retrying.
// Only I/O and network failures are retryable.
func IsRetryable(err error) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == ErrorKindIO || se.Kind == ErrorKindNetwork
}
