package compression

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the stable error categories for the compression
// facade.
type ErrorKind int

const (
	// ErrorKindEncoderInit indicates the underlying codec failed to
	// initialize (for example, an invalid compression level).
	ErrorKindEncoderInit ErrorKind = iota
	// ErrorKindInvalidData indicates the compressed stream was malformed
	// or truncated.
	ErrorKindInvalidData
	// ErrorKindUnsupportedFormat indicates a Format value with no known
	// codec (for example, a value outside the declared enum range).
	ErrorKindUnsupportedFormat
	// ErrorKindDisabledFormat indicates a known format whose encoder (or
	// decoder) is intentionally not wired up, such as Bzip2 compression.
	ErrorKindDisabledFormat
	// ErrorKindIO indicates a failure reading from or writing to the
	// underlying stream.
	ErrorKindIO
)

// Error is the compression package's error type. It carries the offending
// format and wraps the underlying cause.
type Error struct {
	Kind   ErrorKind
	Format Format
	Cause  error
}

// Error implements error.Error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compression: %s (%s): %v", e.kindString(), e.Format, e.Cause)
	}
	return fmt.Sprintf("compression: %s (%s)", e.kindString(), e.Format)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) kindString() string {
	switch e.Kind {
	case ErrorKindEncoderInit:
		return "encoder init failed"
	case ErrorKindInvalidData:
		return "invalid data"
	case ErrorKindUnsupportedFormat:
		return "unsupported format"
	case ErrorKindDisabledFormat:
		return "format disabled"
	case ErrorKindIO:
		return "i/o error"
	default:
		return "unknown error"
	}
}

// IsRetryable reports whether the error's category is worth retrying. Only
// I/O failures are retryable; malformed data and disabled/unsupported
// formats are permanent for a given input.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == ErrorKindIO
	}
	return false
}
