// Package cache implements the repository layer over the cachedb schema:
// upserts, point lookups, existence probes, listings, and duplicate
// discovery queries, all transactionally atomic per composite operation.
package cache

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind names a stable cache failure category.
type ErrorKind int

const (
	// ErrDatabase covers driver- and connection-level failures.
	ErrDatabase ErrorKind = iota
	// ErrMigration covers schema migration failures.
	ErrMigration
	// ErrInvalidData covers a row that fails to decode, naming the
	// offending field.
	ErrInvalidData
	// ErrConstraint covers a constraint violation (e.g. a foreign-key
	// failure surfaced by SQLite).
	ErrConstraint
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDatabase:
		return "database"
	case ErrMigration:
		return "migration"
	case ErrInvalidData:
		return "invalid_data"
	case ErrConstraint:
		return "constraint"
	default:
		return "unknown"
	}
}

// Error is the cache package's error type. Field is populated only for
// ErrInvalidData.
type Error struct {
	Kind  ErrorKind
	Field string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cache: %s (field %s): %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("cache: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrapDB(msg string, cause error) error {
	return &Error{Kind: ErrDatabase, Msg: msg, Cause: errors.WithStack(cause)}
}

func invalidData(field, msg string) error {
	return &Error{Kind: ErrInvalidData, Field: field, Msg: msg}
}
