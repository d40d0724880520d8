// Package pathutil validates and normalizes the relative, POSIX-style paths
// used to address content inside a storage backend.
package pathutil

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidPath is returned when a path fails validation. The message
// describes the specific rule that was violated.
type ErrInvalidPath struct {
	// Path is the offending path as supplied by the caller.
	Path string
	// Reason describes why the path was rejected.
	Reason string
}

// Error implements error.Error.
func (e *ErrInvalidPath) Error() string {
	return "invalid path " + strconvQuote(e.Path) + ": " + e.Reason
}

// strconvQuote avoids importing strconv just for Quote semantics we don't
// need (no escape-sequence fidelity required for error text).
func strconvQuote(s string) string {
	return "\"" + s + "\""
}

// Validate normalizes and validates a relative path according to the
// following rules, applied in order:
//
//  1. Reject if any component contains a null byte.
//  2. Reject absolute paths and drive prefixes (e.g. "C:").
//  3. Collapse "." components and duplicate separators.
//  4. Reject ascents ("..") that would pop above the root.
//  5. Reject an empty result.
//
// Validate is pure and performs no I/O. It is idempotent: calling Validate
// on its own output returns the same path unchanged.
func Validate(path string) (string, error) {
	if strings.IndexByte(path, 0) != -1 {
		return "", &ErrInvalidPath{Path: path, Reason: "contains a null byte"}
	}

	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return "", &ErrInvalidPath{Path: path, Reason: "must be relative, not absolute"}
	}
	if hasDrivePrefix(path) {
		return "", &ErrInvalidPath{Path: path, Reason: "must not contain a drive prefix"}
	}

	components := splitComponents(path)

	var stack []string
	for _, component := range components {
		switch component {
		case "", ".":
			// Collapse empty (duplicate separator) and current-dir components.
			continue
		case "..":
			if len(stack) == 0 {
				return "", &ErrInvalidPath{Path: path, Reason: "ascends above the root"}
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, component)
		}
	}

	if len(stack) == 0 {
		return "", &ErrInvalidPath{Path: path, Reason: "resolves to an empty path"}
	}

	return strings.Join(stack, "/"), nil
}

// hasDrivePrefix reports whether path begins with a Windows-style drive
// letter prefix such as "C:".
func hasDrivePrefix(path string) bool {
	if len(path) < 2 {
		return false
	}
	c := path[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && path[1] == ':'
}

// splitComponents splits a path on both forward and backward slashes, since
// paths may arrive from callers using either separator convention.
func splitComponents(path string) []string {
	replaced := strings.ReplaceAll(path, "\\", "/")
	return strings.Split(replaced, "/")
}

// Join validates and joins path components, returning the normalized result.
// It is a convenience wrapper for callers assembling a path from parts (for
// example a backend prefix and a relative path).
func Join(parts ...string) (string, error) {
	return Validate(strings.Join(parts, "/"))
}

// MustValidate is a helper for tests and internal call sites where the path
// is already known to be valid; it panics on failure.
func MustValidate(path string) string {
	validated, err := Validate(path)
	if err != nil {
		panic(errors.Wrap(err, "pathutil: MustValidate"))
	}
	return validated
}
