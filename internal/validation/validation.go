// Package validation provides the input checks the ingest engine and HTTP
// surface apply before any state is mutated: owner id shape, file extension
// allow-list, size ceiling, and path-safety for identifiers that end up as
// filesystem or object-store keys. This package has no dependencies on other
// internal packages to avoid import cycles.
package validation

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidOwnerID indicates owner_id does not match the configured
// identifier shape (a UUIDv4, per the HTTP surface's X-User-ID contract).
var ErrInvalidOwnerID = errors.New("invalid owner_id")

// ErrInvalidFileID indicates a file_id is malformed or attempts path
// traversal when used as a single filesystem or object-store path segment.
var ErrInvalidFileID = errors.New("invalid file_id")

// ErrUnsupportedExtension indicates a filename's extension is not in the
// configured allow-list.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// ErrFileTooLarge indicates a payload exceeds the configured maximum size.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ErrEmptyFile indicates a zero-byte upload.
var ErrEmptyFile = errors.New("empty file")

var uuidv4 = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// OwnerID reports whether id matches the identifier shape the HTTP
// surface's X-User-ID header carries (UUIDv4).
func OwnerID(id string) error {
	if !uuidv4.MatchString(id) {
		return ErrInvalidOwnerID
	}
	return nil
}

// FileID checks that id is safe for use as a single filesystem or
// object-store path segment (no separators, no traversal).
func FileID(id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", ErrInvalidFileID
	}
	if strings.ContainsAny(id, `/\`) {
		return "", ErrInvalidFileID
	}
	clean := filepath.Clean(id)
	if clean != id ||
		strings.HasPrefix(clean, "..") ||
		strings.Contains(clean, string(os.PathSeparator)+"..") ||
		filepath.IsAbs(clean) {
		return "", ErrInvalidFileID
	}
	return clean, nil
}

// Extension takes the suffix after filename's final dot and reports whether
// it is in allowed, matched case-insensitively. It returns the extension
// lowercased and without the leading dot.
func Extension(filename string, allowed []string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return ext, nil
		}
	}
	return "", ErrUnsupportedExtension
}

// Size checks a payload's length against the configured bounds: non-empty
// and no larger than maxBytes.
func Size(n int64, maxBytes int64) error {
	if n <= 0 {
		return ErrEmptyFile
	}
	if n > maxBytes {
		return ErrFileTooLarge
	}
	return nil
}
