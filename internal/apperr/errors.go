// Package apperr holds the sentinel errors shared across packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrMalformedInput = errors.New("malformed input")
	// ErrInvalidPath is reported for paths escaping their root. It matches
	// ErrNotFound under errors.Is so callers never leak whether the target exists.
	ErrInvalidPath = fmt.Errorf("invalid path: %w", ErrNotFound)
)
