package meshes

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrFileNotFound is returned when a referenced mesh file cannot be read.
	ErrFileNotFound = errors.New("mesh file not found")
	// ErrUnsupportedFormat is returned when no decoder handles a mesh file, or the decoder rejects its contents.
	ErrUnsupportedFormat = errors.New("unsupported mesh format")
)

// ResolveError describes the failure to resolve one visual or collision element of a link.
type ResolveError struct {
	Link    string
	Element string
	Path    string
	Err     error
}

func (e *ResolveError) Error() string {
	prefix := "resolving geometry"
	if e.Link != "" {
		prefix = fmt.Sprintf("link %q %s", e.Link, e.Element)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s from %s: %v", prefix, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

// Unwrap returns the underlying error class.
func (e *ResolveError) Unwrap() error {
	return e.Err
}
