package urdf

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformed is returned for structurally invalid documents.
	ErrMalformed = errors.New("malformed URDF document")
	// ErrDuplicateName is returned when two links or two joints share a name.
	ErrDuplicateName = errors.New("duplicate name")
)

func newMalformedError(element, name, format string, args ...interface{}) error {
	if name == "" {
		return errors.Wrapf(ErrMalformed, "%s: %s", element, fmt.Sprintf(format, args...))
	}
	return errors.Wrapf(ErrMalformed, "%s %q: %s", element, name, fmt.Sprintf(format, args...))
}

func newDuplicateNameError(element, name string) error {
	return errors.Wrapf(ErrDuplicateName, "%s %q declared more than once", element, name)
}
