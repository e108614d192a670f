package utils

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SpaceDelimitedStringToFloatSlice splits up space-delimited fields in a string, such as the xyz or rpy
// attributes of a URDF element, and converts them to floats. Unlike the lenient variant used for
// display purposes, any field that is not a number is reported as an error.
func SpaceDelimitedStringToFloatSlice(s string) ([]float64, error) {
	fields := strings.Fields(s)
	converted := make([]float64, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Errorf("%q is not a number", field)
		}
		converted = append(converted, value)
	}
	return converted, nil
}

// ParseFloatVector parses exactly n space-delimited floats. An empty string yields def, which may be nil.
func ParseFloatVector(s string, n int, def []float64) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	values, err := SpaceDelimitedStringToFloatSlice(s)
	if err != nil {
		return nil, err
	}
	if len(values) != n {
		return nil, errors.Errorf("expected %d values but got %d in %q", n, len(values), s)
	}
	return values, nil
}
