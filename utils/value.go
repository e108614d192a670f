package utils

// AttributeMap is a free-form JSON object, decoded into a typed config later.
type AttributeMap map[string]interface{}

// Has returns whether the key is set.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// AssertType attempts to assert that the given interface argument is
// the given type parameter.
func AssertType[T any](from interface{}) (T, error) {
	var zero T
	asserted, ok := from.(T)
	if !ok {
		return zero, NewUnexpectedTypeError(zero, from)
	}
	return asserted, nil
}
