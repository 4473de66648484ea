package aggregate

import "reflect"

// valuesEqual reports whether two arbitrary task-record field values are
// equal. Field values may be scalars, maps, or slices decoded from JSON, so
// structural equality (reflect.DeepEqual) is required rather than ==.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
