// Package util holds small generic helpers shared across packages.
package util

// Ptr returns a pointer to a copy of v. Optional config and filter fields
// are pointers so that "unset" differs from the zero value.
func Ptr[T any](v T) *T {
	return &v
}
