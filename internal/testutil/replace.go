package testutil

import "testing"

// Replace sets a package-level variable for the duration of the test.
func Replace[T any](t *testing.T, ptr *T, value T) {
	t.Helper()

	orig := *ptr
	*ptr = value

	t.Cleanup(func() {
		*ptr = orig
	})
}
