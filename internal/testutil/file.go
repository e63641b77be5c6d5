package testutil

import (
	"os"
	"testing"
)

// MustWriteFile writes content to path and returns the path.
func MustWriteFile(t *testing.T, path, content string) string {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Errorf("WriteFile(%q) failed: %v", path, err)
	}

	return path
}
