package testutil

import (
	"os"
	"testing"

	"github.com/spf13/afero"
)

// MustTempFile creates an empty, closed file on the given filesystem and
// returns its path.
func MustTempFile(t *testing.T, fs afero.Fs) string {
	t.Helper()

	file, err := afero.TempFile(fs, "", "kcoop-test")
	if err != nil {
		t.Fatalf("TempFile() failed: %v", err)
	}

	if err := file.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := fs.Remove(file.Name()); err != nil && !os.IsNotExist(err) {
			t.Errorf("Remove(%q) failed: %v", file.Name(), err)
		}
	})

	return file.Name()
}
