package selftest

import (
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// withTempDir calls fn with a new directory for scenario files. Unless keep
// is set the directory is removed afterwards.
func withTempDir(logger *zap.Logger, keep bool, fn func(string) error) (err error) {
	dir, err := os.MkdirTemp("", "kcoop-selftest*")
	if err != nil {
		return err
	}

	if keep {
		defer logger.Info("Keeping scenario files", zap.String("dir", dir))
	} else {
		defer func() {
			multierr.AppendInto(&err, os.RemoveAll(dir))
		}()
	}

	return fn(dir)
}
