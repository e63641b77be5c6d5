package cmdutil

import (
	"os"
	"path/filepath"
	"sync"
)

// programName derives the name shown in usage messages from the executable,
// falling back to the first command line argument.
func programName(executable func() (string, error), args []string) string {
	if executable != nil {
		if path, err := executable(); err == nil && path != "" {
			return filepath.Base(path)
		}
	}

	if len(args) > 0 && args[0] != "" {
		return filepath.Base(args[0])
	}

	return "kcoop"
}

var globalProgramName = sync.OnceValue(func() string {
	return programName(os.Executable, os.Args)
})
