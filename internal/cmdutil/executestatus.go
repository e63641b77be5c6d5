package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
)

// UsageError reports invalid command line arguments.
type UsageError struct {
	msg string
}

// UsageErrorf formats an error reported as a usage error.
func UsageErrorf(format string, args ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

func (e *UsageError) Error() string {
	return e.msg
}

func executeStatus(w io.Writer, err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}

	fmt.Fprintf(w, "Error: %v\n", err)

	if errors.As(err, new(*UsageError)) {
		return subcommands.ExitUsageError
	}

	return subcommands.ExitFailure
}

// ExecuteStatus converts a Go error value to a command exit status. Non-nil
// error values are printed to standard error.
func ExecuteStatus(err error) subcommands.ExitStatus {
	return executeStatus(os.Stderr, err)
}
