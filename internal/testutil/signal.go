package testutil

import (
	"fmt"
	"os"
	"syscall"
)

// Raise sends a signal to the current process.
func Raise(sig os.Signal) error {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}

	if err := syscall.Kill(os.Getpid(), num); err != nil {
		return fmt.Errorf("kill(%d, %v) failed: %w", os.Getpid(), sig, err)
	}

	return nil
}
