// Package signalwait waits for process signals in a context-aware manner.
package signalwait

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrSignal is wrapped by the errors returned by WaitFunc when a signal has
// been received.
var ErrSignal = errors.New("received signal")

// WaitFunc is the type of functions waiting for signals.
type WaitFunc func(context.Context) error

type waiter struct {
	ch       chan os.Signal
	stopped  chan struct{}
	stopOnce sync.Once
}

func setup(signals []os.Signal) *waiter {
	w := &waiter{
		ch:      make(chan os.Signal, 1),
		stopped: make(chan struct{}),
	}

	runtime.SetFinalizer(w, (*waiter).stop)

	signal.Notify(w.ch, signals...)

	return w
}

// Setup starts relaying incoming signals into an internal buffer. The returned
// wait function sleeps until either a signal has been received (which may have
// happened before the wait function is called) or the wait function's context
// is canceled. The stop function causes signals to not be captured anymore.
func Setup(signals ...os.Signal) (wait WaitFunc, stop context.CancelFunc) {
	w := setup(signals)
	return w.wait, w.stop
}

func (w *waiter) stop() {
	w.stopOnce.Do(func() {
		signal.Stop(w.ch)
		close(w.stopped)
	})
}

func signalError(sig os.Signal) error {
	if num, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(num); name != "" {
			return fmt.Errorf("%w %s (number %d)", ErrSignal, name, int(num))
		}
	}

	return fmt.Errorf("%w %q", ErrSignal, sig)
}

func (w *waiter) wait(ctx context.Context) error {
	select {
	case <-w.stopped:
		return nil

	case sig := <-w.ch:
		return signalError(sig)

	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyContext returns a copy of the parent context which is canceled once
// one of the signals has been received. The cancellation cause wraps
// ErrSignal. Calling the returned stop function releases the signals.
func NotifyContext(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	wait, stopWait := Setup(signals...)

	ctx, cancel := context.WithCancelCause(parent)

	go func() {
		if err := wait(ctx); err != nil {
			cancel(err)
		}
	}()

	return ctx, func() {
		stopWait()
		cancel(context.Canceled)
	}
}
