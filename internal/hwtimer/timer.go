// Package hwtimer simulates a hardware timer providing a monotonic tick
// counter and a periodic interrupt.
package hwtimer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hansmi/kcoop/internal/fuzzduration"
	"github.com/jonboulle/clockwork"
)

var clock = clockwork.NewRealClock()

// Interrupter delivers interrupts. The handler must run with interrupts
// disabled.
type Interrupter interface {
	Interrupt(func())
}

// Timer is a tick counter with a single interrupt handler slot.
type Timer struct {
	intr Interrupter

	mu      sync.Mutex
	now     uint64
	handler func()
	fired   uint64
}

// New returns a timer at tick zero delivering interrupts through intr.
func New(intr Interrupter) *Timer {
	if intr == nil {
		panic("Interrupter is nil")
	}

	return &Timer{
		intr: intr,
	}
}

// Now returns the current tick.
func (t *Timer) Now() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.now
}

// Advance moves the clock forward and returns the new tick. The counter
// saturates instead of wrapping around.
func (t *Timer) Advance(ticks uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.now > math.MaxUint64-ticks {
		t.now = math.MaxUint64
	} else {
		t.now += ticks
	}

	return t.now
}

// SetInterruptHandler registers the function invoked on every timer
// interrupt. Only one handler may ever be registered.
func (t *Timer) SetInterruptHandler(fn func()) {
	if fn == nil {
		panic("Function is nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handler != nil {
		panic("timer interrupt handler already registered")
	}

	t.handler = fn
}

// Fire delivers one timer interrupt at the current tick and waits for the
// handler to return. Without a handler the interrupt is dropped.
func (t *Timer) Fire() {
	t.mu.Lock()
	handler := t.handler
	t.fired++
	t.mu.Unlock()

	if handler != nil {
		t.intr.Interrupt(handler)
	}
}

// Fired returns the number of interrupts delivered so far.
func (t *Timer) Fired() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.fired
}

// RunOptions configures the real-time driver.
type RunOptions struct {
	// Wall time between interrupts.
	Period time.Duration

	// Random variation applied to every period (0 to disable).
	Jitter float32

	// Amount by which the clock advances per interrupt.
	TicksPerInterrupt uint64
}

// Run drives the timer from the wall clock until the context is cancelled.
// The returned error is always from the context.
func (t *Timer) Run(ctx context.Context, opts RunOptions) error {
	if opts.Period <= 0 {
		panic("period must be positive")
	}

	next := func() time.Duration {
		if d := fuzzduration.Random(opts.Period, opts.Jitter); d > 0 {
			return d
		}

		return opts.Period
	}

	timer := clock.NewTimer(next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.Chan():
		}

		t.Advance(opts.TicksPerInterrupt)
		t.Fire()

		timer.Reset(next())
	}
}
