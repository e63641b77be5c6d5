package sim

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

var (
	// ErrDeadlock is returned when unfinished threads are blocked and no
	// sleeping thread remains to be woken by the timer.
	ErrDeadlock = errors.New("deadlock")

	// ErrEarlyWake is reported for a sleeper resuming before its wake tick.
	ErrEarlyWake = errors.New("thread woke early")

	// ErrDelivery is reported when the received values differ from the sent
	// values.
	ErrDelivery = errors.New("received values differ from sent values")
)

// Wake describes one completed sleep.
type Wake struct {
	Thread string
	Start  uint64
	Ticks  uint64
	WokeAt uint64
}

// WakeTick returns the earliest tick at which the sleeper may resume.
func (w Wake) WakeTick() uint64 {
	if w.Start > math.MaxUint64-w.Ticks {
		return math.MaxUint64
	}

	return w.Start + w.Ticks
}

// Exchange is a value sent or received by a thread.
type Exchange struct {
	Thread string
	Value  int32
}

// Result summarizes a scenario run. The slices are in completion order.
type Result struct {
	// Tick at the end of the run.
	Ticks uint64

	// Number of timer interrupts fired.
	Interrupts uint64

	Wakes []Wake
	Sent  []Exchange
	Heard []Exchange

	// Metrics of the kernel, alarm and channel, prefixed with "kcoop_".
	Registry *prometheus.Registry
}

func sortedValues(exchanges []Exchange) []int32 {
	result := make([]int32, 0, len(exchanges))

	for _, i := range exchanges {
		result = append(result, i.Value)
	}

	slices.Sort(result)

	return result
}

// Verify checks that no sleeper woke early and that every sent value was
// received exactly once.
func (r *Result) Verify() error {
	var err error

	for _, w := range r.Wakes {
		if w.WokeAt < w.WakeTick() {
			multierr.AppendInto(&err, fmt.Errorf("%w: %s woke at tick %d, wake tick %d",
				ErrEarlyWake, w.Thread, w.WokeAt, w.WakeTick()))
		}
	}

	sent := sortedValues(r.Sent)
	heard := sortedValues(r.Heard)

	if !slices.Equal(sent, heard) {
		multierr.AppendInto(&err, fmt.Errorf("%w: sent %v, heard %v", ErrDelivery, sent, heard))
	}

	return err
}
