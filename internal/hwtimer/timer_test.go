package hwtimer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hansmi/kcoop/internal/testutil"
	"github.com/jonboulle/clockwork"
)

type directInterrupter struct {
	count int
}

func (d *directInterrupter) Interrupt(fn func()) {
	d.count++
	fn()
}

func TestAdvance(t *testing.T) {
	tm := New(&directInterrupter{})

	if got := tm.Now(); got != 0 {
		t.Errorf("Now() returned %d, want 0", got)
	}

	if got := tm.Advance(5); got != 5 {
		t.Errorf("Advance(5) returned %d, want 5", got)
	}

	if got := tm.Advance(7); got != 12 {
		t.Errorf("Advance(7) returned %d, want 12", got)
	}

	if got := tm.Advance(math.MaxUint64); got != math.MaxUint64 {
		t.Errorf("Advance() didn't saturate, got %d", got)
	}

	if got := tm.Now(); got != math.MaxUint64 {
		t.Errorf("Now() returned %d, want %d", got, uint64(math.MaxUint64))
	}
}

func TestFire(t *testing.T) {
	intr := &directInterrupter{}
	tm := New(intr)

	tm.Fire()

	if intr.count != 0 {
		t.Errorf("Interrupt delivered without handler")
	}

	var got []uint64

	tm.SetInterruptHandler(func() {
		got = append(got, tm.Now())
	})

	for _, ticks := range []uint64{5, 7, 8} {
		tm.Advance(ticks)
		tm.Fire()
	}

	if diff := cmp.Diff([]uint64{5, 12, 20}, got); diff != "" {
		t.Errorf("Handler ticks diff (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(3, intr.count); diff != "" {
		t.Errorf("Interrupt count diff (-want +got):\n%s", diff)
	}

	if got := tm.Fired(); got != 4 {
		t.Errorf("Fired() returned %d, want 4", got)
	}
}

func TestSetInterruptHandlerTwice(t *testing.T) {
	tm := New(&directInterrupter{})
	tm.SetInterruptHandler(func() {})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("SetInterruptHandler() did not panic")
		} else if diff := cmp.Diff("timer interrupt handler already registered", r); diff != "" {
			t.Errorf("Panic diff (-want +got):\n%s", diff)
		}
	}()

	tm.SetInterruptHandler(func() {})
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	fc := clockwork.NewFakeClock()
	testutil.Replace[clockwork.Clock](t, &clock, fc)

	tm := New(&directInterrupter{})

	ticks := make(chan uint64, 10)

	tm.SetInterruptHandler(func() {
		ticks <- tm.Now()
	})

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	runErr := make(chan error, 1)

	go func() {
		runErr <- tm.Run(runCtx, RunOptions{
			Period:            time.Second,
			TicksPerInterrupt: 500,
		})
	}()

	for i := uint64(1); i <= 3; i++ {
		fc.BlockUntil(1)
		fc.Advance(time.Second)

		select {
		case got := <-ticks:
			if want := 500 * i; got != want {
				t.Errorf("Interrupt %d at tick %d, want %d", i, got, want)
			}
		case <-ctx.Done():
			t.Fatalf("Interrupt %d not delivered: %v", i, ctx.Err())
		}
	}

	runCancel()

	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() returned %v, want %v", err, context.Canceled)
	}
}
