package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hansmi/kcoop/internal/config"
	"github.com/hansmi/kcoop/internal/testutil"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func newContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func newScenario(modify func(*config.Root)) *config.Root {
	cfg := &config.Root{
		Machine: config.MachineDefaults,
		Sleepers: []*config.Sleeper{
			{Name: "ping10000", Ticks: 10000},
			{Name: "ping5000", Ticks: 5000},
			{Name: "ping20000", Ticks: 20000},
		},
		Speakers: []*config.Speaker{
			{Name: "sai", Value: 1},
			{Name: "aaa", Value: 2},
		},
		Listeners: []*config.Listener{
			{Name: "xinyang"},
			{Name: "billy"},
		},
	}

	cfg.Machine.Jitter = 0

	if modify != nil {
		modify(cfg)
	}

	return cfg
}

var sortExchanges = cmpopts.SortSlices(func(a, b Exchange) bool {
	return a.Value < b.Value
})

func TestRunSimulated(t *testing.T) {
	ctx := newContext(t)

	result, err := Run(ctx, newScenario(nil), WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	wantWakes := []Wake{
		{Thread: "ping5000", Ticks: 5000, WokeAt: 5000},
		{Thread: "ping10000", Ticks: 10000, WokeAt: 10000},
		{Thread: "ping20000", Ticks: 20000, WokeAt: 20000},
	}

	if diff := cmp.Diff(wantWakes, result.Wakes); diff != "" {
		t.Errorf("Wakes diff (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]Exchange{{"sai", 1}, {"aaa", 2}}, result.Sent, sortExchanges); diff != "" {
		t.Errorf("Sent diff (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]Exchange{{"xinyang", 1}, {"billy", 2}}, result.Heard, sortExchanges); diff != "" {
		t.Errorf("Heard diff (-want +got):\n%s", diff)
	}

	if result.Ticks != 20000 {
		t.Errorf("Run ended at tick %d, want 20000", result.Ticks)
	}

	if result.Interrupts != 3 {
		t.Errorf("Run fired %d interrupts, want 3", result.Interrupts)
	}

	testutil.CollectAndCompare(t, result.Registry, `
# HELP kcoop_exchanges_total Number of values taken by receivers.
# TYPE kcoop_exchanges_total counter
kcoop_exchanges_total 2
# HELP kcoop_live_threads Number of threads not yet finished.
# TYPE kcoop_live_threads gauge
kcoop_live_threads 0
# HELP kcoop_sleeps_total Number of times a thread went to sleep.
# TYPE kcoop_sleeps_total counter
kcoop_sleeps_total 3
# HELP kcoop_threads_forked_total Number of threads created.
# TYPE kcoop_threads_forked_total counter
kcoop_threads_forked_total 7
# HELP kcoop_timer_ticks Current value of the timer tick counter.
# TYPE kcoop_timer_ticks gauge
kcoop_timer_ticks 20000
`,
		"kcoop_exchanges_total",
		"kcoop_live_threads",
		"kcoop_sleeps_total",
		"kcoop_threads_forked_total",
		"kcoop_timer_ticks",
	)
}

func TestRunJitterReproducible(t *testing.T) {
	ctx := newContext(t)

	var results []*Result

	for i := 0; i < 2; i++ {
		cfg := newScenario(func(cfg *config.Root) {
			cfg.Machine.Jitter = 0.8
			cfg.Machine.InterruptInterval = 300
			cfg.Machine.Seed = 7
		})

		result, err := Run(ctx, cfg, WithLogger(zaptest.NewLogger(t)))
		if err != nil {
			t.Fatalf("Run() failed: %v", err)
		}

		for _, w := range result.Wakes {
			if w.WokeAt < w.WakeTick() {
				t.Errorf("%s woke at tick %d, before %d", w.Thread, w.WokeAt, w.WakeTick())
			}
		}

		results = append(results, result)
	}

	if diff := cmp.Diff(results[0].Wakes, results[1].Wakes); diff != "" {
		t.Errorf("Runs with the same seed differ (-first +second):\n%s", diff)
	}
}

func TestRunRealtime(t *testing.T) {
	ctx := newContext(t)

	cfg := newScenario(func(cfg *config.Root) {
		cfg.Machine.Realtime = true
		cfg.Machine.InterruptInterval = 100
		cfg.Machine.TickDuration = time.Microsecond
		cfg.Sleepers = []*config.Sleeper{
			{Name: "short", Ticks: 300},
			{Name: "long", Ticks: 1000},
		}
	})

	result, err := Run(ctx, cfg, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if got := len(result.Wakes); got != 2 {
		t.Errorf("Got %d wakes, want 2", got)
	}

	if got := len(result.Heard); got != 2 {
		t.Errorf("Got %d received values, want 2", got)
	}

	if result.Ticks < 1000 {
		t.Errorf("Run ended at tick %d, before the last wake tick", result.Ticks)
	}
}

func TestRunDeadlock(t *testing.T) {
	for _, realtime := range []bool{false, true} {
		realtime := realtime

		t.Run(map[bool]string{false: "simulated", true: "realtime"}[realtime], func(t *testing.T) {
			ctx := newContext(t)

			cfg := newScenario(func(cfg *config.Root) {
				cfg.Machine.Realtime = realtime
				cfg.Machine.TickDuration = time.Microsecond
				cfg.Sleepers = cfg.Sleepers[:1]
				cfg.Listeners = cfg.Listeners[:1]
			})

			result, err := Run(ctx, cfg, WithLogger(zaptest.NewLogger(t)))

			if !errors.Is(err, ErrDeadlock) {
				t.Fatalf("Run() returned %v, want %v", err, ErrDeadlock)
			}

			if msg := err.Error(); !strings.Contains(msg, "1 unfinished thread(s)") || !strings.Contains(msg, "(blocked)") {
				t.Errorf("Error %q does not describe the blocked thread", msg)
			}

			if got := len(result.Heard); got != 1 {
				t.Errorf("Got %d received values, want 1", got)
			}

			if got := len(result.Wakes); got != 1 {
				t.Errorf("Got %d wakes, want 1", got)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(newContext(t))
	cancel()

	_, err := Run(ctx, newScenario(nil), WithLogger(zaptest.NewLogger(t)))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() returned %v, want %v", err, context.Canceled)
	}
}

func TestRunInvalidTicks(t *testing.T) {
	cfg := newScenario(func(cfg *config.Root) {
		cfg.Sleepers = []*config.Sleeper{{Name: "back", Ticks: -5}}
	})

	result, err := Run(newContext(t), cfg, WithLogger(zaptest.NewLogger(t)))

	if err == nil || !strings.Contains(err.Error(), `sleeper "back"`) {
		t.Errorf("Run() returned %v, want error about sleeper", err)
	}

	if result != nil {
		t.Errorf("Run() returned result %+v", result)
	}
}

func TestRunInvalidPeriod(t *testing.T) {
	for _, tc := range []struct {
		name     string
		interval uint64
		tick     time.Duration
	}{
		{name: "overflow", interval: 1 << 62, tick: 10 * time.Microsecond},
		{name: "too long", interval: 1000, tick: time.Hour},
		{name: "zero tick", interval: 500},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newScenario(func(cfg *config.Root) {
				cfg.Machine.Realtime = true
				cfg.Machine.InterruptInterval = tc.interval
				cfg.Machine.TickDuration = tc.tick
			})

			result, err := Run(newContext(t), cfg, WithLogger(zaptest.NewLogger(t)))

			if !errors.Is(err, config.ErrPeriodTooLong) {
				t.Errorf("Run() returned %v, want %v", err, config.ErrPeriodTooLong)
			}

			if result != nil {
				t.Errorf("Run() returned result %+v", result)
			}
		})
	}
}

func TestRunEmpty(t *testing.T) {
	result, err := Run(newContext(t), &config.Root{Machine: config.MachineDefaults},
		WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.Interrupts != 0 {
		t.Errorf("Run fired %d interrupts, want none", result.Interrupts)
	}
}

func TestVerify(t *testing.T) {
	for _, tc := range []struct {
		name     string
		result   Result
		wantErrs []error
	}{
		{name: "empty"},
		{
			name: "success",
			result: Result{
				Wakes: []Wake{{Thread: "a", Start: 10, Ticks: 5, WokeAt: 15}},
				Sent:  []Exchange{{"s1", 3}, {"s2", 3}, {"s3", -1}},
				Heard: []Exchange{{"l1", -1}, {"l2", 3}, {"l3", 3}},
			},
		},
		{
			name: "early",
			result: Result{
				Wakes: []Wake{
					{Thread: "a", Start: 10, Ticks: 5, WokeAt: 14},
					{Thread: "b", Start: 10, Ticks: 5, WokeAt: 100},
				},
			},
			wantErrs: []error{ErrEarlyWake},
		},
		{
			name: "duplicate",
			result: Result{
				Sent:  []Exchange{{"s1", 1}, {"s2", 2}},
				Heard: []Exchange{{"l1", 1}, {"l2", 1}},
			},
			wantErrs: []error{ErrDelivery},
		},
		{
			name: "both",
			result: Result{
				Wakes: []Wake{{Thread: "a", Start: 10, Ticks: 5, WokeAt: 0}},
				Sent:  []Exchange{{"s1", 1}},
			},
			wantErrs: []error{ErrEarlyWake, ErrDelivery},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			errs := multierr.Errors(tc.result.Verify())

			if diff := cmp.Diff(tc.wantErrs, errs, cmpopts.EquateErrors(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Verify() error diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWakeTickSaturates(t *testing.T) {
	w := Wake{Start: 10, Ticks: ^uint64(0)}

	if got := w.WakeTick(); got != ^uint64(0) {
		t.Errorf("WakeTick() returned %d, want %d", got, ^uint64(0))
	}
}
