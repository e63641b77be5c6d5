package selftest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/hansmi/kcoop/internal/config"
	"github.com/hansmi/kcoop/internal/sim"
	"go.uber.org/multierr"
)

type test interface {
	Name() string
	Scenario() *config.Root
	Check(*config.Root, *sim.Result) error
}

// pingTest puts threads to sleep for different durations and expects them to
// wake in order of their wake tick, at most one interrupt late.
type pingTest struct {
	ticks []int64
}

func (*pingTest) Name() string {
	return "alarm ping"
}

func (t *pingTest) Scenario() *config.Root {
	cfg := &config.Root{
		Machine: config.MachineDefaults,
	}

	for _, i := range t.ticks {
		cfg.Sleepers = append(cfg.Sleepers, &config.Sleeper{
			Name:  fmt.Sprintf("ping%d", i),
			Ticks: i,
		})
	}

	return cfg
}

func (t *pingTest) Check(cfg *config.Root, r *sim.Result) error {
	var err error

	if len(r.Wakes) != len(t.ticks) {
		return fmt.Errorf("%d of %d sleepers woke", len(r.Wakes), len(t.ticks))
	}

	if !slices.IsSortedFunc(r.Wakes, func(a, b sim.Wake) int {
		return cmp.Compare(a.WakeTick(), b.WakeTick())
	}) {
		multierr.AppendInto(&err, fmt.Errorf("sleepers woke out of order: %+v", r.Wakes))
	}

	// Never more than one jittered interval
	maxDelay := uint64(float64(cfg.Machine.InterruptInterval) * (1 + float64(cfg.Machine.Jitter)))

	for _, w := range r.Wakes {
		if delay := w.WokeAt - min(w.WokeAt, w.WakeTick()); delay > maxDelay {
			multierr.AppendInto(&err, fmt.Errorf("%s woke %d ticks late, limit %d", w.Thread, delay, maxDelay))
		}
	}

	return err
}

// rendezvousTest exchanges values between speakers and listeners. Every
// listener must receive exactly one value.
type rendezvousTest struct {
	name      string
	speakers  map[string]int32
	listeners []string

	// Sleepers to generate timer interrupts while values are exchanged
	sleepers int
}

func (t *rendezvousTest) Name() string {
	return t.name
}

func (t *rendezvousTest) Scenario() *config.Root {
	cfg := &config.Root{
		Machine: config.MachineDefaults,
	}

	names := make([]string, 0, len(t.speakers))

	for name := range t.speakers {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		cfg.Speakers = append(cfg.Speakers, &config.Speaker{
			Name:  name,
			Value: t.speakers[name],
		})
	}

	for _, name := range t.listeners {
		cfg.Listeners = append(cfg.Listeners, &config.Listener{Name: name})
	}

	for i := 0; i < t.sleepers; i++ {
		cfg.Sleepers = append(cfg.Sleepers, &config.Sleeper{
			Name:  fmt.Sprintf("interference%d", i),
			Ticks: int64(i+1) * 1000,
		})
	}

	return cfg
}

func (t *rendezvousTest) Check(_ *config.Root, r *sim.Result) error {
	var err error

	if len(r.Heard) != len(t.listeners) {
		multierr.AppendInto(&err, fmt.Errorf("%d of %d listeners received a value", len(r.Heard), len(t.listeners)))
	}

	seen := map[string]bool{}

	for _, e := range r.Heard {
		if seen[e.Thread] {
			multierr.AppendInto(&err, fmt.Errorf("listener %q received more than one value", e.Thread))
		}

		seen[e.Thread] = true
	}

	return err
}

var errNoTests = errors.New("no tests")

func defaultTests() []test {
	crowd := &rendezvousTest{
		name:     "communicator crowd",
		speakers: map[string]int32{},
		sleepers: 3,
	}

	for i := 0; i < 8; i++ {
		crowd.speakers[fmt.Sprintf("speaker%d", i)] = int32(i * 10)
		crowd.listeners = append(crowd.listeners, fmt.Sprintf("listener%d", i))
	}

	return []test{
		&pingTest{
			ticks: []int64{10000, 5000, 20000},
		},
		&rendezvousTest{
			name: "communicator",
			speakers: map[string]int32{
				"sai": 1,
				"aaa": 2,
			},
			listeners: []string{"xinyang", "billy"},
		},
		crowd,
	}
}
