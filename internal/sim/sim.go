// Package sim runs scenarios on a simulated single-CPU machine. A scenario
// consists of sleeping threads exercising the alarm and of speakers and
// listeners exchanging values over a rendezvous channel.
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/cenkalti/backoff/v4"
	"github.com/hansmi/kcoop/internal/alarm"
	"github.com/hansmi/kcoop/internal/communicator"
	"github.com/hansmi/kcoop/internal/config"
	"github.com/hansmi/kcoop/internal/fuzzduration"
	"github.com/hansmi/kcoop/internal/hwtimer"
	"github.com/hansmi/kcoop/internal/kernel"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetricsPrefix is prepended to the names of all exported metrics.
const MetricsPrefix = "kcoop_"

type options struct {
	logger   *zap.Logger
	registry *prometheus.Registry
}

// Option configures a run.
type Option func(*options)

// WithLogger sets the logger. Defaults to the global zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry registers the metrics with an existing registry, e.g. one
// already being served. By default a new registry is created for every run.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

type machine struct {
	cfg    config.Machine
	logger *zap.Logger

	k     *kernel.Kernel
	timer *hwtimer.Timer
	alarm *alarm.Alarm
	ch    *communicator.Channel

	registry *prometheus.Registry

	mu     sync.Mutex
	result Result
}

func newMachine(cfg config.Machine, logger *zap.Logger, registry *prometheus.Registry) *machine {
	if registry == nil {
		registry = prometheus.NewPedanticRegistry()
	}

	m := &machine{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
	}

	m.k = kernel.New(kernel.WithLogger(logger))
	m.timer = hwtimer.New(m.k)
	m.alarm = alarm.New(m.k, m.timer, alarm.WithLogger(logger))
	m.ch = communicator.New(m.k, communicator.WithLogger(logger))

	prometheus.WrapRegistererWithPrefix(MetricsPrefix, m.registry).MustRegister(
		m.k.Collector(),
		m.alarm.Collector(),
		m.ch.Collector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "timer_ticks",
			Help: "Current value of the timer tick counter.",
		}, func() float64 {
			return float64(m.timer.Now())
		}),
	)

	return m
}

func (m *machine) sleeper(name string, ticks int64) func() {
	return func() {
		start := m.timer.Now()
		m.alarm.SleepFor(ticks)
		wokeAt := m.timer.Now()

		m.mu.Lock()
		defer m.mu.Unlock()

		m.result.Wakes = append(m.result.Wakes, Wake{
			Thread: name,
			Start:  start,
			Ticks:  uint64(ticks),
			WokeAt: wokeAt,
		})
	}
}

func (m *machine) speaker(name string, value int32) func() {
	return func() {
		m.ch.Send(value)

		m.mu.Lock()
		defer m.mu.Unlock()

		m.result.Sent = append(m.result.Sent, Exchange{Thread: name, Value: value})
	}
}

func (m *machine) listener(name string) func() {
	return func() {
		value := m.ch.Receive()

		m.mu.Lock()
		defer m.mu.Unlock()

		m.result.Heard = append(m.result.Heard, Exchange{Thread: name, Value: value})
	}
}

func (m *machine) fork(cfg *config.Root) error {
	for _, s := range cfg.Sleepers {
		if _, err := safecast.Conv[uint64](s.Ticks); err != nil {
			return fmt.Errorf("sleeper %q: invalid tick count %d: %w", s.Name, s.Ticks, err)
		}
	}

	for _, s := range cfg.Sleepers {
		m.k.Fork(s.Name, m.sleeper(s.Name, s.Ticks))
	}

	for _, s := range cfg.Speakers {
		m.k.Fork(s.Name, m.speaker(s.Name, s.Value))
	}

	for _, l := range cfg.Listeners {
		m.k.Fork(l.Name, m.listener(l.Name))
	}

	return nil
}

func (m *machine) deadlockError() error {
	var blocked []string

	for _, info := range m.k.Threads() {
		blocked = append(blocked, fmt.Sprintf("%s (%s)", info.Name, info.Status))
	}

	return fmt.Errorf("%w at tick %d with %d unfinished thread(s): %s",
		ErrDeadlock, m.timer.Now(), len(blocked), strings.Join(blocked, ", "))
}

// runSimulated fires the next timer interrupt whenever the CPU has become
// idle. Stretches without any due sleeper are skipped in whole intervals.
func (m *machine) runSimulated(ctx context.Context) error {
	jitter := fuzzduration.NewSource(m.cfg.Seed)
	interval := m.cfg.InterruptInterval

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.k.Quiesce(ctx); err != nil {
			return err
		}

		if m.k.Live() == 0 {
			return nil
		}

		next, ok := m.alarm.NextWakeTick()
		if !ok {
			return m.deadlockError()
		}

		if now := m.timer.Now(); next > now && next-now > interval {
			m.timer.Advance((next - now - 1) / interval * interval)
		}

		m.timer.Advance(jitter.Ticks(interval, m.cfg.Jitter))
		m.timer.Fire()
	}
}

// inspect looks at the machine from within an interrupt handler, during which
// no sleeper can be woken.
func (m *machine) inspect() (finished bool, err error) {
	m.k.Interrupt(func() {
		switch {
		case m.k.Live() == 0:
			finished = true

		case m.k.Idle() && m.alarm.Len() == 0:
			err = m.deadlockError()
		}
	})

	return finished, err
}

// runRealtime drives the timer from the wall clock until all threads have
// finished.
func (m *machine) runRealtime(ctx context.Context, period time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := m.timer.Run(ctx, hwtimer.RunOptions{
			Period:            period,
			Jitter:            m.cfg.Jitter,
			TicksPerInterrupt: m.cfg.InterruptInterval,
		})

		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	g.Go(func() error {
		defer cancel()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = period
		b.MaxInterval = 16 * period
		b.MaxElapsedTime = 0

		ticker := backoff.NewTicker(b)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case <-ticker.C:
			}

			if finished, err := m.inspect(); err != nil {
				return err
			} else if finished {
				return nil
			}
		}
	})

	return g.Wait()
}

func (m *machine) snapshot() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.result

	r.Wakes = append([]Wake(nil), r.Wakes...)
	r.Sent = append([]Exchange(nil), r.Sent...)
	r.Heard = append([]Exchange(nil), r.Heard...)
	r.Ticks = m.timer.Now()
	r.Interrupts = m.timer.Fired()
	r.Registry = m.registry

	return &r
}

// Run executes the scenario and verifies the outcome. The result is returned
// even when the run fails, e.g. because of a deadlock. Threads still blocked
// at that point are abandoned.
func Run(ctx context.Context, cfg *config.Root, opts ...Option) (*Result, error) {
	o := options{
		logger: zap.L(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.Named("sim")

	var period time.Duration

	if cfg.Machine.Realtime {
		var err error

		if period, err = cfg.Machine.InterruptPeriod(); err != nil {
			return nil, err
		}
	}

	m := newMachine(cfg.Machine, o.logger, o.registry)

	if err := m.fork(cfg); err != nil {
		return nil, err
	}

	logger.Info("Scenario started",
		zap.Int("threads", cfg.ThreadCount()),
		zap.Bool("realtime", cfg.Machine.Realtime),
		zap.Uint64("interrupt_interval", cfg.Machine.InterruptInterval))

	var err error

	if cfg.Machine.Realtime {
		err = m.runRealtime(ctx, period)
	} else {
		err = m.runSimulated(ctx)
	}

	result := m.snapshot()

	if err == nil {
		err = result.Verify()
	}

	if err != nil {
		logger.Error("Scenario failed", zap.Error(err), zap.Uint64("tick", result.Ticks))
	} else {
		logger.Info("Scenario finished",
			zap.Uint64("tick", result.Ticks),
			zap.Uint64("interrupts", result.Interrupts))
	}

	return result, err
}
