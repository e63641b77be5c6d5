// Package alarm lets kernel threads sleep for a minimum number of timer ticks.
// Sleeping threads are woken from the timer interrupt, which also provides
// the preemption point for the running thread.
package alarm

import (
	"fmt"
	"math"
	"sync"

	"fortio.org/safecast"
	"github.com/hansmi/kcoop/internal/kernel"
	"github.com/hansmi/kcoop/internal/prioqueue"
	"go.uber.org/zap"
)

// Kernel is the thread substrate used by an Alarm.
type Kernel interface {
	Current() *kernel.Thread
	Disable() kernel.Level
	Restore(kernel.Level)
	Block()
	Ready(*kernel.Thread)
	YieldOnReturn()
}

// Timer provides the tick counter and the periodic interrupt.
type Timer interface {
	Now() uint64
	SetInterruptHandler(func())
}

type wakeEntry struct {
	thread   *kernel.Thread
	wakeTick uint64

	// Insertion order, breaks ties between equal wake ticks
	seq uint64
}

// Option configures an alarm.
type Option func(*Alarm)

// WithLogger sets the logger. Defaults to the global zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Alarm) {
		a.logger = logger
	}
}

// Alarm wakes sleeping threads once their wake tick has been reached. Each
// instance takes over the interrupt handler of its timer; the timer refuses a
// second registration.
type Alarm struct {
	k      Kernel
	timer  Timer
	logger *zap.Logger

	// Modified with interrupts disabled; the mutex additionally serializes
	// observers outside the kernel.
	mu      sync.Mutex
	seq     uint64
	waiting prioqueue.PrioQueue[*wakeEntry]

	metrics *metricsCollector
}

// New creates an alarm and registers it as the timer's interrupt handler.
func New(k Kernel, timer Timer, opts ...Option) *Alarm {
	a := &Alarm{
		k:      k,
		timer:  timer,
		logger: zap.L(),
		waiting: prioqueue.PrioQueue[*wakeEntry]{
			Less: func(lhs, rhs *wakeEntry) bool {
				if lhs.wakeTick != rhs.wakeTick {
					return lhs.wakeTick < rhs.wakeTick
				}

				return lhs.seq < rhs.seq
			},
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.Named("alarm")
	a.metrics = newMetricsCollector(a)

	timer.SetInterruptHandler(a.OnTimerTick)

	return a
}

func addTicks(now, ticks uint64) uint64 {
	if now > math.MaxUint64-ticks {
		return math.MaxUint64
	}

	return now + ticks
}

// SleepFor suspends the running thread for at least the given number of
// ticks. The thread is woken during the first timer interrupt at which the
// current tick is at or past the wake tick. Zero ticks wait for the next
// interrupt. Negative values are a programming error.
func (a *Alarm) SleepFor(ticks int64) {
	d, err := safecast.Conv[uint64](ticks)
	if err != nil {
		panic(fmt.Sprintf("negative sleep duration %d: %v", ticks, err))
	}

	self := a.k.Current()
	if self == nil {
		panic("SleepFor called outside of a kernel thread")
	}

	now := a.timer.Now()

	e := &wakeEntry{
		thread:   self,
		wakeTick: addTicks(now, d),
	}

	level := a.k.Disable()

	a.mu.Lock()
	a.seq++
	e.seq = a.seq
	a.waiting.Push(e)
	a.mu.Unlock()

	a.metrics.reportSleep()

	a.logger.Debug("Thread going to sleep",
		zap.Object("thread", self),
		zap.Uint64("now", now),
		zap.Uint64("wake_tick", e.wakeTick))

	a.k.Block()
	a.k.Restore(level)
}

// popDue removes all entries due at the given tick in wake order.
func (a *Alarm) popDue(now uint64) []*wakeEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var due []*wakeEntry

	for {
		next, ok := a.waiting.Peek()
		if !ok || next.wakeTick > now {
			break
		}

		a.waiting.Pop()

		due = append(due, next)
	}

	return due
}

// OnTimerTick is the timer interrupt handler. It makes every thread whose
// wake tick has been reached runnable, then asks the running thread to yield.
func (a *Alarm) OnTimerTick() {
	now := a.timer.Now()

	for _, e := range a.popDue(now) {
		a.k.Ready(e.thread)
		a.metrics.reportWakeup(now - e.wakeTick)

		a.logger.Debug("Thread woken",
			zap.Object("thread", e.thread),
			zap.Uint64("now", now),
			zap.Uint64("wake_tick", e.wakeTick))
	}

	a.k.YieldOnReturn()
}

// Len returns the number of sleeping threads.
func (a *Alarm) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.waiting.Len()
}

// NextWakeTick returns the earliest wake tick of all sleeping threads.
func (a *Alarm) NextWakeTick() (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if next, ok := a.waiting.Peek(); ok {
		return next.wakeTick, true
	}

	return 0, false
}
