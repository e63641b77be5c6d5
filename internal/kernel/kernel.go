package kernel

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

func zapThread(t *Thread) zap.Field {
	return zap.Object("thread", t)
}

// Option configures a kernel.
type Option func(*Kernel)

// WithLogger sets the logger for thread lifecycle messages. Defaults to the
// global zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// Kernel is a cooperative scheduler for a single simulated CPU. At most one
// thread runs at any time; the CPU changes hands only when the running thread
// blocks, yields or finishes. Ready threads are dispatched in FIFO order.
type Kernel struct {
	mu sync.Mutex

	// Signalled whenever interrupts are re-enabled
	intrCond *sync.Cond

	logger  *zap.Logger
	metrics *metricsCollector

	threads map[int64]*Thread
	current *Thread
	ready   []*Thread

	// Thread (or the handler pseudo-thread) with interrupts disabled
	intrOwner *Thread
	handler   *Thread

	// Thread running when the active interrupt was delivered
	interrupted *Thread

	yieldPending bool

	idle event
}

// New creates a kernel with an idle CPU.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		logger:  zap.L(),
		threads: map[int64]*Thread{},
		idle:    newEvent(),
	}

	k.intrCond = sync.NewCond(&k.mu)
	k.handler = newThread(k, "interrupt", nil)
	k.metrics = newMetricsCollector(k)

	for _, opt := range opts {
		opt(k)
	}

	k.logger = k.logger.Named("kernel")

	return k
}

// Fork creates a new thread running fn and makes it ready. The thread starts
// immediately if the CPU is idle.
func (k *Kernel) Fork(name string, fn func()) *Thread {
	if fn == nil {
		panic("Function is nil")
	}

	t := newThread(k, name, fn)

	k.mu.Lock()
	k.threads[t.id] = t
	k.readyLocked(t)
	k.mu.Unlock()

	k.metrics.reportFork()
	k.logger.Debug("Thread forked", zapThread(t))

	go t.main()

	return t
}

// mustCurrentLocked returns the running thread. Kernel thread operations
// invoked from elsewhere are a programming error; k.mu is released before
// panicking.
func (k *Kernel) mustCurrentLocked(op string) *Thread {
	if k.current == nil {
		k.mu.Unlock()
		panic(op + " called outside of a kernel thread")
	}

	return k.current
}

// Current returns the running thread or nil if the CPU is idle.
func (k *Kernel) Current() *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.current
}

func (k *Kernel) runLocked(t *Thread) {
	t.status = StatusRunning
	k.current = t
	k.metrics.reportSwitch()

	// Never blocks: every dispatch is consumed before the thread can give up
	// the CPU again.
	t.wake <- struct{}{}
}

func (k *Kernel) readyLocked(t *Thread) {
	t.status = StatusReady

	if k.current == nil {
		k.runLocked(t)
		return
	}

	k.ready = append(k.ready, t)
}

// dispatchLocked hands the CPU to the next ready thread or leaves it idle.
func (k *Kernel) dispatchLocked() {
	k.current = nil
	k.yieldPending = false

	if len(k.ready) > 0 {
		next := k.ready[0]
		k.ready[0] = nil
		k.ready = k.ready[1:]

		k.runLocked(next)
		return
	}

	k.notifyIdleLocked()
}

func (k *Kernel) isIdleLocked() bool {
	return k.current == nil && len(k.ready) == 0 && k.intrOwner == nil
}

func (k *Kernel) notifyIdleLocked() {
	if k.isIdleLocked() {
		k.idle.Set()
	}
}

// suspend waits until t is dispatched again. Interrupts are disabled for t
// afterwards if requested.
func (k *Kernel) suspend(t *Thread, reacquire bool) {
	<-t.wake

	if reacquire {
		k.mu.Lock()
		k.acquireInterruptsLocked(t)
		k.mu.Unlock()
	}
}

// Block suspends the running thread until another party passes it to Ready.
// Interrupts must be disabled by the caller, making the transition to the
// blocked state atomic with whatever the caller did to arrange its wakeup.
// Interrupts are enabled while the thread is blocked and disabled again when
// Block returns.
func (k *Kernel) Block() {
	k.mu.Lock()

	self := k.mustCurrentLocked("Block")

	if k.intrOwner != self {
		k.mu.Unlock()
		panic(fmt.Sprintf("thread %q blocking with interrupts enabled", self.name))
	}

	self.status = StatusBlocked
	k.releaseInterruptsLocked()
	k.dispatchLocked()
	k.mu.Unlock()

	k.suspend(self, true)
}

// Ready hands a blocked thread back to the ready set. It does not run the
// thread unless the CPU is idle. Interrupts must be disabled.
func (k *Kernel) Ready(t *Thread) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if t.k != k {
		panic(fmt.Sprintf("thread %q belongs to a different kernel", t.name))
	}

	if k.intrOwner == nil {
		panic(fmt.Sprintf("readying thread %q with interrupts enabled", t.name))
	}

	if t.status != StatusBlocked {
		panic(fmt.Sprintf("readying thread %q in state %s", t.name, t.status))
	}

	k.readyLocked(t)
}

// Yield gives up the CPU if another thread is ready. The caller is put at the
// end of the ready set.
func (k *Kernel) Yield() {
	k.mu.Lock()

	self := k.mustCurrentLocked("Yield")

	k.yieldPending = false

	if len(k.ready) == 0 {
		k.mu.Unlock()
		return
	}

	owned := k.intrOwner == self
	if owned {
		k.releaseInterruptsLocked()
	}

	self.status = StatusReady
	k.ready = append(k.ready, self)
	k.dispatchLocked()
	k.mu.Unlock()

	k.suspend(self, owned)
}

func (k *Kernel) finish(t *Thread) {
	k.mu.Lock()

	if k.intrOwner == t {
		k.releaseInterruptsLocked()
	}

	t.status = StatusFinished
	delete(k.threads, t.id)
	k.dispatchLocked()
	k.mu.Unlock()

	close(t.done)

	k.logger.Debug("Thread finished", zapThread(t))
}

// Live returns the number of threads which have not yet finished.
func (k *Kernel) Live() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.threads)
}

// Idle reports whether no thread is running or ready. Called from an
// interrupt handler the answer stays valid until the handler readies a thread.
func (k *Kernel) Idle() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.current == nil && len(k.ready) == 0
}

// Threads returns a snapshot of all unfinished threads ordered by ID.
func (k *Kernel) Threads() []ThreadInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	result := make([]ThreadInfo, 0, len(k.threads))

	for _, t := range k.threads {
		result = append(result, ThreadInfo{
			ID:     t.id,
			Name:   t.name,
			Status: t.status,
		})
	}

	slices.SortFunc(result, func(a, b ThreadInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return result
}

// Quiesce waits until the CPU is idle, i.e. no thread is running or ready and
// no interrupt handler is active, or the context is cancelled.
func (k *Kernel) Quiesce(ctx context.Context) error {
	for {
		k.mu.Lock()
		if k.isIdleLocked() {
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()

		select {
		case <-k.idle.Chan():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
