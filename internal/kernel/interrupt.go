package kernel

// Level is the interrupt state prior to a call to Disable.
type Level uint8

const (
	Enabled Level = iota
	Disabled
)

func (l Level) String() string {
	if l == Disabled {
		return "disabled"
	}

	return "enabled"
}

func (k *Kernel) acquireInterruptsLocked(owner *Thread) {
	for k.intrOwner != nil {
		k.intrCond.Wait()
	}

	k.intrOwner = owner
}

func (k *Kernel) releaseInterruptsLocked() {
	k.intrOwner = nil
	k.intrCond.Broadcast()
	k.notifyIdleLocked()
}

// Disable disables interrupts for the running thread and returns the previous
// level for use with Restore. Nested calls are permitted. If an interrupt
// handler is active the call waits for it to return.
func (k *Kernel) Disable() Level {
	k.mu.Lock()

	self := k.mustCurrentLocked("Disable")

	if k.intrOwner == self {
		k.mu.Unlock()
		return Disabled
	}

	k.acquireInterruptsLocked(self)
	k.mu.Unlock()

	return Enabled
}

// Restore returns interrupts to the level returned by Disable. Re-enabling
// interrupts honours a yield requested by an interrupt handler.
func (k *Kernel) Restore(level Level) {
	if level == Disabled {
		return
	}

	k.mu.Lock()

	self := k.mustCurrentLocked("Restore")

	if k.intrOwner != self {
		k.mu.Unlock()
		panic("Restore called without disabled interrupts")
	}

	k.releaseInterruptsLocked()

	yield := k.yieldPending
	k.mu.Unlock()

	if yield {
		k.Yield()
	}
}

// InterruptsDisabled reports whether the running thread has disabled
// interrupts.
func (k *Kernel) InterruptsDisabled() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.current != nil && k.intrOwner == k.current
}

// Interrupt runs fn as an interrupt handler. Handlers run with interrupts
// disabled and therefore never overlap with each other or with a section in
// which a thread has disabled interrupts. The call waits for such a section to
// end.
func (k *Kernel) Interrupt(fn func()) {
	k.mu.Lock()
	k.acquireInterruptsLocked(k.handler)
	k.interrupted = k.current
	k.mu.Unlock()

	defer func() {
		k.mu.Lock()
		k.interrupted = nil
		k.releaseInterruptsLocked()
		k.mu.Unlock()
	}()

	k.metrics.reportInterrupt()

	fn()
}

// YieldOnReturn requests the thread interrupted by the active handler to
// yield the next time it enables interrupts. Threads dispatched by the handler
// itself, e.g. onto an idle CPU, are not affected. Outside of a handler the
// call does nothing.
func (k *Kernel) YieldOnReturn() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.interrupted != nil && k.current == k.interrupted && len(k.ready) > 0 {
		k.yieldPending = true
	}
}
