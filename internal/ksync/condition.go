package ksync

import (
	"github.com/hansmi/kcoop/internal/kernel"
)

// Condition is a condition variable with Mesa semantics. A signalled thread
// is made runnable and has to reacquire the lock before Wait returns; the
// waited-for state may have changed again in the meantime. Every operation
// requires the associated lock to be held.
type Condition struct {
	name string
	lock *Lock

	waiters waitQueue
}

// NewCondition returns a condition variable associated with lock.
func NewCondition(name string, lock *Lock) *Condition {
	if lock == nil {
		panic("Lock is nil")
	}

	return &Condition{
		name: name,
		lock: lock,
	}
}

// Name returns the name given at construction.
func (c *Condition) Name() string {
	return c.name
}

func (c *Condition) enter(op string) (*kernel.Thread, kernel.Level) {
	k := c.lock.k
	self := mustCurrent(k, op)

	level := k.Disable()
	c.lock.mustHoldDisabled(self, level, op)

	return self, level
}

// Wait releases the lock, suspends the running thread until it is signalled
// and reacquires the lock. Releasing the lock and joining the wait queue
// happen atomically.
func (c *Condition) Wait() {
	self, level := c.enter("Wait")

	c.lock.releaseDisabled()
	c.waiters.push(self)
	c.lock.k.Block()

	c.lock.acquireDisabled(self, level)
	c.lock.k.Restore(level)
}

// wakeDisabled must be called with interrupts disabled.
func (c *Condition) wakeDisabled() bool {
	next := c.waiters.pop()
	if next == nil {
		return false
	}

	c.lock.k.Ready(next)

	return true
}

// Signal wakes the longest-waiting thread. Without waiters the call has no
// effect.
func (c *Condition) Signal() {
	_, level := c.enter("Signal")
	c.wakeDisabled()
	c.lock.k.Restore(level)
}

// Broadcast wakes all waiting threads in FIFO order.
func (c *Condition) Broadcast() {
	_, level := c.enter("Broadcast")

	for c.wakeDisabled() {
	}

	c.lock.k.Restore(level)
}

// Waiting returns the number of threads blocked in Wait. The lock must be
// held.
func (c *Condition) Waiting() int {
	_, level := c.enter("Waiting")
	defer c.lock.k.Restore(level)

	return c.waiters.len()
}
