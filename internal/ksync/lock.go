// Package ksync implements blocking synchronization for kernel threads.
// State is only modified with interrupts disabled, which on a single CPU is
// sufficient for mutual exclusion.
package ksync

import (
	"fmt"

	"github.com/hansmi/kcoop/internal/kernel"
)

// Kernel is the thread substrate used by locks and conditions.
type Kernel interface {
	Current() *kernel.Thread
	Disable() kernel.Level
	Restore(kernel.Level)
	Block()
	Ready(*kernel.Thread)
}

func mustCurrent(k Kernel, op string) *kernel.Thread {
	self := k.Current()
	if self == nil {
		panic(op + " called outside of a kernel thread")
	}

	return self
}

// Lock is a mutual exclusion lock for kernel threads. Waiting threads are
// granted the lock in FIFO order.
type Lock struct {
	k    Kernel
	name string

	owner   *kernel.Thread
	waiters waitQueue
}

// NewLock returns an unlocked lock. The name is used in panic messages.
func NewLock(k Kernel, name string) *Lock {
	if k == nil {
		panic("Kernel is nil")
	}

	return &Lock{
		k:    k,
		name: name,
	}
}

// Name returns the name given at construction.
func (l *Lock) Name() string {
	return l.name
}

// acquireDisabled must be called with interrupts disabled.
func (l *Lock) acquireDisabled(self *kernel.Thread, level kernel.Level) {
	switch l.owner {
	case nil:
		l.owner = self

	case self:
		l.k.Restore(level)
		panic(fmt.Sprintf("thread %q acquiring lock %q it already holds", self.Name(), l.name))

	default:
		l.waiters.push(self)

		// Ownership is handed over by the releasing thread
		l.k.Block()
	}
}

// releaseDisabled must be called with interrupts disabled and the lock held.
func (l *Lock) releaseDisabled() {
	if next := l.waiters.pop(); next != nil {
		l.owner = next
		l.k.Ready(next)
	} else {
		l.owner = nil
	}
}

func (l *Lock) mustHoldDisabled(self *kernel.Thread, level kernel.Level, op string) {
	if l.owner != self {
		l.k.Restore(level)
		panic(fmt.Sprintf("%s: thread %q does not hold lock %q", op, self.Name(), l.name))
	}
}

// Acquire waits until the lock is free and takes it. Locks are not
// reentrant.
func (l *Lock) Acquire() {
	self := mustCurrent(l.k, "Acquire")

	level := l.k.Disable()
	l.acquireDisabled(self, level)
	l.k.Restore(level)
}

// Release frees the lock. The longest-waiting thread, if any, becomes the new
// owner.
func (l *Lock) Release() {
	self := mustCurrent(l.k, "Release")

	level := l.k.Disable()
	l.mustHoldDisabled(self, level, "Release")
	l.releaseDisabled()
	l.k.Restore(level)
}

// HeldByCurrentThread reports whether the running thread owns the lock.
func (l *Lock) HeldByCurrentThread() bool {
	self := l.k.Current()
	if self == nil {
		return false
	}

	level := l.k.Disable()
	defer l.k.Restore(level)

	return l.owner == self
}
