package kernel

import (
	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"
)

var threadCounter atomic.Int64

func nextThreadID() int64 {
	return threadCounter.Inc()
}

// Status describes the scheduling state of a thread.
type Status uint8

const (
	StatusNew Status = iota
	StatusReady
	StatusRunning
	StatusBlocked
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusBlocked:
		return "blocked"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Thread is a kernel thread backed by a goroutine. It only executes while it
// holds the simulated CPU.
type Thread struct {
	k    *Kernel
	id   int64
	name string
	fn   func()

	// Guarded by Kernel.mu
	status Status

	// Receives one token per dispatch
	wake chan struct{}

	done chan struct{}
}

var _ zapcore.ObjectMarshaler = (*Thread)(nil)

func newThread(k *Kernel, name string, fn func()) *Thread {
	return &Thread{
		k:    k,
		id:   nextThreadID(),
		name: name,
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// ID returns the process-wide unique thread identifier.
func (t *Thread) ID() int64 {
	return t.id
}

// Name returns the name given when the thread was forked.
func (t *Thread) Name() string {
	return t.name
}

// Done returns a channel closed after the thread function has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

func (t *Thread) MarshalLogObject(oe zapcore.ObjectEncoder) error {
	oe.AddInt64("id", t.id)
	oe.AddString("name", t.name)
	return nil
}

func (t *Thread) main() {
	<-t.wake

	t.k.logger.Debug("Thread started", zapThread(t))

	t.fn()

	t.k.finish(t)
}

// ThreadInfo is a point-in-time description of a thread.
type ThreadInfo struct {
	ID     int64
	Name   string
	Status Status
}
