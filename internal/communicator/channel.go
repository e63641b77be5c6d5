// Package communicator implements a synchronous rendezvous channel for
// kernel threads. Every value is handed from exactly one sender to exactly one
// receiver and the sender does not return before the value was taken.
package communicator

import (
	"github.com/hansmi/kcoop/internal/ksync"
	"go.uber.org/zap"
)

// Option configures a channel.
type Option func(*Channel)

// WithLogger sets the logger. Defaults to the global zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// Channel is an unbuffered channel of int32 values. A transfer is a
// handshake in three steps: the sender stores the value, a receiver takes it
// and acknowledges, the sender returns.
type Channel struct {
	logger *zap.Logger

	lock      *ksync.Lock
	speakers  *ksync.Condition
	listeners *ksync.Condition
	ack       *ksync.Condition

	// Guarded by lock
	value int32
	full  bool

	// Invoked by the receiver with the lock held, right after taking a value
	onCapture func(int32)

	metrics *metricsCollector
}

// New creates an empty channel.
func New(k ksync.Kernel, opts ...Option) *Channel {
	c := &Channel{
		logger: zap.L(),
		lock:   ksync.NewLock(k, "communicator"),
	}

	c.speakers = ksync.NewCondition("speakers", c.lock)
	c.listeners = ksync.NewCondition("listeners", c.lock)
	c.ack = ksync.NewCondition("acknowledge", c.lock)

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.Named("communicator")
	c.metrics = newMetricsCollector()

	return c
}

// Send stores v in the channel and blocks until a receiver has taken it.
func (c *Channel) Send(v int32) {
	c.lock.Acquire()
	defer c.lock.Release()

	for c.full {
		c.metrics.reportSpeakerWait()
		c.speakers.Wait()
	}

	if c.ack.Waiting() != 0 {
		panic("sender storing a value while another awaits acknowledgement")
	}

	c.value = v
	c.full = true
	c.metrics.reportSend()

	c.listeners.Signal()

	// The slot is only emptied by a receiver, which signals this sender in the
	// same critical section.
	c.ack.Wait()
}

// Receive blocks until a value is available, takes it and releases its
// sender.
func (c *Channel) Receive() int32 {
	c.lock.Acquire()
	defer c.lock.Release()

	for !c.full {
		c.speakers.Signal()
		c.metrics.reportListenerWait()
		c.listeners.Wait()
	}

	v := c.value
	c.value = 0
	c.full = false

	if c.onCapture != nil {
		c.onCapture(v)
	}

	c.metrics.reportExchange()

	c.ack.Signal()

	// Senders queued while the slot was full are not woken by anyone else
	c.speakers.Signal()

	c.logger.Debug("Value exchanged", zap.Int32("value", v))

	return v
}
