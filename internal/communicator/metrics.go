package communicator

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricsCollector struct {
	sendCount         prometheus.Counter
	exchangeCount     prometheus.Counter
	speakerWaitCount  prometheus.Counter
	listenerWaitCount prometheus.Counter

	nested []prometheus.Collector
}

var _ prometheus.Collector = (*metricsCollector)(nil)

func newMetricsCollector() *metricsCollector {
	c := &metricsCollector{}

	c.sendCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sends_total",
		Help: "Number of values stored by senders.",
	})
	c.exchangeCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchanges_total",
		Help: "Number of values taken by receivers.",
	})
	c.speakerWaitCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "speaker_waits_total",
		Help: "Number of times a sender waited for the slot to become empty.",
	})
	c.listenerWaitCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listener_waits_total",
		Help: "Number of times a receiver waited for a value.",
	})

	c.nested = append(c.nested,
		c.sendCount,
		c.exchangeCount,
		c.speakerWaitCount,
		c.listenerWaitCount,
	)

	return c
}

func (c *metricsCollector) reportSend() {
	c.sendCount.Inc()
}

func (c *metricsCollector) reportExchange() {
	c.exchangeCount.Inc()
}

func (c *metricsCollector) reportSpeakerWait() {
	c.speakerWaitCount.Inc()
}

func (c *metricsCollector) reportListenerWait() {
	c.listenerWaitCount.Inc()
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, i := range c.nested {
		i.Describe(ch)
	}
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, i := range c.nested {
		i.Collect(ch)
	}
}

// Collector returns a Prometheus collector exporting exchange statistics.
func (c *Channel) Collector() prometheus.Collector {
	return c.metrics
}
