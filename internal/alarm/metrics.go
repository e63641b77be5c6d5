package alarm

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricsCollector struct {
	a *Alarm

	sleepCount  prometheus.Counter
	wakeupCount prometheus.Counter
	wakeDelay   prometheus.Histogram

	sleepingDesc *prometheus.Desc

	nested []prometheus.Collector
}

var _ prometheus.Collector = (*metricsCollector)(nil)

func newMetricsCollector(a *Alarm) *metricsCollector {
	c := &metricsCollector{
		a: a,
	}

	c.sleepCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sleeps_total",
		Help: "Number of times a thread went to sleep.",
	})
	c.wakeupCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wakeups_total",
		Help: "Number of sleeping threads made runnable.",
	})
	c.wakeDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wake_delay_ticks",
		Help:    "Ticks between the requested wake tick and the interrupt waking the thread.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	c.sleepingDesc = prometheus.NewDesc("sleeping_threads",
		"Number of threads currently sleeping.", nil, nil)

	c.nested = append(c.nested,
		c.sleepCount,
		c.wakeupCount,
		c.wakeDelay,
	)

	return c
}

func (c *metricsCollector) reportSleep() {
	c.sleepCount.Inc()
}

func (c *metricsCollector) reportWakeup(delay uint64) {
	c.wakeupCount.Inc()
	c.wakeDelay.Observe(float64(delay))
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sleepingDesc

	for _, i := range c.nested {
		i.Describe(ch)
	}
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.sleepingDesc, prometheus.GaugeValue, float64(c.a.Len()))

	for _, i := range c.nested {
		i.Collect(ch)
	}
}

// Collector returns a Prometheus collector exporting sleep statistics.
func (a *Alarm) Collector() prometheus.Collector {
	return a.metrics
}
