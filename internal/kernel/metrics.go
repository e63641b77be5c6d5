package kernel

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricsCollector struct {
	k *Kernel

	forkCount      prometheus.Counter
	switchCount    prometheus.Counter
	interruptCount prometheus.Counter

	readyDesc *prometheus.Desc
	liveDesc  *prometheus.Desc

	nested []prometheus.Collector
}

var _ prometheus.Collector = (*metricsCollector)(nil)

func newMetricsCollector(k *Kernel) *metricsCollector {
	c := &metricsCollector{
		k: k,
	}

	c.forkCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threads_forked_total",
		Help: "Number of threads created.",
	})
	c.switchCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "context_switches_total",
		Help: "Number of times a thread was given the CPU.",
	})
	c.interruptCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interrupts_total",
		Help: "Number of interrupt handler invocations.",
	})

	c.readyDesc = prometheus.NewDesc("ready_threads",
		"Number of threads waiting for the CPU.", nil, nil)
	c.liveDesc = prometheus.NewDesc("live_threads",
		"Number of threads not yet finished.", nil, nil)

	c.nested = append(c.nested,
		c.forkCount,
		c.switchCount,
		c.interruptCount,
	)

	return c
}

func (c *metricsCollector) reportFork() {
	c.forkCount.Inc()
}

func (c *metricsCollector) reportSwitch() {
	c.switchCount.Inc()
}

func (c *metricsCollector) reportInterrupt() {
	c.interruptCount.Inc()
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.readyDesc
	ch <- c.liveDesc

	for _, i := range c.nested {
		i.Describe(ch)
	}
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.k.mu.Lock()
	ready := len(c.k.ready)
	live := len(c.k.threads)
	c.k.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.readyDesc, prometheus.GaugeValue, float64(ready))
	ch <- prometheus.MustNewConstMetric(c.liveDesc, prometheus.GaugeValue, float64(live))

	for _, i := range c.nested {
		i.Collect(ch)
	}
}

// Collector returns a Prometheus collector exporting scheduler statistics.
func (k *Kernel) Collector() prometheus.Collector {
	return k.metrics
}
