package testutil

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// CollectAndCompare reports a test error if the collected metrics do not
// match the expected text exposition.
func CollectAndCompare(t *testing.T, c prometheus.Collector, want string, metricNames ...string) {
	t.Helper()

	if err := testutil.CollectAndCompare(c, strings.NewReader(want), metricNames...); err != nil {
		t.Error(err)
	}
}

// ScrapeAndCompare is like CollectAndCompare for metrics served via HTTP.
func ScrapeAndCompare(t *testing.T, url, want string, metricNames ...string) {
	t.Helper()

	if err := testutil.ScrapeAndCompare(url, strings.NewReader(want), metricNames...); err != nil {
		t.Error(err)
	}
}
