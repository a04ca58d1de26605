package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"asynchttp/internal/httpclient"
)

// StatsSource reports pool usage. *httpclient.Client implements it.
type StatsSource interface {
	Stats() (httpclient.PoolStats, error)
}

// PoolCollector exports pool limits and usage as gauges. A closed client
// exports nothing.
type PoolCollector struct {
	source StatsSource

	maxTotal    *prometheus.Desc
	maxPerRoute *prometheus.Desc
	leased      *prometheus.Desc
	pending     *prometheus.Desc
	ioThreads   *prometheus.Desc
}

// NewPoolCollector returns a collector reading from source on every scrape.
func NewPoolCollector(source StatsSource) *PoolCollector {
	return &PoolCollector{
		source:      source,
		maxTotal:    prometheus.NewDesc("asynchttp_pool_max_total", "Maximum leased connections across all routes", nil, nil),
		maxPerRoute: prometheus.NewDesc("asynchttp_pool_max_per_route", "Maximum connections per route", nil, nil),
		leased:      prometheus.NewDesc("asynchttp_pool_leased", "Requests currently holding a pool lease", nil, nil),
		pending:     prometheus.NewDesc("asynchttp_pool_pending", "Requests waiting for dispatch or a lease", nil, nil),
		ioThreads:   prometheus.NewDesc("asynchttp_pool_io_threads", "Dispatcher goroutines", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxTotal
	ch <- c.maxPerRoute
	ch <- c.leased
	ch <- c.pending
	ch <- c.ioThreads
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.source.Stats()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.maxTotal, prometheus.GaugeValue, float64(stats.MaxTotal))
	ch <- prometheus.MustNewConstMetric(c.maxPerRoute, prometheus.GaugeValue, float64(stats.MaxPerRoute))
	ch <- prometheus.MustNewConstMetric(c.leased, prometheus.GaugeValue, float64(stats.Leased))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.Pending))
	ch <- prometheus.MustNewConstMetric(c.ioThreads, prometheus.GaugeValue, float64(stats.IOThreads))
}
