package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// StatsSource is anything that reports go-redis pool statistics.
type StatsSource interface {
	Stats() *redis.PoolStats
}

// PoolCollector exports the shared Redis pool statistics at scrape time.
type PoolCollector struct {
	source   StatsSource
	conns    *prometheus.Desc
	lookups  *prometheus.Desc
	timeouts *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector builds a collector under the given namespace ("auth" when empty).
func NewPoolCollector(namespace string, source StatsSource) *PoolCollector {
	if namespace == "" {
		namespace = "auth"
	}
	return &PoolCollector{
		source: source,
		conns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "redis_pool", "connections"),
			"Connections in the Redis pool by state.",
			[]string{"state"}, nil,
		),
		lookups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "redis_pool", "lookups_total"),
			"Pool connection lookups by result.",
			[]string{"result"}, nil,
		),
		timeouts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "redis_pool", "timeouts_total"),
			"Times a caller waited for a free connection and gave up.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.lookups
	ch <- c.timeouts
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	if stats == nil {
		return
	}

	idle := float64(stats.IdleConns)
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, idle, "idle")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(stats.TotalConns)-idle, "in_use")
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(stats.Hits), "hit")
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(stats.Misses), "miss")
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
}
