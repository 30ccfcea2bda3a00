// docprovider.go exports DocProvider cache and detection counters.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rydnr/bytehot-observe/pkg/bytehot/flow"
)

// PerformanceSource is satisfied by *flow.DocProvider.
type PerformanceSource interface {
	PerformanceMetrics() flow.Metrics
}

// DocProviderCollector reads a PerformanceSource on every scrape.
type DocProviderCollector struct {
	source PerformanceSource

	cacheHits      *prometheus.Desc
	cacheMisses    *prometheus.Desc
	cacheHitRate   *prometheus.Desc
	detectionCalls *prometheus.Desc
	cachedEntries  *prometheus.Desc
	recentEvents   *prometheus.Desc
	active         *prometheus.Desc
}

// NewDocProviderCollector creates a collector for source.
func NewDocProviderCollector(source PerformanceSource) *DocProviderCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "docs", n) }
	return &DocProviderCollector{
		source:         source,
		cacheHits:      prometheus.NewDesc(name("cache_hits_total"), "Documentation URL cache hits.", nil, nil),
		cacheMisses:    prometheus.NewDesc(name("cache_misses_total"), "Documentation URL cache misses.", nil, nil),
		cacheHitRate:   prometheus.NewDesc(name("cache_hit_ratio"), "Documentation URL cache hit ratio.", nil, nil),
		detectionCalls: prometheus.NewDesc(name("flow_detection_calls_total"), "Contextual documentation requests that ran flow detection.", nil, nil),
		cachedEntries:  prometheus.NewDesc(name("cached_entries"), "Entries held by the provider caches.", []string{"cache"}, nil),
		recentEvents:   prometheus.NewDesc(name("recent_events"), "Events in the recent-event buffer.", nil, nil),
		active:         prometheus.NewDesc(name("flow_integration_active"), "1 when flow detection has run at least once.", nil, nil),
	}
}

func (c *DocProviderCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheHitRate
	ch <- c.detectionCalls
	ch <- c.cachedEntries
	ch <- c.recentEvents
	ch <- c.active
}

func (c *DocProviderCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.source.PerformanceMetrics()

	active := 0.0
	if m.IntegrationActive {
		active = 1
	}

	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(m.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(m.CacheMisses))
	ch <- prometheus.MustNewConstMetric(c.cacheHitRate, prometheus.GaugeValue, m.CacheHitRate)
	ch <- prometheus.MustNewConstMetric(c.detectionCalls, prometheus.CounterValue, float64(m.FlowDetectionCalls))
	ch <- prometheus.MustNewConstMetric(c.cachedEntries, prometheus.GaugeValue, float64(m.CachedDocs), "docs")
	ch <- prometheus.MustNewConstMetric(c.cachedEntries, prometheus.GaugeValue, float64(m.CachedFlows), "flows")
	ch <- prometheus.MustNewConstMetric(c.recentEvents, prometheus.GaugeValue, float64(m.RecentEvents))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, active)
}
