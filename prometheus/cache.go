package prometheus

import (
	"github.com/fwojciec/kbase/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource provides cache statistics.
type StatsSource interface {
	Stats() cache.Stats
}

// Ensure CacheCollector implements prometheus.Collector.
var _ prometheus.Collector = (*CacheCollector)(nil)

// CacheCollector exports cache statistics, read on every scrape.
type CacheCollector struct {
	source StatsSource

	entries      *prometheus.Desc
	capacityUsed *prometheus.Desc
	lookups      *prometheus.Desc
	evictions    *prometheus.Desc
	hitRate      *prometheus.Desc
	efficiency   *prometheus.Desc
}

// NewCacheCollector creates a collector for source.
func NewCacheCollector(source StatsSource) *CacheCollector {
	fq := func(name string) string { return prometheus.BuildFQName(namespace, "cache", name) }
	return &CacheCollector{
		source:       source,
		entries:      prometheus.NewDesc(fq("entries"), "Number of cache entries by tier", []string{"tier"}, nil),
		capacityUsed: prometheus.NewDesc(fq("capacity_used_percent"), "Response tier fill level in percent", nil, nil),
		lookups:      prometheus.NewDesc(fq("lookups_total"), "Cache lookups by tier and result", []string{"tier", "result"}, nil),
		evictions:    prometheus.NewDesc(fq("evictions_total"), "Entries removed by eviction", nil, nil),
		hitRate:      prometheus.NewDesc(fq("hit_rate"), "Fraction of response lookups that hit", nil, nil),
		efficiency:   prometheus.NewDesc(fq("efficiency"), "Hit rate weighed against free capacity", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacityUsed
	ch <- c.lookups
	ch <- c.evictions
	ch <- c.hitRate
	ch <- c.efficiency
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Entries), "response")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.SearchEntries), "search")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.EmbeddingEntries), "embedding")
	ch <- prometheus.MustNewConstMetric(c.capacityUsed, prometheus.GaugeValue, st.CapacityUsed)
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.Hits), "response", "hit")
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.Misses), "response", "miss")
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.SearchHits), "search", "hit")
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.SearchMisses), "search", "miss")
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.SimilarHits), "similar", "hit")
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, st.HitRate)
	ch <- prometheus.MustNewConstMetric(c.efficiency, prometheus.GaugeValue, st.Efficiency)
}
