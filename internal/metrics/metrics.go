// Package metrics records cache planning and serving metrics in Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines an interface to collect cache metrics.
type Metrics interface {
	// RecordPlan records the outcome of a storage capacity decision.
	RecordPlan(outcome string, requestedBytes int64)

	// RecordLookup records a cache lookup on a tier ("memory" or "disk").
	RecordLookup(tier string, hit bool)

	// RecordDownload records an upstream download.
	RecordDownload(duration float64, bytes int64, err error)

	// RecordEviction records entries removed from the disk cache.
	RecordEviction(count int, bytes int64)

	// SetDiskUsage reports bytes held by the disk cache.
	SetDiskUsage(bytes int64)
}

// promMetrics is a metrics collector that stores metrics in Prometheus.
type promMetrics struct {
	plans          *prometheus.CounterVec
	planBudget     prometheus.Gauge
	lookups        *prometheus.CounterVec
	downloads      *prometheus.HistogramVec
	downloadBytes  prometheus.Counter
	evictedEntries prometheus.Counter
	evictedBytes   prometheus.Counter
	diskUsage      prometheus.Gauge
}

var _ Metrics = &promMetrics{}

// NewPromMetrics creates collectors under prefix and registers them with reg.
func NewPromMetrics(reg prometheus.Registerer, prefix string) Metrics {
	m := &promMetrics{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_capacity_plans_total",
			Help: "Storage capacity decisions by outcome.",
		}, []string{"outcome"}),
		planBudget: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_capacity_plan_bytes",
			Help: "Disk cache budget granted by the most recent capacity decision.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_cache_lookups_total",
			Help: "Cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		downloads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_download_duration_seconds",
			Help:    "Duration of upstream image downloads in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"result"}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_download_bytes_total",
			Help: "Bytes downloaded from upstream.",
		}),
		evictedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_disk_evictions_total",
			Help: "Entries evicted from the disk cache.",
		}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_disk_evicted_bytes_total",
			Help: "Bytes evicted from the disk cache.",
		}),
		diskUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_disk_cache_bytes",
			Help: "Bytes currently held by the disk cache.",
		}),
	}

	reg.MustRegister(m.plans, m.planBudget, m.lookups, m.downloads,
		m.downloadBytes, m.evictedEntries, m.evictedBytes, m.diskUsage)
	return m
}

// RecordPlan records the outcome of a storage capacity decision.
func (m *promMetrics) RecordPlan(outcome string, requestedBytes int64) {
	m.plans.WithLabelValues(outcome).Inc()
	m.planBudget.Set(float64(requestedBytes))
}

// RecordLookup records a cache lookup.
func (m *promMetrics) RecordLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(tier, result).Inc()
}

// RecordDownload records an upstream download.
func (m *promMetrics) RecordDownload(duration float64, bytes int64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.downloads.WithLabelValues(result).Observe(duration)
	if bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
}

// RecordEviction records entries removed from the disk cache.
func (m *promMetrics) RecordEviction(count int, bytes int64) {
	m.evictedEntries.Add(float64(count))
	m.evictedBytes.Add(float64(bytes))
}

// SetDiskUsage reports bytes held by the disk cache.
func (m *promMetrics) SetDiskUsage(bytes int64) {
	m.diskUsage.Set(float64(bytes))
}
