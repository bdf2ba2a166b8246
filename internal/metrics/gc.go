package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GCMetrics holds metrics for a garbage collection run.
type GCMetrics struct {
	// ScannedAssets counts candidate assets enumerated, by store.
	ScannedAssets *prometheus.CounterVec

	// TaggedAssets counts assets that received an isolation tag, by store.
	TaggedAssets *prometheus.CounterVec

	// UntaggedAssets counts assets whose isolation tag was removed after
	// the asset became referenced again, by store.
	UntaggedAssets *prometheus.CounterVec

	// DeletedAssets counts assets permanently deleted, by store.
	DeletedAssets *prometheus.CounterVec

	// ReclaimedBytes counts bytes reclaimed by deletion, by store.
	ReclaimedBytes *prometheus.CounterVec

	// RootsSize tracks the number of asset hashes in the active root set.
	RootsSize prometheus.Gauge

	// RootsAgeSeconds tracks the age of the last successful root refresh.
	RootsAgeSeconds prometheus.Gauge

	// SweepDuration observes the wall time of a full store sweep.
	SweepDuration *prometheus.HistogramVec
}

// NewGCMetrics creates and registers GC metrics.
// Uses promauto for automatic registration with the default registry.
func NewGCMetrics() *GCMetrics {
	return newGCMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewGCMetricsWithRegistry creates GC metrics registered with a custom
// registry. Useful for testing to avoid conflicts with the default registry.
func NewGCMetricsWithRegistry(reg prometheus.Registerer) *GCMetrics {
	return newGCMetrics(promauto.With(reg))
}

func newGCMetrics(factory promauto.Factory) *GCMetrics {
	return &GCMetrics{
		ScannedAssets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetgc",
				Subsystem: "sweep",
				Name:      "scanned_assets_total",
				Help:      "Number of candidate assets enumerated from the store.",
			},
			[]string{"store"},
		),
		TaggedAssets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetgc",
				Subsystem: "sweep",
				Name:      "tagged_assets_total",
				Help:      "Number of assets that received an isolation tag.",
			},
			[]string{"store"},
		),
		UntaggedAssets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetgc",
				Subsystem: "sweep",
				Name:      "untagged_assets_total",
				Help:      "Number of assets whose isolation tag was removed after becoming referenced again.",
			},
			[]string{"store"},
		),
		DeletedAssets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetgc",
				Subsystem: "sweep",
				Name:      "deleted_assets_total",
				Help:      "Number of assets permanently deleted.",
			},
			[]string{"store"},
		),
		ReclaimedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assetgc",
				Subsystem: "sweep",
				Name:      "reclaimed_bytes_total",
				Help:      "Bytes reclaimed by asset deletion.",
			},
			[]string{"store"},
		),
		RootsSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "assetgc",
				Subsystem: "roots",
				Name:      "size",
				Help:      "Number of asset hashes referenced by deployed stack templates.",
			},
		),
		RootsAgeSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "assetgc",
				Subsystem: "roots",
				Name:      "age_seconds",
				Help:      "Age of the last successful root set refresh.",
			},
		),
		SweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "assetgc",
				Subsystem: "sweep",
				Name:      "duration_seconds",
				Help:      "Wall time of a full store sweep.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"store"},
		),
	}
}

// RecordScanned adds to the scanned asset count for a store.
func (m *GCMetrics) RecordScanned(store string, n int) {
	m.ScannedAssets.WithLabelValues(store).Add(float64(n))
}

// RecordTagged adds to the tagged asset count for a store.
func (m *GCMetrics) RecordTagged(store string, n int) {
	m.TaggedAssets.WithLabelValues(store).Add(float64(n))
}

// RecordUntagged adds to the untagged asset count for a store.
func (m *GCMetrics) RecordUntagged(store string, n int) {
	m.UntaggedAssets.WithLabelValues(store).Add(float64(n))
}

// RecordDeleted adds to the deleted asset count and reclaimed bytes for a store.
func (m *GCMetrics) RecordDeleted(store string, n int, bytes int64) {
	m.DeletedAssets.WithLabelValues(store).Add(float64(n))
	m.ReclaimedBytes.WithLabelValues(store).Add(float64(bytes))
}

// RecordRoots updates the root set size and age gauges.
func (m *GCMetrics) RecordRoots(size int, ageSeconds float64) {
	m.RootsSize.Set(float64(size))
	m.RootsAgeSeconds.Set(ageSeconds)
}

// ObserveSweep records the duration of a completed store sweep.
func (m *GCMetrics) ObserveSweep(store string, seconds float64) {
	m.SweepDuration.WithLabelValues(store).Observe(seconds)
}
