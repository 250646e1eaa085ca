// Package metrics provides Prometheus metrics for epsshift runs.
//
// A run is a short-lived process, so nothing is served over HTTP. When a
// textfile path is configured the registry is written in the text exposition
// format for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Side labels distinguish the two snapshots of a comparison.
const (
	SideStart = "start"
	SideEnd   = "end"
)

// Manager manages all Prometheus metrics for a comparison run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         *prometheus.Registry

	// Fetch metrics
	fetchDuration prometheus.Histogram
	fetchAttempts prometheus.Counter
	fetchErrors   *prometheus.CounterVec
	fetchBytes    prometheus.Counter

	// Snapshot metrics
	snapshotRecords    *prometheus.GaugeVec
	snapshotDuplicates *prometheus.CounterVec

	// Comparison metrics
	joinedRecords    prometheus.Gauge
	increasedRecords prometheus.Gauge
	reportedRecords  prometheus.Gauge
	lastRunUnix      prometheus.Gauge
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "epsshift",
		subsystem:        "compare",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		enabled:          true,
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_duration_seconds",
		Help:        "Time spent downloading and extracting one snapshot",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.fetchAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_attempts_total",
		Help:        "HTTP GET attempts made for snapshots, retries included",
		ConstLabels: m.constLabels,
	})

	m.fetchErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_errors_total",
		Help:        "Failed snapshot fetch attempts by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.fetchBytes = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fetch_bytes_total",
		Help:        "Compressed bytes downloaded",
		ConstLabels: m.constLabels,
	})

	m.snapshotRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_records",
		Help:        "Records loaded per snapshot",
		ConstLabels: m.constLabels,
	}, []string{"side"})

	m.snapshotDuplicates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_duplicates_total",
		Help:        "Rows dropped because their CVE was already loaded",
		ConstLabels: m.constLabels,
	}, []string{"side"})

	m.joinedRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "joined_records",
		Help:        "CVEs present in both snapshots",
		ConstLabels: m.constLabels,
	})

	m.increasedRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "increased_records",
		Help:        "Joined CVEs whose score increased",
		ConstLabels: m.constLabels,
	})

	m.reportedRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "reported_records",
		Help:        "CVEs included in the report",
		ConstLabels: m.constLabels,
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time of the last completed comparison",
		ConstLabels: m.constLabels,
	})
}

// RecordFetch records one finished snapshot fetch.
func (m *Manager) RecordFetch(d time.Duration, bytes int64) {
	if !m.active() {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	m.fetchBytes.Add(float64(bytes))
}

// RecordFetchAttempt counts one HTTP GET.
func (m *Manager) RecordFetchAttempt() {
	if !m.active() {
		return
	}
	m.fetchAttempts.Inc()
}

// RecordFetchError counts a failed attempt.
func (m *Manager) RecordFetchError(reason string) {
	if !m.active() {
		return
	}
	m.fetchErrors.WithLabelValues(reason).Inc()
}

// RecordSnapshot records the size of a loaded snapshot.
func (m *Manager) RecordSnapshot(side string, records, duplicates int) {
	if !m.active() {
		return
	}
	m.snapshotRecords.WithLabelValues(side).Set(float64(records))
	m.snapshotDuplicates.WithLabelValues(side).Add(float64(duplicates))
}

// RecordComparison records the outcome of a comparison.
func (m *Manager) RecordComparison(joined, increased, reported int) {
	if !m.active() {
		return
	}
	m.joinedRecords.Set(float64(joined))
	m.increasedRecords.Set(float64(increased))
	m.reportedRecords.Set(float64(reported))
	m.lastRunUnix.SetToCurrentTime()
}

// Registry returns the registry the metrics live in.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically by the client library.
func (m *Manager) WriteTextfile(path string) error {
	if !m.active() || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}

func (m *Manager) active() bool {
	return m != nil && m.enabled
}
