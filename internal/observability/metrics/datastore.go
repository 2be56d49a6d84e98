package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for scan storage operations.
// It implements Recorder.
type DatastoreMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	upsertsTotal      *prometheus.CounterVec
	lockWaitDuration  prometheus.Histogram
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize datastore metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() error {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_db_operations_total",
			Help: "Total number of scan store operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "codescan_db_operation_duration_seconds",
			Help: "Time taken for scan store operations",
			// 1ms to ~2s, covering local SQLite writes through slow remote MySQL
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_db_errors_total",
			Help: "Total number of scan store errors",
		},
		[]string{"operation", "error_type"},
	)

	m.upsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_db_upserts_total",
			Help: "Upsert outcomes: created, existing or race_lost",
		},
		[]string{"result"},
	)

	m.lockWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "codescan_db_upsert_lock_wait_seconds",
		Help:    "Time spent waiting for the per-value upsert lock",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	return nil
}

func (m *DatastoreMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.errorsTotal,
		m.upsertsTotal,
		m.lockWaitDuration,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordOperation implements Recorder.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder. It also counts the operation as failed.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
	m.operationsTotal.WithLabelValues(operation, StatusError).Inc()
}

// RecordUpsertResult records how an upsert resolved.
func (m *DatastoreMetrics) RecordUpsertResult(result string) {
	m.upsertsTotal.WithLabelValues(result).Inc()
}

// RecordLockWait records time spent waiting on the keyed upsert lock.
func (m *DatastoreMetrics) RecordLockWait(seconds float64) {
	m.lockWaitDuration.Observe(seconds)
}
