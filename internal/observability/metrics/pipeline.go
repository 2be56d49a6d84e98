package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/codescan/internal/logger"
)

// Detection decision label values.
const (
	DecisionAdmitted   = "admitted"
	DecisionSuppressed = "suppressed"
	DecisionRejected   = "rejected"
)

// PipelineMetrics contains Prometheus metrics for the scan pipeline.
type PipelineMetrics struct {
	registry *prometheus.Registry

	detectionsTotal    *prometheus.CounterVec
	resultsTotal       *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	storageFaultsTotal prometheus.Counter
	actionErrorsTotal  *prometheus.CounterVec
	inFlight           prometheus.Gauge
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_detections_total",
			Help: "Detections received by gate decision and code type",
		},
		[]string{"decision", "code_type"},
	)

	m.resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_scans_emitted_total",
			Help: "Emitted scan records by code type, enrichment outcome and whether the record was new",
		},
		[]string{"code_type", "enrichment", "created"},
	)

	m.processingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codescan_detection_processing_seconds",
			Help:    "Time from admission to emitted record",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12*2),
		},
		[]string{"code_type"},
	)

	m.storageFaultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codescan_storage_faults_total",
		Help: "Detections that failed because the scan store returned an error",
	})

	m.actionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_action_errors_total",
			Help: "Post-emit action failures by action",
		},
		[]string{"action"},
	)

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "codescan_pipeline_in_flight",
		Help: "Admitted detections not yet stored",
	})

	return nil
}

func (m *PipelineMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.detectionsTotal,
		m.resultsTotal,
		m.processingDuration,
		m.storageFaultsTotal,
		m.actionErrorsTotal,
		m.inFlight,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordDetection records a gate decision.
func (m *PipelineMetrics) RecordDetection(decision, codeType string) {
	m.detectionsTotal.WithLabelValues(decision, codeType).Inc()
}

// RecordEmitted records an emitted record and its end-to-end duration.
func (m *PipelineMetrics) RecordEmitted(codeType, enrichment string, created bool, duration time.Duration) {
	createdLabel := "false"
	if created {
		createdLabel = "true"
	}
	m.resultsTotal.WithLabelValues(codeType, enrichment, createdLabel).Inc()
	m.processingDuration.WithLabelValues(codeType).Observe(duration.Seconds())
}

// RecordStorageFault records a failed store operation.
func (m *PipelineMetrics) RecordStorageFault() {
	m.storageFaultsTotal.Inc()
}

// RecordActionError records a failed post-emit action.
func (m *PipelineMetrics) RecordActionError(action string) {
	m.actionErrorsTotal.WithLabelValues(action).Inc()
}

// WorkStarted increments the in-flight gauge.
func (m *PipelineMetrics) WorkStarted() {
	m.inFlight.Inc()
}

// WorkFinished decrements the in-flight gauge.
func (m *PipelineMetrics) WorkFinished() {
	m.inFlight.Dec()
}

// InFlight returns the current in-flight gauge value.
func (m *PipelineMetrics) InFlight() float64 {
	metric := &dto.Metric{}
	if err := m.inFlight.Write(metric); err != nil {
		getLogger().Warn("failed to read pipeline in-flight gauge", logger.Error(err))
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}
