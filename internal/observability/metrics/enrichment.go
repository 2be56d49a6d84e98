package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EnrichmentMetrics contains Prometheus metrics for product lookups.
type EnrichmentMetrics struct {
	registry *prometheus.Registry

	lookupsTotal   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	cacheTotal     *prometheus.CounterVec
	requestsTotal  *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	inFlight       prometheus.Gauge
}

// NewEnrichmentMetrics creates and registers new enrichment metrics
func NewEnrichmentMetrics(registry *prometheus.Registry) (*EnrichmentMetrics, error) {
	m := &EnrichmentMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize enrichment metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register enrichment metrics: %w", err)
	}
	return m, nil
}

func (m *EnrichmentMetrics) initMetrics() error {
	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_enrichment_lookups_total",
			Help: "Product lookups by outcome (found, not_found, unavailable)",
		},
		[]string{"outcome"},
	)

	m.lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "codescan_enrichment_lookup_duration_seconds",
			Help: "Time taken for a product lookup including retries",
			// 10ms to ~40s; the configured timeout normally caps it at 10s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"outcome"},
	)

	m.cacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_enrichment_cache_total",
			Help: "Lookup cache accesses by result (hit, miss)",
		},
		[]string{"result"},
	)

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_enrichment_http_requests_total",
			Help: "Outbound Open Food Facts requests by status code",
		},
		[]string{"status_code"},
	)

	m.retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codescan_enrichment_retries_total",
		Help: "Retried Open Food Facts requests",
	})

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "codescan_enrichment_in_flight",
		Help: "Lookups currently waiting on the network",
	})

	return nil
}

func (m *EnrichmentMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.lookupsTotal,
		m.lookupDuration,
		m.cacheTotal,
		m.requestsTotal,
		m.retriesTotal,
		m.inFlight,
	}
}

// Describe implements the Collector interface
func (m *EnrichmentMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *EnrichmentMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordLookup records a finished lookup and its duration.
func (m *EnrichmentMetrics) RecordLookup(outcome string, duration time.Duration) {
	m.lookupsTotal.WithLabelValues(outcome).Inc()
	m.lookupDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCacheAccess records a cache hit or miss.
func (m *EnrichmentMetrics) RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one outbound request. statusCode 0 means the
// request failed before a response arrived.
func (m *EnrichmentMetrics) RecordHTTPRequest(statusCode int) {
	label := "transport_error"
	if statusCode > 0 {
		label = strconv.Itoa(statusCode)
	}
	m.requestsTotal.WithLabelValues(label).Inc()
}

// RecordRetry records a retried request.
func (m *EnrichmentMetrics) RecordRetry() {
	m.retriesTotal.Inc()
}

// LookupStarted increments the in-flight gauge.
func (m *EnrichmentMetrics) LookupStarted() {
	m.inFlight.Inc()
}

// LookupFinished decrements the in-flight gauge.
func (m *EnrichmentMetrics) LookupFinished() {
	m.inFlight.Dec()
}
