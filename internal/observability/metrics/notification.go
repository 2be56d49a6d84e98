package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains Prometheus metrics for fault alert delivery.
type NotificationMetrics struct {
	registry *prometheus.Registry

	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	LastSuccessTime  *prometheus.GaugeVec
}

// NewNotificationMetrics creates and registers new notification metrics
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize notification metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() error {
	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_notification_deliveries_total",
			Help: "Alert deliveries by service and status",
		},
		[]string{"service", "status"},
	)

	m.DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codescan_notification_delivery_duration_seconds",
			Help:    "Time taken to deliver an alert",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
		},
		[]string{"service"},
	)

	m.LastSuccessTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codescan_notification_last_success_time_seconds",
			Help: "Timestamp of the last successful delivery per service",
		},
		[]string{"service"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.LastSuccessTime.Describe(ch)
}

// Collect implements the Collector interface
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.LastSuccessTime.Collect(ch)
}

// RecordDelivery records an alert delivery attempt.
func (m *NotificationMetrics) RecordDelivery(service, status string, duration time.Duration) {
	m.DeliveriesTotal.WithLabelValues(service, status).Inc()
	m.DeliveryDuration.WithLabelValues(service).Observe(duration.Seconds())
	if status == StatusSuccess {
		m.LastSuccessTime.WithLabelValues(service).SetToCurrentTime()
	}
}
