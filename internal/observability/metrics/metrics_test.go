package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentMetricsRecordLookup(t *testing.T) {
	t.Parallel()

	m, err := NewEnrichmentMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordLookup("found", 120*time.Millisecond)
	m.RecordLookup("found", 80*time.Millisecond)
	m.RecordLookup("unavailable", time.Second)
	m.RecordCacheAccess(true)
	m.RecordCacheAccess(false)
	m.RecordHTTPRequest(503)
	m.RecordHTTPRequest(0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.lookupsTotal.WithLabelValues("found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.lookupsTotal.WithLabelValues("unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheTotal.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("503")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("transport_error")), 0)
}

func TestDatastoreMetricsImplementsRecorder(t *testing.T) {
	t.Parallel()

	m, err := NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	var r Recorder = m
	r.RecordOperation(OpUpsert, StatusSuccess)
	r.RecordError(OpUpsert, "database")
	r.RecordDuration(OpUpsert, 0.004)
	m.RecordUpsertResult(UpsertRaceLost)

	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpUpsert, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpUpsert, StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.upsertsTotal.WithLabelValues(UpsertRaceLost)), 0)
}

func TestPipelineMetricsInFlight(t *testing.T) {
	t.Parallel()

	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.WorkStarted()
	m.WorkStarted()
	m.WorkFinished()
	assert.InDelta(t, 1, m.InFlight(), 0)

	m.RecordDetection(DecisionSuppressed, "barcode")
	m.RecordEmitted("qrcode", "skipped", true, 5*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(m.detectionsTotal.WithLabelValues(DecisionSuppressed, "barcode")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resultsTotal.WithLabelValues("qrcode", "skipped", "true")), 0)
}

func TestMQTTMetricsExposition(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(registry)
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.IncrementMessagesPublished()
	m.IncrementErrors("publish")

	expected := `
# HELP codescan_mqtt_messages_published_total Total number of scan records published
# TYPE codescan_mqtt_messages_published_total counter
codescan_mqtt_messages_published_total 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"codescan_mqtt_messages_published_total"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	_, err = NewHTTPMetrics(registry)
	require.Error(t, err)
}

func TestNotificationMetricsRecordDelivery(t *testing.T) {
	t.Parallel()

	m, err := NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordDelivery("ntfy", StatusSuccess, 40*time.Millisecond)
	m.RecordDelivery("ntfy", StatusError, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("ntfy", StatusError)), 0)
	assert.Positive(t, testutil.ToFloat64(m.LastSuccessTime.WithLabelValues("ntfy")))
}
