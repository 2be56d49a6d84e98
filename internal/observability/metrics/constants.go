// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Datastore operation names used as the "operation" label.
const (
	OpUpsert     = "upsert"
	OpRename     = "rename"
	OpDelete     = "delete"
	OpGet        = "get"
	OpGetByValue = "get_by_value"
	OpList       = "list"
	OpMigrate    = "migrate"
)

// Upsert result label values.
const (
	UpsertCreated  = "created"
	UpsertExisting = "existing"
	// UpsertRaceLost means the insert lost a cross-process race and the winner was re-read.
	UpsertRaceLost = "race_lost"
)

// Histogram bucket constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics server.
const ShutdownTimeout = 5 * time.Second
