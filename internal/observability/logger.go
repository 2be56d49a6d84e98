// Package observability exposes Prometheus metrics for codescan.
// Error telemetry to Sentry lives in the telemetry package.
package observability

import "github.com/tphakala/codescan/internal/logger"

var getLogger = logger.Lazy("telemetry")
