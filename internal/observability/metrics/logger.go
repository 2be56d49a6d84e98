package metrics

import "github.com/tphakala/codescan/internal/logger"

var getLogger = logger.Lazy("telemetry.metrics")
