package telemetry

import (
	"github.com/tphakala/codescan/internal/errors"
)

// quietCategories are expected outcomes of normal operation: bad input,
// unknown ids, dropped alerts and callers giving up. They stay out of Sentry.
var quietCategories = map[errors.ErrorCategory]bool{
	errors.CategoryValidation:   true,
	errors.CategoryNotFound:     true,
	errors.CategoryLimit:        true,
	errors.CategoryCancellation: true,
	errors.CategoryFileParsing:  true,
}

// reporter forwards faults to the wrapped reporter and drops the rest.
type reporter struct {
	inner errors.TelemetryReporter
}

func newReporter(inner errors.TelemetryReporter) *reporter {
	return &reporter{inner: inner}
}

func (r *reporter) IsEnabled() bool { return r.inner.IsEnabled() }

func (r *reporter) ReportError(ee *errors.EnhancedError) {
	if !shouldReport(ee) {
		return
	}
	r.inner.ReportError(ee)
}

// shouldReport reports whether ee describes a fault worth an event.
func shouldReport(ee *errors.EnhancedError) bool {
	if ee == nil || quietCategories[ee.Category] {
		return false
	}
	return ee.GetPriority() != errors.PriorityLow
}
