package datastore

import (
	"fmt"
	"strings"

	"github.com/tphakala/codescan/internal/errors"
)

// dbError creates a database error with operation context.
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if isDatabaseCorruption(err) {
		builder = builder.Priority(errors.PriorityCritical)
	}

	return withContext(builder, context).Build()
}

// validationError creates a validation error for bad caller input.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFoundError creates a not-found error.
func notFoundError(resource, identifier string) error {
	return errors.Newf("%s not found", resource).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}

// conflictError creates an error for a unique constraint that could not be resolved.
func conflictError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryConflict).
		Priority(errors.PriorityMedium).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

func withContext(builder *errors.ErrorBuilder, context []any) *errors.ErrorBuilder {
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder
}

func isDatabaseCorruption(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "file is not a database")
}

// errorType maps an error to a short label for the error metric.
func errorType(err error) string {
	switch {
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsValidation(err):
		return "validation"
	case errors.IsCategory(err, errors.CategoryConflict):
		return "conflict"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "locked") || strings.Contains(errStr, "busy"):
		return "locked"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return "timeout"
	case isDatabaseCorruption(err):
		return "corruption"
	default:
		return "database"
	}
}
