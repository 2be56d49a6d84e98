//go:build ruleguard

// Package gorules contains ruleguard checks for codescan conventions.
// Run with: golangci-lint run (gocritic ruleguard, rules: rules/*.go).
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// HardDelete flags GORM deletes on scan records that are not Unscoped.
// Scan deletion is permanent; a soft delete would keep the code value
// holding its unique index slot.
func HardDelete(m dsl.Matcher) {
	m.Import("gorm.io/gorm")

	m.Match(`$db.Delete(&ScanRecord{})`, `$db.Delete($rec)`).
		Where(m.File().PkgPath.Matches(`/internal/datastore$`) &&
			!m["db"].Text.Matches(`Unscoped\(\)`) &&
			m["db"].Type.Is("*gorm.DB")).
		Report("scan records are hard-deleted: call Unscoped() before Delete")
}

// DirectSentryCapture flags Sentry captures outside the telemetry package.
// Errors reach Sentry through the errors builder so that category filtering
// and privacy scrubbing apply.
func DirectSentryCapture(m dsl.Matcher) {
	m.Import("github.com/getsentry/sentry-go")

	m.Match(
		`sentry.CaptureException($*_)`,
		`sentry.CaptureMessage($*_)`,
		`sentry.CaptureEvent($*_)`,
	).
		Where(!m.File().PkgPath.Matches(`/internal/(telemetry|errors)$`)).
		Report("report through errors.New(...).Build() instead of calling sentry directly")
}

// StdLogger flags the standard library logger in internal packages.
func StdLogger(m dsl.Matcher) {
	m.Match(
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Print($*_)`,
		`log.Fatalf($*_)`,
		`log.Fatal($*_)`,
	).
		Where(m.File().Imports("log") && m.File().PkgPath.Matches(`/internal/`)).
		Report("use the module logger from internal/logger")
}

// PrintInInternal flags fmt printing to stdout from internal packages. Only
// cmd/ writes to the terminal.
func PrintInInternal(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("internal packages log through internal/logger; printing belongs in cmd/")
}

// SecretInLog flags logging configuration credentials.
func SecretInLog(m dsl.Matcher) {
	m.Match(`logger.String($key, $v)`).
		Where(m["v"].Text.Matches(`(?i)\.(password|dsn|urls?)$`)).
		Report("credential field $v passed to the logger; log privacy.StripCredentials or omit it")
}
