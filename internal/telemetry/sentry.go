// Package telemetry reports internal faults to Sentry.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/privacy"
)

var getLogger = logger.Lazy("telemetry.sentry")

const defaultFlushTimeout = 2 * time.Second

// Config holds the Sentry configuration.
type Config struct {
	Enabled      bool
	DSN          string
	Debug        bool
	Release      string
	Environment  string
	FlushTimeout time.Duration // how long shutdown waits for queued events
}

// ConfigFromSettings builds a Config from the sentry settings section.
func ConfigFromSettings(settings *conf.Settings, version string) Config {
	return Config{
		Enabled:      settings.Sentry.Enabled,
		DSN:          settings.Sentry.DSN,
		Debug:        settings.Sentry.Debug,
		Release:      "codescan@" + version,
		Environment:  "production",
		FlushTimeout: defaultFlushTimeout,
	}
}

// Option adjusts the Sentry client options.
type Option func(*sentry.ClientOptions)

// withTransport replaces the HTTP transport; used by tests.
func withTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// Init starts Sentry and routes reportable errors to it. The returned
// function flushes pending events and detaches the reporter. When Sentry is
// disabled Init does nothing and returns a no-op.
func Init(cfg Config, opts ...Option) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	if cfg.DSN == "" {
		return nil, errors.Newf("sentry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("config_section", "sentry.dsn").
			Build()
	}

	options := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Debug:            cfg.Debug,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       "", // no hostname leakage
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return nil, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("config_section", "sentry").
			Build()
	}

	errors.SetTelemetryReporter(newReporter(errors.NewSentryReporter(true)))
	getLogger().Info("sentry error reporting enabled",
		logger.String("release", cfg.Release),
		logger.String("environment", cfg.Environment))

	flushTimeout := cfg.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}
	return func() {
		errors.SetTelemetryReporter(nil)
		if !sentry.Flush(flushTimeout) {
			getLogger().Warn("sentry flush timed out", logger.Duration("timeout", flushTimeout))
		}
	}, nil
}

// applyPrivacyFilters strips host and user identification from an event
// and scrubs URLs from its messages.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	event.Modules = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
