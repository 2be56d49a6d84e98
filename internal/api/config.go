// Package api serves the codescan REST API: scan history management and
// detection submission over HTTP.
package api

import (
	"net"
	"time"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "1M"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration // how long in-flight requests get on shutdown

	BodyLimit string // maximum request body, e.g. "1M"
}

// DefaultConfig returns a Config with default timeouts listening on :8080.
func DefaultConfig() Config {
	return Config{
		Listen:          "0.0.0.0:8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings builds a Config from the webserver settings section.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	return cfg
}

// Validate checks that the listen address is usable.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("config_section", "webserver.listen").
			Context("listen", c.Listen).
			Build()
	}
	return nil
}
