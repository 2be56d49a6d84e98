// Package notification delivers fault alerts through shoutrrr services.
package notification

import (
	"context"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
	"github.com/tphakala/codescan/internal/privacy"
)

var getLogger = logger.Lazy("notification")

// sender is the part of shoutrrr's router the notifier uses. Send returns
// one entry per configured service, nil for successful deliveries.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Config holds the notifier configuration.
type Config struct {
	URLs           []string
	Timeout        time.Duration // per delivery, applied by the shoutrrr router
	MinInterval    time.Duration // minimum spacing between alerts once the burst is spent
	Burst          int
	CircuitBreaker CircuitBreakerConfig
}

// DefaultConfig returns the default notifier configuration without URLs.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MinInterval:    time.Minute,
		Burst:          3,
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// ConfigFromSettings builds a Config from the notification settings section.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.URLs = settings.Notification.URLs
	return cfg
}

// Notifier sends alerts to every configured service. It implements the
// pipeline's Notifier interface.
type Notifier struct {
	sender   sender
	services []string // URL schemes, index aligned with the router's services
	urls     []string
	limiter  *rate.Limiter
	breaker  *circuitBreaker
	metrics  *metrics.NotificationMetrics
	now      func() time.Time
}

// Option configures the Notifier.
type Option func(*Notifier)

// WithMetrics records delivery metrics.
func WithMetrics(m *metrics.NotificationMetrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// withSender replaces the shoutrrr router; used by tests.
func withSender(s sender) Option {
	return func(n *Notifier) { n.sender = s }
}

// withClock overrides time.Now for the circuit breaker; used by tests.
func withClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// NewNotifier validates the service URLs and builds the shoutrrr router.
func NewNotifier(cfg Config, opts ...Option) (*Notifier, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("config_section", "notification.urls").
			Build()
	}

	n := &Notifier{
		urls:     cfg.URLs,
		services: make([]string, len(cfg.URLs)),
		now:      time.Now,
	}
	for i, raw := range cfg.URLs {
		n.services[i] = serviceName(raw)
	}

	for _, opt := range opts {
		opt(n)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	n.limiter = rate.NewLimiter(limit, max(cfg.Burst, 1))
	n.breaker = newCircuitBreaker(cfg.CircuitBreaker, n.now)

	if n.sender == nil {
		router, err := shoutrrr.CreateSender(cfg.URLs...)
		if err != nil {
			return nil, errors.Newf("invalid notification URL: %s", n.scrub(err.Error())).
				Component("notification").
				Category(errors.CategoryConfiguration).
				Context("config_section", "notification.urls").
				Build()
		}
		if cfg.Timeout > 0 {
			router.Timeout = cfg.Timeout
		}
		router.SetLogger(log.New(io.Discard, "", 0))
		n.sender = router
	}

	getLogger().Info("notification services configured",
		logger.String("services", strings.Join(n.services, ",")))
	return n, nil
}

// Send delivers title and message to every service. Alerts over the rate
// limit or while the circuit breaker is open are dropped with a limit error.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if !n.limiter.Allow() {
		getLogger().Debug("alert dropped by rate limit", logger.String("title", title))
		return errors.Newf("notification rate limit exceeded").
			Component("notification").
			Category(errors.CategoryLimit).
			Build()
	}
	if err := n.breaker.allow(); err != nil {
		return err
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	start := time.Now()
	done := make(chan []error, 1)
	go func() { done <- n.sender.Send(message, &params) }()

	var errs []error
	select {
	case errs = <-done:
	case <-ctx.Done():
		// the router enforces its own timeout, so the goroutine finishes on its own
		n.breaker.release()
		return errors.New(ctx.Err()).
			Component("notification").
			Category(errors.CategoryCancellation).
			Build()
	}

	err := n.recordResults(errs, time.Since(start))
	n.breaker.record(err)
	return err
}

// recordResults records per-service metrics and returns the first failure.
func (n *Notifier) recordResults(errs []error, elapsed time.Duration) error {
	var firstErr error
	failedService := ""
	for i, service := range n.services {
		var err error
		if i < len(errs) {
			err = errs[i]
		}

		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			if firstErr == nil {
				firstErr, failedService = err, service
			}
			getLogger().Warn("alert delivery failed",
				logger.String("service", service),
				logger.String("error", n.scrub(err.Error())))
		}
		if n.metrics != nil {
			n.metrics.RecordDelivery(service, status, elapsed)
		}
	}

	if firstErr == nil {
		return nil
	}
	return errors.Newf("alert delivery failed: %s", n.scrub(firstErr.Error())).
		Component("notification").
		Category(errors.CategoryNotification).
		Context("service", failedService).
		Build()
}

// scrub removes configured URLs, which usually carry tokens, from s.
// Any other URL, such as a webhook endpoint named in a transport error,
// is reduced to scheme and host.
func (n *Notifier) scrub(s string) string {
	for i, raw := range n.urls {
		if raw != "" {
			s = strings.ReplaceAll(s, raw, n.services[i]+"://"+privacy.Redacted)
		}
	}
	return privacy.ScrubMessage(s)
}

// serviceName returns the URL scheme, which names the shoutrrr service.
func serviceName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return u.Scheme
}
