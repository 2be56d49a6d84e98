// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateScannerSettings(&s.Scanner) },
		func(s *Settings) error { return validateEnrichmentSettings(&s.Enrichment) },
		func(s *Settings) error { return validateOutputSettings(&s.Output) },
		func(s *Settings) error { return validateMQTTSettings(&s.MQTT) },
		func(s *Settings) error {
			return validateListenAddress("webserver", s.WebServer.Enabled, s.WebServer.Listen)
		},
		func(s *Settings) error {
			return validateListenAddress("telemetry", s.Telemetry.Enabled, s.Telemetry.Listen)
		},
		func(s *Settings) error { return validateSentrySettings(&s.Sentry) },
		func(s *Settings) error { return validateNotificationSettings(&s.Notification) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateScannerSettings(settings *ScannerSettings) error {
	if settings.Cooldown < 0 {
		return fmt.Errorf("scanner.cooldown must not be negative, got %s", settings.Cooldown)
	}
	return nil
}

func validateEnrichmentSettings(settings *EnrichmentSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if u, err := url.Parse(settings.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("enrichment.base_url is not an absolute URL: %q", settings.BaseURL))
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "enrichment.timeout must be positive")
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "enrichment.cache_ttl must not be negative")
	}
	if settings.RateLimit <= 0 {
		errs = append(errs, "enrichment.rate_limit must be positive")
	}
	if settings.MaxConcurrent < 1 {
		errs = append(errs, "enrichment.max_concurrent must be at least 1")
	}
	if settings.MaxRetries < 1 {
		errs = append(errs, "enrichment.max_retries must be at least 1")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	switch {
	case settings.SQLite.Enabled && settings.MySQL.Enabled:
		return errors.New("only one of output.sqlite and output.mysql can be enabled")
	case !settings.SQLite.Enabled && !settings.MySQL.Enabled:
		return errors.New("either output.sqlite or output.mysql must be enabled")
	case settings.SQLite.Enabled && settings.SQLite.Path == "":
		return errors.New("output.sqlite.path is required")
	case settings.MySQL.Enabled && (settings.MySQL.Host == "" || settings.MySQL.Database == ""):
		return errors.New("output.mysql.host and output.mysql.database are required")
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if u, err := url.Parse(settings.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker is not a valid broker URL: %q", settings.Broker))
	}
	if settings.DetectionTopic == "" && settings.ScanTopic == "" {
		errs = append(errs, "mqtt needs detection_topic or scan_topic")
	}
	if strings.ContainsAny(settings.ScanTopic, "+#") {
		errs = append(errs, "mqtt.scan_topic must not contain wildcards")
	}
	if settings.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", settings.QoS))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateListenAddress(section string, enabled bool, listen string) error {
	if !enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s.listen is not a host:port address: %q", section, listen)
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return errors.New("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func validateNotificationSettings(settings *NotificationSettings) error {
	if settings.Enabled && len(settings.URLs) == 0 {
		return errors.New("notification.urls must list at least one service URL")
	}
	return nil
}
