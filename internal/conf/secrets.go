package conf

import (
	"fmt"

	"github.com/tphakala/codescan/internal/secrets"
)

// resolveSecrets replaces credential fields with their resolved values.
// Only enabled sections are resolved, so a missing variable for an unused
// backend does not block startup.
func resolveSecrets(s *Settings) error {
	var err error

	if s.Output.MySQL.Enabled {
		if s.Output.MySQL.Password, err = secrets.Resolve(s.Output.MySQL.PasswordFile, s.Output.MySQL.Password); err != nil {
			return fmt.Errorf("output.mysql.password: %w", err)
		}
	}

	if s.MQTT.Enabled {
		if s.MQTT.Password, err = secrets.Resolve(s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
			return fmt.Errorf("mqtt.password: %w", err)
		}
	}

	if s.Sentry.Enabled {
		if s.Sentry.DSN, err = secrets.Resolve(s.Sentry.DSNFile, s.Sentry.DSN); err != nil {
			return fmt.Errorf("sentry.dsn: %w", err)
		}
	}

	if s.Notification.Enabled {
		for i, raw := range s.Notification.URLs {
			if s.Notification.URLs[i], err = secrets.Expand(raw); err != nil {
				return fmt.Errorf("notification.urls[%d]: %w", i, err)
			}
		}
	}

	return nil
}
