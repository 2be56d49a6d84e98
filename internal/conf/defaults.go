// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("main.name", "codescan")
	v.SetDefault("main.debug", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/codescan.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("scanner.cooldown", 2*time.Second)

	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("enrichment.timeout", 10*time.Second)
	v.SetDefault("enrichment.cache_ttl", 24*time.Hour)
	v.SetDefault("enrichment.rate_limit", 1.0)
	v.SetDefault("enrichment.max_concurrent", 4)
	v.SetDefault("enrichment.max_retries", 3)
	v.SetDefault("enrichment.user_agent", "codescan/1.0 (https://github.com/tphakala/codescan)")

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "codescan.db")

	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", "3306")
	v.SetDefault("output.mysql.username", "codescan")
	v.SetDefault("output.mysql.password", "secret")
	v.SetDefault("output.mysql.password_file", "")
	v.SetDefault("output.mysql.database", "codescan")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.password_file", "")
	v.SetDefault("mqtt.detection_topic", "codescan/detections")
	v.SetDefault("mqtt.scan_topic", "codescan/scans")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", "0.0.0.0:8080")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "0.0.0.0:8090")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.dsn_file", "")
	v.SetDefault("sentry.debug", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
}
