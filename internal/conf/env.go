// env.go - environment variable configuration and validation for codescan
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"main.debug", "CODESCAN_DEBUG", validateEnvBool},

		{"scanner.cooldown", "CODESCAN_SCANNER_COOLDOWN", validateEnvDuration},

		{"enrichment.enabled", "CODESCAN_ENRICHMENT_ENABLED", validateEnvBool},
		{"enrichment.base_url", "CODESCAN_ENRICHMENT_BASE_URL", validateEnvURL},
		{"enrichment.timeout", "CODESCAN_ENRICHMENT_TIMEOUT", validateEnvDuration},
		{"enrichment.user_agent", "CODESCAN_ENRICHMENT_USER_AGENT", nil},

		{"output.sqlite.path", "CODESCAN_SQLITE_PATH", nil},
		{"output.mysql.enabled", "CODESCAN_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "CODESCAN_MYSQL_HOST", nil},
		{"output.mysql.port", "CODESCAN_MYSQL_PORT", validateEnvPort},
		{"output.mysql.username", "CODESCAN_MYSQL_USERNAME", nil},
		{"output.mysql.password", "CODESCAN_MYSQL_PASSWORD", nil},
		{"output.mysql.database", "CODESCAN_MYSQL_DATABASE", nil},

		{"mqtt.enabled", "CODESCAN_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "CODESCAN_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "CODESCAN_MQTT_USERNAME", nil},
		{"mqtt.password", "CODESCAN_MQTT_PASSWORD", nil},

		{"sentry.dsn", "CODESCAN_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value: %s", value)
	}
	return nil
}

// validateEnvDuration validates Go duration strings such as "2s" or "1m30s"
func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %s", value)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative: %s", value)
	}
	return nil
}

// validateEnvURL validates absolute URLs with a scheme and host
func validateEnvURL(value string) error {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL: %s", value)
	}
	return nil
}

// validateEnvPort validates TCP port numbers
func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", value)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
