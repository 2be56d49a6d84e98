// config.go: settings struct for codescan and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/codescan/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains general application settings.
type MainSettings struct {
	Name  string `yaml:"name" mapstructure:"name"`   // instance name, used as MQTT client id fallback and in alerts
	Debug bool   `yaml:"debug" mapstructure:"debug"` // true to enable debug logging everywhere
}

// ScannerSettings contains settings for the detection session.
type ScannerSettings struct {
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"` // duplicate suppression window for the same value
}

// EnrichmentSettings contains settings for the Open Food Facts lookup.
type EnrichmentSettings struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`             // OFF API base, without trailing slash
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`               // upper bound for one lookup including retries
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`           // how long Found and NotFound results are reused
	RateLimit     float64       `yaml:"rate_limit" mapstructure:"rate_limit"`         // outbound requests per second
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"` // lookups allowed in flight at once
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`       // attempts for 5xx and 429 responses
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// SQLiteSettings contains settings for the SQLite backend.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"` // database file path
}

// MySQLSettings contains settings for the MySQL backend.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"` // may reference ${ENV}
	// PasswordFile overrides Password with the contents of a secret file
	PasswordFile string `yaml:"password_file" mapstructure:"password_file"`
	Database     string `yaml:"database" mapstructure:"database"`
}

// OutputSettings selects the scan storage backend.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql" mapstructure:"mysql"`
}

// MQTTSettings contains settings for detection ingest and scan publishing.
type MQTTSettings struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker         string `yaml:"broker" mapstructure:"broker"` // tcp://host:port
	ClientID       string `yaml:"client_id" mapstructure:"client_id"`
	Username       string `yaml:"username" mapstructure:"username"`
	Password       string `yaml:"password" mapstructure:"password"`               // may reference ${ENV}
	PasswordFile   string `yaml:"password_file" mapstructure:"password_file"`     // overrides Password
	DetectionTopic string `yaml:"detection_topic" mapstructure:"detection_topic"` // inbound decoder events
	ScanTopic      string `yaml:"scan_topic" mapstructure:"scan_topic"`           // outbound emitted records
	QoS            byte   `yaml:"qos" mapstructure:"qos"`
	Retain         bool   `yaml:"retain" mapstructure:"retain"`
}

// WebServerSettings contains settings for the REST API.
type WebServerSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// SentrySettings contains settings for error reporting.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	DSNFile string `yaml:"dsn_file" mapstructure:"dsn_file"` // overrides DSN
	Debug   bool   `yaml:"debug" mapstructure:"debug"`
}

// NotificationSettings contains shoutrrr service URLs for fault alerts.
type NotificationSettings struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string `yaml:"urls" mapstructure:"urls"` // each may reference ${ENV}
}

// Settings contains all configuration options for codescan.
type Settings struct {
	Main         MainSettings         `yaml:"main" mapstructure:"main"`
	Logging      logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Scanner      ScannerSettings      `yaml:"scanner" mapstructure:"scanner"`
	Enrichment   EnrichmentSettings   `yaml:"enrichment" mapstructure:"enrichment"`
	Output       OutputSettings       `yaml:"output" mapstructure:"output"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	WebServer    WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Sentry       SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables using the
// global viper instance, which also carries bound CLI flags. An empty
// configPath searches the default locations and creates a default file if
// none exists.
func Load(configPath string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := loadInto(viper.GetViper(), configPath)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit config file path into a fresh
// viper instance. Environment bindings still apply.
func LoadFile(configPath string) (*Settings, error) {
	return loadInto(viper.New(), configPath)
}

func loadInto(v *viper.Viper, configPath string) (*Settings, error) {
	if err := initViper(v, configPath); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if settings.Main.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper sets defaults, binds environment variables and reads the configuration file.
func initViper(v *viper.Viper, configPath string) error {
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		// invalid env values are reported but the rest of the config still loads
		GetLogger().Warn("environment variable configuration issues", logger.Error(err))
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configPath, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it back.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := WriteDefaultConfig(configPath); err != nil {
		return err
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// WriteDefaultConfig writes the embedded default configuration to configPath,
// creating parent directories as needed.
func WriteDefaultConfig(configPath string) error {
	data, err := GetDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

// GetDefaultConfig returns the embedded default config.yaml.
func GetDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance, nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// write to a sibling temp file and rename so readers never see a partial file
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
