package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "main:\n  name: bench\n")

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "bench", settings.Main.Name)
	assert.Equal(t, 2*time.Second, settings.Scanner.Cooldown)
	assert.Equal(t, "https://world.openfoodfacts.org", settings.Enrichment.BaseURL)
	assert.Equal(t, 10*time.Second, settings.Enrichment.Timeout)
	assert.True(t, settings.Output.SQLite.Enabled)
	assert.Equal(t, "codescan/detections", settings.MQTT.DetectionTopic)
	assert.Equal(t, byte(1), settings.MQTT.QoS)
}

func TestLoadFileParsesDurationsAndNestedKeys(t *testing.T) {
	path := writeConfig(t, `
scanner:
  cooldown: 750ms
enrichment:
  timeout: 3s
  cache_ttl: 1h
  max_concurrent: 2
logging:
  default_level: debug
  module_levels:
    enrichment: trace
`)

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, settings.Scanner.Cooldown)
	assert.Equal(t, 3*time.Second, settings.Enrichment.Timeout)
	assert.Equal(t, time.Hour, settings.Enrichment.CacheTTL)
	assert.Equal(t, 2, settings.Enrichment.MaxConcurrent)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, "trace", settings.Logging.ModuleLevels["enrichment"])
}

func TestLoadFileEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("CODESCAN_SCANNER_COOLDOWN", "5s")
	t.Setenv("CODESCAN_MQTT_BROKER", "tcp://broker.local:1883")

	path := writeConfig(t, "scanner:\n  cooldown: 1s\n")

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, settings.Scanner.Cooldown)
	assert.Equal(t, "tcp://broker.local:1883", settings.MQTT.Broker)
}

func TestLoadFileRejectsInvalidSettings(t *testing.T) {
	path := writeConfig(t, `
output:
  sqlite:
    enabled: true
  mysql:
    enabled: true
`)

	_, err := LoadFile(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1)
}

func TestLoadFileDebugRaisesLogLevel(t *testing.T) {
	path := writeConfig(t, "main:\n  debug: true\n")

	settings, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
}

func TestEmbeddedDefaultConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	settings, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "codescan", settings.Main.Name)
	assert.Equal(t, 2*time.Second, settings.Scanner.Cooldown)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	path := writeConfig(t, "")

	settings, err := LoadFile(path)
	require.NoError(t, err)

	settings.Main.Name = "line-3"
	settings.Notification.URLs = []string{"ntfy://ntfy.sh/codescan"}
	require.NoError(t, SaveYAMLConfig(path, settings))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "scanner")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")

	reloaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line-3", reloaded.Main.Name)
	assert.Equal(t, []string{"ntfy://ntfy.sh/codescan"}, reloaded.Notification.URLs)
	assert.Equal(t, settings.Scanner.Cooldown, reloaded.Scanner.Cooldown)
}

func TestLoadFileResolvesSecrets(t *testing.T) {
	t.Setenv("CODESCAN_TEST_MQTT_PASS", "from-env")
	t.Setenv("CODESCAN_TEST_NTFY_TOPIC", "alerts")
	dsnFile := filepath.Join(t.TempDir(), "dsn")
	require.NoError(t, os.WriteFile(dsnFile, []byte("https://key@sentry.example.com/1\n"), 0o600))

	path := writeConfig(t, `
mqtt:
  enabled: true
  password: ${CODESCAN_TEST_MQTT_PASS}
sentry:
  enabled: true
  dsn_file: `+dsnFile+`
notification:
  enabled: true
  urls:
    - ntfy://ntfy.sh/${CODESCAN_TEST_NTFY_TOPIC}
output:
  mysql:
    password: ${CODESCAN_TEST_UNSET_PASS}
`)

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", settings.MQTT.Password)
	assert.Equal(t, "https://key@sentry.example.com/1", settings.Sentry.DSN)
	assert.Equal(t, []string{"ntfy://ntfy.sh/alerts"}, settings.Notification.URLs)
	// disabled backend is left unresolved
	assert.Equal(t, "${CODESCAN_TEST_UNSET_PASS}", settings.Output.MySQL.Password)
}

func TestLoadFileMissingSecretVariable(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  enabled: true
  password: ${CODESCAN_TEST_UNSET_PASS}
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.password")
	assert.Contains(t, err.Error(), "CODESCAN_TEST_UNSET_PASS")
}
