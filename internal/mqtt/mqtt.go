// Package mqtt connects codescan to an MQTT broker: detections arrive on one
// topic and emitted scan records are published on another.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/codescan/internal/conf"
)

// MessageHandler receives messages for a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client defines the MQTT operations codescan uses.
type Client interface {
	// Connect attempts to connect to the broker. Lost connections are
	// re-established in the background afterwards.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic. Subscriptions survive reconnects.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Unsubscribe removes the subscription for topic.
	Unsubscribe(ctx context.Context, topic string) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool // true to retain published messages at the broker

	ConnectTimeout       time.Duration
	PublishTimeout       time.Duration
	DisconnectTimeout    time.Duration
	MaxReconnectInterval time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		QoS:                  1,
		ConnectTimeout:       30 * time.Second,
		PublishTimeout:       10 * time.Second,
		DisconnectTimeout:    250 * time.Millisecond,
		MaxReconnectInterval: 5 * time.Minute,
	}
}

// ConfigFromSettings builds a Config from the mqtt settings section. The
// instance name is used as client id when none is configured.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.QoS = settings.MQTT.QoS
	cfg.Retain = settings.MQTT.Retain
	return cfg
}
