package mqtt

import (
	"context"
	"net/url"
	"slices"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
	"github.com/tphakala/codescan/internal/privacy"
)

var supportedSchemes = []string{"tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss"}

// client implements Client on top of paho.
type client struct {
	config    Config
	broker    string // broker URL without credentials, for logs and errors
	newClient func(*paho.ClientOptions) paho.Client
	metrics   *metrics.MQTTMetrics
	logger    logger.Logger

	mu       sync.Mutex
	internal paho.Client

	subsMu sync.Mutex
	subs   map[string]MessageHandler
}

// Option configures the client.
type Option func(*client)

// WithMetrics enables MQTT metrics.
func WithMetrics(m *metrics.MQTTMetrics) Option {
	return func(c *client) { c.metrics = m }
}

// withPahoFactory replaces paho.NewClient; used by tests.
func withPahoFactory(f func(*paho.ClientOptions) paho.Client) Option {
	return func(c *client) { c.newClient = f }
}

// NewClient creates a new MQTT client. It does not connect.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if err := validateBroker(cfg.Broker); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "codescan"
	}

	c := &client{
		config:    cfg,
		broker:    privacy.StripCredentials(cfg.Broker),
		newClient: paho.NewClient,
		logger:    logger.Global().Module("mqtt"),
		subs:      make(map[string]MessageHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func validateBroker(broker string) error {
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" || !slices.Contains(supportedSchemes, u.Scheme) {
		return errors.Newf("invalid MQTT broker URL %q", privacy.StripCredentials(broker)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("config_section", "mqtt.broker").
			Build()
	}
	return nil
}

// Connect establishes the broker connection and waits for it up to ctx and the connect timeout.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internal != nil && c.internal.IsConnected() {
		return nil
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectInterval)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internal = c.newClient(opts)

	if err := waitToken(ctx, c.internal.Connect(), c.config.ConnectTimeout); err != nil {
		c.incrementErrors("connect")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "connect").
			Context("broker", c.broker).
			Build()
	}
	return nil
}

// Publish sends payload to topic with the configured QoS and retain flag.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "publish").
			Build()
	}

	if c.metrics != nil {
		timer := c.metrics.StartPublishTimer()
		defer timer.ObserveDuration()
	}

	token := internal.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		c.incrementErrors("publish")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "publish").
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.IncrementMessagesPublished()
		c.metrics.ObserveMessageSize(float64(len(payload)))
	}
	c.logger.Trace("published message",
		logger.String("topic", topic),
		logger.Int("bytes", len(payload)))
	return nil
}

// Subscribe registers handler and subscribes now if connected. Otherwise the
// subscription is made by the connect handler.
func (c *client) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	c.subsMu.Lock()
	c.subs[topic] = handler
	c.subsMu.Unlock()

	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return nil
	}
	return c.subscribe(ctx, internal, topic, handler)
}

func (c *client) subscribe(ctx context.Context, internal paho.Client, topic string, handler MessageHandler) error {
	token := internal.Subscribe(topic, c.config.QoS, c.wrapHandler(handler))
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		c.incrementErrors("subscribe")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "subscribe").
			Context("topic", topic).
			Build()
	}
	c.logger.Info("subscribed", logger.String("topic", topic))
	return nil
}

// Unsubscribe forgets the handler for topic and unsubscribes if connected.
func (c *client) Unsubscribe(ctx context.Context, topic string) error {
	c.subsMu.Lock()
	delete(c.subs, topic)
	c.subsMu.Unlock()

	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return nil
	}
	if err := waitToken(ctx, internal.Unsubscribe(topic), c.config.PublishTimeout); err != nil {
		c.incrementErrors("unsubscribe")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "unsubscribe").
			Context("topic", topic).
			Build()
	}
	return nil
}

func (c *client) wrapHandler(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		if c.metrics != nil {
			c.metrics.IncrementMessagesReceived()
		}
		handler(msg.Topic(), msg.Payload())
	}
}

// IsConnected returns true if the client is currently connected.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the connection and stops background reconnects.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internal == nil {
		return
	}
	c.internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.internal = nil
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
	}
	c.logger.Info("disconnected from MQTT broker", logger.String("broker", c.broker))
}

// onConnect restores subscriptions; a clean session drops them on every reconnect.
func (c *client) onConnect(internal paho.Client) {
	c.logger.Info("connected to MQTT broker", logger.String("broker", c.broker))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}

	c.subsMu.Lock()
	subs := make(map[string]MessageHandler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.subsMu.Unlock()

	// paho runs this handler on its own goroutine, so waiting on tokens here is fine.
	ctx, cancel := context.WithTimeout(context.Background(), c.config.PublishTimeout)
	defer cancel()
	for topic, h := range subs {
		if err := c.subscribe(ctx, internal, topic, h); err != nil {
			c.logger.Error("failed to restore subscription",
				logger.String("topic", topic),
				logger.Error(err))
		}
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("connection to MQTT broker lost",
		logger.String("broker", c.broker),
		logger.Error(err))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
	}
	c.incrementErrors("connection_lost")
}

func (c *client) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	c.logger.Debug("reconnecting to MQTT broker", logger.String("broker", c.broker))
	if c.metrics != nil {
		c.metrics.IncrementReconnectAttempts()
	}
}

func (c *client) incrementErrors(operation string) {
	if c.metrics != nil {
		c.metrics.IncrementErrors(operation)
	}
}

// waitToken waits for token to complete, for ctx to end or for timeout to pass.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timeoutC:
		return errors.Newf("timed out after %s", timeout).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
}
