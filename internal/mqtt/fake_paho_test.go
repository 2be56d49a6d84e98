package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is an already-completed token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{ fakeToken }

func newPendingToken() *pendingToken {
	return &pendingToken{fakeToken{done: make(chan struct{})}}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho is an in-memory paho.Client.
type fakePaho struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	connected   bool
	connectErr  error
	hangPublish bool
	published   []published
	handlers    map[string]paho.MessageHandler
	subscribes  int
}

func newFakePaho(opts *paho.ClientOptions) *fakePaho {
	return &fakePaho{opts: opts, handlers: make(map[string]paho.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() paho.Token {
	f.mu.Lock()
	if f.connectErr != nil {
		f.mu.Unlock()
		return newToken(f.connectErr)
	}
	f.connected = true
	f.mu.Unlock()

	if f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
	return newToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hangPublish {
		return newPendingToken()
	}
	b, _ := payload.([]byte)
	f.published = append(f.published, published{topic, qos, retained, b})
	return newToken(nil)
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	f.subscribes++
	return newToken(nil)
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for topic := range filters {
		f.handlers[topic] = callback
	}
	return newToken(nil)
}

func (f *fakePaho) Unsubscribe(topics ...string) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.handlers, topic)
	}
	return newToken(nil)
}

func (f *fakePaho) AddRoute(topic string, callback paho.MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
}

func (f *fakePaho) OptionsReader() paho.ClientOptionsReader {
	return paho.NewOptionsReader(f.opts)
}

// deliver simulates an inbound message.
func (f *fakePaho) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(f, &fakeMessage{topic: topic, payload: payload})
	return true
}

// dropConnection simulates a lost connection followed by an automatic reconnect.
func (f *fakePaho) dropConnection(err error) {
	f.mu.Lock()
	f.connected = false
	f.handlers = make(map[string]paho.MessageHandler)
	f.mu.Unlock()
	if f.opts.OnConnectionLost != nil {
		f.opts.OnConnectionLost(f, err)
	}

	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	if f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
}

func (f *fakePaho) publishedMessages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

func (f *fakePaho) setHangPublish(hang bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangPublish = hang
}

func (f *fakePaho) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}
