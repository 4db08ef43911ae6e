package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Message is a publish captured by FakeClient.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient is an in-memory paho.Client. Publishes are recorded, and
// subscribers receive anything passed to Deliver on their topic.
type FakeClient struct {
	mu sync.Mutex

	// Connected controls IsConnected and IsConnectionOpen.
	Connected bool

	// PublishError and SubscribeError, if set, complete the matching tokens
	// with that error.
	PublishError   error
	SubscribeError error

	// SubscribeTimeout leaves subscribe tokens incomplete.
	SubscribeTimeout bool

	Published    []Message
	Unsubscribed []string
	Disconnected bool

	routes map[string]paho.MessageHandler
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Connected: true, routes: make(map[string]paho.MessageHandler)}
}

// SetConnected flips the connection state.
func (c *FakeClient) SetConnected(connected bool) {
	c.mu.Lock()
	c.Connected = connected
	c.mu.Unlock()
}

// Messages returns a copy of the published messages.
func (c *FakeClient) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.Published...)
}

// Subscribed reports whether a handler is registered for topic.
func (c *FakeClient) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.routes[topic]
	return ok
}

// Deliver hands payload to the subscriber of topic, if any.
func (c *FakeClient) Deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.routes[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, &fakeMessage{topic: topic, payload: payload})
	}
}

func (c *FakeClient) IsConnected() bool { return c.IsConnectionOpen() }

func (c *FakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connected
}

func (c *FakeClient) Connect() paho.Token {
	c.SetConnected(true)
	return &fakeToken{}
}

func (c *FakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	c.Connected = false
	c.Disconnected = true
	c.mu.Unlock()
}

func (c *FakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishError != nil {
		return &fakeToken{err: c.PublishError}
	}
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}
	c.Published = append(c.Published, Message{Topic: topic, QoS: qos, Retained: retained, Payload: data})
	return &fakeToken{}
}

// Subscribe registers the route before the outcome is known, as paho does,
// so a failed or timed out subscribe still leaves it in place.
func (c *FakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[topic] = callback
	if c.SubscribeTimeout {
		return &fakeToken{pending: true}
	}
	if c.SubscribeError != nil {
		return &fakeToken{err: c.SubscribeError}
	}
	return &fakeToken{}
}

func (c *FakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for topic, qos := range filters {
		if t := c.Subscribe(topic, qos, callback); t.Error() != nil {
			return t
		}
	}
	return &fakeToken{}
}

func (c *FakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.routes, t)
		c.Unsubscribed = append(c.Unsubscribed, t)
	}
	return &fakeToken{}
}

func (c *FakeClient) AddRoute(topic string, callback paho.MessageHandler) {
	c.mu.Lock()
	c.routes[topic] = callback
	c.mu.Unlock()
}

func (c *FakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

// fakeToken is already complete when returned, unless pending.
type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
