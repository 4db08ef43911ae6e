package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/shake-timer/internal/logic"
)

// outboxCapacity is how many messages are held while the broker is unreachable.
const outboxCapacity = 256

const publishTimeout = 5 * time.Second

// Dial creates a client for broker and connects it. The client keeps
// reconnecting in the background; onConnect (if non-nil) runs after every
// successful connection, including the first.
func Dial(broker, clientID string, onConnect func()) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, WillPayload(), 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if onConnect != nil {
		opts.SetOnConnectHandler(func(paho.Client) { onConnect() })
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// ConnectRetry keeps trying; hand the client back so publishes buffer.
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return client, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return client, nil
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in an outbox and replayed, oldest first,
// on the next Flush or successful publish.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher creates a publisher on a client from Dial.
func NewRealPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{
		client: client,
		outbox: newOutbox(outboxCapacity),
	}
}

// Publish sends a timer event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// Flush replays buffered messages. Call it from the client's on-connect hook.
func (p *RealPublisher) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.flushLocked(); err != nil {
		log.Printf("mqtt: replay: %v", err)
	}
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// IsConnected reports whether the client connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.outbox.push(msg)
		return nil
	}
	if err := p.flushLocked(); err != nil {
		p.outbox.push(msg)
		return err
	}
	return p.publishLocked(msg)
}

// flushLocked publishes the outbox in order. A failed publish stays at the
// front for the next attempt.
func (p *RealPublisher) flushLocked() error {
	sent := 0
	for {
		msg, ok := p.outbox.front()
		if !ok {
			break
		}
		if err := p.publishLocked(msg); err != nil {
			return err
		}
		p.outbox.pop()
		sent++
	}
	if sent > 0 {
		if dropped := p.outbox.takeDropped(); dropped > 0 {
			log.Printf("mqtt: replayed %d buffered messages, %d lost to overflow", sent, dropped)
		} else {
			log.Printf("mqtt: replayed %d buffered messages", sent)
		}
	}
	return nil
}

func (p *RealPublisher) publishLocked(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}
