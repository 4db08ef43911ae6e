package sensor

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/shake-timer/internal/logic"
)

// DefaultTopic is where the phone bridge publishes acceleration samples.
const DefaultTopic = "shake-timer/sensor/accel"

// subscribeTimeout bounds how long Subscribe waits for the broker's SUBACK.
const subscribeTimeout = 5 * time.Second

// MQTTSource reads JSON samples ({"x":..,"y":..,"z":..}) from an MQTT topic.
type MQTTSource struct {
	client paho.Client
	topic  string
	now    func() time.Time
}

// NewMQTTSource creates a source on an already configured client.
func NewMQTTSource(client paho.Client, topic string) *MQTTSource {
	return &MQTTSource{client: client, topic: topic, now: time.Now}
}

// Subscribe subscribes to the sample topic. A broker that is not connected or
// refuses the subscription makes the sensor unavailable.
func (s *MQTTSource) Subscribe(h Handler) (Subscription, error) {
	if s.client == nil || !s.client.IsConnectionOpen() {
		return nil, fmt.Errorf("%w: broker not connected", ErrUnavailable)
	}

	token := s.client.Subscribe(s.topic, 0, func(_ paho.Client, msg paho.Message) {
		sample, err := ParseSample(msg.Payload())
		if err != nil {
			log.Printf("sensor: bad sample on %s: %v", msg.Topic(), err)
			return
		}
		sample.Time = s.now()
		h(sample)
	})
	sub := &mqttSubscription{client: s.client, topic: s.topic}
	if !token.WaitTimeout(subscribeTimeout) {
		sub.release()
		return nil, fmt.Errorf("%w: subscribe %s: timeout", ErrUnavailable, s.topic)
	}
	if err := token.Error(); err != nil {
		sub.release()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrUnavailable, s.topic, err)
	}
	return sub, nil
}

type mqttSubscription struct {
	client paho.Client
	topic  string
}

func (m *mqttSubscription) Unsubscribe() error {
	token := m.client.Unsubscribe(m.topic)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("unsubscribe %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", m.topic, err)
	}
	return nil
}

// release undoes a subscribe that did not complete. paho routes the topic
// before the SUBACK arrives, and a late SUBACK would leave the broker
// delivering to a subscription nobody holds.
func (m *mqttSubscription) release() {
	if err := m.Unsubscribe(); err != nil {
		log.Printf("sensor: %v", err)
	}
}

// ParseSample decodes a sample payload.
func ParseSample(payload []byte) (logic.Sample, error) {
	var raw struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return logic.Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if raw.X == nil || raw.Y == nil || raw.Z == nil {
		return logic.Sample{}, fmt.Errorf("decode sample: missing axis")
	}
	return logic.Sample{X: *raw.X, Y: *raw.Y, Z: *raw.Z}, nil
}
