package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes alerts to <prefix>/<station_id> at QoS 1.
type MQTTNotifier struct {
	client  publisher
	prefix  string
	timeout time.Duration
	clock   clockwork.Clock
}

// NewMQTTNotifier connects to broker and returns a notifier.
func NewMQTTNotifier(broker, clientID, prefix string, timeout time.Duration) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}

	return &MQTTNotifier{client: c, prefix: prefix, timeout: timeout, clock: clockwork.NewRealClock()}, nil
}

func (m *MQTTNotifier) Name() string { return "mqtt" }

func (m *MQTTNotifier) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return deliveryErr(m.Name(), "marshal alert: %w", err)
	}

	topic := m.prefix + "/" + alert.StationID
	token := m.client.Publish(topic, 1, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return &DeliveryError{Channel: m.Name(), Err: ctx.Err()}
	case <-m.clock.After(m.timeout):
		return deliveryErr(m.Name(), "publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return deliveryErr(m.Name(), "publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTNotifier) Close() error {
	m.client.Disconnect(250)
	return nil
}
