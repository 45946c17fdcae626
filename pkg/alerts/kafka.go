package alerts

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaNotifier publishes alerts as JSON records keyed by station ID.
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier creates a notifier that writes to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Send(ctx context.Context, alert Alert) error {
	value, err := json.Marshal(alert)
	if err != nil {
		return deliveryErr(k.Name(), "marshal alert: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(alert.StationID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "state", Value: []byte(alert.State)},
		},
		Time: alert.RaisedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return deliveryErr(k.Name(), "write message: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
