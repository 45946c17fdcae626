package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotifier_Send(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w}
	assert.Equal(t, "kafka", n.Name())

	require.NoError(t, n.Send(context.Background(), testAlert()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "S1", string(w.msgs[0].Key))
	assert.Equal(t, "HIGH", string(w.msgs[0].Headers[0].Value))

	var decoded Alert
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, testAlert().Message, decoded.Message)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_Send_Error(t *testing.T) {
	n := &KafkaNotifier{writer: &fakeWriter{err: errors.New("leader not available")}}
	err := n.Send(context.Background(), testAlert())

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "kafka", de.Channel)
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic        string
	qos          byte
	payload      []byte
	err          error
	hang         bool
	disconnected bool
}

func (f *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.qos = qos
	f.payload = payload.([]byte)
	if f.hang {
		return &fakeToken{done: make(chan struct{})}
	}
	return newFakeToken(f.err)
}

func (f *fakePublisher) Disconnect(uint) { f.disconnected = true }

func TestMQTTNotifier_Send(t *testing.T) {
	p := &fakePublisher{}
	n := &MQTTNotifier{client: p, prefix: "dwlr/alerts", timeout: time.Second, clock: clockwork.NewRealClock()}
	assert.Equal(t, "mqtt", n.Name())

	require.NoError(t, n.Send(context.Background(), testAlert()))
	assert.Equal(t, "dwlr/alerts/S1", p.topic)
	assert.Equal(t, byte(1), p.qos)
	assert.Contains(t, string(p.payload), `"state":"HIGH"`)

	require.NoError(t, n.Close())
	assert.True(t, p.disconnected)
}

func TestMQTTNotifier_Send_Errors(t *testing.T) {
	t.Run("publish error", func(t *testing.T) {
		n := &MQTTNotifier{client: &fakePublisher{err: errors.New("not connected")}, prefix: "p", timeout: time.Second, clock: clockwork.NewRealClock()}
		err := n.Send(context.Background(), testAlert())
		assert.ErrorContains(t, err, "not connected")
	})

	t.Run("timeout", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		n := &MQTTNotifier{client: &fakePublisher{hang: true}, prefix: "p", timeout: 5 * time.Second, clock: clock}

		errCh := make(chan error, 1)
		go func() { errCh <- n.Send(context.Background(), testAlert()) }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(5 * time.Second)

		assert.ErrorContains(t, <-errCh, "timed out")
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n := &MQTTNotifier{client: &fakePublisher{hang: true}, prefix: "p", timeout: time.Minute, clock: clockwork.NewRealClock()}
		err := n.Send(ctx, testAlert())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
