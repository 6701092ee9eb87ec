package sink_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/notify-relay/internal/adapter/sink"
	"github.com/alanyang/notify-relay/internal/domain/notification"
	portsink "github.com/alanyang/notify-relay/internal/port/sink"
)

var (
	_ portsink.Sink = (*sink.Kafka)(nil)
	_ portsink.Sink = (*sink.MQTT)(nil)
)

// ── Kafka ─────────────────────────────────────────────────────────────────────

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafka_WritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	k := sink.NewKafka(w, "notifications", "client-1", nil)

	k.Notify(context.Background(), notification.DefaultPresentation.New("Rule executed: Night mode", "Result: ok", notification.SeveritySuccess))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("client-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "severity", msg.Headers[0].Key)
	assert.Equal(t, []byte("success"), msg.Headers[0].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "Rule executed: Night mode", body["title"])
	assert.Equal(t, float64(5000), body["duration"])

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafka_WriteErrorIsNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	k := sink.NewKafka(w, "notifications", "client-1", nil)

	k.Notify(context.Background(), notification.DefaultPresentation.New("x", "", notification.SeverityInfo))
	assert.Empty(t, w.msgs)
}

func TestNewKafkaWriter(t *testing.T) {
	w, err := sink.NewKafkaWriter(" a:9092, b:9092 ", "notifications")
	require.NoError(t, err)
	assert.Equal(t, "notifications", w.Topic)
	assert.Contains(t, w.Addr.String(), "a:9092")
	assert.Contains(t, w.Addr.String(), "b:9092")

	_, err = sink.NewKafkaWriter("", "notifications")
	assert.Error(t, err)
	_, err = sink.NewKafkaWriter("a:9092", "")
	assert.Error(t, err)
}

// ── MQTT ──────────────────────────────────────────────────────────────────────

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newFakeToken(p.err)
}

func TestMQTT_PublishesBySeverity(t *testing.T) {
	p := &fakePublisher{}
	m := sink.NewMQTT(p, "notify-relay/notifications/", nil)

	m.Notify(context.Background(), notification.DefaultPresentation.New("Rule executed", "Result: failed", notification.SeverityError))
	m.Notify(context.Background(), notification.DefaultPresentation.New("Rule created", "", notification.SeveritySuccess))

	require.Len(t, p.msgs, 2)
	assert.Equal(t, "notify-relay/notifications/error", p.msgs[0].topic)
	assert.Equal(t, "notify-relay/notifications/success", p.msgs[1].topic)
	assert.Equal(t, byte(1), p.msgs[0].qos)
	assert.False(t, p.msgs[0].retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(p.msgs[0].payload, &body))
	assert.Equal(t, "Result: failed", body["description"])
}

func TestMQTT_PublishErrorIsNotFatal(t *testing.T) {
	p := &fakePublisher{err: errors.New("not connected")}
	m := sink.NewMQTT(p, "n", nil)

	m.Notify(context.Background(), notification.DefaultPresentation.New("x", "", notification.SeverityInfo))
	assert.Len(t, p.msgs, 1)
}
