package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/alanyang/notify-relay/internal/domain/notification"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttDisconnectQuiesce = 1000 // milliseconds
	mqttQoS               = 1
)

// Publisher is the part of a paho client the MQTT sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTT publishes notifications to <prefix>/<severity> so subscribers can pick
// the severities they care about.
type MQTT struct {
	client Publisher
	prefix string
	logger *slog.Logger
}

// ConnectMQTT dials broker (e.g. "tcp://localhost:1883") and waits for the
// connection to be acknowledged.
func ConnectMQTT(broker, clientID string) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timeout after %v", broker, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", broker, err)
	}
	return client, nil
}

// DisconnectMQTT waits briefly for in-flight publishes before disconnecting.
func DisconnectMQTT(client pahomqtt.Client) {
	client.Disconnect(mqttDisconnectQuiesce)
}

func NewMQTT(client Publisher, prefix string, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger.With("component", "sink", "sink", "mqtt"),
	}
}

// Topic returns the topic a notification of severity s is published to.
func (m *MQTT) Topic(s notification.Severity) string {
	return m.prefix + "/" + string(s)
}

func (m *MQTT) Notify(_ context.Context, req notification.Request) {
	payload, err := json.Marshal(req)
	if err != nil {
		m.logger.Error("failed to marshal notification", "error", err)
		return
	}

	topic := m.Topic(req.Severity)
	token := m.client.Publish(topic, mqttQoS, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		m.logger.Error("mqtt publish timed out", "topic", topic, "timeout", mqttPublishTimeout)
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Error("mqtt publish failed", "topic", topic, "error", err)
	}
}
