package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyang/notify-relay/internal/domain/notification"
)

const kafkaWriteTimeout = 10 * time.Second

// MessageWriter is the part of *kafka.Writer the Kafka sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every notification as a JSON message keyed by the relay's
// client id, so one relay's notifications stay ordered within a partition.
type Kafka struct {
	writer MessageWriter
	topic  string
	key    []byte
	logger *slog.Logger
}

// NewKafkaWriter builds a synchronous writer for a comma-separated broker list.
func NewKafkaWriter(brokers, topic string) (*kafka.Writer, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	list := strings.Split(brokers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(list...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkaWriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}, nil
}

func NewKafka(writer MessageWriter, topic, clientID string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		writer: writer,
		topic:  topic,
		key:    []byte(clientID),
		logger: logger.With("component", "sink", "sink", "kafka"),
	}
}

func (k *Kafka) Notify(ctx context.Context, req notification.Request) {
	payload, err := json.Marshal(req)
	if err != nil {
		k.logger.Error("failed to marshal notification", "error", err)
		return
	}

	msg := kafka.Message{
		Key:   k.key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(req.Severity)},
		},
		Time: time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Error("failed to write notification to kafka", "topic", k.topic, "title", req.Title, "error", err)
	}
}

func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
