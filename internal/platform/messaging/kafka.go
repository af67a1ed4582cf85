package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	contractsv1 "dropvest/contracts/gen/events/v1"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher relays outbox envelopes to Kafka. Messages are keyed by the
// envelope partition key so events of one campaign or beneficiary stay
// ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		logger: logger,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.PartitionKey),
		Value: payload,
		Time:  event.OccurredAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}); err != nil {
		return fmt.Errorf("write kafka message %s: %w", event.EventID, err)
	}
	p.logger.Debug("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
