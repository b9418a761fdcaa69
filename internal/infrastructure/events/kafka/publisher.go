// Package kafka delivers outbox events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"checkbook/internal/infrastructure/storage/postgres"
)

// DefaultTopic receives every check lifecycle event.
const DefaultTopic = "check-events"

// Header names set on every produced message.
const (
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderMessageID     = "message_id"
)

// Publisher implements postgres.OutboxHandler on top of a kafka.Writer.
type Publisher struct {
	writer *kafka.Writer
}

var _ postgres.OutboxHandler = (*Publisher)(nil)

// NewPublisher creates a publisher writing to topic.
// Messages are keyed by aggregate id so events of one request stay ordered.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Handle writes one outbox message.
func (p *Publisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	if err := p.writer.WriteMessages(ctx, toMessage(msg)); err != nil {
		return fmt.Errorf("write %s to kafka: %w", msg.EventType, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessage(msg *postgres.OutboxMessage) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.AggregateType + ":" + msg.AggregateID),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderAggregateType, Value: []byte(msg.AggregateType)},
			{Key: HeaderMessageID, Value: []byte(msg.ID.String())},
		},
	}
}
