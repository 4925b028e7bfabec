package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"worklist-sentinel/internal/events"
	"worklist-sentinel/internal/models"
)

// EventPublisher publishes monitor events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Producer wraps a Kafka writer for publishing monitor events.
type Producer struct {
	writer events.MessageWriter
}

// NewProducer creates a Kafka producer for the given broker and topic.
func NewProducer(broker, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

// NewProducerWithWriter builds a producer using a custom writer (tests).
func NewProducerWithWriter(writer events.MessageWriter) *Producer {
	return &Producer{writer: writer}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish writes the event keyed by run id so a run's events stay ordered on one partition.
func (p *Producer) Publish(ctx context.Context, event models.Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
		Time:  event.At,
	}

	return p.writer.WriteMessages(ctx, msg)
}
