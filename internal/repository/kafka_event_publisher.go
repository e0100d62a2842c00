package repository

import (
	"context"
	"fmt"

	"ChartPulse/internal/domain/models"
	xkafka "ChartPulse/pkg/kafka"
)

// KafkaEventPublisher publishes pattern events to a Kafka topic, keyed by
// symbol so events for one instrument stay ordered within a partition.
type KafkaEventPublisher struct {
	producer *xkafka.Producer
	topic    string
}

// NewKafkaEventPublisher wraps an existing producer.
func NewKafkaEventPublisher(producer *xkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishPattern sends one detected pattern event.
func (p *KafkaEventPublisher) PublishPattern(ctx context.Context, ev models.PatternEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish pattern %s: %w", ev.PatternKey, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}
