package repository

import (
	"context"
	"fmt"

	domrepo "TrendDuel/internal/domain/repository"
	"TrendDuel/pkg/kafka"
)

// kafkaPublisher emits job lifecycle events to a Kafka topic. Keyed by slug so
// one comparison's events stay ordered within a partition.
type kafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *kafka.Producer, topic string) domrepo.EventPublisher {
	return &kafkaPublisher{producer: producer, topic: topic}
}

func (p *kafkaPublisher) PublishJobEvent(ctx context.Context, event domrepo.JobEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(event.Slug), event); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Kind, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishJobEvent(context.Context, domrepo.JobEvent) error { return nil }
func (NopPublisher) Close() error                                            { return nil }
