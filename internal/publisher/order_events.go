package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/XuThi/xuthi-frontend-sub000/internal/checkout"
)

const Topic = "order-placed"

// OrderEventPublisher writes order-placed events to Kafka.
type OrderEventPublisher struct {
	writer *kafka.Writer
}

func NewOrderEventPublisher(brokers ...string) *OrderEventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OrderEventPublisher{writer: w}
}

func (p *OrderEventPublisher) PublishOrderPlaced(ctx context.Context, event checkout.OrderPlacedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order placed event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CartID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write order placed event: %w", err)
	}
	return nil
}

func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}
