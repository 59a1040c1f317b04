package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/XuThi/xuthi-frontend-sub000/internal/checkout"
	"github.com/XuThi/xuthi-frontend-sub000/internal/publisher"
)

// CartClearer drops a cart once an order consumed it.
type CartClearer interface {
	ClearCart(ctx context.Context, cartID string) error
}

// Poller consumes order-placed events and clears the originating cart.
type Poller struct {
	carts  CartClearer
	reader *kafka.Reader
}

func NewPoller(carts CartClearer, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.Topic,
		GroupID:  "storefront-cart-clear",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.consumeAndClear(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		fmt.Printf("error closing reader: %v\n", err)
	}
}

func (p *Poller) consumeAndClear(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		log.Printf("error reading message: %v", err)
		return
	}

	var event checkout.OrderPlacedEvent
	if errUnmarshal := json.Unmarshal(m.Value, &event); errUnmarshal != nil {
		log.Printf("error parsing order placed event: %v", errUnmarshal)
		return
	}
	if event.CartID == "" {
		log.Println("order placed event missing cart_id")
		return
	}

	if errClear := p.carts.ClearCart(ctx, event.CartID); errClear != nil {
		log.Printf("failed to clear cart %v after order %v: %v", event.CartID, event.OrderNumber, errClear)
	}
}
