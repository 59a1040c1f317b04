package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/XuThi/xuthi-frontend-sub000/internal/catalog"
	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// CartReader supplies the priced, re-resolved cart at checkout time.
type CartReader interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
}

// OrderCreator is the external order service; it owns the order once created.
type OrderCreator interface {
	CreateOrder(ctx context.Context, customer CustomerInfo, lines []domain.OrderLine, totals domain.OrderTotals) (string, error)
}

// VoucherEvaluator computes a discount in minor units for a voucher code.
// The result is treated as opaque here; only its bound is enforced.
type VoucherEvaluator interface {
	EvaluateVoucher(ctx context.Context, code string, subtotal, shippingFee int64) (int64, error)
}

// EventPublisher announces a placed order, e.g. so the cart gets cleared.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error
}

type CustomerInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type OrderPlacedEvent struct {
	OrderNumber string    `json:"order_number"`
	CartID      string    `json:"cart_id"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	CompletedAt time.Time `json:"completed_at"`
}

type Request struct {
	CartID      string
	Customer    CustomerInfo
	ShippingFee int64
	VoucherCode string
}

// Service turns a cart into an immutable order snapshot.
type Service struct {
	carts       CartReader
	orders      OrderCreator
	vouchers    VoucherEvaluator
	publisher   EventPublisher
	stock       catalog.CampaignStock
	shippingFee int64 // flat fee policy, minor units
	now         func() time.Time
}

func NewService(carts CartReader, orders OrderCreator, vouchers VoucherEvaluator, publisher EventPublisher, stock catalog.CampaignStock, shippingFee int64) *Service {
	return &Service{
		carts:       carts,
		orders:      orders,
		vouchers:    vouchers,
		publisher:   publisher,
		stock:       stock,
		shippingFee: shippingFee,
		now:         time.Now,
	}
}

// ShippingFee returns the flat shipping fee applied to every order.
func (s *Service) ShippingFee() int64 {
	return s.shippingFee
}

// Checkout re-resolves the cart once, composes the totals, hands the order to
// the order service, and returns the frozen snapshot. The snapshot is never
// re-derived from live prices afterwards.
func (s *Service) Checkout(ctx context.Context, req Request) (*domain.Order, error) {
	cart, err := s.carts.GetCart(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var discount int64
	if req.VoucherCode != "" {
		discount, err = s.vouchers.EvaluateVoucher(ctx, req.VoucherCode, cart.Subtotal, req.ShippingFee)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate voucher: %w", err)
		}
	}

	totals, err := Compose(cart, req.ShippingFee, discount)
	if err != nil {
		return nil, err
	}

	lines := snapshotLines(cart)
	orderNumber, err := s.orders.CreateOrder(ctx, req.Customer, lines, totals)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.consumeCampaignStock(ctx, cart)

	event := OrderPlacedEvent{
		OrderNumber: orderNumber,
		CartID:      cart.ID,
		TotalAmount: totals.Total,
		Currency:    "VND",
		CompletedAt: s.now(),
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		// The order exists; losing the event must not fail the checkout.
		log.Printf("failed to publish order placed event for %v: %v", orderNumber, err)
	}

	return &domain.Order{
		OrderNumber: orderNumber,
		Lines:       lines,
		Totals:      totals,
		Status:      "pending",
		CreatedAt:   s.now(),
	}, nil
}

// snapshotLines freezes the resolved prices onto order lines.
func snapshotLines(cart *domain.Cart) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, domain.OrderLine{
			VariantID:   item.VariantID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   domain.LineTotal(item.UnitPrice, item.Quantity),
		})
	}
	return lines
}

func (s *Service) consumeCampaignStock(ctx context.Context, cart *domain.Cart) {
	for _, item := range cart.Items {
		if item.CampaignItemID == 0 {
			continue
		}
		if err := s.stock.ConsumeCampaignStock(ctx, item.CampaignItemID, item.Quantity); err != nil {
			log.Printf("failed to consume campaign stock for item %v: %v", item.CampaignItemID, err)
		}
	}
}
