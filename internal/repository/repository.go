package repository

import (
	"context"
	"errors"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository defines the interface for authoritative cart state.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, cartID string) (*domain.StoredCart, error)
	GetCartBySession(ctx context.Context, sessionID string) (*domain.StoredCart, error)
	CreateCart(ctx context.Context, cart *domain.StoredCart) error
	// ApplyDelta adjusts the quantity of the given variant by delta. The
	// adjustment is additive and atomic: two concurrent deltas against the
	// same cart both take effect. A line whose quantity drops to zero or
	// below is removed, never stored.
	ApplyDelta(ctx context.Context, cartID string, line domain.StoredLine, delta int) (*domain.StoredCart, error)
	DeleteCart(ctx context.Context, cartID string) error
	CreateIndexes(ctx context.Context) error
}
