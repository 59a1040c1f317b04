package cache

import (
	"context"
	"errors"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

// CartCache holds stored carts (variant refs and quantities only). Prices are
// deliberately never cached: they are re-resolved on every read.
type CartCache interface {
	Get(ctx context.Context, cartID string) (*domain.StoredCart, error)
	Set(ctx context.Context, cartID string, cart *domain.StoredCart) error
	Delete(ctx context.Context, cartID string) error
}

var ErrCacheMiss = errors.New("cache miss")
