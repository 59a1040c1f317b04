package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/XuThi/xuthi-frontend-sub000/internal/cache"
	"github.com/XuThi/xuthi-frontend-sub000/internal/catalog"
	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
	"github.com/XuThi/xuthi-frontend-sub000/internal/pricing"
	"github.com/XuThi/xuthi-frontend-sub000/internal/repository"
)

// CartService is the authoritative cart store. Every mutation is a signed
// quantity delta against a variant; absolute "set to N" intent is translated
// into a delta at this boundary.
type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.Catalog
	pricer  *pricing.Engine
	sfg     singleflight.Group // Prevents cache stampede
	now     func() time.Time
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, cat catalog.Catalog, pricer *pricing.Engine) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: cat,
		pricer:  pricer,
		now:     time.Now,
	}
}

// GetCart returns the priced cart for a known cart ID.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	stored, err := s.loadStored(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, stored)
}

// GetCartBySession resolves the cart attached to an anonymous session. Used
// only before a durable cart ID is known.
func (s *CartService) GetCartBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	stored, err := s.repo.GetCartBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, stored)
}

// ApplyDelta adjusts the quantity of variantID by delta. An empty cartID
// resolves the cart by session, creating one lazily; an unknown cartID also
// creates a fresh cart, tolerating stale client-side identifiers. The
// variant's price is resolved before anything is committed: a failed lookup
// aborts the mutation.
func (s *CartService) ApplyDelta(ctx context.Context, cartID, sessionID, variantID string, delta int) (*domain.Cart, error) {
	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", pricing.ErrPriceUnavailable, err)
	}

	stored, err := s.resolveOrCreate(ctx, cartID, sessionID)
	if err != nil {
		return nil, err
	}

	if delta == 0 {
		// Defensive no-op, e.g. "set to current quantity".
		return s.price(ctx, stored)
	}

	line := domain.StoredLine{
		VariantID:   variant.VariantID,
		ProductID:   variant.ProductID,
		ProductName: variant.ProductName,
	}
	updated, err := s.repo.ApplyDelta(ctx, stored.ID, line, delta)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(stored.ID)
	return s.price(ctx, updated)
}

// SetQuantity translates absolute intent into a delta against the current
// quantity, collapsing the race to a single read-then-delta. A target of zero
// or below removes the line.
func (s *CartService) SetQuantity(ctx context.Context, cartID, sessionID, variantID string, target int) (*domain.Cart, error) {
	stored, err := s.resolveOrCreate(ctx, cartID, sessionID)
	if err != nil {
		return nil, err
	}

	if target < 0 {
		target = 0
	}
	delta := target - stored.Quantity(variantID)
	return s.ApplyDelta(ctx, stored.ID, sessionID, variantID, delta)
}

// ClearCart drops the whole cart, e.g. once an order consumed it.
func (s *CartService) ClearCart(ctx context.Context, cartID string) error {
	if err := s.repo.DeleteCart(ctx, cartID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}

	s.invalidateCache(cartID)
	return nil
}

func (s *CartService) resolveOrCreate(ctx context.Context, cartID, sessionID string) (*domain.StoredCart, error) {
	if cartID != "" {
		stored, err := s.loadStored(ctx, cartID)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, err
		}
		// Stale cart ID (lost cookie etc.), fall through to create.
	}

	if sessionID != "" {
		stored, err := s.repo.GetCartBySession(ctx, sessionID)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, err
		}
	}

	fresh := &domain.StoredCart{
		ID:        uuid.New().String(),
		SessionID: sessionID,
	}
	if err := s.repo.CreateCart(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *CartService) loadStored(ctx context.Context, cartID string) (*domain.StoredCart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(cartID, func() (interface{}, error) {

		stored, err := s.cache.Get(ctx, cartID)
		if err == nil {
			return stored, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		stored, errGet := s.repo.GetCart(ctx, cartID)
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), cartID, stored)
			if errSet != nil {
				log.Printf("cache set error: %v \n", errSet)
			}
		}()

		return stored, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.StoredCart), nil
}

// price resolves every line against one instant and derives the subtotal with
// integer arithmetic.
func (s *CartService) price(ctx context.Context, stored *domain.StoredCart) (*domain.Cart, error) {
	items, err := s.pricer.PriceLines(ctx, stored.Items, s.now())
	if err != nil {
		return nil, err
	}

	cart := &domain.Cart{
		ID:    stored.ID,
		Items: items,
	}
	cart.Recompute()
	return cart, nil
}

func (s *CartService) invalidateCache(cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cartID); err != nil {
		log.Printf("cache invalidate error: %v \n", err)
	}
}
