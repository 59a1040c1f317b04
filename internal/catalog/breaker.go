package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

// BreakerCatalog wraps a Catalog with circuit breakers so a struggling
// catalog database trips fast instead of queueing cart mutations behind it.
type BreakerCatalog struct {
	inner     Catalog
	variants  *gobreaker.CircuitBreaker[[]Variant]
	campaigns *gobreaker.CircuitBreaker[[]domain.SaleCampaignItem]
}

func NewBreakerCatalog(inner Catalog) *BreakerCatalog {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A missing variant is an answer, not a catalog outage.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrVariantNotFound)
			},
		}
	}
	return &BreakerCatalog{
		inner:     inner,
		variants:  gobreaker.NewCircuitBreaker[[]Variant](settings("catalog-variants")),
		campaigns: gobreaker.NewCircuitBreaker[[]domain.SaleCampaignItem](settings("catalog-campaigns")),
	}
}

func (b *BreakerCatalog) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	variants, err := b.variants.Execute(func() ([]Variant, error) {
		v, err := b.inner.GetVariant(ctx, variantID)
		if err != nil {
			return nil, err
		}
		return []Variant{*v}, nil
	})
	if err != nil {
		return nil, err
	}
	return &variants[0], nil
}

func (b *BreakerCatalog) GetVariants(ctx context.Context, variantIDs []string) ([]Variant, error) {
	return b.variants.Execute(func() ([]Variant, error) {
		return b.inner.GetVariants(ctx, variantIDs)
	})
}

func (b *BreakerCatalog) ListActiveCampaignItems(ctx context.Context, productIDs []int64, variantIDs []string, at time.Time) ([]domain.SaleCampaignItem, error) {
	return b.campaigns.Execute(func() ([]domain.SaleCampaignItem, error) {
		return b.inner.ListActiveCampaignItems(ctx, productIDs, variantIDs, at)
	})
}
