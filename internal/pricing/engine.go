package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/XuThi/xuthi-frontend-sub000/internal/catalog"
	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

// ErrPriceUnavailable means the catalog or campaign lookup failed. A mutation
// must abort rather than commit a line with an unverified price.
var ErrPriceUnavailable = errors.New("price resolution unavailable")

// ResolvedPrice is the effective unit price for a variant at some instant.
type ResolvedPrice struct {
	UnitPrice     int64
	OriginalPrice int64
	OnSale        bool
	// CampaignItemID is the winning campaign item, 0 when the base price won.
	CampaignItemID int64
}

// Engine overlays base prices with active sale campaign items. It is
// read-only and safe for concurrent use; every call resolves against one
// explicit instant so a campaign cannot flip mid-computation.
type Engine struct {
	catalog catalog.Catalog
}

func NewEngine(c catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// Resolve returns the effective unit price for a single variant at the given
// instant.
func (e *Engine) Resolve(ctx context.Context, variant *catalog.Variant, now time.Time) (ResolvedPrice, error) {
	items, err := e.catalog.ListActiveCampaignItems(ctx, []int64{variant.ProductID}, []string{variant.VariantID}, now)
	if err != nil {
		return ResolvedPrice{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	return resolveOne(variant, items, now), nil
}

// PriceLines resolves all lines of a cart against a single instant, fetching
// campaign items for every product in one round trip.
func (e *Engine) PriceLines(ctx context.Context, lines []domain.StoredLine, now time.Time) ([]domain.CartLineItem, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	variantIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		variantIDs = append(variantIDs, line.VariantID)
	}

	variants, err := e.catalog.GetVariants(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	byVariant := make(map[string]catalog.Variant, len(variants))
	productIDs := make([]int64, 0, len(variants))
	for _, v := range variants {
		byVariant[v.VariantID] = v
		productIDs = append(productIDs, v.ProductID)
	}

	items, err := e.catalog.ListActiveCampaignItems(ctx, productIDs, variantIDs, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	priced := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		v, ok := byVariant[line.VariantID]
		if !ok {
			return nil, fmt.Errorf("%w: variant %s missing from catalog", ErrPriceUnavailable, line.VariantID)
		}
		// The single-winner rule is applied per variant, even on a batch.
		price := resolveOne(&v, items, now)
		priced = append(priced, domain.CartLineItem{
			VariantID:      line.VariantID,
			ProductID:      v.ProductID,
			ProductName:    v.ProductName,
			UnitPrice:      price.UnitPrice,
			CompareAtPrice: price.OriginalPrice,
			Quantity:       line.Quantity,
			CampaignItemID: price.CampaignItemID,
		})
	}
	return priced, nil
}

// resolveOne picks the effective price for one variant. If several campaign
// items are simultaneously active the largest discount wins; ties go to the
// earliest campaign start (the first committed promotion holds), then the
// lowest item ID so repeated calls agree.
func resolveOne(variant *catalog.Variant, items []domain.SaleCampaignItem, now time.Time) ResolvedPrice {
	var winner *domain.SaleCampaignItem
	for i := range items {
		item := &items[i]
		if item.ProductID != variant.ProductID || !item.AppliesTo(variant.VariantID) {
			continue
		}
		if !item.ActiveAt(now) {
			continue
		}
		if winner == nil || beats(item, winner, variant.BasePrice) {
			winner = item
		}
	}

	if winner == nil {
		return ResolvedPrice{UnitPrice: variant.BasePrice}
	}

	original := winner.OriginalPrice
	if original == 0 {
		original = variant.BasePrice
	}
	return ResolvedPrice{
		UnitPrice:      winner.SalePrice,
		OriginalPrice:  original,
		OnSale:         true,
		CampaignItemID: winner.ID,
	}
}

func beats(a, b *domain.SaleCampaignItem, basePrice int64) bool {
	da, db := basePrice-a.SalePrice, basePrice-b.SalePrice
	if da != db {
		return da > db
	}
	if !a.CampaignStart.Equal(b.CampaignStart) {
		return a.CampaignStart.Before(b.CampaignStart)
	}
	return a.ID < b.ID
}
