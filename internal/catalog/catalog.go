package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

var ErrVariantNotFound = errors.New("variant not found")

// Variant is the catalog record a cart line references.
type Variant struct {
	VariantID   string
	ProductID   int64
	ProductName string
	BasePrice   int64
	ImageURL    string
}

// Catalog is the read-side collaborator for variants and sale campaigns.
// Consumers define this interface, not the Postgres implementation.
type Catalog interface {
	GetVariant(ctx context.Context, variantID string) (*Variant, error)
	GetVariants(ctx context.Context, variantIDs []string) ([]Variant, error)
	// ListActiveCampaignItems batch-fetches campaign items live at the given
	// instant for the given products or variants, in one round trip.
	ListActiveCampaignItems(ctx context.Context, productIDs []int64, variantIDs []string, at time.Time) ([]domain.SaleCampaignItem, error)
}

// CampaignStock advances the usage counter of capped campaign items once an
// order consumes them.
type CampaignStock interface {
	ConsumeCampaignStock(ctx context.Context, campaignItemID int64, quantity int) error
}
