package domain

import "time"

// SaleCampaignItem is a time-boxed price override for a product or a specific
// variant of it, with an optional usage cap.
type SaleCampaignItem struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	// VariantID narrows the override to one variant; empty means every
	// variant of the product.
	VariantID     string    `json:"variant_id,omitempty"`
	SalePrice     int64     `json:"sale_price"`
	OriginalPrice int64     `json:"original_price,omitempty"`
	MaxQuantity   int64     `json:"max_quantity,omitempty"`
	SoldQuantity  int64     `json:"sold_quantity"`
	CampaignStart time.Time `json:"campaign_start"`
	CampaignEnd   time.Time `json:"campaign_end"`
}

// ActiveAt reports whether the campaign item is live at the given instant.
// The window is half-open: start inclusive, end exclusive. A capped item that
// has sold out is no longer active.
func (s SaleCampaignItem) ActiveAt(now time.Time) bool {
	if now.Before(s.CampaignStart) || !now.Before(s.CampaignEnd) {
		return false
	}
	if s.MaxQuantity > 0 && s.SoldQuantity >= s.MaxQuantity {
		return false
	}
	return true
}

// AppliesTo reports whether the campaign item covers the given variant.
func (s SaleCampaignItem) AppliesTo(variantID string) bool {
	return s.VariantID == "" || s.VariantID == variantID
}
