package domain

import "time"

// StoredCart is the authoritative cart aggregate as persisted. It holds only
// variant references and quantities; unit prices are resolved on every read
// because a sale window may open or close between reads.
type StoredCart struct {
	ID        string       `bson:"_id,omitempty"`
	SessionID string       `bson:"session_id,omitempty"`
	Items     []StoredLine `bson:"items"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

type StoredLine struct {
	VariantID   string    `bson:"variant_id"`
	ProductID   int64     `bson:"product_id"`
	ProductName string    `bson:"product_name"`
	Quantity    int       `bson:"quantity"`
	AddedAt     time.Time `bson:"added_at"`
}

// Quantity returns the current quantity for a variant, 0 if absent.
func (c *StoredCart) Quantity(variantID string) int {
	for _, item := range c.Items {
		if item.VariantID == variantID {
			return item.Quantity
		}
	}
	return 0
}

// Cart is the priced view of a cart returned to callers. Subtotal and
// TotalItems are derived from the lines, never stored.
type Cart struct {
	ID         string         `json:"id"`
	Items      []CartLineItem `json:"items"`
	Subtotal   int64          `json:"subtotal"`
	TotalItems int            `json:"total_items"`
}

type CartLineItem struct {
	VariantID   string `json:"variant_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	// CompareAtPrice is the pre-sale price, 0 when the line is not on sale.
	CompareAtPrice int64 `json:"compare_at_price,omitempty"`
	Quantity       int   `json:"quantity"`
	// CampaignItemID identifies the sale campaign item that produced
	// UnitPrice, 0 when the base price applied.
	CampaignItemID int64 `json:"-"`
}

// Recompute rederives Subtotal and TotalItems from the lines.
func (c *Cart) Recompute() {
	c.Subtotal = Subtotal(c.Items)
	c.TotalItems = TotalItems(c.Items)
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartLineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
