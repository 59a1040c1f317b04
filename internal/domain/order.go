package domain

import "time"

// Order is the snapshot created at checkout. Line prices and totals are frozen
// copies of what was resolved when the order was composed; they are never
// re-derived from the live catalog.
type Order struct {
	OrderNumber string      `json:"order_number"`
	Lines       []OrderLine `json:"lines"`
	Totals      OrderTotals `json:"totals"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

type OrderLine struct {
	VariantID   string `json:"variant_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

type OrderTotals struct {
	Subtotal       int64 `json:"subtotal"`
	ShippingFee    int64 `json:"shipping_fee"`
	DiscountAmount int64 `json:"discount_amount"`
	Total          int64 `json:"total"`
}
