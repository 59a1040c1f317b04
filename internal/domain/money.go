package domain

// All monetary values in this repository are int64 amounts of minor currency
// units (đồng). The modeled currency has no subdivision below 1, so no rounding
// rule is ever applied to a stored amount. Floats never touch money.

// LineTotal returns the total for a single line.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}

// Subtotal sums line totals over the given items with integer arithmetic.
func Subtotal(items []CartLineItem) int64 {
	var sum int64
	for _, item := range items {
		sum += LineTotal(item.UnitPrice, item.Quantity)
	}
	return sum
}

// TotalItems counts units across all lines.
func TotalItems(items []CartLineItem) int {
	var n int
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
