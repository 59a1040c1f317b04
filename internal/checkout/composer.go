package checkout

import (
	"errors"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

// ErrInvalidDiscount means a voucher's discount exceeds what is available to
// discount. Checkout is blocked rather than clamped silently.
var ErrInvalidDiscount = errors.New("discount exceeds discountable amount")

// Compose is the single place an order's monetary total is computed. The cart
// must already carry prices resolved at checkout time.
func Compose(cart *domain.Cart, shippingFee, discount int64) (domain.OrderTotals, error) {
	subtotal := domain.Subtotal(cart.Items)

	if discount < 0 {
		discount = 0
	}
	if discount > subtotal+shippingFee {
		return domain.OrderTotals{}, ErrInvalidDiscount
	}

	total := subtotal + shippingFee - discount
	if total < 0 {
		total = 0
	}

	return domain.OrderTotals{
		Subtotal:       subtotal,
		ShippingFee:    shippingFee,
		DiscountAmount: discount,
		Total:          total,
	}, nil
}
