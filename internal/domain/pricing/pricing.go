// Package pricing holds the pure order-pricing arithmetic: line subtotals,
// voucher discounts, shipping fees, and tax. All money values are
// shopspring decimals rounded to 2 decimal places; the package performs no I/O.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned for non-positive line quantities.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixedAmount applies a fixed monetary discount capped at the subtotal.
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	// DiscountFreeShipping waives the shipping fee; the merchandise discount is zero.
	DiscountFreeShipping DiscountType = "FREE_SHIPPING"
)

var (
	hundred           = decimal.NewFromInt(100)
	freeShippingFloor = decimal.NewFromInt(100)
	flatShippingFee   = decimal.RequireFromString("10.00")
	taxRate           = decimal.RequireFromString("0.10")
)

// DiscountRule is the pricing-relevant subset of a voucher.
type DiscountRule struct {
	Type        DiscountType
	Value       decimal.Decimal
	MaxDiscount *decimal.Decimal
}

// LineSubtotal returns unitPrice * quantity.
func LineSubtotal(unitPrice decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// VoucherDiscount computes the merchandise discount for the given rule.
//
// Percentage discounts are subtotal * value / 100, rounded half-up to 2
// decimal places and clamped to MaxDiscount when one is set. Fixed-amount
// discounts are clamped at the subtotal so the post-discount amount never
// goes negative. Free-shipping vouchers contribute no merchandise discount;
// the fee waiver happens in Shipping.
func VoucherDiscount(rule DiscountRule, subtotal decimal.Decimal) decimal.Decimal {
	switch rule.Type {
	case DiscountPercentage:
		d := subtotal.Mul(rule.Value).Div(hundred).Round(2)
		if rule.MaxDiscount != nil && d.GreaterThan(*rule.MaxDiscount) {
			d = *rule.MaxDiscount
		}
		return d
	case DiscountFixedAmount:
		return decimal.Min(rule.Value, subtotal).Round(2)
	case DiscountFreeShipping:
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// Shipping returns the shipping fee for the post-discount merchandise total.
// Orders of 100.00 or more ship free, as do orders with a free-shipping
// voucher; everything else pays a flat fee.
func Shipping(afterDiscount decimal.Decimal, freeShipping bool) decimal.Decimal {
	if freeShipping || afterDiscount.GreaterThanOrEqual(freeShippingFloor) {
		return decimal.Zero
	}
	return flatShippingFee
}

// Tax returns the flat 10% tax on the post-discount merchandise total.
func Tax(afterDiscount decimal.Decimal) decimal.Decimal {
	return afterDiscount.Mul(taxRate).Round(2)
}
