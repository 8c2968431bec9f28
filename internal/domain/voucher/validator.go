package voucher

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bazarko/marketplace-api/internal/domain/pricing"
)

// Validate checks a voucher against a candidate subtotal at the given time
// and returns the merchandise discount to apply.
//
// All preconditions are mandatory; the check order is fixed only for
// error-message determinism. Validation is side-effect-free: the usage counter
// is incremented by the order transaction after everything else succeeds.
func Validate(v *Voucher, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !v.IsActive {
		return decimal.Zero, ErrNotActive
	}
	if now.Before(v.StartDate) || now.After(v.EndDate) {
		return decimal.Zero, ErrOutsideWindow
	}
	if v.MinPurchase != nil && subtotal.LessThan(*v.MinPurchase) {
		return decimal.Zero, ErrMinPurchaseNotMet
	}
	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return decimal.Zero, ErrUsageLimitReached
	}
	return pricing.VoucherDiscount(v.Rule(), subtotal), nil
}
