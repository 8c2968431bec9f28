// Package voucher defines seller-issued discount codes and their checkout
// validation rules.
package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bazarko/marketplace-api/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a voucher code does not exist.
	ErrNotFound = errors.New("voucher not found")
	// ErrNotActive is returned when a voucher has been deactivated by its seller.
	ErrNotActive = errors.New("voucher is not active")
	// ErrOutsideWindow is returned when now is before startDate or after endDate.
	ErrOutsideWindow = errors.New("voucher is expired or not yet valid")
	// ErrMinPurchaseNotMet is returned when the subtotal is below the voucher's floor.
	ErrMinPurchaseNotMet = errors.New("minimum purchase amount not met for this voucher")
	// ErrUsageLimitReached is returned when the voucher's global usage cap is exhausted.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
)

// IsValidationError reports whether err is one of the checkout validation
// failures, as opposed to a lookup or storage error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrOutsideWindow) ||
		errors.Is(err, ErrMinPurchaseNotMet) ||
		errors.Is(err, ErrUsageLimitReached)
}

// Voucher is a seller-issued discount code. UsageCount is monotonic and only
// ever incremented inside a committing order transaction. UserUsageLimit is
// declared by sellers but not enforced at checkout.
type Voucher struct {
	Code           string
	Name           string
	Description    string
	Type           pricing.DiscountType
	Value          decimal.Decimal
	MinPurchase    *decimal.Decimal
	MaxDiscount    *decimal.Decimal
	UsageLimit     *int
	UserUsageLimit *int
	UsageCount     int
	IsActive       bool
	StartDate      time.Time
	EndDate        time.Time
	SellerID       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Rule returns the pricing-relevant subset of the voucher.
func (v *Voucher) Rule() pricing.DiscountRule {
	return pricing.DiscountRule{
		Type:        v.Type,
		Value:       v.Value,
		MaxDiscount: v.MaxDiscount,
	}
}

// FreeShipping reports whether applying this voucher waives the shipping fee.
func (v *Voucher) FreeShipping() bool {
	return v.Type == pricing.DiscountFreeShipping
}

// Repository provides lookup and usage-counter mutation of vouchers.
// IncrementUsage must run inside the same transaction as the order that
// applied the voucher.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	IncrementUsage(ctx context.Context, code string) error
}
