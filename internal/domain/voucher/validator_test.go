package voucher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarko/marketplace-api/internal/domain/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func TestValidate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	weekAgo := fixedNow.Add(-7 * 24 * time.Hour)
	weekAhead := fixedNow.Add(7 * 24 * time.Hour)

	base := Voucher{
		Code:      "SAVE10",
		Type:      pricing.DiscountPercentage,
		Value:     dec("10"),
		IsActive:  true,
		StartDate: weekAgo,
		EndDate:   weekAhead,
	}

	tests := []struct {
		name     string
		mutate   func(v *Voucher)
		subtotal string
		want     string
		wantErr  error
	}{
		{
			name:     "valid percentage voucher",
			mutate:   func(_ *Voucher) {},
			subtotal: "200.00",
			want:     "20.00",
		},
		{
			name: "percentage clamped to max discount",
			mutate: func(v *Voucher) {
				v.MaxDiscount = decPtr("10.00")
			},
			subtotal: "150.00",
			want:     "10.00",
		},
		{
			name: "fixed amount voucher",
			mutate: func(v *Voucher) {
				v.Type = pricing.DiscountFixedAmount
				v.Value = dec("5.00")
			},
			subtotal: "50.00",
			want:     "5.00",
		},
		{
			name: "free shipping voucher has zero merchandise discount",
			mutate: func(v *Voucher) {
				v.Type = pricing.DiscountFreeShipping
				v.Value = dec("0")
			},
			subtotal: "50.00",
			want:     "0",
		},
		{
			name: "inactive voucher",
			mutate: func(v *Voucher) {
				v.IsActive = false
			},
			subtotal: "200.00",
			wantErr:  ErrNotActive,
		},
		{
			name: "not yet valid",
			mutate: func(v *Voucher) {
				v.StartDate = fixedNow.Add(time.Hour)
			},
			subtotal: "200.00",
			wantErr:  ErrOutsideWindow,
		},
		{
			name: "expired",
			mutate: func(v *Voucher) {
				v.EndDate = fixedNow.Add(-time.Hour)
			},
			subtotal: "200.00",
			wantErr:  ErrOutsideWindow,
		},
		{
			name: "subtotal below minimum purchase",
			mutate: func(v *Voucher) {
				v.MinPurchase = decPtr("100.00")
			},
			subtotal: "99.99",
			wantErr:  ErrMinPurchaseNotMet,
		},
		{
			name: "subtotal exactly at minimum purchase passes",
			mutate: func(v *Voucher) {
				v.MinPurchase = decPtr("100.00")
			},
			subtotal: "100.00",
			want:     "10.00",
		},
		{
			name: "usage limit reached",
			mutate: func(v *Voucher) {
				v.UsageLimit = intPtr(100)
				v.UsageCount = 100
			},
			subtotal: "200.00",
			wantErr:  ErrUsageLimitReached,
		},
		{
			name: "usage under limit passes",
			mutate: func(v *Voucher) {
				v.UsageLimit = intPtr(100)
				v.UsageCount = 99
			},
			subtotal: "200.00",
			want:     "20.00",
		},
		{
			name: "no usage limit means unlimited",
			mutate: func(v *Voucher) {
				v.UsageCount = 100000
			},
			subtotal: "200.00",
			want:     "20.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			tt.mutate(&v)

			got, err := Validate(&v, dec(tt.subtotal), fixedNow)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidationError(err))
				return
			}

			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestFreeShipping(t *testing.T) {
	v := Voucher{Type: pricing.DiscountFreeShipping}
	assert.True(t, v.FreeShipping())

	v.Type = pricing.DiscountPercentage
	assert.False(t, v.FreeShipping())
}
