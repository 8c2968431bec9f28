// Package referral defines user-issued referral codes that reward their owner
// on each successful checkout use.
package referral

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referral code does not exist or is inactive.
var ErrNotFound = errors.New("referral code not found")

// Code is a referral code. UsageCount and TotalEarnings are monotonic:
// each recorded use adds 1 and RewardAmount respectively.
type Code struct {
	Code          string
	UserID        string
	UsageCount    int
	RewardAmount  decimal.Decimal
	TotalEarnings decimal.Decimal
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository provides lookup and usage recording for referral codes.
// RecordUse increments the usage counter and adds the fixed reward amount to
// the cumulative earnings in one atomic step; it returns ErrNotFound for
// unknown or inactive codes. It must run inside the same transaction as the
// order that supplied the code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Code, error)
	RecordUse(ctx context.Context, code string) error
}
