package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarko/marketplace-api/internal/domain/referral"
)

const (
	getReferralByCodeSQL = `SELECT code, user_id, usage_count, reward_amount, total_earnings,
			is_active, created_at, updated_at
		FROM referral_codes WHERE code = $1 AND is_active = TRUE`

	recordReferralUseSQL = `UPDATE referral_codes
		SET usage_count = usage_count + 1,
			total_earnings = total_earnings + reward_amount,
			updated_at = now()
		WHERE code = $1 AND is_active = TRUE`
)

var _ referral.Repository = (*ReferralRepository)(nil)

// ReferralRepository implements referral.Repository backed by PostgreSQL.
type ReferralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository returns a ReferralRepository that uses the given pool.
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// FindByCode looks up an active referral code.
func (r *ReferralRepository) FindByCode(ctx context.Context, code string) (*referral.Code, error) {
	var c referral.Code
	err := q(ctx, r.pool).QueryRow(ctx, getReferralByCodeSQL, code).Scan(
		&c.Code, &c.UserID, &c.UsageCount, &c.RewardAmount, &c.TotalEarnings,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, referral.ErrNotFound
		}
		return nil, fmt.Errorf("finding referral code %q: %w", code, err)
	}
	return &c, nil
}

// RecordUse increments the usage counter and credits the reward amount to the
// owner's earnings in one atomic update. Unknown or inactive codes return
// referral.ErrNotFound.
func (r *ReferralRepository) RecordUse(ctx context.Context, code string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, recordReferralUseSQL, code)
	if err != nil {
		return fmt.Errorf("recording use of referral code %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return referral.ErrNotFound
	}
	return nil
}
