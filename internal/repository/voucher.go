package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarko/marketplace-api/internal/domain/pricing"
	"github.com/bazarko/marketplace-api/internal/domain/voucher"
)

const (
	getVoucherByCodeSQL = `SELECT code, name, description, type, value,
			min_purchase, max_discount, usage_limit, user_usage_limit, usage_count,
			is_active, start_date, end_date, seller_id, created_at, updated_at
		FROM vouchers WHERE UPPER(code) = UPPER($1)`

	incrementVoucherUsageSQL = `UPDATE vouchers SET usage_count = usage_count + 1, updated_at = now()
		WHERE code = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// FindByCode looks up a voucher by its code (case-insensitive). Returns
// voucher.ErrNotFound when no such voucher exists; active-window and limit
// checks are the validator's job.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getVoucherByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}
	return &v, nil
}

// IncrementUsage atomically increments the usage counter for the given code.
// The update is guarded by the usage limit: two transactions that both read
// usage_count == usage_limit-1 serialize on the row here, and the loser gets
// voucher.ErrUsageLimitReached instead of overshooting the cap.
func (r *VoucherRepository) IncrementUsage(ctx context.Context, code string) error {
	tag, err := q(ctx, r.pool).Exec(ctx, incrementVoucherUsageSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing usage for voucher %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrUsageLimitReached
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v           voucher.Voucher
		voucherType string
		usageLimit  *int32
		userLimit   *int32
		usageCount  int32
	)
	err := row.Scan(
		&v.Code, &v.Name, &v.Description, &voucherType, &v.Value,
		&v.MinPurchase, &v.MaxDiscount, &usageLimit, &userLimit, &usageCount,
		&v.IsActive, &v.StartDate, &v.EndDate, &v.SellerID, &v.CreatedAt, &v.UpdatedAt,
	)
	v.Type = pricing.DiscountType(voucherType)
	v.UsageLimit = toIntPtr(usageLimit)
	v.UserUsageLimit = toIntPtr(userLimit)
	v.UsageCount = int(usageCount)
	return v, err
}

func toIntPtr(n *int32) *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}
