package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bazarko/marketplace-api/internal/domain/analytics"
	"github.com/bazarko/marketplace-api/internal/domain/order"
)

// Cancelled orders never contribute to revenue.
const (
	revenueSummarySQL = `SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2`

	revenueSummaryBySellerSQL = `SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2
			AND EXISTS (SELECT 1 FROM order_items oi
				JOIN products p ON p.id = oi.product_id
				WHERE oi.order_id = orders.id AND p.seller_id = $3)`

	revenueByDaySQL = `SELECT date_trunc('day', created_at) AS day, COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2
		GROUP BY day ORDER BY day`

	revenueByDayBySellerSQL = `SELECT date_trunc('day', created_at) AS day, COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2
			AND EXISTS (SELECT 1 FROM order_items oi
				JOIN products p ON p.id = oi.product_id
				WHERE oi.order_id = orders.id AND p.seller_id = $3)
		GROUP BY day ORDER BY day`

	countByStatusSQL = `SELECT status, COUNT(*) FROM orders GROUP BY status ORDER BY status`

	countByStatusBySellerSQL = `SELECT status, COUNT(*) FROM orders
		WHERE EXISTS (SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = orders.id AND p.seller_id = $1)
		GROUP BY status ORDER BY status`
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository runs aggregate reporting queries against PostgreSQL.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// RevenueSummary returns the total revenue and order count in [from, to).
func (r *AnalyticsRepository) RevenueSummary(ctx context.Context, sellerID string, from, to time.Time) (decimal.Decimal, int, error) {
	sql, args := revenueSummarySQL, []any{from, to}
	if sellerID != "" {
		sql, args = revenueSummaryBySellerSQL, []any{from, to, sellerID}
	}

	var (
		total decimal.Decimal
		count int
	)
	if err := q(ctx, r.pool).QueryRow(ctx, sql, args...).Scan(&total, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("revenue summary: %w", err)
	}
	return total, count, nil
}

// RevenueByDay returns the per-day revenue series in [from, to).
func (r *AnalyticsRepository) RevenueByDay(ctx context.Context, sellerID string, from, to time.Time) ([]analytics.DailyRevenue, error) {
	sql, args := revenueByDaySQL, []any{from, to}
	if sellerID != "" {
		sql, args = revenueByDayBySellerSQL, []any{from, to, sellerID}
	}

	rows, err := q(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("revenue by day: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.DailyRevenue, error) {
		var d analytics.DailyRevenue
		err := row.Scan(&d.Day, &d.Revenue, &d.Orders)
		return d, err
	})
}

// CountByStatus returns the number of orders in each lifecycle state.
func (r *AnalyticsRepository) CountByStatus(ctx context.Context, sellerID string) ([]analytics.StatusCount, error) {
	sql, args := countByStatusSQL, []any(nil)
	if sellerID != "" {
		sql, args = countByStatusBySellerSQL, []any{sellerID}
	}

	rows, err := q(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.StatusCount, error) {
		var (
			sc     analytics.StatusCount
			status string
		)
		err := row.Scan(&status, &sc.Count)
		sc.Status = order.Status(status)
		return sc, err
	})
}
