package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
	"github.com/bazarko/marketplace-api/internal/domain/order"
)

type fakeRepo struct {
	total decimal.Decimal
	count int

	daily  []DailyRevenue
	counts []StatusCount
	err    error

	lastSellerID string
	lastFrom     time.Time
	lastTo       time.Time
}

func (f *fakeRepo) RevenueSummary(_ context.Context, sellerID string, from, to time.Time) (decimal.Decimal, int, error) {
	f.lastSellerID = sellerID
	f.lastFrom, f.lastTo = from, to
	return f.total, f.count, f.err
}

func (f *fakeRepo) RevenueByDay(_ context.Context, sellerID string, _, _ time.Time) ([]DailyRevenue, error) {
	f.lastSellerID = sellerID
	return f.daily, f.err
}

func (f *fakeRepo) CountByStatus(_ context.Context, sellerID string) ([]StatusCount, error) {
	f.lastSellerID = sellerID
	return f.counts, f.err
}

var (
	admin    = actor.Actor{ID: "adm-1", Role: actor.RoleAdmin}
	seller   = actor.Actor{ID: "sell-1", Role: actor.RoleSeller}
	customer = actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRevenue_Average(t *testing.T) {
	repo := &fakeRepo{total: dec("100.00"), count: 3}
	svc := NewService(repo)

	r, err := svc.Revenue(context.Background(), admin, time.Time{}, time.Time{})

	require.NoError(t, err)
	assert.True(t, dec("100.00").Equal(r.TotalRevenue))
	assert.Equal(t, 3, r.OrderCount)
	assert.True(t, dec("33.33").Equal(r.AverageOrder), "average rounds to 2 decimal places")
}

func TestRevenue_NoOrders(t *testing.T) {
	repo := &fakeRepo{total: decimal.Zero, count: 0}
	svc := NewService(repo)

	r, err := svc.Revenue(context.Background(), admin, time.Time{}, time.Time{})

	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(r.AverageOrder))
}

func TestRevenue_DefaultWindow(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{}
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.Revenue(context.Background(), admin, time.Time{}, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, fixedNow, repo.lastTo)
	assert.Equal(t, fixedNow.Add(-defaultWindow), repo.lastFrom)
}

func TestScoping(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	_, err := svc.Revenue(context.Background(), admin, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, repo.lastSellerID, "admin scope is platform-wide")

	_, err = svc.Revenue(context.Background(), seller, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "sell-1", repo.lastSellerID)

	_, err = svc.Revenue(context.Background(), customer, time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Daily(context.Background(), customer, time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.StatusBreakdown(context.Background(), customer)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Dashboard(context.Background(), customer, time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestDashboard(t *testing.T) {
	day := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		total: dec("250.00"),
		count: 2,
		daily: []DailyRevenue{{Day: day, Revenue: dec("250.00"), Orders: 2}},
		counts: []StatusCount{
			{Status: order.StatusPending, Count: 1},
			{Status: order.StatusDelivered, Count: 1},
		},
	}
	svc := NewService(repo)

	d, err := svc.Dashboard(context.Background(), seller, time.Time{}, time.Time{})

	require.NoError(t, err)
	assert.True(t, dec("125.00").Equal(d.Revenue.AverageOrder))
	require.Len(t, d.Daily, 1)
	assert.Equal(t, day, d.Daily[0].Day)
	assert.Len(t, d.Statuses, 2)
}

func TestDashboard_RepoError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	svc := NewService(repo)

	_, err := svc.Dashboard(context.Background(), admin, time.Time{}, time.Time{})
	require.Error(t, err)
}
