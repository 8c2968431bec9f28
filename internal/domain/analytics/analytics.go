// Package analytics aggregates revenue and order figures for sellers and
// administrators.
package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
	"github.com/bazarko/marketplace-api/internal/domain/order"
)

// ErrForbidden is returned when a customer requests analytics.
var ErrForbidden = errors.New("analytics are restricted to sellers and admins")

// Cancelled orders are excluded from every revenue figure.

// Revenue is a revenue summary over a reporting window.
type Revenue struct {
	TotalRevenue decimal.Decimal
	OrderCount   int
	AverageOrder decimal.Decimal
}

// DailyRevenue is one day of the revenue series.
type DailyRevenue struct {
	Day     time.Time
	Revenue decimal.Decimal
	Orders  int
}

// StatusCount is the number of orders currently in one lifecycle state.
type StatusCount struct {
	Status order.Status
	Count  int
}

// Dashboard bundles all analytics views in one response.
type Dashboard struct {
	Revenue  Revenue
	Daily    []DailyRevenue
	Statuses []StatusCount
}

// Repository runs the aggregate queries. An empty sellerID means
// platform-wide; otherwise figures cover only orders containing at least one
// of the seller's products.
type Repository interface {
	RevenueSummary(ctx context.Context, sellerID string, from, to time.Time) (decimal.Decimal, int, error)
	RevenueByDay(ctx context.Context, sellerID string, from, to time.Time) ([]DailyRevenue, error)
	CountByStatus(ctx context.Context, sellerID string) ([]StatusCount, error)
}

// defaultWindow is applied when the caller gives no reporting range.
const defaultWindow = 30 * 24 * time.Hour

// Service scopes analytics queries by actor role.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an analytics Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// scope maps the actor to a seller filter. Admins get the platform-wide view,
// sellers their own slice, customers nothing.
func scope(act actor.Actor) (string, error) {
	switch act.Role {
	case actor.RoleAdmin:
		return "", nil
	case actor.RoleSeller:
		return act.ID, nil
	}
	return "", ErrForbidden
}

func (s *Service) window(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	return from, to
}

// Revenue returns the revenue summary for the actor's scope.
func (s *Service) Revenue(ctx context.Context, act actor.Actor, from, to time.Time) (*Revenue, error) {
	sellerID, err := scope(act)
	if err != nil {
		return nil, err
	}
	from, to = s.window(from, to)

	total, count, err := s.repo.RevenueSummary(ctx, sellerID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "revenue summary")
	}
	return summarize(total, count), nil
}

func summarize(total decimal.Decimal, count int) *Revenue {
	avg := decimal.Zero
	if count > 0 {
		avg = total.DivRound(decimal.NewFromInt(int64(count)), 2)
	}
	return &Revenue{
		TotalRevenue: total.Round(2),
		OrderCount:   count,
		AverageOrder: avg,
	}
}

// Daily returns the day-by-day revenue series for the actor's scope.
func (s *Service) Daily(ctx context.Context, act actor.Actor, from, to time.Time) ([]DailyRevenue, error) {
	sellerID, err := scope(act)
	if err != nil {
		return nil, err
	}
	from, to = s.window(from, to)

	days, err := s.repo.RevenueByDay(ctx, sellerID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "revenue by day")
	}
	return days, nil
}

// StatusBreakdown returns the order counts per lifecycle state for the
// actor's scope.
func (s *Service) StatusBreakdown(ctx context.Context, act actor.Actor) ([]StatusCount, error) {
	sellerID, err := scope(act)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx, sellerID)
	if err != nil {
		return nil, errors.Wrap(err, "count by status")
	}
	return counts, nil
}

// Dashboard fetches the summary, the daily series, and the status breakdown
// concurrently.
func (s *Service) Dashboard(ctx context.Context, act actor.Actor, from, to time.Time) (*Dashboard, error) {
	sellerID, err := scope(act)
	if err != nil {
		return nil, err
	}
	from, to = s.window(from, to)

	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, count, err := s.repo.RevenueSummary(ctx, sellerID, from, to)
		if err != nil {
			return errors.Wrap(err, "revenue summary")
		}
		d.Revenue = *summarize(total, count)
		return nil
	})
	g.Go(func() error {
		days, err := s.repo.RevenueByDay(ctx, sellerID, from, to)
		if err != nil {
			return errors.Wrap(err, "revenue by day")
		}
		d.Daily = days
		return nil
	})
	g.Go(func() error {
		counts, err := s.repo.CountByStatus(ctx, sellerID)
		if err != nil {
			return errors.Wrap(err, "count by status")
		}
		d.Statuses = counts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}
