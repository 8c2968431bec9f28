package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
	"github.com/bazarko/marketplace-api/internal/domain/pricing"
	"github.com/bazarko/marketplace-api/internal/domain/product"
	"github.com/bazarko/marketplace-api/internal/domain/referral"
	"github.com/bazarko/marketplace-api/internal/domain/voucher"
)

// Input validation sentinels.
var (
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrUnknownStatus        = errors.New("unknown order status")
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100

	// Collisions on the generated order number are possible within the same
	// second; the create transaction retries with a fresh suffix.
	orderNumberAttempts = 3
)

// ItemRequest is a single requested order line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateOrderRequest holds the input for placing an order.
type CreateOrderRequest struct {
	Items           []ItemRequest
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	VoucherCode     string
	ReferralCode    string
	Notes           string
}

// Service encapsulates order placement and lifecycle business logic.
type Service struct {
	products  product.Repository
	vouchers  voucher.Repository
	referrals referral.Repository
	orders    Repository
	tx        Transactor

	now   func() time.Time
	token func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	vouchers voucher.Repository,
	referrals referral.Repository,
	orders Repository,
	tx Transactor,
) *Service {
	return &Service{
		products:  products,
		vouchers:  vouchers,
		referrals: referrals,
		orders:    orders,
		tx:        tx,
		now:       time.Now,
		token:     defaultToken,
	}
}

func defaultToken() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// orderNumber builds a human-readable unique order reference, e.g.
// ORD-20250615120000-1A2B3C4D.
func (s *Service) orderNumber() string {
	return "ORD-" + s.now().Format("20060102150405") + "-" + s.token()
}

// CreateOrder validates the request, debits stock, applies voucher and
// referral codes, and persists the order, all in a single transaction. Any
// failure rolls the whole unit back, including stock debits and counter
// increments.
func (s *Service) CreateOrder(ctx context.Context, act actor.Actor, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	var o *Order
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		o, err = s.createOnce(ctx, act, req)
		if errors.Is(err, ErrDuplicateOrderNumber) {
			continue
		}
		break
	}
	return o, err
}

func (s *Service) createOnce(ctx context.Context, act actor.Actor, req CreateOrderRequest) (*Order, error) {
	var o *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()

		items := make([]Item, 0, len(req.Items))
		subtotal := decimal.Zero
		for _, line := range req.Items {
			p, err := s.products.GetByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return &ProductNotFoundError{ProductID: line.ProductID}
				}
				return errors.Wrap(err, "get product")
			}

			if _, err := s.products.DebitStock(ctx, p.ID, line.Quantity); err != nil {
				return errors.Wrap(err, "debit stock")
			}

			lineSubtotal, err := pricing.LineSubtotal(p.Price, line.Quantity)
			if err != nil {
				return err
			}

			items = append(items, Item{
				ID:          uuid.New().String(),
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				Price:       p.Price,
				Subtotal:    lineSubtotal,
			})
			subtotal = subtotal.Add(lineSubtotal)
		}

		discount := decimal.Zero
		freeShipping := false
		if req.VoucherCode != "" {
			v, err := s.vouchers.FindByCode(ctx, req.VoucherCode)
			if err != nil {
				return errors.Wrap(err, "find voucher")
			}
			discount, err = voucher.Validate(v, subtotal, now)
			if err != nil {
				return errors.Wrap(err, "validate voucher")
			}
			freeShipping = v.FreeShipping()
		}

		afterDiscount := subtotal.Sub(discount)
		shipping := pricing.Shipping(afterDiscount, freeShipping)
		tax := pricing.Tax(afterDiscount)
		total := afterDiscount.Add(shipping).Add(tax).Round(2)

		o = &Order{
			ID:              uuid.New().String(),
			OrderNumber:     s.orderNumber(),
			CustomerID:      act.ID,
			Status:          StatusPending,
			Items:           items,
			Subtotal:        subtotal.Round(2),
			Discount:        discount.Round(2),
			Shipping:        shipping,
			Tax:             tax,
			Total:           total,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			PaymentStatus:   PaymentStatusPending,
			VoucherCode:     req.VoucherCode,
			ReferralCode:    req.ReferralCode,
			Notes:           req.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if req.VoucherCode != "" {
			if err := s.vouchers.IncrementUsage(ctx, req.VoucherCode); err != nil {
				return errors.Wrap(err, "increment voucher usage")
			}
		}

		// An unknown or inactive referral code never blocks checkout.
		if req.ReferralCode != "" {
			if err := s.referrals.RecordUse(ctx, req.ReferralCode); err != nil && !errors.Is(err, referral.ErrNotFound) {
				return errors.Wrap(err, "record referral use")
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder fetches an order if the actor is allowed to see it: admins see
// everything, customers see their own orders, and sellers see orders that
// contain at least one of their products.
func (s *Service) GetOrder(ctx context.Context, act actor.Actor, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, act, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) authorizeView(ctx context.Context, act actor.Actor, o *Order) error {
	switch act.Role {
	case actor.RoleAdmin:
		return nil
	case actor.RoleCustomer:
		if o.CustomerID == act.ID {
			return nil
		}
	case actor.RoleSeller:
		ok, err := s.orders.ContainsSellerProduct(ctx, o.ID, act.ID)
		if err != nil {
			return errors.Wrap(err, "check seller products")
		}
		if ok {
			return nil
		}
	}
	return &UnauthorizedError{Op: "view"}
}

// ListOrders returns the page of orders visible to the actor, scoped by role.
func (s *Service) ListOrders(ctx context.Context, act actor.Actor, p PageRequest) (*Page, error) {
	p = normalizePage(p)

	var (
		orders []Order
		total  int
		err    error
	)
	switch act.Role {
	case actor.RoleAdmin:
		orders, total, err = s.orders.ListAll(ctx, p)
	case actor.RoleSeller:
		orders, total, err = s.orders.ListBySeller(ctx, act.ID, p)
	default:
		orders, total, err = s.orders.ListByCustomer(ctx, act.ID, p)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	return &Page{
		Orders: orders,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}, nil
}

func normalizePage(p PageRequest) PageRequest {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// UpdateStatus moves an order to the next lifecycle state. Only admins and
// sellers with a product in the order may call it. The order row stays locked
// for the duration of the transaction so concurrent transitions serialize.
//
// Transitioning to CANCELLED restores stock, marks the payment refunded, and
// records reason (or a generic one naming the actor's role when empty);
// transitioning to DELIVERED marks the payment paid.
func (s *Service) UpdateStatus(ctx context.Context, act actor.Actor, id string, next Status, reason string) (*Order, error) {
	if !next.Valid() {
		return nil, ErrUnknownStatus
	}
	if act.Role == actor.RoleCustomer {
		return nil, &UnauthorizedError{Op: "update"}
	}

	var o *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if act.Role == actor.RoleSeller {
			ok, err := s.orders.ContainsSellerProduct(ctx, o.ID, act.ID)
			if err != nil {
				return errors.Wrap(err, "check seller products")
			}
			if !ok {
				return &UnauthorizedError{Op: "update"}
			}
		}

		if !o.Status.CanTransition(next) {
			return &InvalidStateTransitionError{From: o.Status, To: next}
		}

		now := s.now()
		switch next {
		case StatusCancelled:
			if err := s.restoreStock(ctx, o); err != nil {
				return err
			}
			if reason == "" {
				reason = "Cancelled by " + strings.ToLower(string(act.Role))
			}
			o.PaymentStatus = PaymentStatusRefunded
			o.CancelReason = reason
			o.CancelledAt = &now
		case StatusDelivered:
			o.PaymentStatus = PaymentStatusPaid
		}

		o.Status = next
		o.UpdatedAt = now
		return s.orders.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel cancels an order on behalf of its customer (or an admin). Orders can
// only be cancelled before shipment; cancellation restores the debited stock
// and marks the payment refunded.
func (s *Service) Cancel(ctx context.Context, act actor.Actor, id, reason string) (*Order, error) {
	var o *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if !act.IsAdmin() && o.CustomerID != act.ID {
			return &UnauthorizedError{Op: "cancel"}
		}
		if !o.Status.Cancellable() {
			return &InvalidStateTransitionError{From: o.Status, To: StatusCancelled}
		}

		if err := s.restoreStock(ctx, o); err != nil {
			return err
		}

		now := s.now()
		o.Status = StatusCancelled
		o.PaymentStatus = PaymentStatusRefunded
		o.CancelReason = reason
		o.CancelledAt = &now
		o.UpdatedAt = now
		return s.orders.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) restoreStock(ctx context.Context, o *Order) error {
	for _, item := range o.Items {
		if _, err := s.products.CreditStock(ctx, item.ProductID, item.Quantity); err != nil {
			return errors.Wrap(err, "restore stock")
		}
	}
	return nil
}
