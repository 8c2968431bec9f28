// Package order owns the Order entity, its state machine, and the atomic
// order-creation workflow.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyItems = errors.New("items required")

	// ErrDuplicateOrderNumber is surfaced by the repository when an insert
	// collides with an existing order number. CreateOrder retries on it.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// UnauthorizedError indicates the actor lacks the role or ownership required
// for an operation on an order that does exist.
type UnauthorizedError struct {
	Op string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("you don't have permission to %s this order", e.Op)
}

// InvalidStateTransitionError indicates a status change the transition table
// forbids.
type InvalidStateTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// PaymentMethod enumerates the supported checkout payment methods.
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard      PaymentMethod = "DEBIT_CARD"
	PaymentBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentBankTransfer, PaymentCashOnDelivery:
		return true
	}
	return false
}

// PaymentStatus tracks the payment flag on an order. It follows the order
// lifecycle rather than a payment gateway: delivery marks it PAID and
// cancellation marks it REFUNDED.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Address is the shipping address snapshot embedded in an order.
type Address struct {
	FullName string
	Phone    string
	Street   string
	City     string
	State    string
	ZipCode  string
	Country  string
}

// Item is a single order line. Price is the unit price at time of purchase
// and never tracks the live product price; Subtotal = Price * Quantity.
type Item struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Subtotal    decimal.Decimal
}

// Order is a customer order. It is created once and afterwards mutated only
// through status transitions; it is never hard-deleted.
//
// Invariant: Total = Subtotal - Discount + Shipping + Tax, where Subtotal is
// the sum of item subtotals.
type Order struct {
	ID          string
	OrderNumber string
	CustomerID  string
	Status      Status
	Items       []Item

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	ShippingAddress Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus

	VoucherCode  string
	ReferralCode string
	Notes        string

	CancelReason string
	CancelledAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PageRequest bounds a list query.
type PageRequest struct {
	Limit  int
	Offset int
}

// Page is one page of orders plus the total match count.
type Page struct {
	Orders []Order
	Total  int
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders.
//
// Create persists the order and its items as one unit. GetByIDForUpdate locks
// the order row until the surrounding transaction ends so that concurrent
// status transitions serialize. ContainsSellerProduct reports whether any line
// of the order references a product owned by the given seller.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, o *Order) error
	ListByCustomer(ctx context.Context, customerID string, p PageRequest) ([]Order, int, error)
	ListBySeller(ctx context.Context, sellerID string, p PageRequest) ([]Order, int, error)
	ListAll(ctx context.Context, p PageRequest) ([]Order, int, error)
	ContainsSellerProduct(ctx context.Context, orderID, sellerID string) (bool, error)
}

// Transactor runs fn inside a single storage transaction. Repository calls
// made with the context passed to fn join that transaction; if fn returns an
// error the whole unit of work rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
