// Package product defines the catalog entity and the stock ledger contract.
// The order core's only write access to a product is its stock field.
package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError indicates a debit request exceeded the available stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Product is a catalog entry. Price and stock are the fields the order core
// reads; stock is the only field it writes.
type Product struct {
	ID        string
	SellerID  string
	Name      string
	Category  string
	Brand     string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides catalog reads and the stock ledger.
//
// DebitStock atomically decrements the available stock and returns the updated
// value, or an *InsufficientStockError when the request exceeds availability.
// CreditStock increments unconditionally (cancellation compensation). Both are
// single-row atomic operations; all-or-nothing semantics across the lines of
// one order belong to the surrounding transaction, not to the ledger.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	DebitStock(ctx context.Context, id string, quantity int) (int, error)
	CreditStock(ctx context.Context, id string, quantity int) (int, error)
}
