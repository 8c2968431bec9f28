package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarko/marketplace-api/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, seller_id, name, category, brand, price, stock, created_at, updated_at
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, seller_id, name, category, brand, price, stock, created_at, updated_at
		FROM products WHERE id = $1`

	// The stock guard in the WHERE clause makes the debit atomic: a
	// concurrent debit either sees enough stock or matches no row.
	debitStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2 RETURNING stock`

	creditStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 RETURNING stock`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := q(ctx, r.pool).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := q(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// DebitStock decrements the stock of a product and returns the remaining
// amount. When the product has less stock than requested the update matches
// no row and an *product.InsufficientStockError is returned instead.
func (r *ProductRepository) DebitStock(ctx context.Context, id string, quantity int) (int, error) {
	var remaining int
	err := q(ctx, r.pool).QueryRow(ctx, debitStockSQL, id, quantity).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("debiting stock for product %q: %w", id, err)
	}

	// No row matched: either the product is unknown or the stock ran out.
	var available int
	err = q(ctx, r.pool).QueryRow(ctx, getStockSQL, id).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting stock for product %q: %w", id, err)
	}
	return 0, &product.InsufficientStockError{ProductID: id, Requested: quantity, Available: available}
}

// CreditStock increments the stock of a product and returns the new amount.
func (r *ProductRepository) CreditStock(ctx context.Context, id string, quantity int) (int, error) {
	var stock int
	err := q(ctx, r.pool).QueryRow(ctx, creditStockSQL, id, quantity).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("crediting stock for product %q: %w", id, err)
	}
	return stock, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Category, &p.Brand,
		&p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
