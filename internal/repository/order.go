package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarko/marketplace-api/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (
			id, order_number, customer_id, status,
			subtotal, discount, shipping, tax, total,
			ship_full_name, ship_phone, ship_street, ship_city, ship_state, ship_zip_code, ship_country,
			payment_method, payment_status, voucher_code, referral_code, notes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectOrderColumns = `id, order_number, customer_id, status,
			subtotal, discount, shipping, tax, total,
			ship_full_name, ship_phone, ship_street, ship_city, ship_state, ship_zip_code, ship_country,
			payment_method, payment_status, voucher_code, referral_code, notes,
			cancel_reason, cancelled_at, created_at, updated_at`

	getOrderByIDSQL          = `SELECT ` + selectOrderColumns + ` FROM orders WHERE id = $1`
	getOrderByIDForUpdateSQL = getOrderByIDSQL + ` FOR UPDATE`

	getOrderItemsSQL = `SELECT id, order_id, product_id, product_name, quantity, price, subtotal
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, payment_status = $3,
			cancel_reason = $4, cancelled_at = $5, updated_at = $6
		WHERE id = $1`

	listByCustomerSQL = `SELECT ` + selectOrderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	countByCustomerSQL = `SELECT COUNT(*) FROM orders WHERE customer_id = $1`

	sellerOrdersFilter = `EXISTS (SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = orders.id AND p.seller_id = $1)`

	listBySellerSQL = `SELECT ` + selectOrderColumns + ` FROM orders
		WHERE ` + sellerOrdersFilter + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	countBySellerSQL = `SELECT COUNT(*) FROM orders WHERE ` + sellerOrdersFilter

	listAllSQL = `SELECT ` + selectOrderColumns + ` FROM orders
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	countAllSQL = `SELECT COUNT(*) FROM orders`

	containsSellerProductSQL = `SELECT EXISTS (SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = $1 AND p.seller_id = $2)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists an order and its items. A collision on the unique order
// number is reported as order.ErrDuplicateOrderNumber so the caller can retry
// with a fresh number.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	db := q(ctx, r.pool)

	_, err := db.Exec(ctx, createOrderSQL,
		o.ID, o.OrderNumber, o.CustomerID, string(o.Status),
		o.Subtotal, o.Discount, o.Shipping, o.Tax, o.Total,
		o.ShippingAddress.FullName, o.ShippingAddress.Phone, o.ShippingAddress.Street,
		o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.ZipCode, o.ShippingAddress.Country,
		string(o.PaymentMethod), string(o.PaymentStatus), o.VoucherCode, o.ReferralCode, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return order.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err := db.Exec(ctx, createOrderItemSQL,
			item.ID, o.ID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", item.ID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == constraint
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getByID(ctx, id, getOrderByIDSQL)
}

// GetByIDForUpdate returns an order with its items, locking the order row
// until the surrounding transaction ends.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.getByID(ctx, id, getOrderByIDForUpdateSQL)
}

func (r *OrderRepository) getByID(ctx context.Context, id, sql string) (*order.Order, error) {
	rows, err := q(ctx, r.pool).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := r.loadItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus persists the lifecycle fields of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	tag, err := q(ctx, r.pool).Exec(ctx, updateOrderStatusSQL,
		o.ID, string(o.Status), string(o.PaymentStatus),
		o.CancelReason, o.CancelledAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByCustomer returns one page of a customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, p order.PageRequest) ([]order.Order, int, error) {
	return r.list(ctx,
		listByCustomerSQL, []any{customerID, p.Limit, p.Offset},
		countByCustomerSQL, []any{customerID},
	)
}

// ListBySeller returns one page of the orders containing at least one of the
// seller's products, newest first.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string, p order.PageRequest) ([]order.Order, int, error) {
	return r.list(ctx,
		listBySellerSQL, []any{sellerID, p.Limit, p.Offset},
		countBySellerSQL, []any{sellerID},
	)
}

// ListAll returns one page of all orders, newest first.
func (r *OrderRepository) ListAll(ctx context.Context, p order.PageRequest) ([]order.Order, int, error) {
	return r.list(ctx,
		listAllSQL, []any{p.Limit, p.Offset},
		countAllSQL, nil,
	)
}

func (r *OrderRepository) list(ctx context.Context, listSQL string, listArgs []any, countSQL string, countArgs []any) ([]order.Order, int, error) {
	db := q(ctx, r.pool)

	rows, err := db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, 0, err
	}

	var total int
	if err := db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	return orders, total, nil
}

// ContainsSellerProduct reports whether any line of the order references a
// product owned by the given seller.
func (r *OrderRepository) ContainsSellerProduct(ctx context.Context, orderID, sellerID string) (bool, error) {
	var ok bool
	err := q(ctx, r.pool).QueryRow(ctx, containsSellerProductSQL, orderID, sellerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking seller products for order %q: %w", orderID, err)
	}
	return ok, nil
}

// loadItems fetches the items for all given orders in a single query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := q(ctx, r.pool).Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item    order.Item
			orderID string
		)
		err := rows.Scan(&item.ID, &orderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.Price, &item.Subtotal)
		if err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                            order.Order
		status, payMethod, payStatus string
		voucher, referral, notes     *string
		cancelReason                 *string
		phone, state, zip            *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &status,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Tax, &o.Total,
		&o.ShippingAddress.FullName, &phone, &o.ShippingAddress.Street,
		&o.ShippingAddress.City, &state, &zip, &o.ShippingAddress.Country,
		&payMethod, &payStatus, &voucher, &referral, &notes,
		&cancelReason, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(payMethod)
	o.PaymentStatus = order.PaymentStatus(payStatus)
	o.ShippingAddress.Phone = deref(phone)
	o.ShippingAddress.State = deref(state)
	o.ShippingAddress.ZipCode = deref(zip)
	o.VoucherCode = deref(voucher)
	o.ReferralCode = deref(referral)
	o.Notes = deref(notes)
	o.CancelReason = deref(cancelReason)
	return o, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
