package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benilbaisil/car/internal/domain/order"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items in one transaction and fills in the
// generated order ID. Unit prices are written exactly as passed in; nothing
// here re-reads the catalog.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if len(o.Items) == 0 {
		return order.ErrNoItems
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrRepository, err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		o.UserID, o.Total, o.Status, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("%w: insert order: %w", ErrRepository, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		 VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("%w: prepare items: %w", ErrRepository, err)
	}
	defer stmt.Close()

	for _, item := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.ID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("%w: insert order item: %w", ErrRepository, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrRepository, err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, total, status, created_at, updated_at FROM orders WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.UserID, &o.Total, (*string)(&o.Status), &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query order: %w", ErrRepository, err)
	}

	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, total, status, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query orders: %w", ErrRepository, err)
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, (*string)(&o.Status), &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan order: %w", ErrRepository, err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate orders: %w", ErrRepository, err)
	}

	for _, o := range out {
		items, err := r.itemsFor(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Items = items
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	if !status.Valid() {
		return order.ErrInvalidStatus
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("%w: update order status: %w", ErrRepository, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", ErrRepository, err)
	}
	if rows == 0 {
		return order.ErrNotFound
	}
	return nil
}

// CancelStaleAwaitingPayment cancels awaiting-payment orders older than the
// cutoff that have no successful payment attached.
func (r *OrderRepository) CancelStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND created_at < $3
		   AND NOT EXISTS (
		       SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.status = 'success'
		   )
		 RETURNING id`,
		order.StatusCancelled, order.StatusAwaitingPayment, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: cancel stale orders: %w", ErrRepository, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan cancelled id: %w", ErrRepository, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate cancelled ids: %w", ErrRepository, err)
	}
	return ids, nil
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderID int64) ([]order.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, quantity, unit_price FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query order items: %w", ErrRepository, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("%w: scan order item: %w", ErrRepository, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate order items: %w", ErrRepository, err)
	}
	return items, nil
}
