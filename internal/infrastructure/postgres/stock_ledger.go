package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benilbaisil/car/internal/domain/inventory"
	"github.com/benilbaisil/car/internal/domain/product"
)

// StockLedger enforces the never-negative stock invariant. Decrements run as
// a conditional UPDATE inside one transaction, so two concurrent checkouts
// for the same product cannot both pass the stock check.
type StockLedger struct {
	db *sql.DB
}

func NewStockLedger(db *sql.DB) *StockLedger {
	return &StockLedger{db: db}
}

func (l *StockLedger) ReserveAndDecrement(ctx context.Context, lines []inventory.Line) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrRepository, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range lines {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
			line.Quantity, line.ProductID,
		)
		if err != nil {
			return fmt.Errorf("%w: decrement stock: %w", ErrRepository, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: rows affected: %w", ErrRepository, err)
		}
		if rows == 0 {
			// Rolling back on return keeps the whole decrement all-or-nothing.
			var available int
			scanErr := tx.QueryRowContext(ctx,
				`SELECT stock FROM products WHERE id = $1`, line.ProductID,
			).Scan(&available)
			if errors.Is(scanErr, sql.ErrNoRows) {
				return &inventory.ProductNotFoundError{ProductID: line.ProductID}
			}
			if scanErr != nil {
				return fmt.Errorf("%w: read stock: %w", ErrRepository, scanErr)
			}
			return &inventory.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrRepository, err)
	}
	return nil
}

func (l *StockLedger) CurrentStock(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := l.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = $1`, productID,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read stock: %w", ErrRepository, err)
	}
	return stock, nil
}

// Restore adds quantity back without an upper bound check; the caller is
// trusted to restore only what was decremented.
func (l *StockLedger) Restore(ctx context.Context, productID int64, quantity int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1 WHERE id = $2`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("%w: restore stock: %w", ErrRepository, err)
	}
	return nil
}

func (l *StockLedger) Statistics(ctx context.Context) (*inventory.Statistics, error) {
	var stats inventory.Statistics
	err := l.db.QueryRowContext(ctx,
		`SELECT
		    COUNT(*),
		    COALESCE(SUM(stock), 0),
		    COUNT(*) FILTER (WHERE stock = 0),
		    COUNT(*) FILTER (WHERE stock > 0 AND stock <= $1),
		    COUNT(*) FILTER (WHERE stock > $1)
		 FROM products`,
		product.LowStockThreshold,
	).Scan(&stats.TotalProducts, &stats.TotalStock, &stats.OutOfStock, &stats.LowStock, &stats.InStock)
	if err != nil {
		return nil, fmt.Errorf("%w: stock statistics: %w", ErrRepository, err)
	}
	return &stats, nil
}

func (l *StockLedger) LowStock(ctx context.Context) ([]inventory.LowStockProduct, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, name, brand, stock FROM products WHERE stock <= $1 ORDER BY stock ASC`,
		product.LowStockThreshold,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: low stock query: %w", ErrRepository, err)
	}
	defer rows.Close()

	var out []inventory.LowStockProduct
	for rows.Next() {
		var p inventory.LowStockProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Stock); err != nil {
			return nil, fmt.Errorf("%w: scan low stock row: %w", ErrRepository, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate low stock rows: %w", ErrRepository, err)
	}
	return out, nil
}
