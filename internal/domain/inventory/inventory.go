package inventory

import (
	"context"
	"fmt"
)

// ProductNotFoundError aborts a decrement when a line references a product
// that does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("inventory: product %d not found", e.ProductID)
}

// InsufficientStockError identifies the offending product and the shortfall.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Line is one product/quantity pair to decrement.
type Line struct {
	ProductID int64
	Quantity  int
}

// Statistics aggregates stock levels for the admin dashboard.
type Statistics struct {
	TotalProducts int
	TotalStock    int
	OutOfStock    int
	LowStock      int
	InStock       int
}

// LowStockProduct is a dashboard row for products at or below the low-stock
// threshold.
type LowStockProduct struct {
	ID    int64
	Name  string
	Brand string
	Stock int
}

// Ledger guarantees inventory counts never go negative under concurrent
// demand.
type Ledger interface {
	// ReserveAndDecrement validates and decrements stock for every line in
	// one atomic transaction. If any line fails, no stock changes at all;
	// failures surface as *ProductNotFoundError or *InsufficientStockError.
	ReserveAndDecrement(ctx context.Context, lines []Line) error
	// CurrentStock returns 0 for unknown products.
	CurrentStock(ctx context.Context, productID int64) (int, error)
	// Restore adds quantity back, with no upper bound check; used for
	// cancellation and compensation.
	Restore(ctx context.Context, productID int64, quantity int) error
	Statistics(ctx context.Context) (*Statistics, error)
	LowStock(ctx context.Context) ([]LowStockProduct, error)
}
