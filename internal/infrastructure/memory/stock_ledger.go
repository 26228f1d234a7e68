package memory

import (
	"context"
	"sync"

	"github.com/benilbaisil/car/internal/domain/inventory"
	"github.com/benilbaisil/car/internal/domain/product"
)

// StockLedger mirrors the postgres ledger semantics in memory: a two-pass
// validate-then-apply under one lock keeps multi-line decrements
// all-or-nothing.
type StockLedger struct {
	mu     sync.Mutex
	stocks map[int64]int
	names  map[int64]string
}

func NewStockLedger() *StockLedger {
	return &StockLedger{
		stocks: make(map[int64]int),
		names:  make(map[int64]string),
	}
}

// SetStock seeds or replaces the stock level for a product.
func (l *StockLedger) SetStock(productID int64, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stocks[productID] = stock
}

func (l *StockLedger) ReserveAndDecrement(ctx context.Context, lines []inventory.Line) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	// First pass: validate every line before touching anything.
	for _, line := range lines {
		available, ok := l.stocks[line.ProductID]
		if !ok {
			return &inventory.ProductNotFoundError{ProductID: line.ProductID}
		}
		if available < line.Quantity {
			return &inventory.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	// Second pass: apply.
	for _, line := range lines {
		l.stocks[line.ProductID] -= line.Quantity
	}
	return nil
}

func (l *StockLedger) CurrentStock(ctx context.Context, productID int64) (int, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stocks[productID], nil
}

func (l *StockLedger) Restore(ctx context.Context, productID int64, quantity int) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()
	l.stocks[productID] += quantity
	return nil
}

func (l *StockLedger) Statistics(ctx context.Context) (*inventory.Statistics, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	stats := &inventory.Statistics{TotalProducts: len(l.stocks)}
	for _, stock := range l.stocks {
		stats.TotalStock += stock
		switch {
		case stock == 0:
			stats.OutOfStock++
		case stock <= product.LowStockThreshold:
			stats.LowStock++
		default:
			stats.InStock++
		}
	}
	return stats, nil
}

func (l *StockLedger) LowStock(ctx context.Context) ([]inventory.LowStockProduct, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []inventory.LowStockProduct
	for id, stock := range l.stocks {
		if stock <= product.LowStockThreshold {
			out = append(out, inventory.LowStockProduct{ID: id, Name: l.names[id], Stock: stock})
		}
	}
	return out, nil
}
