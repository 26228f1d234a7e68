package product

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product: not found")

type Product struct {
	ID        int64
	Name      string
	Brand     string
	Scale     string
	Price     decimal.Decimal
	Stock     int
	ImagePath string
	CreatedAt time.Time
}

// StockState classifies availability for storefront and dashboard display.
type StockState string

const (
	StockStateIn  StockState = "in_stock"
	StockStateLow StockState = "low_stock"
	StockStateOut StockState = "out_of_stock"

	// LowStockThreshold is the stock level at or below which a product is
	// considered low on the admin dashboard.
	LowStockThreshold = 5
)

func (p *Product) Available() bool { return p.Stock > 0 }

func (p *Product) StockState() StockState {
	switch {
	case p.Stock <= 0:
		return StockStateOut
	case p.Stock <= LowStockThreshold:
		return StockStateLow
	default:
		return StockStateIn
	}
}

type Repository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
}
