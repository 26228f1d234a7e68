package stock

import (
	"context"
	"fmt"

	dominventory "github.com/benilbaisil/car/internal/domain/inventory"
)

// Service serves the admin stock dashboard reads.
type Service struct {
	ledger dominventory.Ledger
}

func NewService(ledger dominventory.Ledger) *Service {
	return &Service{ledger: ledger}
}

func (s *Service) Statistics(ctx context.Context) (*dominventory.Statistics, error) {
	out, err := s.ledger.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: statistics: %w", err)
	}
	return out, nil
}

func (s *Service) LowStock(ctx context.Context) ([]dominventory.LowStockProduct, error) {
	out, err := s.ledger.LowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: low stock: %w", err)
	}
	return out, nil
}
