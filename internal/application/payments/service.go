package payments

import (
	"context"
	"fmt"

	dompayment "github.com/benilbaisil/car/internal/domain/payment"
)

const defaultPageSize = 50

// Service serves payment history reads for users and the admin listing.
type Service struct {
	repo dompayment.Repository
}

func NewService(repo dompayment.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ForUser(ctx context.Context, userID int64) ([]*dompayment.Payment, error) {
	out, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("payments: list for user: %w", err)
	}
	return out, nil
}

func (s *Service) ByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*dompayment.Payment, error) {
	out, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("payments: by gateway order id: %w", err)
	}
	return out, nil
}

// List pages through all payments, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*dompayment.Payment, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	return out, nil
}
