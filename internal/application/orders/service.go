package orders

import (
	"context"
	"fmt"

	domorder "github.com/benilbaisil/car/internal/domain/order"
)

// Service serves order history reads and the admin status transition.
type Service struct {
	repo domorder.Repository
}

func NewService(repo domorder.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) History(ctx context.Context, userID int64) ([]*domorder.Order, error) {
	out, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("orders: history: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domorder.Order, error) {
	out, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("orders: get: %w", err)
	}
	return out, nil
}

// UpdateStatus applies an admin transition. Statuses outside the enumeration
// are rejected by the repository with order.ErrInvalidStatus.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domorder.Status) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("orders: update status: %w", err)
	}
	return nil
}
