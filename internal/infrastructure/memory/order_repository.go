package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/benilbaisil/car/internal/domain/order"
)

type OrderRepository struct {
	mu       sync.RWMutex
	nextID   int64
	orders   map[int64]*domain.Order
	payments *PaymentRepository
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		nextID: 1,
		orders: make(map[int64]*domain.Order),
	}
}

// AttachPayments lets CancelStaleAwaitingPayment skip orders that already
// have a successful payment, matching the postgres query.
func (r *OrderRepository) AttachPayments(payments *PaymentRepository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = payments
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil {
		return fmt.Errorf("order repository: order is required")
	}
	if len(order.Items) == 0 {
		return domain.ErrNoItems
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = r.nextID
	r.nextID++
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order.Clone())
		}
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	_ = ctx
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *OrderRepository) CancelStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]int64, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for id, order := range r.orders {
		if order.Status != domain.StatusAwaitingPayment || !order.CreatedAt.Before(cutoff) {
			continue
		}
		if r.payments != nil && r.payments.HasSuccessfulPayment(id) {
			continue
		}
		order.Status = domain.StatusCancelled
		order.UpdatedAt = time.Now().UTC()
		ids = append(ids, id)
	}
	return ids, nil
}
