package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/benilbaisil/car/internal/domain/payment"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	nextID   int64
	payments map[int64]*domain.Payment
	byGwID   map[string]int64
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		nextID:   1,
		payments: make(map[int64]*domain.Payment),
		byGwID:   make(map[string]int64),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.GatewayOrderID == "" {
		return fmt.Errorf("payment repository: gateway order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = r.nextID
	r.nextID++
	r.payments[p.ID] = p.Clone()
	r.byGwID[p.GatewayOrderID] = p.ID
	return nil
}

func (r *PaymentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byGwID[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.payments[id].Clone(), nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *PaymentRepository) List(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		all = append(all, p.Clone())
	}
	sortByCreatedDesc(all)

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *PaymentRepository) MarkSucceeded(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(gatewayOrderID)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusSuccess {
		return nil
	}
	return p.MarkSucceeded(gatewayPaymentID, signature)
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, gatewayOrderID, reason string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(gatewayOrderID)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusFailed {
		return nil
	}
	return p.MarkFailed(reason)
}

// HasSuccessfulPayment reports whether any payment for the order is in state
// success.
func (r *PaymentRepository) HasSuccessfulPayment(orderID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == domain.StatusSuccess {
			return true
		}
	}
	return false
}

func (r *PaymentRepository) lookup(gatewayOrderID string) (*domain.Payment, error) {
	id, ok := r.byGwID[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.payments[id], nil
}

func sortByCreatedDesc(ps []*domain.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}
