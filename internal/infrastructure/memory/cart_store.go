package memory

import (
	"context"
	"sync"

	"github.com/benilbaisil/car/internal/domain/cart"
)

type CartStore struct {
	mu      sync.RWMutex
	carts   map[string]*cart.Snapshot
	pending map[string]int64
	flashes map[string]string
}

func NewCartStore() *CartStore {
	return &CartStore{
		carts:   make(map[string]*cart.Snapshot),
		pending: make(map[string]int64),
		flashes: make(map[string]string),
	}
}

// Get returns an empty snapshot for unknown sessions.
func (s *CartStore) Get(ctx context.Context, sessionID string) (*cart.Snapshot, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.carts[sessionID]
	if !ok {
		return cart.New(), nil
	}
	return snapshot.Clone(), nil
}

func (s *CartStore) Save(ctx context.Context, sessionID string, snapshot *cart.Snapshot) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = snapshot.Clone()
	return nil
}

func (s *CartStore) Clear(ctx context.Context, sessionID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

func (s *CartStore) SetPendingOrder(ctx context.Context, sessionID string, orderID int64) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sessionID] = orderID
	return nil
}

func (s *CartStore) PendingOrder(ctx context.Context, sessionID string) (int64, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[sessionID], nil
}

func (s *CartStore) ClearPendingOrder(ctx context.Context, sessionID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, sessionID)
	return nil
}

func (s *CartStore) SetFlash(ctx context.Context, sessionID, message string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes[sessionID] = message
	return nil
}

func (s *CartStore) TakeFlash(ctx context.Context, sessionID string) (string, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	message := s.flashes[sessionID]
	delete(s.flashes, sessionID)
	return message, nil
}
