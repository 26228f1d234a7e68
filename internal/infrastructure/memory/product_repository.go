package memory

import (
	"context"
	"sync"

	"github.com/benilbaisil/car/internal/domain/product"
)

type ProductRepository struct {
	mu       sync.RWMutex
	products map[int64]*product.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[int64]*product.Product)}
}

// Seed inserts or replaces a product.
func (r *ProductRepository) Seed(p *product.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *p
	r.products[p.ID] = &clone
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]*product.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			clone := *p
			out[id] = &clone
		}
	}
	return out, nil
}
