package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benilbaisil/car/internal/domain/product"
	"github.com/lib/pq"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	query := `SELECT id, name, brand, scale, price, stock, image_path, created_at
	          FROM products WHERE id = $1`

	var p product.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Brand, &p.Scale, &p.Price, &p.Stock, &p.ImagePath, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query product: %w", ErrRepository, err)
	}
	return &p, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]*product.Product, error) {
	if len(ids) == 0 {
		return map[int64]*product.Product{}, nil
	}

	query := `SELECT id, name, brand, scale, price, stock, image_path, created_at
	          FROM products WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: query products: %w", ErrRepository, err)
	}
	defer rows.Close()

	out := make(map[int64]*product.Product, len(ids))
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Scale, &p.Price, &p.Stock, &p.ImagePath, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan product: %w", ErrRepository, err)
		}
		out[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate products: %w", ErrRepository, err)
	}
	return out, nil
}
