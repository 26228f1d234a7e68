package cart

import (
	"context"
	"errors"
	"fmt"

	domcart "github.com/benilbaisil/car/internal/domain/cart"
	domproduct "github.com/benilbaisil/car/internal/domain/product"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = domproduct.ErrNotFound
	ErrOutOfStock      = errors.New("cart: product is out of stock")
)

// Line is a cart entry joined with its current catalog listing. UnitPrice
// here is the live price; it is frozen onto order items only at checkout.
type Line struct {
	ProductID  int64
	Name       string
	Brand      string
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	StockState domproduct.StockState
}

type View struct {
	Lines     []Line
	ItemCount int
	Total     decimal.Decimal
}

// Service mutates session carts and prices them against the catalog. Every
// mutation saves the snapshot back immediately.
type Service struct {
	store    domcart.Store
	products domproduct.Repository
}

func NewService(store domcart.Store, products domproduct.Repository) *Service {
	return &Service{store: store, products: products}
}

// Add puts quantity units of a product into the session cart. The product
// must exist and have stock; quantities below one leave the cart unchanged.
func (s *Service) Add(ctx context.Context, sessionID string, productID int64, quantity int) error {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("cart: add: %w", err)
	}
	if !p.Available() {
		return ErrOutOfStock
	}

	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("cart: load: %w", err)
	}
	snapshot.Add(productID, quantity)
	if err := s.store.Save(ctx, sessionID, snapshot); err != nil {
		return fmt.Errorf("cart: save: %w", err)
	}
	return nil
}

// UpdateQuantity sets the quantity for a product already in the cart. Zero
// or negative quantities remove the entry.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) error {
	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("cart: load: %w", err)
	}
	snapshot.UpdateQuantity(productID, quantity)
	if err := s.store.Save(ctx, sessionID, snapshot); err != nil {
		return fmt.Errorf("cart: save: %w", err)
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, sessionID string, productID int64) error {
	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("cart: load: %w", err)
	}
	snapshot.Remove(productID)
	if err := s.store.Save(ctx, sessionID, snapshot); err != nil {
		return fmt.Errorf("cart: save: %w", err)
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}

// View joins the snapshot with the catalog. Entries whose product vanished
// from the catalog are skipped rather than failing the whole view.
func (s *Service) View(ctx context.Context, sessionID string) (*View, error) {
	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}

	ids := make([]int64, 0, len(snapshot.Items))
	for id := range snapshot.Items {
		ids = append(ids, id)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cart: price: %w", err)
	}

	view := &View{Total: decimal.Zero}
	for id, qty := range snapshot.Items {
		p, ok := products[id]
		if !ok {
			continue
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		view.Lines = append(view.Lines, Line{
			ProductID:  id,
			Name:       p.Name,
			Brand:      p.Brand,
			Quantity:   qty,
			UnitPrice:  p.Price,
			Subtotal:   subtotal,
			StockState: p.StockState(),
		})
		view.ItemCount += qty
		view.Total = view.Total.Add(subtotal)
	}
	return view, nil
}
