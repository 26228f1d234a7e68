package order

import (
	"context"
	"time"
)

type Repository interface {
	// Create persists the order and its items atomically and fills in the
	// generated identifier on the passed order.
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	// UpdateStatus rejects statuses outside the enumeration with
	// ErrInvalidStatus; connectivity failures propagate wrapped.
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// CancelStaleAwaitingPayment cancels awaiting-payment orders created
	// before the cutoff and returns the identifiers it touched.
	CancelStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]int64, error)
}
