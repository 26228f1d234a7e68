package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidStatus   = errors.New("order: unknown status")
)

type Status string

const (
	// StatusAwaitingPayment marks an order created at checkout whose payment
	// has not been verified yet.
	StatusAwaitingPayment Status = "awaiting_payment"
	// StatusPaid marks an order with a verified payment, awaiting fulfillment.
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Item captures the quantity and the catalog price at the moment the order
// was created. The unit price is copied, never re-read, so historical orders
// survive later catalog changes.
type Item struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	Status    Status
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds an awaiting-payment order whose total is derived from the items.
func New(userID int64, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		total = total.Add(item.Subtotal())
	}

	now := time.Now().UTC()
	return &Order{
		UserID:    userID,
		Total:     total,
		Status:    StatusAwaitingPayment,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (o *Order) MarkPaid() {
	o.Status = StatusPaid
	o.touch()
}

func (o *Order) MarkCancelled() {
	o.Status = StatusCancelled
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = make([]Item, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}
