package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettledEvent is emitted once a payment has been verified and stock has been
// decremented for the order.
type SettledEvent struct {
	OrderID          int64
	UserID           int64
	GatewayPaymentID string
	Amount           decimal.Decimal
	OccurredAt       time.Time
}

func (SettledEvent) EventName() string { return "order.settled" }

func NewSettledEvent(o *Order, gatewayPaymentID string) SettledEvent {
	return SettledEvent{
		OrderID:          o.ID,
		UserID:           o.UserID,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           o.Total,
		OccurredAt:       time.Now().UTC(),
	}
}

// StockDepletedEvent is emitted when a verified payment could not be honored
// because stock sold out between intent creation and settlement. Consumers
// are expected to trigger a compensating refund or cancellation.
type StockDepletedEvent struct {
	OrderID    int64
	ProductID  int64
	Requested  int
	Available  int
	OccurredAt time.Time
}

func (StockDepletedEvent) EventName() string { return "order.stock_depleted" }
