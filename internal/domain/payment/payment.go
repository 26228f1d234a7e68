package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("payment: not found")
	ErrInvalidAmount     = errors.New("payment: amount must be greater than zero")
	ErrSignatureMismatch = errors.New("payment: signature mismatch")
	ErrTerminal          = errors.New("payment: already in a terminal state")
)

// GatewayError reports a failed call to the remote payment gateway. The user
// may retry; no local payment row exists for a failed intent.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway: %s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type Status string

const (
	StatusCreated Status = "created"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status permits no further transition.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailed }

// Payment tracks one gateway intent for one order. It is created in state
// "created" when the intent is opened and moves exactly once to "success" or
// "failed".
type Payment struct {
	ID               int64
	UserID           int64
	OrderID          int64
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	Amount           decimal.Decimal
	Currency         string
	Status           Status
	ErrorReason      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func New(userID, orderID int64, gatewayOrderID string, amount decimal.Decimal, currency string) (*Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Payment{
		UserID:         userID,
		OrderID:        orderID,
		GatewayOrderID: gatewayOrderID,
		Amount:         amount,
		Currency:       currency,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (p *Payment) MarkSucceeded(gatewayPaymentID, signature string) error {
	if p.Status.Terminal() {
		return ErrTerminal
	}
	p.GatewayPaymentID = gatewayPaymentID
	p.GatewaySignature = signature
	p.Status = StatusSuccess
	p.ErrorReason = ""
	p.touch()
	return nil
}

func (p *Payment) MarkFailed(reason string) error {
	if p.Status.Terminal() {
		return ErrTerminal
	}
	p.Status = StatusFailed
	p.ErrorReason = reason
	p.touch()
	return nil
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
