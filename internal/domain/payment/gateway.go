package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IntentRequest asks the gateway to register a provisional payment for an
// order. Amount is in major currency units; the adapter converts to the
// gateway's minor-unit integer representation.
type IntentRequest struct {
	OrderID int64
	UserID  int64
	Amount  decimal.Decimal
}

// Intent is the gateway's acknowledgement of an open payment-collection
// request. KeyID is safe to hand to the client-side widget.
type Intent struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Receipt        string
	KeyID          string
}

// Gateway is the outbound port to the payment processor.
type Gateway interface {
	// CreateIntent opens a remote payment intent. Non-2xx responses and
	// malformed bodies surface as *GatewayError.
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// VerifySignature recomputes the server-side HMAC over
	// "<gatewayOrderID>|<gatewayPaymentID>" and compares it to the
	// client-supplied signature in constant time.
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// IntentOrphanedEvent is emitted when the remote gateway accepted an intent
// but the local payment row could not be persisted. A consumer reconciles by
// voiding the remote order; the intent must never be collected against.
type IntentOrphanedEvent struct {
	OrderID        int64
	UserID         int64
	GatewayOrderID string
	Amount         decimal.Decimal
	OccurredAt     time.Time
}

func (IntentOrphanedEvent) EventName() string { return "payment.intent_orphaned" }
