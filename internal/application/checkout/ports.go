package checkout

import (
	"context"

	domcart "github.com/benilbaisil/car/internal/domain/cart"
)

// Session is the per-session state the settlement workflow touches: the cart
// snapshot plus the marker for the order currently awaiting payment.
type Session interface {
	Get(ctx context.Context, sessionID string) (*domcart.Snapshot, error)
	Clear(ctx context.Context, sessionID string) error

	// SetPendingOrder marks the order the session is paying for; Settle
	// clears it together with the cart.
	SetPendingOrder(ctx context.Context, sessionID string, orderID int64) error
	PendingOrder(ctx context.Context, sessionID string) (int64, error)
	ClearPendingOrder(ctx context.Context, sessionID string) error

	// SetFlash stores a read-once message announcing the settlement outcome
	// on the session's next page load.
	SetFlash(ctx context.Context, sessionID, message string) error
}
