package payment

import "context"

type Repository interface {
	// Create persists a new payment row and fills in the generated identifier.
	Create(ctx context.Context, payment *Payment) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Payment, error)
	FindByID(ctx context.Context, id int64) (*Payment, error)
	ListByUser(ctx context.Context, userID int64) ([]*Payment, error)
	List(ctx context.Context, limit, offset int) ([]*Payment, error)
	// MarkSucceeded stores the gateway payment reference and signature and
	// moves the row to "success". Terminal rows are left untouched.
	MarkSucceeded(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error
	// MarkFailed moves the row to "failed" with a reason.
	MarkFailed(ctx context.Context, gatewayOrderID, reason string) error
}
