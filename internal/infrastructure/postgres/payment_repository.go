package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benilbaisil/car/internal/domain/payment"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, order_id, gateway_order_id,
	COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
	amount, currency, status, COALESCE(error_reason, ''), created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO payments (user_id, order_id, gateway_order_id, amount, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.UserID, p.OrderID, p.GatewayOrderID, p.Amount, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("%w: insert payment: %w", ErrRepository, err)
	}
	return nil
}

func (r *PaymentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	return r.findOne(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1 LIMIT 1`,
		gatewayOrderID)
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*payment.Payment, error) {
	return r.findOne(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 LIMIT 1`,
		id)
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64) ([]*payment.Payment, error) {
	return r.list(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (r *PaymentRepository) List(ctx context.Context, limit, offset int) ([]*payment.Payment, error) {
	return r.list(ctx,
		`SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
}

// MarkSucceeded stores the gateway references and flips the row to success.
// The status guard keeps terminal rows terminal: a row already successful is
// a no-op replay, a row already failed surfaces ErrTerminal.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments
		 SET gateway_payment_id = $1, gateway_signature = $2, status = $3, error_reason = NULL, updated_at = NOW()
		 WHERE gateway_order_id = $4 AND status NOT IN ($5, $6)`,
		gatewayPaymentID, signature, payment.StatusSuccess, gatewayOrderID,
		payment.StatusSuccess, payment.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("%w: mark payment succeeded: %w", ErrRepository, err)
	}
	return r.checkUpdated(ctx, res, gatewayOrderID, payment.StatusSuccess)
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, gatewayOrderID, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments
		 SET status = $1, error_reason = $2, updated_at = NOW()
		 WHERE gateway_order_id = $3 AND status NOT IN ($4, $5)`,
		payment.StatusFailed, reason, gatewayOrderID,
		payment.StatusSuccess, payment.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("%w: mark payment failed: %w", ErrRepository, err)
	}
	return r.checkUpdated(ctx, res, gatewayOrderID, payment.StatusFailed)
}

// checkUpdated resolves a zero-row update: the row is either missing
// (ErrNotFound), already in the wanted terminal state (replay, no-op), or in
// the opposite terminal state (ErrTerminal).
func (r *PaymentRepository) checkUpdated(ctx context.Context, res sql.Result, gatewayOrderID string, want payment.Status) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", ErrRepository, err)
	}
	if rows > 0 {
		return nil
	}
	p, err := r.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	if p.Status != want {
		return payment.ErrTerminal
	}
	return nil
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...any) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.GatewayOrderID,
		&p.GatewayPaymentID, &p.GatewaySignature,
		&p.Amount, &p.Currency, (*string)(&p.Status), &p.ErrorReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query payment: %w", ErrRepository, err)
	}
	return &p, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]*payment.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query payments: %w", ErrRepository, err)
	}
	defer rows.Close()

	var out []*payment.Payment
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.OrderID, &p.GatewayOrderID,
			&p.GatewayPaymentID, &p.GatewaySignature,
			&p.Amount, &p.Currency, (*string)(&p.Status), &p.ErrorReason,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan payment: %w", ErrRepository, err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate payments: %w", ErrRepository, err)
	}
	return out, nil
}
