package checkout

import (
	"errors"
	"fmt"

	domorder "github.com/benilbaisil/car/internal/domain/order"
	dompayment "github.com/benilbaisil/car/internal/domain/payment"
	domproduct "github.com/benilbaisil/car/internal/domain/product"
)

var (
	ErrEmptyCart         = errors.New("checkout: cart is empty")
	ErrOrderNotFound     = domorder.ErrNotFound
	ErrPaymentNotFound   = dompayment.ErrNotFound
	ErrSignatureMismatch = dompayment.ErrSignatureMismatch
	// ErrPaymentFailed rejects settlement against a payment that already
	// failed; the buyer has to start a fresh checkout.
	ErrPaymentFailed = errors.New("checkout: payment already failed, start a new checkout")
	ErrRepository    = errors.New("checkout: repository failure")
)

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domorder.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, dompayment.ErrNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, domproduct.ErrNotFound):
		return domproduct.ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

func newValidation(msg string) error {
	return fmt.Errorf("validation: %w", errors.New(msg))
}
