package checkout

import (
	"context"
	"errors"
	"time"

	dominventory "github.com/benilbaisil/car/internal/domain/inventory"
	domorder "github.com/benilbaisil/car/internal/domain/order"
	domoutbox "github.com/benilbaisil/car/internal/domain/outbox"
	dompayment "github.com/benilbaisil/car/internal/domain/payment"
	"github.com/benilbaisil/car/internal/observability"
	"github.com/benilbaisil/car/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SettleUseCase verifies a gateway payment callback and, on success, commits
// the settlement: payment terminal, stock decremented, order paid, session
// cleared, settlement event published.
type SettleUseCase struct {
	orders    domorder.Repository
	payments  dompayment.Repository
	stock     dominventory.Ledger
	gateway   dompayment.Gateway
	session   Session
	publisher domoutbox.Publisher
	tel       observability.Observability

	log             observability.Logger
	reqCounter      observability.Counter
	durHistogram    observability.Histogram
	conflictCounter observability.Counter
}

func NewSettleUseCase(
	orders domorder.Repository,
	payments dompayment.Repository,
	stock dominventory.Ledger,
	gateway dompayment.Gateway,
	session Session,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *SettleUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	log := tel.Logger().With(observability.F("service", checkoutService))
	metrics := tel.Metrics()

	return &SettleUseCase{
		orders:          orders,
		payments:        payments,
		stock:           stock,
		gateway:         gateway,
		session:         session,
		publisher:       publisher,
		tel:             tel,
		log:             log,
		reqCounter:      metrics.Counter(observability.MUsecaseRequests),
		durHistogram:    metrics.Histogram(observability.MUsecaseDuration),
		conflictCounter: metrics.Counter(observability.MStockDecrementConflicts),
	}
}

type SettleInput struct {
	SessionID        string
	UserID           int64
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type SettleResult struct {
	OrderID   int64
	PaymentID int64
	Status    domorder.Status
}

func (uc *SettleUseCase) Execute(ctx context.Context, cmd SettleInput) (_ *SettleResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseSettle))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"Settle",
		attribute.String("use_case", useCaseSettle),
		attribute.String("gateway.order_id", cmd.GatewayOrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseSettle),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseSettle),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.GatewayOrderID == "" || cmd.GatewayPaymentID == "" || cmd.Signature == "" {
		outcome, statusText = "error", "CALLBACK_FIELDS_REQUIRED"
		return nil, newValidation("gateway order id, payment id and signature are required")
	}

	pay, err := uc.payments.FindByGatewayOrderID(ctx, cmd.GatewayOrderID)
	if err != nil {
		outcome, statusText = "error", "PAYMENT_LOOKUP_FAILED"
		return nil, wrapRepositoryError(err)
	}

	// Re-settling an already successful payment is a no-op success.
	if pay.Status == dompayment.StatusSuccess {
		statusText = "ALREADY_SETTLED"
		span.AddEvent("settle.replay",
			trace.WithAttributes(attribute.Int64("payment.id", pay.ID)),
		)
		return &SettleResult{OrderID: pay.OrderID, PaymentID: pay.ID, Status: domorder.StatusPaid}, nil
	}

	// A failed payment is terminal either way: a late valid signature must
	// not settle against it, or stock would move with no success row behind it.
	if pay.Status == dompayment.StatusFailed {
		outcome, statusText = "error", "PAYMENT_ALREADY_FAILED"
		return nil, ErrPaymentFailed
	}

	if !uc.gateway.VerifySignature(cmd.GatewayOrderID, cmd.GatewayPaymentID, cmd.Signature) {
		if markErr := uc.payments.MarkFailed(ctx, cmd.GatewayOrderID, "signature mismatch"); markErr != nil {
			logger.Error("payment_mark_failed_error",
				observability.F("gateway_order_id", cmd.GatewayOrderID),
				observability.F("error", markErr),
			)
		}
		uc.flash(ctx, logger, cmd.SessionID, flashPaymentError)
		outcome, statusText = "error", "SIGNATURE_MISMATCH"
		return nil, ErrSignatureMismatch
	}

	if err := uc.payments.MarkSucceeded(ctx, cmd.GatewayOrderID, cmd.GatewayPaymentID, cmd.Signature); err != nil {
		// The row can flip to failed between the lookup above and the update.
		if errors.Is(err, dompayment.ErrTerminal) {
			outcome, statusText = "error", "PAYMENT_ALREADY_FAILED"
			return nil, ErrPaymentFailed
		}
		outcome, statusText = "error", "PAYMENT_MARK_SUCCESS_FAILED"
		return nil, wrapRepositoryError(err)
	}

	ord, err := uc.orders.FindByID(ctx, pay.OrderID)
	if err != nil {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return nil, wrapRepositoryError(err)
	}

	lines := make([]dominventory.Line, 0, len(ord.Items))
	for _, item := range ord.Items {
		lines = append(lines, dominventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	// The payment is captured at this point. A stock shortfall here cannot
	// be rolled back into the gateway, so it surfaces as a distinct failure
	// and a compensation event.
	if err := uc.stock.ReserveAndDecrement(ctx, lines); err != nil {
		var insufficient *dominventory.InsufficientStockError
		if errors.As(err, &insufficient) {
			uc.conflictCounter.Add(1,
				observability.L("use_case", useCaseSettle),
				observability.L("outcome", "insufficient_stock"),
			)
			uc.publish(ctx, logger, domorder.StockDepletedEvent{
				OrderID:    ord.ID,
				ProductID:  insufficient.ProductID,
				Requested:  insufficient.Requested,
				Available:  insufficient.Available,
				OccurredAt: time.Now().UTC(),
			})
			outcome, statusText = "error", "STOCK_DEPLETED"
			return nil, err
		}
		outcome, statusText = "error", "STOCK_DECREMENT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	if err := uc.orders.UpdateStatus(ctx, ord.ID, domorder.StatusPaid); err != nil {
		outcome, statusText = "error", "ORDER_MARK_PAID_FAILED"
		return nil, wrapRepositoryError(err)
	}

	if cmd.SessionID != "" {
		if clearErr := uc.session.Clear(ctx, cmd.SessionID); clearErr != nil {
			logger.Warn("cart_clear_failed",
				observability.F("order_id", ord.ID),
				observability.F("error", clearErr),
			)
		}
		if clearErr := uc.session.ClearPendingOrder(ctx, cmd.SessionID); clearErr != nil {
			logger.Warn("pending_order_clear_failed",
				observability.F("order_id", ord.ID),
				observability.F("error", clearErr),
			)
		}
	}
	uc.flash(ctx, logger, cmd.SessionID, flashPaymentSuccess)

	uc.publish(ctx, logger, domorder.NewSettledEvent(ord, cmd.GatewayPaymentID))

	span.AddEvent("order.settled",
		trace.WithAttributes(attribute.Int64("order.id", ord.ID)),
	)

	return &SettleResult{OrderID: ord.ID, PaymentID: pay.ID, Status: domorder.StatusPaid}, nil
}

// flash is best effort; a lost announcement never fails the settlement.
func (uc *SettleUseCase) flash(ctx context.Context, logger observability.Logger, sessionID, message string) {
	if sessionID == "" {
		return
	}
	if err := uc.session.SetFlash(ctx, sessionID, message); err != nil {
		logger.Warn("flash_set_failed",
			observability.F("message", message),
			observability.F("error", err),
		)
	}
}

func (uc *SettleUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err),
		)
	}
}
