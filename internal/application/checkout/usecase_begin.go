package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domorder "github.com/benilbaisil/car/internal/domain/order"
	domoutbox "github.com/benilbaisil/car/internal/domain/outbox"
	dompayment "github.com/benilbaisil/car/internal/domain/payment"
	domproduct "github.com/benilbaisil/car/internal/domain/product"
	"github.com/benilbaisil/car/internal/observability"
	"github.com/benilbaisil/car/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService      = "checkout-service"
	useCaseBeginCheckout = "checkout.begin"
	useCaseSettle        = "checkout.settle"
	spanPrefix           = "UC."
	gatewayPeer          = "razorpay"
	gatewayEndpoint      = "orders.create"
	publishTimeout       = 300 * time.Millisecond

	flashPaymentSuccess = "payment_success"
	flashPaymentError   = "payment_error"
)

// BeginCheckoutUseCase freezes the session cart into an awaiting-payment
// order and opens a gateway payment intent for it.
type BeginCheckoutUseCase struct {
	orders    domorder.Repository
	payments  dompayment.Repository
	products  domproduct.Repository
	gateway   dompayment.Gateway
	session   Session
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	gwCounter    observability.Counter
	gwHistogram  observability.Histogram
}

func NewBeginCheckoutUseCase(
	orders domorder.Repository,
	payments dompayment.Repository,
	products domproduct.Repository,
	gateway dompayment.Gateway,
	session Session,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *BeginCheckoutUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	log := tel.Logger().With(observability.F("service", checkoutService))
	metrics := tel.Metrics()

	return &BeginCheckoutUseCase{
		orders:       orders,
		payments:     payments,
		products:     products,
		gateway:      gateway,
		session:      session,
		publisher:    publisher,
		tel:          tel,
		log:          log,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		gwCounter:    metrics.Counter(observability.MGatewayRequests),
		gwHistogram:  metrics.Histogram(observability.MGatewayRequestDuration),
	}
}

type BeginCheckoutInput struct {
	SessionID string
	UserID    int64
}

// BeginCheckoutResult carries what the client-side payment widget needs.
type BeginCheckoutResult struct {
	OrderID        int64
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Receipt        string
	KeyID          string
}

func (uc *BeginCheckoutUseCase) Execute(ctx context.Context, cmd BeginCheckoutInput) (_ *BeginCheckoutResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseBeginCheckout))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"BeginCheckout",
		attribute.String("use_case", useCaseBeginCheckout),
		attribute.Int64("user.id", cmd.UserID),
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
			observability.L("use_case", useCaseBeginCheckout),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseBeginCheckout),
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

	if cmd.SessionID == "" {
		outcome, statusText = "error", "SESSION_ID_REQUIRED"
		return nil, newValidation("session id is required")
	}
	if cmd.UserID <= 0 {
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return nil, newValidation("user id is required")
	}

	snapshot, err := uc.session.Get(ctx, cmd.SessionID)
	if err != nil {
		outcome, statusText = "error", "SESSION_LOAD_FAILED"
		return nil, wrapRepositoryError(err)
	}
	if !snapshot.HasItems() {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, ErrEmptyCart
	}

	ids := make([]int64, 0, len(snapshot.Items))
	for id := range snapshot.Items {
		ids = append(ids, id)
	}
	catalog, err := uc.products.FindByIDs(ctx, ids)
	if err != nil {
		outcome, statusText = "error", "CATALOG_LOOKUP_FAILED"
		return nil, wrapRepositoryError(err)
	}

	// Prices are frozen onto the order items here. Stock is only checked
	// optimistically; the authoritative decrement happens at settlement.
	items := make([]domorder.Item, 0, len(snapshot.Items))
	for id, qty := range snapshot.Items {
		p, ok := catalog[id]
		if !ok {
			outcome, statusText = "error", "PRODUCT_GONE"
			return nil, fmt.Errorf("checkout: product %d: %w", id, domproduct.ErrNotFound)
		}
		if p.Stock < qty {
			outcome, statusText = "error", "STOCK_SHORT"
			return nil, newValidation(fmt.Sprintf("product %d has only %d in stock", id, p.Stock))
		}
		items = append(items, domorder.Item{ProductID: id, Quantity: qty, UnitPrice: p.Price})
	}

	ord, err := domorder.New(cmd.UserID, items)
	if err != nil {
		outcome, statusText = "error", "ORDER_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("checkout: construct order: %w", err)
	}
	if err := uc.orders.Create(ctx, ord); err != nil {
		outcome, statusText = "error", "ORDER_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}
	span.SetAttributes(attribute.Int64("order.id", ord.ID))

	gwStart := time.Now()
	intent, err := uc.gateway.CreateIntent(ctx, dompayment.IntentRequest{
		OrderID: ord.ID,
		UserID:  cmd.UserID,
		Amount:  ord.Total,
	})
	gwOutcome := "success"
	if err != nil {
		gwOutcome = "error"
	}
	uc.gwCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", gatewayEndpoint),
		observability.L("outcome", gwOutcome),
	)
	uc.gwHistogram.Observe(time.Since(gwStart).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", gatewayEndpoint),
	)
	if err != nil {
		// The order stays awaiting_payment; the user may retry checkout.
		outcome, statusText = "error", "GATEWAY_INTENT_FAILED"
		return nil, err
	}

	pay, err := dompayment.New(cmd.UserID, ord.ID, intent.GatewayOrderID, ord.Total, intent.Currency)
	if err != nil {
		outcome, statusText = "error", "PAYMENT_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("checkout: construct payment: %w", err)
	}
	if err := uc.payments.Create(ctx, pay); err != nil {
		// The remote intent exists but has no local row. Hand it to the
		// reconciler instead of dropping it.
		uc.publishOrphanedIntent(ctx, logger, ord, intent.GatewayOrderID)
		outcome, statusText = "error", "PAYMENT_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	if err := uc.session.SetPendingOrder(ctx, cmd.SessionID, ord.ID); err != nil {
		logger.Warn("pending_order_marker_failed",
			observability.F("order_id", ord.ID),
			observability.F("error", err),
		)
	}

	span.AddEvent("checkout.intent_opened",
		trace.WithAttributes(attribute.String("gateway.order_id", intent.GatewayOrderID)),
	)

	return &BeginCheckoutResult{
		OrderID:        ord.ID,
		GatewayOrderID: intent.GatewayOrderID,
		AmountMinor:    intent.AmountMinor,
		Currency:       intent.Currency,
		Receipt:        intent.Receipt,
		KeyID:          intent.KeyID,
	}, nil
}

func (uc *BeginCheckoutUseCase) publishOrphanedIntent(ctx context.Context, logger observability.Logger, ord *domorder.Order, gatewayOrderID string) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event := dompayment.IntentOrphanedEvent{
		OrderID:        ord.ID,
		UserID:         ord.UserID,
		GatewayOrderID: gatewayOrderID,
		Amount:         ord.Total,
		OccurredAt:     time.Now().UTC(),
	}
	if pubErr := uc.publisher.Publish(pubCtx, event); pubErr != nil && !errors.Is(pubErr, context.Canceled) {
		logger.Error("orphaned_intent_publish_failed",
			observability.F("order_id", ord.ID),
			observability.F("gateway_order_id", gatewayOrderID),
			observability.F("error", pubErr),
		)
	}
}
