package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dominventory "github.com/benilbaisil/car/internal/domain/inventory"
	domorder "github.com/benilbaisil/car/internal/domain/order"
	domoutbox "github.com/benilbaisil/car/internal/domain/outbox"
	dompayment "github.com/benilbaisil/car/internal/domain/payment"
	domproduct "github.com/benilbaisil/car/internal/domain/product"
	"github.com/benilbaisil/car/internal/infrastructure/memory"
)

const fakeSecret = "fake_gateway_secret"

func signFake(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(fakeSecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int
	failErr error
	calls   int
}

func (g *fakeGateway) CreateIntent(_ context.Context, req dompayment.IntentRequest) (*dompayment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failErr != nil {
		return nil, g.failErr
	}
	g.nextID++
	return &dompayment.Intent{
		GatewayOrderID: "order_fake_" + hex.EncodeToString([]byte{byte(g.nextID)}),
		AmountMinor:    req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:       "INR",
		Receipt:        "ORDER_test",
		KeyID:          "rzp_test",
	}, nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	expected := signFake(gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *capturingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type failingPaymentRepo struct {
	*memory.PaymentRepository
	createErr error
}

func (r *failingPaymentRepo) Create(ctx context.Context, p *dompayment.Payment) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.PaymentRepository.Create(ctx, p)
}

type fixture struct {
	orders    *memory.OrderRepository
	payments  *memory.PaymentRepository
	products  *memory.ProductRepository
	stock     *memory.StockLedger
	session   *memory.CartStore
	gateway   *fakeGateway
	publisher *capturingPublisher
	begin     *BeginCheckoutUseCase
	settle    *SettleUseCase
}

func newFixture() *fixture {
	f := &fixture{
		orders:    memory.NewOrderRepository(),
		payments:  memory.NewPaymentRepository(),
		products:  memory.NewProductRepository(),
		stock:     memory.NewStockLedger(),
		session:   memory.NewCartStore(),
		gateway:   &fakeGateway{},
		publisher: &capturingPublisher{},
	}
	f.orders.AttachPayments(f.payments)
	f.begin = NewBeginCheckoutUseCase(f.orders, f.payments, f.products, f.gateway, f.session, f.publisher, nil)
	f.settle = NewSettleUseCase(f.orders, f.payments, f.stock, f.gateway, f.session, f.publisher, nil)
	return f
}

func (f *fixture) seedProduct(id int64, price float64, stock int) {
	f.products.Seed(&domproduct.Product{
		ID: id, Name: "Skyline GT-R", Brand: "AutoWorld", Scale: "1:64",
		Price: decimal.NewFromFloat(price), Stock: stock,
	})
	f.stock.SetStock(id, stock)
}

func (f *fixture) fillCart(t *testing.T, sessionID string, items map[int64]int) {
	t.Helper()
	snapshot, err := f.session.Get(context.Background(), sessionID)
	require.NoError(t, err)
	for id, qty := range items {
		snapshot.Add(id, qty)
	}
	require.NoError(t, f.session.Save(context.Background(), sessionID, snapshot))
}

func TestHappyPathSettlement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 1499.50, 10)
	f.seedProduct(2, 899.99, 4)
	f.fillCart(t, "s1", map[int64]int{1: 2, 2: 1})

	res, err := f.begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})
	require.NoError(t, err)
	require.NotZero(t, res.OrderID)
	require.NotEmpty(t, res.GatewayOrderID)
	assert.Equal(t, int64(389899), res.AmountMinor)

	ord, err := f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusAwaitingPayment, ord.Status)
	assert.True(t, ord.Total.Equal(decimal.NewFromFloat(3898.99)))

	pay, err := f.payments.FindByGatewayOrderID(ctx, res.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusCreated, pay.Status)

	pending, err := f.session.PendingOrder(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, pending)

	settleRes, err := f.settle.Execute(ctx, SettleInput{
		SessionID:        "s1",
		UserID:           7,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        signFake(res.GatewayOrderID, "pay_123"),
	})
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, settleRes.OrderID)
	assert.Equal(t, domorder.StatusPaid, settleRes.Status)

	ord, err = f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusPaid, ord.Status)

	pay, err = f.payments.FindByGatewayOrderID(ctx, res.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusSuccess, pay.Status)
	assert.Equal(t, "pay_123", pay.GatewayPaymentID)

	stock1, _ := f.stock.CurrentStock(ctx, 1)
	stock2, _ := f.stock.CurrentStock(ctx, 2)
	assert.Equal(t, 8, stock1)
	assert.Equal(t, 3, stock2)

	snapshot, err := f.session.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Items)

	pending, err = f.session.PendingOrder(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, pending)

	flash, err := f.session.TakeFlash(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "payment_success", flash)

	assert.Contains(t, f.publisher.names(), "order.settled")
}

func TestSettle_SignatureMismatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 100, 5)
	f.fillCart(t, "s1", map[int64]int{1: 1})

	res, err := f.begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})
	require.NoError(t, err)

	_, err = f.settle.Execute(ctx, SettleInput{
		SessionID:        "s1",
		UserID:           7,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        "deadbeef",
	})
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	pay, err := f.payments.FindByGatewayOrderID(ctx, res.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusFailed, pay.Status)
	assert.Equal(t, "signature mismatch", pay.ErrorReason)

	// Stock untouched, order still awaiting payment.
	stock, _ := f.stock.CurrentStock(ctx, 1)
	assert.Equal(t, 5, stock)

	ord, err := f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusAwaitingPayment, ord.Status)

	flash, err := f.session.TakeFlash(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "payment_error", flash)
}

func TestSettle_ValidSignatureAfterFailureIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 100, 5)
	f.fillCart(t, "s1", map[int64]int{1: 2})

	res, err := f.begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})
	require.NoError(t, err)

	_, err = f.settle.Execute(ctx, SettleInput{
		SessionID:        "s1",
		UserID:           7,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: "pay_bad",
		Signature:        "deadbeef",
	})
	require.ErrorIs(t, err, ErrSignatureMismatch)

	// A later callback with a valid signature must not settle against the
	// failed payment.
	_, err = f.settle.Execute(ctx, SettleInput{
		SessionID:        "s1",
		UserID:           7,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: "pay_good",
		Signature:        signFake(res.GatewayOrderID, "pay_good"),
	})
	assert.ErrorIs(t, err, ErrPaymentFailed)

	pay, err := f.payments.FindByGatewayOrderID(ctx, res.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusFailed, pay.Status)
	assert.Empty(t, pay.GatewayPaymentID)

	ord, err := f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusAwaitingPayment, ord.Status)

	stock, _ := f.stock.CurrentStock(ctx, 1)
	assert.Equal(t, 5, stock)
}

func TestBeginCheckout_GatewayFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 100, 5)
	f.fillCart(t, "s1", map[int64]int{1: 2})
	f.gateway.failErr = &dompayment.GatewayError{Op: "create order", StatusCode: 503}

	_, err := f.begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})

	var gwErr *dompayment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 503, gwErr.StatusCode)

	// The order exists awaiting payment; no payment row was written and the
	// cart is intact so the user can retry.
	orders, err := f.orders.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domorder.StatusAwaitingPayment, orders[0].Status)

	payments, err := f.payments.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, payments)

	snapshot, err := f.session.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2}, snapshot.Items)
}

func TestBeginCheckout_EmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.begin.Execute(context.Background(), BeginCheckoutInput{SessionID: "s1", UserID: 7})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.gateway.calls)
}

func TestBeginCheckout_OrphanedIntentPublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 100, 5)
	f.fillCart(t, "s1", map[int64]int{1: 1})

	failing := &failingPaymentRepo{
		PaymentRepository: memory.NewPaymentRepository(),
		createErr:         errors.New("connection reset"),
	}
	begin := NewBeginCheckoutUseCase(f.orders, failing, f.products, f.gateway, f.session, f.publisher, nil)

	_, err := begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})
	require.ErrorIs(t, err, ErrRepository)

	assert.Contains(t, f.publisher.names(), "payment.intent_orphaned")
}

func TestSettle_ReplayIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 100, 5)
	f.fillCart(t, "s1", map[int64]int{1: 2})

	res, err := f.begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})
	require.NoError(t, err)

	input := SettleInput{
		SessionID:        "s1",
		UserID:           7,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: "pay_replay",
		Signature:        signFake(res.GatewayOrderID, "pay_replay"),
	}

	_, err = f.settle.Execute(ctx, input)
	require.NoError(t, err)

	replay, err := f.settle.Execute(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, replay.OrderID)
	assert.Equal(t, domorder.StatusPaid, replay.Status)

	// Stock decremented exactly once.
	stock, _ := f.stock.CurrentStock(ctx, 1)
	assert.Equal(t, 3, stock)
}

func TestSettle_StockDepletedAfterPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedProduct(1, 100, 2)
	f.fillCart(t, "s1", map[int64]int{1: 2})

	res, err := f.begin.Execute(ctx, BeginCheckoutInput{SessionID: "s1", UserID: 7})
	require.NoError(t, err)

	// Another settlement drains the stock between intent and callback.
	f.stock.SetStock(1, 1)

	_, err = f.settle.Execute(ctx, SettleInput{
		SessionID:        "s1",
		UserID:           7,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: "pay_late",
		Signature:        signFake(res.GatewayOrderID, "pay_late"),
	})

	var insufficient *dominventory.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(1), insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)

	// The payment stays captured; compensation is event-driven.
	pay, lookupErr := f.payments.FindByGatewayOrderID(ctx, res.GatewayOrderID)
	require.NoError(t, lookupErr)
	assert.Equal(t, dompayment.StatusSuccess, pay.Status)

	ord, lookupErr := f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, lookupErr)
	assert.Equal(t, domorder.StatusAwaitingPayment, ord.Status)

	assert.Contains(t, f.publisher.names(), "order.stock_depleted")
}

func TestReaper_CancelsOnlyStaleOrders(t *testing.T) {
	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	orders.AttachPayments(payments)
	ctx := context.Background()

	stale, err := domorder.New(1, []domorder.Item{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}})
	require.NoError(t, err)
	stale.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	require.NoError(t, orders.Create(ctx, stale))

	fresh, err := domorder.New(1, []domorder.Item{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}})
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, fresh))

	paid, err := domorder.New(1, []domorder.Item{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}})
	require.NoError(t, err)
	paid.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	require.NoError(t, orders.Create(ctx, paid))
	require.NoError(t, orders.UpdateStatus(ctx, paid.ID, domorder.StatusPaid))

	// Stale but with a captured payment awaiting compensation; the reaper must
	// leave it alone.
	depleted, err := domorder.New(1, []domorder.Item{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}})
	require.NoError(t, err)
	depleted.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	require.NoError(t, orders.Create(ctx, depleted))

	capturedPay, err := dompayment.New(1, depleted.ID, "order_captured", decimal.NewFromInt(100), "INR")
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, capturedPay))
	require.NoError(t, payments.MarkSucceeded(ctx, "order_captured", "pay_captured", "sig"))

	reaper := NewReaper(orders, 30*time.Minute, time.Minute, nil)
	reaped := reaper.Sweep(ctx)
	assert.Equal(t, 1, reaped)

	got, err := orders.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, got.Status)

	got, err = orders.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusAwaitingPayment, got.Status)

	got, err = orders.FindByID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusPaid, got.Status)

	got, err = orders.FindByID(ctx, depleted.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusAwaitingPayment, got.Status)
}
