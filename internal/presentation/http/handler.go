package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	appcart "github.com/benilbaisil/car/internal/application/cart"
	"github.com/benilbaisil/car/internal/application/checkout"
	apporders "github.com/benilbaisil/car/internal/application/orders"
	apppayments "github.com/benilbaisil/car/internal/application/payments"
	appstock "github.com/benilbaisil/car/internal/application/stock"
	dominventory "github.com/benilbaisil/car/internal/domain/inventory"
	domorder "github.com/benilbaisil/car/internal/domain/order"
	dompayment "github.com/benilbaisil/car/internal/domain/payment"
	domproduct "github.com/benilbaisil/car/internal/domain/product"
	"github.com/benilbaisil/car/internal/observability"
	"github.com/benilbaisil/car/internal/observability/logctx"
	"github.com/benilbaisil/car/internal/pkg/currency"
)

const componentHTTPHandler = "http_server"

var (
	errMissingToken   = errors.New("missing bearer token")
	errInvalidToken   = errors.New("invalid bearer token")
	errForbidden      = errors.New("admin role required")
	errMissingSession = errors.New("session could not be determined")
	errBadProductID   = errors.New("invalid product id")
	errBadOrderID     = errors.New("invalid order id")
	errInternal       = errors.New("internal server error")
)

// FlashStore reads the session's pending settlement announcement; the read
// consumes it.
type FlashStore interface {
	TakeFlash(ctx context.Context, sessionID string) (string, error)
}

type Handler struct {
	carts     *appcart.Service
	begin     *checkout.BeginCheckoutUseCase
	settle    *checkout.SettleUseCase
	orders    *apporders.Service
	payments  *apppayments.Service
	stock     *appstock.Service
	flashes   FlashStore
	jwtSecret []byte
	metrics   http.Handler
	log       observability.Logger
	tel       observability.Observability
}

func NewHandler(
	carts *appcart.Service,
	begin *checkout.BeginCheckoutUseCase,
	settle *checkout.SettleUseCase,
	orders *apporders.Service,
	payments *apppayments.Service,
	stock *appstock.Service,
	flashes FlashStore,
	jwtSecret []byte,
	metricsHandler http.Handler,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		carts:     carts,
		begin:     begin,
		settle:    settle,
		orders:    orders,
		payments:  payments,
		stock:     stock,
		flashes:   flashes,
		jwtSecret: jwtSecret,
		metrics:   metricsHandler,
		log:       tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:       tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.log, h.tel))

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.jwtSecret))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.handleCartView)
			r.Post("/items", h.handleCartAdd)
			r.Patch("/items/{productID}", h.handleCartUpdate)
			r.Delete("/items/{productID}", h.handleCartRemove)
		})

		r.Post("/checkout", h.handleBeginCheckout)
		r.Post("/checkout/verify", h.handleSettle)
		r.Get("/session/flash", h.handleTakeFlash)

		r.Get("/orders", h.handleOrderHistory)
		r.Get("/payments", h.handleUserPayments)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/stock/statistics", h.handleStockStatistics)
			r.Get("/stock/low", h.handleLowStock)
			r.Get("/payments", h.handleAdminPayments)
			r.Patch("/orders/{orderID}/status", h.handleOrderStatusUpdate)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type cartLineResponse struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	Subtotal   string `json:"subtotal"`
	StockState string `json:"stock_state"`
}

type cartViewResponse struct {
	Lines        []cartLineResponse `json:"lines"`
	ItemCount    int                `json:"item_count"`
	Total        string             `json:"total"`
	TotalDisplay string             `json:"total_display"`
}

func (h *Handler) handleCartView(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFrom(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, errMissingSession)
		return
	}

	view, err := h.carts.View(r.Context(), sid)
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}

	resp := cartViewResponse{
		Lines:        make([]cartLineResponse, 0, len(view.Lines)),
		ItemCount:    view.ItemCount,
		Total:        view.Total.StringFixed(2),
		TotalDisplay: currency.Format(view.Total),
	}
	for _, line := range view.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Brand:      line.Brand,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice.StringFixed(2),
			Subtotal:   line.Subtotal.StringFixed(2),
			StockState: string(line.StockState),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type cartAddRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFrom(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, errMissingSession)
		return
	}

	var req cartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.carts.Add(r.Context(), sid, req.ProductID, req.Quantity); err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartUpdateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFrom(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, errMissingSession)
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadProductID)
		return
	}

	var req cartUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), sid, productID, req.Quantity); err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFrom(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, errMissingSession)
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadProductID)
		return
	}

	if err := h.carts.Remove(r.Context(), sid, productID); err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type beginCheckoutResponse struct {
	OrderID        int64  `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	KeyID          string `json:"key_id"`
}

func (h *Handler) handleBeginCheckout(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFrom(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, errMissingSession)
		return
	}

	result, err := h.begin.Execute(r.Context(), checkout.BeginCheckoutInput{
		SessionID: sid,
		UserID:    userIDFrom(r.Context()),
	})
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, beginCheckoutResponse{
		OrderID:        result.OrderID,
		GatewayOrderID: result.GatewayOrderID,
		AmountMinor:    result.AmountMinor,
		Currency:       result.Currency,
		Receipt:        result.Receipt,
		KeyID:          result.KeyID,
	})
}

type settleRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

type settleResponse struct {
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	Status    string `json:"status"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.settle.Execute(r.Context(), checkout.SettleInput{
		SessionID:        sessionIDFrom(r),
		UserID:           userIDFrom(r.Context()),
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, settleResponse{
		OrderID:   result.OrderID,
		PaymentID: result.PaymentID,
		Status:    string(result.Status),
	})
}

type flashResponse struct {
	Message string `json:"message"`
}

// handleTakeFlash pops the settlement announcement for the session. An empty
// message means nothing was pending.
func (h *Handler) handleTakeFlash(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFrom(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, errMissingSession)
		return
	}
	if h.flashes == nil {
		writeJSON(w, http.StatusOK, flashResponse{})
		return
	}

	message, err := h.flashes.TakeFlash(r.Context(), sid)
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, flashResponse{Message: message})
}

type orderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID           int64               `json:"id"`
	Total        string              `json:"total"`
	TotalDisplay string              `json:"total_display"`
	Status       string              `json:"status"`
	Items        []orderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
}

func (h *Handler) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.History(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]orderItemResponse, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, orderItemResponse{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice.StringFixed(2),
				Subtotal:  item.Subtotal().StringFixed(2),
			})
		}
		resp = append(resp, orderResponse{
			ID:           o.ID,
			Total:        o.Total.StringFixed(2),
			TotalDisplay: currency.Format(o.Total),
			Status:       string(o.Status),
			Items:        items,
			CreatedAt:    o.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentResponse struct {
	ID               int64     `json:"id"`
	OrderID          int64     `json:"order_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	ErrorReason      string    `json:"error_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func paymentResponses(payments []*dompayment.Payment) []paymentResponse {
	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			ID:               p.ID,
			OrderID:          p.OrderID,
			GatewayOrderID:   p.GatewayOrderID,
			GatewayPaymentID: p.GatewayPaymentID,
			Amount:           p.Amount.StringFixed(2),
			Currency:         p.Currency,
			Status:           string(p.Status),
			ErrorReason:      p.ErrorReason,
			CreatedAt:        p.CreatedAt,
		})
	}
	return resp
}

func (h *Handler) handleUserPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ForUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponses(payments))
}

func (h *Handler) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.payments.List(r.Context(), limit, offset)
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponses(payments))
}

type stockStatisticsResponse struct {
	TotalProducts int `json:"total_products"`
	TotalStock    int `json:"total_stock"`
	OutOfStock    int `json:"out_of_stock"`
	LowStock      int `json:"low_stock"`
	InStock       int `json:"in_stock"`
}

func (h *Handler) handleStockStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stock.Statistics(r.Context())
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockStatisticsResponse{
		TotalProducts: stats.TotalProducts,
		TotalStock:    stats.TotalStock,
		OutOfStock:    stats.OutOfStock,
		LowStock:      stats.LowStock,
		InStock:       stats.InStock,
	})
}

type lowStockResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
	Stock int    `json:"stock"`
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.stock.LowStock(r.Context())
	if err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	resp := make([]lowStockResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, lowStockResponse{ID: p.ID, Name: p.Name, Brand: p.Brand, Stock: p.Stock})
	}
	writeJSON(w, http.StatusOK, resp)
}

type orderStatusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleOrderStatusUpdate(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadOrderID)
		return
	}

	var req orderStatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), orderID, domorder.Status(req.Status)); err != nil {
		h.writeDomainError(r, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps domain failures to statuses. Anything unmapped is a
// persistence or programming fault: the detail goes to the server log only and
// the client sees a generic message.
func (h *Handler) writeDomainError(r *http.Request, w http.ResponseWriter, err error) {
	var gatewayErr *dompayment.GatewayError
	var insufficient *dominventory.InsufficientStockError
	var missingProduct *dominventory.ProductNotFoundError

	switch {
	case errors.As(err, &gatewayErr):
		writeError(w, http.StatusBadGateway, err)
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appcart.ErrOutOfStock),
		errors.Is(err, checkout.ErrPaymentFailed):
		writeError(w, http.StatusConflict, err)
	case errors.As(err, &missingProduct),
		errors.Is(err, domproduct.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dompayment.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, dompayment.ErrSignatureMismatch),
		errors.Is(err, dompayment.ErrInvalidAmount),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrNoItems),
		strings.HasPrefix(err.Error(), "validation:"):
		writeError(w, http.StatusBadRequest, err)
	default:
		logctx.FromOr(r.Context(), h.log).Error("request_failed",
			observability.F("method", r.Method),
			observability.F("path", r.URL.Path),
			observability.F("error", err),
		)
		writeError(w, http.StatusInternalServerError, errInternal)
	}
}
