package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benilbaisil/car/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const (
	ordersEndpoint = "/orders"

	defaultTimeout = 5 * time.Second
)

var minorUnitFactor = decimal.NewFromInt(100)

type Config struct {
	KeyID         string
	KeySecret     string
	BaseURL       string
	Currency      string
	ReceiptPrefix string
	Timeout       time.Duration
	HTTP          *http.Client
}

// Client talks to the Razorpay orders API and verifies payment signatures.
// Remote calls run behind a circuit breaker so a degraded gateway fails fast
// instead of holding checkout requests on the timeout.
type Client struct {
	keyID         string
	keySecret     string
	baseURL       string
	currency      string
	receiptPrefix string
	http          *http.Client
	breaker       *gobreaker.CircuitBreaker[*orderResponse]
	now           func() time.Time
}

func New(cfg Config) *Client {
	hc := cfg.HTTP
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	prefix := cfg.ReceiptPrefix
	if prefix == "" {
		prefix = "ORDER"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Client{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		baseURL:       cfg.BaseURL,
		currency:      currency,
		receiptPrefix: prefix,
		http:          hc,
		breaker: gobreaker.NewCircuitBreaker[*orderResponse](gobreaker.Settings{
			Name:        "razorpay-orders",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		}),
		now: time.Now,
	}
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateIntent registers a payment intent with the gateway. The amount is
// converted to minor units by multiplying by 100 and truncating, which keeps
// the conversion predictable for decimal inputs.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, payment.ErrInvalidAmount
	}

	amountMinor := req.Amount.Mul(minorUnitFactor).IntPart()
	receipt := fmt.Sprintf("%s_%d_%d", c.receiptPrefix, req.OrderID, c.now().Unix())

	body := orderRequest{
		Amount:   amountMinor,
		Currency: c.currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"order_id": fmt.Sprintf("%d", req.OrderID),
			"user_id":  fmt.Sprintf("%d", req.UserID),
		},
	}

	resp, err := c.breaker.Execute(func() (*orderResponse, error) {
		return c.postOrder(ctx, body)
	})
	if err != nil {
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		return nil, &payment.GatewayError{Op: "create order", Err: err}
	}

	return &payment.Intent{
		GatewayOrderID: resp.ID,
		AmountMinor:    amountMinor,
		Currency:       c.currency,
		Receipt:        receipt,
		KeyID:          c.keyID,
	}, nil
}

func (c *Client) postOrder(ctx context.Context, body orderRequest) (*orderResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &payment.GatewayError{Op: "encode order", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ordersEndpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, &payment.GatewayError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &payment.GatewayError{Op: "create order", Err: err}
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &payment.GatewayError{Op: "create order", StatusCode: httpResp.StatusCode}
	}

	var out orderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &payment.GatewayError{Op: "decode order response", Err: err}
	}
	if out.ID == "" {
		return nil, &payment.GatewayError{Op: "decode order response", Err: fmt.Errorf("missing order id")}
	}
	return &out, nil
}

// VerifySignature recomputes HMAC-SHA256 over "<orderID>|<paymentID>" with the
// key secret and compares hex digests in constant time. This is the sole
// authenticity check for client-reported payments.
func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
