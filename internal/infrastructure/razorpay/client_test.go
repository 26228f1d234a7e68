package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benilbaisil/car/internal/domain/payment"
)

const testSecret = "test_key_secret"

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestClient(baseURL string) *Client {
	c := New(Config{
		KeyID:         "rzp_test_key",
		KeySecret:     testSecret,
		BaseURL:       baseURL,
		Currency:      "INR",
		ReceiptPrefix: "ORDER",
		Timeout:       2 * time.Second,
	})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestVerifySignature(t *testing.T) {
	c := newTestClient("http://unused")
	valid := sign(testSecret, "order_abc", "pay_xyz")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "order_abc", "pay_xyz", valid, true},
		{"wrong order id", "order_abd", "pay_xyz", valid, false},
		{"wrong payment id", "order_abc", "pay_xyy", valid, false},
		{"wrong secret", "order_abc", "pay_xyz", sign("other_secret", "order_abc", "pay_xyz"), false},
		{"empty signature", "order_abc", "pay_xyz", "", false},
		{"empty order id", "", "pay_xyz", valid, false},
		{"empty payment id", "order_abc", "", valid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestVerifySignature_SingleCharacterMutations(t *testing.T) {
	c := newTestClient("http://unused")
	valid := sign(testSecret, "order_abc", "pay_xyz")

	for i := 0; i < len(valid); i++ {
		mutated := []byte(valid)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		assert.False(t, c.VerifySignature("order_abc", "pay_xyz", string(mutated)),
			"mutation at position %d accepted", i)
	}
}

func TestCreateIntent_HappyPath(t *testing.T) {
	var gotPath, gotAuthUser string
	var gotBody orderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthUser, _, _ = r.BasicAuth()
		assert.NoError(t, jsonDecode(r, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_remote123","amount":154999,"currency":"INR","status":"created"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	intent, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 42,
		UserID:  7,
		Amount:  decimal.NewFromFloat(1549.99),
	})
	require.NoError(t, err)

	assert.Equal(t, "/orders", gotPath)
	assert.Equal(t, "rzp_test_key", gotAuthUser)
	assert.Equal(t, int64(154999), gotBody.Amount)
	assert.Equal(t, "INR", gotBody.Currency)
	assert.Equal(t, "ORDER_42_1700000000", gotBody.Receipt)

	assert.Equal(t, "order_remote123", intent.GatewayOrderID)
	assert.Equal(t, int64(154999), intent.AmountMinor)
	assert.Equal(t, "ORDER_42_1700000000", intent.Receipt)
	assert.Equal(t, "rzp_test_key", intent.KeyID)
}

func TestCreateIntent_MinorUnitTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body orderRequest
		assert.NoError(t, jsonDecode(r, &body))
		// 99.999 * 100 = 9999.9 truncates to 9999, never rounds up.
		assert.Equal(t, int64(9999), body.Amount)
		_, _ = w.Write([]byte(`{"id":"order_x"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	intent, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromFloat(99.999),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9999), intent.AmountMinor)
}

func TestCreateIntent_RejectsNonPositiveAmount(t *testing.T) {
	c := newTestClient("http://unused")

	_, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)
}

func TestCreateIntent_Non2xxResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"description":"bad auth"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromInt(100),
	})

	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
}

func TestCreateIntent_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromInt(100),
	})

	var gwErr *payment.GatewayError
	assert.True(t, errors.As(err, &gwErr))
}

func TestCreateIntent_MissingOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount":100,"currency":"INR"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromInt(100),
	})

	var gwErr *payment.GatewayError
	assert.True(t, errors.As(err, &gwErr))
}

func TestCreateIntent_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"order_late"}`))
	}))
	defer srv.Close()

	c := New(Config{
		KeyID:     "rzp_test_key",
		KeySecret: testSecret,
		BaseURL:   srv.URL,
		HTTP:      &http.Client{Timeout: 50 * time.Millisecond},
	})
	_, err := c.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromInt(100),
	})

	var gwErr *payment.GatewayError
	assert.True(t, errors.As(err, &gwErr))
}

func jsonDecode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
