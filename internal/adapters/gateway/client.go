package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/quicktix/quicktix/internal/observability"
)

type Config struct {
	BaseURL    string
	APIKey     string
	HMACSecret string
	Timeout    time.Duration
}

// Client talks to the external payment provider. Tokens are short-lived and
// fetched per payment initiation; nothing here is cached across calls.
type Client struct {
	cfg    Config
	http   *http.Client
	logger observability.Logger
}

func NewClient(cfg Config, logger observability.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type Token string

type OrderRef struct {
	ID          int64
	MerchantRef string
}

type BillingData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PaymentIntent is the input to InitiatePayment.
type PaymentIntent struct {
	AmountCents int64
	Currency    string
	MerchantRef string
	Billing     BillingData
}

// PaymentSession is what the client UI needs to take the payment.
type PaymentSession struct {
	OrderID    string
	PaymentKey string
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errors.Newf("gateway returned %d: %s", resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// Authenticate exchanges the API key for a short-lived token. Callers must
// not cache it beyond a single payment initiation.
func (c *Client) Authenticate(ctx context.Context) (Token, error) {
	var out struct {
		Token string `json:"token"`
	}
	if _, err := c.post(ctx, "/api/auth/tokens", map[string]string{"api_key": c.cfg.APIKey}, &out); err != nil {
		return "", errors.Mark(err, domain.ErrGatewayAuth)
	}
	if out.Token == "" {
		return "", domain.ErrGatewayAuth
	}
	return Token(out.Token), nil
}

// CreateOrder registers the remote order object prior to charging.
func (c *Client) CreateOrder(ctx context.Context, token Token, amountCents int64, currency, merchantRef string) (OrderRef, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	body := map[string]interface{}{
		"auth_token":        string(token),
		"amount_cents":      amountCents,
		"currency":          currency,
		"merchant_order_id": merchantRef,
	}
	if _, err := c.post(ctx, "/api/ecommerce/orders", body, &out); err != nil {
		return OrderRef{}, errors.Mark(err, domain.ErrGatewayOrder)
	}
	return OrderRef{ID: out.ID, MerchantRef: merchantRef}, nil
}

// CreatePaymentKey obtains the client-usable key the payment UI consumes.
func (c *Client) CreatePaymentKey(ctx context.Context, token Token, order OrderRef, amountCents int64, currency string, billing BillingData) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]interface{}{
		"auth_token":   string(token),
		"order_id":     order.ID,
		"amount_cents": amountCents,
		"currency":     currency,
		"billing_data": billing,
	}
	if _, err := c.post(ctx, "/api/acceptance/payment_keys", body, &out); err != nil {
		return "", errors.Mark(err, domain.ErrGatewayOrder)
	}
	return out.Token, nil
}

// InitiatePayment runs the authenticate -> create order -> payment key
// sequence the provider requires for every payment attempt.
func (c *Client) InitiatePayment(ctx context.Context, in PaymentIntent) (*PaymentSession, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	order, err := c.CreateOrder(ctx, token, in.AmountCents, in.Currency, in.MerchantRef)
	if err != nil {
		return nil, err
	}
	key, err := c.CreatePaymentKey(ctx, token, order, in.AmountCents, in.Currency, in.Billing)
	if err != nil {
		return nil, err
	}
	return &PaymentSession{
		OrderID:    formatOrderID(order.ID),
		PaymentKey: key,
	}, nil
}

// Disabled is the no-gateway configuration: bookings are created without a
// payment session and confirmed out of band. Used by tests and free events.
type Disabled struct{}

func (Disabled) InitiatePayment(ctx context.Context, in PaymentIntent) (*PaymentSession, error) {
	return nil, nil
}
