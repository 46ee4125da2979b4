package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

// WebhookPayload is the provider's payment-status notification body. The
// signature arrives separately as a query parameter or header.
type WebhookPayload struct {
	Order struct {
		ID int64 `json:"id"`
	} `json:"order"`
	ID          int64  `json:"id"`
	Success     bool   `json:"success"`
	Pending     bool   `json:"pending"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"created_at"`
}

// GatewayOrderID is the string form under which the booking stored the order.
func (p WebhookPayload) GatewayOrderID() string {
	return formatOrderID(p.Order.ID)
}

// TransactionID is the provider's id for this payment attempt.
func (p WebhookPayload) TransactionID() string {
	return strconv.FormatInt(p.ID, 10)
}

func formatOrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// signatureBase is the fixed concatenation the provider signs, fields in
// alphabetical order: amount_cents, created_at, currency, order id, success,
// transaction id.
func signatureBase(p WebhookPayload) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(p.AmountCents, 10))
	b.WriteString(p.CreatedAt)
	b.WriteString(p.Currency)
	b.WriteString(strconv.FormatInt(p.Order.ID, 10))
	b.WriteString(strconv.FormatBool(p.Success))
	b.WriteString(strconv.FormatInt(p.ID, 10))
	return b.String()
}

// Sign computes the hex HMAC-SHA512 of the payload with the given secret.
// Exposed for the test harness that plays the role of the provider.
func Sign(p WebhookPayload, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(signatureBase(p)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature recomputes the HMAC and compares in constant time.
// This is the trust boundary: callers must reject the webhook before any
// state mutation when this returns false.
func (c *Client) VerifyWebhookSignature(p WebhookPayload, received string) bool {
	return verify(p, c.cfg.HMACSecret, received)
}

func verify(p WebhookPayload, secret, received string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(received))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(signatureBase(p)))
	return hmac.Equal(got, mac.Sum(nil))
}
