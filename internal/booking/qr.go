package booking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/quicktix/quicktix/internal/domain"
)

// SignedQR issues HMAC-signed verification tokens for confirmed bookings.
// Venue scanners resolve the URL against the verification service; the core
// stores the token as an opaque payload.
type SignedQR struct {
	secret  []byte
	baseURL string
}

func NewSignedQR(secret, baseURL string) *SignedQR {
	return &SignedQR{secret: []byte(secret), baseURL: baseURL}
}

func (q *SignedQR) Issue(b *domain.Booking) (string, string) {
	msg := fmt.Sprintf("%s:%s:%d", b.ID, b.Code, b.Quantity)
	mac := hmac.New(sha256.New, q.secret)
	mac.Write([]byte(msg))
	token := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return token, fmt.Sprintf("%s/verify/%s?t=%s", q.baseURL, b.Code, token)
}

// NoopQR is the degenerate issuer for deployments without ticket scanning.
type NoopQR struct{}

func (NoopQR) Issue(b *domain.Booking) (string, string) { return "", "" }
