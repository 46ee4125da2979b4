package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentState string

const (
	PaymentStatePending           PaymentState = "pending"
	PaymentStateProcessing        PaymentState = "processing"
	PaymentStateAuthorized        PaymentState = "authorized"
	PaymentStateCaptured          PaymentState = "captured"
	PaymentStateFailed            PaymentState = "failed"
	PaymentStateCancelled         PaymentState = "cancelled"
	PaymentStateExpired           PaymentState = "expired"
	PaymentStateRefunded          PaymentState = "refunded"
	PaymentStatePartiallyRefunded PaymentState = "partially_refunded"
)

// PaymentRecord is the 1:1 payment attempt row for a booking. Terminal
// timestamps are stamped exactly once, on the first transition into that
// state; the Mark methods report whether they changed anything.
type PaymentRecord struct {
	ID                uuid.UUID
	BookingID         uuid.UUID
	GatewayOrderID    string
	GatewayTxnID      string
	AmountCents       int64
	Currency          string
	State             PaymentState
	RefundAmountCents int64
	RefundReason      string
	WebhookVerified   bool
	CapturedAt        *time.Time
	FailedAt          *time.Time
	ExpiredAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewPaymentRecord(bookingID uuid.UUID, gatewayOrderID string, amountCents int64, currency string, now time.Time) PaymentRecord {
	return PaymentRecord{
		ID:             uuid.New(),
		BookingID:      bookingID,
		GatewayOrderID: gatewayOrderID,
		AmountCents:    amountCents,
		Currency:       currency,
		State:          PaymentStatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (p *PaymentRecord) MarkCaptured(txnID string, now time.Time) bool {
	if p.CapturedAt != nil {
		return false
	}
	p.State = PaymentStateCaptured
	p.GatewayTxnID = txnID
	p.WebhookVerified = true
	p.CapturedAt = &now
	p.UpdatedAt = now
	return true
}

func (p *PaymentRecord) MarkFailed(now time.Time) bool {
	if p.FailedAt != nil || p.CapturedAt != nil {
		return false
	}
	p.State = PaymentStateFailed
	p.WebhookVerified = true
	p.FailedAt = &now
	p.UpdatedAt = now
	return true
}

func (p *PaymentRecord) MarkExpired(now time.Time) bool {
	if p.ExpiredAt != nil || p.CapturedAt != nil {
		return false
	}
	p.State = PaymentStateExpired
	p.ExpiredAt = &now
	p.UpdatedAt = now
	return true
}

// ResetForRetry rearms the record for a fresh payment attempt.
func (p *PaymentRecord) ResetForRetry(now time.Time) {
	p.State = PaymentStatePending
	p.GatewayTxnID = ""
	p.WebhookVerified = false
	p.FailedAt = nil
	p.ExpiredAt = nil
	p.UpdatedAt = now
}
