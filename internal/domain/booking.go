package domain

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
	BookingRefunded  BookingStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentExpired    PaymentStatus = "expired"
)

type Attendee struct {
	Name  string
	Email string
	Phone string
}

// Booking tracks one reservation of N units of a ticket type through payment.
// Quantity is frozen at creation. InventoryReleased guards the
// release-exactly-once rule for every terminal transition.
type Booking struct {
	ID                uuid.UUID
	Code              string
	UserID            uuid.UUID
	EventID           uuid.UUID
	TicketTypeID      uuid.UUID
	Quantity          int
	TotalCents        int64
	Currency          string
	Status            BookingStatus
	PaymentStatus     PaymentStatus
	Attendee          Attendee
	PaymentOrderID    string
	QRPayload         string
	VerificationURL   string
	InventoryReleased bool
	RetryCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
	ExpiredAt         *time.Time
}

func NewBooking(userID, eventID uuid.UUID, inv TicketInventory, qty int, attendee Attendee, now time.Time) Booking {
	return Booking{
		ID:            uuid.New(),
		Code:          NewBookingCode(now),
		UserID:        userID,
		EventID:       eventID,
		TicketTypeID:  inv.ID,
		Quantity:      qty,
		TotalCents:    inv.PriceCents * int64(qty),
		Currency:      inv.Currency,
		Status:        BookingPending,
		PaymentStatus: PaymentPending,
		Attendee:      attendee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewBookingCode builds a human-readable code of the form BK-123456-0042.
// Uniqueness is ultimately enforced by the database index; callers regenerate
// on collision.
func NewBookingCode(now time.Time) string {
	var b [2]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint16(b[:]) % 10000
	return fmt.Sprintf("BK-%06d-%04d", now.Unix()%1000000, n)
}

// Confirm moves a pending booking to confirmed/completed. Returns
// ErrAlreadyConfirmed when the booking is already confirmed; callers treat
// that as a no-op so replayed webhooks are safe.
func (b *Booking) Confirm(now time.Time) error {
	if b.Status == BookingConfirmed && b.PaymentStatus == PaymentCompleted {
		return ErrAlreadyConfirmed
	}
	if b.Status != BookingPending {
		return ErrInvalidTransition
	}
	b.Status = BookingConfirmed
	b.PaymentStatus = PaymentCompleted
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// terminate applies a releasing transition. It reports whether the held
// inventory must be returned now; a repeated terminal call observes the
// InventoryReleased flag and releases nothing.
func (b *Booking) terminate(status BookingStatus, pay PaymentStatus, now time.Time) (release bool, err error) {
	if b.PaymentStatus == PaymentCompleted {
		return false, ErrAlreadyConfirmed
	}
	alreadyTerminal := b.Status != BookingPending
	if !alreadyTerminal {
		b.Status = status
		b.PaymentStatus = pay
		switch status {
		case BookingCancelled:
			b.CancelledAt = &now
		case BookingExpired:
			b.ExpiredAt = &now
		}
		b.UpdatedAt = now
	}
	if !b.InventoryReleased {
		b.InventoryReleased = true
		b.UpdatedAt = now
		return true, nil
	}
	return false, nil
}

// FailPayment cancels the booking after a failed charge and flags the
// inventory for release.
func (b *Booking) FailPayment(now time.Time) (release bool, err error) {
	return b.terminate(BookingCancelled, PaymentFailed, now)
}

// Cancel is the user/admin initiated variant of the same transition.
func (b *Booking) Cancel(now time.Time) (release bool, err error) {
	return b.terminate(BookingCancelled, PaymentFailed, now)
}

// Expire is the sweeper-initiated variant. A booking confirmed between the
// sweep query and this call hits the PaymentCompleted guard and is skipped.
func (b *Booking) Expire(now time.Time) (release bool, err error) {
	return b.terminate(BookingExpired, PaymentExpired, now)
}

// Retryable reports whether the booking may be reset to pending. Confirmed
// and still-pending bookings are not retryable.
func (b *Booking) Retryable() bool {
	if b.PaymentStatus == PaymentCompleted {
		return false
	}
	switch b.Status {
	case BookingCancelled, BookingExpired:
		return true
	case BookingPending:
		return b.PaymentStatus == PaymentFailed
	default:
		return false
	}
}

// ResetForRetry returns the booking to pending. The caller must have
// re-reserved inventory in the same transaction; the original hold was
// released when the booking went terminal.
func (b *Booking) ResetForRetry(now time.Time) error {
	if !b.Retryable() {
		return ErrRetryNotAllowed
	}
	b.Status = BookingPending
	b.PaymentStatus = PaymentPending
	b.InventoryReleased = false
	b.RetryCount++
	b.UpdatedAt = now
	return nil
}
