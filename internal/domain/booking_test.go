package domain_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testInventory() domain.TicketInventory {
	return domain.TicketInventory{
		ID:           uuid.New(),
		EventID:      uuid.New(),
		Name:         "standard",
		PriceCents:   2500,
		Currency:     "USD",
		Total:        100,
		Available:    100,
		SaleStartsAt: t0.Add(-time.Hour),
		SaleEndsAt:   t0.Add(24 * time.Hour),
		Status:       domain.InventoryActive,
	}
}

func pendingBooking() domain.Booking {
	inv := testInventory()
	return domain.NewBooking(uuid.New(), inv.EventID, inv, 2, domain.Attendee{Name: "A", Email: "a@b.c"}, t0)
}

func TestNewBookingCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^BK-\d{6}-\d{4}$`)
	for i := 0; i < 50; i++ {
		code := domain.NewBookingCode(t0)
		if !re.MatchString(code) {
			t.Fatalf("bad booking code %q", code)
		}
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	b := pendingBooking()
	if err := b.Confirm(t0.Add(time.Minute)); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	first := *b.ConfirmedAt

	err := b.Confirm(t0.Add(2 * time.Minute))
	if !errors.Is(err, domain.ErrAlreadyConfirmed) {
		t.Fatalf("second confirm: want ErrAlreadyConfirmed, got %v", err)
	}
	if !b.ConfirmedAt.Equal(first) {
		t.Errorf("ConfirmedAt moved on replay: %v -> %v", first, *b.ConfirmedAt)
	}
	if b.Status != domain.BookingConfirmed || b.PaymentStatus != domain.PaymentCompleted {
		t.Errorf("unexpected state %s/%s", b.Status, b.PaymentStatus)
	}
}

func TestConfirmAfterExpiryIsRejected(t *testing.T) {
	b := pendingBooking()
	if _, err := b.Expire(t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := b.Confirm(t0.Add(2 * time.Hour)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestReleaseExactlyOnce(t *testing.T) {
	b := pendingBooking()

	release, err := b.Cancel(t0)
	if err != nil || !release {
		t.Fatalf("first cancel: release=%v err=%v", release, err)
	}

	// Every further terminal call must be a no-release no-op.
	release, err = b.Cancel(t0.Add(time.Minute))
	if err != nil || release {
		t.Fatalf("second cancel: release=%v err=%v", release, err)
	}
	release, err = b.FailPayment(t0.Add(time.Minute))
	if err != nil || release {
		t.Fatalf("fail after cancel: release=%v err=%v", release, err)
	}
	release, err = b.Expire(t0.Add(time.Minute))
	if err != nil || release {
		t.Fatalf("expire after cancel: release=%v err=%v", release, err)
	}
	if b.Status != domain.BookingCancelled {
		t.Errorf("terminal status changed to %s", b.Status)
	}
}

func TestFailedWebhookCannotRevertConfirmed(t *testing.T) {
	b := pendingBooking()
	if err := b.Confirm(t0); err != nil {
		t.Fatal(err)
	}
	release, err := b.FailPayment(t0.Add(time.Minute))
	if !errors.Is(err, domain.ErrAlreadyConfirmed) || release {
		t.Fatalf("want ErrAlreadyConfirmed without release, got release=%v err=%v", release, err)
	}
	if b.Status != domain.BookingConfirmed || b.PaymentStatus != domain.PaymentCompleted {
		t.Errorf("confirmed booking reverted to %s/%s", b.Status, b.PaymentStatus)
	}
}

func TestExpireSkipsConfirmed(t *testing.T) {
	b := pendingBooking()
	if err := b.Confirm(t0); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Expire(t0.Add(time.Hour)); !errors.Is(err, domain.ErrAlreadyConfirmed) {
		t.Fatalf("want ErrAlreadyConfirmed, got %v", err)
	}
}

func TestRetryGuards(t *testing.T) {
	b := pendingBooking()
	if b.Retryable() {
		t.Error("fresh pending booking must not be retryable")
	}
	if err := b.ResetForRetry(t0); !errors.Is(err, domain.ErrRetryNotAllowed) {
		t.Fatalf("want ErrRetryNotAllowed, got %v", err)
	}

	if _, err := b.Expire(t0); err != nil {
		t.Fatal(err)
	}
	if !b.Retryable() {
		t.Fatal("expired booking must be retryable")
	}
	if err := b.ResetForRetry(t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingPending || b.PaymentStatus != domain.PaymentPending {
		t.Errorf("retry left state %s/%s", b.Status, b.PaymentStatus)
	}
	if b.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", b.RetryCount)
	}
	if b.InventoryReleased {
		t.Error("retry must rearm the release flag")
	}

	if err := b.Confirm(t0.Add(2 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	if b.Retryable() {
		t.Error("confirmed booking must not be retryable")
	}
}

func TestQuantityAndTotalFrozenAtCreation(t *testing.T) {
	inv := testInventory()
	b := domain.NewBooking(uuid.New(), inv.EventID, inv, 3, domain.Attendee{}, t0)
	if b.Quantity != 3 {
		t.Fatalf("quantity = %d", b.Quantity)
	}
	if b.TotalCents != 7500 {
		t.Fatalf("total = %d, want 7500", b.TotalCents)
	}
	if b.Currency != "USD" {
		t.Fatalf("currency = %s", b.Currency)
	}
}
