package webhook

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/adapters/gateway"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/quicktix/quicktix/internal/observability"
)

type fakeVerifier struct {
	ok bool
}

func (f fakeVerifier) VerifyWebhookSignature(p gateway.WebhookPayload, received string) bool {
	return f.ok
}

type fakeBookings struct {
	id        uuid.UUID
	lookupErr error

	confirms    int
	confirmErr  error
	fails       int
	lastTxnID   string
	lastOrderID string
}

func (f *fakeBookings) FindByPaymentOrder(ctx context.Context, gatewayOrderID string) (uuid.UUID, error) {
	f.lastOrderID = gatewayOrderID
	if f.lookupErr != nil {
		return uuid.Nil, f.lookupErr
	}
	return f.id, nil
}

func (f *fakeBookings) ConfirmPayment(ctx context.Context, id uuid.UUID, gatewayTxnID string) (*domain.Booking, error) {
	f.confirms++
	f.lastTxnID = gatewayTxnID
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &domain.Booking{ID: id}, nil
}

func (f *fakeBookings) FailPayment(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.fails++
	return &domain.Booking{ID: id}, nil
}

type fakeAuditor struct {
	actions []string
}

func (f *fakeAuditor) Record(ctx context.Context, action string, bookingID uuid.UUID, data map[string]interface{}) {
	f.actions = append(f.actions, action)
}

func successPayload() gateway.WebhookPayload {
	p := gateway.WebhookPayload{
		ID:          991,
		Success:     true,
		AmountCents: 5000,
		Currency:    "USD",
		CreatedAt:   "2026-08-31T10:00:00Z",
	}
	p.Order.ID = 12345
	return p
}

func TestHandleRejectsBadSignatureBeforeLookup(t *testing.T) {
	bookings := &fakeBookings{id: uuid.New()}
	audit := &fakeAuditor{}
	r := NewReconciler(fakeVerifier{ok: false}, bookings, audit, observability.NewLogger())

	err := r.Handle(context.Background(), successPayload(), "deadbeef")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(audit.actions) != 1 || audit.actions[0] != "webhook.rejected" {
		t.Fatalf("audit actions = %v, want one webhook.rejected", audit.actions)
	}
	if bookings.lastOrderID != "" {
		t.Fatal("lookup must not happen for an unverified payload")
	}
	if bookings.confirms != 0 || bookings.fails != 0 {
		t.Fatal("no state change allowed for an unverified payload")
	}
}

func TestHandleUnknownOrder(t *testing.T) {
	bookings := &fakeBookings{lookupErr: domain.ErrBookingNotFound}
	r := NewReconciler(fakeVerifier{ok: true}, bookings, &fakeAuditor{}, observability.NewLogger())

	err := r.Handle(context.Background(), successPayload(), "sig")
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
	if bookings.confirms != 0 || bookings.fails != 0 {
		t.Fatal("unknown order must not mutate anything")
	}
}

func TestHandleSuccessConfirms(t *testing.T) {
	bookings := &fakeBookings{id: uuid.New()}
	r := NewReconciler(fakeVerifier{ok: true}, bookings, &fakeAuditor{}, observability.NewLogger())

	if err := r.Handle(context.Background(), successPayload(), "sig"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if bookings.confirms != 1 {
		t.Fatalf("confirms = %d, want 1", bookings.confirms)
	}
	if bookings.lastTxnID != "991" {
		t.Fatalf("txn id = %q, want 991", bookings.lastTxnID)
	}
	if bookings.lastOrderID != "12345" {
		t.Fatalf("order id = %q, want 12345", bookings.lastOrderID)
	}
}

func TestHandleReplayedSuccessIsIdempotent(t *testing.T) {
	bookings := &fakeBookings{id: uuid.New()}
	r := NewReconciler(fakeVerifier{ok: true}, bookings, &fakeAuditor{}, observability.NewLogger())

	for i := 0; i < 3; i++ {
		if err := r.Handle(context.Background(), successPayload(), "sig"); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}
	// ConfirmPayment absorbs replays internally; the reconciler just keeps
	// returning success so the gateway stops redelivering.
	if bookings.confirms != 3 {
		t.Fatalf("confirms = %d, want 3", bookings.confirms)
	}
}

func TestHandleFailureAfterTerminalIsAcknowledged(t *testing.T) {
	bookings := &fakeBookings{id: uuid.New(), confirmErr: domain.ErrInvalidTransition}
	r := NewReconciler(fakeVerifier{ok: true}, bookings, &fakeAuditor{}, observability.NewLogger())

	// A success webhook for a booking that already went terminal is logged
	// and acknowledged, not retried forever by the gateway.
	if err := r.Handle(context.Background(), successPayload(), "sig"); err != nil {
		t.Fatalf("expected nil for terminal booking, got %v", err)
	}
}

func TestHandlePendingIsIgnored(t *testing.T) {
	bookings := &fakeBookings{id: uuid.New()}
	r := NewReconciler(fakeVerifier{ok: true}, bookings, &fakeAuditor{}, observability.NewLogger())

	p := successPayload()
	p.Success = false
	p.Pending = true
	if err := r.Handle(context.Background(), p, "sig"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if bookings.confirms != 0 || bookings.fails != 0 {
		t.Fatal("pending webhook must not mutate anything")
	}
}

func TestHandleFailureFailsPayment(t *testing.T) {
	bookings := &fakeBookings{id: uuid.New()}
	r := NewReconciler(fakeVerifier{ok: true}, bookings, &fakeAuditor{}, observability.NewLogger())

	p := successPayload()
	p.Success = false
	if err := r.Handle(context.Background(), p, "sig"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if bookings.fails != 1 {
		t.Fatalf("fails = %d, want 1", bookings.fails)
	}
	if bookings.confirms != 0 {
		t.Fatal("failure webhook must not confirm")
	}
}
