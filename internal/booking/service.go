package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quicktix/quicktix/internal/adapters/crdb"
	"github.com/quicktix/quicktix/internal/adapters/gateway"
	"github.com/quicktix/quicktix/internal/clock"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/quicktix/quicktix/internal/observability"
)

// EventCatalog is the out-of-scope event service; the core reads the schedule
// to reject bookings for ended events.
type EventCatalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*EventInfo, error)
}

type EventInfo struct {
	ID        uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Gateway initiates a payment session with the external provider. A nil-safe
// implementation that returns (nil, nil) disables payment collection.
type Gateway interface {
	InitiatePayment(ctx context.Context, in gateway.PaymentIntent) (*gateway.PaymentSession, error)
}

// Auditor receives append-only trail entries; implementations must be
// best-effort and non-blocking for the booking flow.
type Auditor interface {
	Record(ctx context.Context, action string, bookingID uuid.UUID, data map[string]interface{})
}

// TicketQR issues the opaque verification payload stored on a confirmed
// booking. The core does not interpret its contents.
type TicketQR interface {
	Issue(b *domain.Booking) (qrPayload, verificationURL string)
}

type Service struct {
	repo    *crdb.Repository
	catalog EventCatalog
	gateway Gateway
	audit   Auditor
	qr      TicketQR
	clock   clock.Clock
	logger  observability.Logger
}

func NewService(repo *crdb.Repository, catalog EventCatalog, gw Gateway, audit Auditor, qr TicketQR, clk clock.Clock, logger observability.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		gateway: gw,
		audit:   audit,
		qr:      qr,
		clock:   clk,
		logger:  logger,
	}
}

const (
	txRetries       = 3
	codeRegenerates = 3
)

// withTxRetry reruns fn on serialization failures. Inventory contention under
// SERIALIZABLE isolation shows up as 40001; first committer wins and the
// loser re-reads fresh state.
func (s *Service) withTxRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for i := 0; i < txRetries; i++ {
		err = s.repo.WithTx(ctx, fn)
		if !errors.Is(err, domain.ErrSerializationFailure) {
			return err
		}
	}
	return err
}

type CreateBookingInput struct {
	UserID       uuid.UUID
	EventID      uuid.UUID
	TicketTypeID uuid.UUID
	Quantity     int
	Attendee     domain.Attendee
}

// CreateResult carries the booking plus the transient payment session the
// client UI needs; the payment key is never persisted.
type CreateResult struct {
	Booking    *domain.Booking
	PaymentKey string
}

func (in CreateBookingInput) validate() error {
	if in.UserID == uuid.Nil || in.EventID == uuid.Nil || in.TicketTypeID == uuid.Nil {
		return errors.Mark(errors.New("missing id"), domain.ErrInvalidInput)
	}
	if in.Quantity < 1 {
		return errors.Mark(errors.New("quantity must be >= 1"), domain.ErrInvalidInput)
	}
	if in.Attendee.Name == "" || in.Attendee.Email == "" {
		return errors.Mark(errors.New("attendee name and email required"), domain.ErrInvalidInput)
	}
	return nil
}

// CreateBooking reserves inventory and persists the pending booking in one
// transaction, then initiates the payment session. A gateway failure leaves
// the booking pending with its hold intact; the caller may retry payment and
// the sweeper reclaims abandoned holds.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ev, err := s.catalog.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if now.After(ev.EndDate) {
		return nil, domain.ErrEventEnded
	}

	var b domain.Booking
	for attempt := 0; attempt < codeRegenerates; attempt++ {
		err = s.withTxRetry(ctx, func(tx pgx.Tx) error {
			inv, err := s.repo.GetInventoryForUpdate(ctx, tx, in.TicketTypeID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrTicketNotSellable
			}
			if err != nil {
				return err
			}
			if inv.EventID != in.EventID {
				return domain.ErrTicketNotSellable
			}
			if err := inv.Reserve(in.Quantity, now); err != nil {
				return err
			}

			b = domain.NewBooking(in.UserID, in.EventID, *inv, in.Quantity, in.Attendee, now)

			if err := s.repo.UpdateInventory(ctx, tx, inv); err != nil {
				return err
			}
			if err := s.repo.CreateBooking(ctx, tx, &b); err != nil {
				return err
			}
			return s.insertOutbox(ctx, tx, &b, "booking.created")
		})
		if !errors.Is(err, crdb.ErrUniqueViolation) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientInventory) {
			observability.InventoryConflicts.Inc()
		}
		return nil, err
	}

	observability.BookingsCreated.Inc()
	s.audit.Record(ctx, "booking.created", b.ID, map[string]interface{}{
		"code":     b.Code,
		"quantity": b.Quantity,
		"total":    b.TotalCents,
	})

	session, err := s.gateway.InitiatePayment(ctx, gateway.PaymentIntent{
		AmountCents: b.TotalCents,
		Currency:    b.Currency,
		MerchantRef: b.Code,
		Billing: gateway.BillingData{
			Name:  b.Attendee.Name,
			Email: b.Attendee.Email,
			Phone: b.Attendee.Phone,
		},
	})
	if err != nil {
		// The hold stays; the expiry sweeper is the backstop.
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("payment initiation failed")
		return &CreateResult{Booking: &b}, err
	}
	if session == nil {
		return &CreateResult{Booking: &b}, nil
	}

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		b.PaymentOrderID = session.OrderID
		b.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateBooking(ctx, tx, &b); err != nil {
			return err
		}
		p := domain.NewPaymentRecord(b.ID, session.OrderID, b.TotalCents, b.Currency, b.UpdatedAt)
		return s.repo.CreatePayment(ctx, tx, &p)
	})
	if err != nil {
		return &CreateResult{Booking: &b}, err
	}
	return &CreateResult{Booking: &b, PaymentKey: session.PaymentKey}, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// FindByPaymentOrder resolves the booking a gateway webhook refers to.
func (s *Service) FindByPaymentOrder(ctx context.Context, gatewayOrderID string) (uuid.UUID, error) {
	if gatewayOrderID == "" {
		return uuid.Nil, domain.ErrBookingNotFound
	}
	return s.repo.GetBookingIDByPaymentOrder(ctx, gatewayOrderID)
}

// ConfirmPayment moves the booking to confirmed/completed. Replays are
// no-ops: the booking keeps its original confirmation timestamp and the
// payment record its capture stamp.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, gatewayTxnID string) (*domain.Booking, error) {
	var confirmed *domain.Booking
	var replay bool

	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		replay = false
		b, err := s.repo.GetBookingForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		switch err := b.Confirm(now); {
		case errors.Is(err, domain.ErrAlreadyConfirmed):
			confirmed = b
			replay = true
			return nil
		case err != nil:
			return err
		}

		b.QRPayload, b.VerificationURL = s.qr.Issue(b)
		if err := s.repo.UpdateBooking(ctx, tx, b); err != nil {
			return err
		}
		if err := s.capturePayment(ctx, tx, b, gatewayTxnID, now); err != nil {
			return err
		}
		if err := s.insertOutbox(ctx, tx, b, "booking.confirmed"); err != nil {
			return err
		}
		confirmed = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !replay {
		observability.BookingsConfirmed.Inc()
		s.audit.Record(ctx, "payment.captured", confirmed.ID, map[string]interface{}{
			"gateway_txn_id": gatewayTxnID,
		})
	}
	return confirmed, nil
}

// capturePayment updates the payment record, lazily creating it when the
// first webhook beats the payment-initiation write.
func (s *Service) capturePayment(ctx context.Context, tx pgx.Tx, b *domain.Booking, txnID string, now time.Time) error {
	p, err := s.repo.GetPaymentForBooking(ctx, tx, b.ID)
	if errors.Is(err, domain.ErrNotFound) {
		rec := domain.NewPaymentRecord(b.ID, b.PaymentOrderID, b.TotalCents, b.Currency, now)
		rec.MarkCaptured(txnID, now)
		return s.repo.CreatePayment(ctx, tx, &rec)
	}
	if err != nil {
		return err
	}
	if p.MarkCaptured(txnID, now) {
		return s.repo.UpdatePayment(ctx, tx, p)
	}
	return nil
}

// terminalOutcome applies one of the releasing transitions under a single
// transaction, returning whether anything changed.
func (s *Service) terminalOutcome(ctx context.Context, id uuid.UUID, apply func(b *domain.Booking, now time.Time) (bool, error), paymentMark func(p *domain.PaymentRecord, now time.Time) bool, eventType string) (*domain.Booking, bool, error) {
	var out *domain.Booking
	var changed bool

	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		changed = false
		b, err := s.repo.GetBookingForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		wasPending := b.Status == domain.BookingPending

		release, err := apply(b, now)
		if err != nil {
			return err
		}
		if !wasPending && !release {
			// Repeat delivery of a terminal transition: nothing to do.
			out = b
			return nil
		}
		changed = true

		if release {
			inv, err := s.repo.GetInventoryForUpdate(ctx, tx, b.TicketTypeID)
			if err != nil {
				return err
			}
			inv.Release(b.Quantity, now)
			if err := s.repo.UpdateInventory(ctx, tx, inv); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateBooking(ctx, tx, b); err != nil {
			return err
		}

		p, err := s.repo.GetPaymentForBooking(ctx, tx, b.ID)
		if err == nil {
			if paymentMark(p, now) {
				if err := s.repo.UpdatePayment(ctx, tx, p); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if err := s.insertOutbox(ctx, tx, b, eventType); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

// FailPayment cancels the booking after a failed charge, releasing the hold
// exactly once. Calling it on a completed booking is a guarded no-op so a
// late "failed" webhook can never revert a confirmation.
func (s *Service) FailPayment(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, changed, err := s.terminalOutcome(ctx, id,
		(*domain.Booking).FailPayment,
		(*domain.PaymentRecord).MarkFailed,
		"booking.payment_failed")
	if errors.Is(err, domain.ErrAlreadyConfirmed) {
		s.logger.WithField("booking_id", id).Warn("ignoring failed webhook for confirmed booking")
		return s.repo.GetBooking(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if changed {
		s.audit.Record(ctx, "payment.failed", b.ID, nil)
	}
	return b, nil
}

// Cancel is the user/admin initiated release. Unlike FailPayment it surfaces
// ErrAlreadyConfirmed so the caller gets a 409.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, changed, err := s.terminalOutcome(ctx, id,
		(*domain.Booking).Cancel,
		(*domain.PaymentRecord).MarkFailed,
		"booking.cancelled")
	if err != nil {
		return nil, err
	}
	if changed {
		s.audit.Record(ctx, "booking.cancelled", b.ID, nil)
	}
	return b, nil
}

// Expire is the sweeper-initiated release. Bookings confirmed between the
// sweep query and this call are skipped, not failed.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	b, changed, err := s.terminalOutcome(ctx, id,
		(*domain.Booking).Expire,
		(*domain.PaymentRecord).MarkExpired,
		"booking.expired")
	if errors.Is(err, domain.ErrAlreadyConfirmed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if changed {
		observability.BookingsExpired.Inc()
		s.audit.Record(ctx, "booking.expired", b.ID, nil)
	}
	return changed, nil
}

// Retry resets a failed/cancelled/expired booking to pending. The original
// hold was released when the booking went terminal, so availability is
// re-validated and re-reserved here; if the inventory was resold in the
// meantime the retry fails cleanly.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*CreateResult, error) {
	var b *domain.Booking

	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		var err error
		b, err = s.repo.GetBookingForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !b.Retryable() {
			return domain.ErrRetryNotAllowed
		}
		now := s.clock.Now()

		inv, err := s.repo.GetInventoryForUpdate(ctx, tx, b.TicketTypeID)
		if err != nil {
			return err
		}
		if err := inv.Reserve(b.Quantity, now); err != nil {
			return err
		}
		if err := b.ResetForRetry(now); err != nil {
			return err
		}
		if err := s.repo.UpdateInventory(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.repo.UpdateBooking(ctx, tx, b); err != nil {
			return err
		}

		p, err := s.repo.GetPaymentForBooking(ctx, tx, b.ID)
		if err == nil {
			p.ResetForRetry(now)
			if err := s.repo.UpdatePayment(ctx, tx, p); err != nil {
				return err
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		return s.insertOutbox(ctx, tx, b, "booking.retried")
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "booking.retried", b.ID, map[string]interface{}{
		"retry_count": b.RetryCount,
	})

	session, err := s.gateway.InitiatePayment(ctx, gateway.PaymentIntent{
		AmountCents: b.TotalCents,
		Currency:    b.Currency,
		MerchantRef: b.Code,
		Billing: gateway.BillingData{
			Name:  b.Attendee.Name,
			Email: b.Attendee.Email,
			Phone: b.Attendee.Phone,
		},
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("payment initiation failed on retry")
		return &CreateResult{Booking: b}, err
	}
	if session == nil {
		return &CreateResult{Booking: b}, nil
	}

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		b.PaymentOrderID = session.OrderID
		b.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateBooking(ctx, tx, b); err != nil {
			return err
		}
		p, err := s.repo.GetPaymentForBooking(ctx, tx, b.ID)
		if errors.Is(err, domain.ErrNotFound) {
			rec := domain.NewPaymentRecord(b.ID, session.OrderID, b.TotalCents, b.Currency, b.UpdatedAt)
			return s.repo.CreatePayment(ctx, tx, &rec)
		}
		if err != nil {
			return err
		}
		p.GatewayOrderID = session.OrderID
		p.UpdatedAt = b.UpdatedAt
		return s.repo.UpdatePayment(ctx, tx, p)
	})
	if err != nil {
		return &CreateResult{Booking: b}, err
	}
	return &CreateResult{Booking: b, PaymentKey: session.PaymentKey}, nil
}

// ListExpiredPending exposes the sweeper query.
func (s *Service) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return s.repo.ListExpiredPending(ctx, cutoff, limit)
}

type lifecycleEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	Email     string    `json:"email"`
}

func (s *Service) insertOutbox(ctx context.Context, tx pgx.Tx, b *domain.Booking, eventType string) error {
	payload, err := json.Marshal(lifecycleEvent{
		BookingID: b.ID,
		Code:      b.Code,
		Status:    string(b.Status),
		Email:     b.Attendee.Email,
	})
	if err != nil {
		return err
	}
	return s.repo.InsertOutbox(ctx, tx, crdb.NewBookingOutbox(b.ID, eventType, payload))
}
