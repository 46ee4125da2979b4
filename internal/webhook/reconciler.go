package webhook

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/adapters/gateway"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/quicktix/quicktix/internal/observability"
)

// Verifier is the gateway's signature check.
type Verifier interface {
	VerifyWebhookSignature(p gateway.WebhookPayload, received string) bool
}

// Bookings is the slice of the booking state machine the reconciler drives.
// Idempotency and out-of-order tolerance live behind these calls: replays and
// late failures are absorbed by the booking's state guards, not by
// deduplicating payloads.
type Bookings interface {
	FindByPaymentOrder(ctx context.Context, gatewayOrderID string) (uuid.UUID, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, gatewayTxnID string) (*domain.Booking, error)
	FailPayment(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

// Auditor records rejected webhooks as security events in the audit trail.
type Auditor interface {
	Record(ctx context.Context, action string, bookingID uuid.UUID, data map[string]interface{})
}

type Reconciler struct {
	verifier Verifier
	bookings Bookings
	audit    Auditor
	logger   observability.Logger
}

func NewReconciler(verifier Verifier, bookings Bookings, audit Auditor, logger observability.Logger) *Reconciler {
	return &Reconciler{verifier: verifier, bookings: bookings, audit: audit, logger: logger}
}

// Handle applies one gateway notification. Signature verification is the
// trust boundary and happens before any lookup or mutation.
func (r *Reconciler) Handle(ctx context.Context, payload gateway.WebhookPayload, signature string) error {
	if !r.verifier.VerifyWebhookSignature(payload, signature) {
		observability.WebhooksRejected.WithLabelValues("bad_signature").Inc()
		r.logger.WithField("gateway_order_id", payload.GatewayOrderID()).Warn("webhook signature verification failed")
		r.audit.Record(ctx, "webhook.rejected", uuid.Nil, map[string]interface{}{
			"reason":           "bad_signature",
			"gateway_order_id": payload.GatewayOrderID(),
		})
		return domain.ErrInvalidSignature
	}

	bookingID, err := r.bookings.FindByPaymentOrder(ctx, payload.GatewayOrderID())
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			observability.WebhooksRejected.WithLabelValues("unknown_order").Inc()
			r.logger.WithField("gateway_order_id", payload.GatewayOrderID()).Warn("webhook for unknown order")
			r.audit.Record(ctx, "webhook.rejected", uuid.Nil, map[string]interface{}{
				"reason":           "unknown_order",
				"gateway_order_id": payload.GatewayOrderID(),
			})
		}
		return err
	}

	log := r.logger.WithField("booking_id", bookingID)

	if payload.Pending {
		// Intermediate notification; the terminal webhook follows.
		log.Debug("ignoring pending webhook")
		return nil
	}

	if payload.Success {
		_, err = r.bookings.ConfirmPayment(ctx, bookingID, payload.TransactionID())
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Success arrived after the booking already went terminal;
			// acknowledge so the gateway stops redelivering.
			log.Warn("success webhook for terminal booking, ignored")
			return nil
		}
		return err
	}

	_, err = r.bookings.FailPayment(ctx, bookingID)
	return err
}
