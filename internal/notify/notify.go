package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quicktix/quicktix/internal/adapters/rabbit"
	"github.com/quicktix/quicktix/internal/observability"
)

// EmailSender dispatches a single message. Fire-and-forget: the worker never
// retries a failed send.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender is the default sink when no mail provider is configured.
type LogSender struct {
	Logger observability.Logger
}

func (s LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.Logger.WithField("to", to).WithField("subject", subject).Info("email dispatched")
	return nil
}

type bookingEvent struct {
	BookingID string `json:"booking_id"`
	Code      string `json:"code"`
	Status    string `json:"status"`
	Email     string `json:"email"`
}

// Worker consumes booking lifecycle events and emails the attendee.
type Worker struct {
	consumer *rabbit.Consumer
	sender   EmailSender
	logger   observability.Logger
}

func NewWorker(consumer *rabbit.Consumer, sender EmailSender, logger observability.Logger) *Worker {
	return &Worker{consumer: consumer, sender: sender, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d.RoutingKey, d.Body)
			// Acked regardless of send outcome; notification delivery is
			// best-effort.
			d.Ack(false)
		}
	}
}

func (w *Worker) handle(ctx context.Context, eventType string, body []byte) {
	var ev bookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		w.logger.WithError(err).Warn("dropping malformed booking event")
		return
	}
	if ev.Email == "" {
		return
	}

	var subject string
	switch eventType {
	case "booking.confirmed":
		subject = fmt.Sprintf("Your booking %s is confirmed", ev.Code)
	case "booking.cancelled", "booking.payment_failed":
		subject = fmt.Sprintf("Your booking %s was cancelled", ev.Code)
	case "booking.expired":
		subject = fmt.Sprintf("Your booking %s expired", ev.Code)
	default:
		return
	}

	body2 := fmt.Sprintf("Booking %s is now %s.", ev.Code, ev.Status)
	if err := w.sender.Send(ctx, ev.Email, subject, body2); err != nil {
		w.logger.WithError(err).WithField("booking_code", ev.Code).Warn("email send failed")
	}
}
