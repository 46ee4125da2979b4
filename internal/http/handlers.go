package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/adapters/crdb"
	"github.com/quicktix/quicktix/internal/adapters/gateway"
	"github.com/quicktix/quicktix/internal/booking"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/quicktix/quicktix/internal/idempotency"
	"github.com/quicktix/quicktix/internal/observability"
	"github.com/quicktix/quicktix/internal/webhook"
)

type Handlers struct {
	bookings   *booking.Service
	reconciler *webhook.Reconciler
	repo       *crdb.Repository
	idemp      *idempotency.Idempotency
	logger     observability.Logger
}

func NewHandlers(bookings *booking.Service, reconciler *webhook.Reconciler, repo *crdb.Repository, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		bookings:   bookings,
		reconciler: reconciler,
		repo:       repo,
		idemp:      idemp,
		logger:     logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain sentinels to response codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrEventNotFound):
		return http.StatusNotFound, "event not found"
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, domain.ErrEventEnded):
		return http.StatusUnprocessableEntity, "event already ended"
	case errors.Is(err, domain.ErrTicketNotSellable):
		return http.StatusUnprocessableEntity, "ticket type not sellable"
	case errors.Is(err, domain.ErrSaleClosed):
		return http.StatusUnprocessableEntity, "sale window closed"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient inventory"
	case errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict, "conflict, try again"
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		return http.StatusConflict, "booking already confirmed"
	case errors.Is(err, domain.ErrRetryNotAllowed):
		return http.StatusConflict, "retry not allowed"
	case errors.Is(err, domain.ErrGatewayAuth), errors.Is(err, domain.ErrGatewayOrder):
		return http.StatusBadGateway, "payment gateway unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type bookingResponse struct {
	BookingID       string `json:"booking_id"`
	Code            string `json:"code"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"payment_status"`
	Quantity        int    `json:"quantity"`
	TotalCents      int64  `json:"total_cents"`
	Currency        string `json:"currency"`
	RetryCount      int    `json:"retry_count,omitempty"`
	PaymentKey      string `json:"payment_key,omitempty"`
	VerificationURL string `json:"verification_url,omitempty"`
}

func toBookingResponse(b *domain.Booking, paymentKey string) bookingResponse {
	return bookingResponse{
		BookingID:       b.ID.String(),
		Code:            b.Code,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		Quantity:        b.Quantity,
		TotalCents:      b.TotalCents,
		Currency:        b.Currency,
		RetryCount:      b.RetryCount,
		PaymentKey:      paymentKey,
		VerificationURL: b.VerificationURL,
	}
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		UserID       uuid.UUID `json:"user_id"`
		EventID      uuid.UUID `json:"event_id"`
		TicketTypeID uuid.UUID `json:"ticket_type_id"`
		Quantity     int       `json:"quantity"`
		Attendee     struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
		} `json:"attendee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.bookings.CreateBooking(r.Context(), booking.CreateBookingInput{
		UserID:       req.UserID,
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     req.Quantity,
		Attendee: domain.Attendee{
			Name:  req.Attendee.Name,
			Email: req.Attendee.Email,
			Phone: req.Attendee.Phone,
		},
	})
	if err != nil {
		status, msg := statusFor(err)
		// A gateway failure still created the booking; hand it back so the
		// client can retry payment against the same hold.
		if result != nil && result.Booking != nil && status == http.StatusBadGateway {
			writeJSON(w, status, toBookingResponse(result.Booking, ""))
			return
		}
		writeError(w, status, msg)
		return
	}

	data := writeJSON(w, http.StatusCreated, toBookingResponse(result.Booking, result.PaymentKey))
	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		// A lost store means a client retry re-runs creation instead of
		// replaying; the reservation guard still holds.
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b, ""))
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.bookings.Cancel(r.Context(), id)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b, ""))
}

func (h *Handlers) RetryBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.bookings.Retry(r.Context(), id)
	if err != nil {
		status, msg := statusFor(err)
		if result != nil && result.Booking != nil && status == http.StatusBadGateway {
			writeJSON(w, status, toBookingResponse(result.Booking, ""))
			return
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(result.Booking, result.PaymentKey))
}

// PaymentWebhook receives the gateway's asynchronous payment notifications.
// The signature travels as the "hmac" query parameter or X-Signature header.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.URL.Query().Get("hmac")
	if signature == "" {
		signature = r.Header.Get("X-Signature")
	}

	var payload gateway.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	err := h.reconciler.Handle(r.Context(), payload, signature)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
