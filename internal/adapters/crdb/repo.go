package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/quicktix/quicktix/internal/observability"
)

const (
	serializationFailureCode = "40001"
	uniqueViolationCode      = "23505"
)

// ErrUniqueViolation surfaces booking-code collisions so the caller can
// regenerate the code and retry the transaction.
var ErrUniqueViolation = errors.New("unique violation")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx runs fn inside a SERIALIZABLE transaction. Serialization failures
// (40001) map to domain.ErrSerializationFailure so callers can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	// Under SERIALIZABLE isolation a 40001 can surface at commit time, not
	// just inside fn; it must map the same way so callers retry.
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailureCode:
			return domain.ErrSerializationFailure
		case uniqueViolationCode:
			return errors.Mark(err, ErrUniqueViolation)
		}
	}
	return err
}

func (r *Repository) CreateInventory(ctx context.Context, inv *domain.TicketInventory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ticket_inventory (id, event_id, name, price_cents, currency, total, available, sale_starts_at, sale_ends_at, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, inv.ID, inv.EventID, inv.Name, inv.PriceCents, inv.Currency, inv.Total, inv.Available, inv.SaleStartsAt, inv.SaleEndsAt, inv.Status, inv.UpdatedAt)
	return err
}

const inventoryColumns = `id, event_id, name, price_cents, currency, total, available, sale_starts_at, sale_ends_at, status, updated_at`

func scanInventory(row pgx.Row) (*domain.TicketInventory, error) {
	var inv domain.TicketInventory
	err := row.Scan(&inv.ID, &inv.EventID, &inv.Name, &inv.PriceCents, &inv.Currency, &inv.Total,
		&inv.Available, &inv.SaleStartsAt, &inv.SaleEndsAt, &inv.Status, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) GetInventory(ctx context.Context, id uuid.UUID) (*domain.TicketInventory, error) {
	return scanInventory(r.pool.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM ticket_inventory WHERE id = $1`, id))
}

// GetInventoryForUpdate reads the inventory row inside tx. Under SERIALIZABLE
// isolation the explicit lock shortens the retry window on hot ticket types.
func (r *Repository) GetInventoryForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TicketInventory, error) {
	return scanInventory(tx.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM ticket_inventory WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) UpdateInventory(ctx context.Context, tx pgx.Tx, inv *domain.TicketInventory) error {
	result, err := tx.Exec(ctx, `
		UPDATE ticket_inventory SET available = $2, status = $3, updated_at = $4 WHERE id = $1
	`, inv.ID, inv.Available, inv.Status, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const bookingColumns = `id, code, user_id, event_id, ticket_type_id, quantity, total_cents, currency,
	status, payment_status, attendee_name, attendee_email, attendee_phone, payment_order_id,
	qr_payload, verification_url, inventory_released, retry_count,
	created_at, updated_at, confirmed_at, cancelled_at, expired_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.Code, &b.UserID, &b.EventID, &b.TicketTypeID, &b.Quantity, &b.TotalCents, &b.Currency,
		&b.Status, &b.PaymentStatus, &b.Attendee.Name, &b.Attendee.Email, &b.Attendee.Phone, &b.PaymentOrderID,
		&b.QRPayload, &b.VerificationURL, &b.InventoryReleased, &b.RetryCount,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.ExpiredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, code, user_id, event_id, ticket_type_id, quantity, total_cents, currency,
			status, payment_status, attendee_name, attendee_email, attendee_phone, payment_order_id,
			qr_payload, verification_url, inventory_released, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, b.ID, b.Code, b.UserID, b.EventID, b.TicketTypeID, b.Quantity, b.TotalCents, b.Currency,
		b.Status, b.PaymentStatus, b.Attendee.Name, b.Attendee.Email, b.Attendee.Phone, b.PaymentOrderID,
		b.QRPayload, b.VerificationURL, b.InventoryReleased, b.RetryCount, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (r *Repository) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) GetBookingIDByPaymentOrder(ctx context.Context, gatewayOrderID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM bookings WHERE payment_order_id = $1`, gatewayOrderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) UpdateBooking(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	result, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $2, payment_status = $3, payment_order_id = $4,
			qr_payload = $5, verification_url = $6, inventory_released = $7, retry_count = $8,
			updated_at = $9, confirmed_at = $10, cancelled_at = $11, expired_at = $12
		WHERE id = $1
	`, b.ID, b.Status, b.PaymentStatus, b.PaymentOrderID,
		b.QRPayload, b.VerificationURL, b.InventoryReleased, b.RetryCount,
		b.UpdatedAt, b.ConfirmedAt, b.CancelledAt, b.ExpiredAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// ListExpiredPending returns ids of pending bookings created before cutoff
// whose payment has not reached a terminal state.
func (r *Repository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM bookings
		WHERE status = 'pending' AND payment_status IN ('pending', 'processing') AND created_at < $1
		ORDER BY created_at ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const paymentColumns = `id, booking_id, gateway_order_id, gateway_txn_id, amount_cents, currency, state,
	refund_amount_cents, refund_reason, webhook_verified, captured_at, failed_at, expired_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	err := row.Scan(&p.ID, &p.BookingID, &p.GatewayOrderID, &p.GatewayTxnID, &p.AmountCents, &p.Currency, &p.State,
		&p.RefundAmountCents, &p.RefundReason, &p.WebhookVerified, &p.CapturedAt, &p.FailedAt, &p.ExpiredAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) CreatePayment(ctx context.Context, tx pgx.Tx, p *domain.PaymentRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, booking_id, gateway_order_id, gateway_txn_id, amount_cents, currency, state,
			refund_amount_cents, refund_reason, webhook_verified, captured_at, failed_at, expired_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.ID, p.BookingID, p.GatewayOrderID, p.GatewayTxnID, p.AmountCents, p.Currency, p.State,
		p.RefundAmountCents, p.RefundReason, p.WebhookVerified, p.CapturedAt, p.FailedAt, p.ExpiredAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repository) GetPaymentForBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*domain.PaymentRecord, error) {
	return scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 FOR UPDATE`, bookingID))
}

func (r *Repository) UpdatePayment(ctx context.Context, tx pgx.Tx, p *domain.PaymentRecord) error {
	result, err := tx.Exec(ctx, `
		UPDATE payments SET gateway_order_id = $2, gateway_txn_id = $3, state = $4,
			refund_amount_cents = $5, refund_reason = $6, webhook_verified = $7,
			captured_at = $8, failed_at = $9, expired_at = $10, updated_at = $11
		WHERE id = $1
	`, p.ID, p.GatewayOrderID, p.GatewayTxnID, p.State,
		p.RefundAmountCents, p.RefundReason, p.WebhookVerified,
		p.CapturedAt, p.FailedAt, p.ExpiredAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
