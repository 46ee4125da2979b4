package crdb

import "context"

// Schema is applied by EnsureSchema at startup and by the test harness.
const Schema = `
CREATE TABLE IF NOT EXISTS ticket_inventory (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	name TEXT NOT NULL,
	price_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	total INT NOT NULL,
	available INT NOT NULL CHECK (available >= 0 AND available <= total),
	sale_starts_at TIMESTAMPTZ NOT NULL,
	sale_ends_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('active', 'sold_out', 'sale_ended', 'cancelled')),
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	user_id UUID NOT NULL,
	event_id UUID NOT NULL,
	ticket_type_id UUID NOT NULL,
	quantity INT NOT NULL CHECK (quantity >= 1),
	total_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled', 'expired', 'refunded')),
	payment_status TEXT NOT NULL CHECK (payment_status IN ('pending', 'processing', 'completed', 'failed', 'refunded', 'expired')),
	attendee_name TEXT NOT NULL,
	attendee_email TEXT NOT NULL,
	attendee_phone TEXT NOT NULL DEFAULT '',
	payment_order_id TEXT NOT NULL DEFAULT '',
	qr_payload TEXT NOT NULL DEFAULT '',
	verification_url TEXT NOT NULL DEFAULT '',
	inventory_released BOOL NOT NULL DEFAULT false,
	retry_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	confirmed_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	expired_at TIMESTAMPTZ,
	INDEX bookings_payment_order_idx (payment_order_id),
	INDEX bookings_pending_idx (status, payment_status, created_at)
);

CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	booking_id UUID NOT NULL UNIQUE,
	gateway_order_id TEXT NOT NULL DEFAULT '',
	gateway_txn_id TEXT NOT NULL DEFAULT '',
	amount_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	state TEXT NOT NULL,
	refund_amount_cents BIGINT NOT NULL DEFAULT 0 CHECK (refund_amount_cents <= amount_cents),
	refund_reason TEXT NOT NULL DEFAULT '',
	webhook_verified BOOL NOT NULL DEFAULT false,
	captured_at TIMESTAMPTZ,
	failed_at TIMESTAMPTZ,
	expired_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json BYTES NOT NULL,
	status TEXT NOT NULL DEFAULT 'NEW',
	dedupe_key TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}
