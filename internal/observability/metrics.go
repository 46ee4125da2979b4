package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtx_bookings_created_total",
			Help: "Total bookings created",
		},
	)

	BookingsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtx_bookings_confirmed_total",
			Help: "Total bookings confirmed via webhook",
		},
	)

	BookingsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtx_bookings_expired_total",
			Help: "Total bookings expired by the sweeper",
		},
	)

	InventoryConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtx_inventory_conflicts_total",
			Help: "Total reservations rejected for insufficient inventory",
		},
	)

	WebhooksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qtx_webhooks_rejected_total",
			Help: "Total webhooks rejected before processing",
		},
		[]string{"reason"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qtx_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweeperProcessed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qtx_sweeper_processed",
			Help: "Bookings expired in the last sweep",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qtx_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtx_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
