package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger appends one document per payment/booking transition. The trail
// is append-only; nothing in the service updates or deletes entries.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("payment_audit"),
		logger: logger,
	}
}

type AuditEntry struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	BookingID uuid.UUID `bson:"booking_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

// Record is best-effort: audit failures are logged and never fail the
// transition that produced them.
func (a *AuditLogger) Record(ctx context.Context, action string, bookingID uuid.UUID, data map[string]interface{}) {
	entry := AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		BookingID: bookingID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithError(err).WithField("action", action).Error("failed to insert audit entry")
	}
}
