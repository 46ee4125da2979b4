package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/clock"
	"github.com/quicktix/quicktix/internal/observability"
)

type fakeBookings struct {
	stale []uuid.UUID

	gotCutoff time.Time
	expired   []uuid.UUID
	skip      map[uuid.UUID]bool
	failing   map[uuid.UUID]error
}

func (f *fakeBookings) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	f.gotCutoff = cutoff
	if limit < len(f.stale) {
		return f.stale[:limit], nil
	}
	return f.stale, nil
}

func (f *fakeBookings) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := f.failing[id]; err != nil {
		return false, err
	}
	if f.skip[id] {
		return false, nil
	}
	f.expired = append(f.expired, id)
	return true, nil
}

func TestSweepExpiresStaleBookings(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	bookings := &fakeBookings{stale: ids}
	clk := clock.NewFake(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	s := New(bookings, 20*time.Minute, time.Minute, clk, observability.NewLogger())

	processed, err := s.Sweep(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if processed != 3 {
		t.Fatalf("processed = %d, want 3", processed)
	}
	wantCutoff := clk.Now().Add(-20 * time.Minute)
	if !bookings.gotCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", bookings.gotCutoff, wantCutoff)
	}
}

func TestSweepSkipsConcurrentlyConfirmed(t *testing.T) {
	confirmed := uuid.New()
	stale := uuid.New()
	bookings := &fakeBookings{
		stale: []uuid.UUID{confirmed, stale},
		skip:  map[uuid.UUID]bool{confirmed: true},
	}
	clk := clock.NewFake(time.Now())
	s := New(bookings, 20*time.Minute, time.Minute, clk, observability.NewLogger())

	processed, err := s.Sweep(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
	if len(bookings.expired) != 1 || bookings.expired[0] != stale {
		t.Fatalf("expired = %v, want only %v", bookings.expired, stale)
	}
}

func TestSweepIsolatesPerBookingFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	bookings := &fakeBookings{
		stale:   []uuid.UUID{bad, good},
		failing: map[uuid.UUID]error{bad: errors.New("tx aborted")},
	}
	clk := clock.NewFake(time.Now())
	s := New(bookings, 20*time.Minute, time.Minute, clk, observability.NewLogger())

	processed, err := s.Sweep(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
	if len(bookings.expired) != 1 || bookings.expired[0] != good {
		t.Fatalf("one stuck booking must not block the batch; expired = %v", bookings.expired)
	}
}

func TestSweepEmptyBatch(t *testing.T) {
	bookings := &fakeBookings{}
	clk := clock.NewFake(time.Now())
	s := New(bookings, 20*time.Minute, time.Minute, clk, observability.NewLogger())

	processed, err := s.Sweep(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
}
