package crdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quicktix/quicktix/internal/adapters/crdb"
	"github.com/quicktix/quicktix/internal/domain"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRepo(t *testing.T, ctx context.Context) *crdb.Repository {
	t.Helper()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { crdbContainer.Terminate(ctx) })

	dsn, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, dsn+"/defaultdb?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	repo := crdb.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	return repo
}

func seedInventory(t *testing.T, ctx context.Context, repo *crdb.Repository, total int) *domain.TicketInventory {
	t.Helper()
	now := time.Now()
	inv := &domain.TicketInventory{
		ID:           uuid.New(),
		EventID:      uuid.New(),
		Name:         "General Admission",
		PriceCents:   2500,
		Currency:     "USD",
		Total:        total,
		Available:    total,
		SaleStartsAt: now.Add(-time.Hour),
		SaleEndsAt:   now.Add(24 * time.Hour),
		Status:       domain.InventoryActive,
		UpdatedAt:    now,
	}
	if err := repo.CreateInventory(ctx, inv); err != nil {
		t.Fatal(err)
	}
	return inv
}

func TestRepository_ReserveAndBook(t *testing.T) {
	ctx := context.Background()
	repo := startRepo(t, ctx)
	inv := seedInventory(t, ctx, repo, 5)

	now := time.Now()
	var b domain.Booking
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		held, err := repo.GetInventoryForUpdate(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		if err := held.Reserve(3, now); err != nil {
			return err
		}
		b = domain.NewBooking(uuid.New(), inv.EventID, *held, 3, domain.Attendee{Name: "Ada", Email: "ada@example.com"}, now)
		if err := repo.UpdateInventory(ctx, tx, held); err != nil {
			return err
		}
		return repo.CreateBooking(ctx, tx, &b)
	})
	if err != nil {
		t.Fatalf("reserve+book: %v", err)
	}

	got, err := repo.GetInventory(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Available != 2 {
		t.Errorf("available = %d, want 2", got.Available)
	}

	fetched, err := repo.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.BookingPending || fetched.TotalCents != 7500 {
		t.Errorf("booking = %s/%d cents, want pending/7500", fetched.Status, fetched.TotalCents)
	}
}

func TestRepository_OversellRejected(t *testing.T) {
	ctx := context.Background()
	repo := startRepo(t, ctx)
	inv := seedInventory(t, ctx, repo, 2)

	now := time.Now()
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		held, err := repo.GetInventoryForUpdate(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		return held.Reserve(3, now)
	})
	if !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}

	got, err := repo.GetInventory(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Available != 2 {
		t.Errorf("failed reserve must not change availability, got %d", got.Available)
	}
}

func TestRepository_BookingCodeCollision(t *testing.T) {
	ctx := context.Background()
	repo := startRepo(t, ctx)
	inv := seedInventory(t, ctx, repo, 10)

	now := time.Now()
	first := domain.NewBooking(uuid.New(), inv.EventID, *inv, 1, domain.Attendee{Name: "Ada", Email: "ada@example.com"}, now)
	if err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.CreateBooking(ctx, tx, &first)
	}); err != nil {
		t.Fatal(err)
	}

	dup := domain.NewBooking(uuid.New(), inv.EventID, *inv, 1, domain.Attendee{Name: "Bob", Email: "bob@example.com"}, now)
	dup.Code = first.Code
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.CreateBooking(ctx, tx, &dup)
	})
	if !errors.Is(err, crdb.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestRepository_FindByPaymentOrder(t *testing.T) {
	ctx := context.Background()
	repo := startRepo(t, ctx)
	inv := seedInventory(t, ctx, repo, 10)

	now := time.Now()
	b := domain.NewBooking(uuid.New(), inv.EventID, *inv, 1, domain.Attendee{Name: "Ada", Email: "ada@example.com"}, now)
	b.PaymentOrderID = "78901"
	if err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.CreateBooking(ctx, tx, &b)
	}); err != nil {
		t.Fatal(err)
	}

	id, err := repo.GetBookingIDByPaymentOrder(ctx, "78901")
	if err != nil {
		t.Fatal(err)
	}
	if id != b.ID {
		t.Errorf("id = %s, want %s", id, b.ID)
	}

	_, err = repo.GetBookingIDByPaymentOrder(ctx, "00000")
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestRepository_ListExpiredPending(t *testing.T) {
	ctx := context.Background()
	repo := startRepo(t, ctx)
	inv := seedInventory(t, ctx, repo, 10)

	now := time.Now()
	stale := domain.NewBooking(uuid.New(), inv.EventID, *inv, 1, domain.Attendee{Name: "Ada", Email: "ada@example.com"}, now.Add(-time.Hour))
	fresh := domain.NewBooking(uuid.New(), inv.EventID, *inv, 1, domain.Attendee{Name: "Bob", Email: "bob@example.com"}, now)
	confirmed := domain.NewBooking(uuid.New(), inv.EventID, *inv, 1, domain.Attendee{Name: "Cyd", Email: "cyd@example.com"}, now.Add(-time.Hour))
	if err := confirmed.Confirm(now); err != nil {
		t.Fatal(err)
	}

	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		for _, b := range []*domain.Booking{&stale, &fresh, &confirmed} {
			if err := repo.CreateBooking(ctx, tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := repo.ListExpiredPending(ctx, now.Add(-20*time.Minute), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != stale.ID {
		t.Errorf("ids = %v, want only %s", ids, stale.ID)
	}
}

func TestRepository_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := startRepo(t, ctx)

	bookingID := uuid.New()
	rec := crdb.NewBookingOutbox(bookingID, "booking.created", []byte(`{"booking_id":"x"}`))
	if err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		return repo.InsertOutbox(ctx, tx, rec)
	}); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].EventType != "booking.created" {
		t.Fatalf("pending = %v", pending)
	}

	if err := repo.MarkPublished(ctx, pending[0].ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	pending, err = repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("published record still pending: %v", pending)
	}
}
