package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/quicktix/quicktix/internal/domain"
)

func TestComputeInventoryStatus(t *testing.T) {
	inv := testInventory()

	if got := domain.ComputeInventoryStatus(inv, t0); got != domain.InventoryActive {
		t.Errorf("active inventory: got %s", got)
	}

	soldOut := inv
	soldOut.Available = 0
	if got := domain.ComputeInventoryStatus(soldOut, t0); got != domain.InventorySoldOut {
		t.Errorf("sold out inventory: got %s", got)
	}

	// Sold out wins over sale ended.
	if got := domain.ComputeInventoryStatus(soldOut, inv.SaleEndsAt.Add(time.Hour)); got != domain.InventorySoldOut {
		t.Errorf("sold out past window: got %s", got)
	}

	if got := domain.ComputeInventoryStatus(inv, inv.SaleEndsAt.Add(time.Hour)); got != domain.InventorySaleEnded {
		t.Errorf("past window: got %s", got)
	}

	cancelled := inv
	cancelled.Status = domain.InventoryCancelled
	if got := domain.ComputeInventoryStatus(cancelled, t0); got != domain.InventoryCancelled {
		t.Errorf("cancelled must be sticky: got %s", got)
	}
}

func TestReserve(t *testing.T) {
	inv := testInventory()
	inv.Available = 2

	if err := inv.Reserve(0, t0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("zero quantity: got %v", err)
	}
	if err := inv.Reserve(3, t0); !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Errorf("over capacity: got %v", err)
	}
	if err := inv.Reserve(1, inv.SaleStartsAt.Add(-time.Minute)); !errors.Is(err, domain.ErrSaleClosed) {
		t.Errorf("before window: got %v", err)
	}
	if err := inv.Reserve(1, inv.SaleEndsAt.Add(time.Minute)); !errors.Is(err, domain.ErrSaleClosed) {
		t.Errorf("after window: got %v", err)
	}
	if inv.Available != 2 {
		t.Fatalf("failed reserves must not mutate, available = %d", inv.Available)
	}

	if err := inv.Reserve(2, t0); err != nil {
		t.Fatal(err)
	}
	if inv.Available != 0 {
		t.Errorf("available = %d, want 0", inv.Available)
	}
	if inv.Status != domain.InventorySoldOut {
		t.Errorf("status = %s, want sold_out", inv.Status)
	}
}

func TestReserveCancelledInventory(t *testing.T) {
	inv := testInventory()
	inv.Status = domain.InventoryCancelled
	if err := inv.Reserve(1, t0); !errors.Is(err, domain.ErrTicketNotSellable) {
		t.Fatalf("got %v", err)
	}
}

func TestReleaseCapsAtTotal(t *testing.T) {
	inv := testInventory()
	inv.Available = 0
	inv.Status = domain.InventorySoldOut

	inv.Release(2, t0)
	if inv.Available != 2 {
		t.Errorf("available = %d, want 2", inv.Available)
	}
	if inv.Status != domain.InventoryActive {
		t.Errorf("status = %s, want active", inv.Status)
	}

	inv.Release(1000, t0)
	if inv.Available != inv.Total {
		t.Errorf("available = %d, want capped at %d", inv.Available, inv.Total)
	}
}

func TestPaymentTerminalStampsOnce(t *testing.T) {
	p := domain.NewPaymentRecord(pendingBooking().ID, "ord-1", 5000, "USD", t0)

	if !p.MarkCaptured("txn-1", t0) {
		t.Fatal("first capture must apply")
	}
	captured := *p.CapturedAt
	if p.MarkCaptured("txn-2", t0.Add(time.Minute)) {
		t.Fatal("second capture must be a no-op")
	}
	if !p.CapturedAt.Equal(captured) {
		t.Error("CapturedAt moved on replay")
	}
	if p.GatewayTxnID != "txn-1" {
		t.Errorf("txn id overwritten: %s", p.GatewayTxnID)
	}
	if p.MarkFailed(t0.Add(time.Minute)) {
		t.Error("failed after captured must be a no-op")
	}
	if p.MarkExpired(t0.Add(time.Minute)) {
		t.Error("expired after captured must be a no-op")
	}
}
