package domain

import (
	"time"

	"github.com/google/uuid"
)

type InventoryStatus string

const (
	InventoryActive    InventoryStatus = "active"
	InventorySoldOut   InventoryStatus = "sold_out"
	InventorySaleEnded InventoryStatus = "sale_ended"
	InventoryCancelled InventoryStatus = "cancelled"
)

// TicketInventory is the per-ticket-type availability row. All writers go
// through Reserve/Release so the 0 <= Available <= Total invariant holds.
type TicketInventory struct {
	ID           uuid.UUID
	EventID      uuid.UUID
	Name         string
	PriceCents   int64
	Currency     string
	Total        int
	Available    int
	SaleStartsAt time.Time
	SaleEndsAt   time.Time
	Status       InventoryStatus
	UpdatedAt    time.Time
}

// ComputeInventoryStatus derives the lifecycle status from the current fields.
// Cancelled is sticky; it is set by the organizer, never recomputed away.
func ComputeInventoryStatus(inv TicketInventory, now time.Time) InventoryStatus {
	if inv.Status == InventoryCancelled {
		return InventoryCancelled
	}
	if inv.Available <= 0 {
		return InventorySoldOut
	}
	if now.After(inv.SaleEndsAt) {
		return InventorySaleEnded
	}
	return InventoryActive
}

// Sellable reports whether qty units can be sold right now.
func (inv *TicketInventory) Sellable(qty int, now time.Time) error {
	if qty < 1 {
		return ErrInvalidInput
	}
	if inv.Status == InventoryCancelled {
		return ErrTicketNotSellable
	}
	if now.Before(inv.SaleStartsAt) || now.After(inv.SaleEndsAt) {
		return ErrSaleClosed
	}
	if inv.Available < qty {
		return ErrInsufficientInventory
	}
	return nil
}

// Reserve decrements availability after the sellability checks pass and
// recomputes the status. Callers must persist the row in the same transaction
// as the booking insert.
func (inv *TicketInventory) Reserve(qty int, now time.Time) error {
	if err := inv.Sellable(qty, now); err != nil {
		return err
	}
	inv.Available -= qty
	inv.Status = ComputeInventoryStatus(*inv, now)
	inv.UpdatedAt = now
	return nil
}

// Release returns qty units to the pool, capped at total capacity. Release-once
// semantics are enforced by the booking's InventoryReleased flag, not here.
func (inv *TicketInventory) Release(qty int, now time.Time) {
	inv.Available += qty
	if inv.Available > inv.Total {
		inv.Available = inv.Total
	}
	inv.Status = ComputeInventoryStatus(*inv, now)
	inv.UpdatedAt = now
}
