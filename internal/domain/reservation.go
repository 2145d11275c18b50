package domain

import "time"

const (
	ReservationPending   = "PENDING_CONFIRMATION"
	ReservationConfirmed = "CONFIRMED"
	ReservationReleased  = "RELEASED"
)

// BatchAllocation is a slice of a Batch assigned to one invoice line.
// BatchNumber, WarehouseID, Channel and Origin are denormalized from the
// Batch at allocation time so the audit trail is stable even if the batch
// row changes later.
type BatchAllocation struct {
	ID            uint
	ReservationID uint
	InvoiceLineID uint
	BatchID       uint
	BatchNumber   string
	WarehouseID   uint
	Channel       ProcurementChannel
	Origin        string
	Quantity      int
}

// Reservation is the time-boxed hold on inventory between invoice creation
// and confirmation: one per invoice, created atomically with its
// allocations, destroyed exactly once by confirm, release or auto-confirm.
type Reservation struct {
	ID            uint
	InvoiceID     uint
	State         string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	SweepAttempts int
	Allocations   []BatchAllocation
}

func (r Reservation) Terminal() bool {
	return r.State == ReservationConfirmed || r.State == ReservationReleased
}

func (r Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
