package domain

import "time"

const (
	InvoiceStatusAwaitingConfirmation = "PENDING_CONFIRMATION"
	InvoiceStatusConfirmed            = "CONFIRMED"
	InvoiceStatusReleased             = "RELEASED"
)

type Invoice struct {
	ID        uint
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []InvoiceLine
}

type InvoiceLine struct {
	ID        uint
	InvoiceID uint
	ProductID uint
	Quantity  int
	Unit      string
}
