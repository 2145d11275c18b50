package domain

import "time"

type ProcurementChannel string

const (
	ChannelLocal  ProcurementChannel = "LOCAL"
	ChannelImport ProcurementChannel = "IMPORT"
)

func (c ProcurementChannel) Valid() bool {
	return c == ChannelLocal || c == ChannelImport
}

type Warehouse struct {
	ID        uint
	Code      string
	Name      string
	CreatedAt time.Time
}

// Batch is a physical lot of one product at one warehouse. BatchNumber is
// unique per warehouse+product. Quantities are mutated only through the
// ledger (reserve/release/commit) under a row lock.
type Batch struct {
	ID          uint
	BatchNumber string
	ProductID   uint
	WarehouseID uint
	Channel     ProcurementChannel
	Origin      string
	TotalQty    int
	ReservedQty int
	ReceivedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b Batch) Available() int {
	available := b.TotalQty - b.ReservedQty
	if available < 0 {
		return 0
	}
	return available
}
