package dto

import (
	"time"

	"radagast/internal/errors"
)

type BatchAllocationDTO struct {
	BatchNumber        string `json:"batchNumber"`
	WarehouseID        uint   `json:"warehouseId"`
	ProcurementChannel string `json:"procurementChannel"`
	Origin             string `json:"origin"`
	Quantity           int    `json:"quantity"`
}

type InvoiceItemDTO struct {
	ProductID        uint                 `json:"productId"`
	Quantity         int                  `json:"quantity"`
	Unit             string               `json:"unit"`
	BatchAllocations []BatchAllocationDTO `json:"batchAllocations"`
}

// InvoiceResponse serves both POST /invoices and GET /invoices/{id}.
// ExpiresAt is null once the reservation is terminal, and absent when the
// invoice never needed one.
type InvoiceResponse struct {
	TraceID   string           `json:"traceId"`
	InvoiceID uint             `json:"invoiceId"`
	Status    string           `json:"status"`
	ExpiresAt *time.Time       `json:"expiresAt"`
	Items     []InvoiceItemDTO `json:"items"`
	Timestamp time.Time        `json:"timestamp"`
}

type TransitionResponse struct {
	TraceID   string    `json:"traceId"`
	InvoiceID uint      `json:"invoiceId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	TraceID   string                `json:"traceId"`
	Status    int                   `json:"status"`
	Code      string                `json:"code"`
	Message   string                `json:"message"`
	State     string                `json:"state,omitempty"`
	Shortages []errors.LineShortage `json:"shortages,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}
