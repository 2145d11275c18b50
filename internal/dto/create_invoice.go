package dto

type CreateInvoiceRequest struct {
	ChannelPreference string              `json:"channelPreference,omitempty"`
	Items             []CreateInvoiceItem `json:"items"`
}

type CreateInvoiceItem struct {
	ProductID uint   `json:"productId"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit"`
}

// AllocationLine is the planner-facing view of a requested item.
type AllocationLine struct {
	ProductID uint
	Quantity  int
	Unit      string
}
