package allocation

import (
	"fmt"
	"sort"

	"radagast/internal/domain"
	"radagast/internal/errors"
)

// Slice is one planned draw against a batch.
type Slice struct {
	Batch    domain.Batch
	Quantity int
}

// Plan selects batches covering exactly the requested quantity, or fails
// without choosing anything. The ordering is deliberate and must stay
// stable: preferred channel first (LOCAL unless overridden), then oldest
// received, then lowest warehouse id, then batch number. FIFO keeps stale
// stock moving and the fixed tie-breaks make the result reproducible for
// any given inventory snapshot.
func Plan(batches []domain.Batch, productID uint, quantity int, preferred domain.ProcurementChannel) ([]Slice, error) {
	if preferred == "" {
		preferred = domain.ChannelLocal
	}

	candidates := make([]domain.Batch, 0, len(batches))
	available := 0
	for _, b := range batches {
		if b.ProductID != productID || b.Available() == 0 {
			continue
		}
		candidates = append(candidates, b)
		available += b.Available()
	}

	if available < quantity {
		return nil, errors.NewInsufficientInventoryError(
			fmt.Sprintf("product %d: requested %d, available %d", productID, quantity, available),
			errors.LineShortage{ProductID: productID, Requested: quantity, Available: available},
		)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Channel != b.Channel {
			return a.Channel == preferred
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		if a.WarehouseID != b.WarehouseID {
			return a.WarehouseID < b.WarehouseID
		}
		return a.BatchNumber < b.BatchNumber
	})

	var plan []Slice
	remaining := quantity
	for _, b := range candidates {
		if remaining == 0 {
			break
		}
		take := b.Available()
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Slice{Batch: b, Quantity: take})
		remaining -= take
	}

	return plan, nil
}
