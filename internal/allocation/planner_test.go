package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radagast/internal/domain"
	"radagast/internal/errors"
)

func day(d int) time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func batch(id uint, number string, warehouseID uint, channel domain.ProcurementChannel, total, reserved int, received time.Time) domain.Batch {
	return domain.Batch{
		ID:          id,
		BatchNumber: number,
		ProductID:   7,
		WarehouseID: warehouseID,
		Channel:     channel,
		Origin:      "origin-" + number,
		TotalQty:    total,
		ReservedQty: reserved,
		ReceivedAt:  received,
	}
}

func TestPlan_LocalBeforeImportThenFIFO(t *testing.T) {
	// B1: 10 LOCAL, 5 days old. B2: 10 IMPORT, 1 day old. Requesting 15
	// takes all of B1 first despite B2 being younger.
	b1 := batch(1, "B1", 1, domain.ChannelLocal, 10, 0, day(0))
	b2 := batch(2, "B2", 1, domain.ChannelImport, 10, 0, day(4))

	plan, err := Plan([]domain.Batch{b2, b1}, 7, 15, "")
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "B1", plan[0].Batch.BatchNumber)
	assert.Equal(t, 10, plan[0].Quantity)
	assert.Equal(t, "B2", plan[1].Batch.BatchNumber)
	assert.Equal(t, 5, plan[1].Quantity)
}

func TestPlan_InsufficientInventoryChoosesNothing(t *testing.T) {
	b1 := batch(1, "B1", 1, domain.ChannelLocal, 10, 0, day(0))
	b2 := batch(2, "B2", 1, domain.ChannelImport, 10, 0, day(4))

	plan, err := Plan([]domain.Batch{b1, b2}, 7, 25, "")
	assert.Nil(t, plan)

	iie, ok := errors.IsInsufficientInventoryError(err)
	require.True(t, ok)
	require.Len(t, iie.Shortages, 1)
	assert.Equal(t, uint(7), iie.Shortages[0].ProductID)
	assert.Equal(t, 25, iie.Shortages[0].Requested)
	assert.Equal(t, 20, iie.Shortages[0].Available)
}

func TestPlan_FIFOWithinChannel(t *testing.T) {
	older := batch(1, "OLD", 2, domain.ChannelLocal, 5, 0, day(0))
	newer := batch(2, "NEW", 1, domain.ChannelLocal, 5, 0, day(3))

	plan, err := Plan([]domain.Batch{newer, older}, 7, 6, "")
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "OLD", plan[0].Batch.BatchNumber)
	assert.Equal(t, 5, plan[0].Quantity)
	assert.Equal(t, "NEW", plan[1].Batch.BatchNumber)
	assert.Equal(t, 1, plan[1].Quantity)
}

func TestPlan_WarehouseTieBreakOnEqualAge(t *testing.T) {
	received := day(2)
	wh9 := batch(1, "A", 9, domain.ChannelLocal, 5, 0, received)
	wh3 := batch(2, "B", 3, domain.ChannelLocal, 5, 0, received)

	plan, err := Plan([]domain.Batch{wh9, wh3}, 7, 7, "")
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, uint(3), plan[0].Batch.WarehouseID)
	assert.Equal(t, uint(9), plan[1].Batch.WarehouseID)
}

func TestPlan_ChannelPreferenceOverride(t *testing.T) {
	local := batch(1, "L", 1, domain.ChannelLocal, 10, 0, day(0))
	imported := batch(2, "I", 1, domain.ChannelImport, 10, 0, day(4))

	plan, err := Plan([]domain.Batch{local, imported}, 7, 12, domain.ChannelImport)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "I", plan[0].Batch.BatchNumber)
	assert.Equal(t, 10, plan[0].Quantity)
	assert.Equal(t, "L", plan[1].Batch.BatchNumber)
	assert.Equal(t, 2, plan[1].Quantity)
}

func TestPlan_SkipsExhaustedAndForeignBatches(t *testing.T) {
	exhausted := batch(1, "EMPTY", 1, domain.ChannelLocal, 10, 10, day(0))
	foreign := batch(2, "OTHER", 1, domain.ChannelLocal, 10, 0, day(0))
	foreign.ProductID = 99
	usable := batch(3, "OK", 1, domain.ChannelLocal, 10, 4, day(1))

	plan, err := Plan([]domain.Batch{exhausted, foreign, usable}, 7, 6, "")
	require.NoError(t, err)
	require.Len(t, plan, 1)

	assert.Equal(t, "OK", plan[0].Batch.BatchNumber)
	assert.Equal(t, 6, plan[0].Quantity)
}

func TestPlan_PartiallyReservedBatchContributesAvailableOnly(t *testing.T) {
	b := batch(1, "B", 1, domain.ChannelLocal, 10, 7, day(0))

	plan, err := Plan([]domain.Batch{b}, 7, 3, "")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 3, plan[0].Quantity)

	_, err = Plan([]domain.Batch{b}, 7, 4, "")
	_, ok := errors.IsInsufficientInventoryError(err)
	assert.True(t, ok)
}

func TestPlan_ExactCoverStopsConsuming(t *testing.T) {
	b1 := batch(1, "B1", 1, domain.ChannelLocal, 10, 0, day(0))
	b2 := batch(2, "B2", 1, domain.ChannelLocal, 10, 0, day(1))

	plan, err := Plan([]domain.Batch{b1, b2}, 7, 10, "")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "B1", plan[0].Batch.BatchNumber)
	assert.Equal(t, 10, plan[0].Quantity)
}

func TestPlan_DeterministicForIdenticalSnapshot(t *testing.T) {
	snapshot := []domain.Batch{
		batch(4, "D", 2, domain.ChannelImport, 8, 0, day(1)),
		batch(2, "B", 1, domain.ChannelLocal, 6, 0, day(2)),
		batch(3, "C", 3, domain.ChannelLocal, 4, 0, day(2)),
		batch(1, "A", 2, domain.ChannelLocal, 5, 0, day(0)),
	}

	first, err := Plan(snapshot, 7, 20, "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		shuffled := []domain.Batch{snapshot[(i+1)%4], snapshot[(i+2)%4], snapshot[(i+3)%4], snapshot[i%4]}
		again, err := Plan(shuffled, 7, 20, "")
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Batch.ID, again[j].Batch.ID)
			assert.Equal(t, first[j].Quantity, again[j].Quantity)
		}
	}
}
