package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radagast/internal/domain"
	apperrors "radagast/internal/errors"
	"radagast/internal/testutil"
)

func seedBatch(t *testing.T, db *sql.DB, b domain.Batch) uint {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO Batches (batchNumber, productId, warehouseId, channel, origin, totalQty, reservedQty, receivedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BatchNumber, b.ProductID, b.WarehouseID, b.Channel, b.Origin, b.TotalQty, b.ReservedQty, b.ReceivedAt,
	)
	require.NoError(t, err)

	id, err := result.LastInsertId()
	require.NoError(t, err)
	return uint(id)
}

func beginTx(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func TestFindByProductForUpdate_SkipsExhaustedBatches(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	received := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	first := seedBatch(t, db, domain.Batch{BatchNumber: "B-001", ProductID: 10, WarehouseID: 1, Channel: domain.ChannelLocal, Origin: "mill-a", TotalQty: 20, ReservedQty: 5, ReceivedAt: received})
	seedBatch(t, db, domain.Batch{BatchNumber: "B-002", ProductID: 10, WarehouseID: 1, Channel: domain.ChannelLocal, Origin: "mill-a", TotalQty: 10, ReservedQty: 10, ReceivedAt: received})
	second := seedBatch(t, db, domain.Batch{BatchNumber: "B-003", ProductID: 10, WarehouseID: 2, Channel: domain.ChannelImport, Origin: "port-x", TotalQty: 8, ReservedQty: 0, ReceivedAt: received})
	seedBatch(t, db, domain.Batch{BatchNumber: "B-004", ProductID: 99, WarehouseID: 1, Channel: domain.ChannelLocal, Origin: "mill-a", TotalQty: 50, ReservedQty: 0, ReceivedAt: received})

	repo := NewMySQLBatchRepository(db)
	tx := beginTx(t, db)

	batches, err := repo.FindByProductForUpdate(context.Background(), tx, 10)
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Equal(t, first, batches[0].ID)
	assert.Equal(t, second, batches[1].ID)
	assert.Equal(t, 15, batches[0].Available())
	assert.Equal(t, domain.ChannelImport, batches[1].Channel)
}

func TestFindByIDForUpdate_ReturnsBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	received := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	id := seedBatch(t, db, domain.Batch{BatchNumber: "B-010", ProductID: 3, WarehouseID: 1, Channel: domain.ChannelLocal, Origin: "mill-b", TotalQty: 12, ReservedQty: 4, ReceivedAt: received})

	repo := NewMySQLBatchRepository(db)
	tx := beginTx(t, db)

	b, err := repo.FindByIDForUpdate(context.Background(), tx, id)
	require.NoError(t, err)
	assert.Equal(t, "B-010", b.BatchNumber)
	assert.Equal(t, 12, b.TotalQty)
	assert.Equal(t, 4, b.ReservedQty)
	assert.WithinDuration(t, received, b.ReceivedAt, time.Second)
}

func TestFindByIDForUpdate_UnknownBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLBatchRepository(db)
	tx := beginTx(t, db)

	_, err := repo.FindByIDForUpdate(context.Background(), tx, 424242)

	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestUpdateQuantities_PersistsAbsoluteValues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	received := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	id := seedBatch(t, db, domain.Batch{BatchNumber: "B-020", ProductID: 3, WarehouseID: 1, Channel: domain.ChannelLocal, Origin: "mill-b", TotalQty: 12, ReservedQty: 0, ReceivedAt: received})

	repo := NewMySQLBatchRepository(db)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateQuantities(context.Background(), tx, id, 12, 7))
	require.NoError(t, tx.Commit())

	b, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 12, b.TotalQty)
	assert.Equal(t, 7, b.ReservedQty)
	assert.Equal(t, 5, b.Available())
}

func TestUpdateQuantities_UnknownBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLBatchRepository(db)
	tx := beginTx(t, db)

	err := repo.UpdateQuantities(context.Background(), tx, 424242, 1, 1)

	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}
