package repository

import (
	"context"
	"database/sql"
	"fmt"

	"radagast/internal/domain"
	"radagast/internal/errors"
)

type MySQLBatchRepository struct {
	db *sql.DB
}

func NewMySQLBatchRepository(db *sql.DB) *MySQLBatchRepository {
	return &MySQLBatchRepository{db: db}
}

const batchColumns = `id, batchNumber, productId, warehouseId, channel, origin,
	       totalQty, reservedQty, receivedAt, createdAt, updatedAt`

// FindByProductForUpdate locks every batch of the product that still has
// available quantity. Rows come back in id order so concurrent allocators
// acquire locks in the same sequence.
func (r *MySQLBatchRepository) FindByProductForUpdate(ctx context.Context, tx *sql.Tx, productID uint) ([]domain.Batch, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM Batches
		WHERE productId = ?
		  AND totalQty > reservedQty
		ORDER BY id
		FOR UPDATE`, batchColumns)

	rows, err := tx.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("querying batches for product %d: %w", productID, err)
	}
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch rows: %w", err)
	}

	return batches, nil
}

func (r *MySQLBatchRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, batchID uint) (*domain.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM Batches WHERE id = ? FOR UPDATE`, batchColumns)

	b, err := scanBatch(tx.QueryRowContext(ctx, query, batchID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("batch with id %d not found", batchID))
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// UpdateQuantities sets the absolute quantities computed by the ledger under
// the row lock taken by FindByIDForUpdate.
func (r *MySQLBatchRepository) UpdateQuantities(ctx context.Context, tx *sql.Tx, batchID uint, totalQty, reservedQty int) error {
	query := `UPDATE Batches SET totalQty = ?, reservedQty = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, totalQty, reservedQty, batchID)
	if err != nil {
		return fmt.Errorf("updating batch quantities: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("batch with id %d not found", batchID))
	}

	return nil
}

func (r *MySQLBatchRepository) FindByID(ctx context.Context, batchID uint) (*domain.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM Batches WHERE id = ?`, batchColumns)

	b, err := scanBatch(r.db.QueryRowContext(ctx, query, batchID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("batch with id %d not found", batchID))
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(
		&b.ID, &b.BatchNumber, &b.ProductID, &b.WarehouseID, &b.Channel, &b.Origin,
		&b.TotalQty, &b.ReservedQty, &b.ReceivedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return b, err
	}
	if err != nil {
		return b, fmt.Errorf("scanning batch row: %w", err)
	}
	return b, nil
}
