package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"radagast/internal/domain"
	"radagast/internal/errors"
)

type MySQLReservationRepository struct {
	db *sql.DB
}

func NewMySQLReservationRepository(db *sql.DB) *MySQLReservationRepository {
	return &MySQLReservationRepository{db: db}
}

func (r *MySQLReservationRepository) Insert(ctx context.Context, tx *sql.Tx, res *domain.Reservation) (uint, error) {
	query := `INSERT INTO Reservations (invoiceId, state, createdAt, expiresAt, sweepAttempts)
	          VALUES (?, ?, ?, ?, 0)`

	result, err := tx.ExecContext(ctx, query, res.InvoiceID, res.State, res.CreatedAt, res.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("inserting reservation: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLReservationRepository) InsertAllocation(ctx context.Context, tx *sql.Tx, a domain.BatchAllocation) (uint, error) {
	query := `INSERT INTO BatchAllocations
	          (reservationId, invoiceLineId, batchId, batchNumber, warehouseId, channel, origin, quantity)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		a.ReservationID, a.InvoiceLineID, a.BatchID, a.BatchNumber,
		a.WarehouseID, a.Channel, a.Origin, a.Quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting batch allocation: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLReservationRepository) FindByInvoiceID(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return r.findByInvoiceID(ctx, r.db.QueryRowContext, r.db.QueryContext, invoiceID)
}

// FindByInvoiceIDForUpdate locks the reservation row for the remainder of
// the transaction. Concurrent transitions queue up behind this lock, which
// is what turns the confirm/release/auto-confirm race into a winner and
// no-op losers.
func (r *MySQLReservationRepository) FindByInvoiceIDForUpdate(ctx context.Context, tx *sql.Tx, invoiceID uint) (*domain.Reservation, error) {
	return r.findByInvoiceID(ctx,
		func(c context.Context, q string, args ...any) *sql.Row {
			return tx.QueryRowContext(c, q+" FOR UPDATE", args...)
		},
		tx.QueryContext,
		invoiceID,
	)
}

type queryRowFunc func(ctx context.Context, query string, args ...any) *sql.Row
type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r *MySQLReservationRepository) findByInvoiceID(ctx context.Context, queryRow queryRowFunc, query queryFunc, invoiceID uint) (*domain.Reservation, error) {
	selectRes := `
		SELECT id, invoiceId, state, createdAt, expiresAt, sweepAttempts
		FROM Reservations
		WHERE invoiceId = ?`

	var res domain.Reservation
	err := queryRow(ctx, selectRes, invoiceID).Scan(
		&res.ID, &res.InvoiceID, &res.State, &res.CreatedAt, &res.ExpiresAt, &res.SweepAttempts,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("reservation for invoice %d not found", invoiceID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying reservation: %w", err)
	}

	selectAllocs := `
		SELECT id, reservationId, invoiceLineId, batchId, batchNumber, warehouseId, channel, origin, quantity
		FROM BatchAllocations
		WHERE reservationId = ?
		ORDER BY id`

	rows, err := query(ctx, selectAllocs, res.ID)
	if err != nil {
		return nil, fmt.Errorf("querying batch allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.BatchAllocation
		err := rows.Scan(
			&a.ID, &a.ReservationID, &a.InvoiceLineID, &a.BatchID, &a.BatchNumber,
			&a.WarehouseID, &a.Channel, &a.Origin, &a.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning batch allocation row: %w", err)
		}
		res.Allocations = append(res.Allocations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch allocation rows: %w", err)
	}

	return &res, nil
}

// UpdateStateCAS swaps the state only if the current value still matches
// `from`. The rows-affected count tells the caller whether it won the swap.
func (r *MySQLReservationRepository) UpdateStateCAS(ctx context.Context, tx *sql.Tx, invoiceID uint, from, to string) (bool, error) {
	query := `UPDATE Reservations SET state = ? WHERE invoiceId = ? AND state = ?`

	result, err := tx.ExecContext(ctx, query, to, invoiceID, from)
	if err != nil {
		return false, fmt.Errorf("updating reservation state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// FindExpiredPending returns invoice ids of reservations past their
// deadline, skipping rows that already burned maxAttempts sweeps.
func (r *MySQLReservationRepository) FindExpiredPending(ctx context.Context, now time.Time, maxAttempts, limit int) ([]uint, error) {
	query := `
		SELECT invoiceId
		FROM Reservations
		WHERE state = ?
		  AND expiresAt <= ?
		  AND sweepAttempts < ?
		ORDER BY expiresAt
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, domain.ReservationPending, now, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("querying expired reservations: %w", err)
	}
	defer rows.Close()

	var invoiceIDs []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning invoice id: %w", err)
		}
		invoiceIDs = append(invoiceIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expired reservation rows: %w", err)
	}

	return invoiceIDs, nil
}

func (r *MySQLReservationRepository) IncrementSweepAttempts(ctx context.Context, invoiceID uint) error {
	query := `UPDATE Reservations SET sweepAttempts = sweepAttempts + 1 WHERE invoiceId = ?`

	if _, err := r.db.ExecContext(ctx, query, invoiceID); err != nil {
		return fmt.Errorf("incrementing sweep attempts: %w", err)
	}

	return nil
}
