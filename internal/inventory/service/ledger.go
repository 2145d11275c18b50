package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"radagast/internal/domain"
	"radagast/internal/errors"
)

type BatchRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, batchID uint) (*domain.Batch, error)
	UpdateQuantities(ctx context.Context, tx *sql.Tx, batchID uint, totalQty, reservedQty int) error
}

// Ledger owns the (total, reserved) pair of every batch. All three mutations
// re-read the batch under a row lock inside the caller's transaction, so
// operations on the same batch never interleave; different batches move in
// parallel.
type Ledger struct {
	batches BatchRepository
	logger  *zap.Logger
}

func NewLedger(batches BatchRepository, logger *zap.Logger) *Ledger {
	return &Ledger{batches: batches, logger: logger}
}

// Reserve moves qty from available to reserved.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, batchID uint, qty int) error {
	if qty <= 0 {
		return errors.NewLedgerInconsistencyError(batchID, "reserve", "non-positive quantity")
	}

	batch, err := l.batches.FindByIDForUpdate(ctx, tx, batchID)
	if err != nil {
		return err
	}

	if qty > batch.Available() {
		return errors.NewInsufficientStockError(batchID, qty, batch.Available())
	}

	return l.batches.UpdateQuantities(ctx, tx, batchID, batch.TotalQty, batch.ReservedQty+qty)
}

// Release moves qty back from reserved to available.
func (l *Ledger) Release(ctx context.Context, tx *sql.Tx, batchID uint, qty int) error {
	if qty <= 0 {
		return errors.NewLedgerInconsistencyError(batchID, "release", "non-positive quantity")
	}

	batch, err := l.batches.FindByIDForUpdate(ctx, tx, batchID)
	if err != nil {
		return err
	}

	if qty > batch.ReservedQty {
		return errors.NewLedgerInconsistencyError(batchID, "release",
			"release would drive reserved quantity negative")
	}

	return l.batches.UpdateQuantities(ctx, tx, batchID, batch.TotalQty, batch.ReservedQty-qty)
}

// Commit removes qty from both total and reserved: the stock physically
// leaves the warehouse.
func (l *Ledger) Commit(ctx context.Context, tx *sql.Tx, batchID uint, qty int) error {
	if qty <= 0 {
		return errors.NewLedgerInconsistencyError(batchID, "commit", "non-positive quantity")
	}

	batch, err := l.batches.FindByIDForUpdate(ctx, tx, batchID)
	if err != nil {
		return err
	}

	if qty > batch.ReservedQty {
		return errors.NewLedgerInconsistencyError(batchID, "commit",
			"commit exceeds reserved quantity")
	}

	l.logger.Debug("committing batch quantity",
		zap.Uint("batchId", batchID),
		zap.Int("quantity", qty),
		zap.Int("remainingTotal", batch.TotalQty-qty))

	return l.batches.UpdateQuantities(ctx, tx, batchID, batch.TotalQty-qty, batch.ReservedQty-qty)
}
