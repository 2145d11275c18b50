package service

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"radagast/internal/allocation"
	"radagast/internal/domain"
	"radagast/internal/dto"
	apperrors "radagast/internal/errors"
	"radagast/internal/infrastructure/metrics"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type BatchRepository interface {
	FindByProductForUpdate(ctx context.Context, tx *sql.Tx, productID uint) ([]domain.Batch, error)
}

type Ledger interface {
	Reserve(ctx context.Context, tx *sql.Tx, batchID uint, qty int) error
	Release(ctx context.Context, tx *sql.Tx, batchID uint, qty int) error
	Commit(ctx context.Context, tx *sql.Tx, batchID uint, qty int) error
}

type ReservationRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, res *domain.Reservation) (uint, error)
	InsertAllocation(ctx context.Context, tx *sql.Tx, a domain.BatchAllocation) (uint, error)
	FindByInvoiceIDForUpdate(ctx context.Context, tx *sql.Tx, invoiceID uint) (*domain.Reservation, error)
	UpdateStateCAS(ctx context.Context, tx *sql.Tx, invoiceID uint, from, to string) (bool, error)
	IncrementSweepAttempts(ctx context.Context, invoiceID uint) error
}

type InvoiceRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, status string) (uint, error)
	InsertLine(ctx context.Context, tx *sql.Tx, line domain.InvoiceLine) (uint, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uint, status string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// ReservationEvent is published to kafka on every successful lifecycle
// transition. Trigger distinguishes explicit API calls from the sweeper.
type ReservationEvent struct {
	InvoiceID uint      `json:"invoiceId"`
	State     string    `json:"state"`
	Trigger   string    `json:"trigger"`
	ExpiresAt time.Time `json:"expiresAt"`
	At        time.Time `json:"at"`
}

const (
	TriggerAPI     = "api"
	TriggerSweeper = "sweeper"
)

// ReservationService owns the reservation state machine. Every mutation runs
// inside one transaction: create either reserves every line or nothing, and
// confirm/release/auto-confirm swap the state exactly once before touching
// the ledger, so racing callers degrade to no-op reads of the winner's
// terminal state.
type ReservationService struct {
	tx           TxRunner
	batches      BatchRepository
	ledger       Ledger
	reservations ReservationRepository
	invoices     InvoiceRepository
	publisher    EventPublisher
	logger       *zap.Logger
	window       time.Duration
	now          func() time.Time
}

func NewReservationService(
	tx TxRunner,
	batches BatchRepository,
	ledger Ledger,
	reservations ReservationRepository,
	invoices InvoiceRepository,
	publisher EventPublisher,
	logger *zap.Logger,
	window time.Duration,
) *ReservationService {
	return &ReservationService{
		tx:           tx,
		batches:      batches,
		ledger:       ledger,
		reservations: reservations,
		invoices:     invoices,
		publisher:    publisher,
		logger:       logger,
		window:       window,
		now:          time.Now,
	}
}

// CreateInvoiceWithAllocation inserts the invoice and its lines, plans and
// reserves batches per line, and persists the reservation with its deadline.
// Nothing is visible to confirm/release/the sweeper until the transaction
// commits, and a failed line rolls back every reservation already made.
func (s *ReservationService) CreateInvoiceWithAllocation(
	ctx context.Context,
	items []dto.AllocationLine,
	preferred domain.ProcurementChannel,
) (*domain.Invoice, *domain.Reservation, error) {
	// Lock products in a fixed order so concurrent creates cannot deadlock
	// on each other's batch rows.
	sorted := make([]dto.AllocationLine, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	var invoice *domain.Invoice
	var reservation *domain.Reservation

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		now := s.now()

		invoiceID, err := s.invoices.Insert(ctx, tx, domain.InvoiceStatusAwaitingConfirmation)
		if err != nil {
			return err
		}

		lines := make([]domain.InvoiceLine, 0, len(sorted))
		for _, item := range sorted {
			line := domain.InvoiceLine{
				InvoiceID: invoiceID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Unit:      item.Unit,
			}
			lineID, err := s.invoices.InsertLine(ctx, tx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			lines = append(lines, line)
		}

		var allocations []domain.BatchAllocation
		for _, line := range lines {
			candidates, err := s.batches.FindByProductForUpdate(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}

			plan, err := allocation.Plan(candidates, line.ProductID, line.Quantity, preferred)
			if err != nil {
				return err
			}

			for _, slice := range plan {
				if err := s.ledger.Reserve(ctx, tx, slice.Batch.ID, slice.Quantity); err != nil {
					return err
				}
				allocations = append(allocations, domain.BatchAllocation{
					InvoiceLineID: line.ID,
					BatchID:       slice.Batch.ID,
					BatchNumber:   slice.Batch.BatchNumber,
					WarehouseID:   slice.Batch.WarehouseID,
					Channel:       slice.Batch.Channel,
					Origin:        slice.Batch.Origin,
					Quantity:      slice.Quantity,
				})
			}
		}

		res := &domain.Reservation{
			InvoiceID: invoiceID,
			State:     domain.ReservationPending,
			CreatedAt: now,
			ExpiresAt: now.Add(s.window),
		}
		resID, err := s.reservations.Insert(ctx, tx, res)
		if err != nil {
			return err
		}
		res.ID = resID

		for i := range allocations {
			allocations[i].ReservationID = resID
			allocID, err := s.reservations.InsertAllocation(ctx, tx, allocations[i])
			if err != nil {
				return err
			}
			allocations[i].ID = allocID
		}
		res.Allocations = allocations

		invoice = &domain.Invoice{
			ID:        invoiceID,
			Status:    domain.InvoiceStatusAwaitingConfirmation,
			CreatedAt: now,
			UpdatedAt: now,
			Lines:     lines,
		}
		reservation = res
		return nil
	})

	if err != nil {
		if _, ok := apperrors.IsInsufficientInventoryError(err); ok {
			metrics.AllocationRejections.Inc()
			s.logger.Info("allocation rejected", zap.Error(err))
		}
		return nil, nil, err
	}

	metrics.ReservationsCreated.Inc()
	s.logger.Info("reservation created",
		zap.Uint("invoiceId", invoice.ID),
		zap.Int("lineCount", len(invoice.Lines)),
		zap.Int("allocationCount", len(reservation.Allocations)),
		zap.Time("expiresAt", reservation.ExpiresAt))

	s.publish(ctx, reservation, TriggerAPI)

	return invoice, reservation, nil
}

// Confirm commits every allocation to the ledger. Once the reservation is
// terminal it is a no-op returning the terminal state.
func (s *ReservationService) Confirm(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return s.transition(ctx, invoiceID, domain.ReservationConfirmed, TriggerAPI, false)
}

// Release puts every reserved quantity back. Idempotent like Confirm.
func (s *ReservationService) Release(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return s.transition(ctx, invoiceID, domain.ReservationReleased, TriggerAPI, false)
}

// AutoConfirm is the sweeper's entry point: identical to Confirm but only
// eligible once the deadline has passed.
func (s *ReservationService) AutoConfirm(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return s.transition(ctx, invoiceID, domain.ReservationConfirmed, TriggerSweeper, true)
}

func (s *ReservationService) transition(
	ctx context.Context,
	invoiceID uint,
	target string,
	trigger string,
	requireExpired bool,
) (*domain.Reservation, error) {
	var result *domain.Reservation
	var mutated bool

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.FindByInvoiceIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		if res.Terminal() {
			// Lost the race (or repeat call): report the winner's state
			// without re-running ledger effects.
			result = res
			return nil
		}

		if requireExpired && s.now().Before(res.ExpiresAt) {
			return apperrors.NewConflictError("reservation has not reached its deadline")
		}

		swapped, err := s.reservations.UpdateStateCAS(ctx, tx, invoiceID, domain.ReservationPending, target)
		if err != nil {
			return err
		}
		if !swapped {
			// Unreachable while we hold the row lock, but the CAS is the
			// invariant the state machine stands on.
			return apperrors.NewConflictError("reservation state changed concurrently")
		}

		allocs := make([]domain.BatchAllocation, len(res.Allocations))
		copy(allocs, res.Allocations)
		sort.Slice(allocs, func(i, j int) bool { return allocs[i].BatchID < allocs[j].BatchID })

		for _, a := range allocs {
			if target == domain.ReservationConfirmed {
				err = s.ledger.Commit(ctx, tx, a.BatchID, a.Quantity)
			} else {
				err = s.ledger.Release(ctx, tx, a.BatchID, a.Quantity)
			}
			if err != nil {
				return err
			}
		}

		if err := s.invoices.UpdateStatus(ctx, tx, invoiceID, target); err != nil {
			return err
		}

		res.State = target
		result = res
		mutated = true
		return nil
	})

	if err != nil {
		if _, ok := apperrors.IsLedgerInconsistencyError(err); ok {
			metrics.LedgerInconsistencies.Inc()
			s.logger.Error("transition aborted on ledger inconsistency",
				zap.Uint("invoiceId", invoiceID),
				zap.String("target", target),
				zap.Error(err))
			if incErr := s.reservations.IncrementSweepAttempts(ctx, invoiceID); incErr != nil {
				s.logger.Error("recording sweep attempt", zap.Uint("invoiceId", invoiceID), zap.Error(incErr))
			}
		}
		return nil, err
	}

	if mutated {
		switch target {
		case domain.ReservationConfirmed:
			metrics.ReservationsConfirmed.WithLabelValues(trigger).Inc()
		case domain.ReservationReleased:
			metrics.ReservationsReleased.Inc()
		}
		s.logger.Info("reservation transitioned",
			zap.Uint("invoiceId", invoiceID),
			zap.String("state", target),
			zap.String("trigger", trigger))
		s.publish(ctx, result, trigger)
	}

	return result, nil
}

func (s *ReservationService) publish(ctx context.Context, res *domain.Reservation, trigger string) {
	if s.publisher == nil {
		return
	}

	event := ReservationEvent{
		InvoiceID: res.InvoiceID,
		State:     res.State,
		Trigger:   trigger,
		ExpiresAt: res.ExpiresAt,
		At:        s.now(),
	}

	key := strconv.FormatUint(uint64(res.InvoiceID), 10)
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.Warn("publishing reservation event",
			zap.Uint("invoiceId", res.InvoiceID),
			zap.String("state", res.State),
			zap.Error(err))
	}
}
