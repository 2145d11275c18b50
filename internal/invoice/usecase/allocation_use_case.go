package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"radagast/internal/domain"
	"radagast/internal/dto"
	apperrors "radagast/internal/errors"
)

type ReservationService interface {
	CreateInvoiceWithAllocation(ctx context.Context, items []dto.AllocationLine, preferred domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error)
	Confirm(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
	Release(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
}

type InvoiceReader interface {
	FindByID(ctx context.Context, id uint) (*domain.Invoice, error)
}

type ReservationReader interface {
	FindByInvoiceID(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
}

// AllocationUseCase fronts the reservation service for the API: it retries
// transactions that die on an InnoDB deadlock or lock timeout, and resolves
// invoice + reservation reads for GET.
type AllocationUseCase struct {
	reservationSvc   ReservationService
	invoices         InvoiceReader
	reservations     ReservationReader
	logger           *zap.Logger
	maxRetryAttempts int
}

func NewAllocationUseCase(
	reservationSvc ReservationService,
	invoices InvoiceReader,
	reservations ReservationReader,
	logger *zap.Logger,
	maxRetryAttempts int,
) *AllocationUseCase {
	return &AllocationUseCase{
		reservationSvc:   reservationSvc,
		invoices:         invoices,
		reservations:     reservations,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
	}
}

func (uc *AllocationUseCase) CreateInvoice(ctx context.Context, items []dto.AllocationLine, preferred domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error) {
	uc.logger.Info("create invoice with allocation started",
		zap.Int("itemCount", len(items)),
		zap.String("channelPreference", string(preferred)))

	var invoice *domain.Invoice
	var reservation *domain.Reservation
	err := uc.withDeadlockRetry(ctx, func() error {
		var err error
		invoice, reservation, err = uc.reservationSvc.CreateInvoiceWithAllocation(ctx, items, preferred)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return invoice, reservation, nil
}

func (uc *AllocationUseCase) GetInvoice(ctx context.Context, invoiceID uint) (*domain.Invoice, *domain.Reservation, error) {
	invoice, err := uc.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	reservation, err := uc.reservations.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		// An invoice without a reservation is legal: nothing was reserved.
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return invoice, nil, nil
		}
		return nil, nil, err
	}

	return invoice, reservation, nil
}

func (uc *AllocationUseCase) ConfirmAllocation(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	var reservation *domain.Reservation
	err := uc.withDeadlockRetry(ctx, func() error {
		var err error
		reservation, err = uc.reservationSvc.Confirm(ctx, invoiceID)
		return err
	})
	return reservation, err
}

func (uc *AllocationUseCase) ReleaseReservation(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	var reservation *domain.Reservation
	err := uc.withDeadlockRetry(ctx, func() error {
		var err error
		reservation, err = uc.reservationSvc.Release(ctx, invoiceID)
		return err
	})
	return reservation, err
}

func (uc *AllocationUseCase) withDeadlockRetry(ctx context.Context, fn func() error) error {
	maxAttempts := uc.maxRetryAttempts
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), etc.
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			return err
		}

		if attempt < maxAttempts {
			backoff := backoffs[(attempt-1)%len(backoffs)]
			// Jitter: ±20% of the backoff base.
			jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
			time.Sleep(jitter)
			uc.logger.Warn("deadlock detected, retrying",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", maxAttempts))
			continue
		}
	}

	return apperrors.NewDeadlockError("max retries exceeded")
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
