package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radagast/internal/domain"
	"radagast/internal/dto"
	apperrors "radagast/internal/errors"
)

type mockReservationService struct {
	CreateFunc  func(ctx context.Context, items []dto.AllocationLine, preferred domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error)
	ConfirmFunc func(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
	ReleaseFunc func(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
}

func (m *mockReservationService) CreateInvoiceWithAllocation(ctx context.Context, items []dto.AllocationLine, preferred domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error) {
	return m.CreateFunc(ctx, items, preferred)
}

func (m *mockReservationService) Confirm(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return m.ConfirmFunc(ctx, invoiceID)
}

func (m *mockReservationService) Release(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return m.ReleaseFunc(ctx, invoiceID)
}

type mockInvoiceReader struct {
	FindByIDFunc func(ctx context.Context, id uint) (*domain.Invoice, error)
}

func (m *mockInvoiceReader) FindByID(ctx context.Context, id uint) (*domain.Invoice, error) {
	return m.FindByIDFunc(ctx, id)
}

type mockReservationReader struct {
	FindByInvoiceIDFunc func(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
}

func (m *mockReservationReader) FindByInvoiceID(ctx context.Context, invoiceID uint) (*domain.Reservation, error) {
	return m.FindByInvoiceIDFunc(ctx, invoiceID)
}

func deadlockErr() error {
	return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
}

func newUseCase(svc ReservationService, invoices InvoiceReader, reservations ReservationReader) *AllocationUseCase {
	return NewAllocationUseCase(svc, invoices, reservations, zap.NewNop(), 3)
}

func TestCreateInvoice_RetriesDeadlocksThenSucceeds(t *testing.T) {
	attempts := 0
	svc := &mockReservationService{
		CreateFunc: func(_ context.Context, _ []dto.AllocationLine, _ domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error) {
			attempts++
			if attempts < 3 {
				return nil, nil, deadlockErr()
			}
			return &domain.Invoice{ID: 1}, &domain.Reservation{InvoiceID: 1, State: domain.ReservationPending}, nil
		},
	}
	uc := newUseCase(svc, nil, nil)

	invoice, res, err := uc.CreateInvoice(context.Background(), []dto.AllocationLine{{ProductID: 1, Quantity: 1}}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, uint(1), invoice.ID)
	assert.Equal(t, domain.ReservationPending, res.State)
}

func TestCreateInvoice_ExhaustedRetriesBecomeDeadlockError(t *testing.T) {
	attempts := 0
	svc := &mockReservationService{
		CreateFunc: func(_ context.Context, _ []dto.AllocationLine, _ domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error) {
			attempts++
			return nil, nil, deadlockErr()
		},
	}
	uc := newUseCase(svc, nil, nil)

	_, _, err := uc.CreateInvoice(context.Background(), []dto.AllocationLine{{ProductID: 1, Quantity: 1}}, "")

	_, ok := apperrors.IsDeadlockError(err)
	require.True(t, ok)
	assert.Equal(t, 3, attempts)
}

func TestCreateInvoice_NonDeadlockErrorsAreNotRetried(t *testing.T) {
	attempts := 0
	svc := &mockReservationService{
		CreateFunc: func(_ context.Context, _ []dto.AllocationLine, _ domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error) {
			attempts++
			return nil, nil, apperrors.NewInsufficientInventoryError("short")
		},
	}
	uc := newUseCase(svc, nil, nil)

	_, _, err := uc.CreateInvoice(context.Background(), []dto.AllocationLine{{ProductID: 1, Quantity: 1}}, "")

	_, ok := apperrors.IsInsufficientInventoryError(err)
	require.True(t, ok)
	assert.Equal(t, 1, attempts)
}

func TestGetInvoice_WithoutReservation(t *testing.T) {
	invoices := &mockInvoiceReader{
		FindByIDFunc: func(_ context.Context, id uint) (*domain.Invoice, error) {
			return &domain.Invoice{ID: id, Status: domain.InvoiceStatusAwaitingConfirmation}, nil
		},
	}
	reservations := &mockReservationReader{
		FindByInvoiceIDFunc: func(_ context.Context, _ uint) (*domain.Reservation, error) {
			return nil, apperrors.NewNotFoundError("reservation not found")
		},
	}
	uc := newUseCase(nil, invoices, reservations)

	invoice, res, err := uc.GetInvoice(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, uint(9), invoice.ID)
	assert.Nil(t, res)
}

func TestGetInvoice_WithReservation(t *testing.T) {
	expires := time.Now().Add(3 * time.Minute)
	invoices := &mockInvoiceReader{
		FindByIDFunc: func(_ context.Context, id uint) (*domain.Invoice, error) {
			return &domain.Invoice{ID: id}, nil
		},
	}
	reservations := &mockReservationReader{
		FindByInvoiceIDFunc: func(_ context.Context, invoiceID uint) (*domain.Reservation, error) {
			return &domain.Reservation{InvoiceID: invoiceID, State: domain.ReservationPending, ExpiresAt: expires}, nil
		},
	}
	uc := newUseCase(nil, invoices, reservations)

	_, res, err := uc.GetInvoice(context.Background(), 9)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, expires, res.ExpiresAt)
}

func TestGetInvoice_UnknownInvoice(t *testing.T) {
	invoices := &mockInvoiceReader{
		FindByIDFunc: func(_ context.Context, _ uint) (*domain.Invoice, error) {
			return nil, apperrors.NewNotFoundError("invoice not found")
		},
	}
	uc := newUseCase(nil, invoices, nil)

	_, _, err := uc.GetInvoice(context.Background(), 9)

	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestConfirmAllocation_PassesThrough(t *testing.T) {
	svc := &mockReservationService{
		ConfirmFunc: func(_ context.Context, invoiceID uint) (*domain.Reservation, error) {
			return &domain.Reservation{InvoiceID: invoiceID, State: domain.ReservationConfirmed}, nil
		},
	}
	uc := newUseCase(svc, nil, nil)

	res, err := uc.ConfirmAllocation(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, res.State)
}

func TestReleaseReservation_RetriesDeadlocks(t *testing.T) {
	attempts := 0
	svc := &mockReservationService{
		ReleaseFunc: func(_ context.Context, invoiceID uint) (*domain.Reservation, error) {
			attempts++
			if attempts == 1 {
				return nil, deadlockErr()
			}
			return &domain.Reservation{InvoiceID: invoiceID, State: domain.ReservationReleased}, nil
		},
	}
	uc := newUseCase(svc, nil, nil)

	res, err := uc.ReleaseReservation(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, domain.ReservationReleased, res.State)
}
