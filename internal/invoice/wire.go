package invoice

import (
	"database/sql"

	"go.uber.org/zap"

	"radagast/internal/config"
	"radagast/internal/infrastructure/mysql"
	invctrl "radagast/internal/invoice/controller"
	invrepo "radagast/internal/invoice/repository"
	"radagast/internal/invoice/usecase"
	batchrepo "radagast/internal/inventory/repository"
	invsvc "radagast/internal/inventory/service"
	resrepo "radagast/internal/reservation/repository"
	ressvc "radagast/internal/reservation/service"
	"radagast/internal/reservation/sweeper"
)

// NewModule wires the whole allocation subsystem: ledger over the batch
// repository, reservation state machine over both, the API use case, and
// the expiry sweeper sharing the same service so both obey the same CAS
// discipline.
func NewModule(db *sql.DB, cfg *config.Config, publisher ressvc.EventPublisher, logger *zap.Logger) (*invctrl.InvoiceController, *sweeper.Sweeper) {
	batchRepo := batchrepo.NewMySQLBatchRepository(db)
	reservationRepo := resrepo.NewMySQLReservationRepository(db)
	invoiceRepo := invrepo.NewMySQLInvoiceRepository(db)

	ledger := invsvc.NewLedger(batchRepo, logger)
	txRunner := mysql.NewTxRunner(db, cfg.Reservation.TxTimeout)

	reservationSvc := ressvc.NewReservationService(
		txRunner,
		batchRepo,
		ledger,
		reservationRepo,
		invoiceRepo,
		publisher,
		logger,
		cfg.Reservation.Window,
	)

	uc := usecase.NewAllocationUseCase(
		reservationSvc,
		invoiceRepo,
		reservationRepo,
		logger,
		cfg.Reservation.MaxRetryAttempts,
	)

	sw := sweeper.New(
		reservationRepo,
		reservationSvc,
		cfg.Reservation.SweepInterval,
		cfg.Reservation.SweeperMaxAttempts,
		logger,
	)

	return invctrl.NewInvoiceController(uc, logger), sw
}
