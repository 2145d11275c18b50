package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"radagast/internal/domain"
	"radagast/internal/dto"
	apperrors "radagast/internal/errors"
)

type AllocationUseCase interface {
	CreateInvoice(ctx context.Context, items []dto.AllocationLine, preferred domain.ProcurementChannel) (*domain.Invoice, *domain.Reservation, error)
	GetInvoice(ctx context.Context, invoiceID uint) (*domain.Invoice, *domain.Reservation, error)
	ConfirmAllocation(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
	ReleaseReservation(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
}

type InvoiceController struct {
	useCase AllocationUseCase
	logger  *zap.Logger
}

func NewInvoiceController(useCase AllocationUseCase, logger *zap.Logger) *InvoiceController {
	return &InvoiceController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *InvoiceController) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	var req dto.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	if validationErr := c.validateCreateInvoiceRequest(req); validationErr != nil {
		ve, _ := apperrors.IsValidationError(validationErr)
		c.writeValidationError(w, ve.Message, ve.Details...)
		return
	}

	items := make([]dto.AllocationLine, len(req.Items))
	for i, item := range req.Items {
		items[i] = dto.AllocationLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
		}
	}

	invoice, reservation, err := c.useCase.CreateInvoice(r.Context(), items, domain.ProcurementChannel(req.ChannelPreference))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusCreated, c.invoiceResponse(traceID, invoice, reservation))
}

func (c *InvoiceController) GetInvoice(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	invoiceID, ok := c.parseInvoiceID(w, r, logger)
	if !ok {
		return
	}

	invoice, reservation, err := c.useCase.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, c.invoiceResponse(traceID, invoice, reservation))
}

func (c *InvoiceController) ConfirmAllocation(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, domain.ReservationConfirmed, c.useCase.ConfirmAllocation)
}

func (c *InvoiceController) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, domain.ReservationReleased, c.useCase.ReleaseReservation)
}

func (c *InvoiceController) transition(
	w http.ResponseWriter,
	r *http.Request,
	target string,
	call func(ctx context.Context, invoiceID uint) (*domain.Reservation, error),
) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	invoiceID, ok := c.parseInvoiceID(w, r, logger)
	if !ok {
		return
	}

	reservation, err := call(r.Context(), invoiceID)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	// Idempotent repeats land here with the requested state; a reservation
	// that already went the other way is reported as a conflict carrying
	// the actual terminal state.
	if reservation.State != target {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "ALREADY_"+reservation.State,
			"reservation is already "+reservation.State, reservation.State, nil)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.TransitionResponse{
		TraceID:   traceID,
		InvoiceID: invoiceID,
		Status:    reservation.State,
		Timestamp: time.Now().UTC(),
	})
}

func (c *InvoiceController) parseInvoiceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uint, bool) {
	invoiceIDStr := chi.URLParam(r, "invoiceId")
	invoiceID, err := strconv.ParseUint(invoiceIDStr, 10, 64)
	if err != nil || invoiceID == 0 {
		logger.Warn("invalid invoiceId in path", zap.String("invoiceId", invoiceIDStr))
		c.writeValidationError(w, "invalid invoiceId", apperrors.ValidationDetail{
			Field:   "invoiceId",
			Message: "invoiceId must be a positive integer",
		})
		return 0, false
	}
	return uint(invoiceID), true
}

func (c *InvoiceController) validateCreateInvoiceRequest(req dto.CreateInvoiceRequest) error {
	var details []apperrors.ValidationDetail

	if req.ChannelPreference != "" && !domain.ProcurementChannel(req.ChannelPreference).Valid() {
		details = append(details, apperrors.ValidationDetail{
			Field:   "channelPreference",
			Message: "channelPreference must be LOCAL or IMPORT",
		})
	}

	if len(req.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items must not be empty",
		})
	}

	if len(req.Items) > 100 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items exceeds maximum of 100",
		})
	}

	productIDMap := make(map[uint]bool)

	for idx, item := range req.Items {
		if item.ProductID == 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].productId",
				Message: "each productId must be a positive integer",
			})
		}

		if productIDMap[item.ProductID] {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].productId",
				Message: "productId must not be duplicated",
			})
		}
		productIDMap[item.ProductID] = true

		if item.Quantity < 1 || item.Quantity > 10000 {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].quantity",
				Message: "quantity must be between 1 and 10000",
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}

	return nil
}

func (c *InvoiceController) handleUseCaseError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if iie, ok := apperrors.IsInsufficientInventoryError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusUnprocessableEntity, "INSUFFICIENT_INVENTORY", iie.Message, "", iie.Shortages)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error(), "", nil)
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "CONFLICT", err.Error(), "", nil)
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "DEADLOCK", err.Error(), "", nil)
		return
	}

	if _, ok := apperrors.IsLedgerInconsistencyError(err); ok {
		logger.Error("ledger inconsistency surfaced to API", zap.Error(err))
		c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "LEDGER_INCONSISTENCY",
			"reservation requires manual reconciliation", "", nil)
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", "", nil)
}

func (c *InvoiceController) invoiceResponse(traceID string, invoice *domain.Invoice, reservation *domain.Reservation) dto.InvoiceResponse {
	allocationsByLine := make(map[uint][]dto.BatchAllocationDTO)
	var expiresAt *time.Time
	status := invoice.Status

	if reservation != nil {
		status = reservation.State
		if reservation.State == domain.ReservationPending {
			t := reservation.ExpiresAt
			expiresAt = &t
		}
		for _, a := range reservation.Allocations {
			allocationsByLine[a.InvoiceLineID] = append(allocationsByLine[a.InvoiceLineID], dto.BatchAllocationDTO{
				BatchNumber:        a.BatchNumber,
				WarehouseID:        a.WarehouseID,
				ProcurementChannel: string(a.Channel),
				Origin:             a.Origin,
				Quantity:           a.Quantity,
			})
		}
	}

	items := make([]dto.InvoiceItemDTO, len(invoice.Lines))
	for i, line := range invoice.Lines {
		allocations := allocationsByLine[line.ID]
		if allocations == nil {
			allocations = []dto.BatchAllocationDTO{}
		}
		items[i] = dto.InvoiceItemDTO{
			ProductID:        line.ProductID,
			Quantity:         line.Quantity,
			Unit:             line.Unit,
			BatchAllocations: allocations,
		}
	}

	return dto.InvoiceResponse{
		TraceID:   traceID,
		InvoiceID: invoice.ID,
		Status:    status,
		ExpiresAt: expiresAt,
		Items:     items,
		Timestamp: time.Now().UTC(),
	}
}

func (c *InvoiceController) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code, message, state string, shortages []apperrors.LineShortage) {
	response := dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Code:      code,
		Message:   message,
		State:     state,
		Shortages: shortages,
		Timestamp: time.Now().UTC(),
	}

	c.writeJSON(w, statusCode, response)
}

type validationErrorResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *InvoiceController) writeValidationError(w http.ResponseWriter, message string, details ...apperrors.ValidationDetail) {
	response := validationErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}

	c.writeJSON(w, http.StatusBadRequest, response)
}

func (c *InvoiceController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
