package errors

import "fmt"

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	if ve, ok := err.(*ValidationError); ok {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	if nfe, ok := err.(*NotFoundError); ok {
		return nfe, true
	}
	return nil, false
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	if ce, ok := err.(*ConflictError); ok {
		return ce, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	if de, ok := err.(*DeadlockError); ok {
		return de, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

// LineShortage describes one invoice line the planner could not cover.
type LineShortage struct {
	ProductID uint `json:"productId"`
	Requested int  `json:"requested"`
	Available int  `json:"available"`
}

// InsufficientInventoryError rejects an allocation request as a whole: no
// combination of available batches covers every requested line.
type InsufficientInventoryError struct {
	Message   string
	Shortages []LineShortage
}

func (e *InsufficientInventoryError) Error() string {
	return e.Message
}

func NewInsufficientInventoryError(message string, shortages ...LineShortage) *InsufficientInventoryError {
	return &InsufficientInventoryError{
		Message:   message,
		Shortages: shortages,
	}
}

func IsInsufficientInventoryError(err error) (*InsufficientInventoryError, bool) {
	if iie, ok := err.(*InsufficientInventoryError); ok {
		return iie, true
	}
	return nil, false
}

// InsufficientStockError is the ledger-level refusal to reserve more than a
// single batch has available.
type InsufficientStockError struct {
	BatchID   uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("batch %d has %d available, cannot reserve %d", e.BatchID, e.Available, e.Requested)
}

func NewInsufficientStockError(batchID uint, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{BatchID: batchID, Requested: requested, Available: available}
}

func IsInsufficientStockError(err error) (*InsufficientStockError, bool) {
	if ise, ok := err.(*InsufficientStockError); ok {
		return ise, true
	}
	return nil, false
}

// LedgerInconsistencyError means a release or commit disagrees with the
// ledger's recorded quantities. It indicates a broken invariant elsewhere,
// so it is surfaced for reconciliation rather than retried blindly.
type LedgerInconsistencyError struct {
	BatchID   uint
	Operation string
	Message   string
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency on batch %d during %s: %s", e.BatchID, e.Operation, e.Message)
}

func NewLedgerInconsistencyError(batchID uint, operation, message string) *LedgerInconsistencyError {
	return &LedgerInconsistencyError{BatchID: batchID, Operation: operation, Message: message}
}

func IsLedgerInconsistencyError(err error) (*LedgerInconsistencyError, bool) {
	if lie, ok := err.(*LedgerInconsistencyError); ok {
		return lie, true
	}
	return nil, false
}
