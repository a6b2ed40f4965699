package lot

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stable error codes surfaced to command handlers
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeAllocationInvalid    = "LOT_ALLOCATION_INVALID"
	ErrCodeInsufficientQuantity = "INSUFFICIENT_AVAILABLE_QUANTITY"
	ErrCodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	ErrCodeRepository           = "REPOSITORY_ERROR"
)

// InsufficientQuantityError is returned when a reservation or removal
// exceeds what a lot (or a candidate pool) can supply. It always reports
// the shortfall amount.
type InsufficientQuantityError struct {
	LotNumber string // empty when the shortfall spans a candidate pool
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Error implements the error interface
func (e *InsufficientQuantityError) Error() string {
	scope := "candidate lots"
	if e.LotNumber != "" {
		scope = "lot " + e.LotNumber
	}
	return fmt.Sprintf("insufficient available quantity on %s: requested %s, available %s, short %s",
		scope, e.Requested.String(), e.Available.String(), e.Shortfall().String())
}

// ErrorCode returns the stable domain error code
func (e *InsufficientQuantityError) ErrorCode() string {
	return ErrCodeInsufficientQuantity
}

// Shortfall returns the amount by which the request exceeds supply
func (e *InsufficientQuantityError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// InvalidTransitionError is returned when a status transition is not in
// the allowed transition table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Invalid status transition: %s -> %s", e.From, e.To)
}

// ErrorCode returns the stable domain error code
func (e *InvalidTransitionError) ErrorCode() string {
	return ErrCodeInvalidTransition
}

// AllocationValidationError is returned when an order-item allocation set
// violates a domain invariant (empty set, quantity mismatch, non-positive
// quantity, missing lot identity, missing reserver).
type AllocationValidationError struct {
	Message string
}

// Error implements the error interface
func (e *AllocationValidationError) Error() string {
	return e.Message
}

// ErrorCode returns the stable domain error code
func (e *AllocationValidationError) ErrorCode() string {
	return ErrCodeAllocationInvalid
}

func newAllocationValidationError(format string, args ...any) *AllocationValidationError {
	return &AllocationValidationError{Message: fmt.Sprintf(format, args...)}
}
