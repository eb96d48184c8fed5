package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Standard error types
var (
	ErrNotFound               = errors.New("resource not found")
	ErrBadRequest             = errors.New("bad request")
	ErrConflict               = errors.New("resource conflict")
	ErrInternal               = errors.New("internal server error")
	ErrValidation             = errors.New("validation error")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrency            = errors.New("concurrent modification")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidStateTransition reports a document transition the state table does not allow.
func InvalidStateTransition(entity, from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidStateTransition,
		Code:       "INVALID_STATE_TRANSITION",
		Message:    fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"entity": entity,
			"from":   from,
			"to":     to,
		},
	}
}

// Concurrency wraps an isolation conflict reported by the datastore.
// Callers may retry the whole movement.
func Concurrency(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrConcurrency, err),
		Code:       "CONCURRENCY_CONFLICT",
		Message:    "concurrent modification, retry the operation",
		StatusCode: http.StatusConflict,
	}
}

// InsufficientStockError is returned when a deduction would drive stock below
// zero (or below the reserved quantity). It is terminal and never retried.
type InsufficientStockError struct {
	ItemID     string
	LocationID string
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

// Shortfall is the part of the request that could not be served.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	s := e.Requested.Sub(e.Available)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s at %s: requested %s, available %s, shortfall %s",
		e.ItemID, e.LocationID, e.Requested, e.Available, e.Shortfall())
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InsufficientStock builds the AppError carrying requested/available/shortfall.
func InsufficientStock(itemID, locationID string, requested, available decimal.Decimal) *AppError {
	ise := &InsufficientStockError{
		ItemID:     itemID,
		LocationID: locationID,
		Requested:  requested,
		Available:  available,
	}
	return &AppError{
		Err:        ise,
		Code:       "INSUFFICIENT_STOCK",
		Message:    "insufficient stock",
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"item_id":     itemID,
			"location_id": locationID,
			"requested":   requested.String(),
			"available":   available.String(),
			"shortfall":   ise.Shortfall().String(),
		},
	}
}

// AsInsufficientStock extracts the shortfall details from err, if present.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

// IsRetriable reports whether err is a transient isolation conflict.
// Domain failures are never retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
