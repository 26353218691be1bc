package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the claim flow. Services and repositories return them
// wrapped in *AppError so the human-readable message travels with the kind;
// handlers map the kind to an HTTP status with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrIneligible      = errors.New("ineligible")
	ErrAlreadyClaimed  = errors.New("already claimed")
	ErrOutOfStock      = errors.New("out of stock")
	ErrInventoryUpdate = errors.New("inventory update failed")
	ErrUnavailable     = errors.New("service unavailable")
	ErrSubmission      = errors.New("submission failed")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Ineligible() *AppError {
	return &AppError{
		Err:     ErrIneligible,
		Message: "this ID is not on the eligibility list",
	}
}

func AlreadyClaimed() *AppError {
	return &AppError{
		Err:     ErrAlreadyClaimed,
		Message: "a gift was already claimed with this ID",
	}
}

func OutOfStock(giftTitle string) *AppError {
	return &AppError{
		Err:     ErrOutOfStock,
		Message: fmt.Sprintf("%q is out of stock", giftTitle),
	}
}

func InventoryUpdateFailed(giftID string) *AppError {
	return &AppError{
		Err:     ErrInventoryUpdate,
		Message: fmt.Sprintf("could not update remaining stock for gift %s", giftID),
	}
}

// Unavailable marks transport-level failures that exhausted their retries.
// The message suggests retrying rather than reporting a hard failure.
func Unavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: "the service is busy, please try again in a moment",
	}
}

// SubmissionFailed marks a claim write that failed after stock was already
// reserved. Compensation has been attempted by the time this is returned.
func SubmissionFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrSubmission,
		Message: "your claim could not be recorded, please try again",
	}
}
