package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrDuplicateReference indicates that a transaction with the same reference id is already journaled.
// Transfer callers never see it; the coordinator resolves it to the stored outcome.
var ErrDuplicateReference = fmt.Errorf("%w: reference id already recorded", ErrDuplicate)

// ErrAccountNotActive indicates that an account is FROZEN or CLOSED.
var ErrAccountNotActive = errors.New("account is not active")

// ErrInsufficientFunds indicates that a debit would take a balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrVersionConflict indicates that an account changed between read and conditional write.
var ErrVersionConflict = errors.New("account version conflict")

// ErrConcurrencyConflict is returned once the retry budget for version conflicts is spent.
// Callers may retry the request.
var ErrConcurrencyConflict = errors.New("concurrent modification, retry the request")

// ErrLockTimeout indicates that account locks could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for account lock")

// ErrPersistence indicates a storage failure.
var ErrPersistence = errors.New("persistence failure")

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")
)

// AppError carries an infrastructure failure together with a status-like code.
// It unwraps to ErrPersistence for codes >= 500 so callers can match with errors.Is.
type AppError struct {
	Code    int
	Message string
	Err     error
}

// NewAppError creates an AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Code >= 500 {
		errs = append(errs, ErrPersistence)
	}
	return errs
}

// IsRetryable reports whether the caller may safely resubmit the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrLockTimeout)
}
