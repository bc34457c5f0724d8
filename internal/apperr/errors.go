// Package apperr holds the error taxonomy shared by the eligibility and
// ledger use cases.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a source does not know the code. Never fatal for a scan.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable covers timeouts, network errors and upstream
	// failures of the external nutrition provider. Merged like ErrNotFound
	// but logged and counted separately.
	ErrProviderUnavailable = errors.New("external provider unavailable")

	// ErrLedgerConflict is a transient write conflict on a benefit entry.
	// The ledger retries it; callers only see it once retries are exhausted.
	ErrLedgerConflict = errors.New("ledger write conflict")

	// ErrInsufficientBalance is returned by the reject policy when a purchase
	// would take a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient benefit balance")
)

// ValidationError reports malformed input rejected before any rule or
// ledger work happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
