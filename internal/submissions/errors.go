package submissions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a submission or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when a review targets a submission whose
	// status no longer allows it.
	ErrInvalidState = errors.New("submission is not pending")
	// ErrMissingWallet is returned when approving for a user with no wallet address.
	ErrMissingWallet = errors.New("user wallet address not found")
)

// ValidationError lists missing and malformed input fields.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// LedgerError wraps a failed or unavailable ledger call. Nothing was persisted.
type LedgerError struct {
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger: %v", e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// StorageError wraps an object or document store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
