package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrAccountFrozen     = errors.New("account is frozen")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to your own account")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyProcessed  = errors.New("transaction already processed")
	ErrNotPending        = errors.New("transaction is not pending")
	ErrForbidden         = errors.New("forbidden")

	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)

	// ErrCancelled is what a decision sees when the owner cancelled the
	// transaction after it was read as pending.
	ErrCancelled = fmt.Errorf("transaction was cancelled: %w", ErrNotPending)

	// Store-level outcomes of conditional writes.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
	ErrBalanceConflict        = errors.New("balance changed concurrently")
)

// ValidationError describes a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
