package ledger

import (
	"errors"
	"fmt"
)

// Ledger operation errors.
// Every public operation reports one of these (possibly wrapped) instead of panicking.
var (
	// ErrInvalidAmount is returned when an amount is zero or negative
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrInsufficientFunds is returned when a withdrawal would take the balance below zero.
	// Account.Withdraw also uses it for non-positive amounts.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrLimitExceeded is returned when a card withdrawal or deposit exceeds its per-transaction ceiling
	ErrLimitExceeded = errors.New("ledger: card transaction limit exceeded")

	// ErrUsernameTaken is returned when registering a username that already exists
	ErrUsernameTaken = errors.New("ledger: username already taken")

	// ErrInvalidCredential is returned when a password, card number or PIN does not match
	ErrInvalidCredential = errors.New("ledger: invalid credential")

	// ErrCardAlreadyIssued is returned when an account that already holds a card requests another
	ErrCardAlreadyIssued = errors.New("ledger: card already issued")

	// ErrNoCardIssued is returned for card operations on an account without a card
	ErrNoCardIssued = errors.New("ledger: no card issued")

	// ErrInvalidPinFormat is returned when a PIN is not exactly four digits
	ErrInvalidPinFormat = errors.New("ledger: pin must be 4 digits")

	// ErrPinMismatch is returned when the PIN confirmation differs from the new PIN
	ErrPinMismatch = errors.New("ledger: pin confirmation does not match")

	// ErrTargetAccountNotFound is returned when a transfer target does not exist
	ErrTargetAccountNotFound = errors.New("ledger: target account not found")

	// ErrStorageUnavailable is returned when a backing document could not be written.
	// The in-memory state has already been mutated when this is reported.
	ErrStorageUnavailable = errors.New("ledger: storage unavailable")

	// ErrNotAuthenticated is returned for session operations after logout
	ErrNotAuthenticated = errors.New("ledger: not authenticated")

	// ErrOperationNotPermitted is returned when a card session calls a primary-only operation
	ErrOperationNotPermitted = errors.New("ledger: operation not permitted for this session")
)

// IsStorageUnavailable reports whether err carries ErrStorageUnavailable.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsCredentialError reports whether err is a login or PIN mismatch.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}

// ClassifyError returns a short label for err, used as the outcome label in metrics.
func ClassifyError(err error) string {
	if err == nil {
		return "ok"
	}

	switch {
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrCardAlreadyIssued):
		return "card_already_issued"
	case errors.Is(err, ErrNoCardIssued):
		return "no_card_issued"
	case errors.Is(err, ErrInvalidPinFormat):
		return "invalid_pin_format"
	case errors.Is(err, ErrPinMismatch):
		return "pin_mismatch"
	case errors.Is(err, ErrTargetAccountNotFound):
		return "target_not_found"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrOperationNotPermitted):
		return "not_permitted"
	default:
		return "other"
	}
}

// WrapError adds the operation name to err.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}
