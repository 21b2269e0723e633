/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Validation rejections - surfaced before any state mutation
  2. Not-found - referenced transaction / account / budget is missing
  3. Partial application - a store step failed after an earlier one succeeded

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) {
      // 400 to the caller, nothing was written
  }

SEE ALSO:
  - engine.go: Produces PartialApplyError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a debit exceeds the debited
	// account's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrMissingField is returned when a required reference is absent for the
	// transaction type.
	ErrMissingField = errors.New("missing required field")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrSameAccount is returned for a Transfer whose legs are identical.
	ErrSameAccount = errors.New("cannot transfer funds to the same account")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrBudgetNotFound      = errors.New("budget not found")
	ErrMonthlyNotFound     = errors.New("monthly balance not found")

	// ErrDuplicateBudget is returned when a budget already exists for the same
	// (user, category, month).
	ErrDuplicateBudget = errors.New("budget already exists for category and month")

	// ErrForbidden is returned when a record belongs to another user.
	ErrForbidden = errors.New("record belongs to another user")

	// ErrPartialApply wraps a store failure that happened after an earlier
	// step of the same reaction already succeeded.
	ErrPartialApply = errors.New("partial ledger application")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a rejected debit.
type InsufficientFundsError struct {
	AccountID AccountID
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: available %s, requested %s",
		e.AccountID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// MissingFieldError names the absent field.
type MissingFieldError struct {
	Field string
	Type  TransactionType
}

func (e *MissingFieldError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s is required for %s transactions", e.Field, e.Type)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// PartialApplyError records which reaction step failed.
type PartialApplyError struct {
	TransactionID TransactionID
	Step          string // "account", "monthly", "budget"
	Err           error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("ledger step %q failed for transaction %s: %v", e.Step, e.TransactionID, e.Err)
}

func (e *PartialApplyError) Unwrap() []error { return []error{ErrPartialApply, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrSameAccount)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrBudgetNotFound) ||
		errors.Is(err, ErrMonthlyNotFound)
}

// IsConflict returns true for uniqueness and ownership violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateBudget) || errors.Is(err, ErrForbidden)
}
