/*
Package ledger provides the running-balance consistency engine.

PURPOSE:
  This package keeps stored balances correct while transactions mutate.
  Every Income, Expense and Transfer that is created, edited or deleted
  is translated into signed deltas and applied to three stores:
  bank account balances, monthly balance aggregates and budgets.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal amount, never float64
  - Transaction: the mutation source (Income / Expense / Transfer)
  - BankAccount / AccountBook: per-user sub-accounts with running balances
  - MonthlyBalance: cached per-user, per-month totals and running balance
  - Budget: per-user, per-category, per-month spending limit

DESIGN PRINCIPLES:
  1. Precision: all money uses decimal.Decimal
  2. Explicit side effects: Service calls persist() then Engine.OnCreate()
  3. Type Safety: distinct ID types prevent mixing users, accounts and budgets

SEE ALSO:
  - delta.go: TransactionDelta value object
  - engine.go: Reaction engine (onCreate / onUpdate / onDelete)
  - monthly.go: Monthly aggregate manager and PropagateForward
  - budget.go: Budget updater
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money is a decimal amount in the user's currency.
type Money = decimal.Decimal

// NewMoney builds a Money value from a float literal. Intended for tests and
// demo data; wire input goes through ParseMoney.
func NewMoney(v float64) Money { return decimal.NewFromFloat(v) }

// ParseMoney parses a decimal string such as "125.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type AccountID string
type TransactionID string
type BudgetID string

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionType string

const (
	TxIncome   TransactionType = "Income"
	TxExpense  TransactionType = "Expense"
	TxTransfer TransactionType = "Transfer"
)

// Valid reports whether t is one of the three known types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxTransfer:
		return true
	}
	return false
}

// Transaction is the mutation source of the ledger.
//
// INVARIANT: exactly one of {Wallet} or {From, To} is populated, matching Type.
type Transaction struct {
	ID     TransactionID
	UserID UserID
	Type   TransactionType
	Amount Money

	// Income / Expense
	Wallet   AccountID
	Category string // transactionFor

	// Transfer
	From AccountID
	To   AccountID

	Date        time.Time
	Description string

	// Recurrence is orthogonal to ledger correctness; it only drives the
	// recurring scheduler.
	IsRepeat   bool
	Recurrence *Recurrence

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Month returns the month bucket the transaction is attributed to.
func (tx Transaction) Month() Month { return MonthOf(tx.Date) }

// Validate checks amount, type and the type-aware required references.
// It never touches a store.
func (tx Transaction) Validate() error {
	if tx.UserID == "" {
		return &MissingFieldError{Field: "user"}
	}
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, tx.Type)
	}
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, tx.Amount)
	}
	if tx.Date.IsZero() {
		return &MissingFieldError{Field: "transactionDate"}
	}

	switch tx.Type {
	case TxIncome, TxExpense:
		if tx.Wallet == "" {
			return &MissingFieldError{Field: "wallet", Type: tx.Type}
		}
		if strings.TrimSpace(tx.Category) == "" {
			return &MissingFieldError{Field: "transactionFor", Type: tx.Type}
		}
		if tx.From != "" || tx.To != "" {
			return fmt.Errorf("%w: %s must not carry from/to", ErrInvalidType, tx.Type)
		}
	case TxTransfer:
		if tx.From == "" {
			return &MissingFieldError{Field: "from", Type: tx.Type}
		}
		if tx.To == "" {
			return &MissingFieldError{Field: "to", Type: tx.Type}
		}
		if tx.Wallet != "" {
			return fmt.Errorf("%w: Transfer must not carry a wallet", ErrInvalidType)
		}
		if tx.From == tx.To {
			return ErrSameAccount
		}
	}

	if tx.IsRepeat {
		if tx.Recurrence == nil {
			return &MissingFieldError{Field: "frequency", Type: tx.Type}
		}
		if err := tx.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

// BankAccount is a named sub-account (wallet) with its own running balance.
type BankAccount struct {
	ID           AccountID
	UserID       UserID
	Name         string
	AccountType  string
	ProviderName string
	ProviderCode string
	Balance      Money
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountBook is a user's set of sub-accounts plus the cached total.
type AccountBook struct {
	UserID       UserID
	TotalBalance Money
	Accounts     []BankAccount
}

// SumBalances returns the sum of the sub-account balances.
func SumBalances(accounts []BankAccount) Money {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// =============================================================================
// MONTHLY BALANCE AGGREGATE
// =============================================================================

// MonthlyBalance is the cached running total for one (user, month).
//
// INVARIANT:
//
//	Balance(M) = Balance(previous record) + Adjustments(M) + TotalIncome(M) - TotalExpenses(M)
//
// Adjustments records direct bank-account edits (add / edit / delete a
// sub-account) so that forward propagation can recompute Balance exactly.
type MonthlyBalance struct {
	UserID        UserID
	Month         Month
	TotalIncome   Money
	TotalExpenses Money
	Adjustments   Money
	Balance       Money
	UpdatedAt     time.Time
}

// Net is the month's own contribution to the running balance.
func (mb MonthlyBalance) Net() Money {
	return mb.Adjustments.Add(mb.TotalIncome).Sub(mb.TotalExpenses)
}

// =============================================================================
// BUDGET
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Budget is a spending limit for one (user, category, month).
type Budget struct {
	ID             BudgetID
	UserID         UserID
	Category       string
	Month          Month
	Limit          Money
	Spent          Money
	Remaining      Money
	SpentPercent   Money
	IsReceiveAlert bool
	AlertValue     Money // percent threshold, required when IsReceiveAlert
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recalculate derives Remaining and SpentPercent from Limit and Spent.
// Remaining may go negative. SpentPercent clamps at 100 once spent exceeds
// the limit.
func (b *Budget) Recalculate() {
	b.Remaining = b.Limit.Sub(b.Spent)
	b.SpentPercent = SpentPercent(b.Spent, b.Limit)
}

// SpentPercent returns spent/limit*100, clamped to 100 when spent > limit.
// A zero limit yields 100 as soon as anything is spent.
func SpentPercent(spent, limit Money) Money {
	if spent.GreaterThan(limit) {
		return hundred
	}
	if limit.IsZero() {
		return decimal.Zero
	}
	return spent.Div(limit).Mul(hundred).Round(2)
}

// Validate checks the user-editable fields.
func (b Budget) Validate() error {
	if b.UserID == "" {
		return &MissingFieldError{Field: "user"}
	}
	if strings.TrimSpace(b.Category) == "" {
		return &MissingFieldError{Field: "category"}
	}
	if b.Month.IsZero() {
		return &MissingFieldError{Field: "month"}
	}
	if b.Limit.IsNegative() {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidAmount)
	}
	if b.IsReceiveAlert && !b.AlertValue.IsPositive() {
		return &MissingFieldError{Field: "alertValue"}
	}
	return nil
}

// AlertDue reports whether the budget should raise a usage alert.
func (b Budget) AlertDue() bool {
	return b.IsReceiveAlert && b.SpentPercent.GreaterThan(b.AlertValue)
}
