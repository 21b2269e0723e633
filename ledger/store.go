/*
store.go - Persistence interfaces for the ledger

PURPOSE:
  Defines the boundary between the reaction engine and the database.
  Each store exposes an atomic increment so that two transactions touching
  the same account, month or budget never lose an update.

KEY INTERFACES:
  TransactionStore: Transaction records (the mutation source)
  AccountStore:     Bank sub-accounts and the per-user total
  MonthlyStore:     Monthly balance aggregates (upsert-increment)
  BudgetStore:      Budget records (incremental spent)
  Store:            All of the above
  TxStore:          Store plus a unit of work (WithTx)

ATOMICITY:
  Increment operations (AdjustAccountBalance, IncrementMonthly,
  AdjustBudgetSpent) are read-modify-write under the store's write lock,
  never a caller-side read followed by a separate write.

  Cross-store consistency comes from WithTx: the Service runs persist +
  reaction inside one unit of work, so a failure rolls back every step.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	UserID   UserID
	Type     TransactionType
	Category string
	Month    *Month
	Repeat   *bool
}

type TransactionStore interface {
	// SaveTransaction inserts a new transaction.
	SaveTransaction(ctx context.Context, tx Transaction) error

	// UpdateTransaction replaces an existing transaction.
	// Returns ErrTransactionNotFound if it does not exist.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// DeleteTransaction removes a transaction.
	// Returns ErrTransactionNotFound if it does not exist.
	DeleteTransaction(ctx context.Context, id TransactionID) error

	// GetTransaction returns ErrTransactionNotFound when missing.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// ListTransactions returns matches ordered by Date ascending.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// MarkRecurrenceRun records the day of the latest generated occurrence.
	MarkRecurrenceRun(ctx context.Context, id TransactionID, at time.Time) error
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

type AccountStore interface {
	// GetAccount returns ErrAccountNotFound when the user has no such account.
	GetAccount(ctx context.Context, userID UserID, id AccountID) (*BankAccount, error)

	// ListAccounts returns the user's sub-accounts ordered by name.
	ListAccounts(ctx context.Context, userID UserID) ([]BankAccount, error)

	// SaveAccount inserts or replaces a sub-account.
	SaveAccount(ctx context.Context, acc BankAccount) error

	// DeleteAccount returns ErrAccountNotFound when missing.
	DeleteAccount(ctx context.Context, userID UserID, id AccountID) error

	// AdjustAccountBalance atomically adds delta (may be negative) and
	// returns the new balance.
	AdjustAccountBalance(ctx context.Context, userID UserID, id AccountID, delta Money) (Money, error)

	// TotalBalance returns the cached total, zero if never set.
	TotalBalance(ctx context.Context, userID UserID) (Money, error)

	// SetTotalBalance stores the cached total.
	SetTotalBalance(ctx context.Context, userID UserID, total Money) error
}

// =============================================================================
// MONTHLY STORE
// =============================================================================

// MonthlyIncrement is the set of deltas applied to one month record.
type MonthlyIncrement struct {
	Income      Money
	Expenses    Money
	Adjustments Money
}

type MonthlyStore interface {
	// GetMonthly returns nil, nil when the month has no record.
	GetMonthly(ctx context.Context, userID UserID, month Month) (*MonthlyBalance, error)

	// ListMonthly returns every record of the user, ordered by month ascending.
	ListMonthly(ctx context.Context, userID UserID) ([]MonthlyBalance, error)

	// IncrementMonthly atomically upserts the record and adds the deltas to
	// its totals. Balance is left untouched; PropagateForward recomputes it.
	IncrementMonthly(ctx context.Context, userID UserID, month Month, inc MonthlyIncrement) (MonthlyBalance, error)

	// SaveMonthlyBalance writes the cached Balance of an existing record.
	SaveMonthlyBalance(ctx context.Context, userID UserID, month Month, balance Money) error
}

// =============================================================================
// BUDGET STORE
// =============================================================================

// BudgetFilter narrows ListBudgets. Zero values match everything.
type BudgetFilter struct {
	UserID   UserID
	Month    *Month
	Category string
}

type BudgetStore interface {
	// CreateBudget returns ErrDuplicateBudget when (user, category, month)
	// already has a budget.
	CreateBudget(ctx context.Context, b Budget) error

	// UpdateBudget replaces a budget. Returns ErrBudgetNotFound when missing.
	UpdateBudget(ctx context.Context, b Budget) error

	// DeleteBudget returns ErrBudgetNotFound when missing.
	DeleteBudget(ctx context.Context, id BudgetID) error

	// GetBudget returns ErrBudgetNotFound when missing.
	GetBudget(ctx context.Context, id BudgetID) (*Budget, error)

	// FindBudget returns nil, nil when no budget is configured.
	FindBudget(ctx context.Context, userID UserID, category string, month Month) (*Budget, error)

	ListBudgets(ctx context.Context, filter BudgetFilter) ([]Budget, error)

	// AdjustBudgetSpent atomically adds delta to Spent, recomputes
	// Remaining / SpentPercent and returns the updated budget.
	AdjustBudgetSpent(ctx context.Context, id BudgetID, delta Money) (Budget, error)
}

// =============================================================================
// COMPOSED STORES
// =============================================================================

type Store interface {
	TransactionStore
	AccountStore
	MonthlyStore
	BudgetStore
}

// TxStore wraps Store with a unit of work.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the passed Store is
	// rolled back. If fn returns nil, the writes are committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
