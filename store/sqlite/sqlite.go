/*
Package sqlite provides a SQLite-backed implementation of the ledger stores.

PURPOSE:
  Implements ledger.TxStore using SQLite. In production the same patterns
  apply to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TransactionStore: Transaction records
  ledger.AccountStore:     Bank sub-accounts and per-user totals
  ledger.MonthlyStore:     Monthly balance aggregates
  ledger.BudgetStore:      Budget records
  ledger.TxStore:          Unit of work over a database transaction

KEY TABLES:
  transactions:      Income / Expense / Transfer records (+ recurrence)
  bank_accounts:     Sub-accounts with running balance
  account_books:     Cached total balance per user
  monthly_balances:  One row per (user, month)
  budgets:           One row per (user, category, month), category case-insensitive

MONEY:
  Amounts are stored as decimal TEXT and parsed with shopspring/decimal.
  Increments are read-modify-write inside a write transaction, never
  SQL arithmetic on REAL columns.

CONCURRENCY:
  The pool is limited to one connection and every write runs inside
  WithTx under the store mutex, so an increment can never interleave with
  another writer. Reads outside WithTx wait for the connection.

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, ledger.NewEngine(true, log), notifier, log)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	// reads run directly on the pool
	conn
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" is per connection; a single connection also serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, conn: conn{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		wallet TEXT,
		category TEXT,
		from_account TEXT,
		to_account TEXT,
		tx_date TEXT NOT NULL,
		month TEXT NOT NULL,
		description TEXT,
		is_repeat INTEGER NOT NULL DEFAULT 0,
		frequency TEXT,
		weekday INTEGER,
		day_of_month INTEGER,
		recur_month INTEGER,
		end_after TEXT,
		last_run TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: budget resync and monthly listing
	CREATE INDEX IF NOT EXISTS idx_transactions_user_month
		ON transactions(user_id, month, tx_type);
	CREATE INDEX IF NOT EXISTS idx_transactions_repeat
		ON transactions(is_repeat) WHERE is_repeat = 1;

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT,
		provider_name TEXT,
		provider_code TEXT,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	);

	CREATE TABLE IF NOT EXISTS account_books (
		user_id TEXT PRIMARY KEY,
		total_balance TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS monthly_balances (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		total_income TEXT NOT NULL,
		total_expenses TEXT NOT NULL,
		adjustments TEXT NOT NULL,
		balance TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, month)
	);

	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		month TEXT NOT NULL,
		budget_limit TEXT NOT NULL,
		spent TEXT NOT NULL,
		remaining TEXT NOT NULL,
		spent_percent TEXT NOT NULL,
		is_receive_alert INTEGER NOT NULL DEFAULT 0,
		alert_value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One budget per (user, category, month)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_budgets_user_category_month
		ON budgets(user_id, category COLLATE NOCASE, month);
	CREATE INDEX IF NOT EXISTS idx_budgets_month
		ON budgets(month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// write runs a single write operation in its own unit of work.
func (s *Store) write(ctx context.Context, fn func(c *conn) error) error {
	return s.WithTx(ctx, func(st ledger.Store) error {
		return fn(st.(*conn))
	})
}

func (s *Store) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	return s.write(ctx, func(c *conn) error { return c.SaveTransaction(ctx, tx) })
}

func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return s.write(ctx, func(c *conn) error { return c.UpdateTransaction(ctx, tx) })
}

func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return s.write(ctx, func(c *conn) error { return c.DeleteTransaction(ctx, id) })
}

func (s *Store) MarkRecurrenceRun(ctx context.Context, id ledger.TransactionID, at time.Time) error {
	return s.write(ctx, func(c *conn) error { return c.MarkRecurrenceRun(ctx, id, at) })
}

func (s *Store) SaveAccount(ctx context.Context, acc ledger.BankAccount) error {
	return s.write(ctx, func(c *conn) error { return c.SaveAccount(ctx, acc) })
}

func (s *Store) DeleteAccount(ctx context.Context, userID ledger.UserID, id ledger.AccountID) error {
	return s.write(ctx, func(c *conn) error { return c.DeleteAccount(ctx, userID, id) })
}

func (s *Store) AdjustAccountBalance(ctx context.Context, userID ledger.UserID, id ledger.AccountID, delta ledger.Money) (bal ledger.Money, err error) {
	err = s.write(ctx, func(c *conn) error {
		bal, err = c.AdjustAccountBalance(ctx, userID, id, delta)
		return err
	})
	return bal, err
}

func (s *Store) SetTotalBalance(ctx context.Context, userID ledger.UserID, total ledger.Money) error {
	return s.write(ctx, func(c *conn) error { return c.SetTotalBalance(ctx, userID, total) })
}

func (s *Store) IncrementMonthly(ctx context.Context, userID ledger.UserID, month ledger.Month, inc ledger.MonthlyIncrement) (mb ledger.MonthlyBalance, err error) {
	err = s.write(ctx, func(c *conn) error {
		mb, err = c.IncrementMonthly(ctx, userID, month, inc)
		return err
	})
	return mb, err
}

func (s *Store) SaveMonthlyBalance(ctx context.Context, userID ledger.UserID, month ledger.Month, balance ledger.Money) error {
	return s.write(ctx, func(c *conn) error { return c.SaveMonthlyBalance(ctx, userID, month, balance) })
}

func (s *Store) CreateBudget(ctx context.Context, b ledger.Budget) error {
	return s.write(ctx, func(c *conn) error { return c.CreateBudget(ctx, b) })
}

func (s *Store) UpdateBudget(ctx context.Context, b ledger.Budget) error {
	return s.write(ctx, func(c *conn) error { return c.UpdateBudget(ctx, b) })
}

func (s *Store) DeleteBudget(ctx context.Context, id ledger.BudgetID) error {
	return s.write(ctx, func(c *conn) error { return c.DeleteBudget(ctx, id) })
}

func (s *Store) AdjustBudgetSpent(ctx context.Context, id ledger.BudgetID, delta ledger.Money) (b ledger.Budget, err error) {
	err = s.write(ctx, func(c *conn) error {
		b, err = c.AdjustBudgetSpent(ctx, id, delta)
		return err
	})
	return b, err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "bank_accounts", "account_books", "monthly_balances", "budgets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// CONN - ledger.Store over a *sql.DB or *sql.Tx
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q queryer
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

const transactionColumns = `
	id, user_id, tx_type, amount, wallet, category, from_account, to_account,
	tx_date, description, is_repeat, frequency, weekday, day_of_month,
	recur_month, end_after, last_run, created_at, updated_at`

func (c *conn) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, user_id, tx_type, amount, wallet, category, from_account, to_account,
		 tx_date, month, description, is_repeat, frequency, weekday, day_of_month,
		 recur_month, end_after, last_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := append([]any{tx.ID, tx.UserID, tx.Type, tx.Amount.String()}, transactionArgs(tx)...)
	args = append(args, formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt))
	if _, err := c.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (c *conn) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	query := `
		UPDATE transactions SET
			tx_type = ?, amount = ?, wallet = ?, category = ?, from_account = ?, to_account = ?,
			tx_date = ?, month = ?, description = ?, is_repeat = ?, frequency = ?, weekday = ?,
			day_of_month = ?, recur_month = ?, end_after = ?, last_run = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	args := append([]any{tx.Type, tx.Amount.String()}, transactionArgs(tx)...)
	args = append(args, formatTime(tx.UpdatedAt), tx.ID, tx.UserID)
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireRow(res, ledger.ErrTransactionNotFound)
}

// transactionArgs returns the columns from wallet through last_run.
func transactionArgs(tx ledger.Transaction) []any {
	var (
		frequency, endAfter, lastRun    sql.NullString
		weekday, dayOfMonth, recurMonth sql.NullInt64
	)
	if r := tx.Recurrence; r != nil {
		frequency = nullString(string(r.Frequency))
		weekday = sql.NullInt64{Int64: int64(r.Weekday), Valid: true}
		dayOfMonth = sql.NullInt64{Int64: int64(r.DayOfMonth), Valid: true}
		recurMonth = sql.NullInt64{Int64: int64(r.Month), Valid: true}
		endAfter = nullTime(r.EndAfter)
		lastRun = nullTime(r.LastRun)
	}
	return []any{
		nullString(string(tx.Wallet)),
		nullString(tx.Category),
		nullString(string(tx.From)),
		nullString(string(tx.To)),
		formatTime(tx.Date),
		tx.Month().String(),
		nullString(tx.Description),
		tx.IsRepeat,
		frequency, weekday, dayOfMonth, recurMonth, endAfter, lastRun,
	}
}

func (c *conn) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	res, err := c.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireRow(res, ledger.ErrTransactionNotFound)
}

func (c *conn) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	txs, err := c.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ledger.ErrTransactionNotFound
	}
	return &txs[0], nil
}

func (c *conn) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		where = append(where, "tx_type = ?")
		args = append(args, f.Type)
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	if f.Month != nil {
		where = append(where, "month = ?")
		args = append(args, f.Month.String())
	}
	if f.Repeat != nil {
		where = append(where, "is_repeat = ?")
		args = append(args, *f.Repeat)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY tx_date ASC, id ASC"
	return c.queryTransactions(ctx, query, args...)
}

func (c *conn) MarkRecurrenceRun(ctx context.Context, id ledger.TransactionID, at time.Time) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE transactions SET last_run = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark recurrence run: %w", err)
	}
	return requireRow(res, ledger.ErrTransactionNotFound)
}

func (c *conn) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx                                      ledger.Transaction
		amount, txDate, createdAt, updatedAt    string
		wallet, category, from, to, description sql.NullString
		frequency, endAfter, lastRun            sql.NullString
		weekday, dayOfMonth, recurMonth         sql.NullInt64
	)

	err := rows.Scan(
		&tx.ID, &tx.UserID, &tx.Type, &amount, &wallet, &category, &from, &to,
		&txDate, &description, &tx.IsRepeat, &frequency, &weekday, &dayOfMonth,
		&recurMonth, &endAfter, &lastRun, &createdAt, &updatedAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = parseDecimal(amount)
	tx.Wallet = ledger.AccountID(wallet.String)
	tx.Category = category.String
	tx.From = ledger.AccountID(from.String)
	tx.To = ledger.AccountID(to.String)
	tx.Description = description.String
	tx.Date = parseTime(txDate)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)

	if frequency.Valid {
		tx.Recurrence = &ledger.Recurrence{
			Frequency:  ledger.Frequency(frequency.String),
			Weekday:    time.Weekday(weekday.Int64),
			DayOfMonth: int(dayOfMonth.Int64),
			Month:      time.Month(recurMonth.Int64),
			EndAfter:   parseTime(endAfter.String),
			LastRun:    parseTime(lastRun.String),
		}
	}
	return tx, nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

const accountColumns = `id, user_id, name, account_type, provider_name, provider_code, balance, created_at, updated_at`

func (c *conn) GetAccount(ctx context.Context, userID ledger.UserID, id ledger.AccountID) (*ledger.BankAccount, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE user_id = ? AND id = ?`, userID, id)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *conn) ListAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.BankAccount, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.BankAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (c *conn) SaveAccount(ctx context.Context, acc ledger.BankAccount) error {
	query := `
		INSERT INTO bank_accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			provider_name = excluded.provider_name,
			provider_code = excluded.provider_code,
			balance = excluded.balance,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		acc.ID, acc.UserID, acc.Name,
		nullString(acc.AccountType), nullString(acc.ProviderName), nullString(acc.ProviderCode),
		acc.Balance.String(), formatTime(acc.CreatedAt), formatTime(acc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (c *conn) DeleteAccount(ctx context.Context, userID ledger.UserID, id ledger.AccountID) error {
	res, err := c.q.ExecContext(ctx, `DELETE FROM bank_accounts WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return requireRow(res, ledger.ErrAccountNotFound)
}

func (c *conn) AdjustAccountBalance(ctx context.Context, userID ledger.UserID, id ledger.AccountID, delta ledger.Money) (ledger.Money, error) {
	acc, err := c.GetAccount(ctx, userID, id)
	if err != nil {
		return decimal.Zero, err
	}
	balance := acc.Balance.Add(delta)
	_, err = c.q.ExecContext(ctx,
		`UPDATE bank_accounts SET balance = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		balance.String(), formatTime(time.Now()), userID, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust account balance: %w", err)
	}
	return balance, nil
}

func (c *conn) TotalBalance(ctx context.Context, userID ledger.UserID) (ledger.Money, error) {
	var total string
	err := c.q.QueryRowContext(ctx,
		`SELECT total_balance FROM account_books WHERE user_id = ?`, userID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get total balance: %w", err)
	}
	return parseDecimal(total), nil
}

func (c *conn) SetTotalBalance(ctx context.Context, userID ledger.UserID, total ledger.Money) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO account_books (user_id, total_balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_balance = excluded.total_balance,
			updated_at = excluded.updated_at
	`, userID, total.String(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set total balance: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.BankAccount, error) {
	var (
		acc                                     ledger.BankAccount
		accountType, providerName, providerCode sql.NullString
		balance, createdAt, updatedAt           string
	)
	err := row.Scan(&acc.ID, &acc.UserID, &acc.Name, &accountType, &providerName, &providerCode,
		&balance, &createdAt, &updatedAt)
	if err != nil {
		return acc, err
	}
	acc.AccountType = accountType.String
	acc.ProviderName = providerName.String
	acc.ProviderCode = providerCode.String
	acc.Balance = parseDecimal(balance)
	acc.CreatedAt = parseTime(createdAt)
	acc.UpdatedAt = parseTime(updatedAt)
	return acc, nil
}

// =============================================================================
// MONTHLY STORE
// =============================================================================

const monthlyColumns = `user_id, month, total_income, total_expenses, adjustments, balance, updated_at`

func (c *conn) GetMonthly(ctx context.Context, userID ledger.UserID, month ledger.Month) (*ledger.MonthlyBalance, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+monthlyColumns+` FROM monthly_balances WHERE user_id = ? AND month = ?`,
		userID, month.String())
	mb, err := scanMonthly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mb, nil
}

func (c *conn) ListMonthly(ctx context.Context, userID ledger.UserID) ([]ledger.MonthlyBalance, error) {
	// "YYYY-MM" sorts chronologically as text.
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+monthlyColumns+` FROM monthly_balances WHERE user_id = ? ORDER BY month ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly balances: %w", err)
	}
	defer rows.Close()

	var result []ledger.MonthlyBalance
	for rows.Next() {
		mb, err := scanMonthly(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, mb)
	}
	return result, rows.Err()
}

func (c *conn) IncrementMonthly(ctx context.Context, userID ledger.UserID, month ledger.Month, inc ledger.MonthlyIncrement) (ledger.MonthlyBalance, error) {
	existing, err := c.GetMonthly(ctx, userID, month)
	if err != nil {
		return ledger.MonthlyBalance{}, err
	}
	mb := ledger.MonthlyBalance{
		UserID:        userID,
		Month:         month,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Adjustments:   decimal.Zero,
		Balance:       decimal.Zero,
	}
	if existing != nil {
		mb = *existing
	}
	mb.TotalIncome = mb.TotalIncome.Add(inc.Income)
	mb.TotalExpenses = mb.TotalExpenses.Add(inc.Expenses)
	mb.Adjustments = mb.Adjustments.Add(inc.Adjustments)
	mb.UpdatedAt = time.Now().UTC()

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO monthly_balances (`+monthlyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET
			total_income = excluded.total_income,
			total_expenses = excluded.total_expenses,
			adjustments = excluded.adjustments,
			updated_at = excluded.updated_at
	`, userID, month.String(), mb.TotalIncome.String(), mb.TotalExpenses.String(),
		mb.Adjustments.String(), mb.Balance.String(), formatTime(mb.UpdatedAt))
	if err != nil {
		return ledger.MonthlyBalance{}, fmt.Errorf("failed to increment monthly balance: %w", err)
	}
	return mb, nil
}

func (c *conn) SaveMonthlyBalance(ctx context.Context, userID ledger.UserID, month ledger.Month, balance ledger.Money) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE monthly_balances SET balance = ?, updated_at = ? WHERE user_id = ? AND month = ?`,
		balance.String(), formatTime(time.Now()), userID, month.String())
	if err != nil {
		return fmt.Errorf("failed to save monthly balance: %w", err)
	}
	return requireRow(res, ledger.ErrMonthlyNotFound)
}

func scanMonthly(row scanner) (ledger.MonthlyBalance, error) {
	var (
		mb                                                 ledger.MonthlyBalance
		month, income, expenses, adjustments, balance, upd string
	)
	if err := row.Scan(&mb.UserID, &month, &income, &expenses, &adjustments, &balance, &upd); err != nil {
		return mb, err
	}
	m, err := ledger.ParseMonth(month)
	if err != nil {
		return mb, err
	}
	mb.Month = m
	mb.TotalIncome = parseDecimal(income)
	mb.TotalExpenses = parseDecimal(expenses)
	mb.Adjustments = parseDecimal(adjustments)
	mb.Balance = parseDecimal(balance)
	mb.UpdatedAt = parseTime(upd)
	return mb, nil
}

// =============================================================================
// BUDGET STORE
// =============================================================================

const budgetColumns = `id, user_id, category, month, budget_limit, spent, remaining, spent_percent,
	is_receive_alert, alert_value, created_at, updated_at`

func (c *conn) CreateBudget(ctx context.Context, b ledger.Budget) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Category, b.Month.String(), b.Limit.String(), b.Spent.String(),
		b.Remaining.String(), b.SpentPercent.String(), b.IsReceiveAlert, b.AlertValue.String(),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateBudget
		}
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func (c *conn) UpdateBudget(ctx context.Context, b ledger.Budget) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE budgets SET
			category = ?, month = ?, budget_limit = ?, spent = ?, remaining = ?,
			spent_percent = ?, is_receive_alert = ?, alert_value = ?, updated_at = ?
		WHERE id = ?
	`, b.Category, b.Month.String(), b.Limit.String(), b.Spent.String(), b.Remaining.String(),
		b.SpentPercent.String(), b.IsReceiveAlert, b.AlertValue.String(), formatTime(b.UpdatedAt), b.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateBudget
		}
		return fmt.Errorf("failed to update budget: %w", err)
	}
	return requireRow(res, ledger.ErrBudgetNotFound)
}

func (c *conn) DeleteBudget(ctx context.Context, id ledger.BudgetID) error {
	res, err := c.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return requireRow(res, ledger.ErrBudgetNotFound)
}

func (c *conn) GetBudget(ctx context.Context, id ledger.BudgetID) (*ledger.Budget, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrBudgetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *conn) FindBudget(ctx context.Context, userID ledger.UserID, category string, month ledger.Month) (*ledger.Budget, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND category = ? COLLATE NOCASE AND month = ?`,
		userID, category, month.String())
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *conn) ListBudgets(ctx context.Context, f ledger.BudgetFilter) ([]ledger.Budget, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Month != nil {
		where = append(where, "month = ?")
		args = append(args, f.Month.String())
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	query := `SELECT ` + budgetColumns + ` FROM budgets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, id"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []ledger.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (c *conn) AdjustBudgetSpent(ctx context.Context, id ledger.BudgetID, delta ledger.Money) (ledger.Budget, error) {
	b, err := c.GetBudget(ctx, id)
	if err != nil {
		return ledger.Budget{}, err
	}
	b.Spent = b.Spent.Add(delta)
	b.Recalculate()
	b.UpdatedAt = time.Now().UTC()

	_, err = c.q.ExecContext(ctx,
		`UPDATE budgets SET spent = ?, remaining = ?, spent_percent = ?, updated_at = ? WHERE id = ?`,
		b.Spent.String(), b.Remaining.String(), b.SpentPercent.String(), formatTime(b.UpdatedAt), id)
	if err != nil {
		return ledger.Budget{}, fmt.Errorf("failed to adjust budget spent: %w", err)
	}
	return *b, nil
}

func scanBudget(row scanner) (ledger.Budget, error) {
	var (
		b                                          ledger.Budget
		month, limit, spent, remaining, pct, alert string
		createdAt, updatedAt                       string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Category, &month, &limit, &spent, &remaining, &pct,
		&b.IsReceiveAlert, &alert, &createdAt, &updatedAt)
	if err != nil {
		return b, err
	}
	m, err := ledger.ParseMonth(month)
	if err != nil {
		return b, err
	}
	b.Month = m
	b.Limit = parseDecimal(limit)
	b.Spent = parseDecimal(spent)
	b.Remaining = parseDecimal(remaining)
	b.SpentPercent = parseDecimal(pct)
	b.AlertValue = parseDecimal(alert)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
