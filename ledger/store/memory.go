// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore. Every public method takes the lock and
// delegates to the unlocked state; WithTx holds the lock for the whole unit
// of work and restores a snapshot when fn fails.
type Memory struct {
	mu sync.RWMutex
	st *state
}

type accountKey struct {
	UserID    ledger.UserID
	AccountID ledger.AccountID
}

type monthKey struct {
	UserID ledger.UserID
	Month  ledger.Month
}

type state struct {
	transactions map[ledger.TransactionID]ledger.Transaction
	accounts     map[accountKey]ledger.BankAccount
	totals       map[ledger.UserID]ledger.Money
	monthly      map[monthKey]ledger.MonthlyBalance
	budgets      map[ledger.BudgetID]ledger.Budget
}

func newState() *state {
	return &state{
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		accounts:     make(map[accountKey]ledger.BankAccount),
		totals:       make(map[ledger.UserID]ledger.Money),
		monthly:      make(map[monthKey]ledger.MonthlyBalance),
		budgets:      make(map[ledger.BudgetID]ledger.Budget),
	}
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

var _ ledger.TxStore = (*Memory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newState()
	return nil
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.transactions {
		c.transactions[k] = copyTransaction(v)
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.totals {
		c.totals[k] = v
	}
	for k, v := range s.monthly {
		c.monthly[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	return c
}

func copyTransaction(tx ledger.Transaction) ledger.Transaction {
	if tx.Recurrence != nil {
		r := *tx.Recurrence
		tx.Recurrence = &r
	}
	return tx
}

// =============================================================================
// LOCKED WRAPPERS
// =============================================================================

func (m *Memory) read(fn func(*state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.st)
}

func (m *Memory) write(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

func (m *Memory) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	return m.write(func(s *state) error { return s.SaveTransaction(ctx, tx) })
}

func (m *Memory) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return m.write(func(s *state) error { return s.UpdateTransaction(ctx, tx) })
}

func (m *Memory) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return m.write(func(s *state) error { return s.DeleteTransaction(ctx, id) })
}

func (m *Memory) GetTransaction(ctx context.Context, id ledger.TransactionID) (tx *ledger.Transaction, err error) {
	err = m.read(func(s *state) error {
		tx, err = s.GetTransaction(ctx, id)
		return err
	})
	return tx, err
}

func (m *Memory) ListTransactions(ctx context.Context, f ledger.TransactionFilter) (txs []ledger.Transaction, err error) {
	err = m.read(func(s *state) error {
		txs, err = s.ListTransactions(ctx, f)
		return err
	})
	return txs, err
}

func (m *Memory) MarkRecurrenceRun(ctx context.Context, id ledger.TransactionID, at time.Time) error {
	return m.write(func(s *state) error { return s.MarkRecurrenceRun(ctx, id, at) })
}

func (m *Memory) GetAccount(ctx context.Context, userID ledger.UserID, id ledger.AccountID) (acc *ledger.BankAccount, err error) {
	err = m.read(func(s *state) error {
		acc, err = s.GetAccount(ctx, userID, id)
		return err
	})
	return acc, err
}

func (m *Memory) ListAccounts(ctx context.Context, userID ledger.UserID) (accs []ledger.BankAccount, err error) {
	err = m.read(func(s *state) error {
		accs, err = s.ListAccounts(ctx, userID)
		return err
	})
	return accs, err
}

func (m *Memory) SaveAccount(ctx context.Context, acc ledger.BankAccount) error {
	return m.write(func(s *state) error { return s.SaveAccount(ctx, acc) })
}

func (m *Memory) DeleteAccount(ctx context.Context, userID ledger.UserID, id ledger.AccountID) error {
	return m.write(func(s *state) error { return s.DeleteAccount(ctx, userID, id) })
}

func (m *Memory) AdjustAccountBalance(ctx context.Context, userID ledger.UserID, id ledger.AccountID, delta ledger.Money) (bal ledger.Money, err error) {
	err = m.write(func(s *state) error {
		bal, err = s.AdjustAccountBalance(ctx, userID, id, delta)
		return err
	})
	return bal, err
}

func (m *Memory) TotalBalance(ctx context.Context, userID ledger.UserID) (total ledger.Money, err error) {
	err = m.read(func(s *state) error {
		total, err = s.TotalBalance(ctx, userID)
		return err
	})
	return total, err
}

func (m *Memory) SetTotalBalance(ctx context.Context, userID ledger.UserID, total ledger.Money) error {
	return m.write(func(s *state) error { return s.SetTotalBalance(ctx, userID, total) })
}

func (m *Memory) GetMonthly(ctx context.Context, userID ledger.UserID, month ledger.Month) (mb *ledger.MonthlyBalance, err error) {
	err = m.read(func(s *state) error {
		mb, err = s.GetMonthly(ctx, userID, month)
		return err
	})
	return mb, err
}

func (m *Memory) ListMonthly(ctx context.Context, userID ledger.UserID) (mbs []ledger.MonthlyBalance, err error) {
	err = m.read(func(s *state) error {
		mbs, err = s.ListMonthly(ctx, userID)
		return err
	})
	return mbs, err
}

func (m *Memory) IncrementMonthly(ctx context.Context, userID ledger.UserID, month ledger.Month, inc ledger.MonthlyIncrement) (mb ledger.MonthlyBalance, err error) {
	err = m.write(func(s *state) error {
		mb, err = s.IncrementMonthly(ctx, userID, month, inc)
		return err
	})
	return mb, err
}

func (m *Memory) SaveMonthlyBalance(ctx context.Context, userID ledger.UserID, month ledger.Month, balance ledger.Money) error {
	return m.write(func(s *state) error { return s.SaveMonthlyBalance(ctx, userID, month, balance) })
}

func (m *Memory) CreateBudget(ctx context.Context, b ledger.Budget) error {
	return m.write(func(s *state) error { return s.CreateBudget(ctx, b) })
}

func (m *Memory) UpdateBudget(ctx context.Context, b ledger.Budget) error {
	return m.write(func(s *state) error { return s.UpdateBudget(ctx, b) })
}

func (m *Memory) DeleteBudget(ctx context.Context, id ledger.BudgetID) error {
	return m.write(func(s *state) error { return s.DeleteBudget(ctx, id) })
}

func (m *Memory) GetBudget(ctx context.Context, id ledger.BudgetID) (b *ledger.Budget, err error) {
	err = m.read(func(s *state) error {
		b, err = s.GetBudget(ctx, id)
		return err
	})
	return b, err
}

func (m *Memory) FindBudget(ctx context.Context, userID ledger.UserID, category string, month ledger.Month) (b *ledger.Budget, err error) {
	err = m.read(func(s *state) error {
		b, err = s.FindBudget(ctx, userID, category, month)
		return err
	})
	return b, err
}

func (m *Memory) ListBudgets(ctx context.Context, f ledger.BudgetFilter) (bs []ledger.Budget, err error) {
	err = m.read(func(s *state) error {
		bs, err = s.ListBudgets(ctx, f)
		return err
	})
	return bs, err
}

func (m *Memory) AdjustBudgetSpent(ctx context.Context, id ledger.BudgetID, delta ledger.Money) (b ledger.Budget, err error) {
	err = m.write(func(s *state) error {
		b, err = s.AdjustBudgetSpent(ctx, id, delta)
		return err
	})
	return b, err
}

// =============================================================================
// UNLOCKED STATE - Also the Store handed to WithTx callbacks
// =============================================================================

func (s *state) SaveTransaction(_ context.Context, tx ledger.Transaction) error {
	s.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

func (s *state) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	if _, ok := s.transactions[tx.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	s.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

func (s *state) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	if _, ok := s.transactions[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *state) GetTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	tx, ok := s.transactions[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	tx = copyTransaction(tx)
	return &tx, nil
}

func (s *state) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, tx := range s.transactions {
		if f.UserID != "" && tx.UserID != f.UserID {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.Category != "" && !strings.EqualFold(tx.Category, f.Category) {
			continue
		}
		if f.Month != nil && !tx.Month().Equal(*f.Month) {
			continue
		}
		if f.Repeat != nil && tx.IsRepeat != *f.Repeat {
			continue
		}
		result = append(result, copyTransaction(tx))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (s *state) MarkRecurrenceRun(_ context.Context, id ledger.TransactionID, at time.Time) error {
	tx, ok := s.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	tx = copyTransaction(tx)
	if tx.Recurrence != nil {
		tx.Recurrence.LastRun = at
	}
	s.transactions[id] = tx
	return nil
}

func (s *state) GetAccount(_ context.Context, userID ledger.UserID, id ledger.AccountID) (*ledger.BankAccount, error) {
	acc, ok := s.accounts[accountKey{userID, id}]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &acc, nil
}

func (s *state) ListAccounts(_ context.Context, userID ledger.UserID) ([]ledger.BankAccount, error) {
	var result []ledger.BankAccount
	for k, acc := range s.accounts {
		if k.UserID == userID {
			result = append(result, acc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *state) SaveAccount(_ context.Context, acc ledger.BankAccount) error {
	s.accounts[accountKey{acc.UserID, acc.ID}] = acc
	return nil
}

func (s *state) DeleteAccount(_ context.Context, userID ledger.UserID, id ledger.AccountID) error {
	k := accountKey{userID, id}
	if _, ok := s.accounts[k]; !ok {
		return ledger.ErrAccountNotFound
	}
	delete(s.accounts, k)
	return nil
}

func (s *state) AdjustAccountBalance(_ context.Context, userID ledger.UserID, id ledger.AccountID, delta ledger.Money) (ledger.Money, error) {
	k := accountKey{userID, id}
	acc, ok := s.accounts[k]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	acc.Balance = acc.Balance.Add(delta)
	s.accounts[k] = acc
	return acc.Balance, nil
}

func (s *state) TotalBalance(_ context.Context, userID ledger.UserID) (ledger.Money, error) {
	if total, ok := s.totals[userID]; ok {
		return total, nil
	}
	return decimal.Zero, nil
}

func (s *state) SetTotalBalance(_ context.Context, userID ledger.UserID, total ledger.Money) error {
	s.totals[userID] = total
	return nil
}

func (s *state) GetMonthly(_ context.Context, userID ledger.UserID, month ledger.Month) (*ledger.MonthlyBalance, error) {
	mb, ok := s.monthly[monthKey{userID, month}]
	if !ok {
		return nil, nil
	}
	return &mb, nil
}

func (s *state) ListMonthly(_ context.Context, userID ledger.UserID) ([]ledger.MonthlyBalance, error) {
	var result []ledger.MonthlyBalance
	for k, mb := range s.monthly {
		if k.UserID == userID {
			result = append(result, mb)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month.Before(result[j].Month)
	})
	return result, nil
}

func (s *state) IncrementMonthly(_ context.Context, userID ledger.UserID, month ledger.Month, inc ledger.MonthlyIncrement) (ledger.MonthlyBalance, error) {
	k := monthKey{userID, month}
	mb, ok := s.monthly[k]
	if !ok {
		mb = ledger.MonthlyBalance{
			UserID:        userID,
			Month:         month,
			TotalIncome:   decimal.Zero,
			TotalExpenses: decimal.Zero,
			Adjustments:   decimal.Zero,
			Balance:       decimal.Zero,
		}
	}
	mb.TotalIncome = mb.TotalIncome.Add(inc.Income)
	mb.TotalExpenses = mb.TotalExpenses.Add(inc.Expenses)
	mb.Adjustments = mb.Adjustments.Add(inc.Adjustments)
	mb.UpdatedAt = time.Now().UTC()
	s.monthly[k] = mb
	return mb, nil
}

func (s *state) SaveMonthlyBalance(_ context.Context, userID ledger.UserID, month ledger.Month, balance ledger.Money) error {
	k := monthKey{userID, month}
	mb, ok := s.monthly[k]
	if !ok {
		return ledger.ErrMonthlyNotFound
	}
	mb.Balance = balance
	mb.UpdatedAt = time.Now().UTC()
	s.monthly[k] = mb
	return nil
}

func (s *state) CreateBudget(_ context.Context, b ledger.Budget) error {
	if s.findBudget(b.UserID, b.Category, b.Month, "") != nil {
		return ledger.ErrDuplicateBudget
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *state) UpdateBudget(_ context.Context, b ledger.Budget) error {
	if _, ok := s.budgets[b.ID]; !ok {
		return ledger.ErrBudgetNotFound
	}
	if s.findBudget(b.UserID, b.Category, b.Month, b.ID) != nil {
		return ledger.ErrDuplicateBudget
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *state) DeleteBudget(_ context.Context, id ledger.BudgetID) error {
	if _, ok := s.budgets[id]; !ok {
		return ledger.ErrBudgetNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *state) GetBudget(_ context.Context, id ledger.BudgetID) (*ledger.Budget, error) {
	b, ok := s.budgets[id]
	if !ok {
		return nil, ledger.ErrBudgetNotFound
	}
	return &b, nil
}

func (s *state) FindBudget(_ context.Context, userID ledger.UserID, category string, month ledger.Month) (*ledger.Budget, error) {
	return s.findBudget(userID, category, month, ""), nil
}

// findBudget matches category case-insensitively, skipping the budget exclude.
func (s *state) findBudget(userID ledger.UserID, category string, month ledger.Month, exclude ledger.BudgetID) *ledger.Budget {
	for id, b := range s.budgets {
		if id == exclude {
			continue
		}
		if b.UserID == userID && b.Month.Equal(month) && strings.EqualFold(b.Category, category) {
			return &b
		}
	}
	return nil
}

func (s *state) ListBudgets(_ context.Context, f ledger.BudgetFilter) ([]ledger.Budget, error) {
	var result []ledger.Budget
	for _, b := range s.budgets {
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.Month != nil && !b.Month.Equal(*f.Month) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category == result[j].Category {
			return result[i].ID < result[j].ID
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

func (s *state) AdjustBudgetSpent(_ context.Context, id ledger.BudgetID, delta ledger.Money) (ledger.Budget, error) {
	b, ok := s.budgets[id]
	if !ok {
		return ledger.Budget{}, ledger.ErrBudgetNotFound
	}
	b.Spent = b.Spent.Add(delta)
	b.Recalculate()
	b.UpdatedAt = time.Now().UTC()
	s.budgets[id] = b
	return b, nil
}
