package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const user ledger.UserID = "user-1"

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    ledger.TxStore
	engine   *ledger.Engine
	svc      *ledger.Service
	accounts *ledger.AccountService
	budgets  *ledger.BudgetService
	notices  *recordingNotifier

	now   time.Time
	month ledger.Month
}

func newFixture(t *testing.T) *fixture {
	return newFixtureOn(t, store.NewMemory(), true)
}

func newFixtureOn(t *testing.T, st ledger.TxStore, strict bool) *fixture {
	log := zerolog.Nop()
	engine := ledger.NewEngine(strict, log)
	notices := &recordingNotifier{}
	now := time.Now().UTC()
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    st,
		engine:   engine,
		svc:      ledger.NewService(st, engine, notices, log),
		accounts: ledger.NewAccountService(st, log),
		budgets:  ledger.NewBudgetService(st, log),
		notices:  notices,
		now:      now,
		month:    ledger.MonthOf(now),
	}
}

func money(v int64) ledger.Money { return decimal.NewFromInt(v) }

func (f *fixture) addAccount(id ledger.AccountID, balance int64) {
	f.t.Helper()
	_, err := f.accounts.Add(f.ctx, ledger.BankAccount{ID: id, UserID: user, Name: string(id), Balance: money(balance)})
	require.NoError(f.t, err)
}

func (f *fixture) balance(id ledger.AccountID) string {
	f.t.Helper()
	acc, err := f.store.GetAccount(f.ctx, user, id)
	require.NoError(f.t, err)
	return acc.Balance.String()
}

func (f *fixture) money(id ledger.AccountID) ledger.Money {
	f.t.Helper()
	acc, err := f.store.GetAccount(f.ctx, user, id)
	require.NoError(f.t, err)
	return acc.Balance
}

func (f *fixture) total() string {
	f.t.Helper()
	total, err := f.store.TotalBalance(f.ctx, user)
	require.NoError(f.t, err)
	return total.String()
}

func (f *fixture) monthly(m ledger.Month) ledger.MonthlyBalance {
	f.t.Helper()
	mb, err := f.svc.MonthlyBalance(f.ctx, user, m)
	require.NoError(f.t, err)
	return mb
}

func (f *fixture) budget(id ledger.BudgetID) ledger.Budget {
	f.t.Helper()
	b, err := f.store.GetBudget(f.ctx, id)
	require.NoError(f.t, err)
	return *b
}

func (f *fixture) createBudget(id ledger.BudgetID, category string, limit int64) ledger.Budget {
	f.t.Helper()
	b, err := f.budgets.Create(f.ctx, ledger.Budget{
		ID:       id,
		UserID:   user,
		Category: category,
		Month:    f.month,
		Limit:    money(limit),
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) create(tx ledger.Transaction) ledger.Result {
	f.t.Helper()
	res, err := f.svc.Create(f.ctx, tx)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) expense(amount int64, wallet ledger.AccountID, category string) ledger.Transaction {
	return ledger.Transaction{UserID: user, Type: ledger.TxExpense, Amount: money(amount), Wallet: wallet, Category: category, Date: f.now}
}

func (f *fixture) income(amount int64, wallet ledger.AccountID, category string) ledger.Transaction {
	return ledger.Transaction{UserID: user, Type: ledger.TxIncome, Amount: money(amount), Wallet: wallet, Category: category, Date: f.now}
}

func (f *fixture) transfer(amount int64, from, to ledger.AccountID) ledger.Transaction {
	return ledger.Transaction{UserID: user, Type: ledger.TxTransfer, Amount: money(amount), From: from, To: to, Date: f.now}
}

// inMonth moves tx to the middle of month m.
func inMonth(tx ledger.Transaction, m ledger.Month) ledger.Transaction {
	tx.Date = m.Start().AddDate(0, 0, 14)
	return tx
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

type recordingNotifier struct {
	notices []ledger.Notice
}

func (r *recordingNotifier) Notify(n ledger.Notice) { r.notices = append(r.notices, n) }

var errInjected = errors.New("injected store failure")

// failingStore wraps a TxStore and fails the selected reaction steps inside
// WithTx.
type failingStore struct {
	ledger.TxStore
	failMonthly bool
	failBudget  bool
	failMark    bool
}

func (s *failingStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return s.TxStore.WithTx(ctx, func(st ledger.Store) error {
		return fn(&failingTx{Store: st, parent: s})
	})
}

type failingTx struct {
	ledger.Store
	parent *failingStore
}

func (s *failingTx) IncrementMonthly(ctx context.Context, userID ledger.UserID, month ledger.Month, inc ledger.MonthlyIncrement) (ledger.MonthlyBalance, error) {
	if s.parent.failMonthly {
		return ledger.MonthlyBalance{}, errInjected
	}
	return s.Store.IncrementMonthly(ctx, userID, month, inc)
}

func (s *failingTx) AdjustBudgetSpent(ctx context.Context, id ledger.BudgetID, delta ledger.Money) (ledger.Budget, error) {
	if s.parent.failBudget {
		return ledger.Budget{}, errInjected
	}
	return s.Store.AdjustBudgetSpent(ctx, id, delta)
}

func (s *failingTx) MarkRecurrenceRun(ctx context.Context, id ledger.TransactionID, at time.Time) error {
	if s.parent.failMark {
		return errInjected
	}
	return s.Store.MarkRecurrenceRun(ctx, id, at)
}
