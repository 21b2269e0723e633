package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/ledger"
)

const user ledger.UserID = "user-1"

func newStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func money(v int64) ledger.Money { return decimal.NewFromInt(v) }

func TestStore_ServiceFlow(t *testing.T) {
	// GIVEN: a SQLite-backed ledger with one account
	ctx := context.Background()
	st := newStore(t)
	log := zerolog.Nop()
	svc := ledger.NewService(st, ledger.NewEngine(true, log), ledger.NopNotifier{}, log)
	accounts := ledger.NewAccountService(st, log)
	budgets := ledger.NewBudgetService(st, log)

	now := time.Now().UTC()
	month := ledger.MonthOf(now)
	_, err := accounts.Add(ctx, ledger.BankAccount{ID: "x", UserID: user, Name: "Checking", Balance: money(1000)})
	require.NoError(t, err)
	_, err = budgets.Create(ctx, ledger.Budget{ID: "food", UserID: user, Category: "Food", Month: month, Limit: money(500)})
	require.NoError(t, err)

	// WHEN: an expense is created and then edited
	res, err := svc.Create(ctx, ledger.Transaction{UserID: user, Type: ledger.TxExpense, Amount: money(200), Wallet: "x", Category: "food", Date: now})
	require.NoError(t, err)
	tx := res.Transaction
	tx.Amount = money(350)
	_, err = svc.Update(ctx, tx)
	require.NoError(t, err)

	// THEN: every cached aggregate reflects the edited amount
	acc, err := st.GetAccount(ctx, user, "x")
	require.NoError(t, err)
	assert.Equal(t, "650", acc.Balance.String())

	total, err := st.TotalBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "650", total.String())

	mb, err := st.GetMonthly(ctx, user, month)
	require.NoError(t, err)
	require.NotNil(t, mb)
	assert.Equal(t, "350", mb.TotalExpenses.String())
	assert.Equal(t, "650", mb.Balance.String())

	b, err := st.GetBudget(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, "350", b.Spent.String())
	assert.Equal(t, "150", b.Remaining.String())
	assert.Equal(t, "70", b.SpentPercent.String())

	// WHEN: the expense is deleted
	_, err = svc.Delete(ctx, user, tx.ID)
	require.NoError(t, err)

	// THEN: everything returns to the starting point
	acc, err = st.GetAccount(ctx, user, "x")
	require.NoError(t, err)
	assert.Equal(t, "1000", acc.Balance.String())
	b, err = st.GetBudget(ctx, "food")
	require.NoError(t, err)
	assert.True(t, b.Spent.IsZero())
}

func TestStore_InsufficientFundsRollsBack(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	log := zerolog.Nop()
	svc := ledger.NewService(st, ledger.NewEngine(true, log), ledger.NopNotifier{}, log)
	_, err := ledger.NewAccountService(st, log).Add(ctx, ledger.BankAccount{ID: "x", UserID: user, Name: "Checking", Balance: money(100)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, ledger.Transaction{UserID: user, Type: ledger.TxExpense, Amount: money(101), Wallet: "x", Category: "Food", Date: time.Now()})

	var funds *ledger.InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	txs, err := st.ListTransactions(ctx, ledger.TransactionFilter{UserID: user})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.SaveAccount(ctx, ledger.BankAccount{ID: "x", UserID: user, Name: "X", Balance: money(10), CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(s ledger.Store) error {
		if _, err := s.AdjustAccountBalance(ctx, user, "x", money(5)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	acc, err := st.GetAccount(ctx, user, "x")
	require.NoError(t, err)
	assert.Equal(t, "10", acc.Balance.String())
}

func TestStore_Budgets(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	may := ledger.NewMonth(2025, time.May)
	b := ledger.Budget{ID: "b1", UserID: user, Category: "Food", Month: may, Limit: money(100), Spent: decimal.Zero}
	b.Recalculate()
	require.NoError(t, st.CreateBudget(ctx, b))

	// duplicate (user, category, month) ignoring case
	dup := b
	dup.ID, dup.Category = "b2", "FOOD"
	assert.ErrorIs(t, st.CreateBudget(ctx, dup), ledger.ErrDuplicateBudget)

	found, err := st.FindBudget(ctx, user, "food", may)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ledger.BudgetID("b1"), found.ID)
	assert.True(t, found.Month.Equal(may))

	updated, err := st.AdjustBudgetSpent(ctx, "b1", money(120))
	require.NoError(t, err)
	assert.Equal(t, "-20", updated.Remaining.String())
	assert.Equal(t, "100", updated.SpentPercent.String())

	list, err := st.ListBudgets(ctx, ledger.BudgetFilter{UserID: user, Month: &may})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, st.DeleteBudget(ctx, "b1"))
	_, err = st.GetBudget(ctx, "b1")
	assert.ErrorIs(t, err, ledger.ErrBudgetNotFound)
}

func TestStore_MonthlyAndReset(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	jan := ledger.NewMonth(2025, time.January)

	_, err := ledger.ApplyMonthly(ctx, st, user, jan, ledger.MonthlyIncrement{Income: money(300), Expenses: money(100), Adjustments: decimal.Zero})
	require.NoError(t, err)
	_, err = ledger.ApplyMonthly(ctx, st, user, jan.Next(), ledger.MonthlyIncrement{Income: decimal.Zero, Expenses: money(50), Adjustments: decimal.Zero})
	require.NoError(t, err)

	records, err := st.ListMonthly(ctx, user)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "200", records[0].Balance.String())
	assert.Equal(t, "150", records[1].Balance.String())

	require.NoError(t, st.Reset(ctx))
	records, err = st.ListMonthly(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_RecurringTemplate(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	tx := ledger.Transaction{
		ID: "t1", UserID: user, Type: ledger.TxIncome, Amount: money(5), Wallet: "x", Category: "Salary",
		Date: start, IsRepeat: true, CreatedAt: start, UpdatedAt: start,
		Recurrence: &ledger.Recurrence{Frequency: ledger.FreqMonthly, DayOfMonth: 1, LastRun: start},
	}
	require.NoError(t, st.SaveTransaction(ctx, tx))

	next := start.AddDate(0, 1, 0)
	require.NoError(t, st.MarkRecurrenceRun(ctx, "t1", next))

	got, err := st.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, ledger.FreqMonthly, got.Recurrence.Frequency)
	assert.Equal(t, 1, got.Recurrence.DayOfMonth)
	assert.True(t, got.Recurrence.LastRun.Equal(next))
	assert.Equal(t, "5", got.Amount.String())
}
