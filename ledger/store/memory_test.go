package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/ledger"
)

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: an account with a balance
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveAccount(ctx, ledger.BankAccount{ID: "a", UserID: "u", Name: "A", Balance: decimal.NewFromInt(100)}))

	// WHEN: a unit of work adjusts it and then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(st ledger.Store) error {
		if _, err := st.AdjustAccountBalance(ctx, "u", "a", decimal.NewFromInt(-40)); err != nil {
			return err
		}
		if _, err := st.IncrementMonthly(ctx, "u", ledger.NewMonth(2025, time.May), ledger.MonthlyIncrement{Expenses: decimal.NewFromInt(40)}); err != nil {
			return err
		}
		return boom
	})

	// THEN: nothing was kept
	assert.ErrorIs(t, err, boom)
	acc, err := m.GetAccount(ctx, "u", "a")
	require.NoError(t, err)
	assert.Equal(t, "100", acc.Balance.String())
	records, err := m.ListMonthly(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveAccount(ctx, ledger.BankAccount{ID: "a", UserID: "u", Name: "A", Balance: decimal.NewFromInt(1)}))
	require.NoError(t, m.SetTotalBalance(ctx, "u", decimal.NewFromInt(1)))

	require.NoError(t, m.Reset(ctx))

	accounts, err := m.ListAccounts(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, accounts)
	total, err := m.TotalBalance(ctx, "u")
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestMemory_BudgetCategoryIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	may := ledger.NewMonth(2025, time.May)
	require.NoError(t, m.CreateBudget(ctx, ledger.Budget{ID: "b1", UserID: "u", Category: "Food", Month: may, Limit: decimal.NewFromInt(10)}))

	found, err := m.FindBudget(ctx, "u", "FOOD", may)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ledger.BudgetID("b1"), found.ID)

	missing, err := m.FindBudget(ctx, "u", "Food", may.Next())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = m.CreateBudget(ctx, ledger.Budget{ID: "b2", UserID: "u", Category: "food", Month: may})
	assert.ErrorIs(t, err, ledger.ErrDuplicateBudget)
}

func TestMemory_TransactionsAreCopied(t *testing.T) {
	// GIVEN: a recurring transaction
	ctx := context.Background()
	m := NewMemory()
	tx := ledger.Transaction{
		ID: "t1", UserID: "u", Type: ledger.TxIncome, Amount: decimal.NewFromInt(5), Wallet: "a",
		Category: "Salary", Date: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		IsRepeat: true, Recurrence: &ledger.Recurrence{Frequency: ledger.FreqDaily},
	}
	require.NoError(t, m.SaveTransaction(ctx, tx))

	// WHEN: the caller mutates its copy and the run is marked
	tx.Recurrence.Frequency = ledger.FreqWeekly
	at := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.MarkRecurrenceRun(ctx, "t1", at))

	// THEN: the stored template only reflects the mark
	got, err := m.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ledger.FreqDaily, got.Recurrence.Frequency)
	assert.True(t, got.Recurrence.LastRun.Equal(at))

	repeat := true
	templates, err := m.ListTransactions(ctx, ledger.TransactionFilter{Repeat: &repeat})
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}
