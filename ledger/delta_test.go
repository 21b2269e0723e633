package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func expense(amount int64, wallet AccountID, category string, date time.Time) Transaction {
	return Transaction{
		ID:       "tx-1",
		UserID:   "u1",
		Type:     TxExpense,
		Amount:   decimal.NewFromInt(amount),
		Wallet:   wallet,
		Category: category,
		Date:     date,
	}
}

func transfer(amount int64, from, to AccountID) Transaction {
	return Transaction{
		ID:     "tx-t",
		UserID: "u1",
		Type:   TxTransfer,
		Amount: decimal.NewFromInt(amount),
		From:   from,
		To:     to,
		Date:   march,
	}
}

func TestDeltaOf_SignConventions(t *testing.T) {
	income := DeltaOf(Transaction{UserID: "u1", Type: TxIncome, Amount: decimal.NewFromInt(500), Wallet: "a", Date: march})
	assert.Equal(t, []AccountEffect{{Account: "a", Change: decimal.NewFromInt(500)}}, income.AccountEffects())
	inc, ok := income.MonthlyEffect()
	require.True(t, ok)
	assert.True(t, inc.Income.Equal(decimal.NewFromInt(500)))
	_, ok = income.BudgetEffect()
	assert.False(t, ok, "income never touches budgets")

	exp := DeltaOf(expense(200, "a", "Food", march))
	assert.True(t, exp.AccountEffects()[0].Change.Equal(decimal.NewFromInt(-200)))
	inc, ok = exp.MonthlyEffect()
	require.True(t, ok)
	assert.True(t, inc.Expenses.Equal(decimal.NewFromInt(200)))
	spent, ok := exp.BudgetEffect()
	require.True(t, ok)
	assert.True(t, spent.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, NewMonth(2025, time.March), exp.Month)

	tr := DeltaOf(transfer(100, "a", "b"))
	effects := tr.AccountEffects()
	require.Len(t, effects, 2)
	assert.True(t, effects[0].Change.Equal(decimal.NewFromInt(-100)))
	assert.True(t, effects[1].Change.Equal(decimal.NewFromInt(100)))
	_, ok = tr.MonthlyEffect()
	assert.False(t, ok, "transfers are internal movements")
	_, ok = tr.BudgetEffect()
	assert.False(t, ok)
}

func TestDiff_AmountOnly(t *testing.T) {
	// GIVEN: an expense edited from 200 to 350, nothing else changed
	old := expense(200, "a", "Food", march)
	updated := expense(350, "a", "Food", march)

	// WHEN: computing the diff
	deltas := Diff(old, updated)

	// THEN: one delta carrying only the difference
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Amount.Equal(decimal.NewFromInt(150)))

	net := NetAccountChanges(deltas)
	require.Len(t, net, 1)
	assert.True(t, net[0].Change.Equal(decimal.NewFromInt(-150)))
}

func TestDiff_NoLedgerChange(t *testing.T) {
	old := expense(200, "a", "Food", march)
	updated := old
	updated.Description = "renamed"

	assert.Empty(t, Diff(old, updated))
}

func TestDiff_ShapeChangeReversesAndReapplies(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
	}{
		{"category", func(tx *Transaction) { tx.Category = "Travel" }},
		{"wallet", func(tx *Transaction) { tx.Wallet = "b" }},
		{"month", func(tx *Transaction) { tx.Date = march.AddDate(0, 1, 0) }},
		{"type", func(tx *Transaction) { tx.Type = TxIncome }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := expense(200, "a", "Food", march)
			updated := old
			tt.mutate(&updated)

			deltas := Diff(old, updated)

			require.Len(t, deltas, 2)
			assert.True(t, deltas[0].Amount.Equal(decimal.NewFromInt(-200)), "first delta reverses old")
			assert.Equal(t, old.Category, deltas[0].Category)
			assert.True(t, deltas[1].Amount.Equal(decimal.NewFromInt(200)), "second delta applies updated")
			assert.Equal(t, updated.Type, deltas[1].Type)
		})
	}
}

func TestDiff_SameDayWithinMonthIsAmountOnly(t *testing.T) {
	old := expense(200, "a", "Food", march)
	updated := expense(200, "a", "Food", march.AddDate(0, 0, 3))

	assert.Empty(t, Diff(old, updated), "a date move inside the month changes no store")
}

func TestNetAccountChanges_TransferRetarget(t *testing.T) {
	// GIVEN: a transfer a->b of 100 edited to a->c of 150
	deltas := Diff(transfer(100, "a", "b"), transfer(150, "a", "c"))

	// WHEN: netting the account effects
	net := NetAccountChanges(deltas)

	// THEN: a pays the 50 difference, b is refunded, c is credited
	changes := map[AccountID]string{}
	for _, e := range net {
		changes[e.Account] = e.Change.String()
	}
	assert.Equal(t, map[AccountID]string{"a": "-50", "b": "-100", "c": "150"}, changes)
	assert.Equal(t, AccountID("a"), net[0].Account, "first-seen order is preserved")
}

func TestReversalOnly(t *testing.T) {
	old := expense(200, "a", "Food", march)
	moved := expense(200, "b", "Food", march)
	deltas := Diff(old, moved)

	assert.True(t, reversalOnly(deltas, "a"), "a only loses the old booking")
	assert.False(t, reversalOnly(deltas, "b"), "b receives the new booking")

	del := []TransactionDelta{DeltaOf(old).Neg()}
	assert.True(t, reversalOnly(del, "a"))
}

func TestCrossedAlert(t *testing.T) {
	b := Budget{
		Limit:          decimal.NewFromInt(500),
		IsReceiveAlert: true,
		AlertValue:     decimal.NewFromInt(80),
	}
	d := DeltaOf(expense(100, "a", "Food", march))

	// 350 -> 450: 70% -> 90%
	b.Spent = decimal.NewFromInt(450)
	b.Recalculate()
	assert.True(t, crossedAlert(b, d))

	// 420 -> 520: already above 80% before
	b.Spent = decimal.NewFromInt(520)
	b.Recalculate()
	assert.False(t, crossedAlert(b, d))

	// alerts disabled
	b.IsReceiveAlert = false
	b.Spent = decimal.NewFromInt(450)
	b.Recalculate()
	assert.False(t, crossedAlert(b, d))
}
