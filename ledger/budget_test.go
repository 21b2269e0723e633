package ledger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/ledger"
)

func TestBudgetService_CreateSeedsSpent(t *testing.T) {
	// GIVEN: Food expenses booked before any budget exists
	f := newFixture(t)
	f.addAccount("x", 1000)
	f.create(f.expense(120, "x", "Food"))
	f.create(f.expense(30, "x", "food "))
	f.create(f.expense(99, "x", "Travel"))
	f.create(inMonth(f.expense(40, "x", "Food"), f.month.Prev()))

	// WHEN: a Food budget is created for this month
	b := f.createBudget("food", "Food", 300)

	// THEN: spent is seeded from this month's Food expenses only
	assert.Equal(t, "150", b.Spent.String())
	assert.Equal(t, "150", b.Remaining.String())
	assert.Equal(t, "50", b.SpentPercent.String())
}

func TestBudgetService_DuplicateCategoryIsRejected(t *testing.T) {
	f := newFixture(t)
	f.createBudget("food", "Food", 300)

	_, err := f.budgets.Create(f.ctx, ledger.Budget{UserID: user, Category: "FOOD", Month: f.month, Limit: money(100)})

	assert.True(t, errors.Is(err, ledger.ErrDuplicateBudget))
	assert.True(t, ledger.IsConflict(err))
}

func TestBudgetService_LimitEditRecomputes(t *testing.T) {
	// GIVEN: a Food budget with 200 spent
	f := newFixture(t)
	f.addAccount("x", 1000)
	b := f.createBudget("food", "Food", 500)
	f.create(f.expense(200, "x", "Food"))

	// WHEN: the limit is lowered to 100
	b.Limit = money(100)
	updated, err := f.budgets.Update(f.ctx, b)
	require.NoError(t, err)

	// THEN: spent is recomputed from the transactions
	assert.Equal(t, "200", updated.Spent.String())
	assert.Equal(t, "-100", updated.Remaining.String())
	assert.Equal(t, "100", updated.SpentPercent.String())
	assert.Equal(t, "100", f.budget("food").Limit.String())
	assert.Equal(t, "200", f.budget("food").Spent.String())
}

func TestBudgetService_CategoryEditResyncs(t *testing.T) {
	f := newFixture(t)
	f.addAccount("x", 1000)
	b := f.createBudget("b1", "Food", 500)
	f.create(f.expense(200, "x", "Food"))
	f.create(f.expense(75, "x", "Travel"))

	b.Category = "Travel"
	updated, err := f.budgets.Update(f.ctx, b)
	require.NoError(t, err)

	assert.Equal(t, "75", updated.Spent.String())
}

func TestBudgetService_Ownership(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget("food", "Food", 500)

	_, err := f.budgets.Get(f.ctx, "intruder", b.ID)
	assert.True(t, errors.Is(err, ledger.ErrForbidden))

	b.UserID = "intruder"
	_, err = f.budgets.Update(f.ctx, b)
	assert.True(t, errors.Is(err, ledger.ErrForbidden))

	assert.True(t, errors.Is(f.budgets.Delete(f.ctx, "intruder", b.ID), ledger.ErrForbidden))
	require.NoError(t, f.budgets.Delete(f.ctx, user, b.ID))

	_, err = f.budgets.Get(f.ctx, user, b.ID)
	assert.True(t, errors.Is(err, ledger.ErrBudgetNotFound))
}

func TestBudgetService_AlertsDue(t *testing.T) {
	// GIVEN: two budgets with alerts, one of them above its threshold
	f := newFixture(t)
	f.addAccount("x", 1000)
	for _, b := range []ledger.Budget{
		{ID: "food", UserID: user, Category: "Food", Month: f.month, Limit: money(100), IsReceiveAlert: true, AlertValue: money(50)},
		{ID: "fun", UserID: user, Category: "Fun", Month: f.month, Limit: money(100), IsReceiveAlert: true, AlertValue: money(50)},
		{ID: "rent", UserID: user, Category: "Rent", Month: f.month, Limit: money(100)},
	} {
		_, err := f.budgets.Create(f.ctx, b)
		require.NoError(t, err)
	}
	f.create(f.expense(60, "x", "Food"))
	f.create(f.expense(40, "x", "Fun"))
	f.create(f.expense(100, "x", "Rent"))

	// WHEN: checking the month
	due, err := f.budgets.AlertsDue(f.ctx, f.month)
	require.NoError(t, err)

	// THEN: only the Food budget is due
	require.Len(t, due, 1)
	assert.Equal(t, ledger.BudgetID("food"), due[0].ID)

	notice := ledger.BudgetAlertNotice(due[0])
	assert.Equal(t, user, notice.UserID)
	assert.Equal(t, "budget", notice.Channel)
	assert.Contains(t, notice.Body, "60%")
}

func TestBudgetService_ListByMonth(t *testing.T) {
	f := newFixture(t)
	f.createBudget("food", "Food", 500)
	_, err := f.budgets.Create(f.ctx, ledger.Budget{ID: "old", UserID: user, Category: "Food", Month: f.month.Prev(), Limit: money(10)})
	require.NoError(t, err)

	budgets, err := f.budgets.List(f.ctx, user, f.month)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, ledger.BudgetID("food"), budgets[0].ID)
}
