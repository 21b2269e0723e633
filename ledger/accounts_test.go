package ledger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/ledger"
)

func TestAccountService_TotalFollowsSubAccounts(t *testing.T) {
	// GIVEN: two sub-accounts
	f := newFixture(t)
	f.addAccount("checking", 1000)
	f.addAccount("cash", 250)

	// THEN: the cached total is their sum and the month records the adjustment
	assert.Equal(t, "1250", f.total())
	mb := f.monthly(f.month)
	assert.Equal(t, "1250", mb.Adjustments.String())
	assert.Equal(t, "1250", mb.Balance.String())
	assert.True(t, mb.TotalIncome.IsZero())

	// WHEN: one balance is edited and the other account deleted
	_, err := f.accounts.Update(f.ctx, ledger.BankAccount{ID: "checking", UserID: user, Name: "Checking", Balance: money(900)})
	require.NoError(t, err)
	require.NoError(t, f.accounts.Delete(f.ctx, user, "cash"))

	// THEN: total and month follow
	assert.Equal(t, "900", f.total())
	mb = f.monthly(f.month)
	assert.Equal(t, "900", mb.Adjustments.String())
	assert.Equal(t, "900", mb.Balance.String())

	book, err := f.accounts.Book(f.ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "900", book.TotalBalance.String())
	require.Len(t, book.Accounts, 1)
	assert.Equal(t, "Checking", book.Accounts[0].Name)
}

func TestAccountService_TransactionsAreNotAdjustments(t *testing.T) {
	// GIVEN: an account with an expense booked
	f := newFixture(t)
	f.addAccount("x", 1000)
	f.create(f.expense(300, "x", "Food"))

	// WHEN: the account is renamed with its current balance
	_, err := f.accounts.Update(f.ctx, ledger.BankAccount{ID: "x", UserID: user, Name: "Main", Balance: money(700)})
	require.NoError(t, err)

	// THEN: the engine already synced the total, so no adjustment is booked
	mb := f.monthly(f.month)
	assert.Equal(t, "1000", mb.Adjustments.String())
	assert.Equal(t, "300", mb.TotalExpenses.String())
	assert.Equal(t, "700", mb.Balance.String())
}

func TestAccountService_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.accounts.Add(f.ctx, ledger.BankAccount{UserID: user, Name: "  "})
	assert.True(t, errors.Is(err, ledger.ErrMissingField))

	_, err = f.accounts.Update(f.ctx, ledger.BankAccount{ID: "missing", UserID: user, Name: "x"})
	assert.True(t, errors.Is(err, ledger.ErrAccountNotFound))

	err = f.accounts.Delete(f.ctx, user, "missing")
	assert.True(t, errors.Is(err, ledger.ErrAccountNotFound))
}

func TestAccountService_ListIsPerUser(t *testing.T) {
	f := newFixture(t)
	f.addAccount("mine", 10)
	_, err := f.accounts.Add(f.ctx, ledger.BankAccount{UserID: "someone-else", Name: "theirs"})
	require.NoError(t, err)

	accounts, err := f.accounts.List(f.ctx, user)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, ledger.AccountID("mine"), accounts[0].ID)

	_, err = f.accounts.Get(f.ctx, "someone-else", "mine")
	assert.True(t, errors.Is(err, ledger.ErrAccountNotFound))
}
