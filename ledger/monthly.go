/*
monthly.go - Monthly balance aggregate manager

PURPOSE:
  Maintains one cached running-balance record per (user, month) and keeps
  later months consistent when an earlier month changes retroactively.

ALGORITHM (PropagateForward):
  1. Load every record of the user, ordered by month ascending.
  2. Take the ending balance of the last record before fromMonth (zero if none).
  3. Walk forward from fromMonth, recomputing
         balance = previous.balance + adjustments + totalIncome - totalExpenses
     and persisting each record whose cached balance changed.
  4. No later records: the walk ends after fromMonth itself.

  Cost is O(months since the edited month). Months before fromMonth are
  never rewritten.

SEE ALSO:
  - engine.go: Calls ApplyMonthly for Income / Expense deltas
  - accounts.go: Calls ApplyMonthly with adjustments on bank account edits
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ApplyMonthly upsert-increments the record of month and propagates the
// change forward. A record created here is seeded from the prior month's
// ending balance by the propagation walk.
func ApplyMonthly(ctx context.Context, store MonthlyStore, userID UserID, month Month, inc MonthlyIncrement) ([]MonthlyBalance, error) {
	if _, err := store.IncrementMonthly(ctx, userID, month, inc); err != nil {
		return nil, fmt.Errorf("increment month %s: %w", month, err)
	}
	return PropagateForward(ctx, store, userID, month)
}

// PropagateForward recomputes the cached balance of fromMonth and every
// later month of the user. It returns the records it rewrote.
func PropagateForward(ctx context.Context, store MonthlyStore, userID UserID, fromMonth Month) ([]MonthlyBalance, error) {
	records, err := store.ListMonthly(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list monthly balances: %w", err)
	}

	previous := decimal.Zero
	var changed []MonthlyBalance
	for _, mb := range records {
		if mb.Month.Before(fromMonth) {
			previous = mb.Balance
			continue
		}

		balance := previous.Add(mb.Net())
		if !balance.Equal(mb.Balance) {
			if err := store.SaveMonthlyBalance(ctx, userID, mb.Month, balance); err != nil {
				return changed, fmt.Errorf("save balance for %s: %w", mb.Month, err)
			}
			mb.Balance = balance
			changed = append(changed, mb)
		}
		previous = balance
	}
	return changed, nil
}

// MonthlyBalanceFor returns the aggregate for month. A month without a
// record reports the running balance carried over from the last earlier
// month and zero totals.
func MonthlyBalanceFor(ctx context.Context, store MonthlyStore, userID UserID, month Month) (MonthlyBalance, error) {
	records, err := store.ListMonthly(ctx, userID)
	if err != nil {
		return MonthlyBalance{}, err
	}
	result := MonthlyBalance{
		UserID:        userID,
		Month:         month,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Adjustments:   decimal.Zero,
		Balance:       decimal.Zero,
	}
	for _, mb := range records {
		if mb.Month.After(month) {
			break
		}
		if mb.Month.Equal(month) {
			return mb, nil
		}
		result.Balance = mb.Balance
	}
	return result, nil
}
