package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// TRANSACTION DELTA - Typed value object passed to every store update
// =============================================================================

// TransactionDelta is the signed ledger effect of a transaction mutation.
// A positive Amount is the forward (creation) effect; a negative Amount is
// a reversal. Edits are expressed either as one amount-difference delta or
// as a reversal of the old shape followed by the forward effect of the new.
type TransactionDelta struct {
	TransactionID TransactionID
	UserID        UserID
	Type          TransactionType
	Amount        Money

	// Account is the wallet for Income/Expense and the source for Transfer.
	Account AccountID
	// Counterparty is the Transfer destination.
	Counterparty AccountID

	Category string
	Month    Month
}

// AccountEffect is a signed change to one account balance.
type AccountEffect struct {
	Account AccountID
	Change  Money
}

// DeltaOf returns the forward effect of tx.
func DeltaOf(tx Transaction) TransactionDelta {
	d := TransactionDelta{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Category:      tx.Category,
		Month:         tx.Month(),
	}
	if tx.Type == TxTransfer {
		d.Account, d.Counterparty = tx.From, tx.To
	} else {
		d.Account = tx.Wallet
	}
	return d
}

// Neg returns the reversal of d.
func (d TransactionDelta) Neg() TransactionDelta {
	d.Amount = d.Amount.Neg()
	return d
}

func (d TransactionDelta) IsZero() bool { return d.Amount.IsZero() }

// AccountEffects lists the balance changes d causes.
func (d TransactionDelta) AccountEffects() []AccountEffect {
	switch d.Type {
	case TxIncome:
		return []AccountEffect{{Account: d.Account, Change: d.Amount}}
	case TxExpense:
		return []AccountEffect{{Account: d.Account, Change: d.Amount.Neg()}}
	case TxTransfer:
		return []AccountEffect{
			{Account: d.Account, Change: d.Amount.Neg()},
			{Account: d.Counterparty, Change: d.Amount},
		}
	}
	return nil
}

// MonthlyEffect returns the month-aggregate increment. Transfers are internal
// movements and report false.
func (d TransactionDelta) MonthlyEffect() (MonthlyIncrement, bool) {
	inc := MonthlyIncrement{Income: decimal.Zero, Expenses: decimal.Zero, Adjustments: decimal.Zero}
	switch d.Type {
	case TxIncome:
		inc.Income = d.Amount
	case TxExpense:
		inc.Expenses = d.Amount
	default:
		return inc, false
	}
	return inc, true
}

// BudgetEffect returns the change to a matching budget's spent. Only
// Expense deltas touch budgets.
func (d TransactionDelta) BudgetEffect() (Money, bool) {
	if d.Type != TxExpense {
		return decimal.Zero, false
	}
	return d.Amount, true
}

// debits reports whether d withdraws from account when applied forward.
func (d TransactionDelta) debits(account AccountID) bool {
	switch d.Type {
	case TxExpense, TxTransfer:
		return d.Account == account
	}
	return false
}

// =============================================================================
// DIFF - Deltas for an edit
// =============================================================================

// sameShape reports whether old and updated hit exactly the same store keys.
func sameShape(old, updated Transaction) bool {
	return old.UserID == updated.UserID &&
		old.Type == updated.Type &&
		old.Wallet == updated.Wallet &&
		old.From == updated.From &&
		old.To == updated.To &&
		old.Category == updated.Category &&
		old.Month().Equal(updated.Month())
}

// Diff returns the deltas that move the stores from old's effect to updated's.
//
//   - same type, accounts, category and month: one delta of the amount difference
//   - any of those changed: reversal of old followed by forward of updated
//   - nothing ledger-relevant changed: no deltas
func Diff(old, updated Transaction) []TransactionDelta {
	if sameShape(old, updated) {
		diff := updated.Amount.Sub(old.Amount)
		if diff.IsZero() {
			return nil
		}
		d := DeltaOf(updated)
		d.Amount = diff
		return []TransactionDelta{d}
	}
	return []TransactionDelta{DeltaOf(old).Neg(), DeltaOf(updated)}
}

// NetAccountChanges sums the account effects of deltas per account,
// preserving first-seen order.
func NetAccountChanges(deltas []TransactionDelta) []AccountEffect {
	var order []AccountID
	net := make(map[AccountID]Money)
	for _, d := range deltas {
		for _, e := range d.AccountEffects() {
			if _, ok := net[e.Account]; !ok {
				order = append(order, e.Account)
				net[e.Account] = decimal.Zero
			}
			net[e.Account] = net[e.Account].Add(e.Change)
		}
	}
	out := make([]AccountEffect, 0, len(order))
	for _, id := range order {
		out = append(out, AccountEffect{Account: id, Change: net[id]})
	}
	return out
}
