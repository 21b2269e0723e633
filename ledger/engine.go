/*
engine.go - Ledger reaction engine

PURPOSE:
  Translates a transaction mutation (create, edit, delete) into signed
  deltas and applies them to the three dependent stores:

    1. Bank account balances   (every type)
    2. Monthly aggregate       (Income / Expense, then PropagateForward)
    3. Budget spent            (Expense with a configured budget)

  The engine holds no state of its own. It is called explicitly by Service
  after the transaction record has been persisted, inside the same unit of
  work.

SIGN CONVENTIONS:
  Income   +amount on wallet,  totalIncome   += amount
  Expense  -amount on wallet,  totalExpenses += amount, budget spent += amount
  Transfer -amount on from, +amount on to; no aggregate, no budget

  Edits apply Diff(old, updated). Deletes apply the negated forward delta.

FAILURE MODES:
  Strict (default):  the first failing step returns a PartialApplyError and
                     the enclosing unit of work rolls everything back.
  Lenient:           account failures still return; monthly and budget
                     failures are logged and the reaction continues.

VALIDATION:
  Precheck runs before persistence. The authoritative insufficient-funds
  source is the debited account's own balance, never the month aggregate.
*/
package ledger

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Engine applies transaction deltas to the dependent stores.
type Engine struct {
	Strict bool
	Log    zerolog.Logger
}

// NewEngine creates an engine. strict selects roll-back-on-failure.
func NewEngine(strict bool, log zerolog.Logger) *Engine {
	return &Engine{Strict: strict, Log: log}
}

// AccountBalance is an account balance after a reaction.
type AccountBalance struct {
	Account AccountID
	Balance Money
}

// Effects summarizes what a reaction changed.
type Effects struct {
	Accounts []AccountBalance
	Months   []MonthlyBalance
	Budgets  []Budget

	// TotalBalance is the user's recomputed total when any account moved.
	TotalBalance *Money

	// Alerts are budgets whose usage crossed their alert threshold during
	// this reaction.
	Alerts []Budget

	// Failures lists steps that failed in lenient mode.
	Failures []*PartialApplyError
}

// =============================================================================
// PRECHECK - Validation before persistence
// =============================================================================

// Precheck verifies that every account next references exists and that each
// account debited by next can cover its net change. old is the stored
// version for an edit, nil for a create.
func (e *Engine) Precheck(ctx context.Context, store AccountStore, old *Transaction, next Transaction) error {
	for _, id := range referencedAccounts(next) {
		if _, err := store.GetAccount(ctx, next.UserID, id); err != nil {
			return err
		}
	}

	var deltas []TransactionDelta
	if old != nil {
		deltas = Diff(*old, next)
	} else {
		deltas = []TransactionDelta{DeltaOf(next)}
	}
	forward := DeltaOf(next)

	for _, eff := range NetAccountChanges(deltas) {
		if !eff.Change.IsNegative() || !forward.debits(eff.Account) {
			continue
		}
		acc, err := store.GetAccount(ctx, next.UserID, eff.Account)
		if err != nil {
			return err
		}
		if acc.Balance.Add(eff.Change).IsNegative() {
			return &InsufficientFundsError{
				AccountID: eff.Account,
				Available: acc.Balance,
				Requested: eff.Change.Neg(),
			}
		}
	}
	return nil
}

func referencedAccounts(tx Transaction) []AccountID {
	if tx.Type == TxTransfer {
		return []AccountID{tx.From, tx.To}
	}
	return []AccountID{tx.Wallet}
}

// =============================================================================
// REACTIONS
// =============================================================================

// OnCreate applies the forward effect of a newly persisted transaction.
func (e *Engine) OnCreate(ctx context.Context, store Store, tx Transaction) (Effects, error) {
	return e.apply(ctx, store, tx.ID, []TransactionDelta{DeltaOf(tx)})
}

// OnUpdate applies the difference between the stored and the edited
// transaction. Nothing is written when no ledger-relevant field changed.
func (e *Engine) OnUpdate(ctx context.Context, store Store, old, updated Transaction) (Effects, error) {
	return e.apply(ctx, store, updated.ID, Diff(old, updated))
}

// OnDelete applies the full reversal of a deleted transaction.
func (e *Engine) OnDelete(ctx context.Context, store Store, tx Transaction) (Effects, error) {
	return e.apply(ctx, store, tx.ID, []TransactionDelta{DeltaOf(tx).Neg()})
}

func (e *Engine) apply(ctx context.Context, store Store, txID TransactionID, deltas []TransactionDelta) (Effects, error) {
	var fx Effects
	if len(deltas) == 0 {
		return fx, nil
	}
	userID := deltas[0].UserID

	// 1. Account balances, netted per account.
	skipped := make(map[AccountID]bool)
	for _, eff := range NetAccountChanges(deltas) {
		if eff.Change.IsZero() {
			continue
		}
		bal, err := store.AdjustAccountBalance(ctx, userID, eff.Account, eff.Change)
		if errors.Is(err, ErrAccountNotFound) && reversalOnly(deltas, eff.Account) {
			// The account was removed after the transaction was booked.
			e.Log.Warn().
				Str("transaction_id", string(txID)).
				Str("account_id", string(eff.Account)).
				Msg("Skipping balance reversal for deleted account")
			skipped[eff.Account] = true
			continue
		}
		if err != nil {
			return fx, &PartialApplyError{TransactionID: txID, Step: "account", Err: err}
		}
		fx.Accounts = append(fx.Accounts, AccountBalance{Account: eff.Account, Balance: bal})
	}
	if len(fx.Accounts) > 0 {
		total, err := SyncTotal(ctx, store, userID)
		if err != nil {
			return fx, &PartialApplyError{TransactionID: txID, Step: "account", Err: err}
		}
		fx.TotalBalance = &total
	}

	// 2. Monthly aggregates. A skipped reversal is offset by an adjustment
	// so the month keeps matching the sum of the remaining accounts.
	for _, d := range deltas {
		inc, ok := d.MonthlyEffect()
		for _, eff := range d.AccountEffects() {
			if skipped[eff.Account] {
				inc.Adjustments = inc.Adjustments.Sub(eff.Change)
				ok = true
			}
		}
		if !ok {
			continue
		}
		months, err := ApplyMonthly(ctx, store, d.UserID, d.Month, inc)
		if err != nil {
			if ferr := e.fail(&fx, txID, "monthly", err); ferr != nil {
				return fx, ferr
			}
			continue
		}
		fx.Months = append(fx.Months, months...)
	}

	// 3. Budgets.
	for _, d := range deltas {
		b, err := ApplyBudget(ctx, store, d)
		if err != nil {
			if ferr := e.fail(&fx, txID, "budget", err); ferr != nil {
				return fx, ferr
			}
			continue
		}
		if b == nil {
			continue
		}
		fx.Budgets = append(fx.Budgets, *b)
		if crossedAlert(*b, d) {
			fx.Alerts = append(fx.Alerts, *b)
		}
	}

	return fx, nil
}

// fail handles a monthly or budget step failure according to the mode.
func (e *Engine) fail(fx *Effects, txID TransactionID, step string, err error) error {
	perr := &PartialApplyError{TransactionID: txID, Step: step, Err: err}
	if e.Strict {
		return perr
	}
	e.Log.Error().
		Err(err).
		Str("transaction_id", string(txID)).
		Str("step", step).
		Msg("Ledger step failed; stores may have drifted")
	fx.Failures = append(fx.Failures, perr)
	return nil
}

// reversalOnly reports whether account is only touched by reversal deltas,
// i.e. the change undoes an earlier booking.
func reversalOnly(deltas []TransactionDelta, account AccountID) bool {
	for _, d := range deltas {
		if d.Amount.IsNegative() {
			continue
		}
		for _, eff := range d.AccountEffects() {
			if eff.Account == account {
				return false
			}
		}
	}
	return true
}

// crossedAlert reports whether applying d moved b above its alert threshold.
func crossedAlert(b Budget, d TransactionDelta) bool {
	if !b.AlertDue() {
		return false
	}
	change, _ := d.BudgetEffect()
	before := SpentPercent(b.Spent.Sub(change), b.Limit)
	return !before.GreaterThan(b.AlertValue)
}
