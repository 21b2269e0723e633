/*
budget.go - Budget record updater and budget CRUD

PURPOSE:
  Keeps each budget's spent / remaining / spentPercent synchronized with
  the Expense transactions that match its (user, category, month).

TWO UPDATE PATHS:
  Incremental:    ApplyBudget adds a signed delta to spent. Used by the
                  reaction engine on every Expense create / edit / delete.
  Recomputation:  Resync re-queries matching Expense transactions and sets
                  spent to their sum. Used when a budget is created and when
                  its limit, category or month is edited.

FORMULAS:
  remaining    = budget - spent          (may go negative)
  spentPercent = spent > budget ? 100 : spent / budget * 100
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ApplyBudget applies the spent delta of d to the matching budget. It is a
// no-op (nil, nil) when d is not an Expense or no budget is configured for
// the category and month.
func ApplyBudget(ctx context.Context, store BudgetStore, d TransactionDelta) (*Budget, error) {
	change, ok := d.BudgetEffect()
	if !ok || change.IsZero() {
		return nil, nil
	}
	b, err := store.FindBudget(ctx, d.UserID, d.Category, d.Month)
	if err != nil {
		return nil, fmt.Errorf("find budget %s/%s: %w", d.Category, d.Month, err)
	}
	if b == nil {
		return nil, nil
	}
	updated, err := store.AdjustBudgetSpent(ctx, b.ID, change)
	if err != nil {
		return nil, fmt.Errorf("adjust budget %s: %w", b.ID, err)
	}
	return &updated, nil
}

// SumExpenses returns the total of the user's Expense transactions for
// category in month.
func SumExpenses(ctx context.Context, store TransactionStore, userID UserID, category string, month Month) (Money, error) {
	txs, err := store.ListTransactions(ctx, TransactionFilter{
		UserID:   userID,
		Type:     TxExpense,
		Category: category,
		Month:    &month,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// Resync recomputes b.Spent from scratch and derives the other fields.
func Resync(ctx context.Context, store TransactionStore, b *Budget) error {
	spent, err := SumExpenses(ctx, store, b.UserID, b.Category, b.Month)
	if err != nil {
		return fmt.Errorf("sum expenses for budget %s: %w", b.ID, err)
	}
	b.Spent = spent
	b.Recalculate()
	return nil
}

// =============================================================================
// BUDGET SERVICE - Budget CRUD
// =============================================================================

// BudgetService implements budget CRUD on top of a TxStore.
type BudgetService struct {
	store TxStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewBudgetService(store TxStore, log zerolog.Logger) *BudgetService {
	return &BudgetService{store: store, log: log, now: time.Now}
}

// Create stores a new budget with spent seeded from existing matching
// Expense transactions.
func (s *BudgetService) Create(ctx context.Context, b Budget) (Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	if b.ID == "" {
		b.ID = BudgetID(uuid.New().String())
	}
	now := s.now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := Resync(ctx, st, &b); err != nil {
			return err
		}
		return st.CreateBudget(ctx, b)
	})
	if err != nil {
		return Budget{}, err
	}

	s.log.Info().
		Str("user_id", string(b.UserID)).
		Str("budget_id", string(b.ID)).
		Str("category", b.Category).
		Str("month", b.Month.String()).
		Str("spent", b.Spent.String()).
		Msg("Budget created")
	return b, nil
}

// Update replaces the user-editable fields of a budget. When the limit,
// category or month changes, spent is recomputed from the transactions.
func (s *BudgetService) Update(ctx context.Context, b Budget) (Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}

	var result Budget
	err := s.store.WithTx(ctx, func(st Store) error {
		existing, err := st.GetBudget(ctx, b.ID)
		if err != nil {
			return err
		}
		if existing.UserID != b.UserID {
			return ErrForbidden
		}

		updated := *existing
		updated.Limit = b.Limit
		updated.Category = b.Category
		updated.Month = b.Month
		updated.IsReceiveAlert = b.IsReceiveAlert
		updated.AlertValue = b.AlertValue
		updated.UpdatedAt = s.now().UTC()

		if !existing.Limit.Equal(updated.Limit) ||
			existing.Category != updated.Category ||
			!existing.Month.Equal(updated.Month) {
			if err := Resync(ctx, st, &updated); err != nil {
				return err
			}
		} else {
			updated.Recalculate()
		}

		if err := st.UpdateBudget(ctx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	return result, nil
}

// Delete removes a budget owned by userID.
func (s *BudgetService) Delete(ctx context.Context, userID UserID, id BudgetID) error {
	return s.store.WithTx(ctx, func(st Store) error {
		b, err := st.GetBudget(ctx, id)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return ErrForbidden
		}
		return st.DeleteBudget(ctx, id)
	})
}

// Get returns a budget owned by userID.
func (s *BudgetService) Get(ctx context.Context, userID UserID, id BudgetID) (*Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

// List returns the user's budgets for month.
func (s *BudgetService) List(ctx context.Context, userID UserID, month Month) ([]Budget, error) {
	return s.store.ListBudgets(ctx, BudgetFilter{UserID: userID, Month: &month})
}

// AlertsDue returns every budget of month, across users, whose usage is
// above its alert threshold.
func (s *BudgetService) AlertsDue(ctx context.Context, month Month) ([]Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, BudgetFilter{Month: &month})
	if err != nil {
		return nil, err
	}
	var due []Budget
	for _, b := range budgets {
		if b.AlertDue() {
			due = append(due, b)
		}
	}
	return due, nil
}
