/*
service.go - Transaction write API

PURPOSE:
  Service is the only entry point that mutates transactions. It replaces
  persistence-layer hooks with an explicit sequence:

    validate -> WithTx( Precheck -> persist -> Engine.OnX ) -> notify

  Everything between the parentheses commits or rolls back together.
  Notifications are handed to the Notifier after commit and never awaited.

RECURRING TRANSACTIONS:
  RunRecurring scans repeat templates and books one plain copy per due
  occurrence through Create, then records the run on the template.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notice is a user-facing message produced by a ledger mutation.
type Notice struct {
	UserID  UserID
	Title   string
	Body    string
	Screen  string
	Channel string
}

// Notifier accepts notices for asynchronous delivery. Notify must not block.
type Notifier interface {
	Notify(n Notice)
}

// NopNotifier discards every notice.
type NopNotifier struct{}

func (NopNotifier) Notify(Notice) {}

// Service implements the transaction write API.
type Service struct {
	store    TxStore
	engine   *Engine
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store TxStore, engine *Engine, notifier Notifier, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{store: store, engine: engine, notifier: notifier, log: log, now: time.Now}
}

// Result is a persisted transaction plus the ledger state it produced.
type Result struct {
	Transaction Transaction
	Effects     Effects
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Create validates, books and reacts to a new transaction.
func (s *Service) Create(ctx context.Context, tx Transaction) (Result, error) {
	tx, err := s.prepare(tx)
	if err != nil {
		return Result{}, err
	}

	var fx Effects
	err = s.store.WithTx(ctx, func(st Store) error {
		var err error
		fx, err = s.book(ctx, st, tx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	s.created(tx, fx)
	return Result{Transaction: tx, Effects: fx}, nil
}

// prepare fills the defaults of a new transaction and validates it.
func (s *Service) prepare(tx Transaction) (Transaction, error) {
	now := s.now().UTC()
	if tx.ID == "" {
		tx.ID = TransactionID(uuid.New().String())
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}
	tx.Category = strings.TrimSpace(tx.Category)
	tx.CreatedAt, tx.UpdatedAt = now, now
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	if tx.Recurrence != nil {
		rec := *tx.Recurrence
		// The template is its own first occurrence.
		if rec.LastRun.IsZero() {
			rec.LastRun = tx.Date
		}
		tx.Recurrence = &rec
	}
	return tx, nil
}

// book persists tx and applies its reactions inside st.
func (s *Service) book(ctx context.Context, st Store, tx Transaction) (Effects, error) {
	if err := s.engine.Precheck(ctx, st, nil, tx); err != nil {
		return Effects{}, err
	}
	if err := st.SaveTransaction(ctx, tx); err != nil {
		return Effects{}, fmt.Errorf("save transaction: %w", err)
	}
	return s.engine.OnCreate(ctx, st, tx)
}

// created logs a committed transaction and hands out its notices.
func (s *Service) created(tx Transaction, fx Effects) {
	s.log.Info().
		Str("user_id", string(tx.UserID)).
		Str("transaction_id", string(tx.ID)).
		Str("type", string(tx.Type)).
		Str("amount", tx.Amount.String()).
		Str("month", tx.Month().String()).
		Msg("Transaction created")

	if tx.Type == TxIncome {
		s.notifier.Notify(Notice{
			UserID:  tx.UserID,
			Title:   "Income received",
			Body:    fmt.Sprintf("%s was added to your %s balance.", tx.Amount.StringFixed(2), tx.Category),
			Screen:  "Transactions",
			Channel: "transactions",
		})
	}
	s.notifyAlerts(fx)
}

// Update replaces a stored transaction and applies the difference.
func (s *Service) Update(ctx context.Context, tx Transaction) (Result, error) {
	tx.Category = strings.TrimSpace(tx.Category)
	if err := tx.Validate(); err != nil {
		return Result{}, err
	}

	var fx Effects
	err := s.store.WithTx(ctx, func(st Store) error {
		old, err := st.GetTransaction(ctx, tx.ID)
		if err != nil {
			return err
		}
		if old.UserID != tx.UserID {
			return ErrForbidden
		}
		tx.CreatedAt = old.CreatedAt
		tx.UpdatedAt = s.now().UTC()
		if tx.Recurrence != nil {
			rec := *tx.Recurrence
			switch {
			case old.Recurrence != nil:
				rec.LastRun = old.Recurrence.LastRun
			case rec.LastRun.IsZero():
				// Turned into a template: the booked transaction is its first occurrence.
				rec.LastRun = tx.Date
			}
			tx.Recurrence = &rec
		}

		if err := s.engine.Precheck(ctx, st, old, tx); err != nil {
			return err
		}
		if err := st.UpdateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		fx, err = s.engine.OnUpdate(ctx, st, *old, tx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info().
		Str("user_id", string(tx.UserID)).
		Str("transaction_id", string(tx.ID)).
		Str("amount", tx.Amount.String()).
		Msg("Transaction updated")

	s.notifyAlerts(fx)
	return Result{Transaction: tx, Effects: fx}, nil
}

// Delete removes a transaction and reverses its effect.
func (s *Service) Delete(ctx context.Context, userID UserID, id TransactionID) (Effects, error) {
	var fx Effects
	err := s.store.WithTx(ctx, func(st Store) error {
		tx, err := st.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx.UserID != userID {
			return ErrForbidden
		}
		if err := st.DeleteTransaction(ctx, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		fx, err = s.engine.OnDelete(ctx, st, *tx)
		return err
	})
	if err != nil {
		return Effects{}, err
	}

	s.log.Info().
		Str("user_id", string(userID)).
		Str("transaction_id", string(id)).
		Msg("Transaction deleted")
	return fx, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Get returns a transaction owned by userID.
func (s *Service) Get(ctx context.Context, userID UserID, id TransactionID) (*Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, ErrForbidden
	}
	return tx, nil
}

// List returns the user's transactions, optionally restricted to month.
func (s *Service) List(ctx context.Context, userID UserID, month *Month) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, TransactionFilter{UserID: userID, Month: month})
}

// MonthlyBalance returns the aggregate of month for userID.
func (s *Service) MonthlyBalance(ctx context.Context, userID UserID, month Month) (MonthlyBalance, error) {
	return MonthlyBalanceFor(ctx, s.store, userID, month)
}

// MonthlyHistory returns every stored aggregate of userID.
func (s *Service) MonthlyHistory(ctx context.Context, userID UserID) ([]MonthlyBalance, error) {
	return s.store.ListMonthly(ctx, userID)
}

// =============================================================================
// RECURRING
// =============================================================================

// RecurringRun reports the outcome of one RunRecurring pass.
type RecurringRun struct {
	Checked int
	Created []Transaction
	Failed  map[TransactionID]error
}

// RunRecurring books one occurrence of every repeat template due on the day
// of now. A failing template is recorded and does not stop the others.
func (s *Service) RunRecurring(ctx context.Context, now time.Time) (RecurringRun, error) {
	repeat := true
	templates, err := s.store.ListTransactions(ctx, TransactionFilter{Repeat: &repeat})
	if err != nil {
		return RecurringRun{}, fmt.Errorf("list recurring templates: %w", err)
	}

	run := RecurringRun{Failed: make(map[TransactionID]error)}
	for _, tmpl := range templates {
		if tmpl.Recurrence == nil {
			continue
		}
		run.Checked++
		if !tmpl.Recurrence.Due(now) {
			continue
		}

		occurrence := Transaction{
			UserID:      tmpl.UserID,
			Type:        tmpl.Type,
			Amount:      tmpl.Amount,
			Wallet:      tmpl.Wallet,
			Category:    tmpl.Category,
			From:        tmpl.From,
			To:          tmpl.To,
			Date:        now.UTC(),
			Description: tmpl.Description,
		}
		occurrence, err := s.prepare(occurrence)
		if err == nil {
			var fx Effects
			err = s.store.WithTx(ctx, func(st Store) error {
				var err error
				if fx, err = s.book(ctx, st, occurrence); err != nil {
					return err
				}
				if err := st.MarkRecurrenceRun(ctx, tmpl.ID, now.UTC()); err != nil {
					return fmt.Errorf("mark recurrence run: %w", err)
				}
				return nil
			})
			if err == nil {
				s.created(occurrence, fx)
			}
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("template_id", string(tmpl.ID)).
				Msg("Recurring occurrence rejected")
			run.Failed[tmpl.ID] = err
			continue
		}
		run.Created = append(run.Created, occurrence)
	}
	return run, nil
}

func (s *Service) notifyAlerts(fx Effects) {
	for _, b := range fx.Alerts {
		s.notifier.Notify(BudgetAlertNotice(b))
	}
}

// BudgetAlertNotice builds the usage alert for b.
func BudgetAlertNotice(b Budget) Notice {
	return Notice{
		UserID: b.UserID,
		Title:  "Budget Usage Alert!",
		Body: fmt.Sprintf("You have used %s%% of your %s budget for %s. Review your spending to avoid exceeding it.",
			b.SpentPercent.StringFixed(0), b.Category, b.Month),
		Screen:  "Budget",
		Channel: "budget",
	}
}
