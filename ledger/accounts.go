package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT SERVICE - Bank sub-account CRUD
// =============================================================================

// AccountService manages a user's bank sub-accounts. Every mutation
// recomputes the cached total from the sub-account balances and books the
// change in total as an adjustment on the current month aggregate, so the
// monthly running balance tracks money the user adds outside transactions.
type AccountService struct {
	store TxStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewAccountService(store TxStore, log zerolog.Logger) *AccountService {
	return &AccountService{store: store, log: log, now: time.Now}
}

// Add creates a sub-account with an opening balance.
func (s *AccountService) Add(ctx context.Context, acc BankAccount) (BankAccount, error) {
	acc.Name = strings.TrimSpace(acc.Name)
	if err := validateAccount(acc); err != nil {
		return BankAccount{}, err
	}
	if acc.ID == "" {
		acc.ID = AccountID(uuid.New().String())
	}
	now := s.now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return s.syncTotal(ctx, st, acc.UserID)
	})
	if err != nil {
		return BankAccount{}, err
	}

	s.log.Info().
		Str("user_id", string(acc.UserID)).
		Str("account_id", string(acc.ID)).
		Str("balance", acc.Balance.String()).
		Msg("Bank account added")
	return acc, nil
}

// Update replaces the descriptive fields and the balance of a sub-account.
func (s *AccountService) Update(ctx context.Context, acc BankAccount) (BankAccount, error) {
	acc.Name = strings.TrimSpace(acc.Name)
	if err := validateAccount(acc); err != nil {
		return BankAccount{}, err
	}

	var result BankAccount
	err := s.store.WithTx(ctx, func(st Store) error {
		existing, err := st.GetAccount(ctx, acc.UserID, acc.ID)
		if err != nil {
			return err
		}
		updated := *existing
		updated.Name = acc.Name
		updated.AccountType = acc.AccountType
		updated.ProviderName = acc.ProviderName
		updated.ProviderCode = acc.ProviderCode
		updated.Balance = acc.Balance
		updated.UpdatedAt = s.now().UTC()

		if err := st.SaveAccount(ctx, updated); err != nil {
			return err
		}
		result = updated
		return s.syncTotal(ctx, st, acc.UserID)
	})
	if err != nil {
		return BankAccount{}, err
	}
	return result, nil
}

// Delete removes a sub-account. Its balance leaves the total and the
// current month's running balance.
func (s *AccountService) Delete(ctx context.Context, userID UserID, id AccountID) error {
	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.DeleteAccount(ctx, userID, id); err != nil {
			return err
		}
		return s.syncTotal(ctx, st, userID)
	})
	if err != nil {
		return err
	}
	s.log.Info().
		Str("user_id", string(userID)).
		Str("account_id", string(id)).
		Msg("Bank account deleted")
	return nil
}

// Get returns one sub-account.
func (s *AccountService) Get(ctx context.Context, userID UserID, id AccountID) (*BankAccount, error) {
	return s.store.GetAccount(ctx, userID, id)
}

// List returns the user's sub-accounts ordered by name.
func (s *AccountService) List(ctx context.Context, userID UserID) ([]BankAccount, error) {
	return s.store.ListAccounts(ctx, userID)
}

// Book returns the user's sub-accounts and cached total.
func (s *AccountService) Book(ctx context.Context, userID UserID) (AccountBook, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return AccountBook{}, err
	}
	total, err := s.store.TotalBalance(ctx, userID)
	if err != nil {
		return AccountBook{}, err
	}
	return AccountBook{UserID: userID, TotalBalance: total, Accounts: accounts}, nil
}

// SyncTotal recomputes the cached total from the sub-accounts. Reactions
// call it after moving money between accounts.
func SyncTotal(ctx context.Context, store AccountStore, userID UserID) (Money, error) {
	accounts, err := store.ListAccounts(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := SumBalances(accounts)
	if err := store.SetTotalBalance(ctx, userID, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// syncTotal recomputes the total and books the change as an adjustment on
// the current month.
func (s *AccountService) syncTotal(ctx context.Context, st Store, userID UserID) error {
	before, err := st.TotalBalance(ctx, userID)
	if err != nil {
		return err
	}
	after, err := SyncTotal(ctx, st, userID)
	if err != nil {
		return err
	}
	change := after.Sub(before)
	if change.IsZero() {
		return nil
	}
	_, err = ApplyMonthly(ctx, st, userID, MonthOf(s.now()), MonthlyIncrement{
		Income:      decimal.Zero,
		Expenses:    decimal.Zero,
		Adjustments: change,
	})
	return err
}

func validateAccount(acc BankAccount) error {
	if acc.UserID == "" {
		return &MissingFieldError{Field: "user"}
	}
	if acc.Name == "" {
		return &MissingFieldError{Field: "name"}
	}
	return nil
}
