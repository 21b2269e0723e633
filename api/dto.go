/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with the client. Transactions and
  budgets reuse the factory wire types so that request and response bodies
  share one schema.

MONEY:
  Amounts are shopspring/decimal values and serialize as decimal strings
  ("650.00" style), never floats.

CATEGORIES:
  Account:      AccountDTO, AccountRequest, AccountBookDTO
  Transaction:  factory.TransactionJSON, TransactionResponse, EffectsDTO
  Balance:      MonthlyBalanceDTO
  Budget:       factory.BudgetJSON
  Demo:         ScenarioDTO, LoadScenarioRequest, RecurringRunDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/transaction.go, factory/budget.go: wire schemas
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/factory"
	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// ACCOUNT DTOs
// =============================================================================

// AccountRequest is the body of account create / update.
type AccountRequest struct {
	Name         string          `json:"name"`
	AccountType  string          `json:"accountType,omitempty"`
	ProviderName string          `json:"providerName,omitempty"`
	ProviderCode string          `json:"providerCode,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
}

// AccountDTO is one bank sub-account.
type AccountDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	AccountType  string          `json:"accountType,omitempty"`
	ProviderName string          `json:"providerName,omitempty"`
	ProviderCode string          `json:"providerCode,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// AccountBookDTO is the user's sub-accounts plus the cached total.
type AccountBookDTO struct {
	UserID       string          `json:"userId"`
	TotalBalance decimal.Decimal `json:"totalBalance"`
	Accounts     []AccountDTO    `json:"accounts"`
}

// =============================================================================
// TRANSACTION DTOs
// =============================================================================

// AccountBalanceDTO is an account balance after a ledger reaction.
type AccountBalanceDTO struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

// FailureDTO is a ledger step that failed in lenient mode.
type FailureDTO struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// EffectsDTO summarizes what a transaction mutation changed.
type EffectsDTO struct {
	Accounts     []AccountBalanceDTO  `json:"accounts"`
	Months       []MonthlyBalanceDTO  `json:"months"`
	Budgets      []factory.BudgetJSON `json:"budgets"`
	TotalBalance *decimal.Decimal     `json:"totalBalance,omitempty"`
	Alerts       []string             `json:"alerts,omitempty"` // budget ids
	Failures     []FailureDTO         `json:"failures,omitempty"`
}

// TransactionResponse is returned by transaction create / update.
type TransactionResponse struct {
	Transaction factory.TransactionJSON `json:"transaction"`
	Effects     EffectsDTO              `json:"effects"`
}

// =============================================================================
// BALANCE DTOs
// =============================================================================

// MonthlyBalanceDTO is one month's running balance aggregate.
type MonthlyBalanceDTO struct {
	Month         string          `json:"month"`
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	Adjustments   decimal.Decimal `json:"adjustments"`
	Balance       decimal.Decimal `json:"balance"`
}

// =============================================================================
// DEMO DTOs
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// RecurringRunDTO reports a manual recurring pass.
type RecurringRunDTO struct {
	Checked int                       `json:"checked"`
	Created []factory.TransactionJSON `json:"created"`
	Failed  map[string]string         `json:"failed,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAccountDTO(a ledger.BankAccount) AccountDTO {
	return AccountDTO{
		ID:           string(a.ID),
		Name:         a.Name,
		AccountType:  a.AccountType,
		ProviderName: a.ProviderName,
		ProviderCode: a.ProviderCode,
		Balance:      a.Balance,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toAccountBookDTO(b ledger.AccountBook) AccountBookDTO {
	dto := AccountBookDTO{
		UserID:       string(b.UserID),
		TotalBalance: b.TotalBalance,
		Accounts:     make([]AccountDTO, 0, len(b.Accounts)),
	}
	for _, a := range b.Accounts {
		dto.Accounts = append(dto.Accounts, toAccountDTO(a))
	}
	return dto
}

func (req AccountRequest) toAccount(userID ledger.UserID, id ledger.AccountID) ledger.BankAccount {
	return ledger.BankAccount{
		ID:           id,
		UserID:       userID,
		Name:         req.Name,
		AccountType:  req.AccountType,
		ProviderName: req.ProviderName,
		ProviderCode: req.ProviderCode,
		Balance:      req.Balance,
	}
}

func toMonthlyBalanceDTO(mb ledger.MonthlyBalance) MonthlyBalanceDTO {
	return MonthlyBalanceDTO{
		Month:         mb.Month.String(),
		TotalIncome:   mb.TotalIncome,
		TotalExpenses: mb.TotalExpenses,
		Adjustments:   mb.Adjustments,
		Balance:       mb.Balance,
	}
}

func toMonthlyBalanceDTOs(mbs []ledger.MonthlyBalance) []MonthlyBalanceDTO {
	out := make([]MonthlyBalanceDTO, 0, len(mbs))
	for _, mb := range mbs {
		out = append(out, toMonthlyBalanceDTO(mb))
	}
	return out
}

func toBudgetDTOs(bs []ledger.Budget) []factory.BudgetJSON {
	out := make([]factory.BudgetJSON, 0, len(bs))
	for _, b := range bs {
		out = append(out, factory.BudgetToJSON(b))
	}
	return out
}

func toTransactionDTOs(txs []ledger.Transaction) []factory.TransactionJSON {
	out := make([]factory.TransactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, factory.TransactionToJSON(tx))
	}
	return out
}

func toEffectsDTO(fx ledger.Effects) EffectsDTO {
	dto := EffectsDTO{
		Accounts:     make([]AccountBalanceDTO, 0, len(fx.Accounts)),
		Months:       toMonthlyBalanceDTOs(fx.Months),
		Budgets:      toBudgetDTOs(fx.Budgets),
		TotalBalance: fx.TotalBalance,
	}
	for _, a := range fx.Accounts {
		dto.Accounts = append(dto.Accounts, AccountBalanceDTO{AccountID: string(a.Account), Balance: a.Balance})
	}
	for _, b := range fx.Alerts {
		dto.Alerts = append(dto.Alerts, string(b.ID))
	}
	for _, f := range fx.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{Step: f.Step, Error: f.Err.Error()})
	}
	return dto
}
