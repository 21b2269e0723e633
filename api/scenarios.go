/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database through the
	ledger services, so every demo balance is produced by the same code
	paths as real traffic. All scenarios use the user "demo-user" and the
	current month.

AVAILABLE SCENARIOS:

	expense-create:   Checking at 1000, one 200 Groceries expense
	expense-edit:     expense-create, then the expense is raised to 350
	expense-delete:   expense-edit, then the expense is deleted
	budget-overrun:   Food budget of 500 with a 600 expense (alert at 80%)
	transfer:         Savings 500 -> Wallet 200, transfer of 100

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Add bank accounts with opening balances
 3. Configure budgets
 4. Book transactions from JSON documents via factory

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "budget-overrun"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/transaction.go: Transaction JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/factory"
	"github.com/warp/finance-ledger/ledger"
)

// DemoUser owns every scenario record.
const DemoUser ledger.UserID = "demo-user"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "expense-create",
			Name:        "Expense",
			Description: "Checking starts at 1000; a 200 expense leaves 800 in the account and the month",
		},
		load: loadExpenseCreate,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "expense-edit",
			Name:        "Edited Expense",
			Description: "The 200 expense is edited to 350; only the 150 difference is applied",
		},
		load: loadExpenseEdit,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "expense-delete",
			Name:        "Deleted Expense",
			Description: "The edited expense is deleted; account and month return to 1000",
		},
		load: loadExpenseDelete,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "budget-overrun",
			Name:        "Budget Overrun",
			Description: "A 600 Food expense against a 500 budget: remaining -100, usage clamped at 100%",
		},
		load: loadBudgetOverrun,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "transfer",
			Name:        "Transfer",
			Description: "100 moves from Savings to Wallet; month totals and budgets are untouched",
		},
		load: loadTransfer,
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var selected *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			selected = &scenarios[i]
			break
		}
	}
	if selected == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := selected.load(ctx, h); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = selected.ID

	h.Log.Info().Str("scenario", selected.ID).Msg("Scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": selected.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadExpenseCreate(ctx context.Context, h *Handler) error {
	_, err := seedGroceries(ctx, h)
	return err
}

func loadExpenseEdit(ctx context.Context, h *Handler) error {
	tx, err := seedGroceries(ctx, h)
	if err != nil {
		return err
	}
	tx.Amount = decimal.NewFromInt(350)
	_, err = h.Transactions.Update(ctx, tx)
	return err
}

func loadExpenseDelete(ctx context.Context, h *Handler) error {
	tx, err := seedGroceries(ctx, h)
	if err != nil {
		return err
	}
	tx.Amount = decimal.NewFromInt(350)
	if _, err := h.Transactions.Update(ctx, tx); err != nil {
		return err
	}
	_, err = h.Transactions.Delete(ctx, DemoUser, tx.ID)
	return err
}

func loadBudgetOverrun(ctx context.Context, h *Handler) error {
	if _, err := h.addAccount(ctx, "acc-checking", "Checking", 1000); err != nil {
		return err
	}
	_, err := h.Budgets.Create(ctx, ledger.Budget{
		ID:             "budget-food",
		UserID:         DemoUser,
		Category:       "Food",
		Month:          ledger.CurrentMonth(h.Now()),
		Limit:          decimal.NewFromInt(500),
		IsReceiveAlert: true,
		AlertValue:     decimal.NewFromInt(80),
	})
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	_, err = h.bookJSON(ctx, `{
		"type": "Expense",
		"amount": "600",
		"wallet": "acc-checking",
		"transactionFor": "Food",
		"description": "Dinner party"
	}`)
	return err
}

func loadTransfer(ctx context.Context, h *Handler) error {
	if _, err := h.addAccount(ctx, "acc-savings", "Savings", 500); err != nil {
		return err
	}
	if _, err := h.addAccount(ctx, "acc-wallet", "Wallet", 200); err != nil {
		return err
	}
	_, err := h.bookJSON(ctx, `{
		"type": "Transfer",
		"amount": "100",
		"from": "acc-savings",
		"to": "acc-wallet",
		"description": "Pocket money"
	}`)
	return err
}

func seedGroceries(ctx context.Context, h *Handler) (ledger.Transaction, error) {
	if _, err := h.addAccount(ctx, "acc-checking", "Checking", 1000); err != nil {
		return ledger.Transaction{}, err
	}
	return h.bookJSON(ctx, `{
		"type": "Expense",
		"amount": "200",
		"wallet": "acc-checking",
		"transactionFor": "Groceries",
		"description": "Weekly shop"
	}`)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) addAccount(ctx context.Context, id ledger.AccountID, name string, balance int64) (ledger.BankAccount, error) {
	acc, err := h.Accounts.Add(ctx, ledger.BankAccount{
		ID:          id,
		UserID:      DemoUser,
		Name:        name,
		AccountType: "bank",
		Balance:     decimal.NewFromInt(balance),
	})
	if err != nil {
		return ledger.BankAccount{}, fmt.Errorf("add account %s: %w", id, err)
	}
	return acc, nil
}

// bookJSON creates a transaction for the demo user from its wire form,
// dated now.
func (h *Handler) bookJSON(ctx context.Context, doc string) (ledger.Transaction, error) {
	tx, err := factory.ParseTransaction([]byte(doc), DemoUser)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.Date = h.Now().UTC()
	res, err := h.Transactions.Create(ctx, tx)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("create %s: %w", tx.Type, err)
	}
	return res.Transaction, nil
}
