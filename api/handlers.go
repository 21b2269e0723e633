/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements the HTTP handlers for every API endpoint. Handlers parse the
  request, call one ledger service method and map the result to JSON.
  They contain no ledger logic: balances, aggregates and budgets are only
  ever changed by ledger.Service / AccountService / BudgetService.

HANDLER GROUPS:
  Accounts:      GetAccountBook, CreateAccount, GetAccount, UpdateAccount, DeleteAccount
  Transactions:  ListTransactions, CreateTransaction, GetTransaction,
                 UpdateTransaction, DeleteTransaction
  Balances:      GetMonthlyBalance, GetBalanceHistory
  Budgets:       ListBudgets, CreateBudget, GetBudget, UpdateBudget, DeleteBudget
  Admin:         RunRecurring, ResetDatabase
  Scenarios:     see scenarios.go

ERROR HANDLING:
  ledger errors map to status codes in statusFor:
    invalid input / insufficient funds  400
    record owned by another user        403
    missing record                      404
    duplicate budget                    409
    anything else                       500 (logged)

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/finance-ledger/factory"
	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/logger"
)

// DataStore is the store the API runs on: the ledger stores plus a reset
// for demo scenarios.
type DataStore interface {
	ledger.TxStore
	Reset(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store        DataStore
	Transactions *ledger.Service
	Accounts     *ledger.AccountService
	Budgets      *ledger.BudgetService
	Log          zerolog.Logger

	// Now is the clock used for default months and recurring runs.
	Now func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the ledger services built on store.
func NewHandler(store DataStore, engine *ledger.Engine, notifier ledger.Notifier, log zerolog.Logger) *Handler {
	return &Handler{
		Store:        store,
		Transactions: ledger.NewService(store, engine, notifier, log),
		Accounts:     ledger.NewAccountService(store, log),
		Budgets:      ledger.NewBudgetService(store, log),
		Log:          log,
		Now:          time.Now,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// GetAccountBook returns the user's sub-accounts and total balance.
func (h *Handler) GetAccountBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.Accounts.Book(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountBookDTO(book))
}

// CreateAccount adds a sub-account with an opening balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acc, err := h.Accounts.Add(r.Context(), req.toAccount(userParam(r), ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acc))
}

// GetAccount returns one sub-account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.Get(r.Context(), userParam(r), ledger.AccountID(chi.URLParam(r, "accountID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*acc))
}

// UpdateAccount replaces a sub-account's fields and balance.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := ledger.AccountID(chi.URLParam(r, "accountID"))
	acc, err := h.Accounts.Update(r.Context(), req.toAccount(userParam(r), id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

// DeleteAccount removes a sub-account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "accountID"))
	if err := h.Accounts.Delete(r.Context(), userParam(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns the user's transactions, optionally for ?month=YYYY-MM.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var month *ledger.Month
	if s := r.URL.Query().Get("month"); s != "" {
		m, err := ledger.ParseMonth(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		month = &m
	}

	txs, err := h.Transactions.List(r.Context(), userParam(r), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// CreateTransaction books a transaction and returns the ledger effects.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.parseTransaction(w, r)
	if !ok {
		return
	}
	tx.ID = ""

	res, err := h.Transactions.Create(r.Context(), tx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TransactionResponse{
		Transaction: factory.TransactionToJSON(res.Transaction),
		Effects:     toEffectsDTO(res.Effects),
	})
}

// GetTransaction returns one transaction.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Transactions.Get(r.Context(), userParam(r), ledger.TransactionID(chi.URLParam(r, "txID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.TransactionToJSON(*tx))
}

// UpdateTransaction edits a transaction and applies the difference. A body
// without transactionDate keeps the stored date.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.parseTransaction(w, r)
	if !ok {
		return
	}
	tx.ID = ledger.TransactionID(chi.URLParam(r, "txID"))
	if tx.Date.IsZero() {
		existing, err := h.Transactions.Get(r.Context(), tx.UserID, tx.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		tx.Date = existing.Date
	}

	res, err := h.Transactions.Update(r.Context(), tx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionResponse{
		Transaction: factory.TransactionToJSON(res.Transaction),
		Effects:     toEffectsDTO(res.Effects),
	})
}

// DeleteTransaction removes a transaction and reverses its effect.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	fx, err := h.Transactions.Delete(r.Context(), userParam(r), ledger.TransactionID(chi.URLParam(r, "txID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEffectsDTO(fx))
}

func (h *Handler) parseTransaction(w http.ResponseWriter, r *http.Request) (ledger.Transaction, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return ledger.Transaction{}, false
	}
	tx, err := factory.ParseTransaction(body, userParam(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return ledger.Transaction{}, false
	}
	return tx, true
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetMonthlyBalance returns the running balance aggregate of one month.
func (h *Handler) GetMonthlyBalance(w http.ResponseWriter, r *http.Request) {
	month, err := ledger.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	mb, err := h.Transactions.MonthlyBalance(r.Context(), userParam(r), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyBalanceDTO(mb))
}

// GetBalanceHistory returns every stored month of the user, oldest first.
func (h *Handler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	mbs, err := h.Transactions.MonthlyHistory(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyBalanceDTOs(mbs))
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListBudgets returns the user's budgets for ?month=YYYY-MM (default: current month).
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	month := ledger.CurrentMonth(h.Now())
	if s := r.URL.Query().Get("month"); s != "" {
		m, err := ledger.ParseMonth(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		month = m
	}

	budgets, err := h.Budgets.List(r.Context(), userParam(r), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTOs(budgets))
}

// CreateBudget configures a budget for a category and month.
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	b, ok := h.parseBudget(w, r)
	if !ok {
		return
	}
	b.ID = ""
	if b.Month.IsZero() {
		b.Month = ledger.CurrentMonth(h.Now())
	}

	created, err := h.Budgets.Create(r.Context(), b)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.BudgetToJSON(created))
}

// GetBudget returns one budget.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.Budgets.Get(r.Context(), userParam(r), ledger.BudgetID(chi.URLParam(r, "budgetID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.BudgetToJSON(*b))
}

// UpdateBudget edits a budget's limit, category, month or alert settings.
func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	b, ok := h.parseBudget(w, r)
	if !ok {
		return
	}
	b.ID = ledger.BudgetID(chi.URLParam(r, "budgetID"))
	if b.Month.IsZero() {
		existing, err := h.Budgets.Get(r.Context(), b.UserID, b.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		b.Month = existing.Month
	}

	updated, err := h.Budgets.Update(r.Context(), b)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.BudgetToJSON(updated))
}

// DeleteBudget removes a budget.
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.Budgets.Delete(r.Context(), userParam(r), ledger.BudgetID(chi.URLParam(r, "budgetID"))); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseBudget(w http.ResponseWriter, r *http.Request) (ledger.Budget, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return ledger.Budget{}, false
	}
	b, err := factory.ParseBudget(body, userParam(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid budget", err)
		return ledger.Budget{}, false
	}
	return b, true
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunRecurring books every recurring transaction due today. The scheduler
// does the same on its own interval.
func (h *Handler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	run, err := h.Transactions.RunRecurring(r.Context(), h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dto := RecurringRunDTO{Checked: run.Checked, Created: toTransactionDTOs(run.Created)}
	if len(run.Failed) > 0 {
		dto.Failed = make(map[string]string, len(run.Failed))
		for id, err := range run.Failed {
			dto.Failed[string(id)] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func userParam(r *http.Request) ledger.UserID {
	return ledger.UserID(chi.URLParam(r, "userID"))
}

// statusFor maps a ledger error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	case ledger.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status it maps to. Server errors are logged with
// the request-scoped logger and their details are not exposed.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeError(w, status, "Internal server error", nil)
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	var funds *ledger.InsufficientFundsError
	if errors.As(err, &funds) {
		resp.Code = "insufficient_funds"
		resp.Details = map[string]string{
			"accountId": string(funds.AccountID),
			"available": funds.Available.StringFixed(2),
			"requested": funds.Requested.StringFixed(2),
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
