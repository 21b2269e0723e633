/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Each scenario is loaded through the HTTP endpoint and the resulting
	account, monthly and budget state is checked against its description.
	The scenarios double as end-to-end tests of the ledger reactions.
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/factory"
)

func (s *testServer) loadScenario(id string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (s *testServer) demoBook() AccountBookDTO {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/users/"+string(DemoUser)+"/accounts", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	return decode[AccountBookDTO](s.t, rec)
}

func (s *testServer) demoMonth() MonthlyBalanceDTO {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/users/"+string(DemoUser)+"/balances/"+s.month.String(), nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	return decode[MonthlyBalanceDTO](s.t, rec)
}

func balances(book AccountBookDTO) map[string]string {
	out := make(map[string]string, len(book.Accounts))
	for _, a := range book.Accounts {
		out[a.ID] = a.Balance.String()
	}
	return out
}

func TestScenario_ExpenseLifecycle(t *testing.T) {
	tests := []struct {
		scenario string
		balance  string
		expenses string
	}{
		{"expense-create", "800", "200"},
		{"expense-edit", "650", "350"},
		{"expense-delete", "1000", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			s := newTestServer(t)
			s.loadScenario(tt.scenario)

			book := s.demoBook()
			assert.Equal(t, tt.balance, book.TotalBalance.String())
			assert.Equal(t, map[string]string{"acc-checking": tt.balance}, balances(book))

			m := s.demoMonth()
			assert.Equal(t, tt.expenses, m.TotalExpenses.String())
			assert.Equal(t, tt.balance, m.Balance.String())
			assert.Equal(t, "1000", m.Adjustments.String())
		})
	}
}

func TestScenario_BudgetOverrun(t *testing.T) {
	// GIVEN/WHEN: the budget-overrun scenario is loaded
	s := newTestServer(t)
	s.loadScenario("budget-overrun")

	// THEN: remaining goes negative and usage clamps at 100
	rec := s.do(http.MethodGet, "/api/users/"+string(DemoUser)+"/budgets/budget-food", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[factory.BudgetJSON](t, rec)
	assert.Equal(t, "600", b.Spent.String())
	assert.Equal(t, "-100", b.Remaining.String())
	assert.Equal(t, "100", b.SpentPercent.String())

	// and the crossing produced one alert
	require.Len(t, s.notices.notices, 1)
	assert.Equal(t, DemoUser, s.notices.notices[0].UserID)
	assert.Contains(t, s.notices.notices[0].Body, "100%")

	assert.Equal(t, "400", s.demoBook().TotalBalance.String())
}

func TestScenario_Transfer(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("transfer")

	book := s.demoBook()
	assert.Equal(t, map[string]string{"acc-savings": "400", "acc-wallet": "300"}, balances(book))
	assert.Equal(t, "700", book.TotalBalance.String())

	m := s.demoMonth()
	assert.True(t, m.TotalIncome.IsZero())
	assert.True(t, m.TotalExpenses.IsZero())
	assert.Equal(t, "700", m.Balance.String())
}

func TestScenario_LoadReplacesPreviousData(t *testing.T) {
	// GIVEN: one scenario loaded
	s := newTestServer(t)
	s.loadScenario("transfer")

	// WHEN: another one is loaded
	s.loadScenario("expense-create")

	// THEN: only the new scenario's accounts remain and it is current
	assert.Equal(t, map[string]string{"acc-checking": "800"}, balances(s.demoBook()))

	rec := s.do(http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "expense-create", decode[ScenarioDTO](t, rec).ID)
}

func TestScenario_ListAndUnknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))
	for _, sc := range list {
		assert.NotEmpty(t, sc.Name)
		assert.NotEmpty(t, sc.Description)
	}

	rec = s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s := newTestServer(t)
			s.loadScenario(sc.ID)

			txs, err := s.handler.Transactions.List(context.Background(), DemoUser, nil)
			require.NoError(t, err)
			for _, tx := range txs {
				assert.Equal(t, DemoUser, tx.UserID)
				assert.True(t, s.month.Contains(tx.Date))
			}
		})
	}
}
