package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// BudgetJSON is the wire representation of a budget. "budget" is the limit;
// "month" is "YYYY-MM" or any date inside the month.
type BudgetJSON struct {
	ID             string          `json:"id,omitempty"`
	Category       string          `json:"category"`
	Budget         decimal.Decimal `json:"budget"`
	Month          string          `json:"month"`
	IsReceiveAlert bool            `json:"isReceiveAlert,omitempty"`
	AlertValue     decimal.Decimal `json:"alertValue,omitempty"`

	// Read-only, filled on output
	Spent        *decimal.Decimal `json:"spent,omitempty"`
	Remaining    *decimal.Decimal `json:"remaining,omitempty"`
	SpentPercent *decimal.Decimal `json:"spentPercent,omitempty"`
}

// ParseBudget parses a JSON document into a ledger.Budget for user.
func ParseBudget(data []byte, userID ledger.UserID) (ledger.Budget, error) {
	var bj BudgetJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return ledger.Budget{}, fmt.Errorf("%w: failed to parse budget JSON: %v", ledger.ErrInvalidInput, err)
	}
	return BudgetFromJSON(bj, userID)
}

// BudgetFromJSON converts the wire shape into a domain value.
func BudgetFromJSON(bj BudgetJSON, userID ledger.UserID) (ledger.Budget, error) {
	b := ledger.Budget{
		ID:             ledger.BudgetID(bj.ID),
		UserID:         userID,
		Category:       strings.TrimSpace(bj.Category),
		Limit:          bj.Budget,
		IsReceiveAlert: bj.IsReceiveAlert,
		AlertValue:     bj.AlertValue,
	}
	if bj.Month != "" {
		m, err := ledger.ParseMonth(strings.TrimSpace(bj.Month))
		if err != nil {
			return ledger.Budget{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
		}
		b.Month = m
	}
	return b, nil
}

// BudgetToJSON converts a domain budget back to its wire shape.
func BudgetToJSON(b ledger.Budget) BudgetJSON {
	spent, remaining, pct := b.Spent, b.Remaining, b.SpentPercent
	return BudgetJSON{
		ID:             string(b.ID),
		Category:       b.Category,
		Budget:         b.Limit,
		Month:          b.Month.String(),
		IsReceiveAlert: b.IsReceiveAlert,
		AlertValue:     b.AlertValue,
		Spent:          &spent,
		Remaining:      &remaining,
		SpentPercent:   &pct,
	}
}
