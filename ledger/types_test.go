package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TRANSACTION VALIDATION
// =============================================================================

func TestTransaction_Validate(t *testing.T) {
	valid := expense(200, "a", "Food", march)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Transaction)
		target error
	}{
		{"missing user", func(tx *Transaction) { tx.UserID = "" }, ErrMissingField},
		{"unknown type", func(tx *Transaction) { tx.Type = "Refund" }, ErrInvalidType},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"missing date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrMissingField},
		{"missing wallet", func(tx *Transaction) { tx.Wallet = "" }, ErrMissingField},
		{"repeat without frequency", func(tx *Transaction) { tx.IsRepeat = true }, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestTransaction_ValidateMissingFieldNamesType(t *testing.T) {
	tx := expense(200, "", "Food", march)

	var mf *MissingFieldError
	require.ErrorAs(t, tx.Validate(), &mf)
	assert.Equal(t, "wallet", mf.Field)
	assert.Equal(t, "wallet is required for Expense transactions", mf.Error())
}

// =============================================================================
// BUDGET FORMULAS
// =============================================================================

func TestBudget_Recalculate(t *testing.T) {
	tests := []struct {
		limit, spent       int64
		remaining, percent string
	}{
		{500, 0, "500", "0"},
		{500, 200, "300", "40"},
		{500, 500, "0", "100"},
		{500, 600, "-100", "100"},
		{300, 100, "200", "33.33"},
		{0, 0, "0", "0"},
		{0, 10, "-10", "100"},
	}
	for _, tt := range tests {
		b := Budget{Limit: decimal.NewFromInt(tt.limit), Spent: decimal.NewFromInt(tt.spent)}
		b.Recalculate()
		assert.Equal(t, tt.remaining, b.Remaining.String(), "remaining for %d/%d", tt.spent, tt.limit)
		assert.Equal(t, tt.percent, b.SpentPercent.String(), "percent for %d/%d", tt.spent, tt.limit)
	}
}

func TestBudget_Validate(t *testing.T) {
	b := Budget{UserID: "u1", Category: "Food", Month: NewMonth(2025, time.March), Limit: decimal.NewFromInt(500)}
	require.NoError(t, b.Validate())

	noCategory := b
	noCategory.Category = "  "
	assert.True(t, errors.Is(noCategory.Validate(), ErrMissingField))

	negative := b
	negative.Limit = decimal.NewFromInt(-1)
	assert.True(t, errors.Is(negative.Validate(), ErrInvalidAmount))

	alertWithoutValue := b
	alertWithoutValue.IsReceiveAlert = true
	assert.True(t, errors.Is(alertWithoutValue.Validate(), ErrMissingField))
}

func TestBudget_AlertDue(t *testing.T) {
	b := Budget{Limit: decimal.NewFromInt(100), IsReceiveAlert: true, AlertValue: decimal.NewFromInt(80)}

	b.Spent = decimal.NewFromInt(80)
	b.Recalculate()
	assert.False(t, b.AlertDue(), "threshold itself does not alert")

	b.Spent = decimal.NewFromInt(81)
	b.Recalculate()
	assert.True(t, b.AlertDue())
}

func TestSumBalances(t *testing.T) {
	total := SumBalances([]BankAccount{
		{Balance: decimal.RequireFromString("100.10")},
		{Balance: decimal.RequireFromString("0.20")},
		{Balance: decimal.NewFromInt(-50)},
	})
	assert.Equal(t, "50.3", total.String())
}

// =============================================================================
// MONTH
// =============================================================================

func TestParseMonth(t *testing.T) {
	for _, s := range []string{"2025-03", "2025-03-14", "2025-03-14T09:30:00Z"} {
		m, err := ParseMonth(s)
		require.NoError(t, err, s)
		assert.Equal(t, NewMonth(2025, time.March), m)
	}

	_, err := ParseMonth("March")
	assert.Error(t, err)
}

func TestMonth_Arithmetic(t *testing.T) {
	dec := NewMonth(2024, time.December)

	assert.Equal(t, NewMonth(2025, time.January), dec.Next())
	assert.Equal(t, NewMonth(2024, time.November), dec.Prev())
	assert.Equal(t, NewMonth(2023, time.December), dec.AddMonths(-12))
	assert.True(t, dec.Before(dec.Next()))
	assert.Equal(t, "2024-12", dec.String())
	assert.True(t, dec.Contains(time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, dec.Contains(dec.Next().Start()))
}

func TestMonthOf_UsesUTC(t *testing.T) {
	tz := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2025, time.April, 1, 1, 0, 0, 0, tz) // 2025-03-31T23:00Z

	assert.Equal(t, NewMonth(2025, time.March), MonthOf(local))
}
