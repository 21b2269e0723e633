/*
Package factory provides JSON to Go conversion for ledger documents.

PURPOSE:
  Converts the client's wire documents (transactions, budgets) into
  ledger.Transaction and ledger.Budget values. Field requirements that
  depend on the transaction type are checked by ledger.Transaction.Validate;
  the factory only enforces shape (parsable dates, known frequency types).

JSON SCHEMA (transaction):
  {
    "type": "Expense",
    "amount": "200.00",
    "wallet": "acc-checking",
    "transactionFor": "Groceries",
    "transactionDate": "2025-03-14T09:30:00Z",
    "description": "weekly shop",
    "isRepeat": true,
    "endAfter": "2025-12-31",
    "frequency": {"frequencyType": "weekly", "day": 5}
  }

  Transfers carry "from" and "to" instead of "wallet" / "transactionFor".
  "amount" accepts a JSON number or a decimal string.

FREQUENCY:
  daily:    no extra fields
  weekly:   day   (0 = Sunday ... 6 = Saturday)
  monthly:  date  (1-31, clamped to the month length)
  yearly:   date + month (1-12)

SEE ALSO:
  - ledger/types.go: Transaction / Budget definitions
  - ledger/recurrence.go: Recurrence rules
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TransactionJSON is the wire representation of a transaction.
type TransactionJSON struct {
	ID              string          `json:"id,omitempty"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Wallet          string          `json:"wallet,omitempty"`
	From            string          `json:"from,omitempty"`
	To              string          `json:"to,omitempty"`
	TransactionFor  string          `json:"transactionFor,omitempty"`
	TransactionDate string          `json:"transactionDate,omitempty"`
	Description     string          `json:"description,omitempty"`
	IsRepeat        bool            `json:"isRepeat,omitempty"`
	EndAfter        string          `json:"endAfter,omitempty"`
	Frequency       *FrequencyJSON  `json:"frequency,omitempty"`
}

// FrequencyJSON is the recurrence descriptor of a repeating transaction.
type FrequencyJSON struct {
	FrequencyType string `json:"frequencyType"`
	Day           *int   `json:"day,omitempty"`
	Date          *int   `json:"date,omitempty"`
	Month         *int   `json:"month,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseTransaction parses a JSON document into a ledger.Transaction for user.
func ParseTransaction(data []byte, userID ledger.UserID) (ledger.Transaction, error) {
	var tj TransactionJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return ledger.Transaction{}, fmt.Errorf("%w: failed to parse transaction JSON: %v", ledger.ErrInvalidInput, err)
	}
	return TransactionFromJSON(tj, userID)
}

// TransactionFromJSON converts the wire shape into a domain value. Type names
// are matched case-insensitively ("expense" == "Expense").
func TransactionFromJSON(tj TransactionJSON, userID ledger.UserID) (ledger.Transaction, error) {
	tx := ledger.Transaction{
		ID:          ledger.TransactionID(tj.ID),
		UserID:      userID,
		Type:        parseType(tj.Type),
		Amount:      tj.Amount,
		Wallet:      ledger.AccountID(strings.TrimSpace(tj.Wallet)),
		From:        ledger.AccountID(strings.TrimSpace(tj.From)),
		To:          ledger.AccountID(strings.TrimSpace(tj.To)),
		Category:    strings.TrimSpace(tj.TransactionFor),
		Description: strings.TrimSpace(tj.Description),
		IsRepeat:    tj.IsRepeat,
	}

	if tj.TransactionDate != "" {
		date, err := ParseDate(tj.TransactionDate)
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("transactionDate: %w", err)
		}
		tx.Date = date
	}

	if tj.IsRepeat {
		r, err := parseRecurrence(tj)
		if err != nil {
			return ledger.Transaction{}, err
		}
		tx.Recurrence = r
	}
	return tx, nil
}

func parseType(s string) ledger.TransactionType {
	for _, t := range []ledger.TransactionType{ledger.TxIncome, ledger.TxExpense, ledger.TxTransfer} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t
		}
	}
	return ledger.TransactionType(s)
}

func parseRecurrence(tj TransactionJSON) (*ledger.Recurrence, error) {
	if tj.Frequency == nil {
		return nil, &ledger.MissingFieldError{Field: "frequency"}
	}
	if tj.EndAfter == "" {
		return nil, &ledger.MissingFieldError{Field: "endAfter"}
	}
	endAfter, err := ParseDate(tj.EndAfter)
	if err != nil {
		return nil, fmt.Errorf("endAfter: %w", err)
	}

	f := tj.Frequency
	r := &ledger.Recurrence{
		Frequency: ledger.Frequency(strings.ToLower(strings.TrimSpace(f.FrequencyType))),
		EndAfter:  endAfter,
	}
	switch r.Frequency {
	case ledger.FreqWeekly:
		if f.Day == nil {
			return nil, &ledger.MissingFieldError{Field: "frequency.day"}
		}
		r.Weekday = time.Weekday(*f.Day)
	case ledger.FreqMonthly:
		if f.Date == nil {
			return nil, &ledger.MissingFieldError{Field: "frequency.date"}
		}
		r.DayOfMonth = *f.Date
	case ledger.FreqYearly:
		if f.Date == nil {
			return nil, &ledger.MissingFieldError{Field: "frequency.date"}
		}
		if f.Month == nil {
			return nil, &ledger.MissingFieldError{Field: "frequency.month"}
		}
		r.DayOfMonth = *f.Date
		r.Month = time.Month(*f.Month)
	}
	return r, r.Validate()
}

// ParseDate accepts RFC3339 or a plain "2006-01-02" date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", ledger.ErrInvalidInput, s)
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// TransactionToJSON converts a domain transaction back to its wire shape.
func TransactionToJSON(tx ledger.Transaction) TransactionJSON {
	tj := TransactionJSON{
		ID:              string(tx.ID),
		Type:            string(tx.Type),
		Amount:          tx.Amount,
		Wallet:          string(tx.Wallet),
		From:            string(tx.From),
		To:              string(tx.To),
		TransactionFor:  tx.Category,
		TransactionDate: tx.Date.UTC().Format(time.RFC3339),
		Description:     tx.Description,
		IsRepeat:        tx.IsRepeat,
	}
	if r := tx.Recurrence; r != nil {
		tj.EndAfter = r.EndAfter.UTC().Format("2006-01-02")
		fj := &FrequencyJSON{FrequencyType: string(r.Frequency)}
		switch r.Frequency {
		case ledger.FreqWeekly:
			day := int(r.Weekday)
			fj.Day = &day
		case ledger.FreqMonthly:
			date := r.DayOfMonth
			fj.Date = &date
		case ledger.FreqYearly:
			date, month := r.DayOfMonth, int(r.Month)
			fj.Date, fj.Month = &date, &month
		}
		tj.Frequency = fj
	}
	return tj
}
