package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Bucket key for aggregates and budgets
// =============================================================================

// Month identifies a calendar month. Month buckets are computed in UTC.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

// MonthOf returns the month bucket containing t.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

// NewMonth builds a Month from its parts.
func NewMonth(year int, month time.Month) Month { return Month{Year: year, Month: month} }

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) Month { return MonthOf(now) }

// ParseMonth accepts "2006-01" or a full RFC3339 / "2006-01-02" date.
func ParseMonth(s string) (Month, error) {
	for _, layout := range []string{monthLayout, "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("invalid month %q (use YYYY-MM)", s)
}

// Comparison
func (m Month) index() int               { return m.Year*12 + int(m.Month) - 1 }
func (m Month) Before(other Month) bool  { return m.index() < other.index() }
func (m Month) After(other Month) bool   { return m.index() > other.index() }
func (m Month) Equal(other Month) bool   { return m.index() == other.index() }
func (m Month) AfterOrEqual(o Month) bool { return !m.Before(o) }
func (m Month) IsZero() bool             { return m.Year == 0 && m.Month == 0 }

// Arithmetic
func (m Month) AddMonths(n int) Month {
	i := m.index() + n
	return Month{Year: i / 12, Month: time.Month(i%12 + 1)}
}
func (m Month) Next() Month { return m.AddMonths(1) }
func (m Month) Prev() Month { return m.AddMonths(-1) }

// Start returns the first instant of the month.
func (m Month) Start() time.Time { return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC) }

// End returns the last instant of the month.
func (m Month) End() time.Time { return m.Next().Start().Add(-time.Nanosecond) }

// Contains reports whether t falls inside the month.
func (m Month) Contains(t time.Time) bool { return MonthOf(t).Equal(m) }

func (m Month) String() string { return m.Start().Format(monthLayout) }
